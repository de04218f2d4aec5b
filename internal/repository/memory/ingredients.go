// Package memory provides mutex-guarded in-memory repositories for tests and
// local development. Values are cloned on the way in and out, so callers never
// share state with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// IngredientStore is an in-memory repository.IngredientRepository.
type IngredientStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.Ingredient
	// refs counts recipe lines per ingredient, maintained by RecipeStore.
	refs map[uuid.UUID]int
}

// Verify *IngredientStore satisfies IngredientRepository at compile time.
var _ repository.IngredientRepository = (*IngredientStore)(nil)

// NewIngredientStore creates an empty store.
func NewIngredientStore() *IngredientStore {
	return &IngredientStore{
		byID: make(map[uuid.UUID]models.Ingredient),
		refs: make(map[uuid.UUID]int),
	}
}

// nameTaken must be called with mu held.
func (s *IngredientStore) nameTaken(name models.IngredientName, except uuid.UUID) bool {
	for id, ing := range s.byID {
		if id != except && ing.Name == name {
			return true
		}
	}
	return false
}

func (s *IngredientStore) Insert(_ context.Context, ing models.Ingredient) (models.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[ing.ID]; ok {
		return models.Ingredient{}, apperr.Conflict("id")
	}
	if s.nameTaken(ing.Name, ing.ID) {
		return models.Ingredient{}, apperr.Conflict("name")
	}
	s.byID[ing.ID] = ing.Clone()
	return ing.Clone(), nil
}

func (s *IngredientStore) GetByID(_ context.Context, id uuid.UUID) (models.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ing, ok := s.byID[id]
	if !ok {
		return models.Ingredient{}, apperr.NotFound(id)
	}
	return ing.Clone(), nil
}

func (s *IngredientStore) GetAll(_ context.Context) ([]models.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Ingredient, 0, len(s.byID))
	for _, ing := range s.byID {
		out = append(out, ing.Clone())
	}
	slices.SortFunc(out, func(a, b models.Ingredient) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *IngredientStore) Update(_ context.Context, ing models.Ingredient) (models.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[ing.ID]; !ok {
		return models.Ingredient{}, apperr.NotFound(ing.ID)
	}
	if s.nameTaken(ing.Name, ing.ID) {
		return models.Ingredient{}, apperr.Conflict("name")
	}
	s.byID[ing.ID] = ing.Clone()
	return ing.Clone(), nil
}

func (s *IngredientStore) Delete(_ context.Context, ing models.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[ing.ID]; !ok {
		return apperr.NotFound(ing.ID)
	}
	if s.refs[ing.ID] > 0 {
		return apperr.InUseByRecipe()
	}
	delete(s.byID, ing.ID)
	return nil
}

// retain records a recipe line for id. It fails when the ingredient does
// not exist, the way a foreign key would.
func (s *IngredientStore) retain(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.refs[id]++
	return true
}

func (s *IngredientStore) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[id] <= 1 {
		delete(s.refs, id)
		return
	}
	s.refs[id]--
}

// lookup returns a copy of the current version of an ingredient.
func (s *IngredientStore) lookup(id uuid.UUID) (models.Ingredient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ing, ok := s.byID[id]
	if !ok {
		return models.Ingredient{}, false
	}
	return ing.Clone(), true
}
