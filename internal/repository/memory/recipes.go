package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// RecipeStore is an in-memory repository.RecipeRepository.
type RecipeStore struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]models.Recipe
	ingredients *IngredientStore
}

// Verify *RecipeStore satisfies RecipeRepository at compile time.
var _ repository.RecipeRepository = (*RecipeStore)(nil)

// NewRecipeStore creates an empty store. When ingredients is non-nil, reads
// resolve each line against it so renamed ingredients show their current
// values, the same way a join does in the relational store.
func NewRecipeStore(ingredients *IngredientStore) *RecipeStore {
	return &RecipeStore{
		byID:        make(map[uuid.UUID]models.Recipe),
		ingredients: ingredients,
	}
}

func (s *RecipeStore) resolve(r models.Recipe) models.Recipe {
	out := r.Clone()
	if s.ingredients == nil {
		return out
	}
	for i, l := range out.Ingredients {
		if ing, ok := s.ingredients.lookup(l.Ingredient.ID); ok {
			out.Ingredients[i].Ingredient = ing
		}
	}
	return out
}

// retain mirrors the foreign key of the relational store: a line can only
// reference an existing ingredient, and a referenced ingredient cannot be
// deleted. Callers hold s.mu, so the lock order is recipes then ingredients.
func (s *RecipeStore) retain(id uuid.UUID) error {
	if s.ingredients == nil {
		return nil
	}
	if !s.ingredients.retain(id) {
		return apperr.NotFound(id)
	}
	return nil
}

func (s *RecipeStore) release(lines ...models.IngredientWithAmount) {
	if s.ingredients == nil {
		return
	}
	for _, l := range lines {
		s.ingredients.release(l.Ingredient.ID)
	}
}

func (s *RecipeStore) Insert(_ context.Context, r models.Recipe) (models.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return models.Recipe{}, apperr.Conflict("id")
	}
	seen := make(map[uuid.UUID]struct{}, len(r.Ingredients))
	for _, l := range r.Ingredients {
		if _, dup := seen[l.Ingredient.ID]; dup {
			return models.Recipe{}, apperr.Conflict("ingredient")
		}
		seen[l.Ingredient.ID] = struct{}{}
	}
	for i, l := range r.Ingredients {
		if err := s.retain(l.Ingredient.ID); err != nil {
			s.release(r.Ingredients[:i]...)
			return models.Recipe{}, err
		}
	}
	now := repository.NextUpdatedAt(time.Time{})
	stored := r.Clone()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[r.ID] = stored
	return stored.Clone(), nil
}

func (s *RecipeStore) GetByID(_ context.Context, id uuid.UUID) (models.Recipe, error) {
	s.mu.Lock()
	r, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return models.Recipe{}, apperr.NotFound(id)
	}
	return s.resolve(r), nil
}

func (s *RecipeStore) GetAll(_ context.Context) ([]models.Recipe, error) {
	s.mu.Lock()
	all := make([]models.Recipe, 0, len(s.byID))
	for _, r := range s.byID {
		all = append(all, r)
	}
	s.mu.Unlock()

	slices.SortFunc(all, func(a, b models.Recipe) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	out := make([]models.Recipe, len(all))
	for i, r := range all {
		out[i] = s.resolve(r)
	}
	return out, nil
}

func (s *RecipeStore) Delete(_ context.Context, r models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[r.ID]
	if !ok {
		return apperr.NotFound(r.ID)
	}
	delete(s.byID, r.ID)
	s.release(cur.Ingredients...)
	return nil
}

func (s *RecipeStore) Update(_ context.Context, r models.Recipe, cs models.RecipeChangeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[r.ID]
	if !ok {
		return apperr.NotFound(r.ID)
	}
	diff := cs.Diff(cur)
	if diff.IsEmpty() {
		return nil
	}
	next := diff.Apply(cur)
	next.UpdatedAt = repository.NextUpdatedAt(cur.UpdatedAt)
	s.byID[r.ID] = next
	return nil
}

func (s *RecipeStore) AddIngredient(_ context.Context, r models.Recipe, line models.IngredientWithAmount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[r.ID]
	if !ok {
		return apperr.NotFound(r.ID)
	}
	if _, exists := cur.Line(line.Ingredient.ID); exists {
		return apperr.Conflict("ingredient")
	}
	if err := s.retain(line.Ingredient.ID); err != nil {
		return err
	}
	next := cur.Clone()
	next.Ingredients = append(next.Ingredients, line.Clone())
	next.UpdatedAt = repository.NextUpdatedAt(cur.UpdatedAt)
	s.byID[r.ID] = next
	return nil
}

func (s *RecipeStore) DeleteIngredient(_ context.Context, r models.Recipe, line models.IngredientWithAmount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[r.ID]
	if !ok {
		return apperr.NotFound(r.ID)
	}
	idx := slices.IndexFunc(cur.Ingredients, func(l models.IngredientWithAmount) bool {
		return l.Ingredient.ID == line.Ingredient.ID
	})
	if idx < 0 {
		return apperr.NotFound(line.Ingredient.ID)
	}
	s.release(cur.Ingredients[idx])
	next := cur.Clone()
	next.Ingredients = slices.Delete(next.Ingredients, idx, idx+1)
	next.UpdatedAt = repository.NextUpdatedAt(cur.UpdatedAt)
	s.byID[r.ID] = next
	return nil
}

func (s *RecipeStore) UpdateIngredientAmount(_ context.Context, r models.Recipe, line models.IngredientWithAmount, amount models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[r.ID]
	if !ok {
		return apperr.NotFound(r.ID)
	}
	idx := slices.IndexFunc(cur.Ingredients, func(l models.IngredientWithAmount) bool {
		return l.Ingredient.ID == line.Ingredient.ID
	})
	if idx < 0 {
		return apperr.NotFound(line.Ingredient.ID)
	}
	next := cur.Clone()
	next.Ingredients[idx].Amount = amount
	next.UpdatedAt = repository.NextUpdatedAt(cur.UpdatedAt)
	s.byID[r.ID] = next
	return nil
}

func (s *RecipeStore) RecipesContainingIngredientExist(_ context.Context, ing models.Ingredient) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.byID {
		if _, ok := r.Line(ing.ID); ok {
			return true, nil
		}
	}
	return false, nil
}
