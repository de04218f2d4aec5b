package query

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
	"github.com/starford/deepdish/internal/repository/memory"
	"github.com/starford/deepdish/internal/repository/repotest"
)

// brokenRecipes fails every read with a NotFound that must not leak through
// list queries.
type brokenRecipes struct {
	repository.RecipeRepository
}

func (brokenRecipes) GetAll(context.Context) ([]models.Recipe, error) {
	return nil, apperr.NotFound(uuid.New())
}

func (brokenRecipes) GetByID(context.Context, uuid.UUID) (models.Recipe, error) {
	return models.Recipe{}, errors.New("connection reset")
}

func TestIngredientQueries(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIngredientStore()
	ing, err := repo.Insert(ctx, repotest.Ingredient(t, "Paprika", "vegan"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetIngredientByID(ctx, repo, ing.ID)
	if err != nil || !got.Equal(ing) {
		t.Fatalf("GetIngredientByID = %+v, %v", got, err)
	}

	missing := uuid.New()
	_, err = GetIngredientByID(ctx, repo, missing)
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindNotFound || e.ID != missing {
		t.Fatalf("missing = %v", err)
	}

	all, err := GetAllIngredients(ctx, repo)
	if err != nil || len(all) != 1 {
		t.Fatalf("GetAllIngredients = %v, %v", all, err)
	}
}

func TestRecipeQueries(t *testing.T) {
	ctx := context.Background()
	ings := memory.NewIngredientStore()
	recipes := memory.NewRecipeStore(ings)
	ing, _ := ings.Insert(ctx, repotest.Ingredient(t, "Chickpeas"))
	r, err := recipes.Insert(ctx, repotest.Recipe(t, "Hummus", ing))
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetRecipeByID(ctx, recipes, r.ID)
	if err != nil || got.Name != "Hummus" || len(got.Ingredients) != 1 {
		t.Fatalf("GetRecipeByID = %+v, %v", got, err)
	}
	if _, err := GetRecipeByID(ctx, recipes, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing recipe = %v", err)
	}
	all, err := GetAllRecipes(ctx, recipes)
	if err != nil || len(all) != 1 {
		t.Fatalf("GetAllRecipes = %v, %v", all, err)
	}
}

func TestQueriesCollapseUnexpectedErrors(t *testing.T) {
	ctx := context.Background()
	_, err := GetAllRecipes(ctx, brokenRecipes{})
	if apperr.KindOf(err) != apperr.KindUnknown || errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetAllRecipes = %v, want opaque Unknown", err)
	}
	_, err = GetRecipeByID(ctx, brokenRecipes{}, uuid.New())
	if apperr.KindOf(err) != apperr.KindUnknown {
		t.Errorf("GetRecipeByID = %v, want Unknown", err)
	}
}
