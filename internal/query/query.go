// Package query implements the read use cases as plain read-through calls
// to the repositories.
package query

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// GetIngredientByID returns one ingredient. Error kinds: NotFound, Unknown.
func GetIngredientByID(ctx context.Context, repo repository.IngredientRepository, id uuid.UUID) (models.Ingredient, error) {
	ing, err := repo.GetByID(ctx, id)
	if err != nil {
		return models.Ingredient{}, apperr.Scope("get ingredient", err, apperr.KindNotFound)
	}
	return ing, nil
}

// GetAllIngredients returns every ingredient ordered by name.
// Error kinds: Unknown.
func GetAllIngredients(ctx context.Context, repo repository.IngredientRepository) ([]models.Ingredient, error) {
	all, err := repo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Scope("get all ingredients", err)
	}
	return all, nil
}

// GetRecipeByID returns one recipe with its ingredient lines.
// Error kinds: NotFound, Unknown.
func GetRecipeByID(ctx context.Context, repo repository.RecipeRepository, id uuid.UUID) (models.Recipe, error) {
	r, err := repo.GetByID(ctx, id)
	if err != nil {
		return models.Recipe{}, apperr.Scope("get recipe", err, apperr.KindNotFound)
	}
	return r, nil
}

// GetAllRecipes returns every recipe with its ingredient lines, oldest
// first. Error kinds: Unknown.
func GetAllRecipes(ctx context.Context, repo repository.RecipeRepository) ([]models.Recipe, error) {
	all, err := repo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Scope("get all recipes", err)
	}
	return all, nil
}
