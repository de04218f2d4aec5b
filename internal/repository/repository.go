// Package repository defines the persistence contracts for ingredients and
// recipes. Implementations live in the memory and sqldb subpackages and must
// behave identically, including the apperr kinds they return.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/models"
)

// IngredientRepository persists ingredients.
//
// Error kinds: Insert and Update return Conflict("name") when another
// ingredient already has the name; GetByID, Update and Delete return
// NotFound(id); Delete returns InUseByRecipe when the storage layer refuses to
// drop a referenced row. Everything else is Unknown.
type IngredientRepository interface {
	Insert(ctx context.Context, ing models.Ingredient) (models.Ingredient, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Ingredient, error)
	GetAll(ctx context.Context) ([]models.Ingredient, error)
	Update(ctx context.Context, ing models.Ingredient) (models.Ingredient, error)
	Delete(ctx context.Context, ing models.Ingredient) error
}

// RecipeRepository persists recipes and their ingredient lines.
//
// Error kinds: Insert returns Conflict("id") for a duplicate id; GetByID,
// Delete, Update and the line operations return NotFound(recipeID) for a
// missing recipe; Insert and AddIngredient return Conflict("ingredient") for a
// second line of the same ingredient and NotFound(ingredientID) for a line
// whose ingredient does not exist; DeleteIngredient and UpdateIngredientAmount
// return NotFound(ingredientID) when the line is missing.
//
// Update and the line operations bump UpdatedAt as a best-effort step after
// their own write. When the bump fails the write is kept and the method
// returns an apperr.Warning.
type RecipeRepository interface {
	Insert(ctx context.Context, r models.Recipe) (models.Recipe, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Recipe, error)
	GetAll(ctx context.Context) ([]models.Recipe, error)
	Delete(ctx context.Context, r models.Recipe) error
	Update(ctx context.Context, r models.Recipe, cs models.RecipeChangeset) error
	AddIngredient(ctx context.Context, r models.Recipe, line models.IngredientWithAmount) error
	DeleteIngredient(ctx context.Context, r models.Recipe, line models.IngredientWithAmount) error
	UpdateIngredientAmount(ctx context.Context, r models.Recipe, line models.IngredientWithAmount, amount models.Unit) error
	RecipesContainingIngredientExist(ctx context.Context, ing models.Ingredient) (bool, error)
}

// NextUpdatedAt returns the timestamp a write should store as updated_at.
// It is truncated to microseconds, the finest precision every backend keeps,
// and always moves forward from prev.
func NextUpdatedAt(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
