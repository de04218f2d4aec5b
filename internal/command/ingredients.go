// Package command implements the write use cases. Each command validates its
// input, writes through the repositories and reports failures in its own
// closed set of apperr kinds. Post-commit side effects that fail (publishing
// an event, bumping updated_at) are returned as an apperr.Warning next to a
// valid result.
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/repository"
)

// CreateIngredientInput is the untrusted input of CreateIngredient.
type CreateIngredientInput struct {
	Name           string
	Description    string
	DietViolations []string
}

// CreateIngredient validates and stores a new ingredient, then publishes
// ingredient_added.
//
// Error kinds: EmptyField, Conflict, Unknown. A publish failure leaves the
// ingredient stored and is returned as a warning.
func CreateIngredient(ctx context.Context, repo repository.IngredientRepository, notifier notify.MessageService, in CreateIngredientInput) (models.Ingredient, error) {
	const op = "create ingredient"

	ing, err := models.NewIngredient(in.Name, in.Description, in.DietViolations)
	if err != nil {
		return models.Ingredient{}, apperr.Scope(op, err, apperr.KindEmptyField)
	}
	ing, err = repo.Insert(ctx, ing)
	if err != nil {
		return models.Ingredient{}, apperr.Scope(op, err, apperr.KindConflict)
	}
	return ing, apperr.Warn("notify ingredient added", notifier.IngredientAdded(ctx, ing))
}

// UpdateIngredientInput is a partial update; nil fields are left unchanged.
type UpdateIngredientInput struct {
	Name           *string
	Description    *string
	DietViolations *[]string
}

func (in UpdateIngredientInput) changeset() models.IngredientChangeset {
	var cs models.IngredientChangeset
	if in.Name != nil {
		cs.Name = models.Set(*in.Name)
	}
	if in.Description != nil {
		cs.Description = models.Set(*in.Description)
	}
	if in.DietViolations != nil {
		cs.DietViolations = models.Set(*in.DietViolations)
	}
	return cs
}

// UpdateIngredient applies a partial update to an ingredient and publishes
// ingredient_updated with both versions. An update that changes nothing
// neither writes nor publishes.
//
// Error kinds: NotFound, EmptyField, Conflict, Unknown (plus warning).
func UpdateIngredient(ctx context.Context, repo repository.IngredientRepository, notifier notify.MessageService, id uuid.UUID, in UpdateIngredientInput) (models.Ingredient, error) {
	const op = "update ingredient"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindEmptyField, apperr.KindConflict}

	old, err := repo.GetByID(ctx, id)
	if err != nil {
		return models.Ingredient{}, apperr.Scope(op, err, allowed...)
	}
	next, changed, err := in.changeset().Apply(old)
	if err != nil {
		return models.Ingredient{}, apperr.Scope(op, err, allowed...)
	}
	if !changed {
		return old, nil
	}
	next, err = repo.Update(ctx, next)
	if err != nil {
		return models.Ingredient{}, apperr.Scope(op, err, allowed...)
	}
	return next, apperr.Warn("notify ingredient updated", notifier.IngredientUpdated(ctx, old, next))
}

// DeleteIngredient removes an ingredient that no recipe references, then
// publishes ingredient_deleted. The checks run in a fixed order: existence,
// then references, then the delete itself.
//
// Error kinds: NotFound, InUseByRecipe, Unknown (plus warning).
func DeleteIngredient(ctx context.Context, ingredients repository.IngredientRepository, recipes repository.RecipeRepository, notifier notify.MessageService, id uuid.UUID) error {
	const op = "delete ingredient"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindInUseByRecipe}

	ing, err := ingredients.GetByID(ctx, id)
	if err != nil {
		return apperr.Scope(op, err, allowed...)
	}
	used, err := recipes.RecipesContainingIngredientExist(ctx, ing)
	if err != nil {
		return apperr.Scope(op, err)
	}
	if used {
		return apperr.Scope(op, apperr.InUseByRecipe(), allowed...)
	}
	if err := ingredients.Delete(ctx, ing); err != nil {
		return apperr.Scope(op, err, allowed...)
	}
	return apperr.Warn("notify ingredient deleted", notifier.IngredientDeleted(ctx, ing))
}
