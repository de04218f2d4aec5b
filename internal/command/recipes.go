package command

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// IngredientLineInput references an existing ingredient by id.
type IngredientLineInput struct {
	IngredientID uuid.UUID
	Amount       models.Unit
	Notes        *string
	Optional     bool
}

// CreateRecipeInput is the input of CreateRecipe.
type CreateRecipeInput struct {
	Name        string
	Description string
	Steps       []string
	Ingredients []IngredientLineInput
	Time        models.Timings
	Servings    models.Servings
}

func (in CreateRecipeInput) validate() error {
	switch {
	case in.Name == "":
		return apperr.EmptyField("name")
	case len(in.Steps) == 0:
		return apperr.EmptyField("steps")
	case len(in.Ingredients) == 0:
		return apperr.EmptyField("ingredients")
	case in.Servings == nil:
		return apperr.EmptyField("servings")
	}
	return nil
}

// line resolves the referenced ingredient and builds the recipe line.
func (in IngredientLineInput) line(ctx context.Context, ingredients repository.IngredientRepository) (models.IngredientWithAmount, error) {
	if in.Amount == nil {
		return models.IngredientWithAmount{}, apperr.DeserializationFailed("amount", errors.New("amount is required"))
	}
	ing, err := ingredients.GetByID(ctx, in.IngredientID)
	if err != nil {
		return models.IngredientWithAmount{}, err
	}
	return models.IngredientWithAmount{
		Ingredient: ing,
		Amount:     in.Amount,
		Notes:      in.Notes,
		Optional:   in.Optional,
	}, nil
}

// CreateRecipe stores a new recipe whose lines reference existing
// ingredients.
//
// Error kinds: EmptyField, DeserializationFailed, NotFound (an unknown
// ingredient id), Conflict (the same ingredient twice), Unknown.
func CreateRecipe(ctx context.Context, recipes repository.RecipeRepository, ingredients repository.IngredientRepository, in CreateRecipeInput) (models.Recipe, error) {
	const op = "create recipe"
	allowed := []apperr.Kind{apperr.KindEmptyField, apperr.KindDeserializationFailed, apperr.KindNotFound, apperr.KindConflict}

	if err := in.validate(); err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	id, err := models.NewRecipeID()
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err)
	}
	r := models.Recipe{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Steps:       in.Steps,
		Time:        in.Time,
		Servings:    in.Servings,
	}
	seen := make(map[uuid.UUID]struct{}, len(in.Ingredients))
	for _, li := range in.Ingredients {
		if _, dup := seen[li.IngredientID]; dup {
			return models.Recipe{}, apperr.Scope(op, apperr.Conflict("ingredient"), allowed...)
		}
		seen[li.IngredientID] = struct{}{}
		line, err := li.line(ctx, ingredients)
		if err != nil {
			return models.Recipe{}, apperr.Scope(op, err, allowed...)
		}
		r.Ingredients = append(r.Ingredients, line)
	}

	r, err = recipes.Insert(ctx, r)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	return r, nil
}

// UpdateRecipe applies a changeset to a recipe's own fields and returns the
// stored result. Fields equal to the stored values are not rewritten.
//
// Error kinds: NotFound, EmptyField, Unknown (plus warning when updated_at
// could not be bumped).
func UpdateRecipe(ctx context.Context, recipes repository.RecipeRepository, id uuid.UUID, cs models.RecipeChangeset) (models.Recipe, error) {
	const op = "update recipe"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindEmptyField}

	if err := cs.Validate(); err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	r, err := recipes.GetByID(ctx, id)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	r, err = reread(ctx, recipes, r.ID, recipes.Update(ctx, r, cs))
	return r, apperr.Scope(op, err, allowed...)
}

// DeleteRecipe removes a recipe and its ingredient lines.
//
// Error kinds: NotFound, Unknown.
func DeleteRecipe(ctx context.Context, recipes repository.RecipeRepository, id uuid.UUID) error {
	const op = "delete recipe"

	r, err := recipes.GetByID(ctx, id)
	if err != nil {
		return apperr.Scope(op, err, apperr.KindNotFound)
	}
	return apperr.Scope(op, recipes.Delete(ctx, r), apperr.KindNotFound)
}

// AddIngredientToRecipe appends a line for an existing ingredient.
//
// Error kinds: NotFound (recipe or ingredient), Conflict (the recipe already
// uses the ingredient), DeserializationFailed (no amount), Unknown (plus
// warning).
func AddIngredientToRecipe(ctx context.Context, recipes repository.RecipeRepository, ingredients repository.IngredientRepository, recipeID uuid.UUID, in IngredientLineInput) (models.Recipe, error) {
	const op = "add ingredient to recipe"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindConflict, apperr.KindDeserializationFailed}

	r, err := recipes.GetByID(ctx, recipeID)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	if _, exists := r.Line(in.IngredientID); exists {
		return models.Recipe{}, apperr.Scope(op, apperr.Conflict("ingredient"), allowed...)
	}
	line, err := in.line(ctx, ingredients)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	r, err = reread(ctx, recipes, r.ID, recipes.AddIngredient(ctx, r, line))
	return r, apperr.Scope(op, err, allowed...)
}

// RemoveIngredientFromRecipe deletes one ingredient line. The last line of
// a recipe cannot be removed.
//
// Error kinds: NotFound (recipe or line), EmptyField("ingredients"), Unknown
// (plus warning).
func RemoveIngredientFromRecipe(ctx context.Context, recipes repository.RecipeRepository, recipeID, ingredientID uuid.UUID) (models.Recipe, error) {
	const op = "remove ingredient from recipe"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindEmptyField}

	r, err := recipes.GetByID(ctx, recipeID)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	line, ok := r.Line(ingredientID)
	if !ok {
		return models.Recipe{}, apperr.Scope(op, apperr.NotFound(ingredientID), allowed...)
	}
	if len(r.Ingredients) == 1 {
		return models.Recipe{}, apperr.Scope(op, apperr.EmptyField("ingredients"), allowed...)
	}
	r, err = reread(ctx, recipes, r.ID, recipes.DeleteIngredient(ctx, r, line))
	return r, apperr.Scope(op, err, allowed...)
}

// UpdateIngredientAmount replaces the amount of one ingredient line.
//
// Error kinds: NotFound (recipe or line), DeserializationFailed (no amount),
// Unknown (plus warning).
func UpdateIngredientAmount(ctx context.Context, recipes repository.RecipeRepository, recipeID, ingredientID uuid.UUID, amount models.Unit) (models.Recipe, error) {
	const op = "update ingredient amount"
	allowed := []apperr.Kind{apperr.KindNotFound, apperr.KindDeserializationFailed}

	if amount == nil {
		return models.Recipe{}, apperr.Scope(op, apperr.DeserializationFailed("amount", errors.New("amount is required")), allowed...)
	}
	r, err := recipes.GetByID(ctx, recipeID)
	if err != nil {
		return models.Recipe{}, apperr.Scope(op, err, allowed...)
	}
	line, ok := r.Line(ingredientID)
	if !ok {
		return models.Recipe{}, apperr.Scope(op, apperr.NotFound(ingredientID), allowed...)
	}
	r, err = reread(ctx, recipes, r.ID, recipes.UpdateIngredientAmount(ctx, r, line, amount))
	return r, apperr.Scope(op, err, allowed...)
}

// reread returns the stored recipe after a write. A hard write error is
// returned as is; a warning is kept next to the re-read recipe.
func reread(ctx context.Context, recipes repository.RecipeRepository, id uuid.UUID, writeErr error) (models.Recipe, error) {
	if writeErr != nil && !apperr.IsWarning(writeErr) {
		return models.Recipe{}, writeErr
	}
	r, err := recipes.GetByID(ctx, id)
	if err != nil {
		return models.Recipe{}, err
	}
	return r, writeErr
}
