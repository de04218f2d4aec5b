package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/command"
	"github.com/starford/deepdish/internal/models"
)

// CreateIngredientRequest is the request body for creating an ingredient.
type CreateIngredientRequest struct {
	Name           string   `json:"name" example:"Tomato"`
	Description    string   `json:"description" example:"Ripe red tomato"`
	DietViolations []string `json:"diet_violations" example:"vegan,gluten_free"`
}

// Validate validates the request.
func (r *CreateIngredientRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 2000)),
	)
}

// Input converts the request to command input.
func (r *CreateIngredientRequest) Input() command.CreateIngredientInput {
	return command.CreateIngredientInput{
		Name:           r.Name,
		Description:    r.Description,
		DietViolations: r.DietViolations,
	}
}

// UpdateIngredientRequest is a partial update; omitted fields stay unchanged.
type UpdateIngredientRequest struct {
	Name           *string   `json:"name,omitempty"`
	Description    *string   `json:"description,omitempty"`
	DietViolations *[]string `json:"diet_violations,omitempty"`
}

// Validate validates the request.
func (r *UpdateIngredientRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.NilOrNotEmpty, validation.Length(1, 2000)),
	)
}

// Input converts the request to command input.
func (r *UpdateIngredientRequest) Input() command.UpdateIngredientInput {
	return command.UpdateIngredientInput{
		Name:           r.Name,
		Description:    r.Description,
		DietViolations: r.DietViolations,
	}
}

// IngredientResponse is an ingredient as returned by the API.
type IngredientResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name" example:"Tomato"`
	Description    string    `json:"description" example:"Ripe red tomato"`
	DietViolations []string  `json:"diet_violations" example:"vegan"`
}

// NewIngredientResponse converts an ingredient to its API form.
func NewIngredientResponse(ing models.Ingredient) IngredientResponse {
	return IngredientResponse{
		ID:             ing.ID,
		Name:           ing.Name.String(),
		Description:    ing.Description.String(),
		DietViolations: ing.DietViolations.Strings(),
	}
}

// IngredientLineRequest references an existing ingredient from a recipe.
type IngredientLineRequest struct {
	IngredientID uuid.UUID        `json:"ingredient_id"`
	Amount       *models.UnitJSON `json:"amount"`
	Notes        *string          `json:"notes,omitempty"`
	Optional     bool             `json:"optional"`
}

// Validate validates the line.
func (l IngredientLineRequest) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.IngredientID, validation.NotIn(uuid.Nil).Error("must be a non-nil id")),
		validation.Field(&l.Amount, validation.Required),
	)
}

// Input converts the line to command input.
func (l IngredientLineRequest) Input() command.IngredientLineInput {
	in := command.IngredientLineInput{
		IngredientID: l.IngredientID,
		Notes:        l.Notes,
		Optional:     l.Optional,
	}
	if l.Amount != nil {
		in.Amount = l.Amount.Unit
	}
	return in
}

// CreateRecipeRequest is the request body for creating a recipe.
type CreateRecipeRequest struct {
	Name        string                  `json:"name" example:"Shakshuka"`
	Description string                  `json:"description"`
	Steps       []string                `json:"steps"`
	Ingredients []IngredientLineRequest `json:"ingredients"`
	Time        models.Timings          `json:"time"`
	Servings    *models.ServingsJSON    `json:"servings"`
}

// Validate validates the request.
func (r *CreateRecipeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Steps, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.Ingredients, validation.Required),
		validation.Field(&r.Servings, validation.Required),
	)
}

// Input converts the request to command input.
func (r *CreateRecipeRequest) Input() command.CreateRecipeInput {
	in := command.CreateRecipeInput{
		Name:        r.Name,
		Description: r.Description,
		Steps:       r.Steps,
		Time:        r.Time,
	}
	if r.Servings != nil {
		in.Servings = r.Servings.Servings
	}
	for _, l := range r.Ingredients {
		in.Ingredients = append(in.Ingredients, l.Input())
	}
	return in
}

// UpdateRecipeRequest is a partial update of a recipe's own fields.
type UpdateRecipeRequest struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Steps       *[]string            `json:"steps,omitempty"`
	Time        *models.Timings      `json:"time,omitempty"`
	Servings    *models.ServingsJSON `json:"servings,omitempty"`
}

// Validate validates the request.
func (r *UpdateRecipeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Steps, validation.NilOrNotEmpty),
	)
}

// Changeset converts the request to a recipe changeset.
func (r *UpdateRecipeRequest) Changeset() models.RecipeChangeset {
	var cs models.RecipeChangeset
	if r.Name != nil {
		cs.Name = models.Set(*r.Name)
	}
	if r.Description != nil {
		cs.Description = models.Set(*r.Description)
	}
	if r.Steps != nil {
		cs.Steps = models.Set(*r.Steps)
	}
	if r.Time != nil {
		cs.Time = models.Set(*r.Time)
	}
	if r.Servings != nil {
		cs.Servings = models.Set(r.Servings.Servings)
	}
	return cs
}

// UpdateAmountRequest is the request body for changing an ingredient amount.
type UpdateAmountRequest struct {
	Amount *models.UnitJSON `json:"amount"`
}

// Validate validates the request.
func (r *UpdateAmountRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.Required),
	)
}

// IngredientLineResponse is one ingredient line of a recipe.
type IngredientLineResponse struct {
	Ingredient IngredientResponse `json:"ingredient"`
	Amount     models.UnitJSON    `json:"amount"`
	Notes      *string            `json:"notes,omitempty"`
	Optional   bool               `json:"optional"`
}

// RecipeResponse is a recipe as returned by the API.
type RecipeResponse struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Steps       []string                 `json:"steps"`
	Ingredients []IngredientLineResponse `json:"ingredients"`
	Time        models.Timings           `json:"time"`
	Servings    models.ServingsJSON      `json:"servings"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// NewRecipeResponse converts a recipe to its API form.
func NewRecipeResponse(r models.Recipe) RecipeResponse {
	out := RecipeResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Steps:       r.Steps,
		Ingredients: make([]IngredientLineResponse, 0, len(r.Ingredients)),
		Time:        r.Time,
		Servings:    models.ServingsJSON{Servings: r.Servings},
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if out.Steps == nil {
		out.Steps = []string{}
	}
	for _, l := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, IngredientLineResponse{
			Ingredient: NewIngredientResponse(l.Ingredient),
			Amount:     models.UnitJSON{Unit: l.Amount},
			Notes:      l.Notes,
			Optional:   l.Optional,
		})
	}
	return out
}
