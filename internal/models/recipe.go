package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
)

// Change is one field of a changeset. Set means "replace with Value"; the
// zero Change leaves the field untouched.
type Change[T any] struct {
	Value T
	Set   bool
}

// Set builds a Change that replaces the field with v.
func Set[T any](v T) Change[T] {
	return Change[T]{Value: v, Set: true}
}

// Timings maps a phase label ("prep", "cook") to its duration. It is encoded
// as whole seconds.
type Timings map[string]time.Duration

func (t Timings) MarshalJSON() ([]byte, error) {
	secs := make(map[string]int64, len(t))
	for k, v := range t {
		secs[k] = int64(v / time.Second)
	}
	return json.Marshal(secs)
}

func (t *Timings) UnmarshalJSON(data []byte) error {
	var secs map[string]int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return apperr.DeserializationFailed("time", err)
	}
	out := make(Timings, len(secs))
	for k, v := range secs {
		if v < 0 {
			return apperr.DeserializationFailed("time", fmt.Errorf("phase %q has negative duration", k))
		}
		out[k] = time.Duration(v) * time.Second
	}
	*t = out
	return nil
}

// Equal compares two timings; nil and empty are equal.
func (t Timings) Equal(o Timings) bool {
	return maps.Equal(t, o)
}

// IngredientWithAmount is one ingredient line of a recipe.
type IngredientWithAmount struct {
	Ingredient Ingredient
	Amount     Unit
	Notes      *string
	Optional   bool
}

// Equal compares all fields, including the referenced ingredient.
func (l IngredientWithAmount) Equal(o IngredientWithAmount) bool {
	if (l.Notes == nil) != (o.Notes == nil) || (l.Notes != nil && *l.Notes != *o.Notes) {
		return false
	}
	return l.Ingredient.Equal(o.Ingredient) && l.Amount == o.Amount && l.Optional == o.Optional
}

// Clone returns a deep copy.
func (l IngredientWithAmount) Clone() IngredientWithAmount {
	l.Ingredient = l.Ingredient.Clone()
	if l.Notes != nil {
		n := *l.Notes
		l.Notes = &n
	}
	return l
}

// Recipe is a recipe with its ordered steps and ingredient lines. CreatedAt
// and UpdatedAt are owned by the repository.
type Recipe struct {
	ID          uuid.UUID
	Name        string
	Description string
	Steps       []string
	Ingredients []IngredientWithAmount
	Time        Timings
	Servings    Servings
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRecipeID returns a fresh time-ordered recipe id.
func NewRecipeID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperr.Unknown(err)
	}
	return id, nil
}

// Clone returns a deep copy so callers never alias repository state.
func (r Recipe) Clone() Recipe {
	r.Steps = slices.Clone(r.Steps)
	r.Time = maps.Clone(r.Time)
	lines := make([]IngredientWithAmount, len(r.Ingredients))
	for i, l := range r.Ingredients {
		lines[i] = l.Clone()
	}
	r.Ingredients = lines
	return r
}

// Line returns the ingredient line referencing ingredientID.
func (r Recipe) Line(ingredientID uuid.UUID) (IngredientWithAmount, bool) {
	for _, l := range r.Ingredients {
		if l.Ingredient.ID == ingredientID {
			return l, true
		}
	}
	return IngredientWithAmount{}, false
}

// RecipeChangeset is a partial update of a recipe's own fields. Ingredient
// lines are changed through their dedicated operations.
type RecipeChangeset struct {
	Name        Change[string]
	Description Change[string]
	Steps       Change[[]string]
	Time        Change[Timings]
	Servings    Change[Servings]
}

// Diff drops every set field whose value already equals r's, so the result
// only carries real changes.
func (c RecipeChangeset) Diff(r Recipe) RecipeChangeset {
	var out RecipeChangeset
	if c.Name.Set && c.Name.Value != r.Name {
		out.Name = c.Name
	}
	if c.Description.Set && c.Description.Value != r.Description {
		out.Description = c.Description
	}
	if c.Steps.Set && !slices.Equal(c.Steps.Value, r.Steps) {
		out.Steps = c.Steps
	}
	if c.Time.Set && !c.Time.Value.Equal(r.Time) {
		out.Time = c.Time
	}
	if c.Servings.Set && c.Servings.Value != r.Servings {
		out.Servings = c.Servings
	}
	return out
}

// IsEmpty reports whether no field is set.
func (c RecipeChangeset) IsEmpty() bool {
	return !c.Name.Set && !c.Description.Set && !c.Steps.Set && !c.Time.Set && !c.Servings.Set
}

// Validate rejects changes that would break recipe invariants.
func (c RecipeChangeset) Validate() error {
	if c.Name.Set && c.Name.Value == "" {
		return apperr.EmptyField("name")
	}
	if c.Steps.Set && len(c.Steps.Value) == 0 {
		return apperr.EmptyField("steps")
	}
	if c.Servings.Set && c.Servings.Value == nil {
		return apperr.EmptyField("servings")
	}
	return nil
}

// Apply returns r with every set field replaced.
func (c RecipeChangeset) Apply(r Recipe) Recipe {
	out := r.Clone()
	if c.Name.Set {
		out.Name = c.Name.Value
	}
	if c.Description.Set {
		out.Description = c.Description.Value
	}
	if c.Steps.Set {
		out.Steps = slices.Clone(c.Steps.Value)
	}
	if c.Time.Set {
		out.Time = maps.Clone(c.Time.Value)
	}
	if c.Servings.Set {
		out.Servings = c.Servings.Value
	}
	return out
}
