// Package models defines the domain entities of deepdish and the rules for
// constructing them from untrusted input.
package models

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
)

// IngredientName is a non-empty ingredient name.
type IngredientName string

// NewIngredientName validates s as an ingredient name.
func NewIngredientName(s string) (IngredientName, error) {
	if s == "" {
		return "", apperr.EmptyField("name")
	}
	return IngredientName(s), nil
}

func (n IngredientName) String() string { return string(n) }

// IngredientDescription is a non-empty ingredient description.
type IngredientDescription string

// NewIngredientDescription validates s as an ingredient description.
func NewIngredientDescription(s string) (IngredientDescription, error) {
	if s == "" {
		return "", apperr.EmptyField("description")
	}
	return IngredientDescription(s), nil
}

func (d IngredientDescription) String() string { return string(d) }

// DietViolation names a diet an ingredient is not compatible with.
type DietViolation string

const (
	Vegan       DietViolation = "vegan"
	Vegetarian  DietViolation = "vegetarian"
	GlutenFree  DietViolation = "gluten_free"
	LactoseFree DietViolation = "lactose_free"
	NutFree     DietViolation = "nut_free"
)

var dietViolationOrder = []DietViolation{Vegan, Vegetarian, GlutenFree, LactoseFree, NutFree}

func normalizeTag(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// ParseDietViolation maps a free-form tag onto the closed set. Matching
// ignores case and separators, so "GlutenFree" and "gluten-free" both map to
// GlutenFree.
func ParseDietViolation(s string) (DietViolation, bool) {
	n := normalizeTag(s)
	for _, v := range dietViolationOrder {
		if normalizeTag(string(v)) == n {
			return v, true
		}
	}
	return "", false
}

// DietViolations is a duplicate-free set kept in declaration order.
type DietViolations []DietViolation

// NewDietViolations keeps every tag that maps onto a known diet and drops the
// rest without failing.
func NewDietViolations(tags []string) DietViolations {
	seen := make(map[DietViolation]bool, len(tags))
	for _, t := range tags {
		if v, ok := ParseDietViolation(t); ok {
			seen[v] = true
		}
	}
	out := DietViolations{}
	for _, v := range dietViolationOrder {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// Contains reports whether v is in the set.
func (d DietViolations) Contains(v DietViolation) bool {
	return slices.Contains(d, v)
}

// Strings returns the wire representation of the set.
func (d DietViolations) Strings() []string {
	out := make([]string, len(d))
	for i, v := range d {
		out[i] = string(v)
	}
	return out
}

// Ingredient is a named ingredient. Name uniqueness is enforced by the
// repositories, not here.
type Ingredient struct {
	ID             uuid.UUID
	Name           IngredientName
	Description    IngredientDescription
	DietViolations DietViolations
}

// NewIngredient validates the input and assigns a fresh time-ordered id.
func NewIngredient(name, description string, dietViolations []string) (Ingredient, error) {
	n, err := NewIngredientName(name)
	if err != nil {
		return Ingredient{}, err
	}
	d, err := NewIngredientDescription(description)
	if err != nil {
		return Ingredient{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Ingredient{}, apperr.Unknown(err)
	}
	return Ingredient{
		ID:             id,
		Name:           n,
		Description:    d,
		DietViolations: NewDietViolations(dietViolations),
	}, nil
}

// Clone returns a deep copy.
func (i Ingredient) Clone() Ingredient {
	i.DietViolations = slices.Clone(i.DietViolations)
	if i.DietViolations == nil {
		i.DietViolations = DietViolations{}
	}
	return i
}

// Equal compares all fields.
func (i Ingredient) Equal(o Ingredient) bool {
	return i.ID == o.ID &&
		i.Name == o.Name &&
		i.Description == o.Description &&
		slices.Equal(i.DietViolations, o.DietViolations)
}

// IngredientChangeset is a partial update of an ingredient.
type IngredientChangeset struct {
	Name           Change[string]
	Description    Change[string]
	DietViolations Change[[]string]
}

// Apply validates the set fields and returns the updated ingredient and
// whether anything differs from i.
func (c IngredientChangeset) Apply(i Ingredient) (Ingredient, bool, error) {
	out := i.Clone()
	if c.Name.Set {
		n, err := NewIngredientName(c.Name.Value)
		if err != nil {
			return Ingredient{}, false, err
		}
		out.Name = n
	}
	if c.Description.Set {
		d, err := NewIngredientDescription(c.Description.Value)
		if err != nil {
			return Ingredient{}, false, err
		}
		out.Description = d
	}
	if c.DietViolations.Set {
		out.DietViolations = NewDietViolations(c.DietViolations.Value)
	}
	return out, !out.Equal(i), nil
}
