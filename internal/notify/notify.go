// Package notify publishes ingredient events to external consumers.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/models"
)

// MessageService publishes ingredient events. Implementations fail only on
// transport errors: an event that could not be serialized or handed off.
type MessageService interface {
	IngredientAdded(ctx context.Context, ing models.Ingredient) error
	IngredientDeleted(ctx context.Context, ing models.Ingredient) error
	IngredientUpdated(ctx context.Context, old, updated models.Ingredient) error
}

// Stub is a MessageService that drops every event.
type Stub struct{}

// Verify Stub satisfies MessageService at compile time.
var _ MessageService = Stub{}

func (Stub) IngredientAdded(context.Context, models.Ingredient) error { return nil }

func (Stub) IngredientDeleted(context.Context, models.Ingredient) error { return nil }

func (Stub) IngredientUpdated(context.Context, models.Ingredient, models.Ingredient) error {
	return nil
}

// IngredientMessage is the wire form of an ingredient on the bus.
type IngredientMessage struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DietViolations []string  `json:"diet_violations"`
}

// NewIngredientMessage converts an ingredient to its wire form.
func NewIngredientMessage(ing models.Ingredient) IngredientMessage {
	return IngredientMessage{
		ID:             ing.ID,
		Name:           ing.Name.String(),
		Description:    ing.Description.String(),
		DietViolations: ing.DietViolations.Strings(),
	}
}

// IngredientUpdatedMessage carries both versions of an updated ingredient.
type IngredientUpdatedMessage struct {
	Old IngredientMessage `json:"old"`
	New IngredientMessage `json:"new"`
}

// messageKey is the partition key every event is published under.
type messageKey struct {
	ID uuid.UUID `json:"id"`
}
