package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/repository"
)

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(ingredients repository.IngredientRepository, recipes repository.RecipeRepository, notifier notify.MessageService) chi.Router {
	h := NewHandler(ingredients, recipes, notifier)

	r := chi.NewRouter()

	// Ingredients.
	r.Get("/ingredient", h.ListIngredients)
	r.Post("/ingredient", h.CreateIngredient)
	r.Get("/ingredient/{id}", h.GetIngredient)
	r.Put("/ingredient/{id}", h.UpdateIngredient)
	r.Delete("/ingredient/{id}", h.DeleteIngredient)

	// Recipes.
	r.Get("/recipe", h.ListRecipes)
	r.Post("/recipe", h.CreateRecipe)
	r.Get("/recipe/{id}", h.GetRecipe)
	r.Put("/recipe/{id}", h.UpdateRecipe)
	r.Delete("/recipe/{id}", h.DeleteRecipe)

	// Recipe ingredient lines.
	r.Post("/recipe/{id}/ingredient", h.AddRecipeIngredient)
	r.Put("/recipe/{id}/ingredient/{ingredientID}", h.UpdateRecipeIngredient)
	r.Delete("/recipe/{id}/ingredient/{ingredientID}", h.DeleteRecipeIngredient)

	return r
}
