package api

import (
	"net/http"

	"github.com/starford/deepdish/internal/command"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/query"
	"github.com/starford/deepdish/internal/repository"
)

// Handler holds API route handlers.
type Handler struct {
	ingredients repository.IngredientRepository
	recipes     repository.RecipeRepository
	notifier    notify.MessageService
}

// NewHandler creates a new Handler.
func NewHandler(ingredients repository.IngredientRepository, recipes repository.RecipeRepository, notifier notify.MessageService) *Handler {
	return &Handler{ingredients: ingredients, recipes: recipes, notifier: notifier}
}

// ListIngredients handles GET /api/ingredient.
//
//	@Summary	List all ingredients ordered by name
//	@Tags		ingredients
//	@Produce	json
//	@Success	200	{array}	IngredientResponse
//	@Router		/ingredient [get]
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	all, err := query.GetAllIngredients(r.Context(), h.ingredients)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]IngredientResponse, len(all))
	for i, ing := range all {
		out[i] = NewIngredientResponse(ing)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetIngredient handles GET /api/ingredient/{id}.
//
//	@Summary	Get an ingredient by id
//	@Tags		ingredients
//	@Produce	json
//	@Param		id	path		string	true	"Ingredient id"
//	@Success	200	{object}	IngredientResponse
//	@Failure	404	{object}	errResponse
//	@Router		/ingredient/{id} [get]
func (h *Handler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ing, err := query.GetIngredientByID(r.Context(), h.ingredients, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewIngredientResponse(ing))
}

// CreateIngredient handles POST /api/ingredient.
//
//	@Summary	Create an ingredient
//	@Tags		ingredients
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateIngredientRequest	true	"Ingredient to create"
//	@Success	201		{object}	IngredientResponse
//	@Failure	409		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/ingredient [post]
func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req CreateIngredientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ing, err := command.CreateIngredient(r.Context(), h.ingredients, h.notifier, req.Input())
	writeResult(w, r, http.StatusCreated, NewIngredientResponse(ing), err)
}

// UpdateIngredient handles PUT /api/ingredient/{id}.
//
//	@Summary	Update an ingredient
//	@Tags		ingredients
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Ingredient id"
//	@Param		body	body		UpdateIngredientRequest	true	"Fields to change"
//	@Success	200		{object}	IngredientResponse
//	@Failure	404		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/ingredient/{id} [put]
func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateIngredientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ing, err := command.UpdateIngredient(r.Context(), h.ingredients, h.notifier, id, req.Input())
	writeResult(w, r, http.StatusOK, NewIngredientResponse(ing), err)
}

// DeleteIngredient handles DELETE /api/ingredient/{id}.
//
//	@Summary	Delete an ingredient no recipe uses
//	@Tags		ingredients
//	@Param		id	path	string	true	"Ingredient id"
//	@Success	204
//	@Failure	404	{object}	errResponse
//	@Failure	409	{object}	errResponse
//	@Router		/ingredient/{id} [delete]
func (h *Handler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	err := command.DeleteIngredient(r.Context(), h.ingredients, h.recipes, h.notifier, id)
	writeResult(w, r, http.StatusNoContent, nil, err)
}

// ListRecipes handles GET /api/recipe.
//
//	@Summary	List all recipes
//	@Tags		recipes
//	@Produce	json
//	@Success	200	{array}	RecipeResponse
//	@Router		/recipe [get]
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	all, err := query.GetAllRecipes(r.Context(), h.recipes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]RecipeResponse, len(all))
	for i, rec := range all {
		out[i] = NewRecipeResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRecipe handles GET /api/recipe/{id}.
//
//	@Summary	Get a recipe by id
//	@Tags		recipes
//	@Produce	json
//	@Param		id	path		string	true	"Recipe id"
//	@Success	200	{object}	RecipeResponse
//	@Failure	404	{object}	errResponse
//	@Router		/recipe/{id} [get]
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := query.GetRecipeByID(r.Context(), h.recipes, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRecipeResponse(rec))
}

// CreateRecipe handles POST /api/recipe.
//
//	@Summary	Create a recipe from existing ingredients
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateRecipeRequest	true	"Recipe to create"
//	@Success	201		{object}	RecipeResponse
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/recipe [post]
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := command.CreateRecipe(r.Context(), h.recipes, h.ingredients, req.Input())
	writeResult(w, r, http.StatusCreated, NewRecipeResponse(rec), err)
}

// UpdateRecipe handles PUT /api/recipe/{id}.
//
//	@Summary	Update a recipe's own fields
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Recipe id"
//	@Param		body	body		UpdateRecipeRequest	true	"Fields to change"
//	@Success	200		{object}	RecipeResponse
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Router		/recipe/{id} [put]
func (h *Handler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := command.UpdateRecipe(r.Context(), h.recipes, id, req.Changeset())
	writeResult(w, r, http.StatusOK, NewRecipeResponse(rec), err)
}

// DeleteRecipe handles DELETE /api/recipe/{id}.
//
//	@Summary	Delete a recipe
//	@Tags		recipes
//	@Param		id	path	string	true	"Recipe id"
//	@Success	204
//	@Failure	404	{object}	errResponse
//	@Router		/recipe/{id} [delete]
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, r, http.StatusNoContent, nil, command.DeleteRecipe(r.Context(), h.recipes, id))
}

// AddRecipeIngredient handles POST /api/recipe/{id}/ingredient.
//
//	@Summary	Add an ingredient line to a recipe
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Recipe id"
//	@Param		body	body		IngredientLineRequest	true	"Line to add"
//	@Success	201		{object}	RecipeResponse
//	@Failure	404		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Router		/recipe/{id}/ingredient [post]
func (h *Handler) AddRecipeIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req IngredientLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := command.AddIngredientToRecipe(r.Context(), h.recipes, h.ingredients, id, req.Input())
	writeResult(w, r, http.StatusCreated, NewRecipeResponse(rec), err)
}

// UpdateRecipeIngredient handles PUT /api/recipe/{id}/ingredient/{ingredientID}.
//
//	@Summary	Change the amount of an ingredient line
//	@Tags		recipes
//	@Accept		json
//	@Produce	json
//	@Param		id				path		string				true	"Recipe id"
//	@Param		ingredientID	path		string				true	"Ingredient id"
//	@Param		body			body		UpdateAmountRequest	true	"New amount"
//	@Success	200				{object}	RecipeResponse
//	@Failure	404				{object}	errResponse
//	@Router		/recipe/{id}/ingredient/{ingredientID} [put]
func (h *Handler) UpdateRecipeIngredient(w http.ResponseWriter, r *http.Request) {
	recipeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ingredientID, ok := idParam(w, r, "ingredientID")
	if !ok {
		return
	}
	var req UpdateAmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var amount models.Unit
	if req.Amount != nil {
		amount = req.Amount.Unit
	}
	rec, err := command.UpdateIngredientAmount(r.Context(), h.recipes, recipeID, ingredientID, amount)
	writeResult(w, r, http.StatusOK, NewRecipeResponse(rec), err)
}

// DeleteRecipeIngredient handles DELETE /api/recipe/{id}/ingredient/{ingredientID}.
//
//	@Summary	Remove an ingredient line from a recipe
//	@Tags		recipes
//	@Produce	json
//	@Param		id				path		string	true	"Recipe id"
//	@Param		ingredientID	path		string	true	"Ingredient id"
//	@Success	200				{object}	RecipeResponse
//	@Failure	404				{object}	errResponse
//	@Failure	422				{object}	errResponse
//	@Router		/recipe/{id}/ingredient/{ingredientID} [delete]
func (h *Handler) DeleteRecipeIngredient(w http.ResponseWriter, r *http.Request) {
	recipeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ingredientID, ok := idParam(w, r, "ingredientID")
	if !ok {
		return
	}
	rec, err := command.RemoveIngredientFromRecipe(r.Context(), h.recipes, recipeID, ingredientID)
	writeResult(w, r, http.StatusOK, NewRecipeResponse(rec), err)
}
