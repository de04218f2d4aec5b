// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the ingredient and recipe use cases via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/deepdish/internal/api"
	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/command"
	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/query"
	"github.com/starford/deepdish/internal/repository"
)

const wireFormatURI = "deepdish://wire-format"

// Server wraps the MCP server with recipe tools.
type Server struct {
	mcp         *server.MCPServer
	ingredients repository.IngredientRepository
	recipes     repository.RecipeRepository
	notifier    notify.MessageService
}

// New creates a new MCP server with all tools registered.
func New(ingredients repository.IngredientRepository, recipes repository.RecipeRepository, notifier notify.MessageService) *Server {
	s := &Server{ingredients: ingredients, recipes: recipes, notifier: notifier}

	s.mcp = server.NewMCPServer(
		"Deepdish",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_ingredients",
		mcp.WithDescription("List all ingredients ordered by name."),
	), s.listIngredients)

	s.mcp.AddTool(mcp.NewTool("get_ingredient",
		mcp.WithDescription("Get one ingredient by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Ingredient UUID")),
	), s.getIngredient)

	s.mcp.AddTool(mcp.NewTool("create_ingredient",
		mcp.WithDescription("Create an ingredient. Names are unique."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Ingredient name")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Short description")),
		mcp.WithArray("diet_violations",
			mcp.Description("Diets the ingredient violates: vegan, vegetarian, gluten_free, lactose_free, nut_free"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), s.createIngredient)

	s.mcp.AddTool(mcp.NewTool("delete_ingredient",
		mcp.WithDescription("Delete an ingredient. Fails while any recipe uses it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Ingredient UUID")),
	), s.deleteIngredient)

	s.mcp.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List all recipes with their ingredient lines."),
	), s.listRecipes)

	s.mcp.AddTool(mcp.NewTool("get_recipe",
		mcp.WithDescription("Get one recipe by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Recipe UUID")),
	), s.getRecipe)

	s.mcp.AddTool(mcp.NewTool("create_recipe",
		mcp.WithDescription("Create a recipe from existing ingredients. The recipe argument MUST follow "+
			"the wire format contract; read it first via get_wire_format or the "+wireFormatURI+" resource."),
		mcp.WithString("recipe", mcp.Required(), mcp.Description("Recipe as a JSON object")),
	), s.createRecipe)

	s.mcp.AddTool(mcp.NewTool("get_wire_format",
		mcp.WithDescription("Returns the JSON format of ingredients, amounts, servings and timings."),
	), s.getWireFormat)

	s.mcp.AddResource(
		mcp.NewResource(wireFormatURI, "Recipe Wire Format",
			mcp.WithResourceDescription("JSON shapes of ingredients, amounts, servings and timings."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWireFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// jsonResult renders v, noting a post-commit warning when there is one.
func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil && !apperr.IsWarning(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, mErr := json.MarshalIndent(v, "", "  ")
	if mErr != nil {
		return nil, fmt.Errorf("encode result: %w", mErr)
	}
	text := string(out)
	if err != nil {
		text += "\n\nwarning: " + err.Error()
	}
	return mcp.NewToolResultText(text), nil
}

func requireID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("id")
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

func (s *Server) listIngredients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := query.GetAllIngredients(ctx, s.ingredients)
	out := make([]api.IngredientResponse, len(all))
	for i, ing := range all {
		out[i] = api.NewIngredientResponse(ing)
	}
	return jsonResult(out, err)
}

func (s *Server) getIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireID(req)
	if errRes != nil {
		return errRes, nil
	}
	ing, err := query.GetIngredientByID(ctx, s.ingredients, id)
	return jsonResult(api.NewIngredientResponse(ing), err)
}

func (s *Server) createIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ing, err := command.CreateIngredient(ctx, s.ingredients, s.notifier, command.CreateIngredientInput{
		Name:           name,
		Description:    description,
		DietViolations: req.GetStringSlice("diet_violations", nil),
	})
	return jsonResult(api.NewIngredientResponse(ing), err)
}

func (s *Server) deleteIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireID(req)
	if errRes != nil {
		return errRes, nil
	}
	err := command.DeleteIngredient(ctx, s.ingredients, s.recipes, s.notifier, id)
	return jsonResult(map[string]string{"deleted": id.String()}, err)
}

func (s *Server) listRecipes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := query.GetAllRecipes(ctx, s.recipes)
	out := make([]api.RecipeResponse, len(all))
	for i, r := range all {
		out[i] = api.NewRecipeResponse(r)
	}
	return jsonResult(out, err)
}

func (s *Server) getRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireID(req)
	if errRes != nil {
		return errRes, nil
	}
	r, err := query.GetRecipeByID(ctx, s.recipes, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(api.NewRecipeResponse(r), nil)
}

func (s *Server) createRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("recipe")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var body api.CreateRecipeRequest
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid recipe JSON: %v", err)), nil
	}
	if err := body.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid recipe: %v", err)), nil
	}
	r, err := command.CreateRecipe(ctx, s.recipes, s.ingredients, body.Input())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(api.NewRecipeResponse(r), nil)
}

func (s *Server) getWireFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WireFormatContract), nil
}

func (s *Server) readWireFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      wireFormatURI,
			MIMEType: "text/markdown",
			Text:     WireFormatContract,
		},
	}, nil
}
