package memory

import (
	"testing"

	"github.com/starford/deepdish/internal/repository"
	"github.com/starford/deepdish/internal/repository/repotest"
)

func newRepos(t *testing.T) (repository.IngredientRepository, repository.RecipeRepository) {
	t.Helper()
	ings := NewIngredientStore()
	return ings, NewRecipeStore(ings)
}

func TestIngredientStore(t *testing.T) {
	repotest.RunIngredientSuite(t, newRepos)
}

func TestRecipeStore(t *testing.T) {
	repotest.RunRecipeSuite(t, newRepos)
}
