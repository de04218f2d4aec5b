// Package repotest holds the behaviour every repository implementation must
// share. Implementation packages run these suites from their own tests.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// Factory returns a fresh, empty pair of repositories sharing one backend.
type Factory func(t *testing.T) (repository.IngredientRepository, repository.RecipeRepository)

// Ingredient builds a valid ingredient or fails the test.
func Ingredient(t *testing.T, name string, diets ...string) models.Ingredient {
	t.Helper()
	ing, err := models.NewIngredient(name, name+" description", diets)
	if err != nil {
		t.Fatalf("NewIngredient(%q): %v", name, err)
	}
	return ing
}

// Recipe builds a recipe using the given ingredients, one line each.
func Recipe(t *testing.T, name string, ings ...models.Ingredient) models.Recipe {
	t.Helper()
	id, err := models.NewRecipeID()
	if err != nil {
		t.Fatal(err)
	}
	r := models.Recipe{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Steps:       []string{"prepare", "cook", "serve"},
		Time:        models.Timings{"prep": 15 * time.Minute, "cook": time.Hour},
		Servings:    models.ServingsFromTo{From: 2, To: 4},
	}
	units := []models.Unit{
		models.Grams{Amount: 200},
		models.Milliliters{Amount: 150.5},
		models.Teaspoons{Amount: 1},
		models.Cup{Amount: 0.5},
		models.Other{Amount: 3, Name: "cloves"},
	}
	for i, ing := range ings {
		line := models.IngredientWithAmount{
			Ingredient: ing,
			Amount:     units[i%len(units)],
			Optional:   i%2 == 1,
		}
		if i%2 == 0 {
			notes := fmt.Sprintf("note %d", i)
			line.Notes = &notes
		}
		r.Ingredients = append(r.Ingredients, line)
	}
	return r
}

func insertIngredients(t *testing.T, repo repository.IngredientRepository, names ...string) []models.Ingredient {
	t.Helper()
	out := make([]models.Ingredient, 0, len(names))
	for _, n := range names {
		ing, err := repo.Insert(context.Background(), Ingredient(t, n, "vegan"))
		if err != nil {
			t.Fatalf("Insert(%q): %v", n, err)
		}
		out = append(out, ing)
	}
	return out
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != kind {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
	return e
}

func sameLines(t *testing.T, got, want []models.IngredientWithAmount) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for _, w := range want {
		idx := slices.IndexFunc(got, func(g models.IngredientWithAmount) bool { return g.Equal(w) })
		if idx < 0 {
			t.Errorf("line for %s (%#v) missing from %+v", w.Ingredient.Name, w.Amount, got)
		}
	}
}

// RunIngredientSuite checks the IngredientRepository contract.
func RunIngredientSuite(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		repo, _ := newRepos(t)
		in := Ingredient(t, "Tomato", "vegan", "gluten_free")
		if _, err := repo.Insert(ctx, in); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := repo.GetByID(ctx, in.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if !got.Equal(in) {
			t.Errorf("got %+v, want %+v", got, in)
		}
	})

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		repo, _ := newRepos(t)
		insertIngredients(t, repo, "Basil")
		_, err := repo.Insert(ctx, Ingredient(t, "Basil"))
		if e := wantKind(t, err, apperr.KindConflict); e.Field != "name" {
			t.Errorf("conflict field = %q, want name", e.Field)
		}
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		repo, _ := newRepos(t)
		id := uuid.New()
		_, err := repo.GetByID(ctx, id)
		if e := wantKind(t, err, apperr.KindNotFound); e.ID != id {
			t.Errorf("not found id = %s, want %s", e.ID, id)
		}
	})

	t.Run("GetAll", func(t *testing.T) {
		repo, _ := newRepos(t)
		all, err := repo.GetAll(ctx)
		if err != nil || len(all) != 0 {
			t.Fatalf("empty GetAll = %v, %v", all, err)
		}
		insertIngredients(t, repo, "Salt", "Pepper", "Flour")
		all, err = repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("len = %d, want 3", len(all))
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo, _ := newRepos(t)
		ings := insertIngredients(t, repo, "Milk", "Cream")
		renamed := ings[0]
		renamed.Name = "Whole milk"
		renamed.DietViolations = models.DietViolations{models.Vegan, models.LactoseFree}
		if _, err := repo.Update(ctx, renamed); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, _ := repo.GetByID(ctx, renamed.ID)
		if !got.Equal(renamed) {
			t.Errorf("got %+v, want %+v", got, renamed)
		}

		clash := ings[1]
		clash.Name = "Whole milk"
		_, err := repo.Update(ctx, clash)
		wantKind(t, err, apperr.KindConflict)

		_, err = repo.Update(ctx, Ingredient(t, "Ghost"))
		wantKind(t, err, apperr.KindNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo, _ := newRepos(t)
		ing := insertIngredients(t, repo, "Sugar")[0]
		if err := repo.Delete(ctx, ing); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		_, err := repo.GetByID(ctx, ing.ID)
		wantKind(t, err, apperr.KindNotFound)
		wantKind(t, repo.Delete(ctx, ing), apperr.KindNotFound)
	})

	t.Run("ConcurrentInsertSameName", func(t *testing.T) {
		repo, _ := newRepos(t)
		const workers = 32
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
			others    []error
		)
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ing, err := models.NewIngredient("Saffron", "expensive", nil)
				if err != nil {
					t.Error(err)
					return
				}
				<-start
				_, err = repo.Insert(ctx, ing)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case apperr.KindOf(err) == apperr.KindConflict:
					conflicts++
				default:
					others = append(others, err)
				}
			}()
		}
		close(start)
		wg.Wait()
		if ok != 1 || conflicts != workers-1 || len(others) != 0 {
			t.Errorf("ok=%d conflicts=%d others=%v", ok, conflicts, others)
		}
	})
}

// RunRecipeSuite checks the RecipeRepository contract.
func RunRecipeSuite(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	t.Run("InsertAndGetRoundTrip", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		ings := insertIngredients(t, ingRepo, "Flour", "Water", "Yeast", "Salt", "Garlic")
		in := Recipe(t, "Bread", ings...)
		stored, err := repo.Insert(ctx, in)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
			t.Error("timestamps not set on insert")
		}
		got, err := repo.GetByID(ctx, in.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Name != in.Name || got.Description != in.Description || !slices.Equal(got.Steps, in.Steps) {
			t.Errorf("got %+v", got)
		}
		if !got.Time.Equal(in.Time) || got.Servings != in.Servings {
			t.Errorf("time/servings = %v %v", got.Time, got.Servings)
		}
		sameLines(t, got.Ingredients, in.Ingredients)
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		_, repo := newRepos(t)
		id := uuid.New()
		_, err := repo.GetByID(ctx, id)
		if e := wantKind(t, err, apperr.KindNotFound); e.ID != id {
			t.Errorf("id = %s, want %s", e.ID, id)
		}
	})

	t.Run("GetAll", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		ings := insertIngredients(t, ingRepo, "Rice", "Beans", "Corn")
		a := Recipe(t, "Burrito", ings...)
		b := Recipe(t, "Salad", ings[2])
		for _, r := range []models.Recipe{a, b} {
			if _, err := repo.Insert(ctx, r); err != nil {
				t.Fatalf("Insert %s: %v", r.Name, err)
			}
		}
		all, err := repo.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("len = %d, want 2", len(all))
		}
		for _, want := range []models.Recipe{a, b} {
			idx := slices.IndexFunc(all, func(r models.Recipe) bool { return r.ID == want.ID })
			if idx < 0 {
				t.Fatalf("recipe %s missing", want.Name)
			}
			sameLines(t, all[idx].Ingredients, want.Ingredients)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		r := Recipe(t, "Soup", insertIngredients(t, ingRepo, "Leek")...)
		if _, err := repo.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(ctx, r); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		_, err := repo.GetByID(ctx, r.ID)
		wantKind(t, err, apperr.KindNotFound)
		wantKind(t, repo.Delete(ctx, r), apperr.KindNotFound)
	})

	t.Run("UpdateChangesOnlyDifferingFields", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		r := Recipe(t, "Stew", insertIngredients(t, ingRepo, "Beef")...)
		stored, err := repo.Insert(ctx, r)
		if err != nil {
			t.Fatal(err)
		}

		same := models.RecipeChangeset{
			Name:     models.Set(r.Name),
			Steps:    models.Set(slices.Clone(r.Steps)),
			Servings: models.Set[models.Servings](r.Servings),
		}
		if err := repo.Update(ctx, stored, same); err != nil {
			t.Fatalf("no-op Update: %v", err)
		}
		got, _ := repo.GetByID(ctx, r.ID)
		if !got.UpdatedAt.Equal(stored.UpdatedAt) {
			t.Errorf("no-op update bumped updated_at: %v -> %v", stored.UpdatedAt, got.UpdatedAt)
		}

		if err := repo.Update(ctx, got, models.RecipeChangeset{Description: models.Set("Slow cooked")}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		after, _ := repo.GetByID(ctx, r.ID)
		if after.Description != "Slow cooked" || after.Name != r.Name || !slices.Equal(after.Steps, r.Steps) {
			t.Errorf("after update = %+v", after)
		}
		if !after.UpdatedAt.After(got.UpdatedAt) {
			t.Errorf("updated_at not bumped: %v -> %v", got.UpdatedAt, after.UpdatedAt)
		}
		if !after.CreatedAt.Equal(stored.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", stored.CreatedAt, after.CreatedAt)
		}

		err = repo.Update(ctx, Recipe(t, "Ghost"), models.RecipeChangeset{Name: models.Set("x")})
		wantKind(t, err, apperr.KindNotFound)
	})

	t.Run("IngredientLines", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		ings := insertIngredients(t, ingRepo, "Pasta", "Tomato", "Basil")
		r := Recipe(t, "Pasta al pomodoro", ings[:2]...)
		stored, err := repo.Insert(ctx, r)
		if err != nil {
			t.Fatal(err)
		}

		basil := models.IngredientWithAmount{Ingredient: ings[2], Amount: models.Other{Amount: 5, Name: "leaves"}, Optional: true}
		if err := repo.AddIngredient(ctx, stored, basil); err != nil {
			t.Fatalf("AddIngredient: %v", err)
		}
		wantKind(t, repo.AddIngredient(ctx, stored, basil), apperr.KindConflict)

		if err := repo.UpdateIngredientAmount(ctx, stored, basil, models.Other{Amount: 8, Name: "leaves"}); err != nil {
			t.Fatalf("UpdateIngredientAmount: %v", err)
		}
		got, _ := repo.GetByID(ctx, r.ID)
		line, ok := got.Line(ings[2].ID)
		if !ok || line.Amount != (models.Other{Amount: 8, Name: "leaves"}) || !line.Optional {
			t.Errorf("basil line = %+v, %v", line, ok)
		}
		if !got.UpdatedAt.After(stored.UpdatedAt) {
			t.Error("line changes did not bump updated_at")
		}

		if err := repo.DeleteIngredient(ctx, got, basil); err != nil {
			t.Fatalf("DeleteIngredient: %v", err)
		}
		got, _ = repo.GetByID(ctx, r.ID)
		if _, ok := got.Line(ings[2].ID); ok || len(got.Ingredients) != 2 {
			t.Errorf("lines after delete = %+v", got.Ingredients)
		}
		err = repo.DeleteIngredient(ctx, got, basil)
		if e := wantKind(t, err, apperr.KindNotFound); e.ID != ings[2].ID {
			t.Errorf("missing line id = %s", e.ID)
		}
		wantKind(t, repo.UpdateIngredientAmount(ctx, got, basil, models.Grams{Amount: 1}), apperr.KindNotFound)
	})

	t.Run("RecipesContainingIngredientExist", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		ings := insertIngredients(t, ingRepo, "Egg", "Cheese")
		if _, err := repo.Insert(ctx, Recipe(t, "Omelette", ings[0])); err != nil {
			t.Fatal(err)
		}
		used, err := repo.RecipesContainingIngredientExist(ctx, ings[0])
		if err != nil || !used {
			t.Errorf("egg used = %v, %v", used, err)
		}
		used, err = repo.RecipesContainingIngredientExist(ctx, ings[1])
		if err != nil || used {
			t.Errorf("cheese used = %v, %v", used, err)
		}
	})
	t.Run("DeleteReferencedIngredientIsInUse", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		ings := insertIngredients(t, ingRepo, "Rice", "Saffron", "Peas")
		stored, err := repo.Insert(ctx, Recipe(t, "Paella", ings[0]))
		if err != nil {
			t.Fatal(err)
		}
		line := models.IngredientWithAmount{Ingredient: ings[1], Amount: models.Grams{Amount: 1}}
		if err := repo.AddIngredient(ctx, stored, line); err != nil {
			t.Fatal(err)
		}

		wantKind(t, ingRepo.Delete(ctx, ings[0]), apperr.KindInUseByRecipe)
		wantKind(t, ingRepo.Delete(ctx, ings[1]), apperr.KindInUseByRecipe)
		got, err := repo.GetByID(ctx, stored.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Ingredients) != 2 {
			t.Fatalf("recipe has %d lines after refused deletes", len(got.Ingredients))
		}

		if err := repo.DeleteIngredient(ctx, got, line); err != nil {
			t.Fatal(err)
		}
		if err := ingRepo.Delete(ctx, ings[1]); err != nil {
			t.Errorf("Delete after removing the line: %v", err)
		}
		if err := repo.Delete(ctx, got); err != nil {
			t.Fatal(err)
		}
		if err := ingRepo.Delete(ctx, ings[0]); err != nil {
			t.Errorf("Delete after removing the recipe: %v", err)
		}

		ghost := Ingredient(t, "Ghost")
		if _, err := repo.Insert(ctx, Recipe(t, "Risotto", ings[2], ghost)); err == nil {
			t.Fatal("insert with unknown ingredient succeeded")
		}
		if err := ingRepo.Delete(ctx, ings[2]); err != nil {
			t.Errorf("failed insert left a reference behind: %v", err)
		}
	})

	t.Run("UnknownIngredientLine", func(t *testing.T) {
		ingRepo, repo := newRepos(t)
		known := insertIngredients(t, ingRepo, "Oats")
		ghost := Ingredient(t, "Ghost pepper")

		r := Recipe(t, "Porridge", known[0], ghost)
		_, err := repo.Insert(ctx, r)
		if e := wantKind(t, err, apperr.KindNotFound); e.ID != ghost.ID {
			t.Errorf("not found id = %s, want %s", e.ID, ghost.ID)
		}
		if _, err := repo.GetByID(ctx, r.ID); apperr.KindOf(err) != apperr.KindNotFound {
			t.Errorf("partially inserted recipe is visible: %v", err)
		}

		stored, err := repo.Insert(ctx, Recipe(t, "Plain porridge", known[0]))
		if err != nil {
			t.Fatal(err)
		}
		line := models.IngredientWithAmount{Ingredient: ghost, Amount: models.Grams{Amount: 1}}
		wantKind(t, repo.AddIngredient(ctx, stored, line), apperr.KindNotFound)
	})
}
