package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/repository"
	"github.com/starford/deepdish/internal/repository/memory"
)

type event struct {
	kind     string
	old, updated models.Ingredient
}

// recordingNotifier records events and optionally fails every publish.
type recordingNotifier struct {
	mu     sync.Mutex
	events []event
	err    error
}

var _ notify.MessageService = (*recordingNotifier)(nil)

func (n *recordingNotifier) record(e event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) IngredientAdded(_ context.Context, ing models.Ingredient) error {
	return n.record(event{kind: "added", updated: ing})
}

func (n *recordingNotifier) IngredientDeleted(_ context.Context, ing models.Ingredient) error {
	return n.record(event{kind: "deleted", old: ing})
}

func (n *recordingNotifier) IngredientUpdated(_ context.Context, old, updated models.Ingredient) error {
	return n.record(event{kind: "updated", old: old, updated: updated})
}

type fixture struct {
	ingredients *memory.IngredientStore
	recipes     *memory.RecipeStore
	notifier    *recordingNotifier
}

func newFixture() *fixture {
	ings := memory.NewIngredientStore()
	return &fixture{
		ingredients: ings,
		recipes:     memory.NewRecipeStore(ings),
		notifier:    &recordingNotifier{},
	}
}

func (f *fixture) ingredient(t *testing.T, name string) models.Ingredient {
	t.Helper()
	ing, err := CreateIngredient(context.Background(), f.ingredients, f.notifier, CreateIngredientInput{
		Name: name, Description: name + " description",
	})
	if err != nil {
		t.Fatalf("CreateIngredient(%q): %v", name, err)
	}
	return ing
}

func (f *fixture) recipe(t *testing.T, name string, ings ...models.Ingredient) models.Recipe {
	t.Helper()
	in := CreateRecipeInput{
		Name:     name,
		Steps:    []string{"mix", "bake"},
		Servings: models.ServingsExact{Value: 2},
	}
	for _, ing := range ings {
		in.Ingredients = append(in.Ingredients, IngredientLineInput{IngredientID: ing.ID, Amount: models.Grams{Amount: 100}})
	}
	r, err := CreateRecipe(context.Background(), f.recipes, f.ingredients, in)
	if err != nil {
		t.Fatalf("CreateRecipe(%q): %v", name, err)
	}
	return r
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != kind {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
	return e
}

func TestCreateIngredient(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ing, err := CreateIngredient(ctx, f.ingredients, f.notifier, CreateIngredientInput{
		Name:           "Honey",
		Description:    "Sweet",
		DietViolations: []string{"vegan", "keto", "Vegan"},
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	if ing.Name != "Honey" || ing.Description != "Sweet" {
		t.Errorf("fields = %+v", ing)
	}
	if len(ing.DietViolations) != 1 || ing.DietViolations[0] != models.Vegan {
		t.Errorf("diet violations = %v", ing.DietViolations)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].kind != "added" || f.notifier.events[0].updated.ID != ing.ID {
		t.Errorf("events = %+v", f.notifier.events)
	}
}

func TestCreateIngredientValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    CreateIngredientInput
		field string
	}{
		{"empty name", CreateIngredientInput{Description: "d"}, "name"},
		{"empty description", CreateIngredientInput{Name: "n"}, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := CreateIngredient(context.Background(), f.ingredients, f.notifier, tt.in)
			if e := wantKind(t, err, apperr.KindEmptyField); e.Field != tt.field {
				t.Errorf("field = %q, want %q", e.Field, tt.field)
			}
			all, _ := f.ingredients.GetAll(context.Background())
			if len(all) != 0 || len(f.notifier.events) != 0 {
				t.Errorf("side effects after failed create: %v %v", all, f.notifier.events)
			}
		})
	}
}

func TestCreateIngredientConflict(t *testing.T) {
	f := newFixture()
	f.ingredient(t, "Salt")
	_, err := CreateIngredient(context.Background(), f.ingredients, f.notifier, CreateIngredientInput{Name: "Salt", Description: "again"})
	if e := wantKind(t, err, apperr.KindConflict); e.Field != "name" || e.Op != "create ingredient" {
		t.Errorf("conflict = %+v", e)
	}
}

func TestCreateIngredientNotifyFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.notifier.err = notify.ErrQueueFull

	ing, err := CreateIngredient(ctx, f.ingredients, f.notifier, CreateIngredientInput{Name: "Vinegar", Description: "Sour"})
	if !apperr.IsWarning(err) {
		t.Fatalf("err = %v, want warning", err)
	}
	if !errors.Is(err, notify.ErrQueueFull) {
		t.Errorf("warning lost its cause: %v", err)
	}
	if _, err := f.ingredients.GetByID(ctx, ing.ID); err != nil {
		t.Errorf("ingredient not persisted: %v", err)
	}
}

func TestUpdateIngredient(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ing := f.ingredient(t, "Cream")
	f.ingredient(t, "Butter")

	name := "Double cream"
	diets := []string{"vegan"}
	got, err := UpdateIngredient(ctx, f.ingredients, f.notifier, ing.ID, UpdateIngredientInput{Name: &name, DietViolations: &diets})
	if err != nil {
		t.Fatalf("UpdateIngredient: %v", err)
	}
	if got.Name != "Double cream" || got.Description != ing.Description || !got.DietViolations.Contains(models.Vegan) {
		t.Errorf("updated = %+v", got)
	}
	last := f.notifier.events[len(f.notifier.events)-1]
	if last.kind != "updated" || last.old.Name != "Cream" || last.updated.Name != "Double cream" {
		t.Errorf("event = %+v", last)
	}

	events := len(f.notifier.events)
	if _, err := UpdateIngredient(ctx, f.ingredients, f.notifier, ing.ID, UpdateIngredientInput{Name: &name}); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if len(f.notifier.events) != events {
		t.Error("no-op update published an event")
	}

	butter := "Butter"
	_, err = UpdateIngredient(ctx, f.ingredients, f.notifier, ing.ID, UpdateIngredientInput{Name: &butter})
	wantKind(t, err, apperr.KindConflict)

	empty := ""
	_, err = UpdateIngredient(ctx, f.ingredients, f.notifier, ing.ID, UpdateIngredientInput{Description: &empty})
	if e := wantKind(t, err, apperr.KindEmptyField); e.Field != "description" {
		t.Errorf("field = %q", e.Field)
	}

	_, err = UpdateIngredient(ctx, f.ingredients, f.notifier, uuid.New(), UpdateIngredientInput{Name: &name})
	wantKind(t, err, apperr.KindNotFound)
}

func TestDeleteIngredient(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	used := f.ingredient(t, "Flour")
	free := f.ingredient(t, "Cinnamon")
	f.recipe(t, "Bread", used)

	missing := uuid.New()
	err := DeleteIngredient(ctx, f.ingredients, f.recipes, f.notifier, missing)
	if e := wantKind(t, err, apperr.KindNotFound); e.ID != missing {
		t.Errorf("id = %s", e.ID)
	}

	err = DeleteIngredient(ctx, f.ingredients, f.recipes, f.notifier, used.ID)
	wantKind(t, err, apperr.KindInUseByRecipe)
	if _, err := f.ingredients.GetByID(ctx, used.ID); err != nil {
		t.Errorf("in-use ingredient was deleted: %v", err)
	}

	if err := DeleteIngredient(ctx, f.ingredients, f.recipes, f.notifier, free.ID); err != nil {
		t.Fatalf("DeleteIngredient: %v", err)
	}
	_, err = f.ingredients.GetByID(ctx, free.ID)
	wantKind(t, err, apperr.KindNotFound)
	last := f.notifier.events[len(f.notifier.events)-1]
	if last.kind != "deleted" || last.old.ID != free.ID {
		t.Errorf("event = %+v", last)
	}
}

func TestCreateRecipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	egg := f.ingredient(t, "Egg")
	milk := f.ingredient(t, "Milk")
	notes := "room temperature"

	r, err := CreateRecipe(ctx, f.recipes, f.ingredients, CreateRecipeInput{
		Name:     "Pancakes",
		Steps:    []string{"whisk", "fry"},
		Servings: models.ServingsFromTo{From: 2, To: 3},
		Ingredients: []IngredientLineInput{
			{IngredientID: egg.ID, Amount: models.Other{Amount: 2, Name: "pieces"}, Notes: &notes},
			{IngredientID: milk.ID, Amount: models.Milliliters{Amount: 250}, Optional: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if len(r.Ingredients) != 2 || r.Ingredients[0].Ingredient.Name != "Egg" || *r.Ingredients[0].Notes != notes {
		t.Errorf("lines = %+v", r.Ingredients)
	}
	if r.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestCreateRecipeErrors(t *testing.T) {
	f := newFixture()
	egg := f.ingredient(t, "Egg")
	line := IngredientLineInput{IngredientID: egg.ID, Amount: models.Grams{Amount: 50}}
	valid := func() CreateRecipeInput {
		return CreateRecipeInput{
			Name:        "Omelette",
			Steps:       []string{"cook"},
			Servings:    models.ServingsExact{Value: 1},
			Ingredients: []IngredientLineInput{line},
		}
	}
	ghost := uuid.New()

	tests := []struct {
		name   string
		mutate func(*CreateRecipeInput)
		kind   apperr.Kind
	}{
		{"empty name", func(in *CreateRecipeInput) { in.Name = "" }, apperr.KindEmptyField},
		{"no steps", func(in *CreateRecipeInput) { in.Steps = nil }, apperr.KindEmptyField},
		{"no ingredients", func(in *CreateRecipeInput) { in.Ingredients = nil }, apperr.KindEmptyField},
		{"no servings", func(in *CreateRecipeInput) { in.Servings = nil }, apperr.KindEmptyField},
		{"no amount", func(in *CreateRecipeInput) { in.Ingredients[0].Amount = nil }, apperr.KindDeserializationFailed},
		{"unknown ingredient", func(in *CreateRecipeInput) { in.Ingredients[0].IngredientID = ghost }, apperr.KindNotFound},
		{"duplicate ingredient", func(in *CreateRecipeInput) { in.Ingredients = append(in.Ingredients, line) }, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := CreateRecipe(context.Background(), f.recipes, f.ingredients, in)
			wantKind(t, err, tt.kind)
		})
	}
	all, _ := f.recipes.GetAll(context.Background())
	if len(all) != 0 {
		t.Errorf("%d recipes stored by failing creates", len(all))
	}
}

func TestUpdateRecipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	r := f.recipe(t, "Chili", f.ingredient(t, "Beans"))

	got, err := UpdateRecipe(ctx, f.recipes, r.ID, models.RecipeChangeset{
		Name:     models.Set("Chili sin carne"),
		Servings: models.Set[models.Servings](models.ServingsFromTo{From: 4, To: 6}),
	})
	if err != nil {
		t.Fatalf("UpdateRecipe: %v", err)
	}
	if got.Name != "Chili sin carne" || got.Servings != (models.ServingsFromTo{From: 4, To: 6}) {
		t.Errorf("updated = %+v", got)
	}
	if !got.UpdatedAt.After(r.UpdatedAt) {
		t.Error("updated_at not bumped")
	}

	_, err = UpdateRecipe(ctx, f.recipes, r.ID, models.RecipeChangeset{Steps: models.Set([]string{})})
	if e := wantKind(t, err, apperr.KindEmptyField); e.Field != "steps" {
		t.Errorf("field = %q", e.Field)
	}
	_, err = UpdateRecipe(ctx, f.recipes, uuid.New(), models.RecipeChangeset{Name: models.Set("x")})
	wantKind(t, err, apperr.KindNotFound)
}

func TestDeleteRecipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ing := f.ingredient(t, "Rice")
	r := f.recipe(t, "Risotto", ing)

	if err := DeleteRecipe(ctx, f.recipes, r.ID); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	wantKind(t, DeleteRecipe(ctx, f.recipes, r.ID), apperr.KindNotFound)
	if err := DeleteIngredient(ctx, f.ingredients, f.recipes, f.notifier, ing.ID); err != nil {
		t.Errorf("ingredient still in use after recipe delete: %v", err)
	}
}

func TestRecipeIngredientLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	pasta := f.ingredient(t, "Pasta")
	garlic := f.ingredient(t, "Garlic")
	r := f.recipe(t, "Aglio e olio", pasta)

	got, err := AddIngredientToRecipe(ctx, f.recipes, f.ingredients, r.ID, IngredientLineInput{
		IngredientID: garlic.ID,
		Amount:       models.FromTablespoons(1),
	})
	if err != nil {
		t.Fatalf("AddIngredientToRecipe: %v", err)
	}
	line, ok := got.Line(garlic.ID)
	if !ok || line.Amount != (models.Teaspoons{Amount: 3}) {
		t.Errorf("garlic line = %+v, %v", line, ok)
	}

	_, err = AddIngredientToRecipe(ctx, f.recipes, f.ingredients, r.ID, IngredientLineInput{IngredientID: garlic.ID, Amount: models.Grams{Amount: 1}})
	wantKind(t, err, apperr.KindConflict)
	_, err = AddIngredientToRecipe(ctx, f.recipes, f.ingredients, r.ID, IngredientLineInput{IngredientID: uuid.New(), Amount: models.Grams{Amount: 1}})
	wantKind(t, err, apperr.KindNotFound)
	_, err = AddIngredientToRecipe(ctx, f.recipes, f.ingredients, uuid.New(), IngredientLineInput{IngredientID: garlic.ID, Amount: models.Grams{Amount: 1}})
	wantKind(t, err, apperr.KindNotFound)

	got, err = UpdateIngredientAmount(ctx, f.recipes, r.ID, garlic.ID, models.Other{Amount: 4, Name: "cloves"})
	if err != nil {
		t.Fatalf("UpdateIngredientAmount: %v", err)
	}
	if line, _ := got.Line(garlic.ID); line.Amount != (models.Other{Amount: 4, Name: "cloves"}) {
		t.Errorf("amount = %#v", line.Amount)
	}
	_, err = UpdateIngredientAmount(ctx, f.recipes, r.ID, uuid.New(), models.Grams{Amount: 1})
	wantKind(t, err, apperr.KindNotFound)
	_, err = UpdateIngredientAmount(ctx, f.recipes, r.ID, garlic.ID, nil)
	wantKind(t, err, apperr.KindDeserializationFailed)

	got, err = RemoveIngredientFromRecipe(ctx, f.recipes, r.ID, garlic.ID)
	if err != nil {
		t.Fatalf("RemoveIngredientFromRecipe: %v", err)
	}
	if len(got.Ingredients) != 1 {
		t.Errorf("lines = %+v", got.Ingredients)
	}
	_, err = RemoveIngredientFromRecipe(ctx, f.recipes, r.ID, garlic.ID)
	if e := wantKind(t, err, apperr.KindNotFound); e.ID != garlic.ID {
		t.Errorf("id = %s", e.ID)
	}
	_, err = RemoveIngredientFromRecipe(ctx, f.recipes, r.ID, pasta.ID)
	if e := wantKind(t, err, apperr.KindEmptyField); e.Field != "ingredients" {
		t.Errorf("field = %q", e.Field)
	}
}

// touchFailingRecipes reports a failed updated_at bump on every line change.
type touchFailingRecipes struct {
	repository.RecipeRepository
}

func (r touchFailingRecipes) UpdateIngredientAmount(ctx context.Context, rec models.Recipe, line models.IngredientWithAmount, amount models.Unit) error {
	if err := r.RecipeRepository.UpdateIngredientAmount(ctx, rec, line, amount); err != nil {
		return err
	}
	return apperr.Warn("touch recipe", errors.New("database is locked"))
}

func TestLineChangeKeepsResultOnWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	oil := f.ingredient(t, "Oil")
	r := f.recipe(t, "Dressing", oil)

	got, err := UpdateIngredientAmount(ctx, touchFailingRecipes{f.recipes}, r.ID, oil.ID, models.Milliliters{Amount: 30})
	if !apperr.IsWarning(err) {
		t.Fatalf("err = %v, want warning", err)
	}
	if line, _ := got.Line(oil.ID); line.Amount != (models.Milliliters{Amount: 30}) {
		t.Errorf("result not returned with warning: %+v", got)
	}
}

func TestConcurrentCreateIngredientSameName(t *testing.T) {
	f := newFixture()
	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, clash int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := CreateIngredient(context.Background(), f.ingredients, notify.Stub{}, CreateIngredientInput{Name: "Pepper", Description: "Black"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.KindOf(err) == apperr.KindConflict:
				clash++
			}
		}()
	}
	wg.Wait()
	if ok != 1 || clash != workers-1 {
		t.Errorf("ok=%d conflicts=%d", ok, clash)
	}
}
