package sqldb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
	"github.com/starford/deepdish/internal/repository/repotest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "deepdish.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newRepos(t *testing.T) (repository.IngredientRepository, repository.RecipeRepository) {
	t.Helper()
	db := openTestDB(t)
	return db.Ingredients(), db.Recipes()
}

func TestIngredientRepository(t *testing.T) {
	repotest.RunIngredientSuite(t, newRepos)
}

func TestRecipeRepository(t *testing.T) {
	repotest.RunRecipeSuite(t, newRepos)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for range 2 {
		db, err := Open(DriverSQLite, path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		db.Close()
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b IN (?, ?)`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
	if got := placeholders(3); got != "?, ?, ?" {
		t.Errorf("placeholders(3) = %q", got)
	}
}

func TestDeleteReferencedIngredientIsInUse(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, err := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Butter", "vegan"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Croissant", ing)); err != nil {
		t.Fatal(err)
	}

	err = db.Ingredients().Delete(ctx, ing)
	if apperr.KindOf(err) != apperr.KindInUseByRecipe {
		t.Fatalf("Delete = %v, want InUseByRecipe", err)
	}
	if _, err := db.Ingredients().GetByID(ctx, ing.ID); err != nil {
		t.Errorf("ingredient gone after refused delete: %v", err)
	}
}

func TestForeignKeyViolationIgnoresOtherTriggers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Nutmeg"))
	if _, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Bechamel", ing)); err != nil {
		t.Fatal(err)
	}

	_, err := db.conn.Exec(`DELETE FROM ingredients WHERE id = ?`, ing.ID)
	if err == nil || !sqliteDialect.foreignKeyViolation(err) {
		t.Errorf("restricted delete not classified as a foreign key violation: %v", err)
	}

	_, err = db.conn.Exec(`
		CREATE TRIGGER block_rename BEFORE UPDATE OF name ON ingredients
		BEGIN SELECT RAISE(ABORT, 'names are frozen'); END`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.conn.Exec(`UPDATE ingredients SET name = 'Mace' WHERE id = ?`, ing.ID)
	if err == nil {
		t.Fatal("trigger did not fire")
	}
	if sqliteDialect.foreignKeyViolation(err) {
		t.Errorf("unrelated trigger abort classified as a foreign key violation: %v", err)
	}
}

func TestDeleteRecipeCascadesLines(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Lemon"))
	r, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Lemonade", ing))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Recipes().Delete(ctx, r); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM recipe_ingredients`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d orphan lines left", n)
	}
	if err := db.Ingredients().Delete(ctx, ing); err != nil {
		t.Errorf("ingredient still blocked after recipe delete: %v", err)
	}
}

func TestLinesKeepInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	var ings []models.Ingredient
	for _, name := range []string{"Zucchini", "Apple", "Mango", "Banana"} {
		ing, err := db.Ingredients().Insert(ctx, repotest.Ingredient(t, name))
		if err != nil {
			t.Fatal(err)
		}
		ings = append(ings, ing)
	}
	r, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Fruit salad", ings[:3]...))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Recipes().AddIngredient(ctx, r, models.IngredientWithAmount{Ingredient: ings[3], Amount: models.Cup{Amount: 1}}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Recipes().GetByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range got.Ingredients {
		if l.Ingredient.ID != ings[i].ID {
			t.Errorf("line %d = %s, want %s", i, l.Ingredient.Name, ings[i].Name)
		}
	}
}

func TestRecipeInsertIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Rye"))
	r := repotest.Recipe(t, "Rye bread", ing, ing)

	_, err := db.Recipes().Insert(ctx, r)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate line = %v, want Conflict", err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("recipe row survived a failed insert")
	}
}

func TestFailedTouchIsWarning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Thyme"))
	r, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Roast", ing))
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.conn.Exec(`
		CREATE TRIGGER block_touch BEFORE UPDATE OF updated_at ON recipes
		BEGIN SELECT RAISE(ABORT, 'updated_at is frozen'); END`)
	if err != nil {
		t.Fatal(err)
	}

	err = db.Recipes().Update(ctx, r, models.RecipeChangeset{Name: models.Set("Sunday roast")})
	if !apperr.IsWarning(err) {
		t.Fatalf("Update = %v, want warning", err)
	}
	got, err := db.Recipes().GetByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Sunday roast" {
		t.Errorf("write was lost: name = %q", got.Name)
	}
	if !got.UpdatedAt.Equal(r.UpdatedAt) {
		t.Errorf("updated_at moved despite the failed bump")
	}

	err = db.Recipes().UpdateIngredientAmount(ctx, got, got.Ingredients[0], models.Grams{Amount: 5})
	if !apperr.IsWarning(err) {
		t.Fatalf("UpdateIngredientAmount = %v, want warning", err)
	}
	got, _ = db.Recipes().GetByID(ctx, r.ID)
	if got.Ingredients[0].Amount != (models.Grams{Amount: 5}) {
		t.Errorf("amount = %#v", got.Ingredients[0].Amount)
	}
}

func TestTimestampsSurviveRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Cocoa"))
	stored, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Brownies", ing))
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.Recipes().GetByID(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(stored.CreatedAt) || got.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at = %v, want %v in UTC", got.CreatedAt, stored.CreatedAt)
	}
}

func TestGetAllAcrossBatches(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ing, _ := db.Ingredients().Insert(ctx, repotest.Ingredient(t, "Water"))
	const n = lineBatchSize + 7
	for i := range n {
		if _, err := db.Recipes().Insert(ctx, repotest.Recipe(t, "Recipe", ing)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	all, err := db.Recipes().GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != n {
		t.Fatalf("len = %d, want %d", len(all), n)
	}
	for _, r := range all {
		if len(r.Ingredients) != 1 {
			t.Fatalf("recipe %s has %d lines", r.ID, len(r.Ingredients))
		}
	}
}
