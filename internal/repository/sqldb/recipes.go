package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// lineBatchSize bounds the number of recipe ids bound into one IN (...) list.
const lineBatchSize = 500

// RecipeRepository is the relational repository.RecipeRepository.
type RecipeRepository struct {
	db *DB
}

// Verify *RecipeRepository satisfies RecipeRepository at compile time.
var _ repository.RecipeRepository = (*RecipeRepository)(nil)

const recipeColumns = `id, name, description, steps, time, servings, created_at, updated_at`

type recipeRow struct {
	ID          uuid.UUID
	Name        string
	Description string
	Steps       string
	Time        string
	Servings    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func scanRecipe(s interface{ Scan(...any) error }) (recipeRow, error) {
	var r recipeRow
	err := s.Scan(&r.ID, &r.Name, &r.Description, &r.Steps, &r.Time, &r.Servings, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type lineRow struct {
	RecipeID   uuid.UUID
	Amount     string
	Notes      sql.NullString
	Optional   bool
	Ingredient ingredientRow
}

const lineColumns = `ri.recipe_id, ri.amount, ri.notes, ri.optional,
	i.id, i.name, i.description, i.diet_violations`

func scanLine(s interface{ Scan(...any) error }) (lineRow, error) {
	var l lineRow
	err := s.Scan(&l.RecipeID, &l.Amount, &l.Notes, &l.Optional,
		&l.Ingredient.ID, &l.Ingredient.Name, &l.Ingredient.Description, &l.Ingredient.DietViolations)
	return l, err
}

// assemble decodes the JSON columns of a recipe row and attaches its lines.
func assemble(row recipeRow, lines []lineRow) (models.Recipe, error) {
	r := models.Recipe{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Steps), &r.Steps); err != nil {
		return models.Recipe{}, fmt.Errorf("sqldb: decode steps of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Time), &r.Time); err != nil {
		return models.Recipe{}, fmt.Errorf("sqldb: decode time of %s: %w", row.ID, err)
	}
	servings, err := models.UnmarshalServings([]byte(row.Servings))
	if err != nil {
		return models.Recipe{}, fmt.Errorf("sqldb: decode servings of %s: %w", row.ID, err)
	}
	r.Servings = servings

	r.Ingredients = make([]models.IngredientWithAmount, 0, len(lines))
	for _, l := range lines {
		ing, err := l.Ingredient.toModel()
		if err != nil {
			return models.Recipe{}, err
		}
		amount, err := models.UnmarshalUnit([]byte(l.Amount))
		if err != nil {
			return models.Recipe{}, fmt.Errorf("sqldb: decode amount of %s in %s: %w", ing.ID, row.ID, err)
		}
		line := models.IngredientWithAmount{Ingredient: ing, Amount: amount, Optional: l.Optional}
		if l.Notes.Valid {
			notes := l.Notes.String
			line.Notes = &notes
		}
		r.Ingredients = append(r.Ingredients, line)
	}
	return r, nil
}

type recipeColumnsJSON struct {
	steps, time, servings string
}

func encodeRecipeColumns(r models.Recipe) (recipeColumnsJSON, error) {
	steps := r.Steps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return recipeColumnsJSON{}, err
	}
	t := r.Time
	if t == nil {
		t = models.Timings{}
	}
	timeJSON, err := json.Marshal(t)
	if err != nil {
		return recipeColumnsJSON{}, err
	}
	servingsJSON, err := models.MarshalServings(r.Servings)
	if err != nil {
		return recipeColumnsJSON{}, err
	}
	return recipeColumnsJSON{string(stepsJSON), string(timeJSON), string(servingsJSON)}, nil
}

func (r *RecipeRepository) Insert(ctx context.Context, rec models.Recipe) (models.Recipe, error) {
	cols, err := encodeRecipeColumns(rec)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("sqldb: encode recipe: %w", err)
	}
	now := repository.NextUpdatedAt(time.Time{})

	err = r.db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := r.db.exec(ctx, tx, `
			INSERT INTO recipes (`+recipeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Name, rec.Description, cols.steps, cols.time, cols.servings, now, now)
		if err != nil {
			if _, ok := r.db.dialect.uniqueViolation(err); ok {
				return apperr.Conflict("id")
			}
			return fmt.Errorf("sqldb: insert recipe: %w", err)
		}
		for pos, line := range rec.Ingredients {
			if err := r.insertLine(ctx, tx, rec.ID, pos, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Recipe{}, err
	}

	out := rec.Clone()
	out.CreatedAt = now
	out.UpdatedAt = now
	return out, nil
}

func (r *RecipeRepository) insertLine(ctx context.Context, tx *sql.Tx, recipeID uuid.UUID, pos int, line models.IngredientWithAmount) error {
	amount, err := models.MarshalUnit(line.Amount)
	if err != nil {
		return fmt.Errorf("sqldb: encode amount: %w", err)
	}
	var notes sql.NullString
	if line.Notes != nil {
		notes = sql.NullString{String: *line.Notes, Valid: true}
	}
	_, err = r.db.exec(ctx, tx, `
		INSERT INTO recipe_ingredients (recipe_id, ingredient_id, position, amount, notes, optional)
		VALUES (?, ?, ?, ?, ?, ?)
	`, recipeID, line.Ingredient.ID, pos, string(amount), notes, line.Optional)
	if err != nil {
		if _, ok := r.db.dialect.uniqueViolation(err); ok {
			return apperr.Conflict("ingredient")
		}
		if r.db.dialect.foreignKeyViolation(err) {
			return apperr.NotFound(line.Ingredient.ID)
		}
		return fmt.Errorf("sqldb: insert recipe line: %w", err)
	}
	return nil
}

func (r *RecipeRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Recipe, error) {
	row, err := scanRecipe(r.db.queryRow(ctx, r.db.conn,
		`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recipe{}, apperr.NotFound(id)
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("sqldb: get recipe: %w", err)
	}
	lines, err := r.loadLines(ctx, []uuid.UUID{id})
	if err != nil {
		return models.Recipe{}, err
	}
	return assemble(row, lines[id])
}

// GetAll reads every recipe row, then every ingredient line of those recipes
// in batched IN queries, and decodes the recipes in parallel.
func (r *RecipeRepository) GetAll(ctx context.Context) ([]models.Recipe, error) {
	rows, err := r.db.query(ctx, r.db.conn, `SELECT `+recipeColumns+` FROM recipes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqldb: list recipes: %w", err)
	}
	var recipeRows []recipeRow
	for rows.Next() {
		row, err := scanRecipe(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqldb: scan recipe: %w", err)
		}
		recipeRows = append(recipeRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: list recipes: %w", err)
	}
	if len(recipeRows) == 0 {
		return []models.Recipe{}, nil
	}

	ids := make([]uuid.UUID, len(recipeRows))
	for i, row := range recipeRows {
		ids[i] = row.ID
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Recipe, len(recipeRows))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, row := range recipeRows {
		g.Go(func() error {
			rec, err := assemble(row, lines[row.ID])
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// loadLines returns the ingredient lines of the given recipes grouped by
// recipe id, each group in position order.
func (r *RecipeRepository) loadLines(ctx context.Context, recipeIDs []uuid.UUID) (map[uuid.UUID][]lineRow, error) {
	out := make(map[uuid.UUID][]lineRow, len(recipeIDs))
	for start := 0; start < len(recipeIDs); start += lineBatchSize {
		batch := recipeIDs[start:min(start+lineBatchSize, len(recipeIDs))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		rows, err := r.db.query(ctx, r.db.conn, `
			SELECT `+lineColumns+`
			FROM recipe_ingredients ri
			JOIN ingredients i ON i.id = ri.ingredient_id
			WHERE ri.recipe_id IN (`+placeholders(len(batch))+`)
			ORDER BY ri.recipe_id, ri.position
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("sqldb: list recipe lines: %w", err)
		}
		for rows.Next() {
			l, err := scanLine(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("sqldb: scan recipe line: %w", err)
			}
			out[l.RecipeID] = append(out[l.RecipeID], l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqldb: list recipe lines: %w", err)
		}
	}
	return out, nil
}

func (r *RecipeRepository) Delete(ctx context.Context, rec models.Recipe) error {
	res, err := r.db.exec(ctx, r.db.conn, `DELETE FROM recipes WHERE id = ?`, rec.ID)
	if err != nil {
		return fmt.Errorf("sqldb: delete recipe: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound(rec.ID)
	}
	return nil
}

// Update writes only the fields of cs that differ from the stored recipe.
// A changeset with no real change leaves the row, updated_at included,
// untouched.
func (r *RecipeRepository) Update(ctx context.Context, rec models.Recipe, cs models.RecipeChangeset) error {
	var touchErr error
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		row, err := scanRecipe(r.db.queryRow(ctx, tx,
			`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`+r.db.dialect.forUpdate, rec.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(rec.ID)
		}
		if err != nil {
			return fmt.Errorf("sqldb: read recipe: %w", err)
		}
		cur, err := assemble(row, nil)
		if err != nil {
			return err
		}

		diff := cs.Diff(cur)
		if diff.IsEmpty() {
			return nil
		}
		next := diff.Apply(cur)
		cols, err := encodeRecipeColumns(next)
		if err != nil {
			return fmt.Errorf("sqldb: encode recipe: %w", err)
		}

		var (
			set  []string
			args []any
		)
		if diff.Name.Set {
			set, args = append(set, "name = ?"), append(args, next.Name)
		}
		if diff.Description.Set {
			set, args = append(set, "description = ?"), append(args, next.Description)
		}
		if diff.Steps.Set {
			set, args = append(set, "steps = ?"), append(args, cols.steps)
		}
		if diff.Time.Set {
			set, args = append(set, "time = ?"), append(args, cols.time)
		}
		if diff.Servings.Set {
			set, args = append(set, "servings = ?"), append(args, cols.servings)
		}
		args = append(args, rec.ID)
		if _, err := r.db.exec(ctx, tx,
			`UPDATE recipes SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("sqldb: update recipe: %w", err)
		}

		touchErr = r.touch(ctx, tx, rec.ID, cur.UpdatedAt)
		return nil
	})
	if err != nil {
		return err
	}
	return apperr.Warn("touch recipe", touchErr)
}

func (r *RecipeRepository) AddIngredient(ctx context.Context, rec models.Recipe, line models.IngredientWithAmount) error {
	return r.lineOp(ctx, rec.ID, func(tx *sql.Tx) error {
		var next int
		if err := r.db.queryRow(ctx, tx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM recipe_ingredients WHERE recipe_id = ?`, rec.ID,
		).Scan(&next); err != nil {
			return fmt.Errorf("sqldb: next line position: %w", err)
		}
		return r.insertLine(ctx, tx, rec.ID, next, line)
	})
}

func (r *RecipeRepository) DeleteIngredient(ctx context.Context, rec models.Recipe, line models.IngredientWithAmount) error {
	return r.lineOp(ctx, rec.ID, func(tx *sql.Tx) error {
		res, err := r.db.exec(ctx, tx,
			`DELETE FROM recipe_ingredients WHERE recipe_id = ? AND ingredient_id = ?`, rec.ID, line.Ingredient.ID)
		if err != nil {
			return fmt.Errorf("sqldb: delete recipe line: %w", err)
		}
		return lineAffected(res, line.Ingredient.ID)
	})
}

func (r *RecipeRepository) UpdateIngredientAmount(ctx context.Context, rec models.Recipe, line models.IngredientWithAmount, amount models.Unit) error {
	encoded, err := models.MarshalUnit(amount)
	if err != nil {
		return fmt.Errorf("sqldb: encode amount: %w", err)
	}
	return r.lineOp(ctx, rec.ID, func(tx *sql.Tx) error {
		res, err := r.db.exec(ctx, tx,
			`UPDATE recipe_ingredients SET amount = ? WHERE recipe_id = ? AND ingredient_id = ?`,
			string(encoded), rec.ID, line.Ingredient.ID)
		if err != nil {
			return fmt.Errorf("sqldb: update recipe line: %w", err)
		}
		return lineAffected(res, line.Ingredient.ID)
	})
}

func lineAffected(res sql.Result, ingredientID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(ingredientID)
	}
	return nil
}

// lineOp locks the recipe row, runs fn and bumps updated_at, all in one
// transaction.
func (r *RecipeRepository) lineOp(ctx context.Context, recipeID uuid.UUID, fn func(tx *sql.Tx) error) error {
	var touchErr error
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var prev time.Time
		err := r.db.queryRow(ctx, tx,
			`SELECT updated_at FROM recipes WHERE id = ?`+r.db.dialect.forUpdate, recipeID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(recipeID)
		}
		if err != nil {
			return fmt.Errorf("sqldb: read recipe: %w", err)
		}
		if err := fn(tx); err != nil {
			return err
		}
		touchErr = r.touch(ctx, tx, recipeID, prev.UTC())
		return nil
	})
	if err != nil {
		return err
	}
	return apperr.Warn("touch recipe", touchErr)
}

// touch bumps updated_at inside a savepoint. A failed bump is rolled back to
// the savepoint so the surrounding write can still commit.
func (r *RecipeRepository) touch(ctx context.Context, tx *sql.Tx, id uuid.UUID, prev time.Time) error {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT touch_recipe`); err != nil {
		return fmt.Errorf("sqldb: savepoint: %w", err)
	}
	_, err := r.db.exec(ctx, tx, `UPDATE recipes SET updated_at = ? WHERE id = ?`,
		repository.NextUpdatedAt(prev), id)
	if err != nil {
		if _, rerr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT touch_recipe`); rerr != nil {
			return errors.Join(err, rerr)
		}
		return fmt.Errorf("sqldb: bump updated_at: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT touch_recipe`); err != nil {
		return fmt.Errorf("sqldb: release savepoint: %w", err)
	}
	return nil
}

func (r *RecipeRepository) RecipesContainingIngredientExist(ctx context.Context, ing models.Ingredient) (bool, error) {
	var exists bool
	err := r.db.queryRow(ctx, r.db.conn,
		`SELECT EXISTS (SELECT 1 FROM recipe_ingredients WHERE ingredient_id = ?)`, ing.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqldb: recipes containing ingredient: %w", err)
	}
	return exists, nil
}
