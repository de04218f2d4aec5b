package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
	"github.com/starford/deepdish/internal/models"
	"github.com/starford/deepdish/internal/repository"
)

// IngredientRepository is the relational repository.IngredientRepository.
type IngredientRepository struct {
	db *DB
}

// Verify *IngredientRepository satisfies IngredientRepository at compile time.
var _ repository.IngredientRepository = (*IngredientRepository)(nil)

const ingredientColumns = `id, name, description, diet_violations`

type ingredientRow struct {
	ID             uuid.UUID
	Name           string
	Description    string
	DietViolations string
}

func (r ingredientRow) toModel() (models.Ingredient, error) {
	var tags []string
	if err := json.Unmarshal([]byte(r.DietViolations), &tags); err != nil {
		return models.Ingredient{}, fmt.Errorf("sqldb: decode diet violations of %s: %w", r.ID, err)
	}
	return models.Ingredient{
		ID:             r.ID,
		Name:           models.IngredientName(r.Name),
		Description:    models.IngredientDescription(r.Description),
		DietViolations: models.NewDietViolations(tags),
	}, nil
}

func encodeDietViolations(d models.DietViolations) string {
	b, _ := json.Marshal(d.Strings())
	return string(b)
}

func scanIngredient(s interface{ Scan(...any) error }) (ingredientRow, error) {
	var r ingredientRow
	err := s.Scan(&r.ID, &r.Name, &r.Description, &r.DietViolations)
	return r, err
}

func (r *IngredientRepository) conflict(err error) error {
	if field, ok := r.db.dialect.uniqueViolation(err); ok {
		return apperr.Conflict(field)
	}
	return nil
}

func (r *IngredientRepository) Insert(ctx context.Context, ing models.Ingredient) (models.Ingredient, error) {
	_, err := r.db.exec(ctx, r.db.conn, `
		INSERT INTO ingredients (`+ingredientColumns+`)
		VALUES (?, ?, ?, ?)
	`, ing.ID, string(ing.Name), string(ing.Description), encodeDietViolations(ing.DietViolations))
	if err != nil {
		if cerr := r.conflict(err); cerr != nil {
			return models.Ingredient{}, cerr
		}
		return models.Ingredient{}, fmt.Errorf("sqldb: insert ingredient: %w", err)
	}
	return ing.Clone(), nil
}

func (r *IngredientRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Ingredient, error) {
	row, err := scanIngredient(r.db.queryRow(ctx, r.db.conn,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ingredient{}, apperr.NotFound(id)
	}
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("sqldb: get ingredient: %w", err)
	}
	return row.toModel()
}

func (r *IngredientRepository) GetAll(ctx context.Context) ([]models.Ingredient, error) {
	rows, err := r.db.query(ctx, r.db.conn, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqldb: list ingredients: %w", err)
	}
	defer rows.Close()

	out := []models.Ingredient{}
	for rows.Next() {
		row, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("sqldb: scan ingredient: %w", err)
		}
		ing, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (r *IngredientRepository) Update(ctx context.Context, ing models.Ingredient) (models.Ingredient, error) {
	res, err := r.db.exec(ctx, r.db.conn, `
		UPDATE ingredients
		SET name = ?, description = ?, diet_violations = ?
		WHERE id = ?
	`, string(ing.Name), string(ing.Description), encodeDietViolations(ing.DietViolations), ing.ID)
	if err != nil {
		if cerr := r.conflict(err); cerr != nil {
			return models.Ingredient{}, cerr
		}
		return models.Ingredient{}, fmt.Errorf("sqldb: update ingredient: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Ingredient{}, apperr.NotFound(ing.ID)
	}
	return ing.Clone(), nil
}

// Delete relies on the ON DELETE RESTRICT foreign key of recipe_ingredients,
// so a line inserted after the caller's "in use" check still blocks it.
func (r *IngredientRepository) Delete(ctx context.Context, ing models.Ingredient) error {
	res, err := r.db.exec(ctx, r.db.conn, `DELETE FROM ingredients WHERE id = ?`, ing.ID)
	if err != nil {
		if r.db.dialect.foreignKeyViolation(err) {
			return apperr.InUseByRecipe()
		}
		return fmt.Errorf("sqldb: delete ingredient: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound(ing.ID)
	}
	return nil
}
