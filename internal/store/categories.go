package store

import (
	"context"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type categoryRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	ProductIDs pq.StringArray `db:"product_ids"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r categoryRow) toModel() models.Category {
	return models.Category{
		ID:        r.ID,
		Name:      r.Name,
		Products:  nonNil([]string(r.ProductIDs)),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CreateCategory inserts a category
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (id, name, product_ids)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.ID, c.Name, pq.StringArray(nonNil(c.Products))).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return classify(err, "category "+c.Name+" already exists", "")
}

// ListCategories returns all categories ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM categories ORDER BY name"); err != nil {
		return nil, classify(err, "", "")
	}

	categories := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, r.toModel())
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("category not found: %s", id)
	}

	var row categoryRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM categories WHERE id = $1", id); err != nil {
		return nil, classify(err, "", "category not found: "+id)
	}
	c := row.toModel()
	return &c, nil
}

// GetCategoryByName retrieves a category by its unique name
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var row categoryRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM categories WHERE name = $1", name); err != nil {
		return nil, classify(err, "", "category not found: "+name)
	}
	c := row.toModel()
	return &c, nil
}

// RenameCategory renames a category and the category field of its products
func (s *Store) RenameCategory(ctx context.Context, id, oldName, newName string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Upstream(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE categories SET name = $1, updated_at = NOW() WHERE id = $2", newName, id)
	if err != nil {
		return classify(err, "category "+newName+" already exists", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("category not found: %s", id)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE products SET category = $1, updated_at = NOW() WHERE category = $2", newName, oldName); err != nil {
		return classify(err, "", "")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Upstream(err, "failed to commit category rename")
	}
	return nil
}

// DeleteCategory removes a category and clears it from member products; products are kept
func (s *Store) DeleteCategory(ctx context.Context, id string) (*models.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("category not found: %s", id)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var row categoryRow
	if err := tx.GetContext(ctx, &row, "DELETE FROM categories WHERE id = $1 RETURNING *", id); err != nil {
		return nil, classify(err, "", "category not found: "+id)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE products SET category = '', updated_at = NOW() WHERE category = $1", row.Name); err != nil {
		return nil, classify(err, "", "")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Upstream(err, "failed to commit category delete")
	}
	c := row.toModel()
	return &c, nil
}

// AddCategoryProduct adds a product id to a category's set
func (s *Store) AddCategoryProduct(ctx context.Context, categoryID, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET product_ids = CASE WHEN $2 = ANY(product_ids) THEN product_ids ELSE array_append(product_ids, $2) END,
			updated_at = NOW()
		WHERE id = $1`, categoryID, productID)
	if err != nil {
		return classify(err, "", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("category not found: %s", categoryID)
	}
	return nil
}

// RemoveCategoryProduct removes a product id from a category's set
func (s *Store) RemoveCategoryProduct(ctx context.Context, categoryID, productID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE categories SET product_ids = array_remove(product_ids, $2), updated_at = NOW() WHERE id = $1",
		categoryID, productID)
	if err != nil {
		return classify(err, "", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("category not found: %s", categoryID)
	}
	return nil
}
