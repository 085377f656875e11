package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

const productColumns = `id, title, handle, description, vendor, category, type, tags,
	colors, variants, images, color_images, variant_images, created_at, updated_at`

// productRow is the table shape of a product document
type productRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Handle        string         `db:"handle"`
	Description   string         `db:"description"`
	Vendor        string         `db:"vendor"`
	Category      string         `db:"category"`
	Type          string         `db:"type"`
	Tags          pq.StringArray `db:"tags"`
	Colors        types.JSONText `db:"colors"`
	Variants      types.JSONText `db:"variants"`
	Images        types.JSONText `db:"images"`
	ColorImages   types.JSONText `db:"color_images"`
	VariantImages types.JSONText `db:"variant_images"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toRow(p *models.Product) (*productRow, error) {
	row := &productRow{
		ID:          p.ID,
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.Description,
		Vendor:      p.Vendor,
		Category:    p.Category,
		Type:        p.Type,
		Tags:        pq.StringArray(nonNil(p.Tags)),
	}

	fields := []struct {
		dst *types.JSONText
		src interface{}
	}{
		{&row.Colors, nonNilSlice(p.Colors)},
		{&row.Variants, nonNilSlice(p.Variants)},
		{&row.Images, nonNilSlice(p.Images)},
		{&row.ColorImages, nonNilSlice(p.ColorImages)},
		{&row.VariantImages, nonNilSlice(p.VariantImages)},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to encode product document: %w", err)
		}
		*f.dst = types.JSONText(b)
	}
	return row, nil
}

func (r *productRow) toModel() (*models.Product, error) {
	p := &models.Product{
		ID:          r.ID,
		Title:       r.Title,
		Handle:      r.Handle,
		Description: r.Description,
		Vendor:      r.Vendor,
		Category:    r.Category,
		Type:        r.Type,
		Tags:        []string(r.Tags),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	fields := []struct {
		src types.JSONText
		dst interface{}
	}{
		{r.Colors, &p.Colors},
		{r.Variants, &p.Variants},
		{r.Images, &p.Images},
		{r.ColorImages, &p.ColorImages},
		{r.VariantImages, &p.VariantImages},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := f.src.Unmarshal(f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode product %s: %w", r.ID, err)
		}
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nonNilSlice keeps JSONB columns as arrays rather than null.
func nonNilSlice(v interface{}) interface{} {
	switch s := v.(type) {
	case []models.Color:
		if s == nil {
			return []models.Color{}
		}
	case []models.Variant:
		if s == nil {
			return []models.Variant{}
		}
	case []models.Image:
		if s == nil {
			return []models.Image{}
		}
	case []models.ColorImages:
		if s == nil {
			return []models.ColorImages{}
		}
	case []models.VariantImages:
		if s == nil {
			return []models.VariantImages{}
		}
	}
	return v
}

// CreateProduct inserts a product document
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, title, handle, description, vendor, category, type, tags,
			colors, variants, images, color_images, variant_images)
		VALUES (:id, :title, :handle, :description, :vendor, :category, :type, :tags,
			:colors, :variants, :images, :color_images, :variant_images)
		RETURNING created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, row)
	if err != nil {
		return classify(err, fmt.Sprintf("handle %q already exists", p.Handle), "")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return apperr.Upstream(err, "failed to read product timestamps")
		}
	}
	return classify(rows.Err(), fmt.Sprintf("handle %q already exists", p.Handle), "")
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("product not found: %s", id)
	}

	var row productRow
	err := s.db.GetContext(ctx, &row, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, classify(err, "", "product not found: "+id)
	}
	return row.toModel()
}

// GetProductByHandle retrieves a product by handle
func (s *Store) GetProductByHandle(ctx context.Context, handle string) (*models.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, "SELECT "+productColumns+" FROM products WHERE handle = $1", handle)
	if err != nil {
		return nil, classify(err, "", "product not found: "+handle)
	}
	return row.toModel()
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", valid)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "", "")
	}
	return toModels(rows)
}

// UpdateProduct replaces a product document
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE products SET title = :title, handle = :handle, description = :description,
			vendor = :vendor, category = :category, type = :type, tags = :tags,
			colors = :colors, variants = :variants, images = :images,
			color_images = :color_images, variant_images = :variant_images, updated_at = NOW()
		WHERE id = :id
		RETURNING updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, row)
	if err != nil {
		return classify(err, fmt.Sprintf("handle %q already exists", p.Handle), "")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return classify(err, fmt.Sprintf("handle %q already exists", p.Handle), "")
		}
		return apperr.NotFound("product not found: %s", p.ID)
	}
	if err := rows.Scan(&p.UpdatedAt); err != nil {
		return apperr.Upstream(err, "failed to read product timestamp")
	}
	return nil
}

// DeleteProduct removes a product and its category memberships in one transaction
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("product not found: %s", id)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Upstream(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return classify(err, "", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("product not found: %s", id)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE categories SET product_ids = array_remove(product_ids, $1), updated_at = NOW() WHERE $1 = ANY(product_ids)",
		id)
	if err != nil {
		return classify(err, "", "")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Upstream(err, "failed to commit product delete")
	}
	return nil
}

// ListProducts returns products matching filter, newest first
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query, args := buildProductQuery(filter)

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "", "")
	}
	return toModels(rows)
}

func toModels(rows []productRow) ([]models.Product, error) {
	products := make([]models.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

// buildProductQuery renders filter as a parameterised SELECT.
// Price bounds apply to the first variant only.
func buildProductQuery(f models.ProductFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		conds = append(conds, "title ILIKE "+arg("%"+escapeLike(q)+"%"))
	}
	firstPrice := "(variants->0->>'price')::numeric"
	if f.MinPrice != nil || f.MaxPrice != nil {
		conds = append(conds, "jsonb_array_length(variants) > 0")
	}
	if f.MinPrice != nil {
		conds = append(conds, firstPrice+" >= "+arg(f.MinPrice.String()))
	}
	if f.MaxPrice != nil {
		conds = append(conds, firstPrice+" <= "+arg(f.MaxPrice.String()))
	}
	if len(f.Vendors) > 0 {
		conds = append(conds, "vendor = ANY("+arg(pq.Array(f.Vendors))+")")
	}
	if len(f.Categories) > 0 {
		conds = append(conds, "category = ANY("+arg(pq.Array(f.Categories))+")")
	}
	if len(f.Tags) > 0 {
		conds = append(conds, "tags && "+arg(pq.Array(f.Tags)))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
