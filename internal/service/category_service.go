package service

import (
	"context"
	"strings"

	"partyshop/internal/apperr"
	"partyshop/internal/broker"
	"partyshop/internal/models"
	"partyshop/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryService handles category business logic
type CategoryService struct {
	categories     CategoryRepository
	products       ProductRepository
	cache          ProductCache
	eventPublisher CatalogPublisher
	logger         *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(
	categories CategoryRepository,
	products ProductRepository,
	cache ProductCache,
	eventPublisher CatalogPublisher,
) *CategoryService {
	return &CategoryService{
		categories:     categories,
		products:       products,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CategoryInput is the body of category create and rename
type CategoryInput struct {
	Name string `json:"name" binding:"required"`
}

// Create adds a category. Names are unique.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Create")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}

	c := &models.Category{ID: uuid.New().String(), Name: name, Products: []string{}}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	util.CategoriesCreatedTotal.Inc()
	s.logger.Info("Category created", zap.String("category_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

// List returns all categories
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.List")
	defer span.End()

	return s.categories.ListCategories(ctx)
}

// Get returns one category
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Get")
	defer span.End()

	return s.categories.GetCategoryByID(ctx, id)
}

// Products returns the member documents of a category in membership order.
// Ids that no longer resolve to a product are skipped.
func (s *CategoryService) Products(ctx context.Context, id string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Products")
	defer span.End()

	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	found, err := s.products.GetProductsByIDs(ctx, c.Products)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	for _, pid := range c.Products {
		if p, ok := byID[pid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Rename changes a category's name; member products follow the new name
func (s *CategoryService) Rename(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.Rename")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}

	c, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Name == name {
		return c, nil
	}

	if err := s.categories.RenameCategory(ctx, id, c.Name, name); err != nil {
		return nil, err
	}
	s.invalidateAll(ctx, c.Products)

	s.logger.Info("Category renamed",
		zap.String("category_id", id),
		zap.String("from", c.Name),
		zap.String("to", name))

	return s.categories.GetCategoryByID(ctx, id)
}

// Delete removes a category. Its products are kept with an empty category.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CategoryService.Delete")
	defer span.End()

	c, err := s.categories.DeleteCategory(ctx, id)
	if err != nil {
		return err
	}
	s.invalidateAll(ctx, c.Products)

	util.CategoriesDeletedTotal.Inc()
	s.logger.Info("Category deleted",
		zap.String("category_id", id),
		zap.Int("products", len(c.Products)))

	event := &models.CategoryDeletedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeCategoryDeleted),
		CategoryID: c.ID,
		Name:       c.Name,
		ProductIDs: c.Products,
	}
	if err := s.eventPublisher.PublishCategoryDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish CategoryDeleted event", zap.Error(err))
	}
	return nil
}

// AddProduct puts an existing product into a category
func (s *CategoryService) AddProduct(ctx context.Context, categoryID, productID string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.AddProduct")
	defer span.End()

	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.categories.AddCategoryProduct(ctx, categoryID, productID); err != nil {
		return nil, err
	}
	return s.categories.GetCategoryByID(ctx, categoryID)
}

// RemoveProduct takes a product out of a category
func (s *CategoryService) RemoveProduct(ctx context.Context, categoryID, productID string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.RemoveProduct")
	defer span.End()

	if err := s.categories.RemoveCategoryProduct(ctx, categoryID, productID); err != nil {
		return nil, err
	}
	return s.categories.GetCategoryByID(ctx, categoryID)
}

func (s *CategoryService) invalidateAll(ctx context.Context, productIDs []string) {
	for _, id := range productIDs {
		if err := s.cache.InvalidateProduct(ctx, id); err != nil {
			s.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
		}
	}
}
