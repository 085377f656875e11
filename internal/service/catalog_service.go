package service

import (
	"context"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/broker"
	"partyshop/internal/models"
	"partyshop/internal/storefront"
	"partyshop/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultProductCacheTTL is used when the configured TTL is not positive
const DefaultProductCacheTTL = 5 * time.Minute

// CatalogService handles product business logic
type CatalogService struct {
	products       ProductRepository
	categories     CategoryRepository
	cache          ProductCache
	eventPublisher CatalogPublisher
	cacheTTL       time.Duration
	logger         *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	products ProductRepository,
	categories CategoryRepository,
	cache ProductCache,
	eventPublisher CatalogPublisher,
	cacheTTL time.Duration,
) *CatalogService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultProductCacheTTL
	}
	return &CatalogService{
		products:       products,
		categories:     categories,
		cache:          cache,
		eventPublisher: eventPublisher,
		cacheTTL:       cacheTTL,
		logger:         util.GetLogger(),
	}
}

// ProductInput carries the fields of a create or a partial update. Nil fields are left unchanged.
type ProductInput struct {
	Title         *string                 `json:"title"`
	Handle        *string                 `json:"handle"`
	Description   *string                 `json:"description"`
	Vendor        *string                 `json:"vendor"`
	Category      *string                 `json:"category"`
	Type          *string                 `json:"type"`
	Tags          *[]string               `json:"tags"`
	Colors        *[]models.Color         `json:"colors"`
	Variants      *[]models.Variant       `json:"variants"`
	Images        *[]models.Image         `json:"images"`
	ColorImages   *[]models.ColorImages   `json:"colorImages"`
	VariantImages *[]models.VariantImages `json:"variantImages"`
}

func (in ProductInput) applyTo(p *models.Product) {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Handle != nil {
		p.Handle = *in.Handle
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Vendor != nil {
		p.Vendor = *in.Vendor
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Type != nil {
		p.Type = *in.Type
	}
	if in.Tags != nil {
		p.Tags = *in.Tags
	}
	if in.Colors != nil {
		p.Colors = *in.Colors
	}
	if in.Variants != nil {
		p.Variants = *in.Variants
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if in.ColorImages != nil {
		p.ColorImages = *in.ColorImages
	}
	if in.VariantImages != nil {
		p.VariantImages = *in.VariantImages
	}
}

// CreateProduct validates and persists a new product document
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	p := &models.Product{ID: uuid.New().String()}
	in.applyTo(p)
	for i := range p.Colors {
		if p.Colors[i].ID == "" {
			p.Colors[i].ID = uuid.New().String()
		}
	}
	if p.Handle == "" {
		p.Handle = slugify(p.Title)
	}
	stampOptions(p)

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.ensureHandleFree(ctx, p.Handle, ""); err != nil {
		return nil, err
	}

	var category *models.Category
	if p.Category != "" {
		c, err := s.categories.GetCategoryByName(ctx, p.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}

	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	// the document is already stored; a membership failure must not turn a retry into a handle conflict
	if category != nil {
		if err := s.categories.AddCategoryProduct(ctx, category.ID, p.ID); err != nil {
			s.logger.Error("Failed to add product to category",
				zap.String("product_id", p.ID),
				zap.String("category", category.Name),
				zap.Error(err))
		}
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("handle", p.Handle),
		zap.Int("variants", len(p.Variants)))

	s.publishProductChanged(ctx, models.EventTypeProductCreated, p)
	return p, nil
}

// UpdateProduct applies a partial update and re-validates the whole document
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCategory := p.Category
	oldHandle := p.Handle

	in.applyTo(p)
	p.ID = id
	for i := range p.Colors {
		if p.Colors[i].ID == "" {
			p.Colors[i].ID = uuid.New().String()
		}
	}
	if p.Handle == "" {
		p.Handle = slugify(p.Title)
	}
	stampOptions(p)

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if p.Handle != oldHandle {
		if err := s.ensureHandleFree(ctx, p.Handle, id); err != nil {
			return nil, err
		}
	}

	var newCategory *models.Category
	if p.Category != oldCategory && p.Category != "" {
		c, err := s.categories.GetCategoryByName(ctx, p.Category)
		if err != nil {
			return nil, err
		}
		newCategory = c
	}

	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	if p.Category != oldCategory {
		s.moveCategory(ctx, p.ID, oldCategory, newCategory)
	}

	s.invalidate(ctx, id)
	util.ProductsUpdatedTotal.Inc()
	s.logger.Info("Product updated", zap.String("product_id", id))

	s.publishProductChanged(ctx, models.EventTypeProductUpdated, p)
	return p, nil
}

// DeleteProduct hard-deletes a product and removes it from every category
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	util.ProductsDeletedTotal.Inc()
	s.logger.Info("Product deleted", zap.String("product_id", id))

	s.publishProductChanged(ctx, models.EventTypeProductDeleted, &models.Product{ID: id})
	return nil
}

// FindByID returns a product, reading through the cache
func (s *CatalogService) FindByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FindByID")
	defer span.End()

	cached, err := s.cache.GetProduct(ctx, id)
	if err != nil {
		s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}
	if cached != nil {
		util.CatalogCacheHitsTotal.Inc()
		return cached, nil
	}
	util.CatalogCacheMissesTotal.Inc()

	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetProduct(ctx, p, s.cacheTTL); err != nil {
		s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
	}
	return p, nil
}

// FindByHandle returns a product by its unique handle
func (s *CatalogService) FindByHandle(ctx context.Context, handle string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FindByHandle")
	defer span.End()

	return s.products.GetProductByHandle(ctx, handle)
}

// FindAll lists products matching filter, newest first
func (s *CatalogService) FindAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FindAll")
	defer span.End()

	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, apperr.Validation("minPrice must not exceed maxPrice")
	}
	return s.products.ListProducts(ctx, filter)
}

// StorefrontView is the product detail page state for one selection
type StorefrontView struct {
	storefront.View
	ProductID string         `json:"productId"`
	Title     string         `json:"title"`
	Handle    string         `json:"handle"`
	Colors    []models.Color `json:"colors"`
}

// Storefront resolves the active variant, gallery and pricing for an optional color/size selection
func (s *CatalogService) Storefront(ctx context.Context, id, color, size string) (*StorefrontView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Storefront")
	defer span.End()

	p, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sel, err := storefront.Select(p, color, size)
	if err != nil {
		return nil, err
	}

	return &StorefrontView{
		View:      storefront.Resolve(p, sel),
		ProductID: p.ID,
		Title:     p.Title,
		Handle:    p.Handle,
		Colors:    p.Colors,
	}, nil
}

// InvalidateCache drops a product from this instance's cache tier. The catalog event
// worker calls it for writes made on any instance; the writer already cleared the shared tier.
func (s *CatalogService) InvalidateCache(_ context.Context, id string) error {
	s.cache.EvictLocal(id)
	return nil
}

func (s *CatalogService) ensureHandleFree(ctx context.Context, handle, selfID string) error {
	existing, err := s.products.GetProductByHandle(ctx, handle)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return apperr.Conflict("handle %q already exists", handle)
	}
	return nil
}

// moveCategory keeps category membership in step with the product's category field.
func (s *CatalogService) moveCategory(ctx context.Context, productID, oldName string, newCategory *models.Category) {
	if oldName != "" {
		old, err := s.categories.GetCategoryByName(ctx, oldName)
		if err == nil {
			err = s.categories.RemoveCategoryProduct(ctx, old.ID, productID)
		}
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			s.logger.Error("Failed to remove product from category",
				zap.String("product_id", productID),
				zap.String("category", oldName),
				zap.Error(err))
		}
	}
	if newCategory != nil {
		if err := s.categories.AddCategoryProduct(ctx, newCategory.ID, productID); err != nil {
			s.logger.Error("Failed to add product to category",
				zap.String("product_id", productID),
				zap.String("category", newCategory.Name),
				zap.Error(err))
		}
	}
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if err := s.cache.InvalidateProduct(ctx, id); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

func (s *CatalogService) publishProductChanged(ctx context.Context, eventType string, p *models.Product) {
	event := &models.ProductChangedEvent{
		BaseEvent: broker.NewBaseEvent(eventType),
		ProductID: p.ID,
		Handle:    p.Handle,
	}
	if err := s.eventPublisher.PublishProductChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish product event",
			zap.String("type", eventType),
			zap.String("product_id", p.ID),
			zap.Error(err))
	}
}
