package service

import (
	"context"
	"time"

	"partyshop/internal/models"
)

// ProductRepository is the product document store
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductByHandle(ctx context.Context, handle string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
}

// CategoryRepository is the category store
type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	RenameCategory(ctx context.Context, id, oldName, newName string) error
	DeleteCategory(ctx context.Context, id string) (*models.Category, error)
	AddCategoryProduct(ctx context.Context, categoryID, productID string) error
	RemoveCategoryProduct(ctx context.Context, categoryID, productID string) error
}

// OrderRepository is the order store
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
}

// AddressRepository stores users' saved shipping addresses
type AddressRepository interface {
	ListAddresses(ctx context.Context, userID string) ([]models.Address, error)
	AddAddress(ctx context.Context, userID string, addr models.Address) error
}

// ProductCache is a read-through cache of product documents. GetProduct returns nil on a miss.
// InvalidateProduct clears every tier; EvictLocal clears only this instance's tier.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error
	InvalidateProduct(ctx context.Context, id string) error
	EvictLocal(id string)
}

// Locker guards a critical section across instances
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// CatalogPublisher publishes catalog events
type CatalogPublisher interface {
	PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error
	PublishCategoryDeleted(ctx context.Context, event *models.CategoryDeletedEvent) error
}

// OrderPublisher publishes order events
type OrderPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}
