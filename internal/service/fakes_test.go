package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
)

func cloneProduct(p *models.Product) *models.Product {
	raw, _ := json.Marshal(p)
	var out models.Product
	_ = json.Unmarshal(raw, &out)
	return &out
}

type fakeProducts struct {
	mu         sync.Mutex
	byID       map[string]*models.Product
	categories *fakeCategories
	seq        int
}

func newFakeProducts(categories *fakeCategories) *fakeProducts {
	return &fakeProducts{byID: make(map[string]*models.Product), categories: categories}
}

func (f *fakeProducts) CreateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Handle == p.Handle {
			return apperr.Conflict("handle %q already exists", p.Handle)
		}
	}
	f.seq++
	p.CreatedAt = time.Unix(int64(f.seq), 0)
	p.UpdatedAt = p.CreatedAt
	f.byID[p.ID] = cloneProduct(p)
	return nil
}

func (f *fakeProducts) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("product not found: %s", id)
	}
	return cloneProduct(p), nil
}

func (f *fakeProducts) GetProductByHandle(_ context.Context, handle string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Handle == handle {
			return cloneProduct(p), nil
		}
	}
	return nil, apperr.NotFound("product not found: %s", handle)
}

func (f *fakeProducts) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, *cloneProduct(p))
		}
	}
	return out, nil
}

func (f *fakeProducts) UpdateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return apperr.NotFound("product not found: %s", p.ID)
	}
	f.byID[p.ID] = cloneProduct(p)
	return nil
}

func (f *fakeProducts) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return apperr.NotFound("product not found: %s", id)
	}
	delete(f.byID, id)
	if f.categories != nil {
		f.categories.dropProduct(id)
	}
	return nil
}

func (f *fakeProducts) ListProducts(_ context.Context, _ models.ProductFilter) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeCategories struct {
	mu     sync.Mutex
	byID   map[string]*models.Category
	addErr error
}

func newFakeCategories() *fakeCategories {
	return &fakeCategories{byID: make(map[string]*models.Category)}
}

func copyCategory(c *models.Category) *models.Category {
	out := *c
	out.Products = append([]string{}, c.Products...)
	return &out
}

func (f *fakeCategories) dropProduct(productID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		c.Products = without(c.Products, productID)
	}
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func (f *fakeCategories) CreateCategory(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Name == c.Name {
			return apperr.Conflict("category %s already exists", c.Name)
		}
	}
	f.byID[c.ID] = copyCategory(c)
	return nil
}

func (f *fakeCategories) ListCategories(_ context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Category, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, *copyCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCategories) GetCategoryByID(_ context.Context, id string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("category not found: %s", id)
	}
	return copyCategory(c), nil
}

func (f *fakeCategories) GetCategoryByName(_ context.Context, name string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.Name == name {
			return copyCategory(c), nil
		}
	}
	return nil, apperr.NotFound("category not found: %s", name)
}

func (f *fakeCategories) RenameCategory(_ context.Context, id, _, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return apperr.NotFound("category not found: %s", id)
	}
	for _, other := range f.byID {
		if other.Name == newName && other.ID != id {
			return apperr.Conflict("category %s already exists", newName)
		}
	}
	c.Name = newName
	return nil
}

func (f *fakeCategories) DeleteCategory(_ context.Context, id string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("category not found: %s", id)
	}
	delete(f.byID, id)
	return copyCategory(c), nil
}

func (f *fakeCategories) AddCategoryProduct(_ context.Context, categoryID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	c, ok := f.byID[categoryID]
	if !ok {
		return apperr.NotFound("category not found: %s", categoryID)
	}
	for _, id := range c.Products {
		if id == productID {
			return nil
		}
	}
	c.Products = append(c.Products, productID)
	return nil
}

func (f *fakeCategories) RemoveCategoryProduct(_ context.Context, categoryID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[categoryID]
	if !ok {
		return apperr.NotFound("category not found: %s", categoryID)
	}
	c.Products = without(c.Products, productID)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[string]*models.Product
	invalidated []string
	evicted     []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: make(map[string]*models.Product)}
}

func (f *fakeCache) GetProduct(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (f *fakeCache) SetProduct(_ context.Context, p *models.Product, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = cloneProduct(p)
	return nil
}

func (f *fakeCache) InvalidateProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	f.invalidated = append(f.invalidated, id)
	return nil
}

func (f *fakeCache) EvictLocal(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	f.evicted = append(f.evicted, id)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) record(eventType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakePublisher) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakePublisher) PublishProductChanged(_ context.Context, e *models.ProductChangedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishCategoryDeleted(_ context.Context, e *models.CategoryDeletedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	f.record(e.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	f.record(e.EventType)
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	byID   map[int64]*models.Order
	nextID int64
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byID: make(map[int64]*models.Order)}
}

func (f *fakeOrders) CreateOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.IdempotencyKey == order.IdempotencyKey {
			return apperr.Conflict("order with idempotency key %s already exists", order.IdempotencyKey)
		}
	}
	f.nextID++
	order.ID = f.nextID
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	f.byID[order.ID] = &stored
	return nil
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("order not found: %d", id)
	}
	out := *o
	return &out, nil
}

func (f *fakeOrders) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.IdempotencyKey == key {
			out := *o
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return apperr.NotFound("order not found: %d", id)
	}
	o.Status = status
	return nil
}

func (f *fakeOrders) ListOrders(_ context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.byID {
		if userID == "" || o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeAddresses struct {
	mu     sync.Mutex
	byUser map[string][]models.Address
}

func newFakeAddresses() *fakeAddresses {
	return &fakeAddresses{byUser: make(map[string][]models.Address)}
}

func (f *fakeAddresses) ListAddresses(_ context.Context, userID string) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Address{}, f.byUser[userID]...), nil
}

func (f *fakeAddresses) AddAddress(_ context.Context, userID string, addr models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = append(f.byUser[userID], addr)
	return nil
}
