package refdata

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/waggishPlayer/hot-wax/internal/orders"
)

// Placeholder is the label of the first, empty entry of every selector.
const Placeholder = "Select..."

// Fetcher loads the three reference sets; gateway.Client implements it.
type Fetcher interface {
	ListCustomers(ctx context.Context) ([]orders.Customer, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
	ListContacts(ctx context.Context) ([]orders.ContactMech, error)
}

// Option is one entry of a rendered selection control.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Cache holds the last fetched customers, products and contact mechanisms.
type Cache struct {
	fetcher Fetcher

	// loadMu serializes loads so concurrent callers share one fetch round.
	loadMu sync.Mutex

	mu        sync.RWMutex
	gen       uint64 // bumped by Reset
	customers []orders.Customer
	products  []orders.Product
	contacts  []orders.ContactMech
}

// NewCache returns an empty cache backed by fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher}
}

// EnsureLoaded fetches all three sets concurrently unless customers are
// already cached. A failed fetch leaves that set empty; it never returns an
// error and never publishes a partial update.
func (c *Cache) EnsureLoaded(ctx context.Context) {
	if c.loaded() {
		return
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.loaded() {
		return
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	var (
		g         errgroup.Group
		customers []orders.Customer
		products  []orders.Product
		contacts  []orders.ContactMech
	)
	// failures are logged and leave that set empty; no goroutine returns an
	// error, so one failed fetch never affects the others
	g.Go(func() error {
		var err error
		if customers, err = c.fetcher.ListCustomers(ctx); err != nil {
			slog.Warn("reference fetch failed", "resource", "customers", "error", err)
			customers = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = c.fetcher.ListProducts(ctx); err != nil {
			slog.Warn("reference fetch failed", "resource", "products", "error", err)
			products = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if contacts, err = c.fetcher.ListContacts(ctx); err != nil {
			slog.Warn("reference fetch failed", "resource", "contacts", "error", err)
			contacts = nil
		}
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// reset while fetching, e.g. a logout; the result belongs to the old session
		slog.Debug("reference data discarded after reset")
		return
	}
	c.customers, c.products, c.contacts = customers, products, contacts
	slog.Debug("reference data loaded", "customers", len(customers), "products", len(products), "contacts", len(contacts))
}

func (c *Cache) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.customers) > 0
}

// Reset drops everything; the next EnsureLoaded fetches again. A load in
// flight when Reset runs does not publish its result.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.customers, c.products, c.contacts = nil, nil, nil
}

// Customers returns a copy of the cached customers in fetch order.
func (c *Cache) Customers() []orders.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]orders.Customer(nil), c.customers...)
}

// Products returns a copy of the cached products in fetch order.
func (c *Cache) Products() []orders.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]orders.Product(nil), c.products...)
}

// Contacts returns a copy of the cached contact mechanisms in fetch order.
func (c *Cache) Contacts() []orders.ContactMech {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]orders.ContactMech(nil), c.contacts...)
}

// CustomerOptions fills a customer selector.
func (c *Cache) CustomerOptions(selected string) []Option {
	return Populate(c.Customers(), func(cu orders.Customer) int { return cu.CustomerID }, CustomerLabel, selected)
}

// ProductOptions fills a product selector.
func (c *Cache) ProductOptions(selected string) []Option {
	return Populate(c.Products(), func(p orders.Product) int { return p.ProductID }, ProductLabel, selected)
}

// ContactOptions fills a shipping or billing selector; both roles share the pool.
func (c *Cache) ContactOptions(selected string) []Option {
	return Populate(c.Contacts(), func(cm orders.ContactMech) int { return cm.ContactMechID }, ContactLabel, selected)
}

// Populate builds a selector: the placeholder followed by one entry per
// record, keeping record order. selected marks the matching value.
func Populate[T any](records []T, value func(T) int, label func(T) string, selected string) []Option {
	opts := make([]Option, 0, len(records)+1)
	opts = append(opts, Option{Value: "", Label: Placeholder, Selected: selected == ""})
	for _, rec := range records {
		v := strconv.Itoa(value(rec))
		opts = append(opts, Option{Value: v, Label: label(rec), Selected: v == selected})
	}
	return opts
}

// CustomerLabel renders "First Last".
func CustomerLabel(c orders.Customer) string { return c.FirstName + " " + c.LastName }

// ProductLabel renders "Name (Color, Size)".
func ProductLabel(p orders.Product) string {
	return p.ProductName + " (" + p.Color + ", " + p.Size + ")"
}

// ContactLabel renders "Street, City".
func ContactLabel(cm orders.ContactMech) string { return cm.StreetAddress + ", " + cm.City }
