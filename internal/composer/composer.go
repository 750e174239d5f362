package composer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
	"github.com/waggishPlayer/hot-wax/internal/refdata"
)

// Phase is the composer's position in its open/submit cycle.
type Phase string

// Composer phases
const (
	PhaseClosed     Phase = "closed"
	PhaseOpen       Phase = "open"
	PhaseSubmitting Phase = "submitting"
)

// DateLayout is the order date format the backend expects.
const DateLayout = "2006-01-02"

// MsgConnection is shown inline when the backend cannot be reached.
const MsgConnection = "Connection error. Please try again."

// ErrNotOpen is returned when the draft is touched while the form is closed
// or already being submitted.
var ErrNotOpen = errors.New("order form is not open")

// Creator sends the assembled draft.
type Creator interface {
	CreateOrder(ctx context.Context, req orders.CreateRequest) (*orders.Detail, error)
}

// Catalog is the reference data the selectors are filled from.
type Catalog interface {
	EnsureLoaded(ctx context.Context)
	Products() []orders.Product
	CustomerOptions(selected string) []refdata.Option
	ProductOptions(selected string) []refdata.Option
	ContactOptions(selected string) []refdata.Option
}

// Refresher reloads the order list after a successful submit.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Header holds the order-level form fields exactly as selected.
type Header struct {
	CustomerID            string
	OrderDate             string
	ShippingContactMechID string
	BillingContactMechID  string
}

// Row is one rendered item row. ID is stable for the lifetime of the row.
type Row struct {
	ID        string
	ProductID string
	Quantity  string
	Status    string
}

// FormError is a failed submit; Message is shown inside the form.
type FormError struct {
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }
func (e *FormError) Unwrap() error { return e.Err }

// Snapshot is a consistent copy of the form for rendering.
type Snapshot struct {
	Phase  Phase
	Header Header
	Rows   []Row
	Error  string
}

// Composer owns the single in-progress draft order.
type Composer struct {
	creator Creator
	catalog Catalog
	list    Refresher

	nowFunc func() time.Time
	newID   func() string

	mu     sync.Mutex
	phase  Phase
	header Header
	rows   []Row
	errMsg string
}

// New returns a closed composer.
func New(creator Creator, catalog Catalog, list Refresher) *Composer {
	return &Composer{
		creator: creator,
		catalog: catalog,
		list:    list,
		nowFunc: time.Now,
		newID:   uuid.NewString,
		phase:   PhaseClosed,
	}
}

// Open starts a fresh draft dated today and makes sure the selectors have
// something to show.
func (c *Composer) Open(ctx context.Context) {
	c.catalog.EnsureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.header = Header{OrderDate: c.nowFunc().Format(DateLayout)}
	c.rows = nil
	c.errMsg = ""
	c.phase = PhaseOpen
}

// AddRow appends an item row defaulted to the first cached product,
// quantity 1 and PENDING. It returns the new row's ID.
func (c *Composer) AddRow() (string, error) {
	var product string
	if ps := c.catalog.Products(); len(ps) > 0 {
		product = strconv.Itoa(ps[0].ProductID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseOpen {
		return "", ErrNotOpen
	}
	row := Row{ID: c.newID(), ProductID: product, Quantity: "1", Status: string(orders.StatusPending)}
	c.rows = append(c.rows, row)
	return row.ID, nil
}

// RemoveRow drops the row with the given ID. Unknown IDs are ignored.
func (c *Composer) RemoveRow(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseOpen {
		return ErrNotOpen
	}
	for i, r := range c.rows {
		if r.ID == id {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			break
		}
	}
	return nil
}

// Sync copies submitted form values into the draft. Rows are matched by ID;
// values for rows the draft does not know are dropped.
func (c *Composer) Sync(h Header, rows []Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseOpen {
		return ErrNotOpen
	}
	c.header = h
	byID := make(map[string]Row, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for i, r := range c.rows {
		if in, ok := byID[r.ID]; ok {
			c.rows[i] = Row{ID: r.ID, ProductID: in.ProductID, Quantity: in.Quantity, Status: in.Status}
		}
	}
	return nil
}

// Submit sends one item per row. On success the draft is discarded, the list
// refreshed and the created order returned. On failure the form stays open
// with the draft intact and the error is also recorded for display.
func (c *Composer) Submit(ctx context.Context) (*orders.Detail, error) {
	c.mu.Lock()
	if c.phase != PhaseOpen {
		c.mu.Unlock()
		return nil, ErrNotOpen
	}
	c.phase = PhaseSubmitting
	c.errMsg = ""
	req := buildRequest(c.header, c.rows)
	c.mu.Unlock()

	created, err := c.creator.CreateOrder(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			// the logout hook has already reset the form
			return nil, err
		}
		msg := gateway.Message(err, gateway.MsgCreateOrderFailed)
		if gateway.IsConnection(err) {
			msg = MsgConnection
		}
		slog.Warn("create order failed", "items", len(req.Items), "error", err)

		c.mu.Lock()
		if c.phase == PhaseSubmitting {
			c.phase, c.errMsg = PhaseOpen, msg
		}
		c.mu.Unlock()
		return nil, &FormError{Message: msg, Err: err}
	}

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	if created != nil {
		slog.Info("order created", "order_id", created.OrderID, "items", len(req.Items))
	}
	if c.list != nil {
		if err := c.list.Refresh(ctx); err != nil {
			slog.Warn("list refresh after create failed", "error", err)
		}
	}
	return created, nil
}

// Cancel discards the draft without sending anything.
func (c *Composer) Cancel() {
	c.Reset()
}

// Reset closes the form and forgets the draft.
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Composer) resetLocked() {
	c.phase = PhaseClosed
	c.header = Header{}
	c.rows = nil
	c.errMsg = ""
}

// Snapshot copies the current form.
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:  c.phase,
		Header: c.header,
		Rows:   append([]Row(nil), c.rows...),
		Error:  c.errMsg,
	}
}

// CustomerOptions fills the customer selector.
func (c *Composer) CustomerOptions() []refdata.Option {
	return c.catalog.CustomerOptions(c.Snapshot().Header.CustomerID)
}

// ShippingOptions fills the shipping contact selector.
func (c *Composer) ShippingOptions() []refdata.Option {
	return c.catalog.ContactOptions(c.Snapshot().Header.ShippingContactMechID)
}

// BillingOptions fills the billing contact selector.
func (c *Composer) BillingOptions() []refdata.Option {
	return c.catalog.ContactOptions(c.Snapshot().Header.BillingContactMechID)
}

// ProductOptions fills the product selector of one row.
func (c *Composer) ProductOptions(rowID string) []refdata.Option {
	var selected string
	for _, r := range c.Snapshot().Rows {
		if r.ID == rowID {
			selected = r.ProductID
			break
		}
	}
	return c.catalog.ProductOptions(selected)
}

func buildRequest(h Header, rows []Row) orders.CreateRequest {
	items := make([]orders.ItemRequest, 0, len(rows))
	for _, r := range rows {
		items = append(items, orders.ItemRequest{
			ProductID: orders.ParseInt(r.ProductID),
			Quantity:  orders.ParseInt(r.Quantity),
			Status:    orders.Status(r.Status),
		})
	}
	return orders.CreateRequest{
		CustomerID:            orders.ParseInt(h.CustomerID),
		OrderDate:             h.OrderDate,
		ShippingContactMechID: orders.ParseInt(h.ShippingContactMechID),
		BillingContactMechID:  orders.ParseInt(h.BillingContactMechID),
		Items:                 items,
	}
}
