package views

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
)

// DetailSource is the part of the gateway the detail view needs.
type DetailSource interface {
	GetOrder(ctx context.Context, orderID int) (*orders.Detail, error)
	UpdateOrderContacts(ctx context.Context, orderID int, upd orders.ContactsUpdate) error
	AddOrderItem(ctx context.Context, orderID int, item orders.ItemRequest) error
	UpdateOrderItem(ctx context.Context, orderID, seqID int, upd orders.ItemUpdate) error
	DeleteOrderItem(ctx context.Context, orderID, seqID int) error
}

// Refresher reloads the order list after a change.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Detail is the single-order view. It keeps nothing between openings.
type Detail struct {
	src  DetailSource
	list Refresher

	mu      sync.RWMutex
	visible bool
	order   *orders.Detail
}

// NewDetail returns a hidden detail view.
func NewDetail(src DetailSource, list Refresher) *Detail {
	return &Detail{src: src, list: list}
}

// Open fetches the order and shows it.
func (d *Detail) Open(ctx context.Context, orderID int) error {
	o, err := d.src.GetOrder(ctx, orderID)
	if err != nil {
		slog.Warn("load order detail failed", "order_id", orderID, "error", err)
		d.Close()
		return alertFor(err, gateway.MsgLoadDetailFailed, true)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible, d.order = true, o
	return nil
}

// Close hides the view and drops the fetched order.
func (d *Detail) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible, d.order = false, nil
}

// Current returns the shown order, if any.
func (d *Detail) Current() (*orders.Detail, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.order, d.visible
}

// UpdateContacts changes the shipping and billing contact mechanisms.
func (d *Detail) UpdateContacts(ctx context.Context, orderID int, shipping, billing string) error {
	upd := orders.ContactsUpdate{
		ShippingContactMechID: orders.ParseInt(shipping),
		BillingContactMechID:  orders.ParseInt(billing),
	}
	return d.mutate(ctx, orderID, gateway.MsgUpdateOrderFailed, func() error {
		return d.src.UpdateOrderContacts(ctx, orderID, upd)
	})
}

// AddItem appends a line to the shown order.
func (d *Detail) AddItem(ctx context.Context, orderID int, productID, quantity, status string) error {
	item := orders.ItemRequest{
		ProductID: orders.ParseInt(productID),
		Quantity:  orders.ParseInt(quantity),
		Status:    orders.Status(status),
	}
	return d.mutate(ctx, orderID, gateway.MsgAddItemFailed, func() error {
		return d.src.AddOrderItem(ctx, orderID, item)
	})
}

// UpdateItem changes quantity and status of one line.
func (d *Detail) UpdateItem(ctx context.Context, orderID, seqID int, quantity, status string) error {
	upd := orders.ItemUpdate{Quantity: orders.ParseInt(quantity), Status: orders.Status(status)}
	return d.mutate(ctx, orderID, gateway.MsgUpdateItemFailed, func() error {
		return d.src.UpdateOrderItem(ctx, orderID, seqID, upd)
	})
}

// RemoveItem deletes one line.
func (d *Detail) RemoveItem(ctx context.Context, orderID, seqID int) error {
	return d.mutate(ctx, orderID, gateway.MsgRemoveItemFailed, func() error {
		return d.src.DeleteOrderItem(ctx, orderID, seqID)
	})
}

// mutate runs call and, on success, re-fetches the order and the list so
// that nothing shown is edited locally.
func (d *Detail) mutate(ctx context.Context, orderID int, fallback string, call func() error) error {
	if err := call(); err != nil {
		slog.Warn("order change failed", "order_id", orderID, "error", err)
		return alertFor(err, fallback, false)
	}
	if d.list != nil {
		if err := d.list.Refresh(ctx); errors.Is(err, gateway.ErrUnauthorized) {
			return err
		} else if err != nil {
			slog.Warn("list refresh after change failed", "order_id", orderID, "error", err)
		}
	}
	return d.Open(ctx, orderID)
}
