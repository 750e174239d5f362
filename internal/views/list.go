package views

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
)

// ListState is what the order list panel currently shows.
type ListState string

// List states
const (
	ListIdle         ListState = "idle"
	ListLoading      ListState = "loading"
	ListReady        ListState = "ready"
	ListEmpty        ListState = "empty"
	ListFailed       ListState = "failed"
	ListDisconnected ListState = "disconnected"
)

// Panel texts for the non-ready list states.
const (
	MsgLoadingOrders = "Loading orders..."
	MsgNoOrders      = "No orders found"
	MsgNoOrdersHint  = "Create your first order to get started"
	MsgOrdersError   = "Error loading orders"
	DeletePrompt     = "Are you sure you want to delete this order?"
)

// OrderSource is the part of the gateway the list needs.
type OrderSource interface {
	ListOrders(ctx context.Context) ([]orders.Summary, error)
	DeleteOrder(ctx context.Context, orderID int) error
}

// Confirmer asks the user a yes/no question and blocks until answered.
type Confirmer func(prompt string) bool

// ListSnapshot is a consistent copy of the list for rendering.
type ListSnapshot struct {
	State   ListState
	Message string
	Orders  []orders.Summary
}

// List is the order list view.
type List struct {
	src OrderSource

	mu      sync.RWMutex
	state   ListState
	message string
	orders  []orders.Summary
}

// NewList returns an idle list.
func NewList(src OrderSource) *List {
	return &List{src: src, state: ListIdle}
}

// Refresh reloads the whole collection. Failures keep the previous orders
// and only switch the panel to the error or connection state.
func (l *List) Refresh(ctx context.Context) error {
	l.setState(ListLoading, MsgLoadingOrders)

	got, err := l.src.ListOrders(ctx)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnauthorized):
			// the logout hook resets the list
		case gateway.IsConnection(err):
			l.setState(ListDisconnected, MsgConnection)
		default:
			l.setState(ListFailed, MsgOrdersError)
		}
		slog.Warn("order list refresh failed", "error", err)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = got
	if len(got) == 0 {
		l.state, l.message = ListEmpty, MsgNoOrders
	} else {
		l.state, l.message = ListReady, ""
	}
	return nil
}

func (l *List) setState(s ListState, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state, l.message = s, msg
}

// Snapshot copies the current list state.
func (l *List) Snapshot() ListSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ListSnapshot{
		State:   l.state,
		Message: l.message,
		Orders:  append([]orders.Summary(nil), l.orders...),
	}
}

// State returns the current panel state.
func (l *List) State() ListState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reset forgets every order and returns to idle.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state, l.message, l.orders = ListIdle, "", nil
}

// Delete removes an order after confirmation and refreshes the list. A
// declined confirmation does nothing. Delete failures leave the list
// untouched and come back as an *Alert. Once the order is gone a failed
// refresh only shows in the list state; unauthorized is still returned.
func (l *List) Delete(ctx context.Context, orderID int, confirm Confirmer) error {
	if confirm == nil || !confirm(DeletePrompt) {
		return nil
	}
	if err := l.src.DeleteOrder(ctx, orderID); err != nil {
		slog.Warn("delete order failed", "order_id", orderID, "error", err)
		if gateway.IsConnection(err) {
			return alertFor(err, MsgConnection, true)
		}
		return alertFor(err, gateway.MsgDeleteOrderFailed, true)
	}
	slog.Info("order deleted", "order_id", orderID)
	if err := l.Refresh(ctx); err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		slog.Warn("list refresh after delete failed", "order_id", orderID, "error", err)
	}
	return nil
}
