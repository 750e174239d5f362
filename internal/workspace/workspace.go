package workspace

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waggishPlayer/hot-wax/internal/activity"
	"github.com/waggishPlayer/hot-wax/internal/composer"
	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
	"github.com/waggishPlayer/hot-wax/internal/refdata"
	"github.com/waggishPlayer/hot-wax/internal/session"
	"github.com/waggishPlayer/hot-wax/internal/views"
)

// Options are shared by every workspace a Registry creates.
type Options struct {
	BackendURL string
	HTTPClient *http.Client
	Observer   gateway.Observer
	Activity   activity.Sink // nil disables the activity feed
}

// Workspace is the client state of one signed-in browser session. It wires
// every component to one credential, so a 401 from any call resets them all.
type Workspace struct {
	ID          string
	Credentials *session.Credentials
	Guard       *session.Guard
	Gateway     *gateway.Client
	RefData     *refdata.Cache
	Orders      *views.List
	Detail      *views.Detail
	Composer    *composer.Composer

	activity activity.Sink
	nowFunc  func() time.Time
}

// New builds a signed-out workspace.
func New(id string, opts Options) *Workspace {
	w := &Workspace{
		ID:          id,
		Credentials: &session.Credentials{},
		activity:    opts.Activity,
		nowFunc:     time.Now,
	}
	w.Guard = session.NewGuard(w.Credentials)

	gwOpts := []gateway.Option{
		gateway.WithUnauthorizedHook(func() {
			slog.Info("credential rejected, signing out", "workspace", w.ID)
			w.Guard.Logout()
		}),
	}
	if opts.HTTPClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Observer != nil {
		gwOpts = append(gwOpts, gateway.WithObserver(opts.Observer))
	}
	w.Gateway = gateway.New(opts.BackendURL, w.Credentials, gwOpts...)

	w.RefData = refdata.NewCache(w.Gateway)
	w.Orders = views.NewList(w.Gateway)
	w.Detail = views.NewDetail(w.Gateway, w.Orders)
	w.Composer = composer.New(w.Gateway, w.RefData, w.Orders)

	w.Guard.OnLogout(w.reset)
	return w
}

func (w *Workspace) reset() {
	w.Composer.Reset()
	w.Detail.Close()
	w.Orders.Reset()
	w.RefData.Reset()
}

// SignIn logs in or registers and keeps the issued credential.
func (w *Workspace) SignIn(ctx context.Context, mode session.Mode, username, password string) error {
	return session.SignIn(ctx, w.Gateway, w.Credentials, mode, username, password)
}

// Logout discards the credential and every piece of client state.
func (w *Workspace) Logout() session.Intent {
	return w.Guard.Logout()
}

// Load populates the order list and the reference data independently. Only
// an unauthorized error is returned; other failures show in the list state.
func (w *Workspace) Load(ctx context.Context) error {
	// a plain Group: the list failing must not cancel the reference load
	var g errgroup.Group
	g.Go(func() error {
		if err := w.Orders.Refresh(ctx); errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		w.RefData.EnsureLoaded(ctx)
		return nil
	})
	return g.Wait()
}

// SubmitDraft submits the composer's draft and records the new order.
func (w *Workspace) SubmitDraft(ctx context.Context, requestID string) (*orders.Detail, error) {
	created, err := w.Composer.Submit(ctx)
	if err != nil {
		return nil, err
	}
	if created != nil {
		w.record(ctx, activity.KindOrderCreated, created.OrderID, requestID)
	}
	return created, nil
}

// DeleteOrder deletes after confirmation and records the deletion. A failed
// follow-up refresh is not an error here; the list state shows it.
func (w *Workspace) DeleteOrder(ctx context.Context, orderID int, confirm views.Confirmer, requestID string) error {
	confirmed := false
	err := w.Orders.Delete(ctx, orderID, func(prompt string) bool {
		confirmed = confirm != nil && confirm(prompt)
		return confirmed
	})

	var alert *views.Alert
	if !confirmed || errors.As(err, &alert) || errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}
	if cur, visible := w.Detail.Current(); visible && cur.OrderID == orderID {
		w.Detail.Close()
	}
	w.record(ctx, activity.KindOrderDeleted, orderID, requestID)
	return nil
}

// Changed records a successful maintenance call made through the detail view.
func (w *Workspace) Changed(ctx context.Context, orderID int, requestID string) {
	w.record(ctx, activity.KindOrderUpdated, orderID, requestID)
}

func (w *Workspace) record(ctx context.Context, kind string, orderID int, requestID string) {
	if w.activity == nil {
		return
	}
	ev := activity.NewEvent(kind, orderID, w.Credentials.DisplayName(), requestID, w.nowFunc())
	if err := w.activity.Publish(ctx, ev); err != nil {
		slog.Warn("activity publish failed", "kind", kind, "order_id", orderID, "error", err)
	}
}
