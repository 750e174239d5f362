package composer

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
	"github.com/waggishPlayer/hot-wax/internal/refdata"
)

type mockCreator struct {
	calls int
	last  orders.CreateRequest
	resp  *orders.Detail
	err   error
}

func (m *mockCreator) CreateOrder(ctx context.Context, req orders.CreateRequest) (*orders.Detail, error) {
	m.calls++
	m.last = req
	return m.resp, m.err
}

// stubFetcher is called from the cache's concurrent fetches; calls is atomic.
type stubFetcher struct {
	calls    int32
	products []orders.Product
}

func (s *stubFetcher) ListCustomers(ctx context.Context) ([]orders.Customer, error) {
	atomic.AddInt32(&s.calls, 1)
	return []orders.Customer{{CustomerID: 1, FirstName: "Ada", LastName: "Lovelace"}}, nil
}

func (s *stubFetcher) ListProducts(ctx context.Context) ([]orders.Product, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.products, nil
}

func (s *stubFetcher) ListContacts(ctx context.Context) ([]orders.ContactMech, error) {
	atomic.AddInt32(&s.calls, 1)
	return []orders.ContactMech{{ContactMechID: 5, StreetAddress: "1 Main St", City: "Springfield"}}, nil
}

type countingList struct{ calls int }

func (l *countingList) Refresh(ctx context.Context) error {
	l.calls++
	return nil
}

func newComposer(t *testing.T, creator *mockCreator) (*Composer, *stubFetcher, *countingList) {
	t.Helper()
	f := &stubFetcher{products: []orders.Product{{ProductID: 42, ProductName: "Shirt", Color: "Red", Size: "M"}}}
	list := &countingList{}
	c := New(creator, refdata.NewCache(f), list)
	c.nowFunc = func() time.Time { return time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) }
	return c, f, list
}

func TestOpen_InitializesDraft(t *testing.T) {
	c, _, _ := newComposer(t, &mockCreator{})
	c.Open(context.Background())

	snap := c.Snapshot()
	if snap.Phase != PhaseOpen {
		t.Fatalf("expected open, got %s", snap.Phase)
	}
	if snap.Header.OrderDate != "2024-05-01" {
		t.Fatalf("expected today's date, got %q", snap.Header.OrderDate)
	}
	if len(snap.Rows) != 0 {
		t.Fatalf("expected no rows")
	}
}

func TestOpen_TwiceFetchesReferenceDataOnce(t *testing.T) {
	c, f, _ := newComposer(t, &mockCreator{})
	c.Open(context.Background())
	c.Cancel()
	c.Open(context.Background())

	if got := atomic.LoadInt32(&f.calls); got != 3 {
		t.Fatalf("expected three reference fetches in total, got %d", got)
	}
}

func TestSubmit_DefaultRow(t *testing.T) {
	creator := &mockCreator{resp: &orders.Detail{Summary: orders.Summary{OrderID: 11}}}
	c, _, list := newComposer(t, creator)
	c.Open(context.Background())
	if _, err := c.AddRow(); err != nil {
		t.Fatalf("add row: %v", err)
	}

	created, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.OrderID != 11 {
		t.Fatalf("unexpected created order: %+v", created)
	}
	if creator.calls != 1 || len(creator.last.Items) != 1 {
		t.Fatalf("expected one call with one item, got %d calls, %d items", creator.calls, len(creator.last.Items))
	}
	it := creator.last.Items[0]
	if it.ProductID == nil || *it.ProductID != 42 || it.Quantity == nil || *it.Quantity != 1 || it.Status != orders.StatusPending {
		t.Fatalf("unexpected item: %+v", it)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseClosed || len(snap.Rows) != 0 {
		t.Fatalf("expected draft discarded, got %+v", snap)
	}
	if list.calls != 1 {
		t.Fatalf("expected list refresh, got %d", list.calls)
	}
}

func TestSubmit_ItemCountMatchesRows(t *testing.T) {
	creator := &mockCreator{resp: &orders.Detail{}}
	c, _, _ := newComposer(t, creator)
	c.Open(context.Background())

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id, _ := c.AddRow()
		ids = append(ids, id)
	}
	if err := c.RemoveRow(ids[1]); err != nil {
		t.Fatalf("remove row: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creator.last.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(creator.last.Items))
	}
}

func TestSync_CopiesRawValues(t *testing.T) {
	creator := &mockCreator{resp: &orders.Detail{}}
	c, _, _ := newComposer(t, creator)
	c.Open(context.Background())
	id, _ := c.AddRow()

	err := c.Sync(Header{CustomerID: "1", OrderDate: "2024-06-01", ShippingContactMechID: "5", BillingContactMechID: ""},
		[]Row{{ID: id, ProductID: "42", Quantity: "abc", Status: "SHIPPED"}, {ID: "stale", ProductID: "1"}})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := creator.last
	if req.CustomerID == nil || *req.CustomerID != 1 || req.OrderDate != "2024-06-01" {
		t.Fatalf("unexpected header: %+v", req)
	}
	if req.BillingContactMechID != nil {
		t.Fatalf("expected empty billing to be null")
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != nil || req.Items[0].Status != orders.StatusShipped {
		t.Fatalf("unexpected items: %+v", req.Items)
	}
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &gateway.RequestError{Status: http.StatusBadRequest, Message: "Customer not found"}, "Customer not found"},
		{"fallback", &gateway.RequestError{Status: http.StatusInternalServerError}, gateway.MsgCreateOrderFailed},
		{"connection", &gateway.ConnectionError{Err: errors.New("refused")}, MsgConnection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, list := newComposer(t, &mockCreator{err: tc.err})
			c.Open(context.Background())
			_, _ = c.AddRow()

			_, err := c.Submit(context.Background())
			var fe *FormError
			if !errors.As(err, &fe) || fe.Message != tc.want {
				t.Fatalf("expected form error %q, got %v", tc.want, err)
			}
			snap := c.Snapshot()
			if snap.Phase != PhaseOpen || len(snap.Rows) != 1 || snap.Error != tc.want {
				t.Fatalf("expected open form with draft kept, got %+v", snap)
			}
			if list.calls != 0 {
				t.Fatalf("expected no list refresh")
			}
		})
	}
}

func TestSubmit_WhenClosed(t *testing.T) {
	creator := &mockCreator{}
	c, _, _ := newComposer(t, creator)

	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if creator.calls != 0 {
		t.Fatalf("expected nothing sent")
	}
}

func TestCancel_ClearsWithoutSending(t *testing.T) {
	creator := &mockCreator{}
	c, _, _ := newComposer(t, creator)
	c.Open(context.Background())
	_, _ = c.AddRow()

	c.Cancel()
	snap := c.Snapshot()
	if snap.Phase != PhaseClosed || len(snap.Rows) != 0 || snap.Error != "" {
		t.Fatalf("unexpected snapshot after cancel: %+v", snap)
	}
	if creator.calls != 0 {
		t.Fatalf("expected nothing sent")
	}
	if _, err := c.AddRow(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen after cancel, got %v", err)
	}
}

func TestOptions_MarkSelection(t *testing.T) {
	c, _, _ := newComposer(t, &mockCreator{})
	c.Open(context.Background())
	id, _ := c.AddRow()
	_ = c.Sync(Header{CustomerID: "1", ShippingContactMechID: "5"}, []Row{{ID: id, ProductID: "42", Quantity: "1", Status: "PENDING"}})

	if opts := c.CustomerOptions(); !opts[1].Selected {
		t.Fatalf("expected customer selected: %+v", opts)
	}
	if opts := c.ShippingOptions(); !opts[1].Selected {
		t.Fatalf("expected shipping selected: %+v", opts)
	}
	if opts := c.BillingOptions(); !opts[0].Selected {
		t.Fatalf("expected billing placeholder selected: %+v", opts)
	}
	if opts := c.ProductOptions(id); !opts[1].Selected || opts[1].Label != "Shirt (Red, M)" {
		t.Fatalf("expected product selected: %+v", opts)
	}
}
