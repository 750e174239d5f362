package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/waggishPlayer/hot-wax/internal/activity"
	"github.com/waggishPlayer/hot-wax/internal/gateway/gatewaytest"
	"github.com/waggishPlayer/hot-wax/internal/orders"
	"github.com/waggishPlayer/hot-wax/internal/validation"
	"github.com/waggishPlayer/hot-wax/internal/workspace"
)

type recordingSink struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recordingSink) Publish(ctx context.Context, ev activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	backend *gatewaytest.Backend
	sink    *recordingSink
	server  *httptest.Server
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := gatewaytest.New()
	api := backend.Start(t)
	sink := &recordingSink{}

	tmpl, err := DefaultTemplates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	store.Options = &sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}

	r := gin.New()
	r.Use(RequestID())
	RegisterHealthRoute(r)
	RegisterDashboardRoutes(r, HandlerConfig{
		Registry:  workspace.NewRegistry(workspace.Options{BackendURL: api.URL, Activity: sink}, time.Hour),
		Sessions:  store,
		Templates: tmpl,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &harness{
		backend: backend,
		sink:    sink,
		server:  srv,
		client:  &http.Client{Jar: jar},
	}
}

// noFollow returns a client sharing the cookie jar that stops at redirects.
func (h *harness) noFollow() *http.Client {
	return &http.Client{
		Jar: h.client.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return readBody(t, resp)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return readBody(t, resp)
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	status, body := h.post(t, "/login", url.Values{"username": {"ada"}, "password": {"secret"}})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	return body
}

func readBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(b)
}

func seedOrder(b *gatewaytest.Backend) int {
	return b.Seed(orders.Detail{
		Summary: orders.Summary{OrderDate: "2024-05-01", CustomerName: "Ada Lovelace", Items: []orders.Item{
			{ProductID: 42, ProductName: "Shirt", Quantity: 2, Status: orders.StatusPending},
		}},
		ShippingAddress: "1 Main St, Springfield",
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, body := h.get(t, "/health")
	if status != http.StatusOK || !strings.Contains(body, "ok") {
		t.Fatalf("unexpected health response %d %q", status, body)
	}
}

func TestDashboard_RedirectsWhenSignedOut(t *testing.T) {
	h := newHarness(t)

	resp, err := h.noFollow().Get(h.server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if h.backend.Calls("GET /orders") != 0 {
		t.Fatalf("expected no backend calls while signed out")
	}
}

func TestLogin_ShowsDashboard(t *testing.T) {
	h := newHarness(t)
	seedOrder(h.backend)

	body := h.login(t)
	if !strings.Contains(body, "ada") || !strings.Contains(body, "Ada Lovelace") {
		t.Fatalf("expected dashboard with orders, got %s", body)
	}
	if h.backend.Calls("GET /orders") != 1 {
		t.Fatalf("expected one list fetch, got %d", h.backend.Calls("GET /orders"))
	}
}

func TestLogin_RejectedShowsServerMessage(t *testing.T) {
	h := newHarness(t)

	status, body := h.post(t, "/login", url.Values{"username": {"ada"}, "password": {"wrong"}})
	if status != http.StatusOK || !strings.Contains(body, "Invalid credentials") {
		t.Fatalf("expected login page with error, got %d %s", status, body)
	}
}

func TestRegister_PasswordMismatch(t *testing.T) {
	h := newHarness(t)

	_, body := h.post(t, "/register", url.Values{
		"username":         {"grace"},
		"password":         {"one"},
		"confirm_password": {"two"},
	})
	if !strings.Contains(body, validation.MsgPasswordsMismatch) {
		t.Fatalf("expected mismatch message, got %s", body)
	}
	if h.backend.Calls("POST /auth/register") != 0 {
		t.Fatalf("expected no register call")
	}
}

func TestDraft_SubmitCreatesOrder(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.post(t, "/draft", nil)
	h.post(t, "/draft/items", url.Values{"order_date": {"2024-06-01"}})
	_, body := h.post(t, "/draft/submit", url.Values{
		"customer_id":              {"1"},
		"order_date":               {"2024-06-01"},
		"shipping_contact_mech_id": {"5"},
		"billing_contact_mech_id":  {"6"},
	})

	created := h.backend.Created()
	if len(created) != 1 || len(created[0].Items) != 1 {
		t.Fatalf("expected one order with one item, got %+v", created)
	}
	it := created[0].Items[0]
	if it.ProductID == nil || *it.ProductID != 42 || it.Quantity == nil || *it.Quantity != 1 {
		t.Fatalf("unexpected default row: %+v", it)
	}
	if !strings.Contains(body, "created") {
		t.Fatalf("expected success flash, got %s", body)
	}
	if h.sink.count(activity.KindOrderCreated) != 1 {
		t.Fatalf("expected creation recorded")
	}
}

func TestDelete_ConfirmedRemovesOrder(t *testing.T) {
	h := newHarness(t)
	id := seedOrder(h.backend)
	h.login(t)

	path := "/orders/" + itoa(id) + "/delete"
	status, body := h.get(t, path)
	if status != http.StatusOK || !strings.Contains(body, "Are you sure") {
		t.Fatalf("expected confirm page, got %d", status)
	}

	h.post(t, path, url.Values{"confirm": {"no"}})
	if _, ok := h.backend.Order(id); !ok {
		t.Fatalf("declined delete removed the order")
	}

	_, body = h.post(t, path, url.Values{"confirm": {"yes"}})
	if _, ok := h.backend.Order(id); ok {
		t.Fatalf("expected order deleted")
	}
	if !strings.Contains(body, MsgOrderDeleted) {
		t.Fatalf("expected deleted flash")
	}
	if h.sink.count(activity.KindOrderDeleted) != 1 {
		t.Fatalf("expected deletion recorded")
	}
}

func TestDetail_UpdateItemRecordsChange(t *testing.T) {
	h := newHarness(t)
	id := seedOrder(h.backend)
	h.login(t)

	h.get(t, "/orders/"+itoa(id))
	_, body := h.post(t, "/orders/"+itoa(id)+"/items/1", url.Values{"quantity": {"5"}, "status": {"SHIPPED"}})

	d, _ := h.backend.Order(id)
	if d.Items[0].Quantity != 5 || d.Items[0].Status != orders.StatusShipped {
		t.Fatalf("unexpected item after update: %+v", d.Items[0])
	}
	if !strings.Contains(body, "1 Main St") {
		t.Fatalf("expected detail still shown")
	}
	if h.sink.count(activity.KindOrderUpdated) != 1 {
		t.Fatalf("expected update recorded")
	}
}

func TestExpiredToken_SignsOut(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.backend.RevokeAll()

	status, body := h.get(t, "/")
	if status != http.StatusOK || !strings.Contains(body, MsgSessionExpired) {
		t.Fatalf("expected login page with expiry notice, got %d %s", status, body)
	}

	resp, err := h.noFollow().Get(h.server.URL + "/dashboard")
	if err != nil {
		t.Fatalf("GET /dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected credential discarded, got %d", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, body := h.post(t, "/logout", nil)
	if !strings.Contains(body, MsgLoggedOut) {
		t.Fatalf("expected logged out flash, got %s", body)
	}
}

func TestDraft_EnterSubmitsOrder(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.post(t, "/draft", nil)
	_, body := h.post(t, "/draft/items", nil)

	form := body[strings.Index(body, `<form id="orderForm"`):]
	first := form[strings.Index(form, `<button type="submit"`):]
	first = first[:strings.Index(first, ">")]
	if !strings.Contains(first, `formaction="/draft/submit"`) {
		t.Fatalf("first submit button of the order form must create the order, got %s", first)
	}
	if !strings.Contains(form, "/remove") {
		t.Fatalf("expected a row to be rendered")
	}
}

func TestDelete_ForwardsRequestID(t *testing.T) {
	h := newHarness(t)
	id := seedOrder(h.backend)
	h.login(t)

	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/orders/"+itoa(id)+"/delete",
		strings.NewReader(url.Values{"confirm": {"yes"}}.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-Id", "req-abc")
	resp, err := h.noFollow().Do(req)
	if err != nil {
		t.Fatalf("POST delete: %v", err)
	}
	resp.Body.Close()

	if got := h.backend.LastRequestID("DELETE /orders/:id"); got != "req-abc" {
		t.Fatalf("expected backend call tagged req-abc, got %q", got)
	}
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if len(h.sink.events) != 1 || h.sink.events[0].RequestID != "req-abc" {
		t.Fatalf("expected activity tagged req-abc, got %+v", h.sink.events)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
