// Package gatewaytest provides an in-memory order backend for tests.
package gatewaytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
)

// Backend mimics the REST API the dashboard talks to. Every route except
// /auth/* requires a bearer token it issued.
type Backend struct {
	mu        sync.Mutex
	users     map[string]string // username -> password
	tokens    map[string]string // token -> username
	customers []orders.Customer
	products  []orders.Product
	contacts  []orders.ContactMech
	orders    map[int]*orders.Detail
	order     []int // creation order
	nextID    int
	calls     map[string]int
	requestID map[string]string // route -> last X-Request-Id
	created   []orders.CreateRequest
	listFail  string // when set, GET /orders answers 500 with it
}

// New returns a backend seeded with one user ("ada"/"secret") and a small
// reference data set, but no orders.
func New() *Backend {
	return &Backend{
		users:  map[string]string{"ada": "secret"},
		tokens: map[string]string{},
		customers: []orders.Customer{
			{CustomerID: 1, FirstName: "Ada", LastName: "Lovelace"},
			{CustomerID: 2, FirstName: "Alan", LastName: "Turing"},
		},
		products: []orders.Product{
			{ProductID: 42, ProductName: "Shirt", Color: "Red", Size: "M"},
			{ProductID: 43, ProductName: "Jeans", Color: "Blue", Size: "32"},
		},
		contacts: []orders.ContactMech{
			{ContactMechID: 5, StreetAddress: "1 Main St", City: "Springfield"},
			{ContactMechID: 6, StreetAddress: "2 Side St", City: "Shelbyville"},
		},
		orders: map[int]*orders.Detail{},
		nextID: 100,
		calls:     map[string]int{},
		requestID: map[string]string{},
	}
}

// Start serves the backend until the test ends.
func (b *Backend) Start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns the gin engine serving the API.
func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(b.count)

	r.POST("/auth/login", b.login)
	r.POST("/auth/register", b.register)

	api := r.Group("/", b.requireToken)
	api.GET("/orders", b.listOrders)
	api.POST("/orders", b.createOrder)
	api.GET("/orders/:id", b.getOrder)
	api.PUT("/orders/:id", b.updateOrder)
	api.DELETE("/orders/:id", b.deleteOrder)
	api.POST("/orders/:id/items", b.addItem)
	api.PUT("/orders/:id/items/:seq", b.updateItem)
	api.DELETE("/orders/:id/items/:seq", b.deleteItem)
	api.GET("/data/customers", b.respond(func() interface{} { return b.customers }))
	api.GET("/data/products", b.respond(func() interface{} { return b.products }))
	api.GET("/data/contacts", b.respond(func() interface{} { return b.contacts }))
	return r
}

// Calls reports how often a route was hit, e.g. "GET /data/products".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Created returns every accepted creation payload.
func (b *Backend) Created() []orders.CreateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]orders.CreateRequest(nil), b.created...)
}

// Issue returns a valid token for username without a login round trip.
func (b *Backend) Issue(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := fmt.Sprintf("tok-%s-%d", username, len(b.tokens)+1)
	b.tokens[tok] = username
	return tok
}

// RevokeAll invalidates every issued token; the next call answers 401.
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = map[string]string{}
}

// Seed stores an order and returns its ID.
func (b *Backend) Seed(d orders.Detail) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	d.OrderID = b.nextID
	d.Items = append([]orders.Item(nil), d.Items...)
	for i := range d.Items {
		d.Items[i].OrderItemSeqID = i + 1
	}
	b.orders[d.OrderID] = &d
	b.order = append(b.order, d.OrderID)
	return d.OrderID
}

// Order returns a stored order.
func (b *Backend) Order(id int) (orders.Detail, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.orders[id]
	if !ok {
		return orders.Detail{}, false
	}
	return *d, true
}

// FailList makes GET /orders answer 500 with msg; "" restores it.
func (b *Backend) FailList(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listFail = msg
}

// LastRequestID returns the X-Request-Id of the latest call to route.
func (b *Backend) LastRequestID(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestID[route]
}

// ClearReference empties the three reference sets.
func (b *Backend) ClearReference() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customers, b.products, b.contacts = nil, nil, nil
}

func (b *Backend) count(c *gin.Context) {
	c.Next()
	b.mu.Lock()
	route := c.Request.Method + " " + c.FullPath()
	b.calls[route]++
	b.requestID[route] = c.GetHeader("X-Request-Id")
	b.mu.Unlock()
}

func (b *Backend) requireToken(c *gin.Context) {
	tok := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	b.mu.Lock()
	_, ok := b.tokens[tok]
	b.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Next()
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

func (b *Backend) login(c *gin.Context) {
	var req gateway.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	pw, ok := b.users[req.Username]
	b.mu.Unlock()
	if !ok || pw != req.Password {
		fail(c, http.StatusBadRequest, "Invalid credentials")
		return
	}
	c.JSON(http.StatusOK, gateway.AuthResponse{Token: b.Issue(req.Username), Username: req.Username, Role: "USER"})
}

func (b *Backend) register(c *gin.Context) {
	var req gateway.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}
	b.mu.Lock()
	_, exists := b.users[req.Username]
	if !exists {
		b.users[req.Username] = req.Password
	}
	b.mu.Unlock()
	if exists {
		fail(c, http.StatusBadRequest, "Username already exists")
		return
	}
	c.JSON(http.StatusCreated, gateway.AuthResponse{Token: b.Issue(req.Username), Username: req.Username, Role: "USER"})
}

func (b *Backend) respond(get func() interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, get())
	}
}

func (b *Backend) listOrders(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listFail != "" {
		fail(c, http.StatusInternalServerError, b.listFail)
		return
	}
	out := make([]orders.Summary, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.orders[id].Summary)
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) lookup(c *gin.Context) (*orders.Detail, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid order id")
		return nil, false
	}
	d, ok := b.orders[id]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Order not found with ID: %d", id))
		return nil, false
	}
	return d, true
}

func (b *Backend) getOrder(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.lookup(c); ok {
		c.JSON(http.StatusOK, d)
	}
}

func (b *Backend) customerName(id int) (string, bool) {
	for _, cu := range b.customers {
		if cu.CustomerID == id {
			return cu.FirstName + " " + cu.LastName, true
		}
	}
	return "", false
}

func (b *Backend) product(id int) (orders.Product, bool) {
	for _, p := range b.products {
		if p.ProductID == id {
			return p, true
		}
	}
	return orders.Product{}, false
}

func (b *Backend) address(id *int) string {
	if id == nil {
		return ""
	}
	for _, cm := range b.contacts {
		if cm.ContactMechID == *id {
			return cm.StreetAddress + ", " + cm.City
		}
	}
	return ""
}

func (b *Backend) item(req orders.ItemRequest) (orders.Item, string) {
	if req.ProductID == nil || req.Quantity == nil {
		return orders.Item{}, "Product and quantity are required"
	}
	if *req.Quantity < 1 {
		return orders.Item{}, "Quantity must be at least 1"
	}
	p, ok := b.product(*req.ProductID)
	if !ok {
		return orders.Item{}, fmt.Sprintf("Product not found with ID: %d", *req.ProductID)
	}
	status := req.Status
	if status == "" {
		status = orders.StatusPending
	}
	return orders.Item{ProductID: p.ProductID, ProductName: p.ProductName, Color: p.Color, Size: p.Size, Quantity: *req.Quantity, Status: status}, ""
}

func (b *Backend) createOrder(c *gin.Context) {
	var req orders.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.CustomerID == nil {
		fail(c, http.StatusBadRequest, "Customer is required")
		return
	}
	name, ok := b.customerName(*req.CustomerID)
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Customer not found with ID: %d", *req.CustomerID))
		return
	}
	if len(req.Items) == 0 {
		fail(c, http.StatusBadRequest, "Order must contain at least one item")
		return
	}
	d := orders.Detail{
		Summary:         orders.Summary{OrderDate: req.OrderDate, CustomerName: name},
		ShippingAddress: b.address(req.ShippingContactMechID),
		BillingAddress:  b.address(req.BillingContactMechID),
	}
	for i, in := range req.Items {
		it, msg := b.item(in)
		if msg != "" {
			fail(c, http.StatusBadRequest, msg)
			return
		}
		it.OrderItemSeqID = i + 1
		d.Items = append(d.Items, it)
	}
	b.nextID++
	d.OrderID = b.nextID
	b.orders[d.OrderID] = &d
	b.order = append(b.order, d.OrderID)
	b.created = append(b.created, req)
	c.JSON(http.StatusCreated, d)
}

func (b *Backend) updateOrder(c *gin.Context) {
	var upd orders.ContactsUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.lookup(c)
	if !ok {
		return
	}
	if upd.ShippingContactMechID != nil {
		d.ShippingAddress = b.address(upd.ShippingContactMechID)
	}
	if upd.BillingContactMechID != nil {
		d.BillingAddress = b.address(upd.BillingContactMechID)
	}
	c.JSON(http.StatusOK, d)
}

func (b *Backend) deleteOrder(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.lookup(c)
	if !ok {
		return
	}
	delete(b.orders, d.OrderID)
	for i, id := range b.order {
		if id == d.OrderID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) addItem(c *gin.Context) {
	var req orders.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.lookup(c)
	if !ok {
		return
	}
	it, msg := b.item(req)
	if msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	seq := 0
	for _, existing := range d.Items {
		if existing.OrderItemSeqID > seq {
			seq = existing.OrderItemSeqID
		}
	}
	it.OrderItemSeqID = seq + 1
	d.Items = append(d.Items, it)
	c.JSON(http.StatusCreated, it)
}

func (b *Backend) findItem(c *gin.Context, d *orders.Detail) (int, bool) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid item id")
		return 0, false
	}
	for i, it := range d.Items {
		if it.OrderItemSeqID == seq {
			return i, true
		}
	}
	fail(c, http.StatusNotFound, fmt.Sprintf("Order item not found with ID: %d", seq))
	return 0, false
}

func (b *Backend) updateItem(c *gin.Context) {
	var upd orders.ItemUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.lookup(c)
	if !ok {
		return
	}
	i, ok := b.findItem(c, d)
	if !ok {
		return
	}
	if upd.Quantity != nil {
		if *upd.Quantity < 1 {
			fail(c, http.StatusBadRequest, "Quantity must be at least 1")
			return
		}
		d.Items[i].Quantity = *upd.Quantity
	}
	if upd.Status != "" {
		d.Items[i].Status = upd.Status
	}
	c.JSON(http.StatusOK, d.Items[i])
}

func (b *Backend) deleteItem(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.lookup(c)
	if !ok {
		return
	}
	i, ok := b.findItem(c, d)
	if !ok {
		return
	}
	d.Items = append(d.Items[:i], d.Items[i+1:]...)
	c.Status(http.StatusNoContent)
}
