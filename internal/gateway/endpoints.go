package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/waggishPlayer/hot-wax/internal/orders"
)

// Default messages used when the backend's error body has no "message".
const (
	MsgLoginFailed        = "Login failed"
	MsgRegisterFailed     = "Registration failed"
	MsgLoadOrdersFailed   = "Error loading orders"
	MsgLoadDetailFailed   = "Error loading order details"
	MsgCreateOrderFailed  = "Failed to create order"
	MsgDeleteOrderFailed  = "Failed to delete order"
	MsgUpdateOrderFailed  = "Failed to update order"
	MsgAddItemFailed      = "Failed to add item"
	MsgUpdateItemFailed   = "Failed to update item"
	MsgRemoveItemFailed   = "Failed to remove item"
	MsgLoadReferenceError = "Failed to load reference data"
)

// AuthRequest is the body of /auth/login and /auth/register.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the successful answer of both auth endpoints.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", username, password, MsgLoginFailed)
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", username, password, MsgRegisterFailed)
}

func (c *Client) authenticate(ctx context.Context, path, username, password, fallback string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.Call(ctx, Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     AuthRequest{Username: username, Password: password},
		Fallback: fallback,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders fetches every order summary.
func (c *Client) ListOrders(ctx context.Context) ([]orders.Summary, error) {
	var out []orders.Summary
	err := c.Call(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/orders",
		Fallback: MsgLoadOrdersFailed,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []orders.Summary{}
	}
	return out, nil
}

// GetOrder fetches one order with addresses.
func (c *Client) GetOrder(ctx context.Context, orderID int) (*orders.Detail, error) {
	var out orders.Detail
	err := c.Call(ctx, Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/orders/%d", orderID),
		Route:    "/orders/{id}",
		Fallback: MsgLoadDetailFailed,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder submits a new order and returns what the backend stored.
func (c *Client) CreateOrder(ctx context.Context, req orders.CreateRequest) (*orders.Detail, error) {
	var out orders.Detail
	err := c.Call(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/orders",
		Body:     req,
		Fallback: MsgCreateOrderFailed,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, orderID int) error {
	return c.Call(ctx, Request{
		Method:   http.MethodDelete,
		Path:     fmt.Sprintf("/orders/%d", orderID),
		Route:    "/orders/{id}",
		Fallback: MsgDeleteOrderFailed,
	}, nil)
}

// UpdateOrderContacts changes the shipping and billing addresses of an order.
func (c *Client) UpdateOrderContacts(ctx context.Context, orderID int, upd orders.ContactsUpdate) error {
	return c.Call(ctx, Request{
		Method:   http.MethodPut,
		Path:     fmt.Sprintf("/orders/%d", orderID),
		Route:    "/orders/{id}",
		Body:     upd,
		Fallback: MsgUpdateOrderFailed,
	}, nil)
}

// AddOrderItem appends a line to an existing order.
func (c *Client) AddOrderItem(ctx context.Context, orderID int, item orders.ItemRequest) error {
	return c.Call(ctx, Request{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("/orders/%d/items", orderID),
		Route:    "/orders/{id}/items",
		Body:     item,
		Fallback: MsgAddItemFailed,
	}, nil)
}

// UpdateOrderItem changes quantity and status of one line.
func (c *Client) UpdateOrderItem(ctx context.Context, orderID, seqID int, upd orders.ItemUpdate) error {
	return c.Call(ctx, Request{
		Method:   http.MethodPut,
		Path:     fmt.Sprintf("/orders/%d/items/%d", orderID, seqID),
		Route:    "/orders/{id}/items/{seq}",
		Body:     upd,
		Fallback: MsgUpdateItemFailed,
	}, nil)
}

// DeleteOrderItem removes one line.
func (c *Client) DeleteOrderItem(ctx context.Context, orderID, seqID int) error {
	return c.Call(ctx, Request{
		Method:   http.MethodDelete,
		Path:     fmt.Sprintf("/orders/%d/items/%d", orderID, seqID),
		Route:    "/orders/{id}/items/{seq}",
		Fallback: MsgRemoveItemFailed,
	}, nil)
}

// ListCustomers fetches the customer reference set.
func (c *Client) ListCustomers(ctx context.Context) ([]orders.Customer, error) {
	var out []orders.Customer
	if err := c.getList(ctx, "/data/customers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProducts fetches the product reference set.
func (c *Client) ListProducts(ctx context.Context) ([]orders.Product, error) {
	var out []orders.Product
	if err := c.getList(ctx, "/data/products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContacts fetches the contact mechanism reference set.
func (c *Client) ListContacts(ctx context.Context) ([]orders.ContactMech, error) {
	var out []orders.ContactMech
	if err := c.getList(ctx, "/data/contacts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, path string, out interface{}) error {
	return c.Call(ctx, Request{
		Method:   http.MethodGet,
		Path:     path,
		Fallback: MsgLoadReferenceError,
	}, out)
}
