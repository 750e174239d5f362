package orders

import (
	"strconv"
	"strings"
)

// Status is the lifecycle state of a single order item.
type Status string

// Order item statuses
const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

// Statuses returns every item status in selector order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered}
}

// Class is the badge class rendered next to an item, e.g. "status-shipped".
func (s Status) Class() string {
	return "status-" + strings.ToLower(string(s))
}

// Item is an order line as returned by the backend.
type Item struct {
	OrderItemSeqID int    `json:"orderItemSeqId,omitempty"`
	ProductID      int    `json:"productId"`
	ProductName    string `json:"productName,omitempty"`
	Color          string `json:"color,omitempty"`
	Size           string `json:"size,omitempty"`
	Quantity       int    `json:"quantity"`
	Status         Status `json:"status"`
}

// Summary is the denormalized order shape served by GET /orders.
type Summary struct {
	OrderID      int    `json:"orderId"`
	OrderDate    string `json:"orderDate"`
	CustomerName string `json:"customerName"`
	Items        []Item `json:"items"`
}

// ItemCount is the number of lines on the order.
func (s Summary) ItemCount() int { return len(s.Items) }

// TotalQuantity sums the quantity of every line.
func (s Summary) TotalQuantity() int {
	var total int
	for _, it := range s.Items {
		total += it.Quantity
	}
	return total
}

// Detail is the full order served by GET /orders/{id}.
type Detail struct {
	Summary
	ShippingAddress string `json:"shippingAddress"`
	BillingAddress  string `json:"billingAddress"`
}

// Customer is reference data for the customer selector.
type Customer struct {
	CustomerID int    `json:"customerId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// Product is reference data for the item product selectors.
type Product struct {
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	Color       string `json:"color"`
	Size        string `json:"size"`
}

// ContactMech is an address usable for shipping or billing.
type ContactMech struct {
	ContactMechID int    `json:"contactMechId"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
}

// ItemRequest is one line of a creation payload. Nil numbers encode as null,
// which is what an unparsable form field turns into.
type ItemRequest struct {
	ProductID *int   `json:"productId"`
	Quantity  *int   `json:"quantity"`
	Status    Status `json:"status"`
}

// CreateRequest is the payload for POST /orders.
type CreateRequest struct {
	CustomerID            *int          `json:"customerId"`
	OrderDate             string        `json:"orderDate"`
	ShippingContactMechID *int          `json:"shippingContactMechId"`
	BillingContactMechID  *int          `json:"billingContactMechId"`
	Items                 []ItemRequest `json:"items"`
}

// ContactsUpdate is the payload for PUT /orders/{id}.
type ContactsUpdate struct {
	ShippingContactMechID *int `json:"shippingContactMechId"`
	BillingContactMechID  *int `json:"billingContactMechId"`
}

// ItemUpdate is the payload for PUT /orders/{id}/items/{seq}.
type ItemUpdate struct {
	Quantity *int   `json:"quantity"`
	Status   Status `json:"status,omitempty"`
}

// ParseInt reads a numeric form value. Anything that is not an integer
// yields nil so the backend sees null and rejects the field.
func ParseInt(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}
