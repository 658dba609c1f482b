package purchase

import "time"

const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusConfirmed = "confirmed"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

type Order struct {
	Id           string    `json:"id"`
	Number       string    `json:"number"`
	QuoteId      string    `json:"quoteId,omitempty"`
	SupplierId   string    `json:"supplierId"`
	Status       string    `json:"status"`
	Subtotal     float64   `json:"subtotal"`
	TaxAmount    float64   `json:"taxAmount"`
	ShippingCost float64   `json:"shippingCost"`
	TotalAmount  float64   `json:"totalAmount"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type OrderItem struct {
	Id          string  `json:"id"`
	OrderId     string  `json:"orderId"`
	ProductId   string  `json:"productId"`
	PackageId   string  `json:"packageId,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	QuoteItemId string  `json:"quoteItemId,omitempty"`
	ResponseId  string  `json:"responseId,omitempty"`
}

// GeneratedOrder is the per-supplier summary returned by PO generation.
type GeneratedOrder struct {
	OrderId      string  `json:"orderId"`
	Number       string  `json:"number"`
	SupplierId   string  `json:"supplierId"`
	SupplierName string  `json:"supplierName"`
	ItemCount    int     `json:"itemCount"`
	TotalAmount  float64 `json:"totalAmount"`
}
