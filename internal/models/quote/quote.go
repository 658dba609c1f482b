package quote

import "time"

const (
	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

type ItemRequest struct {
	ProductId    string  `json:"productId" validate:"required"`
	PackageId    string  `json:"packageId,omitempty"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	RequestedQty float64 `json:"requestedQty,omitempty"`
}

type QuoteRequest struct {
	Title    string        `json:"title" validate:"required"`
	Deadline *time.Time    `json:"deadline,omitempty"`
	Items    []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

type QuoteResponse struct {
	Id        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Item struct {
	Id               string     `json:"id"`
	QuoteId          string     `json:"quoteId"`
	ProductId        string     `json:"productId"`
	PackageId        string     `json:"packageId,omitempty"`
	Multiplier       float64    `json:"multiplier,omitempty"`
	RequestedQty     float64    `json:"requestedQty,omitempty"`
	WinnerSupplierId string     `json:"winnerSupplierId,omitempty"`
	WinnerResponseId string     `json:"winnerResponseId,omitempty"`
	WinnerReason     string     `json:"winnerReason,omitempty"`
	WinnerSetAt      *time.Time `json:"winnerSetAt,omitempty"`
}

// HasWinner reports whether a winner decision has been recorded for the item.
func (i Item) HasWinner() bool {
	return i.WinnerSupplierId != ""
}

const (
	InvitationPending   = "pending"
	InvitationViewed    = "viewed"
	InvitationPartial   = "partial"
	InvitationSubmitted = "submitted"
)

type Invitation struct {
	Id         string    `json:"id"`
	QuoteId    string    `json:"quoteId"`
	SupplierId string    `json:"supplierId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type InviteRequest struct {
	SupplierId string `json:"supplierId" validate:"required"`
}
