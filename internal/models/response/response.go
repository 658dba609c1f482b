package response

import "time"

// PriceTier is one row of a supplier's quantity-break table, ordered by
// ascending MinQty.
type PriceTier struct {
	MinQty float64 `json:"minQty"`
	Price  float64 `json:"price"`
}

type Response struct {
	Id              string      `json:"id"`
	ItemId          string      `json:"itemId"`
	QuoteSupplierId string      `json:"quoteSupplierId"`
	SupplierId      string      `json:"supplierId"`
	Price           *float64    `json:"price,omitempty"`
	DeliveryDays    *int        `json:"deliveryDays,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	Tiers           []PriceTier `json:"tiers,omitempty"`
	FilledAt        time.Time   `json:"filledAt"`
}

// HasPrice reports whether the response carries an offer usable for price
// comparison. Null, zero and negative prices are all "no offer" for
// comparison purposes.
func (r Response) HasPrice() bool {
	return r.Price != nil && *r.Price > 0
}

// TierPriceFor returns the unit price applicable to the given quantity from
// the tier table, falling back to the base price when no tier matches or no
// tiers exist. The second return is false when the response has no usable
// price at all.
func (r Response) TierPriceFor(qty float64) (float64, bool) {
	price := 0.0
	ok := false
	if r.HasPrice() {
		price = *r.Price
		ok = true
	}
	for _, t := range r.Tiers {
		if qty >= t.MinQty && t.Price > 0 {
			price = t.Price
			ok = true
		}
	}
	return price, ok
}

type SubmitRequest struct {
	SupplierId   string      `json:"supplierId" validate:"required"`
	Price        *float64    `json:"price,omitempty"`
	DeliveryDays *int        `json:"deliveryDays,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Tiers        []PriceTier `json:"tiers,omitempty"`
}
