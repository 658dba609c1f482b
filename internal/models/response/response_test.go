package response

import "testing"

func price(v float64) *float64 {
	return &v
}

func TestHasPrice(t *testing.T) {
	if (Response{Price: nil}).HasPrice() {
		t.Error("nil price is no offer")
	}
	if (Response{Price: price(0)}).HasPrice() {
		t.Error("zero price is no offer")
	}
	if (Response{Price: price(-1)}).HasPrice() {
		t.Error("negative price is no offer")
	}
	if !(Response{Price: price(0.01)}).HasPrice() {
		t.Error("positive price is an offer")
	}
}

func TestTierPriceFor(t *testing.T) {
	resp := Response{
		Price: price(10),
		Tiers: []PriceTier{
			{MinQty: 10, Price: 9},
			{MinQty: 100, Price: 7.5},
		},
	}

	if p, _ := resp.TierPriceFor(5); p != 10 {
		t.Errorf("below first tier: expected base price 10, got %v", p)
	}
	if p, _ := resp.TierPriceFor(10); p != 9 {
		t.Errorf("at first tier: expected 9, got %v", p)
	}
	if p, _ := resp.TierPriceFor(250); p != 7.5 {
		t.Errorf("at top tier: expected 7.5, got %v", p)
	}

	if _, ok := (Response{}).TierPriceFor(5); ok {
		t.Error("no price and no tiers means no usable price")
	}
}
