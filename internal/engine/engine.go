package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"procurement_system/internal/models/quote"
	"procurement_system/internal/models/response"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"
)

// Winner reason codes. ReasonManual may be replaced by free text supplied by
// the buyer.
const (
	ReasonLowestPrice       = "lowest_price"
	ReasonPreferredSupplier = "preferred_supplier"
	ReasonBestDelivery      = "best_delivery"
	ReasonNegotiated        = "negotiated"
	ReasonManual            = "manual"
)

var (
	ErrInvalidSelection = errors.New("chosen supplier is not part of the tie group")
	ErrNoResponseFound  = errors.New("supplier has no response for this item")
	ErrInvalidReason    = errors.New("unknown winner reason code")
)

// Store is the persistence surface the engine needs. *postgres.Storage
// satisfies it.
type Store interface {
	ReadQuoteItems(tc tenant.Context, quoteId string) ([]quote.Item, error)
	ReadQuoteResponses(tc tenant.Context, quoteId string) ([]response.Response, error)
	ReadItem(tc tenant.Context, itemId string) (quote.Item, error)
	ReadItemResponses(tc tenant.Context, itemId string) ([]response.Response, error)
	SetItemWinnerIfUnset(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error
	SetItemWinner(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error
}

type Engine struct {
	log   *slog.Logger
	store Store
}

func New(log *slog.Logger, store Store) *Engine {
	return &Engine{log: log, store: store}
}

// Assignment is the recorded winner decision for one item.
type Assignment struct {
	ItemId     string    `json:"itemId"`
	SupplierId string    `json:"supplierId"`
	ResponseId string    `json:"responseId"`
	Reason     string    `json:"reason"`
	SetAt      time.Time `json:"setAt"`
}

// TieMember is one supplier sitting at the shared lowest price of an item.
type TieMember struct {
	SupplierId string  `json:"supplierId"`
	ResponseId string  `json:"responseId"`
	Price      float64 `json:"price"`
}

// TieGroup is an item where two or more suppliers share the lowest price.
type TieGroup struct {
	ItemId  string      `json:"itemId"`
	Price   float64     `json:"price"`
	Members []TieMember `json:"members"`
}

// FindLowestPrice returns the minimum price among responses carrying a
// positive offer. The second return is false when no priced response exists.
// Prices are fixed-precision currency values scanned from decimal columns,
// so plain equality and ordering are exact.
func FindLowestPrice(responses []response.Response) (float64, bool) {
	lowest := 0.0
	found := false
	for _, r := range responses {
		if !r.HasPrice() {
			continue
		}
		if !found || *r.Price < lowest {
			lowest = *r.Price
			found = true
		}
	}
	return lowest, found
}

func groupByItem(responses []response.Response) map[string][]response.Response {
	byItem := make(map[string][]response.Response)
	for _, r := range responses {
		byItem[r.ItemId] = append(byItem[r.ItemId], r)
	}
	return byItem
}

// tieMembers returns the suppliers whose responses sit exactly at the given
// price, in response order.
func tieMembers(responses []response.Response, price float64) []TieMember {
	members := make([]TieMember, 0)
	for _, r := range responses {
		if r.HasPrice() && *r.Price == price {
			members = append(members, TieMember{SupplierId: r.SupplierId, ResponseId: r.Id, Price: price})
		}
	}
	return members
}

// DetectTies finds every item of the quote where two or more suppliers share
// the lowest price. Groups follow item order within the quote, so a caller
// can walk them one at a time in a resolution flow.
func (e *Engine) DetectTies(tc tenant.Context, quoteId string) ([]TieGroup, error) {
	const op = "engine.DetectTies"

	items, err := e.store.ReadQuoteItems(tc, quoteId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := e.store.ReadQuoteResponses(tc, quoteId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	byItem := groupByItem(responses)

	groups := make([]TieGroup, 0)
	for _, item := range items {
		lowest, ok := FindLowestPrice(byItem[item.Id])
		if !ok {
			continue
		}
		members := tieMembers(byItem[item.Id], lowest)
		if len(members) < 2 {
			continue
		}
		groups = append(groups, TieGroup{ItemId: item.Id, Price: lowest, Members: members})
	}

	return groups, nil
}

// AutoSelectWinners assigns the lowest-price response as winner for every
// item that has no winner yet and no unresolved tie, and returns the number
// of items newly assigned. Items already decided are left untouched, so the
// call is idempotent; zero qualifying items is not an error.
func (e *Engine) AutoSelectWinners(tc tenant.Context, quoteId string) (int, error) {
	const op = "engine.AutoSelectWinners"

	items, err := e.store.ReadQuoteItems(tc, quoteId)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := e.store.ReadQuoteResponses(tc, quoteId)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	byItem := groupByItem(responses)

	count := 0
	for _, item := range items {
		if item.HasWinner() {
			continue
		}

		lowest, ok := FindLowestPrice(byItem[item.Id])
		if !ok {
			continue
		}
		members := tieMembers(byItem[item.Id], lowest)
		if len(members) != 1 {
			// unresolved tie, left for ResolveTie
			continue
		}

		err := e.store.SetItemWinnerIfUnset(tc, item.Id, members[0].SupplierId, members[0].ResponseId, ReasonLowestPrice, time.Now())
		if err != nil {
			// a concurrent writer decided this item between our read and
			// write; that is a decision, not a failure
			if errors.Is(err, postgres.ErrAlreadyDecided) {
				e.log.Info("item decided concurrently, skipping", slog.Attr{Key: "itemId", Value: slog.StringValue(item.Id)})
				continue
			}
			return count, fmt.Errorf("%s: %w", op, err)
		}
		count++
	}

	return count, nil
}

// ResolveTie records the buyer's pick among the suppliers of an item's tie
// group. The choice must be a member of the group; the reason stays
// price-based since every member sits at the same lowest price.
func (e *Engine) ResolveTie(tc tenant.Context, itemId, chosenSupplierId string) (Assignment, error) {
	const op = "engine.ResolveTie"

	item, err := e.store.ReadItem(tc, itemId)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := e.store.ReadItemResponses(tc, itemId)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	lowest, ok := FindLowestPrice(responses)
	if !ok {
		return Assignment{}, fmt.Errorf("%s: %w", op, ErrInvalidSelection)
	}

	var chosen *TieMember
	for _, m := range tieMembers(responses, lowest) {
		if m.SupplierId == chosenSupplierId {
			chosen = &m
			break
		}
	}
	if chosen == nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, ErrInvalidSelection)
	}

	at := time.Now()
	err = e.store.SetItemWinner(tc, item.Id, chosen.SupplierId, chosen.ResponseId, ReasonLowestPrice, at)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	return Assignment{ItemId: item.Id, SupplierId: chosen.SupplierId, ResponseId: chosen.ResponseId, Reason: ReasonLowestPrice, SetAt: at}, nil
}

// SetWinnerManually records a buyer override independent of price. The
// supplier must have responded to the item, but a null-price "no offer"
// response is acceptable since the override reason need not be price-based.
func (e *Engine) SetWinnerManually(tc tenant.Context, itemId, supplierId, reasonCode, customReasonText string) (Assignment, error) {
	const op = "engine.SetWinnerManually"

	switch reasonCode {
	case ReasonLowestPrice, ReasonPreferredSupplier, ReasonBestDelivery, ReasonNegotiated, ReasonManual:
	default:
		return Assignment{}, fmt.Errorf("%s: %w", op, ErrInvalidReason)
	}

	item, err := e.store.ReadItem(tc, itemId)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := e.store.ReadItemResponses(tc, itemId)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	var chosen *response.Response
	for i, r := range responses {
		if r.SupplierId == supplierId {
			chosen = &responses[i]
			break
		}
	}
	if chosen == nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, ErrNoResponseFound)
	}

	reason := reasonCode
	if reasonCode == ReasonManual && customReasonText != "" {
		reason = customReasonText
	}

	at := time.Now()
	err = e.store.SetItemWinner(tc, item.Id, chosen.SupplierId, chosen.Id, reason, at)
	if err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", op, err)
	}

	return Assignment{ItemId: item.Id, SupplierId: chosen.SupplierId, ResponseId: chosen.Id, Reason: reason, SetAt: at}, nil
}

// ComparisonOffer is one supplier's cell in the comparison matrix.
type ComparisonOffer struct {
	SupplierId   string   `json:"supplierId"`
	ResponseId   string   `json:"responseId"`
	Price        *float64 `json:"price,omitempty"`
	DeliveryDays *int     `json:"deliveryDays,omitempty"`
	Lowest       bool     `json:"lowest"`
}

// ComparisonRow is one item's row: every submitted offer with the current
// lowest flagged.
type ComparisonRow struct {
	ItemId           string            `json:"itemId"`
	ProductId        string            `json:"productId"`
	WinnerSupplierId string            `json:"winnerSupplierId,omitempty"`
	Offers           []ComparisonOffer `json:"offers"`
}

// Comparison builds the item-by-supplier price matrix that feeds the
// tie-resolution flow.
func (e *Engine) Comparison(tc tenant.Context, quoteId string) ([]ComparisonRow, error) {
	const op = "engine.Comparison"

	items, err := e.store.ReadQuoteItems(tc, quoteId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := e.store.ReadQuoteResponses(tc, quoteId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	byItem := groupByItem(responses)

	rows := make([]ComparisonRow, 0, len(items))
	for _, item := range items {
		row := ComparisonRow{
			ItemId:           item.Id,
			ProductId:        item.ProductId,
			WinnerSupplierId: item.WinnerSupplierId,
			Offers:           make([]ComparisonOffer, 0),
		}

		lowest, hasLowest := FindLowestPrice(byItem[item.Id])
		for _, r := range byItem[item.Id] {
			offer := ComparisonOffer{
				SupplierId:   r.SupplierId,
				ResponseId:   r.Id,
				Price:        r.Price,
				DeliveryDays: r.DeliveryDays,
			}
			if hasLowest && r.HasPrice() && *r.Price == lowest {
				offer.Lowest = true
			}
			row.Offers = append(row.Offers, offer)
		}

		rows = append(rows, row)
	}

	return rows, nil
}
