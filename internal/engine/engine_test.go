package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"procurement_system/internal/models/quote"
	"procurement_system/internal/models/response"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"
)

var testTenant = tenant.Context{TenantId: "tenant-1", ActorId: "buyer-1"}

// fakeStore is an in-memory Store with the same compare-and-set winner
// semantics as the postgres layer.
type fakeStore struct {
	itemOrder []string
	items     map[string]*quote.Item
	responses map[string][]response.Response
	nextId    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     make(map[string]*quote.Item),
		responses: make(map[string][]response.Response),
	}
}

func (f *fakeStore) addItem(quoteId string) string {
	f.nextId++
	id := fmt.Sprintf("item-%d", f.nextId)
	f.items[id] = &quote.Item{Id: id, QuoteId: quoteId, ProductId: "product-" + id}
	f.itemOrder = append(f.itemOrder, id)
	return id
}

func (f *fakeStore) addResponse(itemId, supplierId string, price *float64) string {
	f.nextId++
	id := fmt.Sprintf("resp-%d", f.nextId)
	f.responses[itemId] = append(f.responses[itemId], response.Response{
		Id:         id,
		ItemId:     itemId,
		SupplierId: supplierId,
		Price:      price,
		FilledAt:   time.Now(),
	})
	return id
}

func (f *fakeStore) ReadQuoteItems(tc tenant.Context, quoteId string) ([]quote.Item, error) {
	result := make([]quote.Item, 0)
	for _, id := range f.itemOrder {
		if f.items[id].QuoteId == quoteId {
			result = append(result, *f.items[id])
		}
	}
	return result, nil
}

func (f *fakeStore) ReadQuoteResponses(tc tenant.Context, quoteId string) ([]response.Response, error) {
	result := make([]response.Response, 0)
	for _, id := range f.itemOrder {
		if f.items[id].QuoteId == quoteId {
			result = append(result, f.responses[id]...)
		}
	}
	return result, nil
}

func (f *fakeStore) ReadItem(tc tenant.Context, itemId string) (quote.Item, error) {
	item, ok := f.items[itemId]
	if !ok {
		return quote.Item{}, postgres.ErrNotFound
	}
	return *item, nil
}

func (f *fakeStore) ReadItemResponses(tc tenant.Context, itemId string) ([]response.Response, error) {
	return f.responses[itemId], nil
}

func (f *fakeStore) SetItemWinnerIfUnset(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error {
	item, ok := f.items[itemId]
	if !ok {
		return postgres.ErrNotFound
	}
	if item.WinnerSupplierId != "" {
		return postgres.ErrAlreadyDecided
	}
	return f.SetItemWinner(tc, itemId, supplierId, responseId, reason, at)
}

func (f *fakeStore) SetItemWinner(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error {
	item, ok := f.items[itemId]
	if !ok {
		return postgres.ErrNotFound
	}
	item.WinnerSupplierId = supplierId
	item.WinnerResponseId = responseId
	item.WinnerReason = reason
	item.WinnerSetAt = &at
	return nil
}

func price(v float64) *float64 {
	return &v
}

func newTestEngine(store Store) *Engine {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
}

func TestFindLowestPrice(t *testing.T) {
	responses := []response.Response{
		{Id: "r1", SupplierId: "a", Price: price(10.50)},
		{Id: "r2", SupplierId: "b", Price: price(12.00)},
		{Id: "r3", SupplierId: "c", Price: nil},
		{Id: "r4", SupplierId: "d", Price: price(0)},
		{Id: "r5", SupplierId: "e", Price: price(-3)},
	}

	lowest, ok := FindLowestPrice(responses)
	if !ok {
		t.Fatal("expected a lowest price")
	}
	if lowest != 10.50 {
		t.Errorf("expected 10.50, got %v", lowest)
	}
}

func TestFindLowestPriceNoOffers(t *testing.T) {
	responses := []response.Response{
		{Id: "r1", SupplierId: "a", Price: nil},
		{Id: "r2", SupplierId: "b", Price: price(0)},
	}

	_, ok := FindLowestPrice(responses)
	if ok {
		t.Error("expected no lowest price when no priced responses exist")
	}
}

func TestDetectTies(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10.00))
	store.addResponse(item, "b", price(10.00))
	store.addResponse(item, "c", price(12.00))

	eng := newTestEngine(store)
	groups, err := eng.DetectTies(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 tie group, got %d", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(groups[0].Members))
	}
	if groups[0].Price != 10.00 {
		t.Errorf("expected tie at 10.00, got %v", groups[0].Price)
	}
	for _, m := range groups[0].Members {
		if m.SupplierId != "a" && m.SupplierId != "b" {
			t.Errorf("unexpected member %s", m.SupplierId)
		}
	}
}

func TestDetectTiesNearMissIsNotATie(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10.00))
	store.addResponse(item, "b", price(10.01))

	eng := newTestEngine(store)
	groups, err := eng.DetectTies(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no tie groups, got %d", len(groups))
	}
}

func TestDetectTiesFollowItemOrder(t *testing.T) {
	store := newFakeStore()
	item1 := store.addItem("q1")
	item2 := store.addItem("q1")
	store.addResponse(item1, "a", price(5.00))
	store.addResponse(item1, "b", price(5.00))
	store.addResponse(item2, "c", price(7.00))
	store.addResponse(item2, "d", price(7.00))

	eng := newTestEngine(store)
	groups, err := eng.DetectTies(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 tie groups, got %d", len(groups))
	}
	if groups[0].ItemId != item1 || groups[1].ItemId != item2 {
		t.Errorf("tie groups out of item order: %s, %s", groups[0].ItemId, groups[1].ItemId)
	}
}

func TestAutoSelectWinners(t *testing.T) {
	store := newFakeStore()
	item1 := store.addItem("q1")
	item2 := store.addItem("q1")
	store.addResponse(item1, "a", price(100))
	store.addResponse(item1, "b", price(120))
	store.addResponse(item2, "a", price(55))
	respB2 := store.addResponse(item2, "b", price(50))

	eng := newTestEngine(store)

	groups, err := eng.DetectTies(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no ties, got %d", len(groups))
	}

	count, err := eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 items updated, got %d", count)
	}

	if store.items[item1].WinnerSupplierId != "a" {
		t.Errorf("item1 winner: expected a, got %s", store.items[item1].WinnerSupplierId)
	}
	if store.items[item2].WinnerSupplierId != "b" {
		t.Errorf("item2 winner: expected b, got %s", store.items[item2].WinnerSupplierId)
	}
	if store.items[item2].WinnerResponseId != respB2 {
		t.Errorf("item2 winner response: expected %s, got %s", respB2, store.items[item2].WinnerResponseId)
	}
	if store.items[item1].WinnerReason != ReasonLowestPrice {
		t.Errorf("expected reason %q, got %q", ReasonLowestPrice, store.items[item1].WinnerReason)
	}
	if store.items[item1].WinnerSetAt == nil {
		t.Error("expected winnerSetAt to be recorded")
	}
}

func TestAutoSelectWinnersIdempotent(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	store.addResponse(item, "b", price(20))

	eng := newTestEngine(store)

	count, err := eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 item updated, got %d", count)
	}
	firstWinner := store.items[item].WinnerResponseId

	count, err = eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("second run: expected 0 items updated, got %d", count)
	}
	if store.items[item].WinnerResponseId != firstWinner {
		t.Error("second run changed an already-decided winner")
	}
}

func TestAutoSelectSkipsTiedItems(t *testing.T) {
	store := newFakeStore()
	tied := store.addItem("q1")
	clean := store.addItem("q1")
	store.addResponse(tied, "a", price(10))
	store.addResponse(tied, "b", price(10))
	store.addResponse(clean, "a", price(5))

	eng := newTestEngine(store)
	count, err := eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 item updated, got %d", count)
	}
	if store.items[tied].HasWinner() {
		t.Error("tied item must not get an automatic winner")
	}
	if !store.items[clean].HasWinner() {
		t.Error("untied item should get a winner")
	}
}

func TestAutoSelectNoPricedResponses(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", nil)

	eng := newTestEngine(store)
	count, err := eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("zero qualifying items is not an error, got: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 items updated, got %d", count)
	}
	if store.items[item].HasWinner() {
		t.Error("item without priced responses must stay unassigned")
	}
}

func TestResolveTie(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	respB := store.addResponse(item, "b", price(10))

	eng := newTestEngine(store)
	assignment, err := eng.ResolveTie(testTenant, item, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.SupplierId != "b" || assignment.ResponseId != respB {
		t.Errorf("unexpected assignment: %+v", assignment)
	}
	if assignment.Reason != ReasonLowestPrice {
		t.Errorf("tie break keeps the price-based reason, got %q", assignment.Reason)
	}
	if store.items[item].WinnerSupplierId != "b" {
		t.Errorf("winner not persisted, got %s", store.items[item].WinnerSupplierId)
	}
}

func TestResolveTieRejectsNonMember(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	store.addResponse(item, "b", price(10))
	store.addResponse(item, "c", price(15))

	eng := newTestEngine(store)
	_, err := eng.ResolveTie(testTenant, item, "c")
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection, got %v", err)
	}
	if store.items[item].HasWinner() {
		t.Error("rejected selection must not persist a winner")
	}
}

func TestSetWinnerManually(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	respB := store.addResponse(item, "b", price(30))

	eng := newTestEngine(store)
	assignment, err := eng.SetWinnerManually(testTenant, item, "b", ReasonPreferredSupplier, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.ResponseId != respB {
		t.Errorf("expected response %s, got %s", respB, assignment.ResponseId)
	}
	if assignment.Reason != ReasonPreferredSupplier {
		t.Errorf("expected reason %q, got %q", ReasonPreferredSupplier, assignment.Reason)
	}
}

func TestSetWinnerManuallyAcceptsUnpricedResponse(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	store.addResponse(item, "b", nil)

	eng := newTestEngine(store)
	assignment, err := eng.SetWinnerManually(testTenant, item, "b", ReasonNegotiated, "")
	if err != nil {
		t.Fatalf("a no-offer response is still selectable manually: %v", err)
	}
	if assignment.SupplierId != "b" {
		t.Errorf("expected supplier b, got %s", assignment.SupplierId)
	}
}

func TestSetWinnerManuallyNoResponse(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))

	eng := newTestEngine(store)
	_, err := eng.SetWinnerManually(testTenant, item, "b", ReasonManual, "")
	if !errors.Is(err, ErrNoResponseFound) {
		t.Errorf("expected ErrNoResponseFound, got %v", err)
	}
}

func TestSetWinnerManuallyCustomReason(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))

	eng := newTestEngine(store)
	assignment, err := eng.SetWinnerManually(testTenant, item, "a", ReasonManual, "long-term framework agreement")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.Reason != "long-term framework agreement" {
		t.Errorf("expected custom text as reason, got %q", assignment.Reason)
	}
}

func TestSetWinnerManuallyUnknownReason(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))

	eng := newTestEngine(store)
	_, err := eng.SetWinnerManually(testTenant, item, "a", "because", "")
	if !errors.Is(err, ErrInvalidReason) {
		t.Errorf("expected ErrInvalidReason, got %v", err)
	}
}

func TestPriceChangeDoesNotRetriggerSelection(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	store.addResponse(item, "b", price(20))

	eng := newTestEngine(store)
	if _, err := eng.AutoSelectWinners(testTenant, "q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// supplier b undercuts after the decision
	store.responses[item][1].Price = price(5)

	count, err := eng.AutoSelectWinners(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 items updated, got %d", count)
	}
	if store.items[item].WinnerSupplierId != "a" {
		t.Error("winner assignment is point-in-time, later price edits must not move it")
	}
}

func TestComparisonFlagsLowest(t *testing.T) {
	store := newFakeStore()
	item := store.addItem("q1")
	store.addResponse(item, "a", price(10))
	store.addResponse(item, "b", price(12))
	store.addResponse(item, "c", nil)

	eng := newTestEngine(store)
	rows, err := eng.Comparison(testTenant, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if len(rows[0].Offers) != 3 {
		t.Fatalf("expected 3 offers, got %d", len(rows[0].Offers))
	}
	for _, offer := range rows[0].Offers {
		want := offer.SupplierId == "a"
		if offer.Lowest != want {
			t.Errorf("supplier %s: lowest=%v, want %v", offer.SupplierId, offer.Lowest, want)
		}
	}
}
