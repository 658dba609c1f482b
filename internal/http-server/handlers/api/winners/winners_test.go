package winners

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procurement_system/internal/engine"
	"procurement_system/internal/lib/api"
	"procurement_system/internal/models/tenant"

	"github.com/go-chi/chi/v5"
)

type fakeResolver struct {
	lastItemId     string
	lastSupplierId string
	err            error
}

func (f *fakeResolver) ResolveTie(tc tenant.Context, itemId, chosenSupplierId string) (engine.Assignment, error) {
	f.lastItemId = itemId
	f.lastSupplierId = chosenSupplierId
	if f.err != nil {
		return engine.Assignment{}, f.err
	}
	return engine.Assignment{
		ItemId:     itemId,
		SupplierId: chosenSupplierId,
		ResponseId: "resp-1",
		Reason:     engine.ReasonLowestPrice,
		SetAt:      time.Now(),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTieRouter(resolver *fakeResolver) *chi.Mux {
	router := chi.NewRouter()
	router.Put("/api/items/{itemId}/winner/tie", NewPutResolveTie(testLogger(), resolver))
	return router
}

func TestPutResolveTie(t *testing.T) {
	resolver := &fakeResolver{}
	router := newTieRouter(resolver)

	body, _ := json.Marshal(ResolveTieRequest{SupplierId: "supplier-b"})
	req := httptest.NewRequest(http.MethodPut, "/api/items/item-1/winner/tie", bytes.NewReader(body))
	req.Header.Set(api.HeaderTenantId, "tenant-1")
	req.Header.Set(api.HeaderActorId, "buyer-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resolver.lastItemId != "item-1" || resolver.lastSupplierId != "supplier-b" {
		t.Errorf("resolver called with %s/%s", resolver.lastItemId, resolver.lastSupplierId)
	}

	var assignment engine.Assignment
	if err := json.Unmarshal(rr.Body.Bytes(), &assignment); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if assignment.Reason != engine.ReasonLowestPrice {
		t.Errorf("expected lowest_price reason, got %q", assignment.Reason)
	}
}

func TestPutResolveTieMissingTenant(t *testing.T) {
	resolver := &fakeResolver{}
	router := newTieRouter(resolver)

	body, _ := json.Marshal(ResolveTieRequest{SupplierId: "supplier-b"})
	req := httptest.NewRequest(http.MethodPut, "/api/items/item-1/winner/tie", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without tenant header, got %d", rr.Code)
	}
}

func TestPutResolveTieInvalidSelection(t *testing.T) {
	resolver := &fakeResolver{err: engine.ErrInvalidSelection}
	router := newTieRouter(resolver)

	body, _ := json.Marshal(ResolveTieRequest{SupplierId: "outsider"})
	req := httptest.NewRequest(http.MethodPut, "/api/items/item-1/winner/tie", bytes.NewReader(body))
	req.Header.Set(api.HeaderTenantId, "tenant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-member pick, got %d", rr.Code)
	}
}

func TestPutResolveTieEmptyBody(t *testing.T) {
	resolver := &fakeResolver{}
	router := newTieRouter(resolver)

	req := httptest.NewRequest(http.MethodPut, "/api/items/item-1/winner/tie", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(api.HeaderTenantId, "tenant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing supplier id, got %d", rr.Code)
	}
}
