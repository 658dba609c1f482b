package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"procurement_system/internal/models/purchase"
	"procurement_system/internal/models/quote"
	"procurement_system/internal/models/response"
	"procurement_system/internal/models/supplier"
	"procurement_system/internal/models/tenant"
	"procurement_system/internal/storage/postgres"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrMissingResponseData = errors.New("winner response data is missing")
	ErrNothingToGenerate   = errors.New("no items with winners to generate from")
	ErrTotalFailure        = errors.New("every supplier group failed")
)

// Store is the persistence surface the generator needs. *postgres.Storage
// satisfies it.
type Store interface {
	ReadQuoteItems(tc tenant.Context, quoteId string) ([]quote.Item, error)
	ReadResponse(tc tenant.Context, responseId string) (response.Response, error)
	ReadSupplier(tc tenant.Context, supplierId string) (supplier.Supplier, error)
	NextPONumber(tc tenant.Context, prefix string, day time.Time) (string, error)
	BeginGeneration(tc tenant.Context, quoteId string) error
	FinishGeneration(tc tenant.Context, quoteId string) error
	InsertOrder(tc tenant.Context, po purchase.Order) error
	InsertOrderItem(tc tenant.Context, item purchase.OrderItem) error
	DeleteOrder(tc tenant.Context, orderId string) error
	RecomputeOrderTotals(tc tenant.Context, orderId string) (float64, float64, error)
}

// Notifier is told about each purchase order once it is fully created.
// Delivery itself (email and the like) lives outside this service.
type Notifier interface {
	OrderGenerated(tc tenant.Context, order purchase.GeneratedOrder)
}

// LogNotifier records generated orders in the service log.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) OrderGenerated(tc tenant.Context, order purchase.GeneratedOrder) {
	n.Log.Info("purchase order generated",
		slog.Attr{Key: "number", Value: slog.StringValue(order.Number)},
		slog.Attr{Key: "supplierId", Value: slog.StringValue(order.SupplierId)},
		slog.Attr{Key: "itemCount", Value: slog.IntValue(order.ItemCount)},
	)
}

type Generator struct {
	log      *slog.Logger
	store    Store
	notifier Notifier
	prefix   string
}

func New(log *slog.Logger, store Store, notifier Notifier, numberPrefix string) *Generator {
	if numberPrefix == "" {
		numberPrefix = "PO"
	}
	return &Generator{log: log, store: store, notifier: notifier, prefix: numberPrefix}
}

var msgPrinter = message.NewPrinter(language.English)

type ValidationResult struct {
	Valid            bool   `json:"valid"`
	ItemsWithWinners int    `json:"itemsWithWinners"`
	TotalItems       int    `json:"totalItems"`
	Message          string `json:"message"`
}

// ValidateForGeneration reports whether the quote can produce purchase
// orders, and whether generation would be partial or complete.
func (g *Generator) ValidateForGeneration(tc tenant.Context, quoteId string) (ValidationResult, error) {
	const op = "generator.ValidateForGeneration"

	items, err := g.store.ReadQuoteItems(tc, quoteId)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	withWinners := 0
	for _, item := range items {
		if item.HasWinner() {
			withWinners++
		}
	}

	result := ValidationResult{ItemsWithWinners: withWinners, TotalItems: len(items)}
	switch {
	case len(items) == 0:
		result.Message = "quote has no items"
	case withWinners == 0:
		result.Message = "no items have winners"
	case withWinners < len(items):
		result.Valid = true
		result.Message = msgPrinter.Sprintf("%d of %d items have winners, generation will be partial", withWinners, len(items))
	default:
		result.Valid = true
		result.Message = msgPrinter.Sprintf("all %d items have winners", len(items))
	}

	return result, nil
}

// FailedGroup records a supplier whose purchase order could not be created.
// Its partially written order has been rolled back.
type FailedGroup struct {
	SupplierId string `json:"supplierId"`
	Reason     string `json:"reason"`
}

type GenerationResult struct {
	Orders []purchase.GeneratedOrder `json:"orders"`
	Failed []FailedGroup             `json:"failed,omitempty"`
}

// Generate materializes one draft purchase order per supplier that won at
// least one item of the quote. Groups follow first-appearance order of the
// supplier across the item list. Atomicity is per supplier group: a failure
// inside one group rolls that group's order back and generation moves on to
// the next. A concurrent call for the same quote gets
// postgres.ErrGenerationInProgress.
func (g *Generator) Generate(tc tenant.Context, quoteId string) (GenerationResult, error) {
	const op = "generator.Generate"

	if err := g.store.BeginGeneration(tc, quoteId); err != nil {
		return GenerationResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := g.store.FinishGeneration(tc, quoteId); err != nil {
			g.log.Error("failed to release generation marker", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
		}
	}()

	items, err := g.store.ReadQuoteItems(tc, quoteId)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	winners := make([]quote.Item, 0, len(items))
	for _, item := range items {
		if item.WinnerSupplierId != "" && item.WinnerResponseId != "" {
			winners = append(winners, item)
		}
	}
	if len(winners) == 0 {
		return GenerationResult{}, fmt.Errorf("%s: %w", op, ErrNothingToGenerate)
	}

	supplierOrder := make([]string, 0)
	groups := make(map[string][]quote.Item)
	for _, item := range winners {
		if _, seen := groups[item.WinnerSupplierId]; !seen {
			supplierOrder = append(supplierOrder, item.WinnerSupplierId)
		}
		groups[item.WinnerSupplierId] = append(groups[item.WinnerSupplierId], item)
	}

	result := GenerationResult{Orders: make([]purchase.GeneratedOrder, 0, len(supplierOrder))}
	for _, supplierId := range supplierOrder {
		order, err := g.generateForSupplier(tc, quoteId, supplierId, groups[supplierId])
		if err != nil {
			g.log.Error("supplier group failed",
				slog.Attr{Key: "supplierId", Value: slog.StringValue(supplierId)},
				slog.Attr{Key: "error", Value: slog.StringValue(err.Error())},
			)
			result.Failed = append(result.Failed, FailedGroup{SupplierId: supplierId, Reason: err.Error()})
			continue
		}
		result.Orders = append(result.Orders, order)
		if g.notifier != nil {
			g.notifier.OrderGenerated(tc, order)
		}
	}

	if len(result.Orders) == 0 {
		return result, fmt.Errorf("%s: %w", op, ErrTotalFailure)
	}

	return result, nil
}

func (g *Generator) generateForSupplier(tc tenant.Context, quoteId, supplierId string, items []quote.Item) (purchase.GeneratedOrder, error) {
	const op = "generator.generateForSupplier"

	// resolve every winning response up front; a dangling reference is a
	// data-integrity violation and fails the whole group before anything
	// is written
	prices := make(map[string]response.Response, len(items))
	for _, item := range items {
		resp, err := g.store.ReadResponse(tc, item.WinnerResponseId)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return purchase.GeneratedOrder{}, fmt.Errorf("%s: response %s: %w", op, item.WinnerResponseId, ErrMissingResponseData)
			}
			return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
		}
		prices[item.Id] = resp
	}

	sup, err := g.store.ReadSupplier(tc, supplierId)
	if err != nil {
		return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	number, err := g.store.NextPONumber(tc, g.prefix, time.Now())
	if err != nil {
		return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	order := purchase.Order{
		Id:         uuid.NewString(),
		Number:     number,
		QuoteId:    quoteId,
		SupplierId: supplierId,
		Status:     purchase.StatusDraft,
		Notes:      fmt.Sprintf("Auto-generated from quote %s", quoteId),
	}
	if err := g.store.InsertOrder(tc, order); err != nil {
		return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, item := range items {
		resp := prices[item.Id]

		qty := item.RequestedQty
		if qty <= 0 {
			qty = 1
		}
		unitPrice := 0.0
		if resp.Price != nil {
			unitPrice = *resp.Price
		}

		line := purchase.OrderItem{
			Id:          uuid.NewString(),
			OrderId:     order.Id,
			ProductId:   item.ProductId,
			PackageId:   item.PackageId,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			TotalPrice:  qty * unitPrice,
			QuoteItemId: item.Id,
			ResponseId:  resp.Id,
		}
		if err := g.store.InsertOrderItem(tc, line); err != nil {
			// never leave a half-built order behind
			if delErr := g.store.DeleteOrder(tc, order.Id); delErr != nil {
				g.log.Error("rollback failed", slog.Attr{Key: "orderId", Value: slog.StringValue(order.Id)},
					slog.Attr{Key: "error", Value: slog.StringValue(delErr.Error())})
			}
			return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	_, total, err := g.store.RecomputeOrderTotals(tc, order.Id)
	if err != nil {
		if delErr := g.store.DeleteOrder(tc, order.Id); delErr != nil {
			g.log.Error("rollback failed", slog.Attr{Key: "orderId", Value: slog.StringValue(order.Id)},
				slog.Attr{Key: "error", Value: slog.StringValue(delErr.Error())})
		}
		return purchase.GeneratedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	return purchase.GeneratedOrder{
		OrderId:      order.Id,
		Number:       number,
		SupplierId:   supplierId,
		SupplierName: sup.Name,
		ItemCount:    len(items),
		TotalAmount:  total,
	}, nil
}
