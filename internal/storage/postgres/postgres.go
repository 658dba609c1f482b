package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"procurement_system/internal/models/purchase"
	"procurement_system/internal/models/quote"
	"procurement_system/internal/models/response"
	"procurement_system/internal/models/supplier"
	"procurement_system/internal/models/tenant"

	_ "github.com/lib/pq"
)

var (
	ErrBadRequest           = errors.New("bad request")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrSupplierNotInvited   = errors.New("supplier is not invited to this quote")
	ErrAlreadyDecided       = errors.New("winner already decided")
	ErrGenerationInProgress = errors.New("purchase order generation already in progress")
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	schema := []string{
		`
		CREATE TABLE IF NOT EXISTS supplier (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenantId UUID NOT NULL,
			name VARCHAR(200) NOT NULL,
			email VARCHAR(200),
			createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS quote (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenantId UUID NOT NULL,
			title VARCHAR(200) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'draft',
			deadline TIMESTAMP,
			createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS quoteItem (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenantId UUID NOT NULL,
			quoteId UUID REFERENCES quote(id) ON DELETE CASCADE,
			productId UUID NOT NULL,
			packageId UUID,
			multiplier NUMERIC(12,4),
			requestedQty NUMERIC(12,4),
			winnerSupplierId UUID,
			winnerResponseId UUID,
			winnerReason VARCHAR(200),
			winnerSetAt TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS quoteSupplier (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenantId UUID NOT NULL,
			quoteId UUID REFERENCES quote(id) ON DELETE CASCADE,
			supplierId UUID REFERENCES supplier(id) ON DELETE CASCADE,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (quoteId, supplierId)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS response (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenantId UUID NOT NULL,
			itemId UUID REFERENCES quoteItem(id) ON DELETE CASCADE,
			quoteSupplierId UUID REFERENCES quoteSupplier(id) ON DELETE CASCADE,
			price NUMERIC(12,2),
			deliveryDays INT,
			notes VARCHAR(500),
			tiers JSONB,
			filledAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (itemId, quoteSupplierId)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS purchaseOrder (
			id UUID PRIMARY KEY,
			tenantId UUID NOT NULL,
			number VARCHAR(50) NOT NULL,
			quoteId UUID,
			supplierId UUID REFERENCES supplier(id),
			status VARCHAR(50) NOT NULL DEFAULT 'draft',
			subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
			taxAmount NUMERIC(12,2) NOT NULL DEFAULT 0,
			shippingCost NUMERIC(12,2) NOT NULL DEFAULT 0,
			totalAmount NUMERIC(12,2) NOT NULL DEFAULT 0,
			notes VARCHAR(500),
			createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS purchaseOrderItem (
			id UUID PRIMARY KEY,
			orderId UUID REFERENCES purchaseOrder(id) ON DELETE CASCADE,
			productId UUID NOT NULL,
			packageId UUID,
			quantity NUMERIC(12,4) NOT NULL,
			unitPrice NUMERIC(12,2) NOT NULL,
			totalPrice NUMERIC(12,2) NOT NULL,
			quoteItemId UUID,
			responseId UUID
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS poSequence (
			tenantId UUID NOT NULL,
			day DATE NOT NULL,
			counter INT NOT NULL DEFAULT 0,
			PRIMARY KEY (tenantId, day)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS poGeneration (
			quoteId UUID PRIMARY KEY,
			tenantId UUID NOT NULL,
			startedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
	}

	for _, stmt := range schema {
		_, err = db.Exec(stmt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &Storage{db: db}, nil
}

func (s *Storage) SaveQuote(tc tenant.Context, req quote.QuoteRequest) (quote.QuoteResponse, error) {
	const op = "storage.postgres.SaveQuote"
	var result quote.QuoteResponse

	tx, err := s.db.Begin()
	if err != nil {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
	INSERT INTO quote(tenantId, title, status, deadline)
	VALUES ($1, $2, 'draft', $3)
	RETURNING id, title, status, deadline, createdAt
	`, tc.TenantId, req.Title, req.Deadline).Scan(&result.Id, &result.Title, &result.Status, &result.Deadline, &result.CreatedAt)
	if err != nil {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, item := range req.Items {
		_, err = tx.Exec(`
		INSERT INTO quoteItem(tenantId, quoteId, productId, packageId, multiplier, requestedQty)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, 0), NULLIF($6, 0))
		`, tc.TenantId, result.Id, item.ProductId, item.PackageId, item.Multiplier, item.RequestedQty)
		if err != nil {
			return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Storage) ReadQuotes(tc tenant.Context, limit, offset int, status string) ([]quote.QuoteResponse, error) {
	const op = "storage.postgres.ReadQuotes"
	result := make([]quote.QuoteResponse, 0)

	stmt, err := s.db.Prepare(`
	SELECT id, title, status, deadline, createdAt
	FROM quote
	WHERE tenantId = $1 AND ($2 = '' OR status = $2)
	ORDER BY createdAt DESC
	LIMIT $3
	OFFSET $4
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := stmt.Query(tc.TenantId, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var q quote.QuoteResponse

		err := rows.Scan(&q.Id, &q.Title, &q.Status, &q.Deadline, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, q)
	}

	return result, nil
}

func (s *Storage) ReadQuoteStatus(tc tenant.Context, quoteId string) (string, error) {
	const op = "storage.postgres.ReadQuoteStatus"
	var status string

	err := s.db.QueryRow(`
	SELECT status
	FROM quote
	WHERE id = $1 AND tenantId = $2
	`, quoteId, tc.TenantId).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return status, nil
}

var allowedTransitions = map[string][]string{
	quote.StatusDraft: {quote.StatusOpen, quote.StatusCancelled},
	quote.StatusOpen:  {quote.StatusClosed, quote.StatusCancelled},
}

func (s *Storage) UpdateQuoteStatus(tc tenant.Context, quoteId, status string) (quote.QuoteResponse, error) {
	const op = "storage.postgres.UpdateQuoteStatus"
	var result quote.QuoteResponse

	var current string
	err := s.db.QueryRow(`
	SELECT status FROM quote WHERE id = $1 AND tenantId = $2
	`, quoteId, tc.TenantId).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	legal := false
	for _, next := range allowedTransitions[current] {
		if next == status {
			legal = true
		}
	}
	if !legal {
		return quote.QuoteResponse{}, fmt.Errorf("%s: transition %s -> %s: %w", op, current, status, ErrBadRequest)
	}

	err = s.db.QueryRow(`
	UPDATE quote
	SET status = $1
	WHERE id = $2 AND tenantId = $3
	RETURNING id, title, status, deadline, createdAt
	`, status, quoteId, tc.TenantId).Scan(&result.Id, &result.Title, &result.Status, &result.Deadline, &result.CreatedAt)
	if err != nil {
		return quote.QuoteResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// itemWinnerRow carries the nullable winner columns of a quoteItem row.
type itemWinnerRow struct {
	SupplierId sql.NullString
	ResponseId sql.NullString
	Reason     sql.NullString
	SetAt      sql.NullTime
}

func (w itemWinnerRow) apply(item *quote.Item) {
	item.WinnerSupplierId = w.SupplierId.String
	item.WinnerResponseId = w.ResponseId.String
	item.WinnerReason = w.Reason.String
	if w.SetAt.Valid {
		t := w.SetAt.Time
		item.WinnerSetAt = &t
	}
}

func (s *Storage) AddQuoteItem(tc tenant.Context, quoteId string, req quote.ItemRequest) (quote.Item, error) {
	const op = "storage.postgres.AddQuoteItem"
	var item quote.Item

	err := s.db.QueryRow(`
	INSERT INTO quoteItem(tenantId, quoteId, productId, packageId, multiplier, requestedQty)
	SELECT $1, q.id, $3, NULLIF($4, '')::uuid, NULLIF($5, 0), NULLIF($6, 0)
	FROM quote q
	WHERE q.id = $2 AND q.tenantId = $1
	RETURNING id, quoteId, productId, COALESCE(packageId::text, ''), COALESCE(multiplier, 0), COALESCE(requestedQty, 0)
	`, tc.TenantId, quoteId, req.ProductId, req.PackageId, req.Multiplier, req.RequestedQty).
		Scan(&item.Id, &item.QuoteId, &item.ProductId, &item.PackageId, &item.Multiplier, &item.RequestedQty)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.Item{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return quote.Item{}, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

func (s *Storage) ReadQuoteItems(tc tenant.Context, quoteId string) ([]quote.Item, error) {
	const op = "storage.postgres.ReadQuoteItems"
	result := make([]quote.Item, 0)

	stmt, err := s.db.Prepare(`
	SELECT id, quoteId, productId, COALESCE(packageId::text, ''), COALESCE(multiplier, 0), COALESCE(requestedQty, 0),
	       winnerSupplierId, winnerResponseId, winnerReason, winnerSetAt
	FROM quoteItem
	WHERE quoteId = $1 AND tenantId = $2
	ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := stmt.Query(quoteId, tc.TenantId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item quote.Item
		var winner itemWinnerRow

		err := rows.Scan(&item.Id, &item.QuoteId, &item.ProductId, &item.PackageId, &item.Multiplier, &item.RequestedQty,
			&winner.SupplierId, &winner.ResponseId, &winner.Reason, &winner.SetAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		winner.apply(&item)
		result = append(result, item)
	}

	return result, nil
}

func (s *Storage) ReadItem(tc tenant.Context, itemId string) (quote.Item, error) {
	const op = "storage.postgres.ReadItem"
	var item quote.Item
	var winner itemWinnerRow

	err := s.db.QueryRow(`
	SELECT id, quoteId, productId, COALESCE(packageId::text, ''), COALESCE(multiplier, 0), COALESCE(requestedQty, 0),
	       winnerSupplierId, winnerResponseId, winnerReason, winnerSetAt
	FROM quoteItem
	WHERE id = $1 AND tenantId = $2
	`, itemId, tc.TenantId).Scan(&item.Id, &item.QuoteId, &item.ProductId, &item.PackageId, &item.Multiplier, &item.RequestedQty,
		&winner.SupplierId, &winner.ResponseId, &winner.Reason, &winner.SetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.Item{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return quote.Item{}, fmt.Errorf("%s: %w", op, err)
	}

	winner.apply(&item)
	return item, nil
}

func (s *Storage) InviteSupplier(tc tenant.Context, quoteId, supplierId string) (quote.Invitation, error) {
	const op = "storage.postgres.InviteSupplier"
	var inv quote.Invitation

	var exists bool
	err := s.db.QueryRow(`
	SELECT EXISTS (SELECT 1 FROM quote WHERE id = $1 AND tenantId = $2)
	`, quoteId, tc.TenantId).Scan(&exists)
	if err != nil {
		return quote.Invitation{}, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return quote.Invitation{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	err = s.db.QueryRow(`
	INSERT INTO quoteSupplier(tenantId, quoteId, supplierId, status)
	VALUES ($1, $2, $3, 'pending')
	ON CONFLICT (quoteId, supplierId) DO UPDATE SET updatedAt = CURRENT_TIMESTAMP
	RETURNING id, quoteId, supplierId, status, createdAt, updatedAt
	`, tc.TenantId, quoteId, supplierId).Scan(&inv.Id, &inv.QuoteId, &inv.SupplierId, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return quote.Invitation{}, fmt.Errorf("%s: %w", op, err)
	}

	return inv, nil
}

func (s *Storage) ReadInvitations(tc tenant.Context, quoteId string) ([]quote.Invitation, error) {
	const op = "storage.postgres.ReadInvitations"
	result := make([]quote.Invitation, 0)

	rows, err := s.db.Query(`
	SELECT id, quoteId, supplierId, status, createdAt, updatedAt
	FROM quoteSupplier
	WHERE quoteId = $1 AND tenantId = $2
	ORDER BY createdAt
	`, quoteId, tc.TenantId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv quote.Invitation
		err := rows.Scan(&inv.Id, &inv.QuoteId, &inv.SupplierId, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, inv)
	}

	return result, nil
}

func scanResponse(scan func(dest ...any) error) (response.Response, error) {
	var resp response.Response
	var price sql.NullFloat64
	var days sql.NullInt64
	var notes sql.NullString
	var tiers []byte

	err := scan(&resp.Id, &resp.ItemId, &resp.QuoteSupplierId, &resp.SupplierId, &price, &days, &notes, &tiers, &resp.FilledAt)
	if err != nil {
		return response.Response{}, err
	}

	if price.Valid {
		p := price.Float64
		resp.Price = &p
	}
	if days.Valid {
		d := int(days.Int64)
		resp.DeliveryDays = &d
	}
	resp.Notes = notes.String
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &resp.Tiers); err != nil {
			return response.Response{}, err
		}
	}

	return resp, nil
}

const responseColumns = `
	r.id, r.itemId, r.quoteSupplierId, qs.supplierId, r.price, r.deliveryDays, r.notes, r.tiers, r.filledAt`

func (s *Storage) ReadQuoteResponses(tc tenant.Context, quoteId string) ([]response.Response, error) {
	const op = "storage.postgres.ReadQuoteResponses"
	result := make([]response.Response, 0)

	rows, err := s.db.Query(`
	SELECT`+responseColumns+`
	FROM response r
	INNER JOIN quoteSupplier qs
	ON r.quoteSupplierId = qs.id
	WHERE qs.quoteId = $1 AND r.tenantId = $2
	ORDER BY r.itemId, r.filledAt
	`, quoteId, tc.TenantId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		resp, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, resp)
	}

	return result, nil
}

func (s *Storage) ReadItemResponses(tc tenant.Context, itemId string) ([]response.Response, error) {
	const op = "storage.postgres.ReadItemResponses"
	result := make([]response.Response, 0)

	rows, err := s.db.Query(`
	SELECT`+responseColumns+`
	FROM response r
	INNER JOIN quoteSupplier qs
	ON r.quoteSupplierId = qs.id
	WHERE r.itemId = $1 AND r.tenantId = $2
	ORDER BY r.filledAt
	`, itemId, tc.TenantId)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		resp, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, resp)
	}

	return result, nil
}

func (s *Storage) ReadResponse(tc tenant.Context, responseId string) (response.Response, error) {
	const op = "storage.postgres.ReadResponse"

	row := s.db.QueryRow(`
	SELECT`+responseColumns+`
	FROM response r
	INNER JOIN quoteSupplier qs
	ON r.quoteSupplierId = qs.id
	WHERE r.id = $1 AND r.tenantId = $2
	`, responseId, tc.TenantId)

	resp, err := scanResponse(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return response.Response{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

// UpsertResponse stores or replaces the supplier's offer for one item, keyed
// on (item, quoteSupplier). Last write wins on resubmission. The invitation
// status moves to partial, or submitted once every item of the quote has an
// offer from this supplier.
func (s *Storage) UpsertResponse(tc tenant.Context, itemId string, req response.SubmitRequest) (response.Response, error) {
	const op = "storage.postgres.UpsertResponse"

	var quoteSupplierId string
	err := s.db.QueryRow(`
	SELECT qs.id
	FROM quoteItem qi
	INNER JOIN quoteSupplier qs
	ON qs.quoteId = qi.quoteId AND qs.supplierId = $2
	WHERE qi.id = $1 AND qi.tenantId = $3
	`, itemId, req.SupplierId, tc.TenantId).Scan(&quoteSupplierId)
	if errors.Is(err, sql.ErrNoRows) {
		return response.Response{}, fmt.Errorf("%s: %w", op, ErrSupplierNotInvited)
	}
	if err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	var tiers []byte
	if len(req.Tiers) > 0 {
		tiers, err = json.Marshal(req.Tiers)
		if err != nil {
			return response.Response{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
	WITH upserted AS (
		INSERT INTO response(tenantId, itemId, quoteSupplierId, price, deliveryDays, notes, tiers)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (itemId, quoteSupplierId) DO UPDATE
		SET price = EXCLUDED.price,
		    deliveryDays = EXCLUDED.deliveryDays,
		    notes = EXCLUDED.notes,
		    tiers = EXCLUDED.tiers,
		    filledAt = CURRENT_TIMESTAMP
		RETURNING id, itemId, quoteSupplierId, price, deliveryDays, notes, tiers, filledAt
	)
	SELECT u.id, u.itemId, u.quoteSupplierId, qs.supplierId, u.price, u.deliveryDays, u.notes, u.tiers, u.filledAt
	FROM upserted u
	INNER JOIN quoteSupplier qs ON qs.id = u.quoteSupplierId
	`, tc.TenantId, itemId, quoteSupplierId, req.Price, req.DeliveryDays, req.Notes, tiers)

	resp, err := scanResponse(row.Scan)
	if err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.Exec(`
	UPDATE quoteSupplier qs
	SET status = CASE
		WHEN (SELECT COUNT(*) FROM response r WHERE r.quoteSupplierId = qs.id)
		   >= (SELECT COUNT(*) FROM quoteItem qi WHERE qi.quoteId = qs.quoteId)
		THEN 'submitted'
		ELSE 'partial'
	END,
	updatedAt = CURRENT_TIMESTAMP
	WHERE qs.id = $1
	`, quoteSupplierId)
	if err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return response.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

// SetItemWinnerIfUnset records the winner decision only when no decision
// exists yet. The null check runs inside the UPDATE itself, so two racing
// writers cannot both win.
func (s *Storage) SetItemWinnerIfUnset(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error {
	const op = "storage.postgres.SetItemWinnerIfUnset"

	res, err := s.db.Exec(`
	UPDATE quoteItem
	SET winnerSupplierId = $1, winnerResponseId = $2, winnerReason = $3, winnerSetAt = $4
	WHERE id = $5 AND tenantId = $6 AND winnerSupplierId IS NULL
	`, supplierId, responseId, reason, at, itemId, tc.TenantId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		var exists bool
		err = s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM quoteItem WHERE id = $1 AND tenantId = $2)
		`, itemId, tc.TenantId).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, ErrAlreadyDecided)
	}

	return nil
}

// SetItemWinner overwrites any existing winner decision. Used by explicit
// re-invocations of manual selection and tie resolution.
func (s *Storage) SetItemWinner(tc tenant.Context, itemId, supplierId, responseId, reason string, at time.Time) error {
	const op = "storage.postgres.SetItemWinner"

	res, err := s.db.Exec(`
	UPDATE quoteItem
	SET winnerSupplierId = $1, winnerResponseId = $2, winnerReason = $3, winnerSetAt = $4
	WHERE id = $5 AND tenantId = $6
	`, supplierId, responseId, reason, at, itemId, tc.TenantId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (s *Storage) ReadSupplier(tc tenant.Context, supplierId string) (supplier.Supplier, error) {
	const op = "storage.postgres.ReadSupplier"
	var sup supplier.Supplier
	var email sql.NullString

	err := s.db.QueryRow(`
	SELECT id, name, email, createdAt, updatedAt
	FROM supplier
	WHERE id = $1 AND tenantId = $2
	`, supplierId, tc.TenantId).Scan(&sup.Id, &sup.Name, &email, &sup.CreatedAt, &sup.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return supplier.Supplier{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return supplier.Supplier{}, fmt.Errorf("%s: %w", op, err)
	}

	sup.Email = email.String
	return sup, nil
}

// NextPONumber allocates the next sequential number for the tenant and day.
// Format: <prefix>-<YYYYMMDD>-<zero-padded counter>.
func (s *Storage) NextPONumber(tc tenant.Context, prefix string, day time.Time) (string, error) {
	const op = "storage.postgres.NextPONumber"
	var counter int

	err := s.db.QueryRow(`
	INSERT INTO poSequence(tenantId, day, counter)
	VALUES ($1, $2, 1)
	ON CONFLICT (tenantId, day) DO UPDATE SET counter = poSequence.counter + 1
	RETURNING counter
	`, tc.TenantId, day.Format("2006-01-02")).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), counter), nil
}

// BeginGeneration takes the per-quote generation marker. A second caller gets
// ErrGenerationInProgress until FinishGeneration releases it.
func (s *Storage) BeginGeneration(tc tenant.Context, quoteId string) error {
	const op = "storage.postgres.BeginGeneration"

	res, err := s.db.Exec(`
	INSERT INTO poGeneration(quoteId, tenantId)
	VALUES ($1, $2)
	ON CONFLICT (quoteId) DO NOTHING
	`, quoteId, tc.TenantId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrGenerationInProgress)
	}

	return nil
}

func (s *Storage) FinishGeneration(tc tenant.Context, quoteId string) error {
	const op = "storage.postgres.FinishGeneration"

	_, err := s.db.Exec(`
	DELETE FROM poGeneration WHERE quoteId = $1 AND tenantId = $2
	`, quoteId, tc.TenantId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) InsertOrder(tc tenant.Context, po purchase.Order) error {
	const op = "storage.postgres.InsertOrder"

	_, err := s.db.Exec(`
	INSERT INTO purchaseOrder(id, tenantId, number, quoteId, supplierId, status, subtotal, taxAmount, shippingCost, totalAmount, notes)
	VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
	`, po.Id, tc.TenantId, po.Number, po.QuoteId, po.SupplierId, po.Status, po.Subtotal, po.TaxAmount, po.ShippingCost, po.TotalAmount, po.Notes)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) InsertOrderItem(tc tenant.Context, item purchase.OrderItem) error {
	const op = "storage.postgres.InsertOrderItem"

	_, err := s.db.Exec(`
	INSERT INTO purchaseOrderItem(id, orderId, productId, packageId, quantity, unitPrice, totalPrice, quoteItemId, responseId)
	VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, NULLIF($8, '')::uuid, NULLIF($9, '')::uuid)
	`, item.Id, item.OrderId, item.ProductId, item.PackageId, item.Quantity, item.UnitPrice, item.TotalPrice, item.QuoteItemId, item.ResponseId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteOrder removes a purchase order and, via cascade, its items. Used to
// roll back a partially built supplier group.
func (s *Storage) DeleteOrder(tc tenant.Context, orderId string) error {
	const op = "storage.postgres.DeleteOrder"

	_, err := s.db.Exec(`
	DELETE FROM purchaseOrder WHERE id = $1 AND tenantId = $2
	`, orderId, tc.TenantId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RecomputeOrderTotals rebuilds subtotal from the order's items and total
// from subtotal + tax + shipping. Called after any item mutation.
func (s *Storage) RecomputeOrderTotals(tc tenant.Context, orderId string) (float64, float64, error) {
	const op = "storage.postgres.RecomputeOrderTotals"
	var subtotal, total float64

	err := s.db.QueryRow(`
	UPDATE purchaseOrder po
	SET subtotal = COALESCE((SELECT SUM(totalPrice) FROM purchaseOrderItem WHERE orderId = po.id), 0),
	    totalAmount = COALESCE((SELECT SUM(totalPrice) FROM purchaseOrderItem WHERE orderId = po.id), 0) + po.taxAmount + po.shippingCost,
	    updatedAt = CURRENT_TIMESTAMP
	WHERE po.id = $1 AND po.tenantId = $2
	RETURNING subtotal, totalAmount
	`, orderId, tc.TenantId).Scan(&subtotal, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	return subtotal, total, nil
}
