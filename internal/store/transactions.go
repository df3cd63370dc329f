package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
)

// CreateParams are the inputs for a new transaction.
type CreateParams struct {
	Type      string
	SKU       string
	Quantity  int
	From      string
	To        string
	Ref       string
	CreatedBy *int64
}

// CreateTransaction validates and records a new transaction in status open.
// Any location named for the first time is registered as a side effect.
// Runs as a single SQL transaction so no partial mutation is observable.
func CreateTransaction(ctx context.Context, db *sql.DB, p CreateParams) (*model.Transaction, error) {
	if !model.ValidType(p.Type) {
		return nil, ledger.Validationf("type", "unknown transaction type %q", p.Type)
	}
	if p.SKU == "" {
		return nil, ledger.Validationf("sku", "required")
	}
	if p.Quantity <= 0 {
		return nil, ledger.Validationf("quantity", "must be positive")
	}

	// Per-type location requirements.
	switch p.Type {
	case model.TxPickup:
		if p.From == "" {
			return nil, ledger.Validationf("from", "required for pickup")
		}
	case model.TxDelivery:
		if p.To == "" {
			return nil, ledger.Validationf("to", "required for delivery")
		}
	case model.TxReturn:
		if p.To == "" {
			return nil, ledger.Validationf("to", "required for return")
		}
	case model.TxTransfer:
		if p.From == "" {
			return nil, ledger.Validationf("from", "required for transfer")
		}
		if p.To == "" {
			return nil, ledger.Validationf("to", "required for transfer")
		}
	case model.TxAdjustment:
		if p.To == "" {
			p.To = model.AdjustLocation
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The SKU must be registered and active.
	var active bool
	err = tx.QueryRowContext(ctx, `SELECT active FROM items WHERE sku = ?`, p.SKU).Scan(&active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %q: %w", p.SKU, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if !active {
		return nil, ledger.Validationf("sku", "item %q is inactive", p.SKU)
	}

	// First reference registers a location.
	for _, loc := range []string{p.From, p.To} {
		if loc == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO locations (name) VALUES (?)`, loc,
		); err != nil {
			return nil, fmt.Errorf("registering location %q: %w", loc, err)
		}
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, type, sku, quantity, from_location, to_location, ref, status, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'open', ?)`,
		id, p.Type, p.SKU, p.Quantity, nullString(p.From), nullString(p.To), nullString(p.Ref), p.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("recording transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return GetTransaction(ctx, db, id)
}

// TransitionTransaction moves a transaction to the target status, enforcing
// the transition table. Completing applies the transaction to the ledger:
// status and the applied flag land in one UPDATE, so an observer can never
// see one without the other. Completing an already-completed transaction is
// a no-op; it is never re-applied.
func TransitionTransaction(ctx context.Context, db *sql.DB, id, target string) (*model.Transaction, error) {
	switch target {
	case model.StatusInTransit, model.StatusCompleted, model.StatusCancelled:
	default:
		return nil, ledger.Validationf("status", "unknown target status %q", target)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var typ, status string
	err = tx.QueryRowContext(ctx,
		`SELECT type, status FROM transactions WHERE id = ?`, id,
	).Scan(&typ, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %q: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking transaction: %w", err)
	}

	// Idempotent completion: already completed means already applied once.
	if target == model.StatusCompleted && status == model.StatusCompleted {
		return GetTransaction(ctx, db, id)
	}

	if !model.CanTransition(status, target) {
		return nil, &ledger.IllegalStateError{Op: "move to " + target, Status: status}
	}

	if target == model.StatusCompleted {
		// Pickups need confirmed proof of possession before they apply.
		if typ == model.TxPickup {
			var confirmed bool
			err = tx.QueryRowContext(ctx,
				`SELECT confirmed FROM pickup_confirmations WHERE transaction_id = ?`, id,
			).Scan(&confirmed)
			if err != nil && err != sql.ErrNoRows {
				return nil, fmt.Errorf("checking confirmation: %w", err)
			}
			if !confirmed {
				return nil, fmt.Errorf("transaction %q: %w", id, ledger.ErrConfirmationRequired)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transactions
			 SET status = 'completed', applied = 1, applied_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			target, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("updating transaction status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}

	return GetTransaction(ctx, db, id)
}

// CompleteTransaction transitions to completed and applies the transaction.
func CompleteTransaction(ctx context.Context, db *sql.DB, id string) (*model.Transaction, error) {
	return TransitionTransaction(ctx, db, id, model.StatusCompleted)
}

// CancelTransaction transitions to cancelled. A cancelled transaction never
// contributes a ledger row, even if it sat in transit.
func CancelTransaction(ctx context.Context, db *sql.DB, id string) (*model.Transaction, error) {
	return TransitionTransaction(ctx, db, id, model.StatusCancelled)
}

// SetTicketRef attaches the ticketing collaborator's reference to a
// transaction. This bookkeeping is the only write allowed after a
// transaction freezes.
func SetTicketRef(ctx context.Context, db *sql.DB, id, ref string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE transactions SET ticket_ref = ?, synced_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ref, id,
	)
	if err != nil {
		return fmt.Errorf("setting ticket ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %q: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// GetTransaction returns a transaction by ID with its pickup confirmation
// sub-record, if any. Returns nil if not found.
func GetTransaction(ctx context.Context, db *sql.DB, id string) (*model.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, type, sku, quantity, from_location, to_location, ref, status,
		        applied, applied_at, created_at, updated_at, created_by, ticket_ref, synced_at
		 FROM transactions WHERE id = ?`, id,
	)

	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	conf, err := getConfirmation(ctx, db, id)
	if err != nil {
		return nil, err
	}
	t.Confirmation = conf
	return t, nil
}

// TxFilter narrows ListTransactions. Empty fields match everything.
type TxFilter struct {
	SKU    string
	Status string
	Type   string
}

// ListTransactions returns transactions newest first, optionally filtered.
func ListTransactions(ctx context.Context, db *sql.DB, f TxFilter) ([]model.Transaction, error) {
	query := `SELECT id, type, sku, quantity, from_location, to_location, ref, status,
	                 applied, applied_at, created_at, updated_at, created_by, ticket_ref, synced_at
	          FROM transactions WHERE 1=1`
	var args []any

	if f.SKU != "" {
		query += ` AND sku = ?`
		args = append(args, f.SKU)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}

	query += ` ORDER BY created_at DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*model.Transaction, error) {
	t := &model.Transaction{}
	var from, to, ref, ticketRef sql.NullString
	var syncedAt sql.NullTime
	err := scan(&t.ID, &t.Type, &t.SKU, &t.Quantity, &from, &to, &ref, &t.Status,
		&t.Applied, &t.AppliedAt, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &ticketRef, &syncedAt)
	if err != nil {
		return nil, err
	}
	t.From = from.String
	t.To = to.String
	t.Ref = ref.String
	if ticketRef.Valid {
		t.ExternalSync = &model.ExternalSync{TicketRef: ticketRef.String, SyncedAt: syncedAt.Time}
	}
	return t, nil
}

// nullString maps empty strings to NULL for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
