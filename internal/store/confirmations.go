package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
)

// CodeTTL is how long a generated pickup code stays valid.
const CodeTTL = 15 * time.Minute

// GenerateCode issues a one-time pickup confirmation code. Only valid for a
// pickup transaction in open or in_transit state that is not yet confirmed.
// Issuing a new code invalidates any previously issued, unconsumed one:
// there is at most one active code per transaction.
func GenerateCode(ctx context.Context, db *sql.DB, transactionID, picker string) (*model.PickupConfirmation, error) {
	if picker == "" {
		return nil, ledger.Validationf("picker", "required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkConfirmable(ctx, tx, transactionID, "issue a code for"); err != nil {
		return nil, err
	}

	var confirmed bool
	err = tx.QueryRowContext(ctx,
		`SELECT confirmed FROM pickup_confirmations WHERE transaction_id = ?`, transactionID,
	).Scan(&confirmed)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking confirmation: %w", err)
	}
	if confirmed {
		return nil, ledger.Validationf("transaction", "pickup already confirmed")
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}
	expires := time.Now().Add(CodeTTL)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pickup_confirmations (transaction_id, picker, method, code, code_expires_at)
		 VALUES (?, ?, 'code', ?, ?)
		 ON CONFLICT (transaction_id) DO UPDATE
		 SET picker = excluded.picker, method = 'code',
		     code = excluded.code, code_expires_at = excluded.code_expires_at`,
		transactionID, picker, code, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("storing code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing code: %w", err)
	}

	return &model.PickupConfirmation{
		TransactionID: transactionID,
		Picker:        picker,
		Method:        model.MethodCode,
		Code:          code,
		CodeExpiresAt: &expires,
	}, nil
}

// ConfirmByCode confirms a pickup with a previously issued code. The code is
// consumed on success. Once a confirmation exists, further attempts return
// the existing record without mutating anything.
func ConfirmByCode(ctx context.Context, db *sql.DB, transactionID, picker, supplied string) (*model.PickupConfirmation, error) {
	if picker == "" {
		return nil, ledger.Validationf("picker", "required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	conf, err := getConfirmation(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}

	// One-way latch: re-confirmation is a no-op success.
	if conf != nil && conf.Confirmed {
		return conf, nil
	}

	if err := checkConfirmable(ctx, tx, transactionID, "confirm"); err != nil {
		return nil, err
	}

	if conf == nil || conf.Code == "" {
		return nil, ledger.Validationf("code", "no active code for transaction")
	}
	if conf.CodeExpiresAt != nil && time.Now().After(*conf.CodeExpiresAt) {
		return nil, fmt.Errorf("transaction %q: %w", transactionID, ledger.ErrExpiredCode)
	}
	if supplied != conf.Code {
		return nil, fmt.Errorf("transaction %q: %w", transactionID, ledger.ErrCodeMismatch)
	}

	// Consume the code so it can never be replayed.
	_, err = tx.ExecContext(ctx,
		`UPDATE pickup_confirmations
		 SET confirmed = 1, confirmed_at = CURRENT_TIMESTAMP, method = 'code',
		     picker = ?, code = NULL
		 WHERE transaction_id = ?`,
		picker, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("confirming pickup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing confirmation: %w", err)
	}

	return getConfirmation(ctx, db, transactionID)
}

// ConfirmBySignature confirms a pickup with a stored signature artifact.
// The artifact must exist and be non-empty. Outstanding codes are ignored.
func ConfirmBySignature(ctx context.Context, db *sql.DB, transactionID, picker string, signatureID int64) (*model.PickupConfirmation, error) {
	if picker == "" {
		return nil, ledger.Validationf("picker", "required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	conf, err := getConfirmation(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if conf != nil && conf.Confirmed {
		return conf, nil
	}

	if err := checkConfirmable(ctx, tx, transactionID, "confirm"); err != nil {
		return nil, err
	}

	var size int
	err = tx.QueryRowContext(ctx,
		`SELECT length(image) FROM signatures WHERE id = ?`, signatureID,
	).Scan(&size)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("signature %d: %w", signatureID, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking signature: %w", err)
	}
	if size == 0 {
		return nil, ledger.Validationf("signature", "artifact is empty")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pickup_confirmations (transaction_id, picker, method, signature_id, confirmed, confirmed_at)
		 VALUES (?, ?, 'signature', ?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT (transaction_id) DO UPDATE
		 SET picker = excluded.picker, method = 'signature', signature_id = excluded.signature_id,
		     confirmed = 1, confirmed_at = CURRENT_TIMESTAMP, code = NULL, code_expires_at = NULL`,
		transactionID, picker, signatureID,
	)
	if err != nil {
		return nil, fmt.Errorf("confirming pickup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing confirmation: %w", err)
	}

	return getConfirmation(ctx, db, transactionID)
}

// checkConfirmable verifies the transaction exists, is a pickup, and is in a
// state where confirmation activity is allowed.
func checkConfirmable(ctx context.Context, q querier, transactionID, op string) error {
	var typ, status string
	err := q.QueryRowContext(ctx,
		`SELECT type, status FROM transactions WHERE id = ?`, transactionID,
	).Scan(&typ, &status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("transaction %q: %w", transactionID, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking transaction: %w", err)
	}
	if typ != model.TxPickup {
		return ledger.Validationf("transaction", "not a pickup")
	}
	if status != model.StatusOpen && status != model.StatusInTransit {
		return &ledger.IllegalStateError{Op: op, Status: status}
	}
	return nil
}

// querier lets confirmation reads run against *sql.DB or *sql.Tx alike.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getConfirmation(ctx context.Context, q querier, transactionID string) (*model.PickupConfirmation, error) {
	c := &model.PickupConfirmation{}
	var method, code sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT transaction_id, picker, method, code, code_expires_at, confirmed, confirmed_at, signature_id
		 FROM pickup_confirmations WHERE transaction_id = ?`, transactionID,
	).Scan(&c.TransactionID, &c.Picker, &method, &code, &c.CodeExpiresAt, &c.Confirmed, &c.ConfirmedAt, &c.SignatureID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting confirmation: %w", err)
	}
	c.Method = method.String
	c.Code = code.String
	return c, nil
}

// generateCode returns a uniformly random 6-digit code, leading zeros kept.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
