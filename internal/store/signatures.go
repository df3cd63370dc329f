package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ryfazal/stocklog/internal/ledger"
)

// CreateSignature stores a signature artifact and returns its id.
func CreateSignature(ctx context.Context, db *sql.DB, image []byte, mime string) (int64, error) {
	if len(image) == 0 {
		return 0, ledger.Validationf("signature", "artifact is empty")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO signatures (image, image_mime) VALUES (?, ?)`,
		image, mime,
	)
	if err != nil {
		return 0, fmt.Errorf("storing signature: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting signature id: %w", err)
	}
	return id, nil
}

// GetSignature returns a signature artifact's data and MIME type.
func GetSignature(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM signatures WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting signature: %w", err)
	}
	return image, mime, nil
}
