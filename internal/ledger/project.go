// Package ledger holds the pure core of the engine: the error taxonomy and
// the snapshot projector. The projector is a function of the completed
// transaction log only — it is never cached, so a stock figure can always be
// recomputed from scratch with identical results.
package ledger

import (
	"sort"
	"time"

	"github.com/ryfazal/stocklog/internal/model"
)

// Row is one signed quantity delta for a (SKU, location) pair, derived
// from a single completed transaction. Rows are never persisted.
type Row struct {
	SKU           string    `json:"sku"`
	Location      string    `json:"location"`
	Delta         int       `json:"delta"`
	TransactionID string    `json:"transaction_id"`
	At            time.Time `json:"at"`
}

// Key identifies a stock balance.
type Key struct {
	SKU      string
	Location string
}

// Level is an aggregated balance for API responses.
type Level struct {
	SKU      string `json:"sku"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

// Project expands completed, applied transactions into ledger rows.
// Transactions in any other state contribute nothing.
//
//	pickup      -qty at from
//	delivery    +qty at to
//	return      +qty at to
//	transfer    -qty at from, +qty at to
//	adjustment  +qty at to
func Project(txns []model.Transaction) []Row {
	var rows []Row
	for _, tx := range txns {
		if tx.Status != model.StatusCompleted || !tx.Applied {
			continue
		}

		at := tx.UpdatedAt
		if tx.AppliedAt != nil {
			at = *tx.AppliedAt
		}

		switch tx.Type {
		case model.TxPickup:
			rows = append(rows, Row{SKU: tx.SKU, Location: tx.From, Delta: -tx.Quantity, TransactionID: tx.ID, At: at})
		case model.TxDelivery, model.TxReturn, model.TxAdjustment:
			rows = append(rows, Row{SKU: tx.SKU, Location: tx.To, Delta: tx.Quantity, TransactionID: tx.ID, At: at})
		case model.TxTransfer:
			rows = append(rows,
				Row{SKU: tx.SKU, Location: tx.From, Delta: -tx.Quantity, TransactionID: tx.ID, At: at},
				Row{SKU: tx.SKU, Location: tx.To, Delta: tx.Quantity, TransactionID: tx.ID, At: at},
			)
		}
	}
	return rows
}

// Aggregate sums ledger rows into per-(SKU, location) balances. Summation is
// commutative, so the result is independent of row order. If sku is
// non-empty, only rows for that SKU are counted.
func Aggregate(rows []Row, sku string) map[Key]int {
	balances := make(map[Key]int)
	for _, r := range rows {
		if sku != "" && r.SKU != sku {
			continue
		}
		balances[Key{SKU: r.SKU, Location: r.Location}] += r.Delta
	}
	return balances
}

// Levels flattens aggregated balances into a deterministic sorted slice.
func Levels(balances map[Key]int) []Level {
	levels := make([]Level, 0, len(balances))
	for k, qty := range balances {
		levels = append(levels, Level{SKU: k.SKU, Location: k.Location, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].SKU != levels[j].SKU {
			return levels[i].SKU < levels[j].SKU
		}
		return levels[i].Location < levels[j].Location
	})
	return levels
}

// Snapshot is a convenience composition of Project, Aggregate, and Levels.
func Snapshot(txns []model.Transaction, sku string) []Level {
	return Levels(Aggregate(Project(txns), sku))
}
