package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ryfazal/stocklog/internal/model"
)

func completedTx(id, typ, sku string, qty int, from, to string) model.Transaction {
	now := time.Now()
	return model.Transaction{
		ID:        id,
		Type:      typ,
		SKU:       sku,
		Quantity:  qty,
		From:      from,
		To:        to,
		Status:    model.StatusCompleted,
		Applied:   true,
		AppliedAt: &now,
		UpdatedAt: now,
	}
}

func TestProjectExpansion(t *testing.T) {
	tests := []struct {
		typ  string
		from string
		to   string
		want []Row
	}{
		{model.TxPickup, "WH1", "", []Row{{SKU: "A", Location: "WH1", Delta: -5}}},
		{model.TxDelivery, "", "WH1", []Row{{SKU: "A", Location: "WH1", Delta: 5}}},
		{model.TxReturn, "", "WH1", []Row{{SKU: "A", Location: "WH1", Delta: 5}}},
		{model.TxAdjustment, "", "WH1", []Row{{SKU: "A", Location: "WH1", Delta: 5}}},
		{model.TxTransfer, "WH1", "WH2", []Row{
			{SKU: "A", Location: "WH1", Delta: -5},
			{SKU: "A", Location: "WH2", Delta: 5},
		}},
	}

	for _, tt := range tests {
		rows := Project([]model.Transaction{completedTx("t1", tt.typ, "A", 5, tt.from, tt.to)})
		if len(rows) != len(tt.want) {
			t.Errorf("%s: expected %d rows, got %d", tt.typ, len(tt.want), len(rows))
			continue
		}
		for i, want := range tt.want {
			got := rows[i]
			if got.SKU != want.SKU || got.Location != want.Location || got.Delta != want.Delta {
				t.Errorf("%s row %d: got (%s, %s, %d), want (%s, %s, %d)",
					tt.typ, i, got.SKU, got.Location, got.Delta, want.SKU, want.Location, want.Delta)
			}
		}
	}
}

func TestProjectSkipsNonCompleted(t *testing.T) {
	txns := []model.Transaction{
		{ID: "t1", Type: model.TxDelivery, SKU: "A", Quantity: 5, To: "WH1", Status: model.StatusOpen},
		{ID: "t2", Type: model.TxDelivery, SKU: "A", Quantity: 5, To: "WH1", Status: model.StatusInTransit},
		{ID: "t3", Type: model.TxDelivery, SKU: "A", Quantity: 5, To: "WH1", Status: model.StatusCancelled},
		// Completed but not applied must not count either.
		{ID: "t4", Type: model.TxDelivery, SKU: "A", Quantity: 5, To: "WH1", Status: model.StatusCompleted},
	}

	if rows := Project(txns); len(rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(rows))
	}
}

func TestAggregateOrderIndependence(t *testing.T) {
	var txns []model.Transaction
	txns = append(txns, completedTx("t1", model.TxAdjustment, "A", 100, "", "WH1"))
	txns = append(txns, completedTx("t2", model.TxTransfer, "A", 20, "WH1", "WH2"))
	txns = append(txns, completedTx("t3", model.TxPickup, "A", 5, "WH2", ""))
	txns = append(txns, completedTx("t4", model.TxReturn, "A", 2, "", "WH2"))
	txns = append(txns, completedTx("t5", model.TxDelivery, "B", 7, "", "WH1"))

	want := Aggregate(Project(txns), "")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]model.Transaction, len(txns))
		copy(shuffled, txns)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Aggregate(Project(shuffled), "")
		if len(got) != len(want) {
			t.Fatalf("shuffle %d: expected %d balances, got %d", i, len(want), len(got))
		}
		for k, qty := range want {
			if got[k] != qty {
				t.Errorf("shuffle %d: balance for %v = %d, want %d", i, k, got[k], qty)
			}
		}
	}
}

func TestTransferConservation(t *testing.T) {
	txns := []model.Transaction{
		completedTx("t1", model.TxTransfer, "A", 10, "WH1", "WH2"),
		completedTx("t2", model.TxTransfer, "A", 4, "WH2", "WH3"),
		completedTx("t3", model.TxTransfer, "A", 1, "WH3", "WH1"),
	}

	sum := 0
	for _, r := range Project(txns) {
		sum += r.Delta
	}
	if sum != 0 {
		t.Errorf("transfer deltas must sum to zero, got %d", sum)
	}
}

func TestAggregateSKUFilter(t *testing.T) {
	txns := []model.Transaction{
		completedTx("t1", model.TxDelivery, "A", 5, "", "WH1"),
		completedTx("t2", model.TxDelivery, "B", 7, "", "WH1"),
	}

	balances := Aggregate(Project(txns), "A")
	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	if balances[Key{SKU: "A", Location: "WH1"}] != 5 {
		t.Errorf("expected A@WH1 = 5, got %d", balances[Key{SKU: "A", Location: "WH1"}])
	}
}

func TestLevelsSorted(t *testing.T) {
	balances := map[Key]int{
		{SKU: "B", Location: "WH1"}: 1,
		{SKU: "A", Location: "WH2"}: 2,
		{SKU: "A", Location: "WH1"}: 3,
	}

	levels := Levels(balances)
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if levels[0].SKU != "A" || levels[0].Location != "WH1" {
		t.Errorf("expected A@WH1 first, got %s@%s", levels[0].SKU, levels[0].Location)
	}
	if levels[2].SKU != "B" {
		t.Errorf("expected B last, got %s", levels[2].SKU)
	}
}
