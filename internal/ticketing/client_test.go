package ticketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ryfazal/stocklog/internal/model"
)

func TestUpsertSendsProjection(t *testing.T) {
	var got Ticket
	var method, path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"ticket_ref": "TCK-7"})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "token-123")

	now := time.Now()
	tx := &model.Transaction{
		ID: "abc", Type: model.TxPickup, SKU: "SKU-001", Quantity: 5,
		From: "WH1", Ref: "ORDER1001", Status: model.StatusCompleted, UpdatedAt: now,
		Confirmation: &model.PickupConfirmation{Picker: "alice", Confirmed: true},
	}

	ref, err := client.Upsert(context.Background(), FromTransaction(tx))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "TCK-7" {
		t.Errorf("expected ticket ref TCK-7, got %q", ref)
	}

	if method != http.MethodPut || path != "/tickets/abc" {
		t.Errorf("expected PUT /tickets/abc, got %s %s", method, path)
	}
	if got.TxID != "abc" || got.SKU != "SKU-001" || got.Qty != 5 {
		t.Errorf("unexpected projection: %+v", got)
	}
	if !got.Confirmed || got.Picker != "alice" {
		t.Errorf("expected confirmed picker projection, got %+v", got)
	}
}

func TestUpsertReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "")
	_, err := client.Upsert(context.Background(), Ticket{TxID: "abc"})
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUpsertToleratesEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "")
	ref, err := client.Upsert(context.Background(), Ticket{TxID: "abc"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "" {
		t.Errorf("expected no ref, got %q", ref)
	}
}

func TestNewDisabledWithoutURL(t *testing.T) {
	if client := New("", "token"); client != nil {
		t.Error("expected nil client for empty URL")
	}
}
