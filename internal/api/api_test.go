package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ryfazal/stocklog/internal/auth"
	"github.com/ryfazal/stocklog/internal/db"
	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
	"github.com/ryfazal/stocklog/internal/store"
	"github.com/ryfazal/stocklog/internal/ticketing"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	// Get token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}

	return server, token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request and decodes the JSON response into out
// (when out is non-nil), failing the test on an unexpected status.
func do(t *testing.T, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", method, url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/transactions")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create a regular user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "user1", string(hash), model.RoleUser)

	userToken, _ := auth.GenerateToken(testJWTSecret, 1, "user1", model.RoleUser)

	// Regular user should not be able to add items (manager+ required).
	req, _ := authRequest("POST", server.URL+"/api/items", userToken, map[string]any{
		"sku": "WIDGET-1", "name": "Widget",
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user adding item, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Regular user should not access /api/users.
	req, _ = authRequest("GET", server.URL+"/api/users", userToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// TestPickupFlow walks the full pickup lifecycle over the API: seed stock,
// open a pickup, hit the confirmation gate, confirm with a one-time code,
// complete, and check the derived snapshot.
func TestPickupFlow(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "WIDGET-1", "name": "Widget", "initial_qty": 100, "location": "WH1",
	}, http.StatusCreated, nil)

	var txn model.Transaction
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "pickup", "sku": "WIDGET-1", "quantity": 5, "from": "WH1", "ref": "ORDER1001",
	}, http.StatusCreated, &txn)
	if txn.Status != model.StatusOpen {
		t.Fatalf("new transaction status = %q, want open", txn.Status)
	}

	// Completing before confirmation must be rejected.
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/complete", token, nil,
		http.StatusConflict, nil)

	// Issue a code and confirm with it.
	var codeResp pickupCodeResponse
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/pickup-code", token,
		map[string]string{"picker": "alice"}, http.StatusCreated, &codeResp)
	if len(codeResp.Code) != 6 {
		t.Fatalf("code %q is not 6 digits", codeResp.Code)
	}

	var conf model.PickupConfirmation
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/confirm-code", token,
		map[string]string{"picker": "alice", "code": codeResp.Code}, http.StatusOK, &conf)
	if !conf.Confirmed {
		t.Fatal("confirmation not marked confirmed")
	}

	// Now completion goes through.
	var completed model.Transaction
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/complete", token, nil,
		http.StatusOK, &completed)
	if completed.Status != model.StatusCompleted || !completed.Applied {
		t.Fatalf("completed transaction: status=%q applied=%v", completed.Status, completed.Applied)
	}

	// The snapshot reflects the pickup.
	var levels []ledger.Level
	do(t, "GET", server.URL+"/api/stock?sku=WIDGET-1", token, nil, http.StatusOK, &levels)
	if len(levels) != 1 || levels[0].Location != "WH1" || levels[0].Quantity != 95 {
		t.Fatalf("snapshot = %+v, want 95 at WH1", levels)
	}
}

func TestWrongCodeRejected(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "BOLT-9", "name": "Bolt", "initial_qty": 10, "location": "WH1",
	}, http.StatusCreated, nil)

	var txn model.Transaction
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "pickup", "sku": "BOLT-9", "quantity": 1, "from": "WH1",
	}, http.StatusCreated, &txn)

	var codeResp pickupCodeResponse
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/pickup-code", token,
		map[string]string{"picker": "bob"}, http.StatusCreated, &codeResp)

	wrong := "000000"
	if wrong == codeResp.Code {
		wrong = "000001"
	}
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/confirm-code", token,
		map[string]string{"picker": "bob", "code": wrong}, http.StatusUnprocessableEntity, nil)
}

func TestTransactionValidation(t *testing.T) {
	server, token := setupTestServer(t)

	// Unknown type.
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "teleport", "sku": "X", "quantity": 1,
	}, http.StatusBadRequest, nil)

	// Unknown SKU.
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "delivery", "sku": "NOPE", "quantity": 1, "to": "WH1",
	}, http.StatusNotFound, nil)

	// Duplicate item.
	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "DUP-1", "name": "Dup",
	}, http.StatusCreated, nil)
	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "DUP-1", "name": "Dup",
	}, http.StatusConflict, nil)
}

func TestCancelledTransactionIsTerminal(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "GEAR-2", "name": "Gear", "initial_qty": 50, "location": "WH1",
	}, http.StatusCreated, nil)

	var txn model.Transaction
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "transfer", "sku": "GEAR-2", "quantity": 10, "from": "WH1", "to": "WH2",
	}, http.StatusCreated, &txn)

	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/cancel", token, nil, http.StatusOK, nil)
	do(t, "POST", server.URL+"/api/transactions/"+txn.ID+"/complete", token, nil, http.StatusConflict, nil)

	// Cancelled transfers never move stock.
	var levels []ledger.Level
	do(t, "GET", server.URL+"/api/stock?sku=GEAR-2", token, nil, http.StatusOK, &levels)
	if len(levels) != 1 || levels[0].Quantity != 50 {
		t.Fatalf("snapshot = %+v, want 50 at WH1", levels)
	}
}

func TestStockCSVExport(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "NUT-3", "name": "Nut", "initial_qty": 7, "location": "WH1",
	}, http.StatusCreated, nil)

	req, _ := authRequest("GET", server.URL+"/api/stock/export?sku=NUT-3", token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	body := buf.String()
	if !strings.HasPrefix(body, "sku,location,quantity\n") {
		t.Errorf("missing csv header in %q", body)
	}
	if !strings.Contains(body, "NUT-3,WH1,7") {
		t.Errorf("missing stock row in %q", body)
	}
}

// TestTicketingSync checks that completed transactions are pushed to the
// ticketing endpoint and the returned reference lands on the transaction.
func TestTicketingSync(t *testing.T) {
	synced := make(chan ticketPayload, 4)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p ticketPayload
		json.NewDecoder(r.Body).Decode(&p)
		synced <- p
		jsonResponse(w, http.StatusOK, map[string]string{"ticket_ref": "TCK-42"})
	}))
	t.Cleanup(remote.Close)

	database := db.NewTestDB(t)
	sync := ticketing.New(remote.URL, "")
	router := NewRouter(database, testJWTSecret, sync)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)
	token, _ := auth.GenerateToken(testJWTSecret, 1, "admin", model.RoleAdmin)

	do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"sku": "CAM-7", "name": "Camera", "initial_qty": 3, "location": "WH1",
	}, http.StatusCreated, nil)

	var txn model.Transaction
	do(t, "POST", server.URL+"/api/transactions", token, map[string]any{
		"type": "delivery", "sku": "CAM-7", "quantity": 2, "to": "WH1",
	}, http.StatusCreated, &txn)

	select {
	case p := <-synced:
		if p.TxID != txn.ID || p.Status != model.StatusOpen {
			t.Fatalf("unexpected sync payload: %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync")
	}

	// The ticket ref is stored asynchronously after the response.
	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, err := store.GetTransaction(ctx, database, txn.ID)
		if err != nil {
			t.Fatalf("get transaction: %v", err)
		}
		if stored.ExternalSync != nil {
			if stored.ExternalSync.TicketRef != "TCK-42" {
				t.Fatalf("ticket ref = %q, want TCK-42", stored.ExternalSync.TicketRef)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ticket ref")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type ticketPayload struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
}
