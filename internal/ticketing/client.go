// Package ticketing pushes transaction updates to an external ticketing
// system. The sync is strictly best-effort: failures are reported to the
// caller for logging and never affect the local ledger.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ryfazal/stocklog/internal/model"
)

// Ticket is the read-only projection of a transaction shared with the
// collaborator. The collaborator upserts keyed on tx_id and must tolerate
// seeing the same transaction more than once.
type Ticket struct {
	TxID      string    `json:"tx_id"`
	Type      string    `json:"type"`
	SKU       string    `json:"sku"`
	Qty       int       `json:"qty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Status    string    `json:"status"`
	Ref       string    `json:"ref,omitempty"`
	Confirmed bool      `json:"confirmed"`
	Picker    string    `json:"picker,omitempty"`
	Updated   time.Time `json:"updated"`
}

// FromTransaction builds the collaborator projection of a transaction.
func FromTransaction(tx *model.Transaction) Ticket {
	t := Ticket{
		TxID:    tx.ID,
		Type:    tx.Type,
		SKU:     tx.SKU,
		Qty:     tx.Quantity,
		From:    tx.From,
		To:      tx.To,
		Status:  tx.Status,
		Ref:     tx.Ref,
		Updated: tx.UpdatedAt,
	}
	if tx.Confirmation != nil {
		t.Confirmed = tx.Confirmation.Confirmed
		t.Picker = tx.Confirmation.Picker
	}
	return t
}

// Client talks to the ticketing collaborator over HTTP.
type Client struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
}

// New creates a client for the given base URL. An empty URL yields nil,
// which callers treat as "sync disabled".
func New(baseURL, token string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// upsertResponse is what the collaborator answers with.
type upsertResponse struct {
	TicketRef string `json:"ticket_ref"`
}

// Upsert sends the ticket to the collaborator and returns the remote
// ticket reference, if any.
func (c *Client) Upsert(ctx context.Context, t Ticket) (string, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding ticket: %w", err)
	}

	url := fmt.Sprintf("%s/tickets/%s", c.BaseURL, t.TxID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upserting ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upserting ticket: unexpected status %d", resp.StatusCode)
	}

	var parsed upsertResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&parsed); err != nil {
		// A ref is optional; an unparseable body is still a successful sync.
		return "", nil
	}
	return parsed.TicketRef, nil
}
