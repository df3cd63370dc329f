package model

import "time"

// Transaction types.
const (
	TxPickup     = "pickup"
	TxDelivery   = "delivery"
	TxReturn     = "return"
	TxTransfer   = "transfer"
	TxAdjustment = "adjustment"
)

// Transaction statuses.
const (
	StatusOpen      = "open"
	StatusInTransit = "in_transit"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Confirmation methods.
const (
	MethodCode      = "code"
	MethodSignature = "signature"
)

// AdjustLocation is the synthetic counterparty location for adjustments
// that name no explicit target.
const AdjustLocation = "ADJUST"

// ValidType reports whether typ is a known transaction type.
func ValidType(typ string) bool {
	switch typ {
	case TxPickup, TxDelivery, TxReturn, TxTransfer, TxAdjustment:
		return true
	}
	return false
}

// transitions maps each status to the statuses it may move to.
// Completed and cancelled are terminal.
var transitions = map[string][]string{
	StatusOpen:      {StatusInTransit, StatusCompleted, StatusCancelled},
	StatusInTransit: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a transaction may move from one status to
// another. Unknown statuses fail closed.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transaction is a single entry in the append-only movement log. Stock is
// never mutated directly: completed transactions are projected into stock
// levels on read.
type Transaction struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	SKU       string     `json:"sku"`
	Quantity  int        `json:"quantity"`
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
	Ref       string     `json:"ref,omitempty"`
	Status    string     `json:"status"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *int64     `json:"created_by,omitempty"`

	Confirmation *PickupConfirmation `json:"confirmation,omitempty"`
	ExternalSync *ExternalSync       `json:"external_sync,omitempty"`
}

// PickupConfirmation records proof of handover for a pickup transaction.
// The one-time code never leaves the server after issuance.
type PickupConfirmation struct {
	TransactionID string     `json:"transaction_id"`
	Picker        string     `json:"picker,omitempty"`
	Method        string     `json:"method,omitempty"`
	Code          string     `json:"-"`
	CodeExpiresAt *time.Time `json:"code_expires_at,omitempty"`
	Confirmed     bool       `json:"confirmed"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	SignatureID   *int64     `json:"signature_id,omitempty"`
}

// ExternalSync tracks the ticketing system's reference for a transaction.
type ExternalSync struct {
	TicketRef string    `json:"ticket_ref"`
	SyncedAt  time.Time `json:"synced_at"`
}
