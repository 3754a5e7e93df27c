package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Payment decisions
	PaymentAuthorized = "payment.authorized"
	PaymentRejected   = "payment.rejected"

	// Payee registry
	PayeeAdded            = "payee.added"
	PayeeUpdated          = "payee.updated"
	PayeeRemoved          = "payee.removed"
	PayeePendingAdded     = "payee.pending_added"
	PayeePendingConfirmed = "payee.pending_confirmed"
	PayeePendingCancelled = "payee.pending_cancelled"

	// Manager registry
	ManagerAdded          = "manager.added"
	ManagerUpdated        = "manager.updated"
	ManagerRemoved        = "manager.removed"
	GlobalSettingsUpdated = "manager.global_settings_updated"

	// Whitelist registry
	WhitelistPendingAdded = "whitelist.pending_added"
	WhitelistConfirmed    = "whitelist.confirmed"
	WhitelistCancelled    = "whitelist.cancelled"
	WhitelistRemoved      = "whitelist.removed"

	// Chain
	ChainBlock = "chain.block"

	// Alerts
	AlertTriggered = "alerts.triggered"
)

// DecisionEvent records the outcome of one payment authorization attempt.
// Amounts travel as decimal strings.
type DecisionEvent struct {
	WalletID    uuid.UUID `json:"wallet_id"`
	Caller      string    `json:"caller"`
	CallerRole  string    `json:"caller_role"`
	Recipient   string    `json:"recipient"`
	Asset       string    `json:"asset"`
	Amount      string    `json:"amount"`
	USDValue    string    `json:"usd_value"`
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	BlockHeight uint64    `json:"block_height"`
	Timestamp   time.Time `json:"timestamp"`
}

// RegistryEvent records a mutation of one of a wallet's registries. Subject
// is the payee/manager/whitelist address the mutation targeted.
type RegistryEvent struct {
	WalletID    uuid.UUID `json:"wallet_id"`
	Caller      string    `json:"caller"`
	Subject     string    `json:"subject"`
	BlockHeight uint64    `json:"block_height"`
	Timestamp   time.Time `json:"timestamp"`
}

// BlockEvent announces a new chain head.
type BlockEvent struct {
	Height    uint64    `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertEvent is published when an alert rule fires.
type AlertEvent struct {
	AlertID   uuid.UUID `json:"alert_id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Rule      string    `json:"rule"`
	Message   string    `json:"message"`
	Value     string    `json:"value,omitempty"`
	Threshold string    `json:"threshold,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
