package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/terminal-bench/walletguard/pkg/messaging"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Ledger is the durable audit trail: every payment decision and every
// registry mutation lands in Postgres, consumed off the event bus.
type Ledger struct {
	db  *sql.DB
	bus *messaging.Client
	log zerolog.Logger
}

// Decision is one recorded authorization outcome.
type Decision struct {
	ID          uuid.UUID `json:"id"`
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
	CreatedAt   time.Time `json:"created_at"`
}

// AuditEntry is one recorded registry mutation.
type AuditEntry struct {
	ID          uuid.UUID `json:"id"`
	WalletID    uuid.UUID `json:"wallet_id"`
	EventType   string    `json:"event_type"`
	Caller      string    `json:"caller"`
	Subject     string    `json:"subject"`
	BlockHeight uint64    `json:"block_height"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewLedger creates a ledger backed by db, consuming from bus.
func NewLedger(db *sql.DB, bus *messaging.Client, log zerolog.Logger) *Ledger {
	return &Ledger{db: db, bus: bus, log: log}
}

// Start attaches the queue consumers. Queue groups let multiple ledger
// instances share the stream without double-writing.
func (l *Ledger) Start() error {
	decisionSubjects := []string{events.PaymentAuthorized, events.PaymentRejected}
	for _, subject := range decisionSubjects {
		if err := l.bus.QueueSubscribe(subject, "ledger", l.consumeDecision); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}

	registrySubjects := []string{
		events.PayeeAdded, events.PayeeUpdated, events.PayeeRemoved,
		events.PayeePendingAdded, events.PayeePendingConfirmed, events.PayeePendingCancelled,
		events.ManagerAdded, events.ManagerUpdated, events.ManagerRemoved,
		events.GlobalSettingsUpdated,
		events.WhitelistPendingAdded, events.WhitelistConfirmed,
		events.WhitelistCancelled, events.WhitelistRemoved,
	}
	for _, subject := range registrySubjects {
		if err := l.bus.QueueSubscribe(subject, "ledger", l.consumeRegistry); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

func (l *Ledger) consumeDecision(msg *nats.Msg) {
	var env messaging.Event
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		l.log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad decision envelope")
		return
	}
	ev, err := messaging.ParseEventData[events.DecisionEvent](&env)
	if err != nil {
		l.log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad decision payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.RecordDecision(ctx, *ev); err != nil {
		l.log.Error().Err(err).Str("wallet_id", ev.WalletID.String()).Msg("decision write failed")
	}
}

func (l *Ledger) consumeRegistry(msg *nats.Msg) {
	var env messaging.Event
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		l.log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad registry envelope")
		return
	}
	ev, err := messaging.ParseEventData[events.RegistryEvent](&env)
	if err != nil {
		l.log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad registry payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.RecordAudit(ctx, env.Type, *ev); err != nil {
		l.log.Error().Err(err).Str("wallet_id", ev.WalletID.String()).Msg("audit write failed")
	}
}

// RecordDecision persists one authorization outcome.
func (l *Ledger) RecordDecision(ctx context.Context, ev events.DecisionEvent) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO decisions (id, wallet_id, caller, caller_role, recipient, asset, amount, usd_value, allowed, reason, block_height, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.New(), ev.WalletID, ev.Caller, ev.CallerRole, ev.Recipient, ev.Asset,
		ev.Amount, ev.USDValue, ev.Allowed, ev.Reason, ev.BlockHeight, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// RecordAudit persists one registry mutation.
func (l *Ledger) RecordAudit(ctx context.Context, eventType string, ev events.RegistryEvent) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO registry_audit (id, wallet_id, event_type, caller, subject, block_height, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), ev.WalletID, eventType, ev.Caller, ev.Subject, ev.BlockHeight, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Decisions returns the most recent decisions for a wallet, newest first.
func (l *Ledger) Decisions(ctx context.Context, walletID uuid.UUID, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, wallet_id, caller, caller_role, recipient, asset, amount, usd_value, allowed, reason, block_height, created_at
		 FROM decisions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`,
		walletID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.WalletID, &d.Caller, &d.CallerRole, &d.Recipient,
			&d.Asset, &d.Amount, &d.USDValue, &d.Allowed, &d.Reason, &d.BlockHeight, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AuditTrail returns the most recent registry mutations for a wallet.
func (l *Ledger) AuditTrail(ctx context.Context, walletID uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, wallet_id, event_type, caller, subject, block_height, created_at
		 FROM registry_audit WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`,
		walletID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.EventType, &e.Caller, &e.Subject, &e.BlockHeight, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RejectionCount counts rejected decisions for a wallet since a cutoff. The
// alert engine uses it to detect rejection bursts.
func (l *Ledger) RejectionCount(ctx context.Context, walletID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE wallet_id = $1 AND allowed = false AND created_at >= $2`,
		walletID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rejections: %w", err)
	}
	return n, nil
}
