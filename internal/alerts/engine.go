package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/pkg/messaging"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Rule kinds.
const (
	RuleUSDAbove   = "usd_above"  // single authorized payment above a USD threshold
	RuleRejections = "rejections" // N rejections inside a rolling window
)

// Engine watches the decision stream and fires alerts when a wallet's rules
// match. Rules persist in Postgres; live evaluation happens in memory.
type Engine struct {
	db  *sql.DB
	bus *messaging.Client
	log zerolog.Logger

	rules   map[uuid.UUID][]*Rule // wallet -> rules
	rulesMu sync.RWMutex

	// rejection timestamps per wallet, trimmed as they age out
	rejections   map[uuid.UUID][]time.Time
	rejectionsMu sync.Mutex

	decisions chan events.DecisionEvent
	stopCh    chan struct{}
}

// Rule is one alert rule.
type Rule struct {
	ID        uuid.UUID       `json:"id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	Kind      string          `json:"kind"`
	Threshold decimal.Decimal `json:"threshold"`
	Window    time.Duration   `json:"window,omitempty"` // rejections only
	CreatedAt time.Time       `json:"created_at"`
}

// NewEngine creates the alert engine.
func NewEngine(db *sql.DB, bus *messaging.Client, log zerolog.Logger) *Engine {
	return &Engine{
		db:         db,
		bus:        bus,
		log:        log,
		rules:      make(map[uuid.UUID][]*Rule),
		rejections: make(map[uuid.UUID][]time.Time),
		decisions:  make(chan events.DecisionEvent, 64),
		stopCh:     make(chan struct{}),
	}
}

// Start loads persisted rules, subscribes to the decision stream, and runs
// the evaluation loop.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.loadRules(ctx); err != nil {
		return err
	}

	for _, subject := range []string{events.PaymentAuthorized, events.PaymentRejected} {
		if err := e.bus.QueueSubscribe(subject, "alerts", e.consumeDecision); err != nil {
			return err
		}
	}

	go e.run(ctx)
	return nil
}

// Stop halts the evaluation loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) loadRules(ctx context.Context) error {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, wallet_id, kind, threshold, window_seconds, created_at FROM alert_rules`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()

	for rows.Next() {
		var r Rule
		var thresholdStr string
		var windowSecs int64
		if err := rows.Scan(&r.ID, &r.WalletID, &r.Kind, &thresholdStr, &windowSecs, &r.CreatedAt); err != nil {
			e.log.Warn().Err(err).Msg("bad alert rule row")
			continue
		}
		r.Threshold, err = decimal.NewFromString(thresholdStr)
		if err != nil {
			continue
		}
		r.Window = time.Duration(windowSecs) * time.Second
		e.rules[r.WalletID] = append(e.rules[r.WalletID], &r)
	}
	return rows.Err()
}

func (e *Engine) consumeDecision(msg *nats.Msg) {
	var env messaging.Event
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return
	}
	ev, err := messaging.ParseEventData[events.DecisionEvent](&env)
	if err != nil {
		return
	}

	select {
	case e.decisions <- *ev:
	default:
		e.log.Warn().Str("wallet_id", ev.WalletID.String()).Msg("decision channel full, dropping")
	}
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case ev := <-e.decisions:
			e.evaluate(ctx, ev)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, ev events.DecisionEvent) {
	e.rulesMu.RLock()
	rules := e.rules[ev.WalletID]
	e.rulesMu.RUnlock()
	if len(rules) == 0 {
		return
	}

	for _, rule := range rules {
		switch rule.Kind {
		case RuleUSDAbove:
			if !ev.Allowed {
				continue
			}
			usd, err := decimal.NewFromString(ev.USDValue)
			if err != nil {
				continue
			}
			if usd.GreaterThan(rule.Threshold) {
				e.fire(ctx, rule, "authorized payment above threshold", ev.USDValue)
			}
		case RuleRejections:
			if ev.Allowed {
				continue
			}
			if n := e.recordRejection(ev.WalletID, rule.Window); decimal.NewFromInt(int64(n)).GreaterThanOrEqual(rule.Threshold) {
				e.fire(ctx, rule, "rejection burst", decimal.NewFromInt(int64(n)).String())
			}
		}
	}
}

// recordRejection appends a rejection timestamp and returns how many fall
// inside the window.
func (e *Engine) recordRejection(walletID uuid.UUID, window time.Duration) int {
	now := time.Now()
	cutoff := now.Add(-window)

	e.rejectionsMu.Lock()
	defer e.rejectionsMu.Unlock()

	kept := e.rejections[walletID][:0]
	for _, t := range e.rejections[walletID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	e.rejections[walletID] = kept
	return len(kept)
}

func (e *Engine) fire(ctx context.Context, rule *Rule, message, value string) {
	ev := events.AlertEvent{
		AlertID:   rule.ID,
		WalletID:  rule.WalletID,
		Rule:      rule.Kind,
		Message:   message,
		Value:     value,
		Threshold: rule.Threshold.String(),
		Timestamp: time.Now(),
	}

	e.log.Info().Str("wallet_id", rule.WalletID.String()).Str("rule", rule.Kind).Str("value", value).Msg("alert fired")
	if err := e.bus.PublishEvent(ctx, events.AlertTriggered, rule.WalletID, ev, "alert-engine"); err != nil {
		e.log.Warn().Err(err).Msg("alert publish failed")
	}
}

// CreateRule persists a rule and adds it to the live set.
func (e *Engine) CreateRule(ctx context.Context, walletID uuid.UUID, kind string, threshold decimal.Decimal, window time.Duration) (*Rule, error) {
	rule := &Rule{
		ID:        uuid.New(),
		WalletID:  walletID,
		Kind:      kind,
		Threshold: threshold,
		Window:    window,
		CreatedAt: time.Now(),
	}

	_, err := e.db.ExecContext(ctx,
		`INSERT INTO alert_rules (id, wallet_id, kind, threshold, window_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rule.ID, rule.WalletID, rule.Kind, rule.Threshold.String(), int64(window.Seconds()), rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.rulesMu.Lock()
	e.rules[walletID] = append(e.rules[walletID], rule)
	e.rulesMu.Unlock()

	return rule, nil
}

// Rules returns the live rules for a wallet.
func (e *Engine) Rules(walletID uuid.UUID) []*Rule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return append([]*Rule(nil), e.rules[walletID]...)
}

// DeleteRule removes a rule from storage and the live set.
func (e *Engine) DeleteRule(ctx context.Context, walletID, ruleID uuid.UUID) error {
	res, err := e.db.ExecContext(ctx,
		`DELETE FROM alert_rules WHERE id = $1 AND wallet_id = $2`, ruleID, walletID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	e.rulesMu.Lock()
	rules := e.rules[walletID]
	for i, r := range rules {
		if r.ID == ruleID {
			e.rules[walletID] = append(rules[:i], rules[i+1:]...)
			break
		}
	}
	e.rulesMu.Unlock()
	return nil
}
