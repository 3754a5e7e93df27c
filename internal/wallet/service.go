package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/internal/highcommand"
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/sentinel"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Publisher is the slice of the messaging client the service needs.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, walletID uuid.UUID, data interface{}, source string) error
}

// PriceSource values (asset, amount) pairs in USD. A zero result is passed
// through to the sentinel, which applies the zero-price policy.
type PriceSource interface {
	USDValue(ctx context.Context, asset policy.Address, amount decimal.Decimal) (decimal.Decimal, error)
}

// BlockSource supplies the current block height.
type BlockSource interface {
	Height() uint64
}

// Service owns all wallet aggregates and is the only mutation path into them.
// A single lock serializes validation and commit, so a decision can never be
// made against counters that another commit is about to change.
type Service struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*Wallet

	bus    Publisher     // optional
	cache  *redis.Client // optional snapshot cache
	prices PriceSource
	head   BlockSource
	log    zerolog.Logger
}

// NewService creates a wallet service. bus and cache may be nil.
func NewService(bus Publisher, cache *redis.Client, prices PriceSource, head BlockSource, log zerolog.Logger) *Service {
	return &Service{
		wallets: make(map[uuid.UUID]*Wallet),
		bus:     bus,
		cache:   cache,
		prices:  prices,
		head:    head,
		log:     log,
	}
}

// CreateWallet registers a new wallet aggregate.
func (s *Service) CreateWallet(ctx context.Context, addr, owner policy.Address, timeLock uint64, gp policy.GlobalPayeeSettings, gm policy.GlobalManagerSettings) (*Snapshot, error) {
	if addr.IsZero() || owner.IsZero() {
		return nil, policy.Reject(policy.ReasonInvalidConfig, "wallet and owner addresses required")
	}
	if err := highcommand.ValidateGlobalManagerSettings(gm, timeLock); err != nil {
		return nil, err
	}

	w := newWallet(uuid.New(), addr, owner, timeLock, gp, gm)

	s.mu.Lock()
	s.wallets[w.ID] = w
	snap := w.snapshot()
	s.mu.Unlock()

	s.log.Info().Str("wallet_id", w.ID.String()).Str("owner", string(owner)).Msg("wallet created")
	s.writeCache(ctx, w.ID, snap)
	return snap, nil
}

// Snapshot returns the wallet's externally visible state.
func (s *Service) Snapshot(ctx context.Context, walletID uuid.UUID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, policy.Reject(policy.ReasonNotFound, "wallet %s", walletID)
	}
	return w.snapshot(), nil
}

func (s *Service) get(walletID uuid.UUID) (*Wallet, error) {
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, policy.Reject(policy.ReasonNotFound, "wallet %s", walletID)
	}
	return w, nil
}

// PaymentResult is the outcome of a payment check or authorization.
type PaymentResult struct {
	Allowed     bool            `json:"allowed"`
	Reason      policy.Reason   `json:"reason,omitempty"`
	USDValue    decimal.Decimal `json:"usd_value"`
	BlockHeight uint64          `json:"block_height"`
}

// paymentOutcome bundles a result with the counters to commit on success.
type paymentOutcome struct {
	result      PaymentResult
	payeeData   *policy.PayeePeriodData
	managerData *policy.ManagerPeriodData
}

// CheckPayment runs the full validation for a payment without committing any
// counters: a dry run of AuthorizePayment.
func (s *Service) CheckPayment(ctx context.Context, walletID uuid.UUID, caller policy.Caller, recipient, asset policy.Address, amount decimal.Decimal) (*PaymentResult, error) {
	usdValue, err := s.prices.USDValue(ctx, asset, amount)
	if err != nil {
		return nil, err
	}
	now := s.head.Height()

	s.mu.RLock()
	defer s.mu.RUnlock()
	w, err := s.get(walletID)
	if err != nil {
		return nil, err
	}
	out := validateLocked(w, caller, recipient, asset, amount, usdValue, now)
	return &out.result, nil
}

// AuthorizePayment validates a payment and, when it passes every check,
// commits the updated counters and publishes the decision. Validation and
// commit happen under one lock; a rejection leaves every counter exactly as
// it was.
func (s *Service) AuthorizePayment(ctx context.Context, walletID uuid.UUID, caller policy.Caller, recipient, asset policy.Address, amount decimal.Decimal) (*PaymentResult, error) {
	// The oracle call happens before the lock; the price is an input to the
	// decision, not shared state.
	usdValue, err := s.prices.USDValue(ctx, asset, amount)
	if err != nil {
		return nil, err
	}
	now := s.head.Height()

	s.mu.Lock()
	w, err := s.get(walletID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := validateLocked(w, caller, recipient, asset, amount, usdValue, now)
	if out.result.Allowed {
		if out.payeeData != nil {
			if err := w.Payees.CommitPeriodData(recipient, *out.payeeData); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
		if out.managerData != nil {
			if err := w.Managers.CommitPeriodData(caller.Address, *out.managerData); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
	}
	snap := w.snapshot()
	s.mu.Unlock()

	eventType := events.PaymentRejected
	if out.result.Allowed {
		eventType = events.PaymentAuthorized
		s.writeCache(ctx, walletID, snap)
	}
	s.publish(ctx, eventType, walletID, events.DecisionEvent{
		WalletID:    walletID,
		Caller:      string(caller.Address),
		CallerRole:  string(caller.Role),
		Recipient:   string(recipient),
		Asset:       string(asset),
		Amount:      amount.String(),
		USDValue:    usdValue.String(),
		Allowed:     out.result.Allowed,
		Reason:      string(out.result.Reason),
		BlockHeight: now,
		Timestamp:   time.Now(),
	})

	return &out.result, nil
}

// validateLocked resolves caller flags and runs the sentinel (and, for
// delegated transfers, the manager pipeline). Caller holds the service lock.
func validateLocked(w *Wallet, caller policy.Caller, recipient, asset policy.Address, amount, usdValue decimal.Decimal, now uint64) paymentOutcome {
	out := paymentOutcome{result: PaymentResult{USDValue: usdValue, BlockHeight: now}}

	var managerData *policy.ManagerPeriodData
	if caller.Role == policy.RoleManager {
		ms, ok := w.Managers.Settings(caller.Address)
		if !ok {
			out.result.Reason = policy.ReasonPermissionDenied
			return out
		}
		data, err := highcommand.ValidateTransferByManager(recipient, asset, amount, usdValue, ms, w.GlobalManagers, w.Managers.PeriodData(caller.Address), now)
		if err != nil {
			out.result.Reason = policy.ReasonOf(err)
			return out
		}
		managerData = &data
	}

	flags := sentinel.CallerFlags{
		IsWhitelisted:     w.Whitelist.Contains(recipient),
		IsOwner:           recipient == w.Owner,
		IsRegisteredPayee: w.Payees.Contains(recipient),
	}
	ps, _ := w.Payees.Settings(recipient)
	cur := w.Payees.PeriodData(recipient)

	decision := sentinel.ValidatePayee(flags, sentinel.Transfer{
		Asset:    asset,
		Amount:   amount,
		USDValue: usdValue,
	}, ps, w.GlobalPayees, cur, now)

	out.result.Allowed = decision.Allowed
	out.result.Reason = decision.Reason
	if !decision.Allowed {
		return out
	}

	// The sentinel returns unchanged data on the whitelist and owner paths;
	// only registered-payee data is committed.
	if flags.IsRegisteredPayee && !flags.IsWhitelisted && !flags.IsOwner {
		out.payeeData = &decision.Data
	}
	out.managerData = managerData
	return out
}

// IsValidPayee resolves the recipient's flags and reports whether a transfer
// with a pre-computed USD value would be accepted right now. No state is
// written.
func (s *Service) IsValidPayee(ctx context.Context, walletID uuid.UUID, recipient, asset policy.Address, amount, usdValue decimal.Decimal) (bool, error) {
	now := s.head.Height()

	s.mu.RLock()
	defer s.mu.RUnlock()
	w, err := s.get(walletID)
	if err != nil {
		return false, err
	}

	flags := sentinel.CallerFlags{
		IsWhitelisted:     w.Whitelist.Contains(recipient),
		IsOwner:           recipient == w.Owner,
		IsRegisteredPayee: w.Payees.Contains(recipient),
	}
	ps, _ := w.Payees.Settings(recipient)
	cur := w.Payees.PeriodData(recipient)

	ok, _ := sentinel.IsValidPayeeAndGetData(flags, sentinel.Transfer{
		Asset:    asset,
		Amount:   amount,
		USDValue: usdValue,
	}, ps, w.GlobalPayees, cur, now)
	return ok, nil
}

// TransferOwnership hands the wallet to a new owner. Pending actions
// initiated under the old owner become unconfirmable.
func (s *Service) TransferOwnership(ctx context.Context, walletID uuid.UUID, caller policy.Caller, newOwner policy.Address) error {
	if newOwner.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero owner address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.get(walletID)
	if err != nil {
		return err
	}
	if !w.isOwner(caller) {
		return policy.Reject(policy.ReasonPermissionDenied, "only the owner can transfer ownership")
	}
	w.Owner = newOwner
	s.log.Info().Str("wallet_id", walletID.String()).Str("owner", string(newOwner)).Msg("ownership transferred")
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, walletID uuid.UUID, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishEvent(ctx, eventType, walletID, data, "wallet-service"); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

func (s *Service) writeCache(ctx context.Context, walletID uuid.UUID, snap *Snapshot) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, "wallet:"+walletID.String(), payload, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("wallet_id", walletID.String()).Msg("snapshot cache write failed")
	}
}
