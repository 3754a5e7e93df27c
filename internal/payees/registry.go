package payees

import (
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/registry"
	"github.com/terminal-bench/walletguard/internal/timelock"
)

// Registry owns a wallet's payee set: settings, rolling period data, and the
// pending-onboarding entries. It is not safe for concurrent use; the owning
// wallet aggregate serializes access.
type Registry struct {
	index    *registry.Index
	settings map[policy.Address]policy.PayeeSettings
	period   map[policy.Address]policy.PayeePeriodData
	pending  *timelock.Store[policy.PayeeSettings]
}

// NewRegistry creates an empty payee registry.
func NewRegistry() *Registry {
	return &Registry{
		index:    registry.NewIndex(),
		settings: make(map[policy.Address]policy.PayeeSettings),
		period:   make(map[policy.Address]policy.PayeePeriodData),
		pending:  timelock.NewStore[policy.PayeeSettings](),
	}
}

// Add registers a payee with its settings. Period data starts empty and is
// first populated by a committed payment.
func (r *Registry) Add(addr policy.Address, ps policy.PayeeSettings) error {
	if addr.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero payee address")
	}
	if ps.ExpiryBlock != 0 && ps.StartBlock > ps.ExpiryBlock {
		return policy.Reject(policy.ReasonInvalidConfig, "start block after expiry")
	}
	if r.index.Contains(addr) {
		return policy.Reject(policy.ReasonAlreadyExists, "payee %s already registered", addr)
	}
	r.index.Add(addr)
	r.settings[addr] = ps
	r.period[addr] = policy.PayeePeriodData{}
	return nil
}

// Update replaces an existing payee's settings. Period data is preserved:
// changing limits never forgets what was already spent.
func (r *Registry) Update(addr policy.Address, ps policy.PayeeSettings) error {
	if !r.index.Contains(addr) {
		return policy.Reject(policy.ReasonNotFound, "payee %s not registered", addr)
	}
	if ps.ExpiryBlock != 0 && ps.StartBlock > ps.ExpiryBlock {
		return policy.Reject(policy.ReasonInvalidConfig, "start block after expiry")
	}
	r.settings[addr] = ps
	return nil
}

// Remove deletes a payee and its counters via swap-and-pop.
func (r *Registry) Remove(addr policy.Address) error {
	if !r.index.Remove(addr) {
		return policy.Reject(policy.ReasonNotFound, "payee %s not registered", addr)
	}
	delete(r.settings, addr)
	delete(r.period, addr)
	return nil
}

// Contains reports whether addr is a registered payee.
func (r *Registry) Contains(addr policy.Address) bool {
	return r.index.Contains(addr)
}

// Settings returns a payee's settings.
func (r *Registry) Settings(addr policy.Address) (policy.PayeeSettings, bool) {
	ps, ok := r.settings[addr]
	return ps, ok
}

// PeriodData returns a payee's current counters.
func (r *Registry) PeriodData(addr policy.Address) policy.PayeePeriodData {
	return r.period[addr]
}

// CommitPeriodData persists the counters returned by a successful validation.
// Called only after the wallet-level transfer has succeeded.
func (r *Registry) CommitPeriodData(addr policy.Address, data policy.PayeePeriodData) error {
	if !r.index.Contains(addr) {
		return policy.Reject(policy.ReasonNotFound, "payee %s not registered", addr)
	}
	r.period[addr] = data
	return nil
}

// AddPending initiates timelocked onboarding for a payee.
func (r *Registry) AddPending(addr, owner, walletAddr policy.Address, ps policy.PayeeSettings, now, delay uint64) error {
	if addr.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero payee address")
	}
	if addr == walletAddr {
		return policy.Reject(policy.ReasonInvalidConfig, "wallet cannot be its own payee")
	}
	if addr == owner {
		return policy.Reject(policy.ReasonInvalidConfig, "owner cannot be a pending payee")
	}
	if r.index.Contains(addr) {
		return policy.Reject(policy.ReasonAlreadyExists, "payee %s already registered", addr)
	}
	if ps.ExpiryBlock != 0 && ps.StartBlock > ps.ExpiryBlock {
		return policy.Reject(policy.ReasonInvalidConfig, "start block after expiry")
	}
	return r.pending.Add(addr, owner, now, delay, ps)
}

// ConfirmPending moves a pending payee into the live registry.
func (r *Registry) ConfirmPending(addr, currentOwner policy.Address, now uint64) error {
	ps, err := r.pending.Confirm(addr, currentOwner, now)
	if err != nil {
		return err
	}
	return r.Add(addr, ps)
}

// CancelPending drops a pending payee without effect.
func (r *Registry) CancelPending(addr policy.Address) error {
	return r.pending.Cancel(addr)
}

// HasPending reports whether onboarding is pending for addr.
func (r *Registry) HasPending(addr policy.Address) bool {
	return r.pending.Has(addr)
}

// Count returns the number of registered payees.
func (r *Registry) Count() int {
	return r.index.Count()
}

// List returns the registered payees in slot order.
func (r *Registry) List() []policy.Address {
	return r.index.List()
}

// At returns the payee in slot i (1..Count).
func (r *Registry) At(i int) policy.Address {
	return r.index.At(i)
}
