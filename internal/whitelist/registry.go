package whitelist

import (
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/registry"
	"github.com/terminal-bench/walletguard/internal/timelock"
)

// Registry owns a wallet's confirmed and pending whitelist entries.
// Whitelisted recipients bypass every payee limit check, so additions always
// wait out the timelock while removals and cancellations are immediate.
type Registry struct {
	index   *registry.Index
	pending *timelock.Store[struct{}]
}

// NewRegistry creates an empty whitelist registry.
func NewRegistry() *Registry {
	return &Registry{
		index:   registry.NewIndex(),
		pending: timelock.NewStore[struct{}](),
	}
}

// AddPending initiates a timelocked whitelist addition. The candidate must
// not be the zero address, the wallet itself, the current owner, or an
// already-confirmed entry.
func (r *Registry) AddPending(addr, owner, walletAddr policy.Address, now, delay uint64) error {
	if addr.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero whitelist address")
	}
	if addr == walletAddr {
		return policy.Reject(policy.ReasonInvalidConfig, "wallet cannot whitelist itself")
	}
	if addr == owner {
		return policy.Reject(policy.ReasonInvalidConfig, "owner cannot be whitelisted")
	}
	if r.index.Contains(addr) {
		return policy.Reject(policy.ReasonAlreadyExists, "%s already whitelisted", addr)
	}
	return r.pending.Add(addr, owner, now, delay, struct{}{})
}

// Confirm moves a pending entry into the confirmed set.
func (r *Registry) Confirm(addr, currentOwner policy.Address, now uint64) error {
	if _, err := r.pending.Confirm(addr, currentOwner, now); err != nil {
		return err
	}
	r.index.Add(addr)
	return nil
}

// CancelPending drops a pending entry without effect.
func (r *Registry) CancelPending(addr policy.Address) error {
	return r.pending.Cancel(addr)
}

// Remove deletes a confirmed entry immediately.
func (r *Registry) Remove(addr policy.Address) error {
	if !r.index.Remove(addr) {
		return policy.Reject(policy.ReasonNotFound, "%s not whitelisted", addr)
	}
	return nil
}

// Contains reports whether addr is a confirmed whitelist entry.
func (r *Registry) Contains(addr policy.Address) bool {
	return r.index.Contains(addr)
}

// HasPending reports whether an addition is pending for addr.
func (r *Registry) HasPending(addr policy.Address) bool {
	return r.pending.Has(addr)
}

// PendingEntry returns the pending record for addr, if any.
func (r *Registry) PendingEntry(addr policy.Address) (timelock.Pending[struct{}], bool) {
	return r.pending.Get(addr)
}

// PendingList returns the addresses with pending additions.
func (r *Registry) PendingList() []policy.Address {
	return r.pending.List()
}

// Count returns the number of confirmed entries.
func (r *Registry) Count() int {
	return r.index.Count()
}

// List returns the confirmed entries in slot order.
func (r *Registry) List() []policy.Address {
	return r.index.List()
}
