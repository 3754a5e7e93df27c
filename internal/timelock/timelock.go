package timelock

import (
	"github.com/terminal-bench/walletguard/internal/policy"
)

// Pending is a two-phase action waiting out its timelock. CurrentOwner is the
// wallet owner captured at initiation; confirmation fails if ownership has
// changed since, so a superseded owner's authorizations can never be replayed.
type Pending[T any] struct {
	InitiatedBlock uint64         `json:"initiated_block"`
	ConfirmBlock   uint64         `json:"confirm_block"`
	CurrentOwner   policy.Address `json:"current_owner"`
	Payload        T              `json:"payload"`
}

// Store tracks pending actions keyed by address. Confirmation consumes the
// entry exactly once; cancellation deletes it without effect and never waits
// out the timelock, since cancelling is strictly risk-reducing.
type Store[T any] struct {
	pending map[policy.Address]Pending[T]
}

// NewStore creates an empty pending-action store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{pending: make(map[policy.Address]Pending[T])}
}

// Add records a pending action for addr. Fails if one is already pending.
func (s *Store[T]) Add(addr, owner policy.Address, now, delay uint64, payload T) error {
	if _, exists := s.pending[addr]; exists {
		return policy.Reject(policy.ReasonAlreadyExists, "action already pending for %s", addr)
	}
	s.pending[addr] = Pending[T]{
		InitiatedBlock: now,
		ConfirmBlock:   now + delay,
		CurrentOwner:   owner,
		Payload:        payload,
	}
	return nil
}

// Confirm consumes the pending entry for addr and returns its payload. Fails
// if nothing is pending, the timelock has not elapsed, or the wallet's owner
// no longer matches the owner captured at initiation.
func (s *Store[T]) Confirm(addr, currentOwner policy.Address, now uint64) (T, error) {
	var zero T
	p, exists := s.pending[addr]
	if !exists {
		return zero, policy.Reject(policy.ReasonNotFound, "nothing pending for %s", addr)
	}
	if now < p.ConfirmBlock {
		return zero, policy.Reject(policy.ReasonTimelockNotReached, "confirmable at block %d", p.ConfirmBlock)
	}
	if p.CurrentOwner != currentOwner {
		return zero, policy.Reject(policy.ReasonOwnerMismatch, "owner changed since initiation")
	}
	delete(s.pending, addr)
	return p.Payload, nil
}

// Cancel deletes the pending entry for addr unconditionally.
func (s *Store[T]) Cancel(addr policy.Address) error {
	if _, exists := s.pending[addr]; !exists {
		return policy.Reject(policy.ReasonNotFound, "nothing pending for %s", addr)
	}
	delete(s.pending, addr)
	return nil
}

// Get returns the pending entry for addr, if any.
func (s *Store[T]) Get(addr policy.Address) (Pending[T], bool) {
	p, exists := s.pending[addr]
	return p, exists
}

// Has reports whether an action is pending for addr.
func (s *Store[T]) Has(addr policy.Address) bool {
	_, exists := s.pending[addr]
	return exists
}

// List returns the addresses with pending actions.
func (s *Store[T]) List() []policy.Address {
	out := make([]policy.Address, 0, len(s.pending))
	for addr := range s.pending {
		out = append(out, addr)
	}
	return out
}
