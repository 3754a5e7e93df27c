package managers

import (
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/registry"
)

// Registry owns a wallet's manager set with the same swap-and-pop indexing
// discipline as the payee registry. Settings are validated by highcommand
// before they reach this registry.
type Registry struct {
	index    *registry.Index
	settings map[policy.Address]policy.ManagerSettings
	period   map[policy.Address]policy.ManagerPeriodData
}

// NewRegistry creates an empty manager registry.
func NewRegistry() *Registry {
	return &Registry{
		index:    registry.NewIndex(),
		settings: make(map[policy.Address]policy.ManagerSettings),
		period:   make(map[policy.Address]policy.ManagerPeriodData),
	}
}

// Add registers a manager.
func (r *Registry) Add(addr policy.Address, ms policy.ManagerSettings) error {
	if addr.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero manager address")
	}
	if r.index.Contains(addr) {
		return policy.Reject(policy.ReasonAlreadyExists, "manager %s already registered", addr)
	}
	r.index.Add(addr)
	r.settings[addr] = ms
	r.period[addr] = policy.ManagerPeriodData{}
	return nil
}

// Update replaces an existing manager's settings, preserving spend counters.
func (r *Registry) Update(addr policy.Address, ms policy.ManagerSettings) error {
	if !r.index.Contains(addr) {
		return policy.Reject(policy.ReasonNotFound, "manager %s not registered", addr)
	}
	r.settings[addr] = ms
	return nil
}

// Remove deletes a manager and its counters.
func (r *Registry) Remove(addr policy.Address) error {
	if !r.index.Remove(addr) {
		return policy.Reject(policy.ReasonNotFound, "manager %s not registered", addr)
	}
	delete(r.settings, addr)
	delete(r.period, addr)
	return nil
}

// Contains reports whether addr is a registered manager.
func (r *Registry) Contains(addr policy.Address) bool {
	return r.index.Contains(addr)
}

// Settings returns a manager's settings.
func (r *Registry) Settings(addr policy.Address) (policy.ManagerSettings, bool) {
	ms, ok := r.settings[addr]
	return ms, ok
}

// PeriodData returns a manager's current spend counters.
func (r *Registry) PeriodData(addr policy.Address) policy.ManagerPeriodData {
	return r.period[addr]
}

// CommitPeriodData persists the counters returned by a successful delegated
// transfer validation.
func (r *Registry) CommitPeriodData(addr policy.Address, data policy.ManagerPeriodData) error {
	if !r.index.Contains(addr) {
		return policy.Reject(policy.ReasonNotFound, "manager %s not registered", addr)
	}
	r.period[addr] = data
	return nil
}

// Count returns the number of registered managers.
func (r *Registry) Count() int {
	return r.index.Count()
}

// List returns the registered managers in slot order.
func (r *Registry) List() []policy.Address {
	return r.index.List()
}

// At returns the manager in slot i (1..Count).
func (r *Registry) At(i int) policy.Address {
	return r.index.At(i)
}
