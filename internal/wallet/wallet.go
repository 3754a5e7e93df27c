package wallet

import (
	"github.com/google/uuid"

	"github.com/terminal-bench/walletguard/internal/managers"
	"github.com/terminal-bench/walletguard/internal/payees"
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/whitelist"
)

// Wallet is one user wallet's authorization state: owner identity, global
// settings, and the three registries. All mutation goes through the Service,
// which serializes access per wallet.
type Wallet struct {
	ID       uuid.UUID
	Address  policy.Address
	Owner    policy.Address
	Timelock uint64 // base timelock in blocks for pending actions

	GlobalPayees   policy.GlobalPayeeSettings
	GlobalManagers policy.GlobalManagerSettings

	Payees    *payees.Registry
	Managers  *managers.Registry
	Whitelist *whitelist.Registry
}

// Snapshot is the externally visible wallet state.
type Snapshot struct {
	ID               uuid.UUID        `json:"id"`
	Address          policy.Address   `json:"address"`
	Owner            policy.Address   `json:"owner"`
	Timelock         uint64           `json:"timelock"`
	PayeeCount       int              `json:"payee_count"`
	ManagerCount     int              `json:"manager_count"`
	WhitelistCount   int              `json:"whitelist_count"`
	Payees           []policy.Address `json:"payees"`
	Managers         []policy.Address `json:"managers"`
	Whitelist        []policy.Address `json:"whitelist"`
	PendingWhitelist []policy.Address `json:"pending_whitelist"`
}

func newWallet(id uuid.UUID, addr, owner policy.Address, timeLock uint64, gp policy.GlobalPayeeSettings, gm policy.GlobalManagerSettings) *Wallet {
	return &Wallet{
		ID:             id,
		Address:        addr,
		Owner:          owner,
		Timelock:       timeLock,
		GlobalPayees:   gp,
		GlobalManagers: gm,
		Payees:         payees.NewRegistry(),
		Managers:       managers.NewRegistry(),
		Whitelist:      whitelist.NewRegistry(),
	}
}

func (w *Wallet) snapshot() *Snapshot {
	return &Snapshot{
		ID:               w.ID,
		Address:          w.Address,
		Owner:            w.Owner,
		Timelock:         w.Timelock,
		PayeeCount:       w.Payees.Count(),
		ManagerCount:     w.Managers.Count(),
		WhitelistCount:   w.Whitelist.Count(),
		Payees:           w.Payees.List(),
		Managers:         w.Managers.List(),
		Whitelist:        w.Whitelist.List(),
		PendingWhitelist: w.Whitelist.PendingList(),
	}
}

// isOwner reports whether the caller is the wallet owner acting as owner.
func (w *Wallet) isOwner(caller policy.Caller) bool {
	return caller.Role == policy.RoleOwner && caller.Address == w.Owner
}

// managerCan reports whether the caller is a registered manager holding the
// given capability both in its own settings and in the global ceiling.
func (w *Wallet) managerCan(caller policy.Caller, pick func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool) bool {
	if caller.Role != policy.RoleManager {
		return false
	}
	ms, ok := w.Managers.Settings(caller.Address)
	if !ok {
		return false
	}
	return pick(ms, w.GlobalManagers)
}
