package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/terminal-bench/walletguard/internal/highcommand"
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Registry mutators. Each resolves the caller's authority first, then applies
// the mutation under the service lock, then publishes the registry event.

// AddPayee registers a payee immediately. Owner only.
func (s *Service) AddPayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address, ps policy.PayeeSettings) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeeAdded, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can add payees")
		}
		if w.Whitelist.Contains(addr) {
			return policy.Reject(policy.ReasonAlreadyExists, "%s is whitelisted", addr)
		}
		return w.Payees.Add(addr, ps)
	})
}

// UpdatePayee replaces a payee's settings. Owner only.
func (s *Service) UpdatePayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address, ps policy.PayeeSettings) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeeUpdated, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can update payees")
		}
		return w.Payees.Update(addr, ps)
	})
}

// RemovePayee deletes a payee. Owner or a security signer.
func (s *Service) RemovePayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeeRemoved, func(w *Wallet) error {
		if !w.isOwner(caller) && caller.Role != policy.RoleSecurity {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot remove payees")
		}
		return w.Payees.Remove(addr)
	})
}

// AddPendingPayee initiates timelocked payee onboarding. Owner, or a manager
// holding the add-pending-payee capability at both scopes.
func (s *Service) AddPendingPayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address, ps policy.PayeeSettings) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeePendingAdded, func(w *Wallet) error {
		allowed := w.isOwner(caller) || w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
			return ms.TransferPerms.CanAddPendingPayee && gm.TransferPerms.CanAddPendingPayee
		})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot add pending payees")
		}
		if w.Whitelist.Contains(addr) {
			return policy.Reject(policy.ReasonAlreadyExists, "%s is whitelisted", addr)
		}
		return w.Payees.AddPending(addr, w.Owner, w.Address, ps, s.head.Height(), w.Timelock)
	})
}

// ConfirmPendingPayee moves a pending payee into the live registry once the
// timelock has elapsed. Owner only.
func (s *Service) ConfirmPendingPayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeePendingConfirmed, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can confirm payees")
		}
		return w.Payees.ConfirmPending(addr, w.Owner, s.head.Height())
	})
}

// CancelPendingPayee drops a pending payee. Owner, security signer, or a
// manager with the cancel capability; cancelling is always immediate.
func (s *Service) CancelPendingPayee(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.PayeePendingCancelled, func(w *Wallet) error {
		allowed := w.isOwner(caller) || caller.Role == policy.RoleSecurity ||
			w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
				return ms.WhitelistPerms.CanCancel && gm.WhitelistPerms.CanCancel
			})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot cancel pending payees")
		}
		return w.Payees.CancelPending(addr)
	})
}

// AddManager registers a manager after highcommand validation. Owner only.
// A zero start block defaults to now plus the global start delay; a zero
// expiry defaults to the activation length past the start.
func (s *Service) AddManager(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address, ms policy.ManagerSettings) error {
	return s.mutate(ctx, walletID, caller, addr, events.ManagerAdded, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can add managers")
		}
		now := s.head.Height()
		if ms.StartBlock == 0 {
			ms.StartBlock = now + w.GlobalManagers.StartDelay
		}
		if ms.ExpiryBlock == 0 && w.GlobalManagers.ActivationLength != 0 {
			ms.ExpiryBlock = ms.StartBlock + w.GlobalManagers.ActivationLength
		}
		if err := highcommand.ValidateNewManager(addr, w.Managers.Contains(addr), ms, w.GlobalManagers); err != nil {
			return err
		}
		return w.Managers.Add(addr, ms)
	})
}

// UpdateManager replaces a manager's settings after validation. Owner only.
func (s *Service) UpdateManager(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address, ms policy.ManagerSettings) error {
	return s.mutate(ctx, walletID, caller, addr, events.ManagerUpdated, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can update managers")
		}
		if err := highcommand.ValidateManagerOnUpdate(addr, w.Managers.Contains(addr), ms, w.GlobalManagers); err != nil {
			return err
		}
		return w.Managers.Update(addr, ms)
	})
}

// RemoveManager deletes a manager. Owner, security signer, or the manager
// itself (stepping down is risk-reducing).
func (s *Service) RemoveManager(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.ManagerRemoved, func(w *Wallet) error {
		allowed := w.isOwner(caller) || caller.Role == policy.RoleSecurity ||
			(caller.Role == policy.RoleManager && caller.Address == addr)
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot remove managers")
		}
		return w.Managers.Remove(addr)
	})
}

// SetGlobalManagerSettings replaces the wallet-wide manager ceiling. Owner
// only. Existing managers keep their settings; the new ceiling applies to
// subsequent validations and transfers.
func (s *Service) SetGlobalManagerSettings(ctx context.Context, walletID uuid.UUID, caller policy.Caller, gms policy.GlobalManagerSettings) error {
	return s.mutate(ctx, walletID, caller, policy.ZeroAddress, events.GlobalSettingsUpdated, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can change global settings")
		}
		if err := highcommand.ValidateGlobalManagerSettings(gms, w.Timelock); err != nil {
			return err
		}
		w.GlobalManagers = gms
		return nil
	})
}

// SetGlobalPayeeSettings replaces the wallet-wide payment policy. Owner only.
func (s *Service) SetGlobalPayeeSettings(ctx context.Context, walletID uuid.UUID, caller policy.Caller, gp policy.GlobalPayeeSettings) error {
	return s.mutate(ctx, walletID, caller, policy.ZeroAddress, events.GlobalSettingsUpdated, func(w *Wallet) error {
		if !w.isOwner(caller) {
			return policy.Reject(policy.ReasonPermissionDenied, "only the owner can change global settings")
		}
		w.GlobalPayees = gp
		return nil
	})
}

// AddPendingWhitelistAddr initiates a timelocked whitelist addition. Owner,
// or a manager with the add-pending capability at both scopes.
func (s *Service) AddPendingWhitelistAddr(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.WhitelistPendingAdded, func(w *Wallet) error {
		allowed := w.isOwner(caller) || w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
			return ms.WhitelistPerms.CanAddPending && gm.WhitelistPerms.CanAddPending
		})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot add whitelist entries")
		}
		return w.Whitelist.AddPending(addr, w.Owner, w.Address, s.head.Height(), w.Timelock)
	})
}

// ConfirmWhitelistAddr confirms a pending whitelist addition after the
// timelock. Owner, or a manager with the confirm capability.
func (s *Service) ConfirmWhitelistAddr(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.WhitelistConfirmed, func(w *Wallet) error {
		allowed := w.isOwner(caller) || w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
			return ms.WhitelistPerms.CanConfirm && gm.WhitelistPerms.CanConfirm
		})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot confirm whitelist entries")
		}
		return w.Whitelist.Confirm(addr, w.Owner, s.head.Height())
	})
}

// CancelPendingWhitelistAddr drops a pending whitelist addition. Owner,
// security signer, or a manager with the cancel capability.
func (s *Service) CancelPendingWhitelistAddr(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.WhitelistCancelled, func(w *Wallet) error {
		allowed := w.isOwner(caller) || caller.Role == policy.RoleSecurity ||
			w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
				return ms.WhitelistPerms.CanCancel && gm.WhitelistPerms.CanCancel
			})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot cancel whitelist entries")
		}
		return w.Whitelist.CancelPending(addr)
	})
}

// RemoveWhitelistAddr removes a confirmed whitelist entry immediately.
// Owner, security signer, or a manager with the remove capability.
func (s *Service) RemoveWhitelistAddr(ctx context.Context, walletID uuid.UUID, caller policy.Caller, addr policy.Address) error {
	return s.mutate(ctx, walletID, caller, addr, events.WhitelistRemoved, func(w *Wallet) error {
		allowed := w.isOwner(caller) || caller.Role == policy.RoleSecurity ||
			w.managerCan(caller, func(ms policy.ManagerSettings, gm policy.GlobalManagerSettings) bool {
				return ms.WhitelistPerms.CanRemove && gm.WhitelistPerms.CanRemove
			})
		if !allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "caller cannot remove whitelist entries")
		}
		return w.Whitelist.Remove(addr)
	})
}

// mutate applies fn to the wallet under the service lock and, on success,
// refreshes the snapshot cache and publishes the registry event.
func (s *Service) mutate(ctx context.Context, walletID uuid.UUID, caller policy.Caller, subject policy.Address, eventType string, fn func(w *Wallet) error) error {
	s.mu.Lock()
	w, err := s.get(walletID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := fn(w); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := w.snapshot()
	s.mu.Unlock()

	s.writeCache(ctx, walletID, snap)
	s.publish(ctx, eventType, walletID, events.RegistryEvent{
		WalletID:    walletID,
		Caller:      string(caller.Address),
		Subject:     string(subject),
		BlockHeight: s.head.Height(),
		Timestamp:   time.Now(),
	})
	return nil
}
