package highcommand

import (
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/pkg/limits"
)

// Protocol-wide bounds on the global manager settings.
const (
	MinManagerPeriod    uint64 = 10
	MaxManagerPeriod    uint64 = 2_600_000
	MaxStartDelay       uint64 = 2_600_000
	MinActivationLength uint64 = 10
	MaxActivationLength uint64 = 26_000_000
)

// ValidateNewManager checks a prospective manager's settings against the
// global ceiling. The registered flag is resolved by the caller from the
// manager registry; a new manager must not already be registered.
func ValidateNewManager(addr policy.Address, registered bool, ms policy.ManagerSettings, gms policy.GlobalManagerSettings) error {
	if addr.IsZero() {
		return policy.Reject(policy.ReasonInvalidConfig, "zero manager address")
	}
	if registered {
		return policy.Reject(policy.ReasonAlreadyExists, "manager %s already registered", addr)
	}
	return validateSettings(ms, gms)
}

// ValidateManagerOnUpdate checks updated settings for an existing manager.
func ValidateManagerOnUpdate(addr policy.Address, registered bool, ms policy.ManagerSettings, gms policy.GlobalManagerSettings) error {
	if !registered {
		return policy.Reject(policy.ReasonNotFound, "manager %s not registered", addr)
	}
	return validateSettings(ms, gms)
}

// validateSettings runs the static checks shared by both entry points.
func validateSettings(ms policy.ManagerSettings, gms policy.GlobalManagerSettings) error {
	if ms.ExpiryBlock != 0 && ms.StartBlock > ms.ExpiryBlock {
		return policy.Reject(policy.ReasonInvalidConfig, "start block after expiry")
	}
	if err := validateLimits(ms.Limits, gms.ManagerPeriod); err != nil {
		return err
	}
	if err := validateAddressList(ms.AllowedAssets, "allowed assets"); err != nil {
		return err
	}
	if err := validateAddressList(ms.TransferPerms.AllowedPayees, "allowed payees"); err != nil {
		return err
	}
	if err := validateLegoList(ms.LegoPerms.AllowedLegos); err != nil {
		return err
	}
	if err := validateIntersection(ms, gms); err != nil {
		return err
	}
	return nil
}

// validateLimits enforces tier ordering, the cooldown bound, and the USD
// zero-price guard.
func validateLimits(ml policy.ManagerLimits, managerPeriod uint64) error {
	if !ml.UnitLimits.Ordered() {
		return policy.Reject(policy.ReasonInvalidConfig, "unit limit tiers out of order")
	}
	if !ml.USDLimits.Ordered() {
		return policy.Reject(policy.ReasonInvalidConfig, "usd limit tiers out of order")
	}
	if managerPeriod != 0 && ml.TxCooldownBlocks > managerPeriod {
		return policy.Reject(policy.ReasonInvalidConfig, "cooldown exceeds manager period")
	}
	// A zero oracle price must never silently bypass a USD cap.
	if !ml.USDLimits.IsZero() && !ml.FailOnZeroPrice {
		return policy.Reject(policy.ReasonInvalidConfig, "usd caps require fail-on-zero-price")
	}
	return nil
}

func validateAddressList(list []policy.Address, what string) error {
	seen := make(map[policy.Address]struct{}, len(list))
	for _, a := range list {
		if a.IsZero() {
			return policy.Reject(policy.ReasonInvalidConfig, "zero address in %s", what)
		}
		if _, dup := seen[a]; dup {
			return policy.Reject(policy.ReasonInvalidConfig, "duplicate %s entry %s", what, a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

func validateLegoList(list []uint32) error {
	seen := make(map[uint32]struct{}, len(list))
	for _, id := range list {
		if id == 0 {
			return policy.Reject(policy.ReasonInvalidConfig, "zero lego id")
		}
		if _, dup := seen[id]; dup {
			return policy.Reject(policy.ReasonInvalidConfig, "duplicate lego id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// validateIntersection ensures a manager is never granted authority beyond
// the global ceiling: every true capability flag must also be true globally,
// and every list entry must appear in the corresponding global list unless
// that global list is empty (empty = unrestricted).
func validateIntersection(ms policy.ManagerSettings, gms policy.GlobalManagerSettings) error {
	type grant struct {
		name      string
		requested bool
		allowed   bool
	}
	grants := []grant{
		{"manage yield", ms.LegoPerms.CanManageYield, gms.LegoPerms.CanManageYield},
		{"buy and sell", ms.LegoPerms.CanBuyAndSell, gms.LegoPerms.CanBuyAndSell},
		{"manage debt", ms.LegoPerms.CanManageDebt, gms.LegoPerms.CanManageDebt},
		{"manage liquidity", ms.LegoPerms.CanManageLiq, gms.LegoPerms.CanManageLiq},
		{"claim rewards", ms.LegoPerms.CanClaimRewards, gms.LegoPerms.CanClaimRewards},
		{"whitelist add pending", ms.WhitelistPerms.CanAddPending, gms.WhitelistPerms.CanAddPending},
		{"whitelist confirm", ms.WhitelistPerms.CanConfirm, gms.WhitelistPerms.CanConfirm},
		{"whitelist cancel", ms.WhitelistPerms.CanCancel, gms.WhitelistPerms.CanCancel},
		{"whitelist remove", ms.WhitelistPerms.CanRemove, gms.WhitelistPerms.CanRemove},
		{"transfer", ms.TransferPerms.CanTransfer, gms.TransferPerms.CanTransfer},
		{"create cheque", ms.TransferPerms.CanCreateCheque, gms.TransferPerms.CanCreateCheque},
		{"add pending payee", ms.TransferPerms.CanAddPendingPayee, gms.TransferPerms.CanAddPendingPayee},
	}
	for _, g := range grants {
		if g.requested && !g.allowed {
			return policy.Reject(policy.ReasonPermissionDenied, "%s not granted globally", g.name)
		}
	}

	if len(gms.LegoPerms.AllowedLegos) > 0 {
		for _, id := range ms.LegoPerms.AllowedLegos {
			if !policy.ContainsLego(gms.LegoPerms.AllowedLegos, id) {
				return policy.Reject(policy.ReasonPermissionDenied, "lego %d not in global allow-list", id)
			}
		}
	}
	if len(gms.AllowedAssets) > 0 {
		for _, a := range ms.AllowedAssets {
			if !policy.ContainsAddress(gms.AllowedAssets, a) {
				return policy.Reject(policy.ReasonPermissionDenied, "asset %s not in global allow-list", a)
			}
		}
	}
	if len(gms.TransferPerms.AllowedPayees) > 0 {
		for _, p := range ms.TransferPerms.AllowedPayees {
			if !policy.ContainsAddress(gms.TransferPerms.AllowedPayees, p) {
				return policy.Reject(policy.ReasonPermissionDenied, "payee %s not in global allow-list", p)
			}
		}
	}

	// Global list hygiene is re-checked on every validation.
	if err := validateAddressList(gms.AllowedAssets, "global allowed assets"); err != nil {
		return err
	}
	if err := validateAddressList(gms.TransferPerms.AllowedPayees, "global allowed payees"); err != nil {
		return err
	}
	if err := validateLegoList(gms.LegoPerms.AllowedLegos); err != nil {
		return err
	}
	return nil
}

// ValidateGlobalManagerSettings applies the static checks to the global
// settings themselves plus bounds on the period, start delay, and activation
// length. walletTimelock is the wallet's base timelock in blocks; the start
// delay must be at least that long.
func ValidateGlobalManagerSettings(gms policy.GlobalManagerSettings, walletTimelock uint64) error {
	if gms.ManagerPeriod < MinManagerPeriod || gms.ManagerPeriod > MaxManagerPeriod {
		return policy.Reject(policy.ReasonInvalidConfig, "manager period %d out of bounds", gms.ManagerPeriod)
	}
	if gms.StartDelay < walletTimelock || gms.StartDelay > MaxStartDelay {
		return policy.Reject(policy.ReasonInvalidConfig, "start delay %d out of bounds", gms.StartDelay)
	}
	if gms.ActivationLength < MinActivationLength || gms.ActivationLength > MaxActivationLength {
		return policy.Reject(policy.ReasonInvalidConfig, "activation length %d out of bounds", gms.ActivationLength)
	}
	if err := validateLimits(gms.Limits, gms.ManagerPeriod); err != nil {
		return err
	}
	if err := validateAddressList(gms.AllowedAssets, "global allowed assets"); err != nil {
		return err
	}
	if err := validateAddressList(gms.TransferPerms.AllowedPayees, "global allowed payees"); err != nil {
		return err
	}
	return validateLegoList(gms.LegoPerms.AllowedLegos)
}

// ValidateTransferByManager checks a delegated transfer against the manager's
// own settings and rolling counters, mirroring the payee pipeline: activation
// window, allow-lists, zero-price guard, cooldown, rollover, tx count, and
// the unit/USD cap tiers. Returns the updated period data to commit when the
// wallet-level transfer succeeds.
func ValidateTransferByManager(
	recipient, asset policy.Address,
	amount, usdValue decimal.Decimal,
	ms policy.ManagerSettings,
	gms policy.GlobalManagerSettings,
	cur policy.ManagerPeriodData,
	now uint64,
) (policy.ManagerPeriodData, error) {
	if !ms.TransferPerms.CanTransfer || !gms.TransferPerms.CanTransfer {
		return cur, policy.Reject(policy.ReasonPermissionDenied, "manager cannot transfer")
	}
	if now < ms.StartBlock {
		return cur, policy.Reject(policy.ReasonNotActivated, "manager not active until block %d", ms.StartBlock)
	}
	if ms.ExpiryBlock != 0 && now >= ms.ExpiryBlock {
		return cur, policy.Reject(policy.ReasonExpired, "manager expired at block %d", ms.ExpiryBlock)
	}
	if len(ms.TransferPerms.AllowedPayees) > 0 && !policy.ContainsAddress(ms.TransferPerms.AllowedPayees, recipient) {
		return cur, policy.Reject(policy.ReasonPermissionDenied, "recipient %s not in manager allow-list", recipient)
	}
	if len(ms.AllowedAssets) > 0 && !policy.ContainsAddress(ms.AllowedAssets, asset) {
		return cur, policy.Reject(policy.ReasonAssetNotAllowed, "asset %s not in manager allow-list", asset)
	}
	if usdValue.IsZero() && (ms.Limits.FailOnZeroPrice || gms.Limits.FailOnZeroPrice) {
		return cur, policy.Reject(policy.ReasonZeroPrice, "zero usd value")
	}

	// The stricter of the manager's and the global cooldown applies.
	cooldown := ms.Limits.TxCooldownBlocks
	if gms.Limits.TxCooldownBlocks > cooldown {
		cooldown = gms.Limits.TxCooldownBlocks
	}
	if cur.LastTxBlock != 0 && now < cur.LastTxBlock+cooldown {
		return cur, policy.Reject(policy.ReasonCooldownActive, "cooldown until block %d", cur.LastTxBlock+cooldown)
	}

	eff := cur
	if cur.PeriodStartBlock == 0 ||
		(gms.ManagerPeriod != 0 && limits.WindowExpired(cur.PeriodStartBlock, gms.ManagerPeriod, now)) {
		eff.NumTxsInPeriod = 0
		eff.TotalUnitsInPeriod = decimal.Zero
		eff.TotalUSDValueInPeriod = decimal.Zero
		eff.PeriodStartBlock = limits.FreshPeriodStart(now)
	}

	if ms.Limits.MaxNumTxsPerPeriod != 0 && eff.NumTxsInPeriod+1 > ms.Limits.MaxNumTxsPerPeriod {
		return cur, policy.Reject(policy.ReasonLimitExceeded, "manager tx count cap")
	}
	if !ms.Limits.UnitLimits.Allows(amount, eff.TotalUnitsInPeriod, cur.TotalUnits) {
		return cur, policy.Reject(policy.ReasonLimitExceeded, "manager unit cap")
	}
	if !ms.Limits.USDLimits.Allows(usdValue, eff.TotalUSDValueInPeriod, cur.TotalUSDValue) {
		return cur, policy.Reject(policy.ReasonLimitExceeded, "manager usd cap")
	}

	eff.NumTxsInPeriod++
	eff.TotalNumTxs++
	eff.TotalUnitsInPeriod = eff.TotalUnitsInPeriod.Add(amount)
	eff.TotalUnits = eff.TotalUnits.Add(amount)
	eff.TotalUSDValueInPeriod = eff.TotalUSDValueInPeriod.Add(usdValue)
	eff.TotalUSDValue = eff.TotalUSDValue.Add(usdValue)
	eff.LastTxBlock = now
	return eff, nil
}

// IsValidNewManager is the boolean form of ValidateNewManager.
func IsValidNewManager(addr policy.Address, registered bool, ms policy.ManagerSettings, gms policy.GlobalManagerSettings) bool {
	return ValidateNewManager(addr, registered, ms, gms) == nil
}

// IsValidManagerOnUpdate is the boolean form of ValidateManagerOnUpdate.
func IsValidManagerOnUpdate(addr policy.Address, registered bool, ms policy.ManagerSettings, gms policy.GlobalManagerSettings) bool {
	return ValidateManagerOnUpdate(addr, registered, ms, gms) == nil
}

// IsValidGlobalManagerSettings is the boolean form of ValidateGlobalManagerSettings.
func IsValidGlobalManagerSettings(gms policy.GlobalManagerSettings, walletTimelock uint64) bool {
	return ValidateGlobalManagerSettings(gms, walletTimelock) == nil
}
