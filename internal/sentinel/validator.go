package sentinel

import (
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/pkg/limits"
)

// CallerFlags are the identity facts resolved from the registries before the
// decision function runs. The validator itself never touches storage.
type CallerFlags struct {
	IsWhitelisted     bool
	IsOwner           bool
	IsRegisteredPayee bool
}

// Transfer is a proposed outbound payment.
type Transfer struct {
	Asset    policy.Address
	Amount   decimal.Decimal
	USDValue decimal.Decimal
}

// Decision is the outcome of a validation. When Allowed is false, Reason
// says why. Data is the period snapshot the caller must persist if and only
// if the overall wallet-level transfer ultimately succeeds.
type Decision struct {
	Allowed bool
	Reason  policy.Reason
	Data    policy.PayeePeriodData
}

func reject(data policy.PayeePeriodData, reason policy.Reason) Decision {
	return Decision{Allowed: false, Reason: reason, Data: data}
}

// ValidatePayee decides whether a transfer to a recipient is permitted at
// block now, and returns the updated period data to commit on success.
//
// The rules are evaluated top to bottom; the first matching rule decides:
// whitelisted recipients always pass with no data mutation, the owner passes
// iff the global settings allow owner payments, unregistered recipients fail,
// and registered payees run the full limit pipeline.
func ValidatePayee(
	flags CallerFlags,
	xfer Transfer,
	ps policy.PayeeSettings,
	gs policy.GlobalPayeeSettings,
	cur policy.PayeePeriodData,
	now uint64,
) Decision {
	// Whitelisting is the maximum-trust escape hatch: no limit checks of any
	// kind, including the zero-price guard.
	if flags.IsWhitelisted {
		return Decision{Allowed: true, Data: cur}
	}

	if flags.IsOwner {
		if !gs.CanPayOwner {
			return reject(cur, policy.ReasonPermissionDenied)
		}
		return Decision{Allowed: true, Data: cur}
	}

	if !flags.IsRegisteredPayee {
		return reject(cur, policy.ReasonNotFound)
	}

	// Activation window. Expiry is an exclusive upper bound: a payee whose
	// expiry equals now is already expired.
	if now < ps.StartBlock {
		return reject(cur, policy.ReasonNotActivated)
	}
	if ps.ExpiryBlock != 0 && now >= ps.ExpiryBlock {
		return reject(cur, policy.ReasonExpired)
	}

	// Either scope can force the zero-price rejection; neither can override
	// the other's.
	if xfer.USDValue.IsZero() && (ps.FailOnZeroPrice || gs.FailOnZeroPrice) {
		return reject(cur, policy.ReasonZeroPrice)
	}

	if ps.OnlyPrimaryAsset && xfer.Asset != ps.PrimaryAsset {
		return reject(cur, policy.ReasonAssetNotAllowed)
	}

	periodLength := ps.PeriodLength
	if periodLength == 0 {
		periodLength = gs.DefaultPeriodLength
	}

	// The stricter (larger) of the two cooldowns always applies.
	cooldown := ps.TxCooldownBlocks
	if gs.TxCooldownBlocks > cooldown {
		cooldown = gs.TxCooldownBlocks
	}
	if cur.LastTxBlock != 0 && now < cur.LastTxBlock+cooldown {
		return reject(cur, policy.ReasonCooldownActive)
	}

	// On rollover (or first use) the remaining checks run against a fresh
	// period snapshot; lifetime counters are untouched.
	eff := cur
	if cur.PeriodStartBlock == 0 ||
		(periodLength != 0 && limits.WindowExpired(cur.PeriodStartBlock, periodLength, now)) {
		eff.NumTxsInPeriod = 0
		eff.TotalUnitsInPeriod = decimal.Zero
		eff.TotalUSDValueInPeriod = decimal.Zero
		eff.PeriodStartBlock = limits.FreshPeriodStart(now)
	}

	if ps.MaxNumTxsPerPeriod != 0 && eff.NumTxsInPeriod+1 > ps.MaxNumTxsPerPeriod {
		return reject(cur, policy.ReasonLimitExceeded)
	}
	if gs.MaxNumTxsPerPeriod != 0 && eff.NumTxsInPeriod+1 > gs.MaxNumTxsPerPeriod {
		return reject(cur, policy.ReasonLimitExceeded)
	}

	// Unit caps track the primary asset only; transfers of other assets never
	// touch unit counters or unit caps.
	isPrimary := xfer.Asset == ps.PrimaryAsset
	if isPrimary {
		if !ps.UnitLimits.AllowsTx(xfer.Amount) ||
			!ps.UnitLimits.AllowsPeriod(eff.TotalUnitsInPeriod, xfer.Amount) ||
			!ps.UnitLimits.AllowsLifetime(cur.TotalUnits, xfer.Amount) {
			return reject(cur, policy.ReasonLimitExceeded)
		}
	}

	// USD caps apply regardless of asset.
	if !ps.USDLimits.AllowsTx(xfer.USDValue) ||
		!ps.USDLimits.AllowsPeriod(eff.TotalUSDValueInPeriod, xfer.USDValue) ||
		!ps.USDLimits.AllowsLifetime(cur.TotalUSDValue, xfer.USDValue) {
		return reject(cur, policy.ReasonLimitExceeded)
	}

	eff.NumTxsInPeriod++
	eff.TotalNumTxs++
	if isPrimary {
		eff.TotalUnitsInPeriod = eff.TotalUnitsInPeriod.Add(xfer.Amount)
		eff.TotalUnits = eff.TotalUnits.Add(xfer.Amount)
	}
	eff.TotalUSDValueInPeriod = eff.TotalUSDValueInPeriod.Add(xfer.USDValue)
	eff.TotalUSDValue = eff.TotalUSDValue.Add(xfer.USDValue)
	eff.LastTxBlock = now

	return Decision{Allowed: true, Data: eff}
}

// IsValidPayeeAndGetData is the boolean-pair form of ValidatePayee.
func IsValidPayeeAndGetData(
	flags CallerFlags,
	xfer Transfer,
	ps policy.PayeeSettings,
	gs policy.GlobalPayeeSettings,
	cur policy.PayeePeriodData,
	now uint64,
) (bool, policy.PayeePeriodData) {
	d := ValidatePayee(flags, xfer, ps, gs, cur, now)
	return d.Allowed, d.Data
}
