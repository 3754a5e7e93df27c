package policy

import (
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/pkg/limits"
)

// Address identifies an on-ledger account. The zero value is the reserved
// "no address" sentinel and is never a valid payee, manager, or recipient.
type Address string

// ZeroAddress is the reserved empty address.
const ZeroAddress Address = ""

// IsZero reports whether a is the reserved empty address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// PayeeSettings is the per-payee configuration.
type PayeeSettings struct {
	StartBlock         uint64          `json:"start_block"`
	ExpiryBlock        uint64          `json:"expiry_block"` // 0 = never expires; exclusive upper bound
	CanPull            bool            `json:"can_pull"`
	PeriodLength       uint64          `json:"period_length"` // 0 = inherit the global default
	MaxNumTxsPerPeriod uint64          `json:"max_num_txs_per_period"`
	TxCooldownBlocks   uint64          `json:"tx_cooldown_blocks"`
	FailOnZeroPrice    bool            `json:"fail_on_zero_price"`
	PrimaryAsset       Address         `json:"primary_asset"`
	OnlyPrimaryAsset   bool            `json:"only_primary_asset"`
	UnitLimits         limits.LimitSet `json:"unit_limits"`
	USDLimits          limits.LimitSet `json:"usd_limits"`
}

// PayeePeriodData holds a payee's rolling and lifetime counters. Period
// counters reset on window rollover; lifetime counters never do.
type PayeePeriodData struct {
	NumTxsInPeriod        uint64          `json:"num_txs_in_period"`
	TotalUnitsInPeriod    decimal.Decimal `json:"total_units_in_period"`
	TotalUSDValueInPeriod decimal.Decimal `json:"total_usd_value_in_period"`
	PeriodStartBlock      uint64          `json:"period_start_block"`
	LastTxBlock           uint64          `json:"last_tx_block"`

	TotalNumTxs   uint64          `json:"total_num_txs"`
	TotalUnits    decimal.Decimal `json:"total_units"`
	TotalUSDValue decimal.Decimal `json:"total_usd_value"`
}

// GlobalPayeeSettings is the wallet-wide payment policy applied alongside
// each payee's own settings.
type GlobalPayeeSettings struct {
	DefaultPeriodLength uint64 `json:"default_period_length"`
	StartDelay          uint64 `json:"start_delay"`
	ActivationLength    uint64 `json:"activation_length"`
	MaxNumTxsPerPeriod  uint64 `json:"max_num_txs_per_period"`
	TxCooldownBlocks    uint64 `json:"tx_cooldown_blocks"`
	FailOnZeroPrice     bool   `json:"fail_on_zero_price"`
	CanPayOwner         bool   `json:"can_pay_owner"`
	CanPull             bool   `json:"can_pull"`
}

// ManagerLimits bounds a manager's delegated spending.
type ManagerLimits struct {
	UnitLimits         limits.LimitSet `json:"unit_limits"`
	USDLimits          limits.LimitSet `json:"usd_limits"`
	MaxNumTxsPerPeriod uint64          `json:"max_num_txs_per_period"`
	TxCooldownBlocks   uint64          `json:"tx_cooldown_blocks"`
	FailOnZeroPrice    bool            `json:"fail_on_zero_price"`
}

// LegoPerms are the fund-movement capability flags a manager may hold.
// AllowedLegos is the set of adapter IDs the manager may touch; empty means
// every adapter the global settings allow.
type LegoPerms struct {
	CanManageYield  bool     `json:"can_manage_yield"`
	CanBuyAndSell   bool     `json:"can_buy_and_sell"`
	CanManageDebt   bool     `json:"can_manage_debt"`
	CanManageLiq    bool     `json:"can_manage_liq"`
	CanClaimRewards bool     `json:"can_claim_rewards"`
	AllowedLegos    []uint32 `json:"allowed_legos"`
}

// WhitelistPerms are the whitelist-action capability flags.
type WhitelistPerms struct {
	CanAddPending bool `json:"can_add_pending"`
	CanConfirm    bool `json:"can_confirm"`
	CanCancel     bool `json:"can_cancel"`
	CanRemove     bool `json:"can_remove"`
}

// TransferPerms are the transfer-action capability flags. AllowedPayees empty
// means transfers to any address, not to none.
type TransferPerms struct {
	CanTransfer        bool      `json:"can_transfer"`
	CanCreateCheque    bool      `json:"can_create_cheque"`
	CanAddPendingPayee bool      `json:"can_add_pending_payee"`
	AllowedPayees      []Address `json:"allowed_payees"`
}

// ManagerSettings is the per-manager configuration.
type ManagerSettings struct {
	StartBlock     uint64         `json:"start_block"`
	ExpiryBlock    uint64         `json:"expiry_block"` // 0 = never expires; exclusive upper bound
	Limits         ManagerLimits  `json:"limits"`
	LegoPerms      LegoPerms      `json:"lego_perms"`
	WhitelistPerms WhitelistPerms `json:"whitelist_perms"`
	TransferPerms  TransferPerms  `json:"transfer_perms"`
	AllowedAssets  []Address      `json:"allowed_assets"`
}

// GlobalManagerSettings is the wallet-wide ceiling applied to every manager.
// Each capability here is the maximum any manager may be granted; empty lists
// mean unrestricted.
type GlobalManagerSettings struct {
	ManagerPeriod    uint64         `json:"manager_period"`
	StartDelay       uint64         `json:"start_delay"`
	ActivationLength uint64         `json:"activation_length"`
	CanOwnerManage   bool           `json:"can_owner_manage"`
	Limits           ManagerLimits  `json:"limits"`
	LegoPerms        LegoPerms      `json:"lego_perms"`
	WhitelistPerms   WhitelistPerms `json:"whitelist_perms"`
	TransferPerms    TransferPerms  `json:"transfer_perms"`
	AllowedAssets    []Address      `json:"allowed_assets"`
}

// ManagerPeriodData holds a manager's rolling and lifetime spend counters,
// shaped like the payee counters so the same rollover rule applies.
type ManagerPeriodData struct {
	NumTxsInPeriod        uint64          `json:"num_txs_in_period"`
	TotalUnitsInPeriod    decimal.Decimal `json:"total_units_in_period"`
	TotalUSDValueInPeriod decimal.Decimal `json:"total_usd_value_in_period"`
	PeriodStartBlock      uint64          `json:"period_start_block"`
	LastTxBlock           uint64          `json:"last_tx_block"`

	TotalNumTxs   uint64          `json:"total_num_txs"`
	TotalUnits    decimal.Decimal `json:"total_units"`
	TotalUSDValue decimal.Decimal `json:"total_usd_value"`
}

// Role is the caller role resolved by the access-control layer before the
// engine is invoked.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleSecurity Role = "security"
)

// Caller is a resolved caller identity.
type Caller struct {
	Address Address `json:"address"`
	Role    Role    `json:"role"`
}

// ContainsAddress reports whether addr appears in list.
func ContainsAddress(list []Address, addr Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

// ContainsLego reports whether id appears in list.
func ContainsLego(list []uint32, id uint32) bool {
	for _, l := range list {
		if l == id {
			return true
		}
	}
	return false
}
