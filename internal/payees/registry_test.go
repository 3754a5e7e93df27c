package payees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
)

const (
	owner      = policy.Address("0xowner")
	walletAddr = policy.Address("0xwallet")
	payee      = policy.Address("0xpayee")
)

func TestRegistryAdd(t *testing.T) {
	t.Run("should register a payee with empty counters", func(t *testing.T) {
		r := NewRegistry()

		require.NoError(t, r.Add(payee, policy.PayeeSettings{StartBlock: 10}))

		assert.True(t, r.Contains(payee))
		ps, ok := r.Settings(payee)
		require.True(t, ok)
		assert.Equal(t, uint64(10), ps.StartBlock)
		assert.Equal(t, policy.PayeePeriodData{}, r.PeriodData(payee))
	})

	t.Run("should reject the zero address", func(t *testing.T) {
		r := NewRegistry()
		err := r.Add(policy.ZeroAddress, policy.PayeeSettings{})
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))
	})

	t.Run("should reject start after expiry", func(t *testing.T) {
		r := NewRegistry()
		err := r.Add(payee, policy.PayeeSettings{StartBlock: 100, ExpiryBlock: 50})
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))
	})

	t.Run("should reject duplicates", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))

		err := r.Add(payee, policy.PayeeSettings{})
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))
	})
}

func TestRegistryUpdate(t *testing.T) {
	t.Run("should preserve period data across updates", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))
		require.NoError(t, r.CommitPeriodData(payee, policy.PayeePeriodData{
			NumTxsInPeriod: 3,
			TotalUSDValue:  decimal.NewFromInt(100),
		}))

		require.NoError(t, r.Update(payee, policy.PayeeSettings{TxCooldownBlocks: 9}))

		data := r.PeriodData(payee)
		assert.Equal(t, uint64(3), data.NumTxsInPeriod)
		assert.Equal(t, "100", data.TotalUSDValue.String())
	})

	t.Run("should reject updates to unknown payees", func(t *testing.T) {
		r := NewRegistry()
		err := r.Update(payee, policy.PayeeSettings{})
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})
}

func TestRegistryRemove(t *testing.T) {
	t.Run("should drop settings and counters", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))

		require.NoError(t, r.Remove(payee))

		assert.False(t, r.Contains(payee))
		_, ok := r.Settings(payee)
		assert.False(t, ok)
		assert.Equal(t, 0, r.Count())
	})

	t.Run("should reset counters if the payee is re-added", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))
		require.NoError(t, r.CommitPeriodData(payee, policy.PayeePeriodData{TotalNumTxs: 50}))
		require.NoError(t, r.Remove(payee))

		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))
		assert.Equal(t, uint64(0), r.PeriodData(payee).TotalNumTxs)
	})

	t.Run("should fail for an unknown payee", func(t *testing.T) {
		r := NewRegistry()
		err := r.Remove(payee)
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})
}

func TestRegistryPending(t *testing.T) {
	t.Run("should run the full pending lifecycle", func(t *testing.T) {
		r := NewRegistry()
		ps := policy.PayeeSettings{TxCooldownBlocks: 7}

		require.NoError(t, r.AddPending(payee, owner, walletAddr, ps, 100, 50))
		assert.True(t, r.HasPending(payee))
		assert.False(t, r.Contains(payee))

		// Too early.
		err := r.ConfirmPending(payee, owner, 149)
		assert.Equal(t, policy.ReasonTimelockNotReached, policy.ReasonOf(err))

		require.NoError(t, r.ConfirmPending(payee, owner, 150))
		assert.True(t, r.Contains(payee))
		assert.False(t, r.HasPending(payee))

		got, ok := r.Settings(payee)
		require.True(t, ok)
		assert.Equal(t, uint64(7), got.TxCooldownBlocks)
	})

	t.Run("should refuse the wallet itself and the owner", func(t *testing.T) {
		r := NewRegistry()

		err := r.AddPending(walletAddr, owner, walletAddr, policy.PayeeSettings{}, 100, 50)
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))

		err = r.AddPending(owner, owner, walletAddr, policy.PayeeSettings{}, 100, 50)
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))
	})

	t.Run("should refuse a pending entry for a registered payee", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(payee, policy.PayeeSettings{}))

		err := r.AddPending(payee, owner, walletAddr, policy.PayeeSettings{}, 100, 50)
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))
	})

	t.Run("should block confirmation after an ownership change", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(payee, owner, walletAddr, policy.PayeeSettings{}, 100, 50))

		err := r.ConfirmPending(payee, "0xnewowner", 200)
		assert.Equal(t, policy.ReasonOwnerMismatch, policy.ReasonOf(err))
	})

	t.Run("should cancel without waiting", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(payee, owner, walletAddr, policy.PayeeSettings{}, 100, 1_000_000))

		require.NoError(t, r.CancelPending(payee))
		assert.False(t, r.HasPending(payee))
	})
}

func TestRegistryEnumeration(t *testing.T) {
	t.Run("should enumerate payees by slot", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add("0xa", policy.PayeeSettings{}))
		require.NoError(t, r.Add("0xb", policy.PayeeSettings{}))

		assert.Equal(t, 2, r.Count())
		assert.Equal(t, policy.Address("0xa"), r.At(1))
		assert.Equal(t, []policy.Address{"0xa", "0xb"}, r.List())
	})
}
