package managers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
)

const manager = policy.Address("0xmanager")

func TestManagerRegistry(t *testing.T) {
	t.Run("should register and look up a manager", func(t *testing.T) {
		r := NewRegistry()

		require.NoError(t, r.Add(manager, policy.ManagerSettings{StartBlock: 100}))

		assert.True(t, r.Contains(manager))
		ms, ok := r.Settings(manager)
		require.True(t, ok)
		assert.Equal(t, uint64(100), ms.StartBlock)
	})

	t.Run("should reject duplicates and the zero address", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(manager, policy.ManagerSettings{}))

		err := r.Add(manager, policy.ManagerSettings{})
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))

		err = r.Add(policy.ZeroAddress, policy.ManagerSettings{})
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))
	})

	t.Run("should preserve spend counters across setting updates", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(manager, policy.ManagerSettings{}))
		require.NoError(t, r.CommitPeriodData(manager, policy.ManagerPeriodData{
			TotalNumTxs:   4,
			TotalUSDValue: decimal.NewFromInt(250),
		}))

		require.NoError(t, r.Update(manager, policy.ManagerSettings{StartBlock: 5}))

		data := r.PeriodData(manager)
		assert.Equal(t, uint64(4), data.TotalNumTxs)
		assert.Equal(t, "250", data.TotalUSDValue.String())
	})

	t.Run("should drop counters on removal", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add(manager, policy.ManagerSettings{}))
		require.NoError(t, r.CommitPeriodData(manager, policy.ManagerPeriodData{TotalNumTxs: 9}))

		require.NoError(t, r.Remove(manager))
		assert.False(t, r.Contains(manager))

		require.NoError(t, r.Add(manager, policy.ManagerSettings{}))
		assert.Equal(t, uint64(0), r.PeriodData(manager).TotalNumTxs)
	})

	t.Run("should refuse committing data for an unknown manager", func(t *testing.T) {
		r := NewRegistry()
		err := r.CommitPeriodData(manager, policy.ManagerPeriodData{})
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})

	t.Run("should enumerate by slot", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Add("0xa", policy.ManagerSettings{}))
		require.NoError(t, r.Add("0xb", policy.ManagerSettings{}))

		assert.Equal(t, 2, r.Count())
		assert.Equal(t, policy.Address("0xb"), r.At(2))
		assert.Equal(t, []policy.Address{"0xa", "0xb"}, r.List())
	})
}
