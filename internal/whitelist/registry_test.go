package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
)

const (
	owner      = policy.Address("0xowner")
	walletAddr = policy.Address("0xwallet")
	candidate  = policy.Address("0xcandidate")
)

func TestWhitelistLifecycle(t *testing.T) {
	t.Run("should confirm only after the timelock", func(t *testing.T) {
		r := NewRegistry()

		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 50))
		assert.True(t, r.HasPending(candidate))
		assert.False(t, r.Contains(candidate))

		err := r.Confirm(candidate, owner, 149)
		assert.Equal(t, policy.ReasonTimelockNotReached, policy.ReasonOf(err))

		require.NoError(t, r.Confirm(candidate, owner, 150))
		assert.True(t, r.Contains(candidate))
		assert.False(t, r.HasPending(candidate))
	})

	t.Run("should record initiation and confirm blocks", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 50))

		p, ok := r.PendingEntry(candidate)
		require.True(t, ok)
		assert.Equal(t, uint64(100), p.InitiatedBlock)
		assert.Equal(t, uint64(150), p.ConfirmBlock)
	})

	t.Run("should block confirmation under a new owner", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 50))

		err := r.Confirm(candidate, "0xnewowner", 200)
		assert.Equal(t, policy.ReasonOwnerMismatch, policy.ReasonOf(err))
		assert.False(t, r.Contains(candidate))
	})

	t.Run("should cancel and remove immediately", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 1_000_000))
		require.NoError(t, r.CancelPending(candidate))
		assert.False(t, r.HasPending(candidate))

		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 10))
		require.NoError(t, r.Confirm(candidate, owner, 110))
		require.NoError(t, r.Remove(candidate))
		assert.False(t, r.Contains(candidate))
	})
}

func TestWhitelistCandidateChecks(t *testing.T) {
	t.Run("should refuse invalid candidates", func(t *testing.T) {
		r := NewRegistry()

		err := r.AddPending(policy.ZeroAddress, owner, walletAddr, 100, 50)
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))

		err = r.AddPending(walletAddr, owner, walletAddr, 100, 50)
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))

		err = r.AddPending(owner, owner, walletAddr, 100, 50)
		assert.Equal(t, policy.ReasonInvalidConfig, policy.ReasonOf(err))
	})

	t.Run("should refuse re-adding a confirmed entry", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 10))
		require.NoError(t, r.Confirm(candidate, owner, 110))

		err := r.AddPending(candidate, owner, walletAddr, 120, 10)
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))
	})

	t.Run("should refuse a duplicate pending entry", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending(candidate, owner, walletAddr, 100, 50))

		err := r.AddPending(candidate, owner, walletAddr, 110, 50)
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))
	})
}

func TestWhitelistEnumeration(t *testing.T) {
	t.Run("should separate confirmed and pending listings", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.AddPending("0xa", owner, walletAddr, 100, 10))
		require.NoError(t, r.Confirm("0xa", owner, 110))
		require.NoError(t, r.AddPending("0xb", owner, walletAddr, 120, 10))

		assert.Equal(t, []policy.Address{"0xa"}, r.List())
		assert.Equal(t, []policy.Address{"0xb"}, r.PendingList())
		assert.Equal(t, 1, r.Count())
	})
}
