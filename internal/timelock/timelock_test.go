package timelock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
)

func TestStoreAdd(t *testing.T) {
	t.Run("should record the confirm block from now plus delay", func(t *testing.T) {
		s := NewStore[string]()

		require.NoError(t, s.Add("0xa", "0xowner", 100, 50, "payload"))

		p, ok := s.Get("0xa")
		require.True(t, ok)
		assert.Equal(t, uint64(100), p.InitiatedBlock)
		assert.Equal(t, uint64(150), p.ConfirmBlock)
		assert.Equal(t, policy.Address("0xowner"), p.CurrentOwner)
		assert.Equal(t, "payload", p.Payload)
	})

	t.Run("should reject a second pending action for the same address", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xowner", 100, 50, "first"))

		err := s.Add("0xa", "0xowner", 110, 50, "second")
		assert.Equal(t, policy.ReasonAlreadyExists, policy.ReasonOf(err))
	})
}

func TestStoreConfirm(t *testing.T) {
	t.Run("should fail before the timelock elapses", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xowner", 100, 50, "payload"))

		_, err := s.Confirm("0xa", "0xowner", 149)
		assert.Equal(t, policy.ReasonTimelockNotReached, policy.ReasonOf(err))
	})

	t.Run("should succeed exactly at the confirm block", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xowner", 100, 50, "payload"))

		got, err := s.Confirm("0xa", "0xowner", 150)
		require.NoError(t, err)
		assert.Equal(t, "payload", got)
	})

	t.Run("should consume the entry exactly once", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xowner", 100, 50, "payload"))

		_, err := s.Confirm("0xa", "0xowner", 200)
		require.NoError(t, err)

		_, err = s.Confirm("0xa", "0xowner", 200)
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})

	t.Run("should fail when ownership changed since initiation", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xoldowner", 100, 50, "payload"))

		_, err := s.Confirm("0xa", "0xnewowner", 200)
		assert.Equal(t, policy.ReasonOwnerMismatch, policy.ReasonOf(err))

		// The entry survives a failed confirmation.
		assert.True(t, s.Has("0xa"))
	})

	t.Run("should fail for an address with nothing pending", func(t *testing.T) {
		s := NewStore[string]()
		_, err := s.Confirm("0xa", "0xowner", 200)
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})
}

func TestStoreCancel(t *testing.T) {
	t.Run("should cancel immediately regardless of the timelock", func(t *testing.T) {
		s := NewStore[string]()
		require.NoError(t, s.Add("0xa", "0xowner", 100, 1_000_000, "payload"))

		assert.NoError(t, s.Cancel("0xa"))
		assert.False(t, s.Has("0xa"))
	})

	t.Run("should fail with nothing pending", func(t *testing.T) {
		s := NewStore[string]()
		err := s.Cancel("0xa")
		assert.Equal(t, policy.ReasonNotFound, policy.ReasonOf(err))
	})
}

func TestStoreList(t *testing.T) {
	t.Run("should list pending addresses", func(t *testing.T) {
		s := NewStore[int]()
		require.NoError(t, s.Add("0xa", "0xowner", 1, 10, 1))
		require.NoError(t, s.Add("0xb", "0xowner", 1, 10, 2))

		assert.ElementsMatch(t, []policy.Address{"0xa", "0xb"}, s.List())
	})
}
