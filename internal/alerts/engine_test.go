package alerts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecordRejection(t *testing.T) {
	t.Run("should count rejections inside the window", func(t *testing.T) {
		e := NewEngine(nil, nil, zerolog.Nop())
		walletID := uuid.New()

		assert.Equal(t, 1, e.recordRejection(walletID, time.Minute))
		assert.Equal(t, 2, e.recordRejection(walletID, time.Minute))
		assert.Equal(t, 3, e.recordRejection(walletID, time.Minute))
	})

	t.Run("should drop rejections older than the window", func(t *testing.T) {
		e := NewEngine(nil, nil, zerolog.Nop())
		walletID := uuid.New()

		e.recordRejection(walletID, 10*time.Millisecond)
		e.recordRejection(walletID, 10*time.Millisecond)
		time.Sleep(15 * time.Millisecond)

		assert.Equal(t, 1, e.recordRejection(walletID, 10*time.Millisecond))
	})

	t.Run("should track wallets independently", func(t *testing.T) {
		e := NewEngine(nil, nil, zerolog.Nop())
		a, b := uuid.New(), uuid.New()

		e.recordRejection(a, time.Minute)
		e.recordRejection(a, time.Minute)

		assert.Equal(t, 1, e.recordRejection(b, time.Minute))
	})
}

func TestRules(t *testing.T) {
	t.Run("should return a copy of the live rule set", func(t *testing.T) {
		e := NewEngine(nil, nil, zerolog.Nop())
		walletID := uuid.New()

		rule := &Rule{ID: uuid.New(), WalletID: walletID, Kind: RuleUSDAbove}
		e.rulesMu.Lock()
		e.rules[walletID] = append(e.rules[walletID], rule)
		e.rulesMu.Unlock()

		got := e.Rules(walletID)
		assert.Len(t, got, 1)

		got[0] = nil
		assert.NotNil(t, e.Rules(walletID)[0])
	})

	t.Run("should return empty for an unknown wallet", func(t *testing.T) {
		e := NewEngine(nil, nil, zerolog.Nop())
		assert.Empty(t, e.Rules(uuid.New()))
	})
}
