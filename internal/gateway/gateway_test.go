package gateway

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/terminal-bench/walletguard/internal/policy"
)

func TestRateLimiter(t *testing.T) {
	t.Run("should allow requests under the limit", func(t *testing.T) {
		rl := &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    3,
			window:   time.Minute,
		}

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.True(t, rl.Allow("1.2.3.4"))
		assert.True(t, rl.Allow("1.2.3.4"))
	})

	t.Run("should reject once the limit is reached", func(t *testing.T) {
		rl := &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    2,
			window:   time.Minute,
		}

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.True(t, rl.Allow("1.2.3.4"))
		assert.False(t, rl.Allow("1.2.3.4"))
	})

	t.Run("should track keys independently", func(t *testing.T) {
		rl := &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    1,
			window:   time.Minute,
		}

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.False(t, rl.Allow("1.2.3.4"))
		assert.True(t, rl.Allow("5.6.7.8"))
	})

	t.Run("should admit again after the window slides", func(t *testing.T) {
		rl := &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    1,
			window:   10 * time.Millisecond,
		}

		assert.True(t, rl.Allow("1.2.3.4"))
		assert.False(t, rl.Allow("1.2.3.4"))

		time.Sleep(15 * time.Millisecond)
		assert.True(t, rl.Allow("1.2.3.4"))
	})
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"permission denied maps to 403", policy.Reject(policy.ReasonPermissionDenied, ""), http.StatusForbidden},
		{"not found maps to 404", policy.Reject(policy.ReasonNotFound, ""), http.StatusNotFound},
		{"already exists maps to 409", policy.Reject(policy.ReasonAlreadyExists, ""), http.StatusConflict},
		{"timelock not reached maps to 409", policy.Reject(policy.ReasonTimelockNotReached, ""), http.StatusConflict},
		{"owner mismatch maps to 409", policy.Reject(policy.ReasonOwnerMismatch, ""), http.StatusConflict},
		{"invalid configuration maps to 400", policy.Reject(policy.ReasonInvalidConfig, ""), http.StatusBadRequest},
		{"limit exceeded maps to 422", policy.Reject(policy.ReasonLimitExceeded, ""), http.StatusUnprocessableEntity},
		{"cooldown maps to 422", policy.Reject(policy.ReasonCooldownActive, ""), http.StatusUnprocessableEntity},
		{"not activated maps to 422", policy.Reject(policy.ReasonNotActivated, ""), http.StatusUnprocessableEntity},
		{"expired maps to 422", policy.Reject(policy.ReasonExpired, ""), http.StatusUnprocessableEntity},
		{"plain errors map to 500", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run("should map "+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, statusFor(tc.err))
		})
	}
}
