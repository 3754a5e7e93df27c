package limits

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLimitSetCaps(t *testing.T) {
	t.Run("should allow amount exactly at the cap", func(t *testing.T) {
		l := LimitSet{PerTxCap: d("100")}

		assert.True(t, l.AllowsTx(d("100")))
		assert.False(t, l.AllowsTx(d("100.000001")))
		assert.False(t, l.AllowsTx(d("101")))
	})

	t.Run("should treat zero caps as unlimited", func(t *testing.T) {
		l := Unlimited()

		assert.True(t, l.IsZero())
		assert.True(t, l.AllowsTx(d("1000000000000000000000000")))
		assert.True(t, l.AllowsPeriod(d("999999999999"), d("1")))
		assert.True(t, l.AllowsLifetime(d("999999999999"), d("1")))
	})

	t.Run("should count the proposed amount against period totals", func(t *testing.T) {
		l := LimitSet{PerPeriodCap: d("500")}

		assert.True(t, l.AllowsPeriod(d("400"), d("100")))
		assert.False(t, l.AllowsPeriod(d("400"), d("100.01")))
	})

	t.Run("should count the proposed amount against lifetime totals", func(t *testing.T) {
		l := LimitSet{LifetimeCap: d("1000")}

		assert.True(t, l.AllowsLifetime(d("999"), d("1")))
		assert.False(t, l.AllowsLifetime(d("999"), d("2")))
	})

	t.Run("should check all three tiers in Allows", func(t *testing.T) {
		l := LimitSet{PerTxCap: d("10"), PerPeriodCap: d("100"), LifetimeCap: d("1000")}

		assert.True(t, l.Allows(d("10"), d("90"), d("990")))
		assert.False(t, l.Allows(d("11"), d("0"), d("0")))
		assert.False(t, l.Allows(d("10"), d("91"), d("0")))
		assert.False(t, l.Allows(d("10"), d("0"), d("991")))
	})
}

func TestLimitSetOrdered(t *testing.T) {
	t.Run("should accept consistently ordered tiers", func(t *testing.T) {
		l := LimitSet{PerTxCap: d("10"), PerPeriodCap: d("100"), LifetimeCap: d("1000")}
		assert.True(t, l.Ordered())
	})

	t.Run("should accept equal adjacent tiers", func(t *testing.T) {
		l := LimitSet{PerTxCap: d("100"), PerPeriodCap: d("100"), LifetimeCap: d("100")}
		assert.True(t, l.Ordered())
	})

	t.Run("should reject per-tx above per-period", func(t *testing.T) {
		l := LimitSet{PerTxCap: d("200"), PerPeriodCap: d("100")}
		assert.False(t, l.Ordered())
	})

	t.Run("should reject per-period above lifetime", func(t *testing.T) {
		l := LimitSet{PerPeriodCap: d("200"), LifetimeCap: d("100")}
		assert.False(t, l.Ordered())
	})

	t.Run("should skip checks involving an unlimited tier", func(t *testing.T) {
		// Per-tx vs lifetime is not cross-checked when the period tier is
		// unlimited.
		l := LimitSet{PerTxCap: d("5000"), LifetimeCap: d("100")}
		assert.True(t, l.Ordered())
	})
}

func TestWindowExpired(t *testing.T) {
	t.Run("should stay live strictly inside the window", func(t *testing.T) {
		assert.False(t, WindowExpired(100, 50, 149))
	})

	t.Run("should expire exactly at the boundary", func(t *testing.T) {
		assert.True(t, WindowExpired(100, 50, 150))
		assert.True(t, WindowExpired(100, 50, 200))
	})

	t.Run("should restart the window at the triggering block", func(t *testing.T) {
		assert.Equal(t, uint64(173), FreshPeriodStart(173))
	})
}
