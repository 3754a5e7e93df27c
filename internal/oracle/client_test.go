package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/pkg/circuit"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{BaseURL: baseURL}, nil, zerolog.Nop())
}

func TestClientPrice(t *testing.T) {
	t.Run("should fetch and parse a price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/price", r.URL.Path)
			assert.Equal(t, "TOK", r.URL.Query().Get("asset"))
			w.Write([]byte(`{"asset":"TOK","price":"3.5"}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		price, err := c.Price(context.Background(), policy.Address("TOK"))
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString("3.5")))
	})

	t.Run("should return a zero price as-is", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"asset":"TOK","price":"0"}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		price, err := c.Price(context.Background(), policy.Address("TOK"))
		require.NoError(t, err)
		assert.True(t, price.IsZero())
	})

	t.Run("should fail on upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.Price(context.Background(), policy.Address("TOK"))
		assert.Error(t, err)
	})

	t.Run("should fail on malformed price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"asset":"TOK","price":"not-a-number"}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.Price(context.Background(), policy.Address("TOK"))
		assert.Error(t, err)
	})

	t.Run("should open the breaker after repeated failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		for i := 0; i < 5; i++ {
			_, err := c.Price(context.Background(), policy.Address("TOK"))
			assert.Error(t, err)
		}

		assert.Equal(t, circuit.StateOpen, c.BreakerState())

		_, err := c.Price(context.Background(), policy.Address("TOK"))
		assert.ErrorIs(t, err, circuit.ErrCircuitOpen)
	})
}

func TestClientUSDValue(t *testing.T) {
	t.Run("should multiply price by amount", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"asset":"TOK","price":"2.5"}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		usd, err := c.USDValue(context.Background(), policy.Address("TOK"), decimal.NewFromInt(4))
		require.NoError(t, err)
		assert.True(t, usd.Equal(decimal.NewFromInt(10)))
	})
}
