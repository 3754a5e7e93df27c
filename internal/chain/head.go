package chain

import (
	"encoding/json"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/terminal-bench/walletguard/pkg/messaging"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Head tracks the chain's current block height: the monotonic logical clock
// every period, cooldown, and timelock computation reads. Heights only move
// forward; a stale or reordered block event never rewinds the clock.
type Head struct {
	height atomic.Uint64
	log    zerolog.Logger
}

// NewHead creates a head tracker starting at the given height.
func NewHead(initial uint64, log zerolog.Logger) *Head {
	h := &Head{log: log}
	h.height.Store(initial)
	return h
}

// Height returns the current block height.
func (h *Head) Height() uint64 {
	return h.height.Load()
}

// Advance moves the head forward to height if it is ahead of the current one.
// Returns true if the head moved.
func (h *Head) Advance(height uint64) bool {
	for {
		cur := h.height.Load()
		if height <= cur {
			return false
		}
		if h.height.CompareAndSwap(cur, height) {
			return true
		}
	}
}

// Follow subscribes to block events on the bus and advances the head as they
// arrive.
func (h *Head) Follow(client *messaging.Client) error {
	return client.Subscribe(events.ChainBlock, func(msg *nats.Msg) {
		var env messaging.Event
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			h.log.Warn().Err(err).Msg("bad block event envelope")
			return
		}
		block, err := messaging.ParseEventData[events.BlockEvent](&env)
		if err != nil {
			h.log.Warn().Err(err).Msg("bad block event payload")
			return
		}
		if h.Advance(block.Height) {
			h.log.Debug().Uint64("height", block.Height).Msg("chain head advanced")
		}
	})
}
