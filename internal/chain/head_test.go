package chain

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHead(t *testing.T) {
	t.Run("should start at the initial height", func(t *testing.T) {
		h := NewHead(42, zerolog.Nop())
		assert.Equal(t, uint64(42), h.Height())
	})

	t.Run("should advance to a greater height", func(t *testing.T) {
		h := NewHead(10, zerolog.Nop())
		assert.True(t, h.Advance(15))
		assert.Equal(t, uint64(15), h.Height())
	})

	t.Run("should never rewind", func(t *testing.T) {
		h := NewHead(100, zerolog.Nop())
		assert.False(t, h.Advance(99))
		assert.False(t, h.Advance(100))
		assert.Equal(t, uint64(100), h.Height())
	})

	t.Run("should keep the maximum under concurrent advances", func(t *testing.T) {
		h := NewHead(0, zerolog.Nop())

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(height uint64) {
				defer wg.Done()
				h.Advance(height)
			}(uint64(i))
		}
		wg.Wait()

		assert.Equal(t, uint64(50), h.Height())
	})
}
