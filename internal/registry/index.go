package registry

import (
	"github.com/terminal-bench/walletguard/internal/policy"
)

// Index is a dense, 1-indexed address set with O(1) membership and O(1)
// removal via swap-and-pop. Index 0 is permanently reserved as the
// "not present" sentinel and is never an occupied slot.
type Index struct {
	entries []policy.Address // entries[0] is the reserved sentinel slot
	slots   map[policy.Address]int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		entries: []policy.Address{policy.ZeroAddress},
		slots:   make(map[policy.Address]int),
	}
}

// Add inserts addr and returns its slot, or 0 if already present.
func (x *Index) Add(addr policy.Address) int {
	if _, exists := x.slots[addr]; exists {
		return 0
	}
	x.entries = append(x.entries, addr)
	slot := len(x.entries) - 1
	x.slots[addr] = slot
	return slot
}

// Remove deletes addr by copying the last entry into its slot and shrinking
// the count. Returns false if addr is not present.
func (x *Index) Remove(addr policy.Address) bool {
	slot, exists := x.slots[addr]
	if !exists {
		return false
	}
	last := len(x.entries) - 1
	moved := x.entries[last]
	x.entries[slot] = moved
	x.slots[moved] = slot
	x.entries = x.entries[:last]
	delete(x.slots, addr)
	return true
}

// Contains reports membership.
func (x *Index) Contains(addr policy.Address) bool {
	_, exists := x.slots[addr]
	return exists
}

// SlotOf returns addr's slot, or 0 if absent.
func (x *Index) SlotOf(addr policy.Address) int {
	return x.slots[addr]
}

// At returns the address in slot i (1..Count), or the zero address.
func (x *Index) At(i int) policy.Address {
	if i <= 0 || i >= len(x.entries) {
		return policy.ZeroAddress
	}
	return x.entries[i]
}

// Count returns the number of live entries.
func (x *Index) Count() int {
	return len(x.entries) - 1
}

// List returns the live entries in slot order.
func (x *Index) List() []policy.Address {
	out := make([]policy.Address, 0, x.Count())
	out = append(out, x.entries[1:]...)
	return out
}
