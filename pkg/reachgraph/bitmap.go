package reachgraph

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a packed, word-level set of node ids backed by a Roaring bitmap.
// It matches PMAT's HierarchicalBitSet architecture for memory-efficient
// sparse bitset operations, with an added atomic TestAndSet for the
// direction-optimizing BFS's top-down step.
type Bitmap struct {
	bits *roaring.Bitmap
	mu   sync.RWMutex
}

// NewBitmap returns an empty Bitmap. capacity is advisory since Roaring
// bitmaps grow as needed; it is accepted for API compatibility with callers
// that size the set up front.
func NewBitmap(_ uint32) *Bitmap {
	return &Bitmap{bits: roaring.New()}
}

// Set marks id as present.
func (b *Bitmap) Set(id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bits.Add(id)
}

// SetBatch marks every id in ids as present in one locked pass.
func (b *Bitmap) SetBatch(ids []uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bits.AddMany(ids)
}

// Clear removes id.
func (b *Bitmap) Clear(id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bits.Remove(id)
}

// Test reports whether id is present.
func (b *Bitmap) Test(id uint32) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bits.Contains(id)
}

// IsSet is an alias for Test, kept for callers migrating from the teacher's
// HierarchicalBitSet naming.
func (b *Bitmap) IsSet(id uint32) bool {
	return b.Test(id)
}

// Any reports whether the bitmap has at least one bit set.
func (b *Bitmap) Any() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.bits.IsEmpty()
}

// TestAndSet atomically tests id and, if absent, sets it. Returns true if
// this call was the one that set the bit (i.e., the caller "won the race").
func (b *Bitmap) TestAndSet(id uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bits.Contains(id) {
		return false
	}
	b.bits.Add(id)
	return true
}

// CountSet returns the number of bits currently set.
func (b *Bitmap) CountSet() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bits.GetCardinality()
}

// ToSlice returns the set bits as a sorted slice of ids.
func (b *Bitmap) ToSlice() []uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bits.ToArray()
}

// Clone returns an independent copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Bitmap{bits: b.bits.Clone()}
}
