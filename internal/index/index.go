// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index implements the inverted value indexes: for a
// dictionary-interned value (a country id, a city id, an interest
// id, a status, a sex, ...) it holds the set of account ids carrying
// that value, backed by a roaring bitmap so descending iteration,
// cardinality estimation and intersection are all cheap.
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/loveindex/queryserver/internal/iter"
)

// Inverted maps a small-int key to the bitmap of account ids carrying
// that value. One Inverted exists per indexed field (country, city,
// interest, sex, status, birth year, joined year); email domain uses
// StringInverted instead.
type Inverted struct {
	mu   sync.RWMutex
	bmps map[int32]*roaring.Bitmap
}

func New() *Inverted {
	return &Inverted{bmps: make(map[int32]*roaring.Bitmap, 256)}
}

func (idx *Inverted) bitmap(key int32, create bool) *roaring.Bitmap {
	idx.mu.RLock()
	b, ok := idx.bmps[key]
	idx.mu.RUnlock()
	if ok || !create {
		return b
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if b, ok = idx.bmps[key]; ok {
		return b
	}
	b = roaring.New()
	idx.bmps[key] = b
	return b
}

// Add records that account id carries key.
func (idx *Inverted) Add(key int32, id int32) {
	idx.bitmap(key, true).Add(uint32(id))
}

// Remove drops account id from key's set.
func (idx *Inverted) Remove(key int32, id int32) {
	if b := idx.bitmap(key, false); b != nil {
		b.Remove(uint32(id))
	}
}

// Cardinality is the O(1) size estimate the planner uses to pick the
// cheapest lookup filter.
func (idx *Inverted) Cardinality(key int32) int {
	b := idx.bitmap(key, false)
	if b == nil {
		return 0
	}
	return int(b.GetCardinality())
}

// Iterator returns a descending-id iterator over key's set.
func (idx *Inverted) Iterator(key int32) iter.Iterator {
	b := idx.bitmap(key, false)
	if b == nil {
		return iter.NewList(nil)
	}
	return &reverseBitmapIter{it: b.ReverseIterator(), size: int(b.GetCardinality())}
}

// And returns the bitmap intersection of key1 (in idx) and key2 (in
// other) as a standalone bitmap.
func (idx *Inverted) And(key1 int32, other *Inverted, key2 int32) *roaring.Bitmap {
	a := idx.bitmap(key1, false)
	b := other.bitmap(key2, false)
	if a == nil || b == nil {
		return roaring.New()
	}
	return roaring.And(a, b)
}

// Rebuild replaces this index's contents wholesale.
func (idx *Inverted) Rebuild(next map[int32]*roaring.Bitmap) {
	idx.mu.Lock()
	idx.bmps = next
	idx.mu.Unlock()
}

type reverseBitmapIter struct {
	it   roaring.IntIterable
	size int
}

func (r *reverseBitmapIter) Next() (int32, bool) {
	if !r.it.HasNext() {
		return 0, false
	}
	r.size--
	return int32(r.it.Next()), true
}

func (r *reverseBitmapIter) Size() int {
	if r.size < 0 {
		return 0
	}
	return r.size
}

// BitmapIterator wraps an arbitrary bitmap (e.g. one produced by And)
// in descending order, for callers that build a bitmap outside an
// Inverted.
func BitmapIterator(b *roaring.Bitmap) iter.Iterator {
	if b == nil {
		return iter.NewList(nil)
	}
	return &reverseBitmapIter{it: b.ReverseIterator(), size: int(b.GetCardinality())}
}

// StringInverted is Inverted keyed by an arbitrary string instead of
// a dictionary-interned int32. Used for email domain, which is
// indexed directly by the domain substring rather than through a
// dictionary (domain cardinality is unbounded, unlike country/city).
type StringInverted struct {
	mu   sync.RWMutex
	bmps map[string]*roaring.Bitmap
}

func NewString() *StringInverted {
	return &StringInverted{bmps: make(map[string]*roaring.Bitmap, 256)}
}

func (idx *StringInverted) bitmap(key string, create bool) *roaring.Bitmap {
	idx.mu.RLock()
	b, ok := idx.bmps[key]
	idx.mu.RUnlock()
	if ok || !create {
		return b
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if b, ok = idx.bmps[key]; ok {
		return b
	}
	b = roaring.New()
	idx.bmps[key] = b
	return b
}

func (idx *StringInverted) Add(key string, id int32) {
	idx.bitmap(key, true).Add(uint32(id))
}

func (idx *StringInverted) Remove(key string, id int32) {
	if b := idx.bitmap(key, false); b != nil {
		b.Remove(uint32(id))
	}
}

func (idx *StringInverted) Cardinality(key string) int {
	b := idx.bitmap(key, false)
	if b == nil {
		return 0
	}
	return int(b.GetCardinality())
}

// Rebuild replaces this index's contents wholesale.
func (idx *StringInverted) Rebuild(next map[string]*roaring.Bitmap) {
	idx.mu.Lock()
	idx.bmps = next
	idx.mu.Unlock()
}

func (idx *StringInverted) Iterator(key string) iter.Iterator {
	b := idx.bitmap(key, false)
	if b == nil {
		return iter.NewList(nil)
	}
	return &reverseBitmapIter{it: b.ReverseIterator(), size: int(b.GetCardinality())}
}
