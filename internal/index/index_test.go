// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loveindex/queryserver/internal/iter"
)

func TestInvertedDescendingIteration(t *testing.T) {
	idx := New()
	for _, id := range []int32{5, 9, 2, 7} {
		idx.Add(1, id)
	}
	assert.Equal(t, []int32{9, 7, 5, 2}, iter.Collect(idx.Iterator(1), 0))
	assert.Equal(t, 4, idx.Cardinality(1))
}

func TestInvertedAddIsIdempotent(t *testing.T) {
	idx := New()
	idx.Add(1, 5)
	idx.Add(1, 5)
	assert.Equal(t, 1, idx.Cardinality(1))
}

func TestInvertedRemove(t *testing.T) {
	idx := New()
	idx.Add(1, 5)
	idx.Remove(1, 5)
	assert.Equal(t, 0, idx.Cardinality(1))
	idx.Remove(2, 5) // unknown key is a no-op
}

func TestInvertedMissingKey(t *testing.T) {
	idx := New()
	assert.Equal(t, 0, idx.Cardinality(42))
	assert.Empty(t, iter.Collect(idx.Iterator(42), 0))
}

func TestStringInvertedIteration(t *testing.T) {
	idx := NewString()
	idx.Add("mail.ru", 3)
	idx.Add("mail.ru", 8)
	assert.Equal(t, []int32{8, 3}, iter.Collect(idx.Iterator("mail.ru"), 0))
	assert.Equal(t, 0, idx.Cardinality("inbox.ru"))
}
