// SPDX-License-Identifier: AGPL-3.0-or-later

package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	order, err := ParseOrder("1")
	require.NoError(t, err)
	assert.True(t, order.Ascending())

	order, err = ParseOrder("-1")
	require.NoError(t, err)
	assert.True(t, order.Descending())

	order, err = ParseOrder("")
	require.NoError(t, err)
	assert.True(t, order.Ascending())

	_, err = ParseOrder("2")
	assert.Error(t, err)
}
