// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	id, err := NewID("")
	require.NoError(err)
	assert.Len(id, 32)
	assert.NotContains(id, "=")

	id2, err := NewID("")
	require.NoError(err)
	assert.NotEqual(id, id2)

	prefixed, err := NewID("st")
	require.NoError(err)
	assert.True(strings.HasPrefix(prefixed, "st_"))
	assert.Len(prefixed, 35)
}
