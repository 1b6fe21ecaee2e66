// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"  Spaces   everywhere ", "spaces-everywhere"},
		{"What's up?", "whats-up"},
		{"a - b -- c", "a-b-c"},
		{"Café", "café"},
		{"!!!", "42"},
		{"", "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, slugify(tt.title, 42), tt.title)
	}
}

func TestValidateHandle(t *testing.T) {
	lc, err := validateHandle("Alice_99", DefaultHandleLimit)
	require.NoError(t, err)
	assert.Equal(t, "alice_99", lc)

	for _, bad := range []string{"", "has space", "émile", "admin", "Electronic", "Peaceful", strings.Repeat("a", DefaultHandleLimit+1)} {
		_, err := validateHandle(bad, DefaultHandleLimit)
		assert.Error(t, err, bad)
	}
}

func TestCheckLengthCountsRunes(t *testing.T) {
	assert.NoError(t, checkLength("bio", strings.Repeat("é", 10), 10))
	err := checkLength("bio", strings.Repeat("é", 11), 10)
	assert.True(t, ErrorIs(err, ErrFieldLimit))
}
