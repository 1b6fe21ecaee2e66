// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityKind
		wantErr bool
	}{
		{"User", KindUser, false},
		{"Track", KindTrack, false},
		{"Notification", KindNotification, false},
		{"TrackRoute", "", true},
		{"NotificationSeen", "", true},
		{"Follow", "", true},
		{"user", "", true},
		{"", "", true},
	}
	for _, test := range tests {
		k, err := ParseEntityKind(test.in)
		if test.wantErr {
			assert.Error(t, err, test.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, test.want, k)
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Unfollow")
	assert.NoError(t, err)
	assert.Equal(t, ActionUnfollow, a)

	_, err = ParseAction("Destroy")
	assert.Error(t, err)
}

func TestInstructionOrder(t *testing.T) {
	ins := []ManageEntity{
		{TxIndex: 2, LogIndex: 0, TxHash: "c"},
		{TxIndex: 0, LogIndex: 5, TxHash: "b"},
		{TxIndex: 0, LogIndex: 1, TxHash: "a"},
	}
	sort.Slice(ins, func(i, j int) bool { return Less(ins[i], ins[j]) })
	assert.Equal(t, "a", ins[0].TxHash)
	assert.Equal(t, "b", ins[1].TxHash)
	assert.Equal(t, "c", ins[2].TxHash)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress(" 0xABCdef "))
}
