// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"errors"
	"testing"

	"github.com/project-illium/emxd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	c := testCID(t, "metadata")

	env, err := parseEnvelope("")
	require.NoError(t, err)
	assert.Nil(t, env.data)
	assert.False(t, env.needsFetch())

	env, err = parseEnvelope(`{"bio":"x"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bio":"x"}`, string(env.data))
	assert.Equal(t, "", env.cid)

	env, err = parseEnvelope(`{"cid":"` + c + `","data":{"bio":"x"}}`)
	require.NoError(t, err)
	assert.Equal(t, c, env.cid)
	assert.JSONEq(t, `{"bio":"x"}`, string(env.data))
	assert.False(t, env.needsFetch())

	env, err = parseEnvelope(c)
	require.NoError(t, err)
	assert.True(t, env.needsFetch())

	for _, bad := range []string{
		`{"bio":`,
		`{"cid":5,"data":{}}`,
		`{"cid":"` + c + `","data":"str"}`,
		`{"cid":"nope","data":{}}`,
		`not-a-cid`,
	} {
		_, err := parseEnvelope(bad)
		var de DecodeError
		assert.True(t, errors.As(err, &de), bad)
	}
}

func TestNewRequest(t *testing.T) {
	blk := &types.Block{Number: 5, Hash: "0xabc", Timestamp: 1_700_000_000}
	req, _, err := newRequest(blk, types.ManageEntity{
		EntityID:   3,
		EntityType: "Track",
		UserID:     1,
		Action:     "Create",
		Signer:     " 0xABCDEF ",
		TxHash:     "0x01",
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindTrack, req.Kind)
	assert.Equal(t, types.ActionCreate, req.Action)
	assert.Equal(t, "0xabcdef", req.Signer)
	assert.Equal(t, int64(5), req.BlockNumber)
	assert.Equal(t, int64(1_700_000_000), req.BlockTime.Unix())
}

func TestDecodeStrict(t *testing.T) {
	var v struct {
		A *int `json:"a"`
	}
	assert.NoError(t, decodeStrict(nil, &v))
	assert.Nil(t, v.A)
	assert.NoError(t, decodeStrict([]byte(`{"a":1}`), &v))
	assert.Equal(t, 1, *v.A)
	assert.Error(t, decodeStrict([]byte(`{"b":1}`), &v))
	assert.Error(t, decodeStrict([]byte(`{"a":1}{"a":2}`), &v))
}

func TestCheckText(t *testing.T) {
	assert.NoError(t, checkText("bio", "café"))
	assert.Error(t, checkText("bio", "caf\xe9"))
	assert.Error(t, checkText("bio", "a\x00b"))

	assert.NoError(t, checkJSONText("metadata", `{"bio":"a\\u0000b"}`))
	assert.Error(t, checkJSONText("metadata", `{"bio":"a\u0000b"}`))
	assert.Error(t, checkJSONText("metadata", `{"bio":"a\\\u0000b"}`))

	var v struct {
		Bio string `json:"bio"`
	}
	err := decodeStrict([]byte(`{"bio":"x\u0000"}`), &v)
	var de DecodeError
	assert.True(t, errors.As(err, &de))
	assert.NoError(t, decodeStrict([]byte(`{"bio":"x\u0041"}`), &v))
	assert.Equal(t, "xA", v.Bio)
}

func TestStorableText(t *testing.T) {
	assert.Equal(t, "ok", storableText("ok"))
	assert.Equal(t, "a\uFFFDb", storableText("a\xff\xfeb"))
	assert.Equal(t, "ab", storableText("a\x00b"))
}

func TestNewRequestRejectsInvalidLogs(t *testing.T) {
	blk := &types.Block{Number: 5, Hash: "0xabc"}
	_, _, err := newRequest(blk, types.ManageEntity{EntityType: "Track", Action: "Create", Invalid: "entity id out of range"})
	var de DecodeError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "entity id out of range")

	_, _, err = newRequest(blk, types.ManageEntity{EntityType: "Track", Action: "Cre\x00ate"})
	assert.True(t, errors.As(err, &de))
}
