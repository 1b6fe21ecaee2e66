// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package metadata

import (
	"bytes"
	"encoding/json"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDForJSON returns the CIDv1 dag-json sha2-256 id of a JSON document.
// The document is compacted first so whitespace does not change the id.
func CIDForJSON(doc []byte) (cid.Cid, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return cid.Undef, err
	}
	h, err := multihash.Sum(buf.Bytes(), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagJSON, h), nil
}

// CIDForBytes returns the CIDv1 raw sha2-256 id of body.
func CIDForBytes(body []byte) (cid.Cid, error) {
	h, err := multihash.Sum(body, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, h), nil
}
