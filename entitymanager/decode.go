// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
	"github.com/project-illium/emxd/types"
	"github.com/tidwall/gjson"
)

// envelope is the parsed form of the _metadata string.
type envelope struct {
	// data is inline metadata JSON.
	data []byte
	// cid is the content id of the metadata. When data is nil and cid is
	// set the metadata must be fetched.
	cid string
}

func (e envelope) needsFetch() bool {
	return e.data == nil && e.cid != ""
}

// parseEnvelope accepts an empty string, a JSON object, a JSON object of
// the form {"cid": ..., "data": {...}} or a bare CID.
func parseEnvelope(raw string) (envelope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return envelope{}, nil
	}
	if strings.HasPrefix(raw, "{") {
		if !gjson.Valid(raw) {
			return envelope{}, decodeError(nil, "metadata is not valid json")
		}
		c, d := gjson.Get(raw, "cid"), gjson.Get(raw, "data")
		if c.Exists() && d.Exists() {
			if c.Type != gjson.String || !d.IsObject() {
				return envelope{}, decodeError(nil, "metadata envelope must hold a string cid and an object")
			}
			if _, err := cid.Decode(c.String()); err != nil {
				return envelope{}, decodeError(err, "metadata envelope cid")
			}
			return envelope{cid: c.String(), data: []byte(d.Raw)}, nil
		}
		return envelope{data: []byte(raw)}, nil
	}
	if _, err := cid.Decode(raw); err != nil {
		return envelope{}, decodeError(err, "metadata is neither json nor a cid")
	}
	return envelope{cid: raw}, nil
}

// newRequest converts a raw instruction into a Request.
func newRequest(blk *types.Block, in types.ManageEntity) (*Request, envelope, error) {
	req := &Request{
		EntityID:    in.EntityID,
		UserID:      in.UserID,
		Signer:      types.NormalizeAddress(in.Signer),
		BlockNumber: blk.Number,
		BlockHash:   blk.Hash,
		BlockTime:   time.Unix(blk.Timestamp, 0).UTC(),
		TxHash:      in.TxHash,
		TxIndex:     in.TxIndex,
		LogIndex:    in.LogIndex,
	}
	if in.Invalid != "" {
		return req, envelope{}, decodeError(nil, "undecodable log: %s", in.Invalid)
	}
	for _, f := range []struct{ name, text string }{
		{"entity type", in.EntityType},
		{"action", in.Action},
		{"signer", in.Signer},
	} {
		if err := checkText(f.name, f.text); err != nil {
			return req, envelope{}, err
		}
	}
	if err := checkJSONText("metadata", in.Metadata); err != nil {
		return req, envelope{}, err
	}
	kind, err := types.ParseEntityKind(in.EntityType)
	if err != nil {
		return req, envelope{}, decodeError(err, "entity type")
	}
	req.Kind = kind
	action, err := types.ParseAction(in.Action)
	if err != nil {
		return req, envelope{}, decodeError(err, "action")
	}
	req.Action = action

	env, err := parseEnvelope(in.Metadata)
	if err != nil {
		return req, envelope{}, err
	}
	req.Metadata = env.data
	req.MetadataCID = env.cid
	return req, env, nil
}

// decodeStrict unmarshals data into v rejecting unknown fields and
// trailing data. Empty data leaves v untouched.
func decodeStrict(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := checkJSONText("metadata", string(data)); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err, "malformed metadata")
	}
	if dec.More() {
		return decodeError(errors.New("trailing data"), "malformed metadata")
	}
	return nil
}

// checkText rejects text the relational store cannot hold: invalid utf-8
// and NUL characters.
func checkText(field, s string) error {
	if !utf8.ValidString(s) {
		return decodeError(nil, "%s is not valid utf-8", field)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return decodeError(nil, "%s contains a NUL character", field)
	}
	return nil
}

// checkJSONText is checkText for a JSON document, which may also spell a
// NUL as the \u0000 escape.
func checkJSONText(field, s string) error {
	if err := checkText(field, s); err != nil {
		return err
	}
	if hasNULEscape(s) {
		return decodeError(nil, "%s contains a NUL character", field)
	}
	return nil
}

func hasNULEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			continue
		}
		if strings.HasPrefix(s[i+1:], "u0000") {
			return true
		}
		// Skip the escaped character so that \\u0000 is not matched.
		i++
	}
	return false
}

// storableText makes raw chain text safe to write to the audit log.
func storableText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

// requireMetadata rejects requests that carry no metadata at all. Pending
// metadata passes.
func requireMetadata(req *Request) error {
	if req.Metadata == nil && !req.Pending {
		return validationError(ErrInvalidField, "%s %s requires metadata", req.Kind, req.Action)
	}
	return nil
}
