// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"strings"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type commentMetadata struct {
	EntityID        *int64  `json:"entity_id"`
	EntityType      *string `json:"entity_type"`
	Body            *string `json:"body"`
	ParentCommentID *int64  `json:"parent_comment_id"`
	TrackTimestamp  *int    `json:"track_timestamp_s"`
}

type commentHandler struct {
	limits Limits
}

func (h *commentHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindComment, models.IDKey(req.EntityID)
}

func (h *commentHandler) Decode(req *Request) (any, error) {
	meta := &commentMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	if req.Action == types.ActionCreate {
		if meta.EntityID == nil {
			return nil, decodeError(nil, "comment metadata has no entity_id")
		}
		if meta.EntityType != nil && *meta.EntityType != string(types.KindTrack) {
			return nil, decodeError(nil, "comments on %s are not supported", *meta.EntityType)
		}
	}
	return meta, nil
}

func (h *commentHandler) Refs(req *Request, m any) []Ref {
	meta := m.(*commentMetadata)
	refs := append(signerRefs(req), keyRef(types.KindComment, models.IDKey(req.EntityID)))
	if meta.EntityID != nil {
		refs = append(refs, keyRef(types.KindTrack, models.IDKey(*meta.EntityID)))
	}
	if meta.ParentCommentID != nil {
		refs = append(refs, keyRef(types.KindComment, models.IDKey(*meta.ParentCommentID)))
	}
	return refs
}

// DependentRefs loads the commented track so its owner may delete the
// comment. Only stored comments are visible here. A comment created
// earlier in the same block already had its track loaded by the create.
func (h *commentHandler) DependentRefs(ws *WorkingSet, req *Request, _ any) []Ref {
	if req.Action != types.ActionDelete {
		return nil
	}
	row := ws.Get(types.KindComment, models.IDKey(req.EntityID))
	if row == nil {
		return nil
	}
	return []Ref{keyRef(types.KindTrack, models.IDKey(row.(*models.Comment).EntityID))}
}

func (h *commentHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*commentMetadata)
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	key := models.IDKey(req.EntityID)
	existing := hc.Get(types.KindComment, key)

	if req.Action == types.ActionCreate {
		if existing != nil {
			return validationError(ErrEntityExists, "comment %d already exists", req.EntityID)
		}
		if err := h.checkBody(meta.Body); err != nil {
			return err
		}
		if _, err := liveTarget(hc, types.KindTrack, *meta.EntityID); err != nil {
			return err
		}
		if meta.ParentCommentID != nil {
			parent, err := liveTarget(hc, types.KindComment, *meta.ParentCommentID)
			if err != nil {
				return err
			}
			if parent.(*models.Comment).EntityID != *meta.EntityID {
				return validationError(ErrInvalidField, "parent comment %d is on another track", *meta.ParentCommentID)
			}
		}
		c := &models.Comment{
			CommentID:  req.EntityID,
			UserID:     req.UserID,
			EntityID:   *meta.EntityID,
			EntityType: string(types.KindTrack),
			Text:       *meta.Body,
			TrackTime:  meta.TrackTimestamp,
			ParentID:   meta.ParentCommentID,
		}
		c.EntityKey = key
		hc.Put(c)
		return nil
	}

	if existing == nil {
		return validationError(ErrEntityMissing, "comment %d does not exist", req.EntityID)
	}
	prev := existing.(*models.Comment)
	if prev.IsDelete {
		return validationError(ErrEntityDeleted, "comment %d is deleted", req.EntityID)
	}
	next := prev.Clone().(*models.Comment)

	switch req.Action {
	case types.ActionUpdate:
		if prev.UserID != req.UserID {
			return validationError(ErrNotOwner, "comment %d is not owned by user %d", req.EntityID, req.UserID)
		}
		if err := h.checkBody(meta.Body); err != nil {
			return err
		}
		next.Text = *meta.Body
		if meta.TrackTimestamp != nil {
			next.TrackTime = meta.TrackTimestamp
		}
	case types.ActionDelete:
		if prev.UserID != req.UserID && !ownsTrack(hc, prev.EntityID, req.UserID) {
			return validationError(ErrNotOwner, "user %d may not delete comment %d", req.UserID, req.EntityID)
		}
		next.IsDelete = true
	default:
		return validationError(ErrInvalidTransition, "unsupported comment action %s", req.Action)
	}
	hc.Put(next)
	return nil
}

func (h *commentHandler) checkBody(body *string) error {
	if body == nil || strings.TrimSpace(*body) == "" {
		return validationError(ErrInvalidField, "comment body is empty")
	}
	return checkLength("comment", *body, h.limits.Comment)
}

func ownsTrack(hc *HandlerContext, trackID, userID int64) bool {
	row := hc.Get(types.KindTrack, models.IDKey(trackID))
	return row != nil && row.(*models.Track).OwnerID == userID
}
