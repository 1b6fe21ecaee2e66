// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type trackMetadata struct {
	OwnerID     *int64  `json:"owner_id"`
	Title       *string `json:"title"`
	Genre       *string `json:"genre"`
	Mood        *string `json:"mood"`
	Tags        *string `json:"tags"`
	Description *string `json:"description"`
	IsUnlisted  *bool   `json:"is_unlisted"`
}

type trackHandler struct {
	limits Limits
}

func (h *trackHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindTrack, models.IDKey(req.EntityID)
}

func (h *trackHandler) Decode(req *Request) (any, error) {
	meta := &trackMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (h *trackHandler) Refs(req *Request, m any) []Ref {
	meta := m.(*trackMetadata)
	refs := append(signerRefs(req), keyRef(types.KindTrack, models.IDKey(req.EntityID)))
	if req.Action != types.ActionDelete {
		refs = append(refs, routeRefs(types.KindTrackRoute, req.EntityID, meta.Title)...)
	}
	return refs
}

func (h *trackHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*trackMetadata)
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}

	key := models.IDKey(req.EntityID)
	existing := hc.Get(types.KindTrack, key)

	if req.Action == types.ActionCreate {
		if existing != nil {
			return validationError(ErrEntityExists, "track %d already exists", req.EntityID)
		}
		if h.limits.TrackIDOffset > 0 && req.EntityID < h.limits.TrackIDOffset {
			return validationError(ErrInvalidID, "cannot create track %d below the offset", req.EntityID)
		}
		if err := h.validate(req, meta); err != nil {
			return err
		}
		track := &models.Track{TrackID: req.EntityID, OwnerID: req.UserID}
		track.EntityKey = key
		h.populate(hc, req, track, meta)
		hc.Put(track)
		updateRoute(hc, types.KindTrackRoute, track.OwnerID, track.TrackID, "", meta.Title)
		hc.Dispatch(challenges.EventTrackUpload, track.OwnerID, "track:"+key, nil)
		return nil
	}

	if existing == nil {
		return validationError(ErrEntityMissing, "track %d does not exist", req.EntityID)
	}
	prev := existing.(*models.Track)
	if prev.IsDelete {
		return validationError(ErrEntityDeleted, "track %d is deleted", req.EntityID)
	}
	if prev.OwnerID != req.UserID {
		return validationError(ErrNotOwner, "track %d is not owned by user %d", req.EntityID, req.UserID)
	}

	next := prev.Clone().(*models.Track)
	switch req.Action {
	case types.ActionUpdate:
		if err := h.validate(req, meta); err != nil {
			return err
		}
		h.populate(hc, req, next, meta)
		hc.Put(next)
		updateRoute(hc, types.KindTrackRoute, next.OwnerID, next.TrackID, prev.Title, meta.Title)
	case types.ActionDelete:
		next.IsDelete = true
		hc.Put(next)
	default:
		return validationError(ErrInvalidTransition, "unsupported track action %s", req.Action)
	}
	return nil
}

func (h *trackHandler) validate(req *Request, meta *trackMetadata) error {
	if err := requireMetadata(req); err != nil {
		return err
	}
	if meta.OwnerID != nil && *meta.OwnerID != req.UserID {
		return validationError(ErrNotOwner, "track owner %d does not match user %d", *meta.OwnerID, req.UserID)
	}
	if meta.Genre != nil && *meta.Genre != "" && !genreSet[*meta.Genre] {
		return validationError(ErrInvalidField, "genre %q is not allowed", *meta.Genre)
	}
	if meta.Description != nil {
		if err := checkLength("description", *meta.Description, h.limits.Description); err != nil {
			return err
		}
	}
	return nil
}

func (h *trackHandler) populate(hc *HandlerContext, req *Request, track *models.Track, meta *trackMetadata) {
	if meta.Title != nil {
		track.Title = *meta.Title
	}
	if meta.Genre != nil {
		track.Genre = *meta.Genre
	}
	if meta.Mood != nil {
		track.Mood = *meta.Mood
	}
	if meta.Tags != nil {
		track.Tags = *meta.Tags
	}
	if meta.Description != nil {
		track.Description = *meta.Description
	}
	if meta.IsUnlisted != nil {
		track.IsUnlisted = *meta.IsUnlisted
	}
	if req.MetadataCID != "" {
		track.MetadataCID = req.MetadataCID
	}
	if req.Pending {
		hc.RequestMetadata(types.KindTrack, track.Key(), req.MetadataCID)
	}
}
