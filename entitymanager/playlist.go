// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"encoding/json"

	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type playlistMetadata struct {
	Name        *string           `json:"playlist_name"`
	Description *string           `json:"description"`
	IsAlbum     *bool             `json:"is_album"`
	IsPrivate   *bool             `json:"is_private"`
	Contents    *playlistContents `json:"playlist_contents"`
}

type playlistContents struct {
	TrackIDs []playlistEntry `json:"track_ids"`
}

type playlistEntry struct {
	Track int64 `json:"track"`
	Time  int64 `json:"time"`
}

type playlistHandler struct {
	limits Limits
}

func (h *playlistHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindPlaylist, models.IDKey(req.EntityID)
}

func (h *playlistHandler) Decode(req *Request) (any, error) {
	meta := &playlistMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (h *playlistHandler) Refs(req *Request, m any) []Ref {
	meta := m.(*playlistMetadata)
	refs := append(signerRefs(req), keyRef(types.KindPlaylist, models.IDKey(req.EntityID)))
	if req.Action != types.ActionDelete {
		refs = append(refs, routeRefs(types.KindPlaylistRoute, req.EntityID, meta.Name)...)
		if meta.Contents != nil {
			for _, e := range meta.Contents.TrackIDs {
				refs = append(refs, keyRef(types.KindTrack, models.IDKey(e.Track)))
			}
		}
	}
	return refs
}

func (h *playlistHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*playlistMetadata)
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}

	key := models.IDKey(req.EntityID)
	existing := hc.Get(types.KindPlaylist, key)

	if req.Action == types.ActionCreate {
		if existing != nil {
			return validationError(ErrEntityExists, "playlist %d already exists", req.EntityID)
		}
		if h.limits.PlaylistIDOffset > 0 && req.EntityID < h.limits.PlaylistIDOffset {
			return validationError(ErrInvalidID, "cannot create playlist %d below the offset", req.EntityID)
		}
		if err := requireMetadata(req); err != nil {
			return err
		}
		if meta.Contents == nil && !req.Pending {
			return validationError(ErrInvalidField, "playlist %d has no playlist_contents", req.EntityID)
		}
		if err := h.validate(meta); err != nil {
			return err
		}
		playlist := &models.Playlist{PlaylistID: req.EntityID, OwnerID: req.UserID, Contents: `{"track_ids":[]}`}
		playlist.EntityKey = key
		if err := h.populate(hc, req, playlist, meta); err != nil {
			return err
		}
		hc.Put(playlist)
		updateRoute(hc, types.KindPlaylistRoute, playlist.OwnerID, playlist.PlaylistID, "", meta.Name)
		h.dispatchFirstPlaylist(hc, playlist, meta)
		return nil
	}

	if existing == nil {
		return validationError(ErrEntityMissing, "playlist %d does not exist", req.EntityID)
	}
	prev := existing.(*models.Playlist)
	if prev.IsDelete {
		return validationError(ErrEntityDeleted, "playlist %d is deleted", req.EntityID)
	}
	if prev.OwnerID != req.UserID {
		return validationError(ErrNotOwner, "playlist %d is not owned by user %d", req.EntityID, req.UserID)
	}

	next := prev.Clone().(*models.Playlist)
	switch req.Action {
	case types.ActionUpdate:
		if err := requireMetadata(req); err != nil {
			return err
		}
		if err := h.validate(meta); err != nil {
			return err
		}
		if !prev.IsPrivate && meta.IsPrivate != nil && *meta.IsPrivate {
			return validationError(ErrInvalidTransition, "public playlist %d cannot be made private", req.EntityID)
		}
		if err := h.populate(hc, req, next, meta); err != nil {
			return err
		}
		hc.Put(next)
		updateRoute(hc, types.KindPlaylistRoute, next.OwnerID, next.PlaylistID, prev.Name, meta.Name)
		h.dispatchFirstPlaylist(hc, next, meta)
	case types.ActionDelete:
		next.IsDelete = true
		hc.Put(next)
	default:
		return validationError(ErrInvalidTransition, "unsupported playlist action %s", req.Action)
	}
	return nil
}

func (h *playlistHandler) validate(meta *playlistMetadata) error {
	if meta.Description != nil {
		if err := checkLength("description", *meta.Description, h.limits.Description); err != nil {
			return err
		}
	}
	if meta.Contents != nil && len(meta.Contents.TrackIDs) > h.limits.PlaylistTracks {
		return validationError(ErrFieldLimit, "playlist has %d tracks, the limit is %d",
			len(meta.Contents.TrackIDs), h.limits.PlaylistTracks)
	}
	return nil
}

func (h *playlistHandler) populate(hc *HandlerContext, req *Request, playlist *models.Playlist, meta *playlistMetadata) error {
	if meta.Name != nil {
		playlist.Name = *meta.Name
	}
	if meta.Description != nil {
		playlist.Description = *meta.Description
	}
	if meta.IsAlbum != nil {
		playlist.IsAlbum = *meta.IsAlbum
	}
	if meta.IsPrivate != nil {
		playlist.IsPrivate = *meta.IsPrivate
	}
	if meta.Contents != nil {
		contents := playlistContents{TrackIDs: make([]playlistEntry, 0, len(meta.Contents.TrackIDs))}
		for _, e := range meta.Contents.TrackIDs {
			if _, err := liveTarget(hc, types.KindTrack, e.Track); err != nil {
				return err
			}
			if e.Time == 0 {
				e.Time = req.BlockTime.Unix()
			}
			contents.TrackIDs = append(contents.TrackIDs, e)
		}
		raw, err := json.Marshal(contents)
		if err != nil {
			return AssertError("encoding playlist contents: " + err.Error())
		}
		playlist.Contents = string(raw)
	}
	if req.MetadataCID != "" {
		playlist.MetadataCID = req.MetadataCID
	}
	if req.Pending {
		hc.RequestMetadata(types.KindPlaylist, playlist.Key(), req.MetadataCID)
	}
	return nil
}

func (h *playlistHandler) dispatchFirstPlaylist(hc *HandlerContext, playlist *models.Playlist, meta *playlistMetadata) {
	if meta.Contents != nil && len(meta.Contents.TrackIDs) > 0 {
		hc.Dispatch(challenges.EventFirstPlaylist, playlist.OwnerID, "playlist:"+playlist.Key(), nil)
	}
}
