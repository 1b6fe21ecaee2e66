// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"strings"

	"github.com/project-illium/emxd/challenges"
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type socialMetadata struct {
	IsSaveOfRepost   *bool `json:"is_save_of_repost"`
	IsRepostOfRepost *bool `json:"is_repost_of_repost"`
}

func decodeSocial(req *Request) (any, error) {
	meta := &socialMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// toggleEdge stages the next version of a social edge. adding selects
// between the do and undo action. build returns a fresh edge row.
func toggleEdge(hc *HandlerContext, kind types.EntityKind, key string, adding bool, build func() models.Row) (models.Row, error) {
	row := hc.Get(kind, key)
	live := row != nil && !row.Version().IsDelete
	if adding {
		if live {
			return nil, validationError(ErrEntityExists, "%s %s already exists", kind, key)
		}
		var next models.Row
		if row != nil {
			next = row.Clone()
		} else {
			next = build()
		}
		next.Version().EntityKey = key
		next.Version().IsDelete = false
		hc.Put(next)
		return next, nil
	}
	if !live {
		return nil, validationError(ErrEntityMissing, "%s %s does not exist", kind, key)
	}
	next := row.Clone()
	next.Version().IsDelete = true
	hc.Put(next)
	return next, nil
}

// liveTarget checks that the entity a social action points at exists.
func liveTarget(hc *HandlerContext, kind types.EntityKind, id int64) (models.Row, error) {
	row := hc.Get(kind, models.IDKey(id))
	if row == nil {
		return nil, validationError(ErrEntityMissing, "%s %d does not exist", kind, id)
	}
	if row.Version().IsDelete {
		return nil, validationError(ErrEntityDeleted, "%s %d is deleted", kind, id)
	}
	return row, nil
}

type followHandler struct{}

func (h *followHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindFollow, models.PairKey(req.UserID, req.EntityID)
}

func (h *followHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *followHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(types.KindUser, models.IDKey(req.EntityID)),
		keyRef(types.KindFollow, models.PairKey(req.UserID, req.EntityID)),
	)
}

func (h *followHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	if req.UserID == req.EntityID {
		return validationError(ErrSelfAction, "user %d cannot follow itself", req.UserID)
	}
	if _, err := liveTarget(hc, types.KindUser, req.EntityID); err != nil {
		return err
	}
	key := models.PairKey(req.UserID, req.EntityID)
	adding := req.Action == types.ActionFollow
	_, err := toggleEdge(hc, types.KindFollow, key, adding, func() models.Row {
		return &models.Follow{FollowerUserID: req.UserID, FolloweeUserID: req.EntityID}
	})
	if err != nil {
		return err
	}
	if adding {
		hc.Dispatch(challenges.EventFollow, req.UserID, "follow:"+key, nil)
	}
	return nil
}

type subscriptionHandler struct{}

func (h *subscriptionHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindSubscription, models.PairKey(req.UserID, req.EntityID)
}

func (h *subscriptionHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *subscriptionHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(types.KindUser, models.IDKey(req.EntityID)),
		keyRef(types.KindSubscription, models.PairKey(req.UserID, req.EntityID)),
	)
}

func (h *subscriptionHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	if req.UserID == req.EntityID {
		return validationError(ErrSelfAction, "user %d cannot subscribe to itself", req.UserID)
	}
	if _, err := liveTarget(hc, types.KindUser, req.EntityID); err != nil {
		return err
	}
	_, err := toggleEdge(hc, types.KindSubscription, models.PairKey(req.UserID, req.EntityID),
		req.Action == types.ActionSubscribe, func() models.Row {
			return &models.Subscription{SubscriberID: req.UserID, UserID: req.EntityID}
		})
	return err
}

// itemKey is the edge key of a save or repost. The item type in the key
// follows the instruction's kind so albums and playlists share keys.
func itemKey(req *Request) string {
	return models.ItemKey(req.UserID, strings.ToLower(string(req.Kind)), req.EntityID)
}

func itemType(target models.Row) string {
	if p, ok := target.(*models.Playlist); ok {
		if p.IsAlbum {
			return models.ItemAlbum
		}
		return models.ItemPlaylist
	}
	return models.ItemTrack
}

type saveHandler struct{}

func (h *saveHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindSave, itemKey(req)
}

func (h *saveHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *saveHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(req.Kind, models.IDKey(req.EntityID)),
		keyRef(types.KindSave, itemKey(req)),
	)
}

func (h *saveHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*socialMetadata)
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	target, err := liveTarget(hc, req.Kind, req.EntityID)
	if err != nil {
		return err
	}
	key := itemKey(req)
	adding := req.Action == types.ActionSave
	row, err := toggleEdge(hc, types.KindSave, key, adding, func() models.Row {
		return &models.Save{UserID: req.UserID, SaveItemID: req.EntityID}
	})
	if err != nil {
		return err
	}
	save := row.(*models.Save)
	save.SaveType = itemType(target)
	if adding {
		save.IsSaveOfRepost = meta.IsSaveOfRepost != nil && *meta.IsSaveOfRepost
		hc.Dispatch(challenges.EventFavorite, req.UserID, "save:"+key, nil)
	}
	return nil
}

type repostHandler struct{}

func (h *repostHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindRepost, itemKey(req)
}

func (h *repostHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *repostHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(req.Kind, models.IDKey(req.EntityID)),
		keyRef(types.KindRepost, itemKey(req)),
	)
}

func (h *repostHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*socialMetadata)
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	target, err := liveTarget(hc, req.Kind, req.EntityID)
	if err != nil {
		return err
	}
	key := itemKey(req)
	adding := req.Action == types.ActionRepost
	row, err := toggleEdge(hc, types.KindRepost, key, adding, func() models.Row {
		return &models.Repost{UserID: req.UserID, RepostItemID: req.EntityID}
	})
	if err != nil {
		return err
	}
	repost := row.(*models.Repost)
	repost.RepostType = itemType(target)
	if adding {
		repost.IsRepostOfRepost = meta.IsRepostOfRepost != nil && *meta.IsRepostOfRepost
		hc.Dispatch(challenges.EventRepost, req.UserID, "repost:"+key, nil)
	}
	return nil
}
