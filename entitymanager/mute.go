// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"strings"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type reactionHandler struct{}

func (h *reactionHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindCommentReaction, models.PairKey(req.UserID, req.EntityID)
}

func (h *reactionHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *reactionHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(types.KindComment, models.IDKey(req.EntityID)),
		keyRef(types.KindCommentReaction, models.PairKey(req.UserID, req.EntityID)),
	)
}

func (h *reactionHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	if _, err := liveTarget(hc, types.KindComment, req.EntityID); err != nil {
		return err
	}
	_, err := toggleEdge(hc, types.KindCommentReaction, models.PairKey(req.UserID, req.EntityID),
		req.Action == types.ActionReact, func() models.Row {
			return &models.CommentReaction{UserID: req.UserID, CommentID: req.EntityID}
		})
	return err
}

type muteUserHandler struct{}

func (h *muteUserHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindMutedUser, models.PairKey(req.UserID, req.EntityID)
}

func (h *muteUserHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *muteUserHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(types.KindUser, models.IDKey(req.EntityID)),
		keyRef(types.KindMutedUser, models.PairKey(req.UserID, req.EntityID)),
	)
}

func (h *muteUserHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	if req.UserID == req.EntityID {
		return validationError(ErrSelfAction, "user %d cannot mute itself", req.UserID)
	}
	if _, err := liveTarget(hc, types.KindUser, req.EntityID); err != nil {
		return err
	}
	_, err := toggleEdge(hc, types.KindMutedUser, models.PairKey(req.UserID, req.EntityID),
		req.Action == types.ActionMute, func() models.Row {
			return &models.MutedUser{UserID: req.UserID, MutedUserID: req.EntityID}
		})
	return err
}

// commentNotificationHandler mutes or unmutes comment notifications on a
// track or a comment. Repeating the current setting is allowed.
type commentNotificationHandler struct{}

func settingKey(req *Request) string {
	return models.ItemKey(req.UserID, strings.ToLower(string(req.Kind)), req.EntityID)
}

func (h *commentNotificationHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindCommentNotificationSetting, settingKey(req)
}

func (h *commentNotificationHandler) Decode(req *Request) (any, error) { return decodeSocial(req) }

func (h *commentNotificationHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req),
		keyRef(req.Kind, models.IDKey(req.EntityID)),
		keyRef(types.KindCommentNotificationSetting, settingKey(req)),
	)
}

func (h *commentNotificationHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	if _, err := liveTarget(hc, req.Kind, req.EntityID); err != nil {
		return err
	}
	key := settingKey(req)
	var next *models.CommentNotificationSetting
	if row := hc.Get(types.KindCommentNotificationSetting, key); row != nil {
		next = row.Clone().(*models.CommentNotificationSetting)
	} else {
		next = &models.CommentNotificationSetting{
			UserID:     req.UserID,
			EntityID:   req.EntityID,
			EntityType: string(req.Kind),
		}
		next.EntityKey = key
	}
	next.IsMuted = req.Action == types.ActionMute
	hc.Put(next)
	return nil
}
