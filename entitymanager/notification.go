// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

// notificationHandler records a user viewing their notifications.
type notificationHandler struct{}

func (h *notificationHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindNotificationSeen, models.IDKey(req.UserID)
}

func (h *notificationHandler) Decode(req *Request) (any, error) {
	var meta struct{}
	if err := decodeStrict(req.Metadata, &meta); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *notificationHandler) Refs(req *Request, _ any) []Ref {
	return append(signerRefs(req), keyRef(types.KindNotificationSeen, models.IDKey(req.UserID)))
}

func (h *notificationHandler) Apply(hc *HandlerContext, req *Request, _ any) error {
	if _, err := validateSigner(hc, req); err != nil {
		return err
	}
	key := models.IDKey(req.UserID)
	var next *models.NotificationSeen
	if row := hc.Get(types.KindNotificationSeen, key); row != nil {
		next = row.Clone().(*models.NotificationSeen)
	} else {
		next = &models.NotificationSeen{UserID: req.UserID}
		next.EntityKey = key
	}
	next.SeenAt = req.BlockTime
	hc.Put(next)
	return nil
}
