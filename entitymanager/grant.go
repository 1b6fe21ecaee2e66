// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type grantMetadata struct {
	GranteeAddress *string `json:"grantee_address"`
	GrantorUserID  *int64  `json:"grantor_user_id"`
}

func (m *grantMetadata) grantee() string {
	if m.GranteeAddress == nil {
		return ""
	}
	return types.NormalizeAddress(*m.GranteeAddress)
}

// grantHandler manages grants. Create and Delete are sent by the grantor.
// Approve and Reject are sent by the grantee user naming the grantor.
type grantHandler struct{}

func (h *grantHandler) Target(ws *WorkingSet, req *Request, m any) (types.EntityKind, string) {
	meta := m.(*grantMetadata)
	switch req.Action {
	case types.ActionApprove, types.ActionReject:
		if meta.GrantorUserID == nil {
			return types.KindGrant, ""
		}
		var wallet string
		if row := ws.Get(types.KindUser, models.IDKey(req.UserID)); row != nil {
			wallet = row.(*models.User).Wallet
		}
		return types.KindGrant, models.GrantKey(*meta.GrantorUserID, wallet)
	}
	return types.KindGrant, models.GrantKey(req.UserID, meta.grantee())
}

func (h *grantHandler) Decode(req *Request) (any, error) {
	meta := &grantMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	switch req.Action {
	case types.ActionCreate, types.ActionDelete:
		if meta.grantee() == "" || meta.GrantorUserID != nil {
			return nil, decodeError(nil, "grant %s metadata must only name a grantee_address", req.Action)
		}
	case types.ActionApprove, types.ActionReject:
		if meta.GrantorUserID == nil || meta.GranteeAddress != nil {
			return nil, decodeError(nil, "grant %s metadata must only name a grantor_user_id", req.Action)
		}
	}
	return meta, nil
}

func (h *grantHandler) Refs(req *Request, m any) []Ref {
	meta := m.(*grantMetadata)
	refs := []Ref{keyRef(types.KindUser, models.IDKey(req.UserID))}
	switch req.Action {
	case types.ActionCreate, types.ActionDelete:
		grantee := meta.grantee()
		refs = append(refs,
			keyRef(types.KindGrant, models.GrantKey(req.UserID, grantee)),
			keyRef(types.KindDeveloperApp, grantee),
			Ref{Kind: types.KindUser, Column: "wallet", Value: grantee},
		)
	case types.ActionApprove, types.ActionReject:
		refs = append(refs, Ref{Kind: types.KindGrant, Column: "user_id", Value: models.IDKey(*meta.GrantorUserID)})
	}
	return refs
}

func (h *grantHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*grantMetadata)
	user, err := ownWallet(hc, req)
	if err != nil {
		return err
	}
	switch req.Action {
	case types.ActionCreate:
		return h.create(hc, req, user, meta.grantee())
	case types.ActionDelete:
		return h.revoke(hc, req, meta.grantee())
	case types.ActionApprove, types.ActionReject:
		return h.respond(hc, req, user, *meta.GrantorUserID)
	}
	return validationError(ErrInvalidTransition, "unsupported grant action %s", req.Action)
}

func (h *grantHandler) create(hc *HandlerContext, req *Request, user *models.User, grantee string) error {
	if grantee == types.NormalizeAddress(user.Wallet) {
		return validationError(ErrSelfAction, "user %d cannot grant to its own wallet", req.UserID)
	}
	key := models.GrantKey(req.UserID, grantee)
	if row := hc.Get(types.KindGrant, key); row != nil {
		g := row.(*models.Grant)
		if !g.IsDelete && !g.IsRevoked {
			return validationError(ErrEntityExists, "grant from user %d to %s already exists", req.UserID, grantee)
		}
	}

	grant := &models.Grant{UserID: req.UserID, GranteeAddress: grantee}
	grant.EntityKey = key
	if app := hc.Get(types.KindDeveloperApp, grantee); app != nil && !app.Version().IsDelete {
		approved := true
		grant.IsApproved = &approved
	} else if users := hc.Lookup(Ref{Kind: types.KindUser, Column: "wallet", Value: grantee}); len(users) > 0 && !users[0].Version().IsDelete {
		// Grants to another user wait for that user to approve them.
		grant.IsApproved = nil
	} else {
		return validationError(ErrInvalidField, "grantee %s is neither a developer app nor a user", grantee)
	}
	hc.Put(grant)
	return nil
}

func (h *grantHandler) revoke(hc *HandlerContext, req *Request, grantee string) error {
	row := hc.Get(types.KindGrant, models.GrantKey(req.UserID, grantee))
	if row == nil {
		return validationError(ErrEntityMissing, "grant from user %d to %s does not exist", req.UserID, grantee)
	}
	g := row.(*models.Grant)
	if g.IsDelete || g.IsRevoked {
		return validationError(ErrEntityDeleted, "grant from user %d to %s is already revoked", req.UserID, grantee)
	}
	next := g.Clone().(*models.Grant)
	next.IsRevoked = true
	hc.Put(next)
	return nil
}

func (h *grantHandler) respond(hc *HandlerContext, req *Request, grantee *models.User, grantorID int64) error {
	wallet := types.NormalizeAddress(grantee.Wallet)
	var grant *models.Grant
	for _, row := range hc.Lookup(Ref{Kind: types.KindGrant, Column: "user_id", Value: models.IDKey(grantorID)}) {
		if g := row.(*models.Grant); g.GranteeAddress == wallet {
			grant = g
		}
	}
	if grant == nil {
		return validationError(ErrEntityMissing, "no grant from user %d to user %d", grantorID, req.UserID)
	}
	if grant.IsDelete || grant.IsRevoked || grant.IsApproved != nil {
		return validationError(ErrInvalidTransition, "grant from user %d to user %d is not awaiting a response", grantorID, req.UserID)
	}

	next := grant.Clone().(*models.Grant)
	approved := req.Action == types.ActionApprove
	next.IsApproved = &approved
	if !approved {
		next.IsRevoked = true
	}
	hc.Put(next)
	return nil
}

// ownWallet returns the acting user if the request is signed by the
// user's own wallet. Grants cannot be used to manage other grants or
// developer apps.
func ownWallet(hc *HandlerContext, req *Request) (*models.User, error) {
	user, err := actingUser(hc, req)
	if err != nil {
		return nil, err
	}
	if req.Signer == "" || types.NormalizeAddress(user.Wallet) != req.Signer {
		return nil, authorizationError(ErrSignerMismatch, "signer %s is not the wallet of user %d", req.Signer, req.UserID)
	}
	return user, nil
}
