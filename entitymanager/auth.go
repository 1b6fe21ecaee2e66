// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/store"
	"github.com/project-illium/emxd/types"
)

// signerRefs are the rows validateSigner reads.
func signerRefs(req *Request) []Ref {
	return []Ref{
		keyRef(types.KindUser, models.IDKey(req.UserID)),
		keyRef(types.KindGrant, models.GrantKey(req.UserID, req.Signer)),
		keyRef(types.KindDeveloperApp, req.Signer),
	}
}

func keyRef(kind types.EntityKind, key string) Ref {
	return Ref{Kind: kind, Column: store.EntityKeyColumn, Value: key}
}

// actingUser returns the request's user if it exists and is live.
func actingUser(hc *HandlerContext, req *Request) (*models.User, error) {
	row := hc.Get(types.KindUser, models.IDKey(req.UserID))
	if row == nil {
		return nil, validationError(ErrUserMissing, "user %d does not exist", req.UserID)
	}
	user := row.(*models.User)
	if user.IsDelete {
		return nil, validationError(ErrUserMissing, "user %d is deactivated", req.UserID)
	}
	return user, nil
}

// validateSigner checks the request is signed by the user's wallet or by
// an address holding an active grant from the user. Grants to developer
// apps only authorize while the app exists.
func validateSigner(hc *HandlerContext, req *Request) (*models.User, error) {
	user, err := actingUser(hc, req)
	if err != nil {
		return nil, err
	}
	if req.Signer == "" {
		return nil, authorizationError(ErrSignerMismatch, "request has no signer")
	}
	if types.NormalizeAddress(user.Wallet) == req.Signer {
		return user, nil
	}

	row := hc.Get(types.KindGrant, models.GrantKey(req.UserID, req.Signer))
	if row == nil {
		return nil, authorizationError(ErrSignerMismatch,
			"signer %s is not the wallet of user %d and holds no grant", req.Signer, req.UserID)
	}
	if !row.(*models.Grant).Active() {
		return nil, authorizationError(ErrGrantInactive,
			"grant from user %d to %s is not active", req.UserID, req.Signer)
	}
	if app := hc.Get(types.KindDeveloperApp, req.Signer); app != nil && app.Version().IsDelete {
		return nil, authorizationError(ErrGrantInactive, "developer app %s has been deleted", req.Signer)
	}
	return user, nil
}
