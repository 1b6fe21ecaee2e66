// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

type developerAppMetadata struct {
	Address     string  `json:"address"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type developerAppHandler struct {
	limits Limits
}

func (h *developerAppHandler) Target(_ *WorkingSet, _ *Request, m any) (types.EntityKind, string) {
	return types.KindDeveloperApp, types.NormalizeAddress(m.(*developerAppMetadata).Address)
}

func (h *developerAppHandler) Decode(req *Request) (any, error) {
	meta := &developerAppMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	if types.NormalizeAddress(meta.Address) == "" {
		return nil, decodeError(nil, "developer app metadata has no address")
	}
	return meta, nil
}

func (h *developerAppHandler) Refs(req *Request, m any) []Ref {
	addr := types.NormalizeAddress(m.(*developerAppMetadata).Address)
	return []Ref{
		keyRef(types.KindUser, models.IDKey(req.UserID)),
		keyRef(types.KindDeveloperApp, addr),
		{Kind: types.KindUser, Column: "wallet", Value: addr},
	}
}

func (h *developerAppHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*developerAppMetadata)
	if _, err := ownWallet(hc, req); err != nil {
		return err
	}
	addr := types.NormalizeAddress(meta.Address)
	existing := hc.Get(types.KindDeveloperApp, addr)

	switch req.Action {
	case types.ActionCreate:
		if existing != nil {
			return validationError(ErrEntityExists, "developer app %s already exists", addr)
		}
		if len(hc.Lookup(Ref{Kind: types.KindUser, Column: "wallet", Value: addr})) > 0 {
			return validationError(ErrInvalidField, "developer app address %s is a user wallet", addr)
		}
		if meta.Name == nil || *meta.Name == "" {
			return validationError(ErrInvalidField, "developer app %s has no name", addr)
		}
		if err := checkLength("name", *meta.Name, h.limits.AppName); err != nil {
			return err
		}
		app := &models.DeveloperApp{Address: addr, UserID: req.UserID, Name: *meta.Name}
		if meta.Description != nil {
			if err := checkLength("description", *meta.Description, h.limits.Description); err != nil {
				return err
			}
			app.Description = *meta.Description
		}
		app.EntityKey = addr
		hc.Put(app)
	case types.ActionUpdate:
		next, err := ownedApp(existing, addr, req.UserID)
		if err != nil {
			return err
		}
		if meta.Name != nil {
			if *meta.Name == "" {
				return validationError(ErrInvalidField, "developer app %s has no name", addr)
			}
			if err := checkLength("name", *meta.Name, h.limits.AppName); err != nil {
				return err
			}
			next.Name = *meta.Name
		}
		if meta.Description != nil {
			if err := checkLength("description", *meta.Description, h.limits.Description); err != nil {
				return err
			}
			next.Description = *meta.Description
		}
		hc.Put(next)
	case types.ActionDelete:
		next, err := ownedApp(existing, addr, req.UserID)
		if err != nil {
			return err
		}
		next.IsDelete = true
		hc.Put(next)
	default:
		return validationError(ErrInvalidTransition, "unsupported developer app action %s", req.Action)
	}
	return nil
}

// ownedApp returns a copy of a live app owned by userID.
func ownedApp(existing models.Row, addr string, userID int64) (*models.DeveloperApp, error) {
	if existing == nil {
		return nil, validationError(ErrEntityMissing, "developer app %s does not exist", addr)
	}
	prev := existing.(*models.DeveloperApp)
	if prev.IsDelete {
		return nil, validationError(ErrEntityDeleted, "developer app %s is deleted", addr)
	}
	if prev.UserID != userID {
		return nil, validationError(ErrNotOwner, "developer app %s is not owned by user %d", addr, userID)
	}
	return prev.Clone().(*models.DeveloperApp), nil
}
