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

type userMetadata struct {
	Handle              *string     `json:"handle"`
	Name                *string     `json:"name"`
	Bio                 *string     `json:"bio"`
	Location            *string     `json:"location"`
	ProfilePicture      *string     `json:"profile_picture"`
	ProfilePictureSizes *string     `json:"profile_picture_sizes"`
	CoverPhoto          *string     `json:"cover_photo"`
	CoverPhotoSizes     *string     `json:"cover_photo_sizes"`
	ArtistPickTrackID   *int64      `json:"artist_pick_track_id"`
	IsVerified          *bool       `json:"is_verified"`
	Events              *userEvents `json:"events"`
}

type userEvents struct {
	Referrer     *int64 `json:"referrer"`
	IsMobileUser *bool  `json:"is_mobile_user"`
}

type userHandler struct {
	limits Limits
}

func (h *userHandler) Target(_ *WorkingSet, req *Request, _ any) (types.EntityKind, string) {
	return types.KindUser, models.IDKey(req.UserID)
}

func (h *userHandler) Decode(req *Request) (any, error) {
	meta := &userMetadata{}
	if err := decodeStrict(req.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (h *userHandler) Refs(req *Request, m any) []Ref {
	meta := m.(*userMetadata)
	refs := signerRefs(req)
	if req.Action == types.ActionCreate {
		refs = append(refs, Ref{Kind: types.KindUser, Column: "wallet", Value: req.Signer})
	}
	if meta.Handle != nil {
		refs = append(refs, Ref{Kind: types.KindUser, Column: "handle_lc", Value: strings.ToLower(*meta.Handle)})
	}
	if meta.ArtistPickTrackID != nil {
		refs = append(refs, keyRef(types.KindTrack, models.IDKey(*meta.ArtistPickTrackID)))
	}
	if meta.Events != nil && meta.Events.Referrer != nil {
		refs = append(refs, keyRef(types.KindUser, models.IDKey(*meta.Events.Referrer)))
	}
	return refs
}

func (h *userHandler) Apply(hc *HandlerContext, req *Request, m any) error {
	meta := m.(*userMetadata)
	if req.EntityID != req.UserID {
		return validationError(ErrInvalidID, "user entity id %d does not match user id %d", req.EntityID, req.UserID)
	}
	switch req.Action {
	case types.ActionCreate:
		return h.create(hc, req, meta)
	case types.ActionUpdate:
		user, err := validateSigner(hc, req)
		if err != nil {
			return err
		}
		if meta.IsVerified != nil {
			return validationError(ErrInvalidField, "is_verified may only be set by the verifier")
		}
		next := user.Clone().(*models.User)
		if err := h.populate(hc, req, next, meta); err != nil {
			return err
		}
		hc.Put(next)
		return nil
	case types.ActionVerify:
		return h.verify(hc, req, meta)
	}
	return validationError(ErrInvalidTransition, "unsupported user action %s", req.Action)
}

func (h *userHandler) create(hc *HandlerContext, req *Request, meta *userMetadata) error {
	if h.limits.UserIDOffset > 0 && req.UserID < h.limits.UserIDOffset {
		return validationError(ErrInvalidID, "cannot create user %d below the offset", req.UserID)
	}
	if hc.Get(types.KindUser, models.IDKey(req.UserID)) != nil {
		return validationError(ErrEntityExists, "user %d already exists", req.UserID)
	}
	if req.Signer == "" {
		return authorizationError(ErrSignerMismatch, "user create has no signer")
	}
	if hc.Get(types.KindDeveloperApp, req.Signer) != nil {
		return authorizationError(ErrSignerMismatch, "developer app %s cannot create a user", req.Signer)
	}
	if len(hc.Lookup(Ref{Kind: types.KindUser, Column: "wallet", Value: req.Signer})) > 0 {
		return validationError(ErrEntityExists, "wallet %s already belongs to a user", req.Signer)
	}
	if meta.IsVerified != nil {
		return validationError(ErrInvalidField, "is_verified may only be set by the verifier")
	}

	user := &models.User{
		UserID: req.UserID,
		Wallet: req.Signer,
	}
	user.EntityKey = models.IDKey(req.UserID)
	if err := h.populate(hc, req, user, meta); err != nil {
		return err
	}
	hc.Put(user)

	if meta.Events != nil && meta.Events.Referrer != nil {
		referrer := *meta.Events.Referrer
		if row := hc.Get(types.KindUser, models.IDKey(referrer)); row != nil && !row.Version().IsDelete && referrer != req.UserID {
			key := "user:" + models.IDKey(req.UserID)
			hc.Dispatch(challenges.EventReferralSignup, referrer, key, map[string]string{"referred_user_id": models.IDKey(req.UserID)})
			hc.Dispatch(challenges.EventReferredSignup, req.UserID, key, nil)
		}
	}
	return nil
}

func (h *userHandler) verify(hc *HandlerContext, req *Request, meta *userMetadata) error {
	user, err := actingUser(hc, req)
	if err != nil {
		return err
	}
	verifier := hc.Book().Verifier()
	if verifier == "" || req.Signer != verifier {
		return authorizationError(ErrNotVerifier, "signer %s is not the verifier", req.Signer)
	}
	verified := true
	if meta.IsVerified != nil {
		verified = *meta.IsVerified
	}
	next := user.Clone().(*models.User)
	next.IsVerified = verified
	hc.Put(next)
	return nil
}

// populate copies metadata fields onto the next version of a user.
func (h *userHandler) populate(hc *HandlerContext, req *Request, user *models.User, meta *userMetadata) error {
	if meta.Handle != nil && user.Handle == "" {
		lc, err := validateHandle(*meta.Handle, h.limits.Handle)
		if err != nil {
			return err
		}
		for _, other := range hc.Lookup(Ref{Kind: types.KindUser, Column: "handle_lc", Value: lc}) {
			if other.Key() != user.Key() {
				return validationError(ErrHandleTaken, "handle %s is taken", *meta.Handle)
			}
		}
		user.Handle = *meta.Handle
		user.HandleLC = lc
	}
	if meta.Bio != nil {
		if err := checkLength("bio", *meta.Bio, h.limits.Bio); err != nil {
			return err
		}
		user.Bio = *meta.Bio
	}
	if meta.Name != nil {
		user.Name = *meta.Name
	}
	if meta.Location != nil {
		user.Location = *meta.Location
	}
	if meta.ProfilePictureSizes != nil {
		user.ProfilePicture = *meta.ProfilePictureSizes
	} else if meta.ProfilePicture != nil {
		user.ProfilePicture = *meta.ProfilePicture
	}
	if meta.CoverPhotoSizes != nil {
		user.CoverPhoto = *meta.CoverPhotoSizes
	} else if meta.CoverPhoto != nil {
		user.CoverPhoto = *meta.CoverPhoto
	}
	if meta.ArtistPickTrackID != nil {
		row := hc.Get(types.KindTrack, models.IDKey(*meta.ArtistPickTrackID))
		if row == nil || row.Version().IsDelete || row.(*models.Track).OwnerID != user.UserID {
			return validationError(ErrInvalidField, "artist pick %d is not a track of user %d", *meta.ArtistPickTrackID, user.UserID)
		}
		pick := *meta.ArtistPickTrackID
		user.ArtistPickTrackID = &pick
	}
	if req.MetadataCID != "" {
		user.MetadataCID = req.MetadataCID
	}
	if req.Pending {
		hc.RequestMetadata(types.KindUser, user.Key(), req.MetadataCID)
	}
	return nil
}
