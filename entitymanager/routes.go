// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"fmt"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
)

func routeRefs(kind types.EntityKind, targetID int64, title *string) []Ref {
	refs := []Ref{keyRef(kind, models.IDKey(targetID))}
	if title != nil {
		refs = append(refs, Ref{Kind: kind, Column: "title_slug", Value: slugify(*title, targetID), History: true})
	}
	return refs
}

// updateRoute stages a new route for a renamed track or playlist. Routes
// with the same title slug from the same owner are told apart by an
// increasing collision id.
func updateRoute(hc *HandlerContext, kind types.EntityKind, ownerID, targetID int64, oldTitle string, newTitle *string) {
	if newTitle == nil || (*newTitle == oldTitle && oldTitle != "") {
		return
	}
	titleSlug := slugify(*newTitle, targetID)

	key := models.IDKey(targetID)
	if prev := hc.Get(kind, key); prev != nil && routeOf(prev).TitleSlug == titleSlug {
		return
	}

	collision := -1
	for _, row := range hc.Lookup(Ref{Kind: kind, Column: "title_slug", Value: titleSlug, History: true}) {
		r := routeOf(row)
		if r.OwnerID == ownerID && r.CollisionID > collision {
			collision = r.CollisionID
		}
	}
	slug := titleSlug
	if collision >= 0 {
		collision++
		slug = fmt.Sprintf("%s-%d", titleSlug, collision)
	} else {
		collision = 0
	}

	route := models.Route{
		OwnerID:     ownerID,
		TargetID:    targetID,
		Slug:        slug,
		TitleSlug:   titleSlug,
		CollisionID: collision,
	}
	route.EntityKey = key
	if kind == types.KindTrackRoute {
		hc.Put(&models.TrackRoute{Route: route})
	} else {
		hc.Put(&models.PlaylistRoute{Route: route})
	}
}

func routeOf(row models.Row) *models.Route {
	switch r := row.(type) {
	case *models.TrackRoute:
		return &r.Route
	case *models.PlaylistRoute:
		return &r.Route
	}
	panic(fmt.Sprintf("%s is not a route", row.Kind()))
}
