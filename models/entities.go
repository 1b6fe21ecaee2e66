// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/project-illium/emxd/types"
)

// IDKey is the entity key of kinds identified by a single integer id.
func IDKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// PairKey is the entity key of edges between two integer ids.
func PairKey(a, b int64) string {
	return fmt.Sprintf("%d:%d", a, b)
}

// GrantKey is the entity key of a grant from a user to an address.
func GrantKey(userID int64, grantee string) string {
	return fmt.Sprintf("%d:%s", userID, types.NormalizeAddress(grantee))
}

// ItemKey is the entity key of a save or repost of an item.
func ItemKey(userID int64, itemType string, itemID int64) string {
	return fmt.Sprintf("%d:%s:%d", userID, itemType, itemID)
}

// User is a platform account.
type User struct {
	Versioned `gorm:"embedded"`

	UserID            int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	Handle            string `gorm:"column:handle" json:"handle"`
	HandleLC          string `gorm:"column:handle_lc;index" json:"handle_lc"`
	Wallet            string `gorm:"column:wallet;index" json:"wallet"`
	Name              string `gorm:"column:name" json:"name"`
	Bio               string `gorm:"column:bio" json:"bio"`
	Location          string `gorm:"column:location" json:"location"`
	ProfilePicture    string `gorm:"column:profile_picture" json:"profile_picture"`
	CoverPhoto        string `gorm:"column:cover_photo" json:"cover_photo"`
	ArtistPickTrackID *int64 `gorm:"column:artist_pick_track_id" json:"artist_pick_track_id"`
	IsVerified        bool   `gorm:"column:is_verified;not null" json:"is_verified"`
	MetadataCID       string `gorm:"column:metadata_multihash" json:"metadata_multihash"`
}

func (User) TableName() string { return "users" }
func (*User) Kind() types.EntityKind { return types.KindUser }
func (u *User) Clone() Row { c := *u; return &c }
func (u *User) IndexValue(column string) (string, bool) {
	switch column {
	case "handle_lc":
		return u.HandleLC, u.HandleLC != ""
	case "wallet":
		return u.Wallet, u.Wallet != ""
	}
	return "", false
}

func (u *User) Complete() error {
	if u.Wallet == "" {
		return errors.New("user has no wallet")
	}
	return nil
}

// Track is an uploaded track.
type Track struct {
	Versioned `gorm:"embedded"`

	TrackID     int64  `gorm:"column:track_id;index;not null" json:"track_id"`
	OwnerID     int64  `gorm:"column:owner_id;index;not null" json:"owner_id"`
	Title       string `gorm:"column:title" json:"title"`
	Genre       string `gorm:"column:genre" json:"genre"`
	Mood        string `gorm:"column:mood" json:"mood"`
	Tags        string `gorm:"column:tags" json:"tags"`
	Description string `gorm:"column:description" json:"description"`
	IsUnlisted  bool   `gorm:"column:is_unlisted;not null" json:"is_unlisted"`
	MetadataCID string `gorm:"column:metadata_multihash" json:"metadata_multihash"`
}

func (Track) TableName() string { return "tracks" }
func (*Track) Kind() types.EntityKind { return types.KindTrack }
func (t *Track) Clone() Row { c := *t; return &c }

func (t *Track) Complete() error {
	if t.OwnerID == 0 {
		return errors.New("track has no owner")
	}
	return nil
}

// Playlist is a playlist or album.
type Playlist struct {
	Versioned `gorm:"embedded"`

	PlaylistID  int64  `gorm:"column:playlist_id;index;not null" json:"playlist_id"`
	OwnerID     int64  `gorm:"column:playlist_owner_id;index;not null" json:"playlist_owner_id"`
	Name        string `gorm:"column:playlist_name" json:"playlist_name"`
	Description string `gorm:"column:description" json:"description"`
	IsAlbum     bool   `gorm:"column:is_album;not null" json:"is_album"`
	IsPrivate   bool   `gorm:"column:is_private;not null" json:"is_private"`
	// Contents is the JSON encoded list of {track, time} entries.
	Contents    string `gorm:"column:playlist_contents;type:text" json:"playlist_contents"`
	MetadataCID string `gorm:"column:metadata_multihash" json:"metadata_multihash"`
}

func (Playlist) TableName() string { return "playlists" }
func (*Playlist) Kind() types.EntityKind { return types.KindPlaylist }
func (p *Playlist) Clone() Row { c := *p; return &c }

func (p *Playlist) Complete() error {
	if p.OwnerID == 0 {
		return errors.New("playlist has no owner")
	}
	return nil
}

// Route maps a human readable slug to a track or playlist. Superseded
// routes keep is_current = false so that old links still resolve.
type Route struct {
	Versioned `gorm:"embedded"`

	OwnerID     int64  `gorm:"column:owner_id;index;not null" json:"owner_id"`
	TargetID    int64  `gorm:"column:target_id;not null" json:"target_id"`
	Slug        string `gorm:"column:slug;not null" json:"slug"`
	TitleSlug   string `gorm:"column:title_slug;index;not null" json:"title_slug"`
	CollisionID int    `gorm:"column:collision_id;not null" json:"collision_id"`
}

func (r *Route) IndexValue(column string) (string, bool) {
	if column == "title_slug" {
		return r.TitleSlug, true
	}
	return "", false
}

// TrackRoute is a route to a track.
type TrackRoute struct {
	Route `gorm:"embedded"`
}

func (TrackRoute) TableName() string { return "track_routes" }
func (*TrackRoute) Kind() types.EntityKind { return types.KindTrackRoute }
func (r *TrackRoute) Clone() Row { c := *r; return &c }

// PlaylistRoute is a route to a playlist.
type PlaylistRoute struct {
	Route `gorm:"embedded"`
}

func (PlaylistRoute) TableName() string { return "playlist_routes" }
func (*PlaylistRoute) Kind() types.EntityKind { return types.KindPlaylistRoute }
func (r *PlaylistRoute) Clone() Row { c := *r; return &c }

// Grant authorizes GranteeAddress to sign for UserID. Grants to developer
// apps are approved on creation. Grants to other users start with a nil
// IsApproved and wait for the grantee.
type Grant struct {
	Versioned `gorm:"embedded"`

	UserID         int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	GranteeAddress string `gorm:"column:grantee_address;index;not null" json:"grantee_address"`
	IsApproved     *bool  `gorm:"column:is_approved" json:"is_approved"`
	IsRevoked      bool   `gorm:"column:is_revoked;not null" json:"is_revoked"`
}

func (Grant) TableName() string { return "grants" }
func (*Grant) Kind() types.EntityKind { return types.KindGrant }
func (g *Grant) Clone() Row { c := *g; return &c }
func (g *Grant) IndexValue(column string) (string, bool) {
	if column == "user_id" {
		return IDKey(g.UserID), true
	}
	return "", false
}

// Active reports whether the grant currently authorizes its grantee.
func (g *Grant) Active() bool {
	return !g.IsDelete && !g.IsRevoked && g.IsApproved != nil && *g.IsApproved
}

// DeveloperApp is a third party application identified by its signing
// address.
type DeveloperApp struct {
	Versioned `gorm:"embedded"`

	Address     string `gorm:"column:address;index;not null" json:"address"`
	UserID      int64  `gorm:"column:user_id;index" json:"user_id"`
	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description" json:"description"`
}

func (DeveloperApp) TableName() string { return "developer_apps" }
func (*DeveloperApp) Kind() types.EntityKind { return types.KindDeveloperApp }
func (d *DeveloperApp) Clone() Row { c := *d; return &c }
