// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

import (
	"time"

	"github.com/project-illium/emxd/types"
)

// Save and repost item types.
const (
	ItemTrack    = "track"
	ItemPlaylist = "playlist"
	ItemAlbum    = "album"
)

// Follow is a follower -> followee edge. Unfollow tombstones it.
type Follow struct {
	Versioned `gorm:"embedded"`

	FollowerUserID int64 `gorm:"column:follower_user_id;index;not null" json:"follower_user_id"`
	FolloweeUserID int64 `gorm:"column:followee_user_id;index;not null" json:"followee_user_id"`
}

func (Follow) TableName() string { return "follows" }
func (*Follow) Kind() types.EntityKind { return types.KindFollow }
func (f *Follow) Clone() Row { c := *f; return &c }

type Save struct {
	Versioned `gorm:"embedded"`

	UserID     int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	SaveItemID int64  `gorm:"column:save_item_id;index;not null" json:"save_item_id"`
	SaveType   string `gorm:"column:save_type;not null" json:"save_type"`

	IsSaveOfRepost bool `gorm:"column:is_save_of_repost;not null" json:"is_save_of_repost"`
}

func (Save) TableName() string { return "saves" }
func (*Save) Kind() types.EntityKind { return types.KindSave }
func (s *Save) Clone() Row { c := *s; return &c }

type Repost struct {
	Versioned `gorm:"embedded"`

	UserID       int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	RepostItemID int64  `gorm:"column:repost_item_id;index;not null" json:"repost_item_id"`
	RepostType   string `gorm:"column:repost_type;not null" json:"repost_type"`

	IsRepostOfRepost bool `gorm:"column:is_repost_of_repost;not null" json:"is_repost_of_repost"`
}

func (Repost) TableName() string { return "reposts" }
func (*Repost) Kind() types.EntityKind { return types.KindRepost }
func (r *Repost) Clone() Row { c := *r; return &c }

// Subscription subscribes SubscriberID to uploads by UserID.
type Subscription struct {
	Versioned `gorm:"embedded"`

	SubscriberID int64 `gorm:"column:subscriber_id;index;not null" json:"subscriber_id"`
	UserID       int64 `gorm:"column:user_id;index;not null" json:"user_id"`
}

func (Subscription) TableName() string { return "subscriptions" }
func (*Subscription) Kind() types.EntityKind { return types.KindSubscription }
func (s *Subscription) Clone() Row { c := *s; return &c }

// Comment is a comment on a track.
type Comment struct {
	Versioned `gorm:"embedded"`

	CommentID  int64  `gorm:"column:comment_id;index;not null" json:"comment_id"`
	UserID     int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	EntityID   int64  `gorm:"column:entity_id;index;not null" json:"entity_id"`
	EntityType string `gorm:"column:entity_type;not null" json:"entity_type"`
	Text       string `gorm:"column:text;type:text" json:"text"`
	TrackTime  *int   `gorm:"column:track_timestamp_s" json:"track_timestamp_s"`
	ParentID   *int64 `gorm:"column:parent_comment_id" json:"parent_comment_id"`
}

func (Comment) TableName() string { return "comments" }
func (*Comment) Kind() types.EntityKind { return types.KindComment }
func (c *Comment) Clone() Row { cp := *c; return &cp }

// NotificationSeen records when a user last viewed their notifications.
type NotificationSeen struct {
	Versioned `gorm:"embedded"`

	UserID int64     `gorm:"column:user_id;index;not null" json:"user_id"`
	SeenAt time.Time `gorm:"column:seen_at" json:"seen_at"`
}

func (NotificationSeen) TableName() string { return "notification_seen" }
func (*NotificationSeen) Kind() types.EntityKind { return types.KindNotificationSeen }
func (n *NotificationSeen) Clone() Row { c := *n; return &c }

// CommentReaction is a user's reaction to a comment. Unreact tombstones it.
type CommentReaction struct {
	Versioned `gorm:"embedded"`

	UserID    int64 `gorm:"column:user_id;index;not null" json:"user_id"`
	CommentID int64 `gorm:"column:comment_id;index;not null" json:"comment_id"`
}

func (CommentReaction) TableName() string { return "comment_reactions" }
func (*CommentReaction) Kind() types.EntityKind { return types.KindCommentReaction }
func (r *CommentReaction) Clone() Row { c := *r; return &c }

// MutedUser hides comments by MutedUserID from UserID.
type MutedUser struct {
	Versioned `gorm:"embedded"`

	UserID      int64 `gorm:"column:user_id;index;not null" json:"user_id"`
	MutedUserID int64 `gorm:"column:muted_user_id;index;not null" json:"muted_user_id"`
}

func (MutedUser) TableName() string { return "muted_users" }
func (*MutedUser) Kind() types.EntityKind { return types.KindMutedUser }
func (m *MutedUser) Clone() Row { c := *m; return &c }

// CommentNotificationSetting turns comment notifications on a track or a
// comment thread off for a user.
type CommentNotificationSetting struct {
	Versioned `gorm:"embedded"`

	UserID     int64  `gorm:"column:user_id;index;not null" json:"user_id"`
	EntityID   int64  `gorm:"column:entity_id;index;not null" json:"entity_id"`
	EntityType string `gorm:"column:entity_type;not null" json:"entity_type"`
	IsMuted    bool   `gorm:"column:is_muted;not null" json:"is_muted"`
}

func (CommentNotificationSetting) TableName() string { return "comment_notification_settings" }
func (*CommentNotificationSetting) Kind() types.EntityKind {
	return types.KindCommentNotificationSetting
}
func (c *CommentNotificationSetting) Clone() Row { cp := *c; return &cp }
