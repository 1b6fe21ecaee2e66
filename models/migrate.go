// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package models

import "gorm.io/gorm"

// VersionedModels returns one zero value of every versioned entity model.
func VersionedModels() []Row {
	return []Row{
		&User{},
		&Track{},
		&Playlist{},
		&TrackRoute{},
		&PlaylistRoute{},
		&Grant{},
		&DeveloperApp{},
		&Follow{},
		&Save{},
		&Repost{},
		&Subscription{},
		&Comment{},
		&NotificationSeen{},
		&CommentReaction{},
		&MutedUser{},
		&CommentNotificationSetting{},
	}
}

// AutoMigrate creates or updates every table emxd writes.
func AutoMigrate(db *gorm.DB) error {
	dst := []interface{}{
		&Block{},
		&RevertBlock{},
		&AuditLog{},
		&IndexingCheckpoint{},
		&PendingMetadata{},
		&Challenge{},
		&UserChallenge{},
		&ChallengeEvent{},
	}
	for _, m := range VersionedModels() {
		dst = append(dst, m)
	}
	return db.AutoMigrate(dst...)
}
