// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"fmt"
)

// EntityKind is the `_entityType` field of a ManageEntity instruction.
type EntityKind string

const (
	KindUser             EntityKind = "User"
	KindTrack            EntityKind = "Track"
	KindPlaylist         EntityKind = "Playlist"
	KindTrackRoute       EntityKind = "TrackRoute"
	KindPlaylistRoute    EntityKind = "PlaylistRoute"
	KindGrant            EntityKind = "Grant"
	KindDeveloperApp     EntityKind = "DeveloperApp"
	KindFollow           EntityKind = "Follow"
	KindSave             EntityKind = "Save"
	KindRepost           EntityKind = "Repost"
	KindSubscription     EntityKind = "Subscription"
	KindComment          EntityKind = "Comment"
	KindNotificationSeen EntityKind = "NotificationSeen"
	KindCommentReaction  EntityKind = "CommentReaction"
	KindMutedUser        EntityKind = "MutedUser"

	// KindCommentNotificationSetting is written by Mute and Unmute of a
	// track or a comment.
	KindCommentNotificationSetting EntityKind = "CommentNotificationSetting"

	// KindNotification only appears on chain. A View of it writes a
	// NotificationSeen row.
	KindNotification EntityKind = "Notification"
)

// Kinds that appear on chain. Routes are derived by the track and
// playlist handlers and are never named by an instruction. Social edges
// arrive as actions on the User, Track and Playlist kinds.
var chainKinds = map[string]EntityKind{
	string(KindUser):         KindUser,
	string(KindTrack):        KindTrack,
	string(KindPlaylist):     KindPlaylist,
	string(KindGrant):        KindGrant,
	string(KindDeveloperApp): KindDeveloperApp,
	string(KindComment):      KindComment,
	string(KindNotification): KindNotification,
}

// ParseEntityKind maps an on-chain entity type string to an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	if k, ok := chainKinds[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Action is the `_action` field of a ManageEntity instruction.
type Action string

const (
	ActionCreate      Action = "Create"
	ActionUpdate      Action = "Update"
	ActionDelete      Action = "Delete"
	ActionVerify      Action = "Verify"
	ActionFollow      Action = "Follow"
	ActionUnfollow    Action = "Unfollow"
	ActionSave        Action = "Save"
	ActionUnsave      Action = "Unsave"
	ActionRepost      Action = "Repost"
	ActionUnrepost    Action = "Unrepost"
	ActionSubscribe   Action = "Subscribe"
	ActionUnsubscribe Action = "Unsubscribe"
	ActionView        Action = "View"
	ActionApprove     Action = "Approve"
	ActionReject      Action = "Reject"
	ActionReact       Action = "React"
	ActionUnreact     Action = "Unreact"
	ActionMute        Action = "Mute"
	ActionUnmute      Action = "Unmute"
)

var actions = map[string]Action{
	string(ActionCreate):      ActionCreate,
	string(ActionUpdate):      ActionUpdate,
	string(ActionDelete):      ActionDelete,
	string(ActionVerify):      ActionVerify,
	string(ActionFollow):      ActionFollow,
	string(ActionUnfollow):    ActionUnfollow,
	string(ActionSave):        ActionSave,
	string(ActionUnsave):      ActionUnsave,
	string(ActionRepost):      ActionRepost,
	string(ActionUnrepost):    ActionUnrepost,
	string(ActionSubscribe):   ActionSubscribe,
	string(ActionUnsubscribe): ActionUnsubscribe,
	string(ActionView):        ActionView,
	string(ActionApprove):     ActionApprove,
	string(ActionReject):      ActionReject,
	string(ActionReact):       ActionReact,
	string(ActionUnreact):     ActionUnreact,
	string(ActionMute):        ActionMute,
	string(ActionUnmute):      ActionUnmute,
}

// ParseAction maps an on-chain action string to an Action.
func ParseAction(s string) (Action, error) {
	if a, ok := actions[s]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
