// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/project-illium/emxd/models"
	"github.com/project-illium/emxd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserHandles(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"Alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 3, 3, wallet3, `{"handle":"trending"}`).
		add(types.KindUser, types.ActionCreate, 4, 4, wallet1, `{"handle":"other"}`).
		add(types.KindUser, types.ActionCreate, 5, 6, wallet3, `{"handle":"mismatch"}`).
		add(types.KindUser, types.ActionUpdate, 1, 1, wallet1, `{"handle":"renamed","bio":"hello"}`).
		build())

	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 1))

	alice := currentUser(t, s, 1)
	assert.Equal(t, "Alice", alice.Handle)
	assert.Equal(t, "alice", alice.HandleLC)
	assert.Equal(t, "hello", alice.Bio)
	assert.Equal(t, wallet1, alice.Wallet)
}

func TestUserUpdateCannotSelfVerify(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice","is_verified":true}`).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionUpdate, 1, 1, wallet1, `{"is_verified":true}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 1))
	assert.False(t, currentUser(t, s, 1).IsVerified)
}

func TestArtistPickMustBeOwnTrack(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Mine"}`).
		add(types.KindTrack, types.ActionCreate, 200, 2, wallet2, `{"title":"Theirs"}`).
		add(types.KindUser, types.ActionUpdate, 1, 1, wallet1, `{"artist_pick_track_id":200}`).
		add(types.KindUser, types.ActionUpdate, 1, 1, wallet1, `{"artist_pick_track_id":100}`).
		build())

	outcomes := auditOutcomes(t, s, 1)
	assert.Equal(t, models.OutcomeValidationError, outcomes[4])
	assert.Equal(t, models.OutcomeOK, outcomes[5])
	pick := currentUser(t, s, 1).ArtistPickTrackID
	require.NotNil(t, pick)
	assert.Equal(t, int64(100), *pick)
}

func TestTrackLifecycle(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song","genre":"Electronic"}`).
		add(types.KindTrack, types.ActionCreate, 101, 1, wallet1, `{"title":"Bad","genre":"Polka"}`).
		add(types.KindTrack, types.ActionCreate, 102, 1, wallet1, `{"title":"Wrong owner","owner_id":2}`).
		add(types.KindTrack, types.ActionCreate, 103, 1, wallet1, "").
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Again"}`).
		add(types.KindTrack, types.ActionUpdate, 100, 2, wallet2, `{"title":"Not yours"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 1))

	mustProcess(t, em, newBlock(2).
		add(types.KindTrack, types.ActionUpdate, 100, 1, wallet1, `{"title":"Song Two"}`).
		add(types.KindTrack, types.ActionDelete, 100, 1, wallet1, "").
		add(types.KindTrack, types.ActionUpdate, 100, 1, wallet1, `{"title":"Ghost"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 2))

	track := currentTrack(t, s, 100)
	assert.True(t, track.IsDelete)
	assert.Equal(t, "Song Two", track.Title)
	assert.Equal(t, "Electronic", track.Genre)

	// The old route keeps resolving after a rename.
	routes := allRows(t, s, types.KindTrackRoute)
	require.Len(t, routes, 2)
	assert.Equal(t, "song", routes[0].(*models.TrackRoute).Slug)
	assert.False(t, routes[0].Version().IsCurrent)
	assert.Equal(t, "song-two", routes[1].(*models.TrackRoute).Slug)
	assert.True(t, routes[1].Version().IsCurrent)
}

func TestPlaylists(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song"}`).
		add(types.KindPlaylist, types.ActionCreate, 50, 1, wallet1, `{"playlist_name":"Mix","playlist_contents":{"track_ids":[{"track":100,"time":0}]}}`).
		add(types.KindPlaylist, types.ActionCreate, 51, 1, wallet1, `{"playlist_name":"Empty"}`).
		add(types.KindPlaylist, types.ActionUpdate, 50, 1, wallet1, `{"is_private":true}`).
		add(types.KindPlaylist, types.ActionCreate, 52, 1, wallet1, `{"playlist_name":"Secret","is_private":true,"playlist_contents":{"track_ids":[]}}`).
		add(types.KindPlaylist, types.ActionUpdate, 52, 1, wallet1, `{"is_private":false}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 1))

	rows, err := s.LoadCurrent(context.Background(), types.KindPlaylist, "entity_key", []string{"50"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var contents playlistContents
	require.NoError(t, json.Unmarshal([]byte(rows[0].(*models.Playlist).Contents), &contents))
	require.Len(t, contents.TrackIDs, 1)
	assert.Equal(t, int64(1_700_000_002), contents.TrackIDs[0].Time)
}

func TestPlaylistContentsMustBeLiveTracks(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Kept"}`).
		add(types.KindTrack, types.ActionCreate, 101, 1, wallet1, `{"title":"Gone"}`).
		add(types.KindTrack, types.ActionDelete, 101, 1, wallet1, "").
		build())

	mustProcess(t, em, newBlock(2).
		add(types.KindPlaylist, types.ActionCreate, 50, 1, wallet1, `{"playlist_name":"Missing","playlist_contents":{"track_ids":[{"track":100,"time":1},{"track":999,"time":1}]}}`).
		add(types.KindPlaylist, types.ActionCreate, 51, 1, wallet1, `{"playlist_name":"Deleted","playlist_contents":{"track_ids":[{"track":101,"time":1}]}}`).
		add(types.KindPlaylist, types.ActionCreate, 52, 1, wallet1, `{"playlist_name":"Fine","playlist_contents":{"track_ids":[{"track":100,"time":1}]}}`).
		add(types.KindPlaylist, types.ActionUpdate, 52, 1, wallet1, `{"playlist_contents":{"track_ids":[{"track":101,"time":1}]}}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 2))

	rows := currentRows(t, s, types.KindPlaylist)
	require.Len(t, rows, 1)
	var contents playlistContents
	require.NoError(t, json.Unmarshal([]byte(rows[0].(*models.Playlist).Contents), &contents))
	require.Len(t, contents.TrackIDs, 1)
	assert.Equal(t, int64(100), contents.TrackIDs[0].Track)
}

func TestSavesAndReposts(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song"}`).
		add(types.KindPlaylist, types.ActionCreate, 50, 1, wallet1, `{"playlist_name":"LP","is_album":true,"playlist_contents":{"track_ids":[]}}`).
		add(types.KindTrack, types.ActionSave, 100, 2, wallet2, "").
		add(types.KindTrack, types.ActionSave, 100, 2, wallet2, "").
		add(types.KindPlaylist, types.ActionRepost, 50, 2, wallet2, `{"is_repost_of_repost":true}`).
		add(types.KindTrack, types.ActionUnrepost, 100, 2, wallet2, "").
		add(types.KindTrack, types.ActionSave, 999, 2, wallet2, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 1))

	saves := currentRows(t, s, types.KindSave)
	require.Len(t, saves, 1)
	assert.Equal(t, models.ItemTrack, saves[0].(*models.Save).SaveType)

	reposts := currentRows(t, s, types.KindRepost)
	require.Len(t, reposts, 1)
	repost := reposts[0].(*models.Repost)
	assert.Equal(t, models.ItemAlbum, repost.RepostType)
	assert.True(t, repost.IsRepostOfRepost)

	mustProcess(t, em, newBlock(2).
		add(types.KindTrack, types.ActionUnsave, 100, 2, wallet2, "").
		add(types.KindTrack, types.ActionSave, 100, 2, wallet2, "").
		build())
	saves = currentRows(t, s, types.KindSave)
	require.Len(t, saves, 1)
	assert.False(t, saves[0].Version().IsDelete)
	assert.Len(t, allRows(t, s, types.KindSave), 3)
}

func TestFollowsAndSubscriptions(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindUser, types.ActionFollow, 2, 1, wallet1, "").
		add(types.KindUser, types.ActionFollow, 1, 1, wallet1, "").
		add(types.KindUser, types.ActionFollow, 3, 1, wallet1, "").
		add(types.KindUser, types.ActionSubscribe, 2, 1, wallet1, "").
		add(types.KindUser, types.ActionUnsubscribe, 2, 1, wallet1, "").
		add(types.KindUser, types.ActionUnsubscribe, 2, 1, wallet1, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 1))

	follows := currentRows(t, s, types.KindFollow)
	require.Len(t, follows, 1)
	f := follows[0].(*models.Follow)
	assert.Equal(t, int64(1), f.FollowerUserID)
	assert.Equal(t, int64(2), f.FolloweeUserID)

	subs := currentRows(t, s, types.KindSubscription)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Version().IsDelete)
}

func TestComments(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindUser, types.ActionCreate, 3, 3, wallet3, `{"handle":"carol"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song"}`).
		build())

	mustProcess(t, em, newBlock(2).
		add(types.KindComment, types.ActionCreate, 7, 2, wallet2, `{"entity_id":100,"entity_type":"Track","body":"great"}`).
		add(types.KindComment, types.ActionCreate, 8, 3, wallet3, `{"entity_id":100,"body":"reply","parent_comment_id":7}`).
		add(types.KindComment, types.ActionCreate, 9, 3, wallet3, `{"entity_id":100,"body":"   "}`).
		add(types.KindComment, types.ActionCreate, 10, 3, wallet3, `{"entity_id":100,"entity_type":"Playlist","body":"x"}`).
		add(types.KindComment, types.ActionUpdate, 7, 3, wallet3, `{"body":"edited by someone else"}`).
		add(types.KindComment, types.ActionUpdate, 7, 2, wallet2, `{"body":"edited"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeDecodeError,
		models.OutcomeValidationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 2))

	// The track owner may delete comments left on the track.
	mustProcess(t, em, newBlock(3).
		add(types.KindComment, types.ActionDelete, 8, 2, wallet2, "").
		add(types.KindComment, types.ActionDelete, 8, 1, wallet1, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeValidationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 3))

	comments := currentRows(t, s, types.KindComment)
	require.Len(t, comments, 2)
	assert.Equal(t, "edited", comments[0].(*models.Comment).Text)
	assert.True(t, comments[1].Version().IsDelete)

	// A comment created in the same block can be removed by the track owner.
	mustProcess(t, em, newBlock(4).
		add(types.KindComment, types.ActionCreate, 11, 3, wallet3, `{"entity_id":100,"body":"spam"}`).
		add(types.KindComment, types.ActionDelete, 11, 2, wallet2, "").
		add(types.KindComment, types.ActionDelete, 11, 1, wallet1, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 4))
}

func TestDeveloperApps(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindDeveloperApp, types.ActionCreate, 0, 1, wallet1, `{"address":"`+appAddr+`","name":"App"}`).
		add(types.KindDeveloperApp, types.ActionCreate, 0, 1, wallet1, `{"address":"`+wallet2+`","name":"Squat"}`).
		add(types.KindDeveloperApp, types.ActionCreate, 0, 1, wallet1, `{"address":"0xb000000000000000000000000000000000000bbb"}`).
		add(types.KindDeveloperApp, types.ActionDelete, 0, 2, wallet2, `{"address":"`+appAddr+`"}`).
		add(types.KindUser, types.ActionCreate, 5, 5, appAddr, `{"handle":"appuser"}`).
		add(types.KindDeveloperApp, types.ActionDelete, 0, 1, wallet1, `{"address":"`+appAddr+`"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeAuthorizationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 1))

	apps := currentRows(t, s, types.KindDeveloperApp)
	require.Len(t, apps, 1)
	assert.True(t, apps[0].Version().IsDelete)
}

func TestDeveloperAppUpdate(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindDeveloperApp, types.ActionCreate, 0, 1, wallet1, `{"address":"`+appAddr+`","name":"App","description":"first"}`).
		build())

	mustProcess(t, em, newBlock(2).
		add(types.KindDeveloperApp, types.ActionUpdate, 0, 2, wallet2, `{"address":"`+appAddr+`","name":"Stolen"}`).
		add(types.KindDeveloperApp, types.ActionUpdate, 0, 1, wallet1, `{"address":"`+appAddr+`","name":""}`).
		add(types.KindDeveloperApp, types.ActionUpdate, 0, 1, wallet1, `{"address":"0xb000000000000000000000000000000000000bbb","name":"Nope"}`).
		add(types.KindDeveloperApp, types.ActionUpdate, 0, 1, wallet1, `{"address":"`+appAddr+`","name":"Renamed"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
	}, auditOutcomes(t, s, 2))

	mustProcess(t, em, newBlock(3).
		add(types.KindDeveloperApp, types.ActionDelete, 0, 1, wallet1, `{"address":"`+appAddr+`"}`).
		add(types.KindDeveloperApp, types.ActionUpdate, 0, 1, wallet1, `{"address":"`+appAddr+`","name":"Ghost"}`).
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 3))

	apps := currentRows(t, s, types.KindDeveloperApp)
	require.Len(t, apps, 1)
	app := apps[0].(*models.DeveloperApp)
	assert.Equal(t, "Renamed", app.Name)
	assert.Equal(t, "first", app.Description)
	assert.True(t, app.IsDelete)
}

func TestCommentReactions(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song"}`).
		add(types.KindComment, types.ActionCreate, 7, 1, wallet1, `{"entity_id":100,"body":"hi"}`).
		add(types.KindComment, types.ActionCreate, 8, 1, wallet1, `{"entity_id":100,"body":"bye"}`).
		add(types.KindComment, types.ActionDelete, 8, 1, wallet1, "").
		build())

	mustProcess(t, em, newBlock(2).
		add(types.KindComment, types.ActionReact, 7, 2, wallet2, "").
		add(types.KindComment, types.ActionReact, 7, 2, wallet2, "").
		add(types.KindComment, types.ActionReact, 8, 2, wallet2, "").
		add(types.KindComment, types.ActionReact, 9, 2, wallet2, "").
		add(types.KindComment, types.ActionUnreact, 7, 1, wallet1, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 2))

	mustProcess(t, em, newBlock(3).
		add(types.KindComment, types.ActionUnreact, 7, 2, wallet2, "").
		build())

	reactions := currentRows(t, s, types.KindCommentReaction)
	require.Len(t, reactions, 1)
	r := reactions[0].(*models.CommentReaction)
	assert.Equal(t, int64(2), r.UserID)
	assert.Equal(t, int64(7), r.CommentID)
	assert.True(t, r.IsDelete)
	assert.Len(t, allRows(t, s, types.KindCommentReaction), 2)
}

func TestMutes(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindUser, types.ActionCreate, 2, 2, wallet2, `{"handle":"bob"}`).
		add(types.KindTrack, types.ActionCreate, 100, 1, wallet1, `{"title":"Song"}`).
		add(types.KindComment, types.ActionCreate, 7, 2, wallet2, `{"entity_id":100,"body":"hi"}`).
		add(types.KindUser, types.ActionMute, 2, 1, wallet1, "").
		add(types.KindUser, types.ActionMute, 2, 1, wallet1, "").
		add(types.KindUser, types.ActionMute, 1, 1, wallet1, "").
		add(types.KindUser, types.ActionUnmute, 1, 2, wallet2, "").
		add(types.KindTrack, types.ActionMute, 100, 1, wallet1, "").
		add(types.KindTrack, types.ActionMute, 100, 1, wallet1, "").
		add(types.KindComment, types.ActionMute, 7, 2, wallet2, "").
		add(types.KindTrack, types.ActionMute, 999, 1, wallet1, "").
		build())
	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeValidationError,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeValidationError,
	}, auditOutcomes(t, s, 1))

	mustProcess(t, em, newBlock(2).
		add(types.KindUser, types.ActionUnmute, 2, 1, wallet1, "").
		add(types.KindTrack, types.ActionUnmute, 100, 1, wallet1, "").
		build())

	muted := currentRows(t, s, types.KindMutedUser)
	require.Len(t, muted, 1)
	m := muted[0].(*models.MutedUser)
	assert.Equal(t, int64(1), m.UserID)
	assert.Equal(t, int64(2), m.MutedUserID)
	assert.True(t, m.IsDelete)

	settings := currentRows(t, s, types.KindCommentNotificationSetting)
	require.Len(t, settings, 2)
	muteds := make(map[string]bool)
	for _, row := range settings {
		c := row.(*models.CommentNotificationSetting)
		muteds[c.EntityType] = c.IsMuted
	}
	assert.Equal(t, map[string]bool{"Track": false, "Comment": true}, muteds)
}

func TestNotificationView(t *testing.T) {
	em, s := newTestManager(t)

	mustProcess(t, em, newBlock(1).
		add(types.KindUser, types.ActionCreate, 1, 1, wallet1, `{"handle":"alice"}`).
		add(types.KindNotification, types.ActionView, 0, 1, wallet1, "").
		add(types.KindNotification, types.ActionView, 0, 1, wallet2, "").
		build())
	mustProcess(t, em, newBlock(2).
		add(types.KindNotification, types.ActionView, 0, 1, wallet1, "").
		build())

	assert.Equal(t, []string{
		models.OutcomeOK,
		models.OutcomeOK,
		models.OutcomeAuthorizationError,
	}, auditOutcomes(t, s, 1))

	seen := currentRows(t, s, types.KindNotificationSeen)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(1_700_000_004), seen[0].(*models.NotificationSeen).SeenAt.Unix())
	assert.Len(t, allRows(t, s, types.KindNotificationSeen), 2)
}
