// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"sort"
	"time"

	"github.com/project-illium/emxd/types"
)

// Request is one decoded ManageEntity instruction positioned in its block.
type Request struct {
	Kind     types.EntityKind
	Action   types.Action
	EntityID int64
	UserID   int64
	Signer   string

	// Metadata is the resolved metadata JSON. It is nil when the
	// instruction carried none or when the fetch is still pending.
	Metadata    []byte
	MetadataCID string
	Pending     bool

	BlockNumber int64
	BlockHash   string
	BlockTime   time.Time
	TxHash      string
	TxIndex     uint
	LogIndex    uint
}

// Ref names rows a handler reads. Column is the entity key column unless
// the handler looks a row up by a secondary value such as a handle. When
// History is set superseded rows are returned as well.
type Ref struct {
	Kind    types.EntityKind
	Column  string
	Value   string
	History bool
}

// Handler validates and applies the requests of one entity kind.
type Handler interface {
	// Target returns the row the request acts on. Its version as seen by
	// the request is recorded in the audit log.
	Target(ws *WorkingSet, req *Request, meta any) (types.EntityKind, string)

	// Decode parses the request metadata into the handler's typed form.
	// Shapes the handler does not recognize are rejected.
	Decode(req *Request) (any, error)

	// Refs lists every row Apply may read.
	Refs(req *Request, meta any) []Ref

	// Apply checks the request against the working set and stages the
	// rows it produces on hc. A ValidationError rejects the request.
	Apply(hc *HandlerContext, req *Request, meta any) error
}

// DependentHandler is implemented by handlers which can only name some of
// their rows once the first round of rows has been loaded.
type DependentHandler interface {
	DependentRefs(ws *WorkingSet, req *Request, meta any) []Ref
}

// Key identifies one handler in the registry.
type Key struct {
	Kind   types.EntityKind
	Action types.Action
}

// Registry maps every supported (kind, action) pair to its handler.
type Registry struct {
	handlers map[Key]Handler
}

// NewRegistry returns the registry of every implemented handler.
func NewRegistry(limits Limits) *Registry {
	var (
		users     = &userHandler{limits: limits}
		tracks    = &trackHandler{limits: limits}
		playlists = &playlistHandler{limits: limits}
		grants    = &grantHandler{}
		apps      = &developerAppHandler{limits: limits}
		follows   = &followHandler{}
		subs      = &subscriptionHandler{}
		saves     = &saveHandler{}
		reposts   = &repostHandler{}
		comments  = &commentHandler{limits: limits}
		views     = &notificationHandler{}
		reactions = &reactionHandler{}
		mutes     = &muteUserHandler{}
		settings  = &commentNotificationHandler{}
	)
	return &Registry{handlers: map[Key]Handler{
		{types.KindUser, types.ActionCreate}: users,
		{types.KindUser, types.ActionUpdate}: users,
		{types.KindUser, types.ActionVerify}: users,

		{types.KindUser, types.ActionFollow}:      follows,
		{types.KindUser, types.ActionUnfollow}:    follows,
		{types.KindUser, types.ActionSubscribe}:   subs,
		{types.KindUser, types.ActionUnsubscribe}: subs,
		{types.KindUser, types.ActionMute}:        mutes,
		{types.KindUser, types.ActionUnmute}:      mutes,

		{types.KindTrack, types.ActionCreate}:   tracks,
		{types.KindTrack, types.ActionUpdate}:   tracks,
		{types.KindTrack, types.ActionDelete}:   tracks,
		{types.KindTrack, types.ActionSave}:     saves,
		{types.KindTrack, types.ActionUnsave}:   saves,
		{types.KindTrack, types.ActionRepost}:   reposts,
		{types.KindTrack, types.ActionUnrepost}: reposts,
		{types.KindTrack, types.ActionMute}:     settings,
		{types.KindTrack, types.ActionUnmute}:   settings,

		{types.KindPlaylist, types.ActionCreate}:   playlists,
		{types.KindPlaylist, types.ActionUpdate}:   playlists,
		{types.KindPlaylist, types.ActionDelete}:   playlists,
		{types.KindPlaylist, types.ActionSave}:     saves,
		{types.KindPlaylist, types.ActionUnsave}:   saves,
		{types.KindPlaylist, types.ActionRepost}:   reposts,
		{types.KindPlaylist, types.ActionUnrepost}: reposts,

		{types.KindGrant, types.ActionCreate}:  grants,
		{types.KindGrant, types.ActionDelete}:  grants,
		{types.KindGrant, types.ActionApprove}: grants,
		{types.KindGrant, types.ActionReject}:  grants,

		{types.KindDeveloperApp, types.ActionCreate}: apps,
		{types.KindDeveloperApp, types.ActionUpdate}: apps,
		{types.KindDeveloperApp, types.ActionDelete}: apps,

		{types.KindComment, types.ActionCreate}:  comments,
		{types.KindComment, types.ActionUpdate}:  comments,
		{types.KindComment, types.ActionDelete}:  comments,
		{types.KindComment, types.ActionReact}:   reactions,
		{types.KindComment, types.ActionUnreact}: reactions,
		{types.KindComment, types.ActionMute}:    settings,
		{types.KindComment, types.ActionUnmute}:  settings,

		{types.KindNotification, types.ActionView}: views,
	}}
}

// Lookup returns the handler for a kind and action.
func (r *Registry) Lookup(kind types.EntityKind, action types.Action) (Handler, bool) {
	h, ok := r.handlers[Key{Kind: kind, Action: action}]
	return h, ok
}

// Keys returns every registered pair sorted by kind then action.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Action < keys[j].Action
	})
	return keys
}
