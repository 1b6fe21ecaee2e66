// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultUserIDOffset     = 3_000_000
	DefaultTrackIDOffset    = 2_000_000
	DefaultPlaylistIDOffset = 400_000

	DefaultBioLimit         = 250
	DefaultDescriptionLimit = 1000
	DefaultPlaylistTracks   = 5000
	DefaultHandleLimit      = 30
	DefaultCommentLimit     = 400
	DefaultAppNameLimit     = 100
)

// Limits are the id ranges and field sizes enforced by the handlers.
// Lengths are counted in characters.
type Limits struct {
	// Creates of ids below these offsets are rejected. Zero disables
	// the check.
	UserIDOffset     int64
	TrackIDOffset    int64
	PlaylistIDOffset int64

	Bio            int
	Description    int
	PlaylistTracks int
	Handle         int
	Comment        int
	AppName        int
}

// DefaultLimits returns the limits used on the production network.
func DefaultLimits() Limits {
	return Limits{
		UserIDOffset:     DefaultUserIDOffset,
		TrackIDOffset:    DefaultTrackIDOffset,
		PlaylistIDOffset: DefaultPlaylistIDOffset,
		Bio:              DefaultBioLimit,
		Description:      DefaultDescriptionLimit,
		PlaylistTracks:   DefaultPlaylistTracks,
		Handle:           DefaultHandleLimit,
		Comment:          DefaultCommentLimit,
		AppName:          DefaultAppNameLimit,
	}
}

func checkLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return validationError(ErrFieldLimit, "%s is %d characters, the limit is %d", field, n, max)
	}
	return nil
}

var genres = []string{
	"Electronic", "Rock", "Metal", "Alternative", "Hip-Hop/Rap", "Experimental",
	"Punk", "Folk", "Pop", "Ambient", "Soundtrack", "World", "Jazz", "Acoustic",
	"Funk", "R&B/Soul", "Devotional", "Classical", "Reggae", "Podcasts", "Country",
	"Spoken Word", "Comedy", "Blues", "Kids", "Audiobooks", "Latin", "Lo-Fi",
	"Hyperpop", "Dancehall", "Techno", "Trap", "House", "Tech House", "Deep House",
	"Disco", "Electro", "Jungle", "Progressive House", "Hardstyle", "Glitch Hop",
	"Trance", "Future Bass", "Future House", "Tropical House", "Downtempo",
	"Drum & Bass", "Dubstep", "Jersey Club", "Vaporwave", "Moombahton",
}

var moods = []string{
	"Peaceful", "Romantic", "Sentimental", "Tender", "Easygoing", "Yearning",
	"Sophisticated", "Sensual", "Cool", "Gritty", "Melancholy", "Serious",
	"Brooding", "Fiery", "Defiant", "Aggressive", "Rowdy", "Excited",
	"Energizing", "Empowering", "Stirring", "Upbeat", "Other",
}

var reservedHandles = []string{
	"admin", "api", "app", "audio", "blog", "dashboard", "explore", "favorites",
	"feed", "followers", "following", "help", "history", "legal", "library",
	"messages", "notifications", "oauth", "privacy", "search", "settings",
	"signin", "signup", "support", "terms", "trending", "upload", "wallet",
}

var (
	genreSet        = make(map[string]bool)
	reservedLowered = make(map[string]bool)
)

func init() {
	for _, g := range genres {
		genreSet[g] = true
		reservedLowered[strings.ToLower(g)] = true
	}
	for _, m := range moods {
		reservedLowered[strings.ToLower(m)] = true
	}
	for _, h := range reservedHandles {
		reservedLowered[h] = true
	}
}

var handleRegexp = regexp.MustCompile(`^[a-z0-9_.]+$`)

// validateHandle returns the lowercased handle if it may be claimed.
func validateHandle(handle string, max int) (string, error) {
	if handle == "" {
		return "", validationError(ErrInvalidField, "handle is empty")
	}
	lc := strings.ToLower(handle)
	if !handleRegexp.MatchString(lc) {
		return "", validationError(ErrInvalidField, "handle %s contains illegal characters", handle)
	}
	if len(lc) > max {
		return "", validationError(ErrFieldLimit, "handle %s is too long", handle)
	}
	if reservedLowered[lc] {
		return "", validationError(ErrInvalidField, "handle %s is reserved", handle)
	}
	return lc, nil
}

var (
	slugStrip  = regexp.MustCompile("[!%#$&'()*+’,/:;=?@\\[\\]\x00^.{}\"~]")
	slugSpace  = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// slugify converts a title into the slug part of a route. A title made of
// nothing but stripped characters falls back to the entity id.
func slugify(title string, id int64) string {
	s := norm.NFC.String(strings.ToValidUTF8(title, ""))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if s == "" {
		return strconv.FormatInt(id, 10)
	}
	return s
}
