// Package profile provides the application-level user record keyed by
// identity id, plus the partial-edit and reconcile-merge machinery used by
// the session manager's optimistic updates.
package profile

import (
	"strings"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
)

// Visibility values accepted for Settings.DefaultVisibility.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Settings holds structured per-user preferences.
type Settings struct {
	EmailNotifications bool
	PushNotifications  bool
	DefaultVisibility  string
	Theme              string
	Language           string
}

// DefaultSettings are applied when a profile is first created.
func DefaultSettings() Settings {
	return Settings{
		EmailNotifications: true,
		DefaultVisibility:  VisibilityPublic,
		Theme:              "system",
		Language:           "en",
	}
}

// Profile is the durable user record. It exists once an identity has
// completed one successful sign-in and is never hard-deleted.
type Profile struct {
	ID          string
	DisplayName string
	Bio         string
	Category    string
	Location    string
	Website     string
	Social      map[string]string
	AvatarURL   string
	CoverURL    string
	Settings    Settings
	Exhibitions []string
	Artworks    []string
	Bookmarks   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a profile from an identity's known fields with empty lists.
func New(from identity.Identity, now func() time.Time) Profile {
	if now == nil {
		now = time.Now
	}
	createdAt := now().UTC()
	return Profile{
		ID:          from.ID,
		DisplayName: from.DisplayName,
		AvatarURL:   from.PhotoURL,
		Social:      map[string]string{},
		Settings:    DefaultSettings(),
		Exhibitions: []string{},
		Artworks:    []string{},
		Bookmarks:   []string{},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// Field names one editable profile field, used to tag optimistic edits.
type Field string

const (
	FieldDisplayName Field = "display_name"
	FieldBio         Field = "bio"
	FieldCategory    Field = "category"
	FieldLocation    Field = "location"
	FieldWebsite     Field = "website"
	FieldSocial      Field = "social"
	FieldAvatarURL   Field = "avatar_url"
	FieldCoverURL    Field = "cover_url"
	FieldSettings    Field = "settings"
	FieldBookmarks   Field = "bookmarks"
)

// Edit is a partial profile mutation; nil fields are untouched.
type Edit struct {
	DisplayName *string
	Bio         *string
	Category    *string
	Location    *string
	Website     *string
	Social      map[string]string
	AvatarURL   *string
	CoverURL    *string
	Settings    *Settings
	Bookmarks   []string
}

// Fields returns the fields this edit touches.
func (e Edit) Fields() []Field {
	var fields []Field
	if e.DisplayName != nil {
		fields = append(fields, FieldDisplayName)
	}
	if e.Bio != nil {
		fields = append(fields, FieldBio)
	}
	if e.Category != nil {
		fields = append(fields, FieldCategory)
	}
	if e.Location != nil {
		fields = append(fields, FieldLocation)
	}
	if e.Website != nil {
		fields = append(fields, FieldWebsite)
	}
	if e.Social != nil {
		fields = append(fields, FieldSocial)
	}
	if e.AvatarURL != nil {
		fields = append(fields, FieldAvatarURL)
	}
	if e.CoverURL != nil {
		fields = append(fields, FieldCoverURL)
	}
	if e.Settings != nil {
		fields = append(fields, FieldSettings)
	}
	if e.Bookmarks != nil {
		fields = append(fields, FieldBookmarks)
	}
	return fields
}

// IsEmpty reports whether the edit touches nothing.
func (e Edit) IsEmpty() bool {
	return len(e.Fields()) == 0
}

// TouchesIdentityMirror reports whether the edit changes fields mirrored to
// the identity provider (display name, avatar).
func (e Edit) TouchesIdentityMirror() bool {
	return e.DisplayName != nil || e.AvatarURL != nil
}

// Apply returns a copy of base with the edit's non-nil fields merged in.
func Apply(base Profile, edit Edit, now time.Time) Profile {
	merged := clone(base)
	if edit.DisplayName != nil {
		merged.DisplayName = strings.TrimSpace(*edit.DisplayName)
	}
	if edit.Bio != nil {
		merged.Bio = *edit.Bio
	}
	if edit.Category != nil {
		merged.Category = strings.TrimSpace(*edit.Category)
	}
	if edit.Location != nil {
		merged.Location = strings.TrimSpace(*edit.Location)
	}
	if edit.Website != nil {
		merged.Website = strings.TrimSpace(*edit.Website)
	}
	if edit.Social != nil {
		merged.Social = copyMap(edit.Social)
	}
	if edit.AvatarURL != nil {
		merged.AvatarURL = strings.TrimSpace(*edit.AvatarURL)
	}
	if edit.CoverURL != nil {
		merged.CoverURL = strings.TrimSpace(*edit.CoverURL)
	}
	if edit.Settings != nil {
		merged.Settings = *edit.Settings
	}
	if edit.Bookmarks != nil {
		merged.Bookmarks = append([]string(nil), edit.Bookmarks...)
	}
	merged.UpdatedAt = now.UTC()
	return merged
}

// Reconcile merges a freshly fetched remote copy into the local optimistic
// copy. Fields listed in dirty keep their local value unless the fetched copy
// already agrees with it; agreement clears the field. Everything else takes
// the fetched value. The second return lists cleared fields.
func Reconcile(local, fetched Profile, dirty map[Field]struct{}) (Profile, []Field) {
	merged := clone(fetched)
	var cleared []Field
	for field := range dirty {
		if fieldEqual(local, fetched, field) {
			cleared = append(cleared, field)
			continue
		}
		copyField(&merged, local, field)
	}
	return merged, cleared
}

func copyField(dst *Profile, src Profile, field Field) {
	switch field {
	case FieldDisplayName:
		dst.DisplayName = src.DisplayName
	case FieldBio:
		dst.Bio = src.Bio
	case FieldCategory:
		dst.Category = src.Category
	case FieldLocation:
		dst.Location = src.Location
	case FieldWebsite:
		dst.Website = src.Website
	case FieldSocial:
		dst.Social = copyMap(src.Social)
	case FieldAvatarURL:
		dst.AvatarURL = src.AvatarURL
	case FieldCoverURL:
		dst.CoverURL = src.CoverURL
	case FieldSettings:
		dst.Settings = src.Settings
	case FieldBookmarks:
		dst.Bookmarks = append([]string(nil), src.Bookmarks...)
	}
}

func fieldEqual(a, b Profile, field Field) bool {
	switch field {
	case FieldDisplayName:
		return a.DisplayName == b.DisplayName
	case FieldBio:
		return a.Bio == b.Bio
	case FieldCategory:
		return a.Category == b.Category
	case FieldLocation:
		return a.Location == b.Location
	case FieldWebsite:
		return a.Website == b.Website
	case FieldSocial:
		return mapsEqual(a.Social, b.Social)
	case FieldAvatarURL:
		return a.AvatarURL == b.AvatarURL
	case FieldCoverURL:
		return a.CoverURL == b.CoverURL
	case FieldSettings:
		return a.Settings == b.Settings
	case FieldBookmarks:
		return slicesEqual(a.Bookmarks, b.Bookmarks)
	}
	return false
}

func clone(p Profile) Profile {
	copied := p
	copied.Social = copyMap(p.Social)
	copied.Exhibitions = append([]string(nil), p.Exhibitions...)
	copied.Artworks = append([]string(nil), p.Artworks...)
	copied.Bookmarks = append([]string(nil), p.Bookmarks...)
	return copied
}

func copyMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	copied := make(map[string]string, len(src))
	for k, v := range src {
		copied[k] = v
	}
	return copied
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
