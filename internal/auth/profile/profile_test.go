package profile

import (
	"testing"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
)

func strPtr(s string) *string { return &s }

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func TestNewFromIdentity(t *testing.T) {
	created := New(identity.Identity{
		ID:          "identity-1",
		Email:       "a@x.com",
		DisplayName: "Alpha",
		PhotoURL:    "https://img/alpha.png",
	}, fixedNow)

	if created.ID != "identity-1" {
		t.Fatalf("id = %q, want %q", created.ID, "identity-1")
	}
	if created.DisplayName != "Alpha" {
		t.Fatalf("display name = %q", created.DisplayName)
	}
	if created.AvatarURL != "https://img/alpha.png" {
		t.Fatalf("avatar = %q", created.AvatarURL)
	}
	if created.Exhibitions == nil || created.Artworks == nil || created.Bookmarks == nil {
		t.Fatal("expected empty, non-nil list fields")
	}
	if created.Settings.DefaultVisibility != VisibilityPublic {
		t.Fatalf("default visibility = %q", created.Settings.DefaultVisibility)
	}
}

func TestEditFields(t *testing.T) {
	edit := Edit{Bio: strPtr("hi"), AvatarURL: strPtr("u")}
	fields := edit.Fields()
	if len(fields) != 2 {
		t.Fatalf("fields = %v, want 2", fields)
	}
	if edit.IsEmpty() {
		t.Fatal("expected non-empty edit")
	}
	if !edit.TouchesIdentityMirror() {
		t.Fatal("avatar edit should touch the identity mirror")
	}
	if (Edit{Bio: strPtr("x")}).TouchesIdentityMirror() {
		t.Fatal("bio edit should not touch the identity mirror")
	}
	if !(Edit{}).IsEmpty() {
		t.Fatal("zero edit should be empty")
	}
}

func TestApplyMergesOnlyTouchedFields(t *testing.T) {
	base := Profile{
		ID:          "p1",
		DisplayName: "Alpha",
		Bio:         "old bio",
		Bookmarks:   []string{"b1"},
	}
	merged := Apply(base, Edit{Bio: strPtr("new bio")}, fixedNow())

	if merged.Bio != "new bio" {
		t.Fatalf("bio = %q", merged.Bio)
	}
	if merged.DisplayName != "Alpha" {
		t.Fatalf("display name = %q, want untouched", merged.DisplayName)
	}
	if !merged.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("updated at = %v", merged.UpdatedAt)
	}
	if base.Bio != "old bio" {
		t.Fatal("apply mutated its input")
	}
}

func TestApplyDoesNotShareListMemory(t *testing.T) {
	base := Profile{ID: "p1", Bookmarks: []string{"b1"}}
	merged := Apply(base, Edit{Bookmarks: []string{"b2", "b3"}}, fixedNow())
	merged.Bookmarks[0] = "mutated"
	if base.Bookmarks[0] != "b1" {
		t.Fatal("edit list aliased into base profile")
	}
}

func TestReconcileKeepsDirtyFieldsOverStaleFetch(t *testing.T) {
	local := Profile{ID: "p1", Bio: "hi", Location: "Lisbon"}
	// Stale server snapshot taken before the bio edit.
	fetched := Profile{ID: "p1", Bio: "old", Location: "Porto"}

	merged, cleared := Reconcile(local, fetched, map[Field]struct{}{FieldBio: {}})
	if merged.Bio != "hi" {
		t.Fatalf("bio = %q, want optimistic value preserved", merged.Bio)
	}
	if merged.Location != "Porto" {
		t.Fatalf("location = %q, want fetched value", merged.Location)
	}
	if len(cleared) != 0 {
		t.Fatalf("cleared = %v, want none", cleared)
	}
}

func TestReconcileClearsFieldOnceServerAgrees(t *testing.T) {
	local := Profile{ID: "p1", Bio: "hi"}
	fetched := Profile{ID: "p1", Bio: "hi", Website: "https://x"}

	merged, cleared := Reconcile(local, fetched, map[Field]struct{}{FieldBio: {}})
	if merged.Bio != "hi" {
		t.Fatalf("bio = %q", merged.Bio)
	}
	if merged.Website != "https://x" {
		t.Fatalf("website = %q", merged.Website)
	}
	if len(cleared) != 1 || cleared[0] != FieldBio {
		t.Fatalf("cleared = %v, want [bio]", cleared)
	}
}

func TestReconcileSettingsAndSocial(t *testing.T) {
	local := Profile{
		ID:       "p1",
		Settings: Settings{Theme: "dark", DefaultVisibility: VisibilityPrivate},
		Social:   map[string]string{"instagram": "@alpha"},
	}
	fetched := Profile{
		ID:       "p1",
		Settings: Settings{Theme: "light", DefaultVisibility: VisibilityPublic},
		Social:   map[string]string{"instagram": "@old"},
	}

	merged, _ := Reconcile(local, fetched, map[Field]struct{}{FieldSettings: {}, FieldSocial: {}})
	if merged.Settings.Theme != "dark" {
		t.Fatalf("theme = %q, want optimistic", merged.Settings.Theme)
	}
	if merged.Social["instagram"] != "@alpha" {
		t.Fatalf("social = %v, want optimistic", merged.Social)
	}
}
