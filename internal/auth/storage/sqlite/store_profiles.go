package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/profile"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
)

// PutProfile upserts a profile document.
func (s *Store) PutProfile(ctx context.Context, p profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("profile id is required")
	}

	socialJSON, err := marshalOrDefault(p.Social, "{}")
	if err != nil {
		return fmt.Errorf("encode social: %w", err)
	}
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	exhibitionsJSON, err := marshalOrDefault(p.Exhibitions, "[]")
	if err != nil {
		return fmt.Errorf("encode exhibitions: %w", err)
	}
	artworksJSON, err := marshalOrDefault(p.Artworks, "[]")
	if err != nil {
		return fmt.Errorf("encode artworks: %w", err)
	}
	bookmarksJSON, err := marshalOrDefault(p.Bookmarks, "[]")
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO profiles (
    identity_id, display_name, bio, category, location, website,
    social_json, avatar_url, cover_url, settings_json,
    exhibitions_json, artworks_json, bookmarks_json, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (identity_id) DO UPDATE SET
    display_name = excluded.display_name,
    bio = excluded.bio,
    category = excluded.category,
    location = excluded.location,
    website = excluded.website,
    social_json = excluded.social_json,
    avatar_url = excluded.avatar_url,
    cover_url = excluded.cover_url,
    settings_json = excluded.settings_json,
    exhibitions_json = excluded.exhibitions_json,
    artworks_json = excluded.artworks_json,
    bookmarks_json = excluded.bookmarks_json,
    updated_at = excluded.updated_at`,
		p.ID, p.DisplayName, p.Bio, p.Category, p.Location, p.Website,
		socialJSON, p.AvatarURL, p.CoverURL, string(settingsJSON),
		exhibitionsJSON, artworksJSON, bookmarksJSON,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// GetProfile fetches a profile document by identity id.
func (s *Store) GetProfile(ctx context.Context, identityID string) (profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}
	if err := s.ready(); err != nil {
		return profile.Profile{}, err
	}
	if strings.TrimSpace(identityID) == "" {
		return profile.Profile{}, fmt.Errorf("identity id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT identity_id, display_name, bio, category, location, website,
       social_json, avatar_url, cover_url, settings_json,
       exhibitions_json, artworks_json, bookmarks_json, created_at, updated_at
FROM profiles WHERE identity_id = ?`, identityID)

	var p profile.Profile
	var socialJSON, settingsJSON, exhibitionsJSON, artworksJSON, bookmarksJSON string
	var createdAt, updatedAt int64
	err := row.Scan(
		&p.ID, &p.DisplayName, &p.Bio, &p.Category, &p.Location, &p.Website,
		&socialJSON, &p.AvatarURL, &p.CoverURL, &settingsJSON,
		&exhibitionsJSON, &artworksJSON, &bookmarksJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Profile{}, storage.ErrNotFound
		}
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	if err := json.Unmarshal([]byte(socialJSON), &p.Social); err != nil {
		return profile.Profile{}, fmt.Errorf("decode social: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return profile.Profile{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal([]byte(exhibitionsJSON), &p.Exhibitions); err != nil {
		return profile.Profile{}, fmt.Errorf("decode exhibitions: %w", err)
	}
	if err := json.Unmarshal([]byte(artworksJSON), &p.Artworks); err != nil {
		return profile.Profile{}, fmt.Errorf("decode artworks: %w", err)
	}
	if err := json.Unmarshal([]byte(bookmarksJSON), &p.Bookmarks); err != nil {
		return profile.Profile{}, fmt.Errorf("decode bookmarks: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func marshalOrDefault(value any, fallback string) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if string(encoded) == "null" {
		return fallback, nil
	}
	return string(encoded), nil
}
