package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
)

// PutIdentity upserts an identity record.
func (s *Store) PutIdentity(ctx context.Context, record storage.IdentityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(record.Identity.ID) == "" {
		return fmt.Errorf("identity id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO identities (id, email, display_name, photo_url, kinds, secret_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    display_name = excluded.display_name,
    photo_url = excluded.photo_url,
    kinds = excluded.kinds,
    secret_hash = excluded.secret_hash,
    updated_at = excluded.updated_at`,
		record.Identity.ID,
		record.Identity.Email,
		record.Identity.DisplayName,
		record.Identity.PhotoURL,
		joinKinds(record.Identity.Kinds),
		record.SecretHash,
		toMillis(record.Identity.CreatedAt),
		toMillis(record.Identity.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return nil
}

// GetIdentity fetches an identity by id.
func (s *Store) GetIdentity(ctx context.Context, identityID string) (storage.IdentityRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.IdentityRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.IdentityRecord{}, err
	}
	if strings.TrimSpace(identityID) == "" {
		return storage.IdentityRecord{}, fmt.Errorf("identity id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, identitySelect+" WHERE id = ?", identityID)
	return scanIdentity(row)
}

// GetIdentityByEmail fetches an identity by its normalized email.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (storage.IdentityRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.IdentityRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.IdentityRecord{}, err
	}
	if strings.TrimSpace(email) == "" {
		return storage.IdentityRecord{}, fmt.Errorf("email is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, identitySelect+" WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	return scanIdentity(row)
}

const identitySelect = `
SELECT id, email, display_name, photo_url, kinds, secret_hash, created_at, updated_at
FROM identities`

func scanIdentity(row *sql.Row) (storage.IdentityRecord, error) {
	var record storage.IdentityRecord
	var kinds string
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.Identity.ID,
		&record.Identity.Email,
		&record.Identity.DisplayName,
		&record.Identity.PhotoURL,
		&kinds,
		&record.SecretHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.IdentityRecord{}, storage.ErrNotFound
		}
		return storage.IdentityRecord{}, fmt.Errorf("get identity: %w", err)
	}
	record.Identity.Kinds = splitKinds(kinds)
	record.Identity.CreatedAt = fromMillis(createdAt)
	record.Identity.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func joinKinds(kinds []identity.CredentialKind) string {
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, string(kind))
	}
	return strings.Join(parts, ",")
}

func splitKinds(joined string) []identity.CredentialKind {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	kinds := make([]identity.CredentialKind, 0, len(parts))
	for _, part := range parts {
		kinds = append(kinds, identity.CredentialKind(part))
	}
	return kinds
}
