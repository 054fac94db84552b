package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
)

// PutPasskeyCredential stores a WebAuthn credential.
func (s *Store) PutPasskeyCredential(ctx context.Context, credential storage.PasskeyCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(credential.CredentialJSON) == "" {
		return fmt.Errorf("credential json is required")
	}

	lastUsed := sql.NullInt64{}
	if credential.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*credential.LastUsedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_credentials (
    credential_id, owner_id, credential_json, signature_counter, device_label,
    created_at, updated_at, last_used_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (credential_id) DO UPDATE SET
    credential_json = excluded.credential_json,
    signature_counter = excluded.signature_counter,
    device_label = excluded.device_label,
    updated_at = excluded.updated_at,
    last_used_at = excluded.last_used_at`,
		credential.CredentialID, credential.OwnerID, credential.CredentialJSON,
		credential.SignatureCounter, credential.DeviceLabel,
		toMillis(credential.CreatedAt), toMillis(credential.UpdatedAt), lastUsed,
	)
	if err != nil {
		return fmt.Errorf("put passkey credential: %w", err)
	}
	return nil
}

// GetPasskeyCredential fetches a stored WebAuthn credential.
func (s *Store) GetPasskeyCredential(ctx context.Context, credentialID string) (storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	if err := s.ready(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.PasskeyCredential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, passkeySelect+" WHERE credential_id = ?", credentialID)
	credential, err := scanPasskey(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeyCredential{}, storage.ErrNotFound
		}
		return storage.PasskeyCredential{}, fmt.Errorf("get passkey credential: %w", err)
	}
	return credential, nil
}

// ListPasskeyCredentials returns credentials owned by an identity.
func (s *Store) ListPasskeyCredentials(ctx context.Context, ownerID string) ([]storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, passkeySelect+" WHERE owner_id = ? ORDER BY created_at", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	defer rows.Close()

	var credentials []storage.PasskeyCredential
	for rows.Next() {
		credential, err := scanPasskey(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list passkey credentials: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	return credentials, nil
}

// DeletePasskeyCredential removes a credential.
func (s *Store) DeletePasskeyCredential(ctx context.Context, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, "DELETE FROM passkey_credentials WHERE credential_id = ?", credentialID)
	if err != nil {
		return fmt.Errorf("delete passkey credential: %w", err)
	}
	return nil
}

// PutPasskeySession stores a ceremony session.
func (s *Store) PutPasskeySession(ctx context.Context, session storage.PasskeySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Kind) == "" {
		return fmt.Errorf("session kind is required")
	}
	if strings.TrimSpace(session.SessionJSON) == "" {
		return fmt.Errorf("session json is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_sessions (id, kind, owner_id, session_json, expires_at)
VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Kind, session.OwnerID, session.SessionJSON, toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put passkey session: %w", err)
	}
	return nil
}

// GetPasskeySession fetches a ceremony session by id.
func (s *Store) GetPasskeySession(ctx context.Context, id string) (storage.PasskeySession, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeySession{}, err
	}
	if err := s.ready(); err != nil {
		return storage.PasskeySession{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.PasskeySession{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, kind, owner_id, session_json, expires_at
FROM passkey_sessions WHERE id = ?`, id)

	var session storage.PasskeySession
	var expiresAt int64
	err := row.Scan(&session.ID, &session.Kind, &session.OwnerID, &session.SessionJSON, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeySession{}, storage.ErrNotFound
		}
		return storage.PasskeySession{}, fmt.Errorf("get passkey session: %w", err)
	}
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// DeletePasskeySession removes a ceremony session.
func (s *Store) DeletePasskeySession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, "DELETE FROM passkey_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete passkey session: %w", err)
	}
	return nil
}

// DeleteExpiredPasskeySessions removes ceremony sessions past their TTL.
func (s *Store) DeleteExpiredPasskeySessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, "DELETE FROM passkey_sessions WHERE expires_at < ?", toMillis(now))
	if err != nil {
		return fmt.Errorf("delete expired passkey sessions: %w", err)
	}
	return nil
}

const passkeySelect = `
SELECT credential_id, owner_id, credential_json, signature_counter, device_label,
       created_at, updated_at, last_used_at
FROM passkey_credentials`

func scanPasskey(scan func(dest ...any) error) (storage.PasskeyCredential, error) {
	var credential storage.PasskeyCredential
	var createdAt, updatedAt int64
	var lastUsed sql.NullInt64
	if err := scan(
		&credential.CredentialID,
		&credential.OwnerID,
		&credential.CredentialJSON,
		&credential.SignatureCounter,
		&credential.DeviceLabel,
		&createdAt,
		&updatedAt,
		&lastUsed,
	); err != nil {
		return storage.PasskeyCredential{}, err
	}
	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}
