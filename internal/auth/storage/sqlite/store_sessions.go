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

// PutWebSession stores a revocable web session.
func (s *Store) PutWebSession(ctx context.Context, session storage.WebSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}

	revokedAt := sql.NullInt64{}
	if session.RevokedAt != nil {
		revokedAt = sql.NullInt64{Int64: toMillis(*session.RevokedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO web_sessions (id, owner_id, created_at, expires_at, revoked_at)
VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.OwnerID, toMillis(session.CreatedAt), toMillis(session.ExpiresAt), revokedAt,
	)
	if err != nil {
		return fmt.Errorf("put web session: %w", err)
	}
	return nil
}

// GetWebSession fetches a web session by id.
func (s *Store) GetWebSession(ctx context.Context, id string) (storage.WebSession, error) {
	if err := ctx.Err(); err != nil {
		return storage.WebSession{}, err
	}
	if err := s.ready(); err != nil {
		return storage.WebSession{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.WebSession{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, owner_id, created_at, expires_at, revoked_at
FROM web_sessions WHERE id = ?`, id)

	var session storage.WebSession
	var createdAt, expiresAt int64
	var revokedAt sql.NullInt64
	err := row.Scan(&session.ID, &session.OwnerID, &createdAt, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.WebSession{}, storage.ErrNotFound
		}
		return storage.WebSession{}, fmt.Errorf("get web session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	if revokedAt.Valid {
		value := fromMillis(revokedAt.Int64)
		session.RevokedAt = &value
	}
	return session, nil
}

// RevokeWebSession marks a web session revoked.
func (s *Store) RevokeWebSession(ctx context.Context, id string, revokedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE web_sessions SET revoked_at = ? WHERE id = ?", toMillis(revokedAt), id)
	if err != nil {
		return fmt.Errorf("revoke web session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke web session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
