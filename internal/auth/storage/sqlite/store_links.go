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

// PutMagicLink stores a single-use sign-in link record.
func (s *Store) PutMagicLink(ctx context.Context, link storage.MagicLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(link.Token) == "" {
		return fmt.Errorf("token is required")
	}
	if strings.TrimSpace(link.Email) == "" {
		return fmt.Errorf("email is required")
	}

	usedAt := sql.NullInt64{}
	if link.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: toMillis(*link.UsedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO magic_links (token, email, created_at, expires_at, used_at)
VALUES (?, ?, ?, ?, ?)`,
		link.Token, link.Email, toMillis(link.CreatedAt), toMillis(link.ExpiresAt), usedAt,
	)
	if err != nil {
		return fmt.Errorf("put magic link: %w", err)
	}
	return nil
}

// GetMagicLink fetches a link record by token.
func (s *Store) GetMagicLink(ctx context.Context, token string) (storage.MagicLink, error) {
	if err := ctx.Err(); err != nil {
		return storage.MagicLink{}, err
	}
	if err := s.ready(); err != nil {
		return storage.MagicLink{}, err
	}
	if strings.TrimSpace(token) == "" {
		return storage.MagicLink{}, fmt.Errorf("token is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token, email, created_at, expires_at, used_at
FROM magic_links WHERE token = ?`, token)

	var link storage.MagicLink
	var createdAt, expiresAt int64
	var usedAt sql.NullInt64
	err := row.Scan(&link.Token, &link.Email, &createdAt, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MagicLink{}, storage.ErrNotFound
		}
		return storage.MagicLink{}, fmt.Errorf("get magic link: %w", err)
	}
	link.CreatedAt = fromMillis(createdAt)
	link.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		value := fromMillis(usedAt.Int64)
		link.UsedAt = &value
	}
	return link, nil
}

// MarkMagicLinkUsed consumes a link.
func (s *Store) MarkMagicLinkUsed(ctx context.Context, token string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE magic_links SET used_at = ? WHERE token = ?", toMillis(usedAt), token)
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
