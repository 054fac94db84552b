package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
)

// PutOneTimeCode stores a code, replacing any prior live code for the email.
func (s *Store) PutOneTimeCode(ctx context.Context, code storage.OneTimeCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(code.EmailKey) == "" {
		return fmt.Errorf("email key is required")
	}
	if strings.TrimSpace(code.Code) == "" {
		return fmt.Errorf("code is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO one_time_codes (email_key, code, created_at, expires_at, used)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (email_key) DO UPDATE SET
    code = excluded.code,
    created_at = excluded.created_at,
    expires_at = excluded.expires_at,
    used = excluded.used`,
		code.EmailKey, code.Code, toMillis(code.CreatedAt), toMillis(code.ExpiresAt), boolToInt(code.Used),
	)
	if err != nil {
		return fmt.Errorf("put one-time code: %w", err)
	}
	return nil
}

// GetOneTimeCode fetches the live code record for an email, if any.
func (s *Store) GetOneTimeCode(ctx context.Context, emailKey string) (storage.OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return storage.OneTimeCode{}, err
	}
	if err := s.ready(); err != nil {
		return storage.OneTimeCode{}, err
	}
	if strings.TrimSpace(emailKey) == "" {
		return storage.OneTimeCode{}, fmt.Errorf("email key is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT email_key, code, created_at, expires_at, used
FROM one_time_codes WHERE email_key = ?`, emailKey)

	var code storage.OneTimeCode
	var createdAt, expiresAt int64
	var used int
	err := row.Scan(&code.EmailKey, &code.Code, &createdAt, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OneTimeCode{}, storage.ErrNotFound
		}
		return storage.OneTimeCode{}, fmt.Errorf("get one-time code: %w", err)
	}
	code.CreatedAt = fromMillis(createdAt)
	code.ExpiresAt = fromMillis(expiresAt)
	code.Used = used != 0
	return code, nil
}

// MarkOneTimeCodeUsed marks the code consumed.
func (s *Store) MarkOneTimeCodeUsed(ctx context.Context, emailKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE one_time_codes SET used = 1 WHERE email_key = ?", emailKey)
	if err != nil {
		return fmt.Errorf("mark one-time code used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark one-time code used: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteOneTimeCode removes the code record for an email.
func (s *Store) DeleteOneTimeCode(ctx context.Context, emailKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, "DELETE FROM one_time_codes WHERE email_key = ?", emailKey)
	if err != nil {
		return fmt.Errorf("delete one-time code: %w", err)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
