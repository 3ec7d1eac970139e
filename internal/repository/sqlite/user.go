package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_id, email, display_name, avatar_url, role, created_at, updated_at`

// UpsertByExternalID inserts or refreshes a user in one statement.
//
// ON CONFLICT(external_id) DO UPDATE keeps the existing id, role and
// created_at and only rewrites the profile fields. RETURNING hands back the
// canonical row, so the caller sees the stored id and role either way.
func (db *DB) UpsertByExternalID(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
			email        = excluded.email,
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			updated_at   = excluded.updated_at
		 RETURNING `+userColumns,
		xid.New().String(),
		user.ExternalID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		string(model.RoleUser),
		now,
		now,
	)
	if err := scanUser(row, user); err != nil {
		return fmt.Errorf("sqlite: upserting user (externalID=%s): %w", user.ExternalID, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err := scanUser(row, &u); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByExternalID retrieves a user by the identity provider's subject.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)
	if err := scanUser(row, &u); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", externalID)
		}
		return nil, fmt.Errorf("sqlite: getting user by external id %s: %w", externalID, err)
	}
	return &u, nil
}

// GetUsersByIDs loads every listed user with a single IN (...) query.
func (db *DB) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: batch loading users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, len(ids))
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// DeleteByExternalID removes the user if present. A missing user is not an
// error; the bool tells the caller whether anything was deleted.
func (db *DB) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM users WHERE external_id = ?`, externalID)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting user %s: %w", externalID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// SetRole changes a user's role.
func (db *DB) SetRole(ctx context.Context, id string, role model.Role) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: setting role for user %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner, u *model.User) error {
	var role string
	if err := s.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return err
	}
	u.Role = model.Role(role)
	return nil
}
