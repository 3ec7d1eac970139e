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

// compile-time check that *DB implements repository.RecommendationRepository
var _ repository.RecommendationRepository = (*DB)(nil)

const recommendationColumns = `id, owner_id, title, genre, link, blurb, is_staff_pick, created_at`

// Create inserts a new recommendation, filling in ID and CreatedAt.
//
// xid values are 20 URL-safe characters and sort by creation time.
func (db *DB) Create(ctx context.Context, rec *model.Recommendation) error {
	rec.ID = xid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO recommendations (`+recommendationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OwnerID,
		rec.Title,
		string(rec.Genre),
		rec.Link,
		rec.Blurb,
		rec.IsStaffPick,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating recommendation: %w", err)
	}
	return nil
}

// GetByID retrieves a single recommendation.
// sql.ErrNoRows is translated to apperror.NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Recommendation, error) {
	var rec model.Recommendation
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)
	if err := scanRecommendation(row, &rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recommendation", id)
		}
		return nil, fmt.Errorf("sqlite: getting recommendation %s: %w", id, err)
	}
	return &rec, nil
}

// List returns at most one page of recommendations, newest first.
//
// rowid is SQLite's implicit insertion sequence; it breaks ties between rows
// written within the same clock tick.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Recommendation, error) {
	limit := opts.EffectiveLimit()

	var (
		where []string
		args  []any
	)
	if opts.Genre != "" {
		where = append(where, "genre = ?")
		args = append(args, string(opts.Genre))
	}
	if opts.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}

	query := `SELECT ` + recommendationColumns + ` FROM recommendations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]model.Recommendation, 0, limit)
	for rows.Next() {
		var rec model.Recommendation
		if err := scanRecommendation(rows, &rec); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recommendation row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recommendations: %w", err)
	}
	return recs, nil
}

// Delete removes a recommendation. Zero affected rows means it was already
// gone, reported as NotFound.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM recommendations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recommendation %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("recommendation", id)
	}
	return nil
}

// MarkStaffPick flips is_staff_pick to 1.
//
// SQLite's changes() counts rows matched by the WHERE clause even when the
// value is unchanged, so re-marking a pick still reports one row and stays
// a no-op instead of a NotFound.
func (db *DB) MarkStaffPick(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE recommendations SET is_staff_pick = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: marking staff pick %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("recommendation", id)
	}
	return nil
}

func scanRecommendation(s scanner, rec *model.Recommendation) error {
	var genre string
	if err := s.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Title,
		&genre,
		&rec.Link,
		&rec.Blurb,
		&rec.IsStaffPick,
		&rec.CreatedAt,
	); err != nil {
		return err
	}
	rec.Genre = model.Genre(genre)
	return nil
}
