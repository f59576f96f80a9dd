package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProfileRepository handles athlete profile database operations.
type ProfileRepository struct {
	q querier
}

// Upsert creates or updates a profile. The latest write wins per field, except
// that null or empty values keep the stored value.
func (r *ProfileRepository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, firstname, lastname, profile_picture_url, timezone,
			access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			firstname = COALESCE(NULLIF(EXCLUDED.firstname, ''), profiles.firstname),
			lastname = COALESCE(NULLIF(EXCLUDED.lastname, ''), profiles.lastname),
			profile_picture_url = COALESCE(EXCLUDED.profile_picture_url, profiles.profile_picture_url),
			timezone = COALESCE(EXCLUDED.timezone, profiles.timezone),
			access_token = COALESCE(NULLIF(EXCLUDED.access_token, ''), profiles.access_token),
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), profiles.refresh_token),
			expires_at = COALESCE(EXCLUDED.expires_at, profiles.expires_at),
			updated_at = NOW()
		RETURNING created_at, updated_at, last_sync_at
	`
	err := r.q.QueryRow(ctx, query,
		p.ID,
		p.Firstname,
		p.Lastname,
		p.ProfilePictureURL,
		p.Timezone,
		p.AccessToken,
		p.RefreshToken,
		p.ExpiresAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt, &p.LastSyncAt)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by athlete ID.
func (r *ProfileRepository) Get(ctx context.Context, id int64) (*Profile, error) {
	query := `
		SELECT id, firstname, lastname, profile_picture_url, timezone, access_token, refresh_token,
			expires_at, last_sync_at, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	p, err := scanProfile(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// GetMany retrieves the profiles for the given athlete IDs keyed by ID.
// Unknown IDs are absent from the result.
func (r *ProfileRepository) GetMany(ctx context.Context, ids []int64) (map[int64]Profile, error) {
	result := make(map[int64]Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, firstname, lastname, profile_picture_url, timezone, access_token, refresh_token,
			expires_at, last_sync_at, created_at, updated_at
		FROM profiles
		WHERE id = ANY($1)
	`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		result[p.ID] = *p
	}
	return result, rows.Err()
}

// UpdateLastSync updates the last sync timestamp for an athlete.
func (r *ProfileRepository) UpdateLastSync(ctx context.Context, id int64, syncTime time.Time) error {
	query := `
		UPDATE profiles
		SET last_sync_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q.Exec(ctx, query, id, syncTime)
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.Firstname,
		&p.Lastname,
		&p.ProfilePictureURL,
		&p.Timezone,
		&p.AccessToken,
		&p.RefreshToken,
		&p.ExpiresAt,
		&p.LastSyncAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
