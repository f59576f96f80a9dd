package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncRunRepository handles sync audit records.
type SyncRunRepository struct {
	pool *pgxpool.Pool
}

// Record inserts a sync run, assigning an ID when none is set.
func (r *SyncRunRepository) Record(ctx context.Context, run *SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	query := `
		INSERT INTO sync_runs (id, athlete_id, started_at, finished_at, fetched, inserted, updated, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.AthleteID,
		run.StartedAt,
		run.FinishedAt,
		run.Fetched,
		run.Inserted,
		run.Updated,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// LatestForAthlete returns the most recent sync runs for an athlete.
func (r *SyncRunRepository) LatestForAthlete(ctx context.Context, athleteID int64, limit int) ([]SyncRun, error) {
	query := `
		SELECT id, athlete_id, started_at, finished_at, fetched, inserted, updated, error
		FROM sync_runs
		WHERE athlete_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, athleteID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(
			&run.ID,
			&run.AthleteID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Fetched,
			&run.Inserted,
			&run.Updated,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
