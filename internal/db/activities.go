package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

const activityColumns = `id, athlete_id, athlete_name, name, activity_type, distance, elapsed_time,
		start_date, start_date_local, timezone, elevation_gain, average_heartrate, total_photo_count,
		created_at, updated_at`

// ActivityRepository handles activity database operations.
type ActivityRepository struct {
	q querier
}

// UpsertResult counts the rows an upsert actually wrote.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// Written returns the number of rows inserted or changed.
func (r UpsertResult) Written() int {
	return r.Inserted + r.Updated
}

// UpsertBatch inserts or overwrites activities keyed on id in a single
// statement. Rows whose stored values already match are left untouched and
// not counted. When the batch repeats an id, the last occurrence wins.
func (r *ActivityRepository) UpsertBatch(ctx context.Context, activities []Activity) (UpsertResult, error) {
	activities = dedupeByID(activities)
	if len(activities) == 0 {
		return UpsertResult{}, nil
	}

	query := `
		INSERT INTO activities (id, athlete_id, athlete_name, name, activity_type, distance, elapsed_time,
			start_date, start_date_local, timezone, elevation_gain, average_heartrate, total_photo_count)
		SELECT * FROM unnest($1::bigint[], $2::bigint[], $3::text[], $4::text[], $5::text[], $6::float8[],
			$7::int[], $8::timestamptz[], $9::timestamp[], $10::text[], $11::float8[], $12::float8[], $13::int[])
		ON CONFLICT (id) DO UPDATE SET
			athlete_id = EXCLUDED.athlete_id,
			athlete_name = EXCLUDED.athlete_name,
			name = EXCLUDED.name,
			activity_type = EXCLUDED.activity_type,
			distance = EXCLUDED.distance,
			elapsed_time = EXCLUDED.elapsed_time,
			start_date = EXCLUDED.start_date,
			start_date_local = EXCLUDED.start_date_local,
			timezone = EXCLUDED.timezone,
			elevation_gain = EXCLUDED.elevation_gain,
			average_heartrate = EXCLUDED.average_heartrate,
			total_photo_count = EXCLUDED.total_photo_count,
			updated_at = NOW()
		WHERE (activities.athlete_id, activities.athlete_name, activities.name, activities.activity_type,
			activities.distance, activities.elapsed_time, activities.start_date, activities.start_date_local,
			activities.timezone, activities.elevation_gain, activities.average_heartrate,
			activities.total_photo_count)
		IS DISTINCT FROM (EXCLUDED.athlete_id, EXCLUDED.athlete_name, EXCLUDED.name, EXCLUDED.activity_type,
			EXCLUDED.distance, EXCLUDED.elapsed_time, EXCLUDED.start_date, EXCLUDED.start_date_local,
			EXCLUDED.timezone, EXCLUDED.elevation_gain, EXCLUDED.average_heartrate,
			EXCLUDED.total_photo_count)
		RETURNING (xmax = 0) AS inserted
	`

	n := len(activities)
	ids := make([]int64, n)
	athleteIDs := make([]int64, n)
	athleteNames := make([]string, n)
	names := make([]string, n)
	types := make([]string, n)
	distances := make([]float64, n)
	elapsed := make([]int32, n)
	starts := make([]time.Time, n)
	startsLocal := make([]time.Time, n)
	timezones := make([]*string, n)
	elevations := make([]*float64, n)
	heartrates := make([]*float64, n)
	photos := make([]int32, n)

	for i, a := range activities {
		ids[i] = a.ID
		athleteIDs[i] = a.AthleteID
		athleteNames[i] = a.AthleteName
		names[i] = a.Name
		types[i] = a.ActivityType
		distances[i] = a.Distance
		elapsed[i] = int32(a.ElapsedTime)
		starts[i] = a.StartDate
		startsLocal[i] = wallClock(a.StartDateLocal)
		timezones[i] = a.Timezone
		elevations[i] = a.ElevationGain
		heartrates[i] = a.AverageHeartrate
		photos[i] = int32(a.TotalPhotoCount)
	}

	rows, err := r.q.Query(ctx, query,
		ids, athleteIDs, athleteNames, names, types, distances, elapsed,
		starts, startsLocal, timezones, elevations, heartrates, photos,
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("batch upserting activities: %w", err)
	}
	defer rows.Close()

	var result UpsertResult
	for rows.Next() {
		var inserted bool
		if err := rows.Scan(&inserted); err != nil {
			return UpsertResult{}, fmt.Errorf("scanning upsert result: %w", err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	if err := rows.Err(); err != nil {
		return UpsertResult{}, fmt.Errorf("batch upserting activities: %w", err)
	}
	return result, nil
}

// Get retrieves an activity by ID.
func (r *ActivityRepository) Get(ctx context.Context, id int64) (*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`

	a, err := scanActivity(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	return a, nil
}

// BetweenLocal returns activities whose local start time falls in [from, to).
// Only the wall clock of from and to is used.
func (r *ActivityRepository) BetweenLocal(ctx context.Context, from, to time.Time) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE start_date_local >= $1 AND start_date_local < $2
		ORDER BY start_date_local, id
	`
	return r.list(ctx, "querying activities in range", query, wallClock(from), wallClock(to))
}

// Recent returns the most recent activities by local start time.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		ORDER BY start_date_local DESC, id DESC
		LIMIT $1
	`
	return r.list(ctx, "querying recent activities", query, limit)
}

// All returns every stored activity ordered by local start time.
func (r *ActivityRepository) All(ctx context.Context) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		ORDER BY start_date_local, id
	`
	return r.list(ctx, "querying all activities", query)
}

// Count returns the number of stored activities.
func (r *ActivityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting activities: %w", err)
	}
	return count, nil
}

func (r *ActivityRepository) list(ctx context.Context, what, query string, args ...any) ([]Activity, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID,
		&a.AthleteID,
		&a.AthleteName,
		&a.Name,
		&a.ActivityType,
		&a.Distance,
		&a.ElapsedTime,
		&a.StartDate,
		&a.StartDateLocal,
		&a.Timezone,
		&a.ElevationGain,
		&a.AverageHeartrate,
		&a.TotalPhotoCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// dedupeByID keeps the last occurrence of each id and orders the result by
// id, so overlapping batches written concurrently lock rows in the same order.
func dedupeByID(activities []Activity) []Activity {
	index := make(map[int64]int, len(activities))
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if i, ok := index[a.ID]; ok {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// wallClock drops the location while keeping the wall-clock reading.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}
