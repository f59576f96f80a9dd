// Package sync reconciles an athlete's Strava activities into PostgreSQL.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
	"github.com/justestif/go-strava-leaderboard/internal/observability"
	"github.com/justestif/go-strava-leaderboard/internal/strava"
)

// Common errors.
var (
	// ErrMissingCredentials is returned when the caller has no access token or athlete ID.
	ErrMissingCredentials = errors.New("missing athlete credentials")

	// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
	ErrSyncTooRecent = errors.New("sync attempted too recently")

	// ErrUpstream is returned when activities could not be fetched from Strava.
	ErrUpstream = errors.New("fetching activities from strava failed")
)

// Upload feedback shown to the athlete.
const (
	upToDateMessage = "Everything is up to date! No new activities found to upload."
	uploadedMessage = "Nice one - you just uploaded %d activities!"
)

// ActivityFetcher lists an athlete's most recent activities.
type ActivityFetcher interface {
	ListActivities(ctx context.Context, opts strava.ListOptions) ([]strava.SummaryActivity, error)
}

// ProfileStore persists athlete profiles.
type ProfileStore interface {
	Get(ctx context.Context, id int64) (*db.Profile, error)
	Upsert(ctx context.Context, p *db.Profile) error
	UpdateLastSync(ctx context.Context, id int64, syncTime time.Time) error
}

// ActivityStore persists activities idempotently.
type ActivityStore interface {
	UpsertBatch(ctx context.Context, activities []db.Activity) (db.UpsertResult, error)
}

// RunRecorder keeps the sync audit trail.
type RunRecorder interface {
	Record(ctx context.Context, run *db.SyncRun) error
}

// WriteFunc runs fn with stores whose writes commit or roll back together.
type WriteFunc func(ctx context.Context, fn func(profiles ProfileStore, activities ActivityStore) error) error

// Service handles syncing activities from Strava to the database.
type Service struct {
	profiles     ProfileStore
	activities   ActivityStore
	runs         RunRecorder
	write        WriteFunc
	syncCooldown time.Duration
	perPage      int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSyncCooldown sets the minimum time between syncs. Zero disables it.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// WithPerPage sets how many recent activities each sync requests.
func WithPerPage(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithAtomicWrites groups each sync's profile and activity writes. Without
// it the writes go straight to the stores passed to New.
func WithAtomicWrites(w WriteFunc) Option {
	return func(s *Service) {
		s.write = w
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrDiscard(logger)
	}
}

// New creates a new sync service.
func New(profiles ProfileStore, activities ActivityStore, runs RunRecorder, opts ...Option) *Service {
	s := &Service{
		profiles:   profiles,
		activities: activities,
		runs:       runs,
		perPage:    strava.DefaultPerPage,
		now:        time.Now,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.write == nil {
		s.write = func(ctx context.Context, fn func(ProfileStore, ActivityStore) error) error {
			return fn(s.profiles, s.activities)
		}
	}
	s.logger = s.logger.With(slog.String("component", "sync"))
	return s
}

// NewFromDB creates a sync service backed by the database repositories. Each
// sync writes the profile and its activities in one transaction.
func NewFromDB(database *db.DB, opts ...Option) *Service {
	tx := WithAtomicWrites(func(ctx context.Context, fn func(ProfileStore, ActivityStore) error) error {
		return database.WithTx(ctx, func(tx db.Tx) error {
			return fn(tx.Profiles, tx.Activities)
		})
	})
	return New(database.Profiles(), database.Activities(), database.SyncRuns(), append([]Option{tx}, opts...)...)
}

// AthleteContext identifies whose activities to sync and carries their token.
type AthleteContext struct {
	AthleteID         int64
	Firstname         string
	Lastname          string
	ProfilePictureURL string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time

	// Force skips the cooldown, e.g. for the first sync right after login.
	Force bool
}

// Result contains the result of a sync operation.
type Result struct {
	RunID    uuid.UUID
	Fetched  int
	Skipped  int
	Inserted int
	Updated  int
	Message  string
	SyncedAt time.Time
}

// Written returns the number of activities inserted or changed.
func (r *Result) Written() int {
	return r.Inserted + r.Updated
}

// CanSync checks if enough time has passed since the last sync.
// Also returns the time when the next sync will be available.
func (s *Service) CanSync(ctx context.Context, athleteID int64) (bool, time.Time, error) {
	if s.syncCooldown <= 0 {
		return true, time.Time{}, nil
	}

	profile, err := s.profiles.Get(ctx, athleteID)
	if errors.Is(err, db.ErrNotFound) {
		return true, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("getting profile: %w", err)
	}
	if profile.LastSyncAt == nil {
		return true, time.Time{}, nil
	}

	next := profile.LastSyncAt.Add(s.syncCooldown)
	if s.now().Before(next) {
		return false, next, nil
	}
	return true, time.Time{}, nil
}

// LastSyncTime returns the last sync time for an athlete, or nil if they
// have never synced.
func (s *Service) LastSyncTime(ctx context.Context, athleteID int64) (*time.Time, error) {
	profile, err := s.profiles.Get(ctx, athleteID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return profile.LastSyncAt, nil
}

// Connect stores the athlete's profile and tokens after authorization.
// It does not touch activities or the last sync time.
func (s *Service) Connect(ctx context.Context, athlete AthleteContext) error {
	if athlete.AthleteID == 0 || athlete.AccessToken == "" {
		return ErrMissingCredentials
	}
	if err := s.profiles.Upsert(ctx, toProfile(athlete, "")); err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	s.logger.Info("athlete connected", slog.Int64("athlete_id", athlete.AthleteID))
	return nil
}

// Reconcile fetches the athlete's most recent activities and upserts them.
// Re-running it with unchanged upstream data writes nothing.
func (s *Service) Reconcile(ctx context.Context, fetcher ActivityFetcher, athlete AthleteContext) (*Result, error) {
	if athlete.AthleteID == 0 || athlete.AccessToken == "" || fetcher == nil {
		observability.RecordSync(observability.OutcomeRejected, 0, 0, 0, 0)
		return nil, ErrMissingCredentials
	}

	started := s.now()
	logger := s.logger.With(slog.Int64("athlete_id", athlete.AthleteID))

	if !athlete.Force {
		ok, next, err := s.CanSync(ctx, athlete.AthleteID)
		if err != nil {
			return nil, err
		}
		if !ok {
			observability.RecordSync(observability.OutcomeRejected, 0, 0, 0, 0)
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, next.Format(time.RFC3339))
		}
	}

	if err := s.fillIdentity(ctx, &athlete); err != nil {
		return nil, err
	}

	run := &db.SyncRun{ID: uuid.New(), AthleteID: athlete.AthleteID, StartedAt: started}

	fetched, err := fetcher.ListActivities(ctx, strava.ListOptions{PerPage: s.perPage})
	if err != nil {
		s.fail(ctx, logger, run, observability.OutcomeUpstream, err)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	run.Fetched = len(fetched)

	activities, skipped := toActivities(fetched, athlete)
	for _, sk := range skipped {
		logger.Warn("skipping malformed activity", slog.Int64("activity_id", sk.id), slog.String("reason", sk.reason))
	}

	profile := toProfile(athlete, newestTimezone(fetched))
	var (
		written  db.UpsertResult
		syncTime time.Time
	)
	err = s.write(ctx, func(profiles ProfileStore, store ActivityStore) error {
		if err := profiles.Upsert(ctx, profile); err != nil {
			return fmt.Errorf("upserting profile: %w", err)
		}
		var err error
		if written, err = store.UpsertBatch(ctx, activities); err != nil {
			return fmt.Errorf("upserting activities: %w", err)
		}
		syncTime = s.now()
		if err := profiles.UpdateLastSync(ctx, athlete.AthleteID, syncTime); err != nil {
			return fmt.Errorf("updating last sync: %w", err)
		}
		return nil
	})
	if err != nil {
		s.fail(ctx, logger, run, observability.OutcomeStorage, err)
		return nil, err
	}
	run.Inserted = written.Inserted
	run.Updated = written.Updated

	run.FinishedAt = syncTime
	if err := s.runs.Record(ctx, run); err != nil {
		logger.Error("recording sync run", slog.Any("error", err))
	}
	observability.RecordSync(observability.OutcomeSuccess, run.Fetched, run.Inserted, run.Updated, syncTime.Sub(started))
	observability.RecordSyncSucceeded(syncTime)

	result := &Result{
		RunID:    run.ID,
		Fetched:  run.Fetched,
		Skipped:  len(skipped),
		Inserted: run.Inserted,
		Updated:  run.Updated,
		SyncedAt: syncTime,
	}
	result.Message = feedback(result.Written())

	logger.Info("sync finished",
		slog.String("run_id", run.ID.String()),
		slog.Int("fetched", result.Fetched),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// fillIdentity loads the stored name and picture when the caller only knows
// the athlete ID, as API-triggered syncs do.
func (s *Service) fillIdentity(ctx context.Context, athlete *AthleteContext) error {
	if athlete.Firstname != "" || athlete.Lastname != "" {
		return nil
	}
	profile, err := s.profiles.Get(ctx, athlete.AthleteID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting profile: %w", err)
	}
	athlete.Firstname = profile.Firstname
	athlete.Lastname = profile.Lastname
	if athlete.ProfilePictureURL == "" && profile.ProfilePictureURL != nil {
		athlete.ProfilePictureURL = *profile.ProfilePictureURL
	}
	return nil
}

// fail records a failed run. The audit write is best effort.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, run *db.SyncRun, outcome string, cause error) {
	finished := s.now()
	msg := cause.Error()
	run.FinishedAt = finished
	run.Error = &msg

	logger.Error("sync failed", slog.String("outcome", outcome), slog.Any("error", cause))
	if err := s.runs.Record(ctx, run); err != nil {
		logger.Error("recording sync run", slog.Any("error", err))
	}
	observability.RecordSync(outcome, run.Fetched, 0, 0, finished.Sub(run.StartedAt))
}

func feedback(written int) string {
	if written == 0 {
		return upToDateMessage
	}
	return fmt.Sprintf(uploadedMessage, written)
}
