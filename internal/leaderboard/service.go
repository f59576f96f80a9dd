package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
	"github.com/justestif/go-strava-leaderboard/internal/observability"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

// candidateMargin widens the stored local-time range so that activities whose
// week is computed in another zone are still fetched.
const candidateMargin = 2 * 24 * time.Hour

// ActivityReader reads stored activities.
type ActivityReader interface {
	BetweenLocal(ctx context.Context, from, to time.Time) ([]db.Activity, error)
	Recent(ctx context.Context, limit int) ([]db.Activity, error)
	All(ctx context.Context) ([]db.Activity, error)
}

// ProfileReader reads athlete profiles by ID.
type ProfileReader interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]db.Profile, error)
}

// Board is a computed weekly leaderboard with navigation.
type Board struct {
	WeekStart    time.Time
	Previous     time.Time
	Next         time.Time
	NextDisabled bool
	Entries      []Entry
}

// Service computes leaderboards from stored data.
type Service struct {
	activities ActivityReader
	profiles   ProfileReader
	engine     *scoring.Engine
	resolver   week.Resolver
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEngine sets the scoring engine.
func WithEngine(engine *scoring.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

// WithResolver sets how week boundaries are resolved.
func WithResolver(r week.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
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

// NewService creates a leaderboard service.
func NewService(activities ActivityReader, profiles ProfileReader, opts ...Option) *Service {
	s := &Service{
		activities: activities,
		profiles:   profiles,
		engine:     scoring.NewEngine(),
		resolver:   week.Resolver{Mode: week.ModeAthlete},
		now:        time.Now,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "leaderboard"))
	return s
}

// Weekly computes the leaderboard for the week containing ref. Navigation
// dates are labelled in the resolver's display location.
func (s *Service) Weekly(ctx context.Context, ref week.Reference) (*Board, error) {
	window := ref.Window(s.resolver.DisplayLocation())

	candidates, err := s.activities.BetweenLocal(ctx,
		window.Start.Add(-candidateMargin),
		window.End.Add(candidateMargin),
	)
	if err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}

	profiles, err := s.profiles.GetMany(ctx, athleteIDs(candidates))
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	entries := Aggregate(candidates, profiles, ref, Config{
		Engine:   s.engine,
		Resolver: s.resolver,
		Logger:   s.logger,
	})
	observability.RecordBoardComputed()

	s.logger.Debug("weekly leaderboard computed",
		slog.String("week_start", window.Label()),
		slog.Int("candidates", len(candidates)),
		slog.Int("entries", len(entries)),
	)

	return &Board{
		WeekStart:    window.Start,
		Previous:     window.Previous().Start,
		Next:         window.Next().Start,
		NextDisabled: window.IsCurrentOrFuture(s.now()),
		Entries:      entries,
	}, nil
}

// Lifetime computes all-time totals for every athlete.
func (s *Service) Lifetime(ctx context.Context) ([]AthleteTotals, error) {
	activities, err := s.activities.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	profiles, err := s.profiles.GetMany(ctx, athleteIDs(activities))
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	return Totals(activities, profiles, s.engine), nil
}

func athleteIDs(activities []db.Activity) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, a := range activities {
		if !seen[a.AthleteID] {
			seen[a.AthleteID] = true
			ids = append(ids, a.AthleteID)
		}
	}
	return ids
}
