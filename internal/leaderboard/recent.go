package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

// Recent activity limits.
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// ActivityView is a stored activity annotated for display.
type ActivityView struct {
	db.Activity
	Category      scoring.Category
	Points        int
	HeartRateZone *scoring.HeartRateZone
	PersonalBest  bool
	WeekStart     time.Time
}

// WeekGroup collects consecutive recent activities from the same week.
type WeekGroup struct {
	WeekStart  time.Time
	Activities []ActivityView
}

// Label reads "Week of Monday, November 10".
func (g WeekGroup) Label() string {
	return "Week of " + g.WeekStart.Format("Monday, January 2")
}

// Recent returns the most recent activities, newest first. limit is clamped
// to [1, MaxRecentLimit]; zero means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]ActivityView, error) {
	limit = ClampRecentLimit(limit)
	activities, err := s.activities.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent activities: %w", err)
	}

	profiles, err := s.profiles.GetMany(ctx, athleteIDs(activities))
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	views := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, s.annotate(a, profiles))
	}
	return views, nil
}

// ClampRecentLimit applies the default and maximum to a requested limit.
func ClampRecentLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

func (s *Service) annotate(a db.Activity, profiles map[int64]db.Profile) ActivityView {
	r := s.engine.Classify(toScoring(a))
	v := ActivityView{
		Activity:      a,
		Category:      r.Category,
		Points:        r.Points,
		HeartRateZone: scoring.ZoneFor(a.AverageHeartrate),
		PersonalBest:  scoring.IsPersonalBest(a.Name),
	}
	if b, ok := s.resolver.Bucket(a.StartDate, a.StartDateLocal, zoneOf(a, profiles)); ok {
		v.WeekStart = week.StartOfWeek(b.At, b.Location)
	}
	return v
}

// GroupByWeek groups views, which must already be ordered, into runs sharing
// a week start. Views without a week start are grouped together.
func GroupByWeek(views []ActivityView) []WeekGroup {
	var groups []WeekGroup
	for _, v := range views {
		n := len(groups)
		if n > 0 && sameDay(groups[n-1].WeekStart, v.WeekStart) {
			groups[n-1].Activities = append(groups[n-1].Activities, v)
			continue
		}
		groups = append(groups, WeekGroup{WeekStart: v.WeekStart, Activities: []ActivityView{v}})
	}
	return groups
}

// sameDay compares calendar dates, ignoring location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
