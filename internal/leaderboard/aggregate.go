// Package leaderboard ranks athletes by weekly and lifetime points.
package leaderboard

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
	"github.com/justestif/go-strava-leaderboard/internal/observability"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

// Config carries what Aggregate needs besides the data.
type Config struct {
	Engine   *scoring.Engine
	Resolver week.Resolver
	Logger   *slog.Logger
}

func (c Config) engine() *scoring.Engine {
	if c.Engine == nil {
		return scoring.NewEngine()
	}
	return c.Engine
}

// Entry is one athlete's row on a weekly leaderboard.
type Entry struct {
	Rank              int
	AthleteID         int64
	AthleteName       string
	ProfilePictureURL *string
	Points            int
	Categories        map[scoring.Category]int
	Summary           string
}

type accumulator struct {
	athleteID  int64
	name       string
	picture    *string
	points     int
	categories map[scoring.Category]int
}

func newAccumulator(a db.Activity, profiles map[int64]db.Profile) *accumulator {
	acc := &accumulator{
		athleteID:  a.AthleteID,
		name:       a.AthleteName,
		categories: make(map[scoring.Category]int),
	}
	if p, ok := profiles[a.AthleteID]; ok {
		if name := p.DisplayName(); name != "" {
			acc.name = name
		}
		acc.picture = p.ProfilePictureURL
	}
	return acc
}

func (acc *accumulator) add(r scoring.Result) {
	if !r.Scored() {
		return
	}
	acc.points += r.Points
	acc.categories[r.Category]++
}

// Aggregate ranks athletes by points earned in the week identified by ref.
// Each activity is bucketed through cfg.Resolver, using the activity's zone or
// else the athlete's profile zone, and counted when it falls in
// the week computed in the bucket's location. Only athletes with at least one
// in-week activity appear. Ties keep the order athletes were first seen in
// activities.
func Aggregate(activities []db.Activity, profiles map[int64]db.Profile, ref week.Reference, cfg Config) []Entry {
	engine := cfg.engine()
	logger := logging.OrDiscard(cfg.Logger)

	byAthlete := make(map[int64]*accumulator)
	var order []*accumulator

	for _, a := range activities {
		bucket, ok := cfg.Resolver.Bucket(a.StartDate, a.StartDateLocal, zoneOf(a, profiles))
		if !ok {
			logger.Warn("skipping activity without a usable start time",
				slog.Int64("activity_id", a.ID),
				slog.Int64("athlete_id", a.AthleteID),
			)
			observability.RecordActivitySkipped("no_timestamp")
			continue
		}
		if !ref.Window(bucket.Location).Contains(bucket.At) {
			continue
		}

		acc, seen := byAthlete[a.AthleteID]
		if !seen {
			acc = newAccumulator(a, profiles)
			byAthlete[a.AthleteID] = acc
			order = append(order, acc)
		}
		acc.add(engine.Classify(toScoring(a)))
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].points > order[j].points
	})

	entries := make([]Entry, len(order))
	for i, acc := range order {
		entries[i] = Entry{
			Rank:              i + 1,
			AthleteID:         acc.athleteID,
			AthleteName:       acc.name,
			ProfilePictureURL: acc.picture,
			Points:            acc.points,
			Categories:        acc.categories,
			Summary:           Summary(acc.categories),
		}
	}
	return entries
}

// Summary renders category counts in fixed order, e.g.
// "Walks: 2, Runs: 1, Other: 3". Zero counts are left out.
func Summary(counts map[scoring.Category]int) string {
	var parts []string
	for _, c := range scoring.Categories {
		if n := counts[c]; n > 0 {
			parts = append(parts, c.Label()+": "+strconv.Itoa(n))
		}
	}
	return strings.Join(parts, ", ")
}

func toScoring(a db.Activity) scoring.Activity {
	return scoring.Activity{
		Type:        a.ActivityType,
		Distance:    a.Distance,
		ElapsedTime: a.ElapsedTime,
	}
}

// zoneOf returns the activity's zone descriptor, falling back to the zone
// stored on the athlete's profile.
func zoneOf(a db.Activity, profiles map[int64]db.Profile) string {
	if tz := deref(a.Timezone); tz != "" {
		return tz
	}
	return deref(profiles[a.AthleteID].Timezone)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
