package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

const (
	laZone     = "(GMT-08:00) America/Los_Angeles"
	londonZone = "(GMT+00:00) Europe/London"
)

var weekOfNov10 = week.Date(2025, time.November, 10)

// activity builds a stored activity starting at the given wall clock in zone.
func activity(id, athleteID int64, kind string, distance float64, elapsed int, zone string, local time.Time) db.Activity {
	a := db.Activity{
		ID:             id,
		AthleteID:      athleteID,
		AthleteName:    "athlete",
		ActivityType:   kind,
		Distance:       distance,
		ElapsedTime:    elapsed,
		StartDateLocal: local,
	}
	if loc, ok := week.ParseZone(zone); ok {
		y, m, d := local.Date()
		hh, mm, ss := local.Clock()
		a.StartDate = time.Date(y, m, d, hh, mm, ss, 0, loc).UTC()
		a.Timezone = &zone
	} else {
		a.StartDate = local
	}
	return a
}

func wall(day, hour int) time.Time {
	return time.Date(2025, time.November, day, hour, 0, 0, 0, time.UTC)
}

func TestAggregateFootballOnlyWeek(t *testing.T) {
	activities := []db.Activity{
		activity(1, 100, "Football", 0, 3600, londonZone, wall(12, 18)),
		activity(2, 200, "Run", 5000, 1500, londonZone, wall(3, 8)), // previous week
	}
	profiles := map[int64]db.Profile{
		100: {ID: 100, Firstname: "Ana", Lastname: "Silva"},
		200: {ID: 200, Firstname: "Ben", Lastname: "Okoro"},
	}

	entries := Aggregate(activities, profiles, weekOfNov10, Config{})

	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].AthleteID)
	assert.Equal(t, "Ana Silva", entries[0].AthleteName)
	assert.Equal(t, 1, entries[0].Points)
	assert.Equal(t, "Football: 1", entries[0].Summary)
	assert.Equal(t, 1, entries[0].Rank)
}

func TestAggregateStableTies(t *testing.T) {
	activities := []db.Activity{
		activity(1, 1, "Run", 5000, 1500, londonZone, wall(10, 7)),
		activity(2, 2, "Run", 5000, 1500, londonZone, wall(10, 8)),
		activity(3, 1, "Walk", 1000, 2701, londonZone, wall(11, 7)),
		activity(4, 2, "Walk", 4000, 600, londonZone, wall(11, 8)),
		activity(5, 3, "Yoga", 0, 600, londonZone, wall(12, 8)),
	}
	profiles := map[int64]db.Profile{
		1: {ID: 1, Firstname: "A"},
		2: {ID: 2, Firstname: "B"},
	}

	entries := Aggregate(activities, profiles, weekOfNov10, Config{})

	require.Len(t, entries, 3)
	assert.Equal(t, "A", entries[0].AthleteName)
	assert.Equal(t, "B", entries[1].AthleteName)
	assert.Equal(t, 2, entries[0].Points)
	assert.Equal(t, 2, entries[1].Points)
	assert.Equal(t, "Walks: 1, Runs: 1", entries[0].Summary)

	// An athlete whose only in-week activity earned nothing still appears, last.
	assert.Equal(t, int64(3), entries[2].AthleteID)
	assert.Equal(t, "athlete", entries[2].AthleteName, "falls back to the denormalized name")
	assert.Equal(t, 0, entries[2].Points)
	assert.Equal(t, "", entries[2].Summary)
}

func TestAggregateCategoriesSumToPoints(t *testing.T) {
	var activities []db.Activity
	kinds := []struct {
		kind     string
		distance float64
		elapsed  int
	}{
		{"Walk", 3500, 100},
		{"Walk", 100, 100},
		{"Run", 3001, 900},
		{"Run", 3000, 900},
		{"Soccer", 0, 10},
		{"WeightTraining", 0, 1801},
		{"WeightTraining", 0, 1800},
		{"Hike", 8000, 7200},
		{"Ride", 20000, 1799},
		{"", 0, 4000},
	}
	for i, k := range kinds {
		activities = append(activities, activity(int64(i+1), 9, k.kind, k.distance, k.elapsed, londonZone, wall(13, i)))
	}

	entries := Aggregate(activities, nil, weekOfNov10, Config{})
	require.Len(t, entries, 1)

	sum := 0
	for _, n := range entries[0].Categories {
		sum += n
	}
	assert.Equal(t, entries[0].Points, sum)
	assert.Equal(t, 6, entries[0].Points)
	assert.Equal(t, "Walks: 1, Runs: 1, Football: 1, Weight Training: 1, Other: 2", entries[0].Summary)
}

func TestAggregatePerAthleteTimezone(t *testing.T) {
	// Sunday 20:00 in Los Angeles is Monday 04:00 UTC. In the athlete's zone
	// it belongs to the week of Nov 3, not Nov 10.
	la := activity(1, 1, "Run", 5000, 1500, laZone, wall(9, 20))
	// Monday 00:30 in London starts the week of Nov 10.
	london := activity(2, 2, "Run", 5000, 1500, londonZone, wall(10, 0).Add(30*time.Minute))

	entries := Aggregate([]db.Activity{la, london}, nil, weekOfNov10, Config{})
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].AthleteID)

	// In server mode with a UTC server zone the LA run moves into the week.
	server := Config{Resolver: week.Resolver{Mode: week.ModeServer, Server: time.UTC}}
	entries = Aggregate([]db.Activity{la, london}, nil, weekOfNov10, server)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].AthleteID)
}

func TestAggregateProfileTimezoneFallback(t *testing.T) {
	// Monday 05:00 UTC is Sunday 21:00 for an athlete in Los Angeles. The row
	// carries no zone, so the profile's zone decides the week.
	a := db.Activity{
		ID:             1,
		AthleteID:      1,
		ActivityType:   "Run",
		Distance:       5000,
		ElapsedTime:    1500,
		StartDate:      time.Date(2025, time.November, 10, 5, 0, 0, 0, time.UTC),
		StartDateLocal: wall(9, 21),
	}
	tz := laZone
	profiles := map[int64]db.Profile{1: {ID: 1, Firstname: "Lee", Timezone: &tz}}
	cfg := Config{Resolver: week.Resolver{Mode: week.ModeAthlete, Server: time.UTC}}

	assert.Empty(t, Aggregate([]db.Activity{a}, profiles, weekOfNov10, cfg))

	entries := Aggregate([]db.Activity{a}, profiles, week.Date(2025, time.November, 3), cfg)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Points)

	// Without a profile zone the server zone applies.
	entries = Aggregate([]db.Activity{a}, nil, weekOfNov10, cfg)
	require.Len(t, entries, 1)
}

func TestAggregateLocalFallback(t *testing.T) {
	// No zone and no server zone: start_date_local is used as is.
	a := activity(1, 1, "Run", 5000, 1500, "", wall(16, 23))
	a.StartDate = time.Time{}

	entries := Aggregate([]db.Activity{a}, nil, weekOfNov10, Config{})
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Points)

	// Nothing usable at all: skipped.
	b := db.Activity{ID: 2, AthleteID: 2, ActivityType: "Run", Distance: 5000}
	entries = Aggregate([]db.Activity{b}, nil, weekOfNov10, Config{})
	assert.Empty(t, entries)
}

func TestAggregateHalfOpenWindow(t *testing.T) {
	activities := []db.Activity{
		activity(1, 1, "Run", 5000, 1500, londonZone, wall(10, 0)),                      // first instant, in
		activity(2, 2, "Run", 5000, 1500, londonZone, wall(17, 0)),                      // next Monday, out
		activity(3, 3, "Run", 5000, 1500, londonZone, wall(16, 23).Add(59*time.Minute)), // late Sunday, in
	}

	entries := Aggregate(activities, nil, weekOfNov10, Config{})
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].AthleteID)
	assert.Equal(t, int64(3), entries[1].AthleteID)
}

func TestAggregateUsesEngineOptions(t *testing.T) {
	activities := []db.Activity{activity(1, 1, "Football", 0, 1200, londonZone, wall(11, 18))}
	engine := scoring.NewEngine(scoring.WithFootballMinSeconds(1800))

	entries := Aggregate(activities, nil, weekOfNov10, Config{Engine: engine})
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Points)
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name   string
		counts map[scoring.Category]int
		want   string
	}{
		{name: "empty", counts: nil, want: ""},
		{name: "fixed order", counts: map[scoring.Category]int{scoring.Other: 3, scoring.Walk: 2, scoring.Run: 1}, want: "Walks: 2, Runs: 1, Other: 3"},
		{name: "zero omitted", counts: map[scoring.Category]int{scoring.Football: 0, scoring.WeightTraining: 1}, want: "Weight Training: 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.counts))
		})
	}
}

func TestTotals(t *testing.T) {
	activities := []db.Activity{
		activity(1, 1, "Run", 5000, 1500, londonZone, wall(1, 7)),
		activity(2, 2, "Walk", 4000, 3000, londonZone, wall(2, 7)),
		activity(3, 2, "Run", 2000, 700, londonZone, wall(20, 7)),
		activity(4, 2, "Hike", 9000, 5400, londonZone, wall(21, 7)),
	}
	profiles := map[int64]db.Profile{2: {ID: 2, Firstname: "Bea", Lastname: "Lund"}}

	totals := Totals(activities, profiles, nil)
	require.Len(t, totals, 2)

	assert.Equal(t, "Bea Lund", totals[0].AthleteName)
	assert.Equal(t, 3, totals[0].Activities)
	assert.InDelta(t, 15000, totals[0].Distance, 0.001)
	assert.Equal(t, 9100, totals[0].ElapsedTime)
	assert.Equal(t, 2, totals[0].Points)
	assert.Equal(t, 1, totals[0].Categories[scoring.Other])

	assert.Equal(t, int64(1), totals[1].AthleteID)
	assert.Equal(t, 1, totals[1].Points)
}
