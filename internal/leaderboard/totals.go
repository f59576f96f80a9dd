package leaderboard

import (
	"sort"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
)

// AthleteTotals is one athlete's lifetime tally.
type AthleteTotals struct {
	AthleteID         int64
	AthleteName       string
	ProfilePictureURL *string
	Activities        int
	Distance          float64 // meters
	ElapsedTime       int     // seconds
	Points            int
	Categories        map[scoring.Category]int
}

// Totals folds every activity into per-athlete lifetime totals, sorted by
// points descending. Ties keep first-seen order.
func Totals(activities []db.Activity, profiles map[int64]db.Profile, engine *scoring.Engine) []AthleteTotals {
	if engine == nil {
		engine = scoring.NewEngine()
	}

	index := make(map[int64]int)
	var totals []AthleteTotals
	for _, a := range activities {
		i, ok := index[a.AthleteID]
		if !ok {
			acc := newAccumulator(a, profiles)
			totals = append(totals, AthleteTotals{
				AthleteID:         acc.athleteID,
				AthleteName:       acc.name,
				ProfilePictureURL: acc.picture,
				Categories:        acc.categories,
			})
			i = len(totals) - 1
			index[a.AthleteID] = i
		}

		t := &totals[i]
		t.Activities++
		t.Distance += a.Distance
		t.ElapsedTime += a.ElapsedTime
		if r := engine.Classify(toScoring(a)); r.Scored() {
			t.Points += r.Points
			t.Categories[r.Category]++
		}
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Points > totals[j].Points
	})
	return totals
}
