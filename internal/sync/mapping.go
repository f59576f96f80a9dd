package sync

import (
	"strings"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/strava"
)

type skippedActivity struct {
	id     int64
	reason string
}

// toActivities maps provider records to rows. Records without an id, a start
// time or with negative measurements are skipped.
func toActivities(records []strava.SummaryActivity, athlete AthleteContext) ([]db.Activity, []skippedActivity) {
	name := displayName(athlete.Firstname, athlete.Lastname)

	out := make([]db.Activity, 0, len(records))
	var skipped []skippedActivity
	for _, r := range records {
		switch {
		case r.ID == 0:
			skipped = append(skipped, skippedActivity{reason: "missing id"})
			continue
		case r.StartDate.IsZero() || r.StartDateLocal.IsZero():
			skipped = append(skipped, skippedActivity{id: r.ID, reason: "missing start time"})
			continue
		case r.Distance < 0 || r.ElapsedTime < 0:
			skipped = append(skipped, skippedActivity{id: r.ID, reason: "negative distance or elapsed time"})
			continue
		}

		athleteID := r.Athlete.ID
		if athleteID == 0 {
			athleteID = athlete.AthleteID
		}

		out = append(out, db.Activity{
			ID:               r.ID,
			AthleteID:        athleteID,
			AthleteName:      name,
			Name:             r.Name,
			ActivityType:     r.Type,
			Distance:         r.Distance,
			ElapsedTime:      r.ElapsedTime,
			StartDate:        r.StartDate.UTC(),
			StartDateLocal:   r.StartDateLocal,
			Timezone:         optional(r.Timezone),
			ElevationGain:    r.TotalElevationGain,
			AverageHeartrate: r.AverageHeartrate,
			TotalPhotoCount:  r.TotalPhotoCount,
		})
	}
	return out, skipped
}

func toProfile(athlete AthleteContext, timezone string) *db.Profile {
	p := &db.Profile{
		ID:                athlete.AthleteID,
		Firstname:         athlete.Firstname,
		Lastname:          athlete.Lastname,
		ProfilePictureURL: optional(athlete.ProfilePictureURL),
		Timezone:          optional(timezone),
		AccessToken:       athlete.AccessToken,
		RefreshToken:      athlete.RefreshToken,
	}
	if !athlete.ExpiresAt.IsZero() {
		expires := athlete.ExpiresAt.UTC()
		p.ExpiresAt = &expires
	}
	return p
}

// newestTimezone returns the zone descriptor of the most recently started
// record that has one.
func newestTimezone(records []strava.SummaryActivity) string {
	var (
		tz     string
		newest strava.SummaryActivity
	)
	for _, r := range records {
		if r.Timezone == "" || r.StartDate.IsZero() {
			continue
		}
		if tz == "" || r.StartDate.After(newest.StartDate) {
			tz, newest = r.Timezone, r
		}
	}
	return tz
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
