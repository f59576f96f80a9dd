package db

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a connected Strava athlete.
type Profile struct {
	ID                int64
	Firstname         string
	Lastname          string
	ProfilePictureURL *string // nullable
	Timezone          *string // nullable - provider descriptor, e.g. "(GMT-08:00) America/Los_Angeles"
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time // nullable
	LastSyncAt        *time.Time // nullable
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	switch {
	case p.Firstname == "":
		return p.Lastname
	case p.Lastname == "":
		return p.Firstname
	default:
		return p.Firstname + " " + p.Lastname
	}
}

// Activity represents one Strava workout.
type Activity struct {
	ID               int64
	AthleteID        int64
	AthleteName      string
	Name             string
	ActivityType     string
	Distance         float64 // meters
	ElapsedTime      int     // seconds
	StartDate        time.Time
	StartDateLocal   time.Time // wall clock in the athlete's zone, location is UTC
	Timezone         *string   // nullable
	ElevationGain    *float64  // nullable
	AverageHeartrate *float64  // nullable
	TotalPhotoCount  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session represents an authenticated web session.
type Session struct {
	ID           string
	AthleteID    int64
	AthleteName  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// SyncRun records one reconciliation attempt.
type SyncRun struct {
	ID         uuid.UUID
	AthleteID  int64
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Inserted   int
	Updated    int
	Error      *string // nullable
}
