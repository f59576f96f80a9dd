package strava

import "time"

// Athlete is the subset of the Strava athlete resource the app stores.
type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"` // picture URL
}

// SummaryActivity is one entry of GET /athlete/activities.
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`     // meters
	ElapsedTime        int       `json:"elapsed_time"` // seconds
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"` // wall clock, encoded with a Z suffix
	Timezone           string    `json:"timezone"`
	TotalElevationGain *float64  `json:"total_elevation_gain,omitempty"`
	AverageHeartrate   *float64  `json:"average_heartrate,omitempty"`
	TotalPhotoCount    int       `json:"total_photo_count"`
	Athlete            struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// apiError is the error body Strava returns alongside non-2xx statuses.
type apiError struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
		Code     string `json:"code"`
	} `json:"errors"`
}
