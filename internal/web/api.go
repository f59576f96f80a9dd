package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/justestif/go-strava-leaderboard/internal/leaderboard"
	"github.com/justestif/go-strava-leaderboard/internal/scoring"
	"github.com/justestif/go-strava-leaderboard/internal/strava"
	syncsvc "github.com/justestif/go-strava-leaderboard/internal/sync"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

type syncResponse struct {
	UploadedCount int    `json:"uploadedCount"`
	Inserted      int    `json:"inserted"`
	Updated       int    `json:"updated"`
	Message       string `json:"message"`
}

type boardResponse struct {
	WeekStart    string      `json:"week_start"`
	PreviousWeek string      `json:"previous_week"`
	NextWeek     string      `json:"next_week"`
	NextDisabled bool        `json:"next_disabled"`
	Entries      []entryView `json:"entries"`
}

type entryView struct {
	Rank              int            `json:"rank"`
	AthleteID         int64          `json:"athlete_id"`
	AthleteName       string         `json:"athlete_name"`
	ProfilePictureURL *string        `json:"profile_picture_url"`
	Points            int            `json:"points"`
	Summary           string         `json:"summary"`
	Categories        map[string]int `json:"categories"`
}

type activityView struct {
	ID               int64     `json:"id"`
	AthleteID        int64     `json:"athlete_id"`
	AthleteName      string    `json:"athlete_name"`
	Name             string    `json:"name"`
	ActivityType     string    `json:"activity_type"`
	Distance         float64   `json:"distance"`
	ElapsedTime      int       `json:"elapsed_time"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	ElevationGain    *float64  `json:"total_elevation_gain"`
	AverageHeartrate *float64  `json:"average_heartrate"`
	TotalPhotoCount  int       `json:"total_photo_count"`
	Category         string    `json:"category"`
	Points           int       `json:"points"`
	HeartRateZone    *zoneView `json:"heart_rate_zone"`
	PersonalBest     bool      `json:"personal_best"`
	WeekStart        string    `json:"week_start"`
}

type zoneView struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type totalsView struct {
	AthleteID         int64          `json:"athlete_id"`
	AthleteName       string         `json:"athlete_name"`
	ProfilePictureURL *string        `json:"profile_picture_url"`
	Activities        int            `json:"activities"`
	Distance          float64        `json:"distance"`
	ElapsedTime       int            `json:"elapsed_time"`
	Points            int            `json:"points"`
	Categories        map[string]int `json:"categories"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Sync pulls the athlete's recent activities into the store (POST /api/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		h.writeError(w, syncsvc.ErrMissingCredentials)
		return
	}

	result, err := h.reconcile(r.Context(), session, sessionAthlete(session))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		UploadedCount: result.Written(),
		Inserted:      result.Inserted,
		Updated:       result.Updated,
		Message:       result.Message,
	})
}

// WeeklyLeaderboard returns the ranking for one week (GET /api/weekly-leaderboard).
func (h *Handlers) WeeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	ref, err := week.ParseReference(r.URL.Query().Get("week"), h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	board, err := h.boards.Weekly(r.Context(), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBoardResponse(board))
}

// RecentActivities returns the newest activities (GET /api/recent-activities?limit=N).
func (h *Handlers) RecentActivities(w http.ResponseWriter, r *http.Request) {
	limit := leaderboard.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Message: "limit must be an integer",
				Error:   err.Error(),
			})
			return
		}
		limit = n
	}

	views, err := h.boards.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]activityView, 0, len(views))
	for _, v := range views {
		out = append(out, toActivityView(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// LifetimeLeaderboard returns all-time totals per athlete (GET /api/leaderboard).
func (h *Handlers) LifetimeLeaderboard(w http.ResponseWriter, r *http.Request) {
	totals, err := h.boards.Lifetime(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]totalsView, 0, len(totals))
	for _, t := range totals {
		out = append(out, totalsView{
			AthleteID:         t.AthleteID,
			AthleteName:       t.AthleteName,
			ProfilePictureURL: t.ProfilePictureURL,
			Activities:        t.Activities,
			Distance:          t.Distance,
			ElapsedTime:       t.ElapsedTime,
			Points:            t.Points,
			Categories:        categoryCounts(t.Categories),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps service errors to a status code and a JSON body.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, syncsvc.ErrMissingCredentials), errors.Is(err, strava.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Missing or rejected Strava credentials"
	case errors.Is(err, syncsvc.ErrSyncTooRecent):
		status, message = http.StatusTooManyRequests, "Sync attempted too recently"
	case errors.Is(err, week.ErrInvalidReference):
		status, message = http.StatusBadRequest, "Invalid week, expected YYYY-MM-DD"
	case errors.Is(err, syncsvc.ErrUpstream), errors.Is(err, strava.ErrUpstream), errors.Is(err, strava.ErrRateLimited):
		status, message = http.StatusBadGateway, "Failed to fetch activities from Strava"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Message: message, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toBoardResponse(b *leaderboard.Board) boardResponse {
	entries := make([]entryView, 0, len(b.Entries))
	for _, e := range b.Entries {
		entries = append(entries, entryView{
			Rank:              e.Rank,
			AthleteID:         e.AthleteID,
			AthleteName:       e.AthleteName,
			ProfilePictureURL: e.ProfilePictureURL,
			Points:            e.Points,
			Summary:           e.Summary,
			Categories:        categoryCounts(e.Categories),
		})
	}
	return boardResponse{
		WeekStart:    b.WeekStart.Format(week.DateLayout),
		PreviousWeek: b.Previous.Format(week.DateLayout),
		NextWeek:     b.Next.Format(week.DateLayout),
		NextDisabled: b.NextDisabled,
		Entries:      entries,
	}
}

func toActivityView(v leaderboard.ActivityView) activityView {
	out := activityView{
		ID:               v.ID,
		AthleteID:        v.AthleteID,
		AthleteName:      v.AthleteName,
		Name:             v.Name,
		ActivityType:     v.ActivityType,
		Distance:         v.Distance,
		ElapsedTime:      v.ElapsedTime,
		StartDate:        v.StartDate,
		StartDateLocal:   v.StartDateLocal,
		ElevationGain:    v.ElevationGain,
		AverageHeartrate: v.AverageHeartrate,
		TotalPhotoCount:  v.TotalPhotoCount,
		Category:         string(v.Category),
		Points:           v.Points,
		PersonalBest:     v.PersonalBest,
		WeekStart:        v.WeekStart.Format(week.DateLayout),
	}
	if v.HeartRateZone != nil {
		out.HeartRateZone = &zoneView{Name: v.HeartRateZone.Name, Color: v.HeartRateZone.Color}
	}
	return out
}

func categoryCounts(in map[scoring.Category]int) map[string]int {
	out := make(map[string]int, len(in))
	for c, n := range in {
		out[string(c)] = n
	}
	return out
}
