package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/go-strava-leaderboard/internal/auth"
	"github.com/justestif/go-strava-leaderboard/internal/leaderboard"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
	"github.com/justestif/go-strava-leaderboard/internal/strava"
	syncsvc "github.com/justestif/go-strava-leaderboard/internal/sync"
	"github.com/justestif/go-strava-leaderboard/internal/week"
)

const stateCookieName = "oauth_state"

// OAuth is the part of auth.Authenticator the handlers use.
type OAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, *strava.Athlete, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// Reconciler is the part of sync.Service the handlers use.
type Reconciler interface {
	Connect(ctx context.Context, athlete syncsvc.AthleteContext) error
	Reconcile(ctx context.Context, fetcher syncsvc.ActivityFetcher, athlete syncsvc.AthleteContext) (*syncsvc.Result, error)
	LastSyncTime(ctx context.Context, athleteID int64) (*time.Time, error)
}

// Boards is the part of leaderboard.Service the handlers use.
type Boards interface {
	Weekly(ctx context.Context, ref week.Reference) (*leaderboard.Board, error)
	Lifetime(ctx context.Context) ([]leaderboard.AthleteTotals, error)
	Recent(ctx context.Context, limit int) ([]leaderboard.ActivityView, error)
}

var (
	_ OAuth      = (*auth.Authenticator)(nil)
	_ Reconciler = (*syncsvc.Service)(nil)
	_ Boards     = (*leaderboard.Service)(nil)
)

// FetcherFactory builds an activity fetcher around an authorized HTTP client.
type FetcherFactory func(client *http.Client) syncsvc.ActivityFetcher

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth       OAuth
	sessions   SessionManager
	templates  *Templates
	sync       Reconciler
	boards     Boards
	newFetcher FetcherFactory
	now        func() time.Time
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(oauth OAuth, sessions SessionManager, templates *Templates, sync Reconciler, boards Boards, newFetcher FetcherFactory, logger *slog.Logger) *Handlers {
	if newFetcher == nil {
		newFetcher = func(client *http.Client) syncsvc.ActivityFetcher {
			return strava.NewClient(client)
		}
	}
	return &Handlers{
		auth:       oauth,
		sessions:   sessions,
		templates:  templates,
		sync:       sync,
		boards:     boards,
		newFetcher: newFetcher,
		now:        time.Now,
		logger:     logging.OrDiscard(logger).With(slog.String("component", "web")),
	}
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)

	data := HomePageData{
		PageData:      h.pageData(r, session, "Weekly Leaderboard"),
		Authenticated: session != nil,
	}
	if session != nil {
		last, err := h.sync.LastSyncTime(r.Context(), session.AthleteID)
		if err != nil {
			h.logger.Warn("loading last sync time", slog.Any("error", err))
		}
		data.LastSyncAt = last
	}

	h.render(w, "home", data)
}

// LeaderboardPage renders the weekly leaderboard (GET /leaderboard?week=YYYY-MM-DD).
func (h *Handlers) LeaderboardPage(w http.ResponseWriter, r *http.Request) {
	ref, err := week.ParseReference(r.URL.Query().Get("week"), h.now())
	if err != nil {
		http.Error(w, "Invalid week, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	board, err := h.boards.Weekly(r.Context(), ref)
	if err != nil {
		h.logger.Error("computing weekly leaderboard", slog.Any("error", err))
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	lifetime, err := h.boards.Lifetime(r.Context())
	if err != nil {
		h.logger.Error("computing lifetime totals", slog.Any("error", err))
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	h.render(w, "leaderboard", LeaderboardPageData{
		PageData: h.pageData(r, h.sessions.GetFromRequest(r), "Leaderboard"),
		Board:    board,
		Lifetime: lifetime,
	})
}

// LeaderboardFragment renders only the weekly table (GET /partials/leaderboard).
func (h *Handlers) LeaderboardFragment(w http.ResponseWriter, r *http.Request) {
	ref, err := week.ParseReference(r.URL.Query().Get("week"), h.now())
	if err != nil {
		http.Error(w, "Invalid week, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	board, err := h.boards.Weekly(r.Context(), ref)
	if err != nil {
		h.logger.Error("computing weekly leaderboard", slog.Any("error", err))
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.RenderPartial(w, "leaderboard_table", board); err != nil {
		h.logger.Error("rendering partial", slog.Any("error", err))
	}
}

// ActivitiesPage renders recent activities grouped by week (GET /activities).
func (h *Handlers) ActivitiesPage(w http.ResponseWriter, r *http.Request) {
	views, err := h.boards.Recent(r.Context(), leaderboard.DefaultRecentLimit)
	if err != nil {
		h.logger.Error("loading recent activities", slog.Any("error", err))
		http.Error(w, "Failed to load activities", http.StatusInternalServerError)
		return
	}

	h.render(w, "activities", ActivitiesPageData{
		PageData: h.pageData(r, h.sessions.GetFromRequest(r), "Recent activities"),
		Groups:   leaderboard.GroupByWeek(views),
	})
}

// Login initiates the Strava OAuth flow (GET /auth/strava).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Strava (GET /auth/strava/callback).
// It stores the athlete's profile, opens a session and runs a first sync.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if err := auth.VerifyState(stateCookie.Value, r.URL.Query().Get("state")); err != nil {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, fmt.Sprintf("Strava auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	token, athlete, err := h.auth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("exchanging OAuth code", slog.Any("error", err))
		http.Error(w, "Failed to get token", http.StatusBadGateway)
		return
	}

	athleteCtx := athleteContext(athlete, token)
	if err := h.sync.Connect(r.Context(), athleteCtx); err != nil {
		h.logger.Error("storing profile", slog.Any("error", err))
		http.Error(w, "Failed to store profile", http.StatusInternalServerError)
		return
	}

	session, err := h.sessions.Create(r.Context(), token, athlete.ID, displayName(athlete))
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, session)

	athleteCtx.Force = true
	if _, err := h.reconcile(r.Context(), session, athleteCtx); err != nil {
		h.logger.Warn("initial sync failed", slog.Int64("athlete_id", athlete.ID), slog.Any("error", err))
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session and redirects to home (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// reconcile runs a sync with the session's token, refreshing it first when
// it has expired and storing the refreshed token on the session.
func (h *Handlers) reconcile(ctx context.Context, session *Session, athlete syncsvc.AthleteContext) (*syncsvc.Result, error) {
	if session.Token == nil {
		return nil, syncsvc.ErrMissingCredentials
	}
	source := oauth2.ReuseTokenSource(session.Token, h.auth.TokenSource(ctx, session.Token))

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w: %v", strava.ErrUnauthorized, err)
	}
	if token.AccessToken != session.Token.AccessToken {
		h.sessions.UpdateToken(ctx, session.ID, token)
	}
	athlete.AccessToken = token.AccessToken
	athlete.RefreshToken = token.RefreshToken
	athlete.ExpiresAt = token.Expiry

	return h.sync.Reconcile(ctx, h.newFetcher(oauth2.NewClient(ctx, source)), athlete)
}

func (h *Handlers) pageData(r *http.Request, session *Session, title string) PageData {
	data := PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
	}
	if session != nil {
		data.User = &UserData{ID: session.AthleteID, Name: session.AthleteName}
	}
	return data
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.logger.Error("rendering template", slog.String("page", page), slog.Any("error", err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func athleteContext(athlete *strava.Athlete, token *oauth2.Token) syncsvc.AthleteContext {
	return syncsvc.AthleteContext{
		AthleteID:         athlete.ID,
		Firstname:         athlete.Firstname,
		Lastname:          athlete.Lastname,
		ProfilePictureURL: athlete.Profile,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         token.Expiry,
	}
}

func sessionAthlete(session *Session) syncsvc.AthleteContext {
	return syncsvc.AthleteContext{AthleteID: session.AthleteID}
}

func displayName(a *strava.Athlete) string {
	switch {
	case a.Firstname == "":
		return a.Lastname
	case a.Lastname == "":
		return a.Firstname
	default:
		return a.Firstname + " " + a.Lastname
	}
}
