package web

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/go-strava-leaderboard/internal/leaderboard"
	"github.com/justestif/go-strava-leaderboard/internal/strava"
	syncsvc "github.com/justestif/go-strava-leaderboard/internal/sync"
	"github.com/justestif/go-strava-leaderboard/internal/week"
	webassets "github.com/justestif/go-strava-leaderboard/web"
)

// fakeOAuth stands in for the Strava authorization server.
type fakeOAuth struct {
	token       *oauth2.Token
	athlete     *strava.Athlete
	exchangeErr error
	refreshed   *oauth2.Token
}

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://strava.test/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, *strava.Athlete, error) {
	if f.exchangeErr != nil {
		return nil, nil, f.exchangeErr
	}
	if code == "" {
		return nil, nil, errors.New("missing code")
	}
	return f.token, f.athlete, nil
}

func (f *fakeOAuth) TokenSource(_ context.Context, token *oauth2.Token) oauth2.TokenSource {
	if f.refreshed != nil {
		return oauth2.StaticTokenSource(f.refreshed)
	}
	return oauth2.StaticTokenSource(token)
}

// fakeReconciler records what the handlers asked the sync service to do.
type fakeReconciler struct {
	mu         sync.Mutex
	connected  []syncsvc.AthleteContext
	reconciled []syncsvc.AthleteContext
	fetchers   []syncsvc.ActivityFetcher
	result     *syncsvc.Result
	err        error
	lastSync   *time.Time
}

func (f *fakeReconciler) Connect(_ context.Context, a syncsvc.AthleteContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, a)
	return nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, fetcher syncsvc.ActivityFetcher, a syncsvc.AthleteContext) (*syncsvc.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, a)
	f.fetchers = append(f.fetchers, fetcher)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &syncsvc.Result{Message: "Everything is up to date! No new activities found to upload."}, nil
}

func (f *fakeReconciler) LastSyncTime(context.Context, int64) (*time.Time, error) {
	return f.lastSync, nil
}

// fakeBoards serves canned leaderboards.
type fakeBoards struct {
	board    *leaderboard.Board
	lifetime []leaderboard.AthleteTotals
	recent   []leaderboard.ActivityView
	err      error
	gotRef   week.Reference
	gotLimit int
}

func (f *fakeBoards) Weekly(_ context.Context, ref week.Reference) (*leaderboard.Board, error) {
	f.gotRef = ref
	if f.err != nil {
		return nil, f.err
	}
	return f.board, nil
}

func (f *fakeBoards) Lifetime(context.Context) ([]leaderboard.AthleteTotals, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lifetime, nil
}

func (f *fakeBoards) Recent(_ context.Context, limit int) ([]leaderboard.ActivityView, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

type fakeFetcher struct{}

func (fakeFetcher) ListActivities(context.Context, strava.ListOptions) ([]strava.SummaryActivity, error) {
	return nil, nil
}

type testDeps struct {
	auth     *fakeOAuth
	sessions *SessionStore
	sync     *fakeReconciler
	boards   *fakeBoards
}

func newTestDeps() *testDeps {
	start := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	picture := "https://example.com/alex.png"
	return &testDeps{
		auth: &fakeOAuth{
			token:   &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)},
			athlete: &strava.Athlete{ID: 7, Firstname: "Alex", Lastname: "Runner", Profile: picture},
		},
		sessions: NewSessionStore(),
		sync:     &fakeReconciler{},
		boards: &fakeBoards{
			board: &leaderboard.Board{
				WeekStart: start,
				Previous:  start.AddDate(0, 0, -7),
				Next:      start.AddDate(0, 0, 7),
				Entries: []leaderboard.Entry{
					{Rank: 1, AthleteID: 7, AthleteName: "Alex Runner", ProfilePictureURL: &picture, Points: 2, Summary: "Runs: 2"},
				},
			},
			lifetime: []leaderboard.AthleteTotals{
				{AthleteID: 7, AthleteName: "Alex Runner", Activities: 3, Distance: 15000, ElapsedTime: 5400, Points: 3},
			},
		},
	}
}

func mustTemplatesFS(t *testing.T) fs.FS {
	t.Helper()
	templatesFS, err := fs.Sub(webassets.TemplatesFS, "templates")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	return templatesFS
}

func newTestServer(t *testing.T, deps *testDeps) http.Handler {
	t.Helper()
	templatesFS := mustTemplatesFS(t)
	staticFS, err := fs.Sub(webassets.StaticFS, "static")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}

	srv, err := NewServer(ServerConfig{
		TemplatesFS: templatesFS,
		StaticFS:    staticFS,
		Auth:        deps.auth,
		Sessions:    deps.sessions,
		Sync:        deps.sync,
		Boards:      deps.boards,
		NewFetcher:  func(*http.Client) syncsvc.ActivityFetcher { return fakeFetcher{} },
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv.Handler()
}

// login stores a session and returns its cookie.
func login(t *testing.T, deps *testDeps) *http.Cookie {
	t.Helper()
	session, err := deps.sessions.Create(context.Background(), deps.auth.token, 7, "Alex Runner")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: session.ID}
}

func TestLoginRedirectsWithState(t *testing.T) {
	handler := newTestServer(t, newTestDeps())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/strava", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}

	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("state cookie not set")
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "state="+state) {
		t.Errorf("Location = %q, want state %q", loc, state)
	}
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		query       string
		exchangeErr error
		wantStatus  int
		wantSession bool
	}{
		{
			name:       "missing state cookie",
			query:      "state=abc&code=xyz",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "state mismatch",
			cookie:     "abc",
			query:      "state=other&code=xyz",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "athlete denied access",
			cookie:     "abc",
			query:      "state=abc&error=access_denied",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "exchange fails",
			cookie:      "abc",
			query:       "state=abc&code=xyz",
			exchangeErr: errors.New("bad code"),
			wantStatus:  http.StatusBadGateway,
		},
		{
			name:        "success",
			cookie:      "abc",
			query:       "state=abc&code=xyz",
			wantStatus:  http.StatusTemporaryRedirect,
			wantSession: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.auth.exchangeErr = tt.exchangeErr
			handler := newTestServer(t, deps)

			req := httptest.NewRequest(http.MethodGet, "/auth/strava/callback?"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var sessionID string
			for _, c := range rec.Result().Cookies() {
				if c.Name == sessionCookieName {
					sessionID = c.Value
				}
			}
			if (sessionID != "") != tt.wantSession {
				t.Fatalf("session cookie = %q, wantSession %v", sessionID, tt.wantSession)
			}
			if !tt.wantSession {
				if len(deps.sync.connected) != 0 || len(deps.sync.reconciled) != 0 {
					t.Error("failed callback should not touch the sync service")
				}
				return
			}

			session := deps.sessions.Get(context.Background(), sessionID)
			if session == nil || session.AthleteID != 7 || session.AthleteName != "Alex Runner" {
				t.Fatalf("stored session = %+v", session)
			}
			if len(deps.sync.connected) != 1 || deps.sync.connected[0].ProfilePictureURL != "https://example.com/alex.png" {
				t.Errorf("connected = %+v", deps.sync.connected)
			}
			if len(deps.sync.reconciled) != 1 || !deps.sync.reconciled[0].Force {
				t.Errorf("initial sync = %+v, want one forced run", deps.sync.reconciled)
			}
		})
	}
}

func TestCallbackSurvivesFailedInitialSync(t *testing.T) {
	deps := newTestDeps()
	deps.sync.err = syncsvc.ErrUpstream
	handler := newTestServer(t, deps)

	req := httptest.NewRequest(http.MethodGet, "/auth/strava/callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
}

func TestLogout(t *testing.T) {
	deps := newTestDeps()
	handler := newTestServer(t, deps)
	cookie := login(t, deps)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if deps.sessions.Get(context.Background(), cookie.Value) != nil {
		t.Error("session still present after logout")
	}
}

func TestPages(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		loggedIn   bool
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "home anonymous",
			path:       "/",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Connect with Strava"},
		},
		{
			name:       "home logged in",
			path:       "/",
			loggedIn:   true,
			wantStatus: http.StatusOK,
			wantBody:   []string{"Upload my latest activities", "Not synced yet", "Log out Alex Runner"},
		},
		{
			name:       "leaderboard",
			path:       "/leaderboard?week=2025-11-12",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Week of Nov 10, 2025", "Alex Runner", "Runs: 2", "week=2025-11-03", "week=2025-11-17", "15.00 km"},
		},
		{
			name:       "leaderboard bad week",
			path:       "/leaderboard?week=soon",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "leaderboard fragment",
			path:       "/partials/leaderboard",
			wantStatus: http.StatusOK,
			wantBody:   []string{`id="weekly-board"`, "Alex Runner"},
		},
		{
			name:       "activities",
			path:       "/activities",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Recent activities", "Nothing uploaded yet."},
		},
		{
			name:       "static css",
			path:       "/static/style.css",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			handler := newTestServer(t, deps)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.loggedIn {
				req.AddCookie(login(t, deps))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := rec.Body.String()
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestLeaderboardPageStorageError(t *testing.T) {
	deps := newTestDeps()
	deps.boards.err = errors.New("connection refused")
	handler := newTestServer(t, deps)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
