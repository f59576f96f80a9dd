package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/go-strava-leaderboard/internal/db"
	"github.com/justestif/go-strava-leaderboard/internal/logging"
)

// SessionRows persists session rows. *db.SessionRepository implements it.
type SessionRows interface {
	Create(ctx context.Context, session *db.Session) error
	Get(ctx context.Context, id string) (*db.Session, error)
	Delete(ctx context.Context, id string) error
	UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
	DeleteExpired(ctx context.Context) (int64, error)
}

var _ SessionRows = (*db.SessionRepository)(nil)

// DBSessionStore manages sessions in PostgreSQL.
type DBSessionStore struct {
	rows   SessionRows
	logger *slog.Logger
}

// NewDBSessionStore creates a new database-backed session store.
func NewDBSessionStore(rows SessionRows, logger *slog.Logger) *DBSessionStore {
	return &DBSessionStore{
		rows:   rows,
		logger: logging.OrDiscard(logger).With(slog.String("component", "sessions")),
	}
}

// Create generates a new session and stores it in the database.
func (s *DBSessionStore) Create(ctx context.Context, token *oauth2.Token, athleteID int64, athleteName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	row := &db.Session{
		ID:           id,
		AthleteID:    athleteID,
		AthleteName:  athleteName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(sessionTTL),
	}
	if err := s.rows.Create(ctx, row); err != nil {
		return nil, err
	}

	return &Session{
		ID:          id,
		Token:       token,
		AthleteID:   athleteID,
		AthleteName: athleteName,
		CreatedAt:   now,
	}, nil
}

// Get retrieves a session by ID from the database.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	row, err := s.rows.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("loading session", slog.Any("error", err))
		}
		return nil
	}

	return &Session{
		ID: row.ID,
		Token: &oauth2.Token{
			AccessToken:  row.AccessToken,
			RefreshToken: row.RefreshToken,
			Expiry:       row.TokenExpiry,
			TokenType:    "Bearer",
		},
		AthleteID:   row.AthleteID,
		AthleteName: row.AthleteName,
		CreatedAt:   row.CreatedAt,
	}
}

// Delete removes a session from the database.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	if err := s.rows.Delete(ctx, id); err != nil {
		s.logger.Warn("deleting session", slog.Any("error", err))
	}
}

// UpdateToken updates the OAuth token for a session in the database.
func (s *DBSessionStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) {
	if err := s.rows.UpdateToken(ctx, id, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		s.logger.Warn("updating session token", slog.Any("error", err))
	}
}

// GetFromRequest extracts the session from the request cookie.
func (s *DBSessionStore) GetFromRequest(r *http.Request) *Session {
	return sessionFromCookie(r, s.Get)
}

// SetCookie sets the session cookie on the response.
func (s *DBSessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *DBSessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// PurgeExpired deletes expired session rows.
func (s *DBSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.rows.DeleteExpired(ctx)
}
