package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/justestif/go-strava-leaderboard/internal/logging"
)

const redisSessionPrefix = "session:"

// redisSession is the JSON value stored per session key.
type redisSession struct {
	AthleteID    int64     `json:"athlete_id"`
	AthleteName  string    `json:"athlete_name"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry"`
	CreatedAt    time.Time `json:"created_at"`
}

// RedisSessionStore manages sessions in Redis. Keys expire with the session.
type RedisSessionStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, logger *slog.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		logger: logging.OrDiscard(logger).With(slog.String("component", "sessions")),
	}
}

// Create generates a new session and stores it with the session TTL.
func (s *RedisSessionStore) Create(ctx context.Context, token *oauth2.Token, athleteID int64, athleteName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	value := redisSession{
		AthleteID:    athleteID,
		AthleteName:  athleteName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, redisSessionPrefix+id, encoded, sessionTTL).Err(); err != nil {
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

// Get retrieves a session by ID. Missing, expired or unreadable sessions return nil.
func (s *RedisSessionStore) Get(ctx context.Context, id string) *Session {
	value, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("loading session", slog.Any("error", err))
		}
		return nil
	}

	return &Session{
		ID: id,
		Token: &oauth2.Token{
			AccessToken:  value.AccessToken,
			RefreshToken: value.RefreshToken,
			Expiry:       value.TokenExpiry,
			TokenType:    "Bearer",
		},
		AthleteID:   value.AthleteID,
		AthleteName: value.AthleteName,
		CreatedAt:   value.CreatedAt,
	}
}

// Delete removes a session.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) {
	if err := s.client.Del(ctx, redisSessionPrefix+id).Err(); err != nil {
		s.logger.Warn("deleting session", slog.Any("error", err))
	}
}

// UpdateToken replaces the OAuth token, keeping the remaining TTL.
func (s *RedisSessionStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) {
	value, err := s.load(ctx, id)
	if err != nil {
		return
	}
	value.AccessToken = token.AccessToken
	value.RefreshToken = token.RefreshToken
	value.TokenExpiry = token.Expiry

	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, redisSessionPrefix+id, encoded, redis.KeepTTL).Err(); err != nil {
		s.logger.Warn("updating session token", slog.Any("error", err))
	}
}

// GetFromRequest extracts the session from the request cookie.
func (s *RedisSessionStore) GetFromRequest(r *http.Request) *Session {
	return sessionFromCookie(r, s.Get)
}

// SetCookie sets the session cookie on the response.
func (s *RedisSessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *RedisSessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

func (s *RedisSessionStore) load(ctx context.Context, id string) (*redisSession, error) {
	raw, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}
	var value redisSession
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return &value, nil
}
