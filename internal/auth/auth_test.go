package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func newTestAuthenticator(t *testing.T, tokenURL string) *Authenticator {
	t.Helper()
	a, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/strava/callback",
	}, WithEndpoint(oauth2.Endpoint{
		AuthURL:   "https://www.strava.com/oauth/authorize",
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no id", cfg: Config{ClientSecret: "secret"}},
		{name: "no secret", cfg: Config{ClientID: "id"}},
		{name: "empty", cfg: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestAuthURL(t *testing.T) {
	a := newTestAuthenticator(t, "http://unused")

	raw := a.AuthURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := u.Query()

	checks := map[string]string{
		"client_id":       "client-id",
		"response_type":   "code",
		"scope":           Scope,
		"state":           "state-123",
		"approval_prompt": "force",
		"redirect_uri":    "http://localhost:8080/auth/strava/callback",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestExchange(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantAthlete int64
		wantErr     error
	}{
		{
			name: "token with athlete",
			body: `{"token_type":"Bearer","access_token":"access","refresh_token":"refresh",
				"expires_at":1762800000,"expires_in":21600,
				"athlete":{"id":7,"firstname":"Alex","lastname":"Runner","profile":"https://example.com/a.png"}}`,
			wantAthlete: 7,
		},
		{
			name:    "token without athlete",
			body:    `{"token_type":"Bearer","access_token":"access","refresh_token":"refresh","expires_in":21600}`,
			wantErr: ErrMissingAthlete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parsing form: %v", err)
				}
				if got := r.PostForm.Get("code"); got != "auth-code" {
					t.Errorf("code = %q, want auth-code", got)
				}
				if got := r.PostForm.Get("client_secret"); got != "client-secret" {
					t.Errorf("client_secret = %q, want credentials in body", got)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a := newTestAuthenticator(t, server.URL)
			token, athlete, err := a.Exchange(context.Background(), "auth-code")

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Exchange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if token.AccessToken != "access" || token.RefreshToken != "refresh" {
				t.Errorf("token = %+v", token)
			}
			if athlete.ID != tt.wantAthlete || athlete.Firstname != "Alex" {
				t.Errorf("athlete = %+v", athlete)
			}
		})
	}
}

func TestVerifyState(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		got      string
		wantErr  error
	}{
		{name: "match", expected: "abc", got: "abc"},
		{name: "mismatch", expected: "abc", got: "xyz", wantErr: ErrStateMismatch},
		{name: "missing cookie", expected: "", got: "", wantErr: ErrStateMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyState(tt.expected, tt.got); !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyState() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if a == b {
		t.Error("GenerateState() returned the same value twice")
	}
}
