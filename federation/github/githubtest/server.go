// Package githubtest runs a stand-in for the GitHub OAuth and user APIs.
package githubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

const (
	ClientID     = "gh-client"
	ClientSecret = "gh-secret"
	AccessToken  = "gho_test_token"
)

// Server records what the provider was sent.
type Server struct {
	*httptest.Server

	Login string

	mu         sync.Mutex
	userStatus int
	requests   int
	tokenForm  url.Values
	authz      string
}

// NewServer starts a fake GitHub that authenticates every code as login.
func NewServer(t *testing.T, login string) *Server {
	t.Helper()
	s := &Server{Login: login, userStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", s.token)
	mux.HandleFunc("/user", s.user)
	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)
	return s
}

// Configuration returns a tenant custom IdP document pointing at the server.
func (s *Server) Configuration() string {
	raw, _ := json.Marshal(map[string]any{
		"ext_type": "github",
		"github": map[string]string{
			"client_id":     ClientID,
			"client_secret": ClientSecret,
			"auth_url":      s.URL + "/login/oauth/authorize",
			"token_url":     s.URL + "/login/oauth/access_token",
			"api_url":       s.URL,
		},
	})
	return string(raw)
}

// SetUserStatus makes the /user endpoint answer with status.
func (s *Server) SetUserStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userStatus = status
}

func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) TokenForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenForm
}

func (s *Server) UserAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authz
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.tokenForm = r.PostForm
	s.mu.Unlock()
	if r.PostForm.Get("code") == "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"` + AccessToken + `","token_type":"bearer","scope":""}`))
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authz = r.Header.Get("Authorization")
	status := s.userStatus
	s.mu.Unlock()
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"login": s.Login, "id": 1})
}
