// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/user/telecode/internal/session"
)

// Server is a lightweight HTTP handler for local administrative endpoints.
// It is read-only: sessions are created and ended through the chat
// transport, never over HTTP.
type Server struct {
	sessions *session.Manager
	mux      *http.ServeMux
}

// NewServer creates an admin Server over the given session manager.
func NewServer(sessions *session.Manager) *Server {
	s := &Server{
		sessions: sessions,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type sessionResponse struct {
	ID           string `json:"id"`
	Owner        int64  `json:"owner"`
	WorkingDir   string `json:"working_dir"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
}

// handleSessions returns the active sessions, most recently active first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	active := s.sessions.ListActive()

	result := make([]sessionResponse, 0, len(active))
	for _, sess := range active {
		result = append(result, sessionResponse{
			ID:           string(sess.ID),
			Owner:        int64(sess.Owner),
			WorkingDir:   sess.WorkingDir,
			State:        string(sess.State),
			CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
			LastActiveAt: sess.LastActiveAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
