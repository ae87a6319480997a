package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/vibechat/relay/internal/server"
)

func (s *RelayApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *RelayApp) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getRoster is a read-only REST view of the roster, the same list the
// relay broadcasts on every change.
func (s *RelayApp) getRoster(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.rs.Roster())
}

// getHistory returns the full message log, unfiltered, matching the
// snapshot a joining connection receives.
func (s *RelayApp) getHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.rs.History())
}

// notFound catches unmatched /api/ paths with a JSON error body instead
// of the mux's plain-text default.
func (s *RelayApp) notFound(w http.ResponseWriter, r *http.Request) {
	errResp := NewNotFoundError()
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *RelayApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.rs, s.log)
	s.rs.RegisterChan <- client

	go client.Write()
	go client.Read()
}
