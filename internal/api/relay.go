package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/vibechat/relay/internal/blob"
	"github.com/vibechat/relay/internal/config"
	"github.com/vibechat/relay/internal/server"
)

type RelayApp struct {
	log            *log.Logger
	rs             *server.RelayServer
	blobs          *blob.Store
	mux            *http.Server
	allowedOrigins []string
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, rs *server.RelayServer, blobs *blob.Store, cfg *config.Config) *RelayApp {
	s := &RelayApp{
		log:            logger,
		rs:             rs,
		blobs:          blobs,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /api/healthz", s.healthz)
	mux.HandleFunc("GET /api/roster", s.getRoster)
	mux.HandleFunc("GET /api/history", s.getHistory)
	mux.HandleFunc("/api/", s.notFound)
	mux.Handle("GET "+blob.URLPrefix, http.StripPrefix(blob.URLPrefix, http.FileServer(http.Dir(blobs.Dir()))))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *RelayApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *RelayApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
