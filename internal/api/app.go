package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/Kanishk2Kumar/CampusPulse/internal/config"
	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/resolution"
	"github.com/Kanishk2Kumar/CampusPulse/internal/server"
	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"
)

// CampusApp is the HTTP and websocket surface of the help-chat service.
type CampusApp struct {
	log            *log.Logger
	db             database.CampusRepository
	mux            *http.Server
	cs             *server.ChatServer
	workflow       *resolution.Workflow
	signingKey     []byte
	allowedOrigins []string
}

func NewCampusApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer,
	db database.CampusRepository, workflow *resolution.Workflow, cfg *config.Config) *CampusApp {
	s := &CampusApp{
		log:            logger,
		db:             db,
		cs:             cs,
		workflow:       workflow,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/requests", s.authMiddleware(s.createRequest))
	mux.Handle("GET /api/requests", s.authMiddleware(s.getRequests))
	mux.Handle("POST /api/requests/resolve", s.authMiddleware(s.resolveRequest))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
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

func (s *CampusApp) generateShortId() (string, error) {
	return shortid.Generate()
}

func (s *CampusApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *CampusApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
