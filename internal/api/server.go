package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/wallet-sentinel/sentinel/internal/broadcast"
	"github.com/wallet-sentinel/sentinel/pkg/config"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// Server is the thin HTTP collaborator described in spec §6: it exposes
// the Facade's synchronous entry points over REST and upgrades /ws
// connections into the Broadcast Hub. Grounded on the teacher's
// internal/api/server.go (gorilla/mux + rs/cors + a logging middleware),
// generalized to the full route table spec §6 names.
type Server struct {
	config     *config.APIConfig
	router     *mux.Router
	httpServer *http.Server
	logger     *logging.Logger
	facade     *Facade
	hub        *broadcast.Hub
}

// NewServer builds a Server and registers its routes.
func NewServer(cfg *config.APIConfig, facade *Facade, hub *broadcast.Hub, logger *logging.Logger) *Server {
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		logger: logger,
		facade: facade,
		hub:    hub,
	}
	s.initializeRoutes()
	return s
}

func (s *Server) initializeRoutes() {
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	s.router.HandleFunc("/wallets/subscribe", s.handleSubscribe).Methods(http.MethodPost)
	s.router.HandleFunc("/wallets/unsubscribe", s.handleUnsubscribe).Methods(http.MethodDelete)
	s.router.HandleFunc("/wallets/batch-score", s.handleBatchScore).Methods(http.MethodPost)
	s.router.HandleFunc("/wallets/active", s.handleActive).Methods(http.MethodGet)
	s.router.HandleFunc("/wallets/{addr}/score", s.handleGetScore).Methods(http.MethodGet)
	s.router.HandleFunc("/wallets/{addr}/flag-status", s.handleFlagStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/wallets/{addr}/flag", s.handleFlag).Methods(http.MethodPost)
	s.router.HandleFunc("/system/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket)

	s.router.Use(corsMiddleware.Handler)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Info("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteAddr": r.RemoteAddr,
				"durationMs": time.Since(start).Milliseconds(),
			})
		}
	})
}

// Start runs the HTTP server until it's shut down. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(s.config.WriteTimeout) * time.Second,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	if s.logger != nil {
		s.logger.Info("starting api server", map[string]interface{}{"address": addr})
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("shutting down api server", nil)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
