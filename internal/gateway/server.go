package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/internal/engine"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/pkg/health"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Principal headers supplied by the authentication layer in front of
// this service. The gateway trusts them.
const (
	HeaderUser   = "X-Gridbase-User"
	HeaderTenant = "X-Gridbase-Tenant"
	HeaderRole   = "X-Gridbase-Role"
)

type contextKey int

const principalKey contextKey = iota

// Server is the REST boundary over the engine.
type Server struct {
	engine     *engine.Engine
	checker    *health.Checker
	router     *mux.Router
	logger     *logger.Logger
	httpServer *http.Server
}

// NewServer creates a server with its routes registered.
func NewServer(eng *engine.Engine, checker *health.Checker, log *logger.Logger) *Server {
	s := &Server{
		engine:  eng,
		checker: checker,
		router:  mux.NewRouter(),
		logger:  log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.principalMiddleware)

	api.HandleFunc("/databases/{database_id}/tables", s.handleCreateTable).Methods(http.MethodPost)
	api.HandleFunc("/databases/{database_id}/tables", s.handleListTables).Methods(http.MethodGet)

	tables := api.PathPrefix("/tables/{table_id}").Subrouter()
	tables.HandleFunc("", s.handleGetTable).Methods(http.MethodGet)
	tables.HandleFunc("", s.handleRenameTable).Methods(http.MethodPatch)
	tables.HandleFunc("", s.handleDeleteTable).Methods(http.MethodDelete)

	tables.HandleFunc("/columns", s.handleAddColumn).Methods(http.MethodPost)
	tables.HandleFunc("/columns/order", s.handleReorderColumns).Methods(http.MethodPut)
	tables.HandleFunc("/columns/{column_id}", s.handleUpdateColumn).Methods(http.MethodPatch)
	tables.HandleFunc("/columns/{column_id}", s.handleDeleteColumn).Methods(http.MethodDelete)

	tables.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	tables.HandleFunc("/filters/validate", s.handleValidateFilters).Methods(http.MethodPost)
	tables.HandleFunc("/permissions/check", s.handleCheckPermission).Methods(http.MethodGet)

	tables.HandleFunc("/rows", s.handleCreateRow).Methods(http.MethodPost)
	tables.HandleFunc("/rows", s.handleListRowIDs).Methods(http.MethodGet)
	tables.HandleFunc("/rows/{row_id}", s.handleGetRow).Methods(http.MethodGet)
	tables.HandleFunc("/rows/{row_id}", s.handleDeleteRow).Methods(http.MethodDelete)
	tables.HandleFunc("/rows/{row_id}/cells/{column_id}", s.handleUpdateCell).Methods(http.MethodPut)
}

// principalMiddleware builds the caller identity from trusted headers.
// Requests without an identity never reach a handler.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := permissions.Principal{
			UserID:   r.Header.Get(HeaderUser),
			TenantID: r.Header.Get(HeaderTenant),
			Role:     r.Header.Get(HeaderRole),
		}
		if p.UserID == "" || p.TenantID == "" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "missing identity",
				"requests must carry "+HeaderUser+" and "+HeaderTenant+" headers")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// loggingMiddleware tags each request with an id and logs its timing.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("[%s] %s %s (%s)", requestID, r.Method, r.URL.Path, time.Since(start))
	})
}

func principalFrom(r *http.Request) permissions.Principal {
	p, _ := r.Context().Value(principalKey).(permissions.Principal)
	return p
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving on the given address. It blocks until the
// listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("HTTP gateway listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP gateway")
	return s.httpServer.Shutdown(ctx)
}
