// Package api serves the operator surface of the station: queue view, manual
// sync, clear-all, scan history, status, and metrics. The kiosk UI consumes
// these endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scanstation/internal/config"
	"scanstation/internal/database"
	"scanstation/internal/history"
	"scanstation/internal/metrics"
	"scanstation/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Syncer triggers and observes sync passes.
type Syncer interface {
	Sync(ctx context.Context) (models.SyncResult, error)
	Syncing() bool
	LastPass() (models.SyncResult, time.Time, bool)
}

// Ingestor handles one barcode end to end.
type Ingestor interface {
	Process(ctx context.Context, barcode string) (string, error)
}

// Connectivity exposes the advisory online flag.
type Connectivity interface {
	Online() bool
}

type Server struct {
	cfg     config.APIConfig
	db      *database.DB
	syncer  Syncer
	ingest  Ingestor
	conn    Connectivity
	history history.Store
	logger  *zerolog.Logger
	server  *http.Server
	auth    *Auth
}

func NewServer(
	cfg config.APIConfig,
	metricsEnabled bool,
	db *database.DB,
	syncer Syncer,
	ingest Ingestor,
	conn Connectivity,
	hist history.Store,
	logger *zerolog.Logger,
) *Server {
	mux := http.NewServeMux()
	srv := &Server{
		cfg:     cfg,
		db:      db,
		syncer:  syncer,
		ingest:  ingest,
		conn:    conn,
		history: hist,
		logger:  logger,
	}
	srv.auth = NewAuth(cfg)

	mux.HandleFunc("/api/v1/queue", srv.handleQueue)
	mux.HandleFunc("/api/v1/sync", srv.handleSync)
	mux.HandleFunc("/api/v1/scan", srv.handleScan)
	mux.HandleFunc("/api/v1/history", srv.handleHistory)
	mux.HandleFunc("/api/v1/status", srv.handleStatus)

	handler := http.Handler(srv.auth.Wrap(mux))

	outer := http.NewServeMux()
	outer.Handle("/api/", handler)
	outer.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsEnabled {
		outer.Handle("/metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(outer),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("operator API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleQueue serves the pending outbox (GET) and Clear All (DELETE).
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.db.ListQueued(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read queue")
			return
		}
		if records == nil {
			records = []models.QueuedCheckin{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records": records,
			"count":   len(records),
		})

	case http.MethodDelete:
		cleared, err := s.db.ClearQueued(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to clear queue")
			return
		}
		metrics.SetOutboxDepth(0)
		s.logger.Info().Int("cleared", cleared).Msg("operator cleared outbox")
		writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSync is the operator Sync Now action.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.conn.Online() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"message": "offline: nothing synced",
			"result":  models.SyncResult{},
		})
		return
	}

	result, err := s.syncer.Sync(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	msg := syncMessage(result)
	if result.Total > 0 {
		entry := models.ScanHistoryEntry{
			Timestamp: time.Now().UTC(),
			Label:     msg,
			Success:   result.Failed == 0,
		}
		if err := s.history.Append(r.Context(), entry); err != nil {
			s.logger.Warn().Err(err).Msg("failed to append history entry")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"result":  result,
	})
}

// handleScan is the designated manual-entry path: it bypasses the collector
// and goes straight to ingestion.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Barcode == "" {
		writeError(w, http.StatusBadRequest, "barcode is required")
		return
	}

	msg, err := s.ingest.Process(r.Context(), req.Barcode)
	if err != nil {
		// Storage failure or unexpected fault; distinct from a rejection.
		writeError(w, http.StatusInternalServerError, "scan could not be processed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.history.Recent(r.Context(), models.HistoryLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []models.ScanHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.db.CountQueued(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count queue")
		return
	}

	status := map[string]any{
		"online":  s.conn.Online(),
		"syncing": s.syncer.Syncing(),
		"queued":  count,
	}
	if result, at, ok := s.syncer.LastPass(); ok {
		status["last_sync"] = map[string]any{
			"at":      at,
			"success": result.Success,
			"failed":  result.Failed,
			"total":   result.Total,
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func syncMessage(result models.SyncResult) string {
	switch {
	case result.Total == 0:
		return "Queue is empty"
	case result.Failed == 0:
		return fmt.Sprintf("Synced %d check-ins", result.Success)
	default:
		return fmt.Sprintf("Synced %d of %d check-ins, %d failed", result.Success, result.Total, result.Failed)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
