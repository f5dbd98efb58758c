// Package control exposes the out-of-band HTTP surface: health checks
// and a synchronous discovery trigger.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quoteflow/internal/catalog"
	"quoteflow/logger"
)

// DiscoveryRunner triggers one discovery cycle; implemented by the
// discovery orchestrator.
type DiscoveryRunner interface {
	RunOnce(ctx context.Context) ([]catalog.Market, error)
}

type Server struct {
	httpServer *http.Server
	runner     DiscoveryRunner
	onCycle    func([]catalog.Market)
	log        *logger.Entry
}

// NewServer wires the control endpoints. onCycle, when non-nil, is
// invoked with the accepted set of each triggered cycle, same as the
// periodic loop.
func NewServer(addr string, runner DiscoveryRunner, onCycle func([]catalog.Market), log *logger.Log) *Server {
	s := &Server{
		runner:  runner,
		onCycle: onCycle,
		log:     log.WithComponent("control"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/discovery/run", s.handleDiscoveryRun)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() {
	s.log.WithFields(logger.Fields{"addr": s.httpServer.Addr}).Info("control server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.WithError(err).Error("control server failed")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleDiscoveryRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := time.Now()
	rows, err := s.runner.RunOnce(r.Context())
	if err != nil {
		s.log.WithError(err).Error("triggered discovery cycle failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows != nil && s.onCycle != nil {
		s.onCycle(rows)
	}
	logger.LogPerformanceEntry(s.log, "control", "discovery_run", time.Since(started), logger.Fields{"accepted": len(rows)})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted": len(rows),
	})
}
