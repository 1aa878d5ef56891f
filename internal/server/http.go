// Package server exposes the supervisor's local HTTP surface: probes,
// Prometheus metrics and the operator API used by kevinbotctl.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kevinbot-io/kevinbot/internal/ingress"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/options"
)

// ModeSource reports the current robot mode.
type ModeSource interface {
	Mode() core.Mode
}

// SnapshotSource serves the latest sensor snapshot.
type SnapshotSource interface {
	Latest() core.SensorSnapshot
}

// QueueSource reports command bus depth.
type QueueSource interface {
	Depth() int
}

// Status is the operator-facing robot summary.
type Status struct {
	RobotID    string              `json:"robotId"`
	Mode       core.Mode           `json:"mode"`
	Uplink     bool                `json:"uplink"`
	QueueDepth int                 `json:"queueDepth"`
	Snapshot   core.SensorSnapshot `json:"snapshot"`
	Devices    []core.DeviceState  `json:"devices"`
	Time       time.Time           `json:"time"`
}

// Config assembles the HTTP server.
type Config struct {
	Options *options.HttpOptions
	RobotID string

	Modes     ModeSource
	Snapshots SnapshotSource
	Queue     QueueSource
	Devices   core.DeviceReader
	Bus       ingress.Acceptor

	// Ready reports whether the MQTT uplink is connected.
	Ready func() bool
}

// Server is the local HTTP endpoint. It binds to the robot's LAN address;
// anyone on the robot network is an operator.
type Server struct {
	server *http.Server
	cfg    Config
	logger log.Logger
}

func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, logger: log.WithName("http")}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/say", s.handleSay).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:    cfg.Options.Addr,
		Handler: r,
	}
	return s
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil && !s.cfg.Ready() {
		http.Error(w, "uplink not connected", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		RobotID:    s.cfg.RobotID,
		Mode:       s.cfg.Modes.Mode(),
		QueueDepth: s.cfg.Queue.Depth(),
		Snapshot:   s.cfg.Snapshots.Latest(),
		Devices:    s.cfg.Devices.States(),
		Time:       time.Now(),
	}
	if s.cfg.Ready != nil {
		status.Uplink = s.cfg.Ready()
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleCommand accepts an operator command. The source is forced to
// operator regardless of what the body claims; the HTTP API is the
// operator surface.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var wire ingress.WireCommand
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "invalid command body: "+err.Error(), http.StatusBadRequest)
		return
	}

	wire.Source = string(core.SourceOperator)
	if wire.IssuedAt.IsZero() {
		wire.IssuedAt = time.Now()
	}

	cmd := wire.ToCommand(core.SourceOperator)
	if err := s.cfg.Bus.Submit(cmd); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, ingress.Ack{
			ID: cmd.ID, Accepted: false, Reason: string(core.ReasonForSubmitError(err)), Time: time.Now(),
		})
		return
	}
	s.writeJSON(w, http.StatusAccepted, ingress.Ack{ID: cmd.ID, Accepted: true, Time: time.Now()})
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		http.Error(w, "body must be {\"text\": \"...\"}", http.StatusBadRequest)
		return
	}

	cmd := ingress.WireCommand{
		Kind:     string(core.KindSay),
		Text:     body.Text,
		IssuedAt: time.Now(),
	}.ToCommand(core.SourceOperator)

	if err := s.cfg.Bus.Submit(cmd); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, ingress.Ack{
			ID: cmd.ID, Accepted: false, Reason: string(core.ReasonForSubmitError(err)), Time: time.Now(),
		})
		return
	}
	s.writeJSON(w, http.StatusAccepted, ingress.Ack{ID: cmd.ID, Accepted: true, Time: time.Now()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "err", err.Error())
	}
}
