package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miretskiy/mm1sim/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// ClientMessage is a command sent over the WebSocket
type ClientMessage struct {
	Type   string          `json:"type"`             // "run" or "stop"
	Config json.RawMessage `json:"config,omitempty"` // Partial SimConfig layered over the defaults
}

// ServerMessage is pushed to the client
type ServerMessage struct {
	Type     string               `json:"type"` // "status", "progress", "report" or "error"
	Running  *bool                `json:"running,omitempty"`
	Config   *simulator.SimConfig `json:"config,omitempty"`
	Progress *simulator.Snapshot  `json:"progress,omitempty"`
	Report   *simulator.Report    `json:"report,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type server struct {
	log      *logrus.Logger
	metrics  *serverMetrics
	interval time.Duration // Wall time between progress updates
	chunks   int           // Progress updates per run
	upgrader websocket.Upgrader
}

func newServer(log *logrus.Logger, reg prometheus.Registerer, interval time.Duration, chunks int) *server {
	if interval <= 0 {
		interval = time.Millisecond
	}
	if chunks < 1 {
		chunks = 1
	}
	return &server{
		log:      log,
		metrics:  newServerMetrics(reg),
		interval: interval,
		chunks:   chunks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				return true
			},
		},
	}
}

func (s *server) routes(gatherer prometheus.Gatherer, quit func()) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/quitquitquit", s.quitHandler(quit))
	return mux
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// session owns at most one running simulation for one connection
type session struct {
	srv  *server
	conn *safeConn
	log  *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (ss *session) sendStatus(running bool, config *simulator.SimConfig) error {
	return ss.conn.WriteJSON(ServerMessage{Type: "status", Running: &running, Config: config})
}

func (ss *session) sendError(err error) error {
	return ss.conn.WriteJSON(ServerMessage{Type: "error", Error: err.Error()})
}

// start replaces any active run with a new one and reports it as running
func (ss *session) start(ctx context.Context, config simulator.SimConfig) error {
	sim, err := simulator.NewSimulator(config)
	if err != nil {
		return err
	}
	ss.stop()
	if err := ss.sendStatus(true, &config); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ss.mu.Lock()
	ss.cancel = cancel
	ss.done = done
	ss.mu.Unlock()

	go func() {
		defer close(done)
		ss.run(runCtx, sim)
	}()
	return nil
}

// stop cancels the active run and waits for it to exit.
// Returns true if a run was active.
func (ss *session) stop() bool {
	ss.mu.Lock()
	cancel, done := ss.cancel, ss.done
	ss.cancel, ss.done = nil, nil
	ss.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// run advances the simulation one chunk of simulated time per tick
func (ss *session) run(ctx context.Context, sim *simulator.Simulator) {
	config := sim.Config()
	chunk := config.EndTime / float64(ss.srv.chunks)

	ticker := time.NewTicker(ss.srv.interval)
	defer ticker.Stop()

	for !sim.Done() {
		select {
		case <-ctx.Done():
			ss.srv.metrics.runsStopped.Inc()
			ss.log.WithField("virtualTime", sim.VirtualTime()).Info("Simulation stopped")
			return
		case <-ticker.C:
		}

		sim.StepUntil(sim.VirtualTime() + chunk)
		snapshot := sim.Snapshot()
		if err := ss.conn.WriteJSON(ServerMessage{Type: "progress", Progress: &snapshot}); err != nil {
			ss.log.WithError(err).Warn("Error sending progress")
			return
		}
	}

	report := sim.Report()
	ss.srv.metrics.observe(report)
	ss.log.WithFields(logrus.Fields{
		"arrivals":    report.Arrivals,
		"departures":  report.Departures,
		"utilization": report.Utilization,
	}).Info("Simulation completed")

	if err := ss.conn.WriteJSON(ServerMessage{Type: "report", Report: report}); err != nil {
		ss.log.WithError(err).Warn("Error sending report")
		return
	}
	if err := ss.sendStatus(false, &config); err != nil {
		ss.log.WithError(err).Warn("Error sending status")
	}
}

// decodeConfig layers a partial JSON config over the defaults and validates it
func decodeConfig(raw json.RawMessage) (simulator.SimConfig, error) {
	config := simulator.DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return config, simulator.ErrInvalidConfig(fmt.Sprintf("malformed config: %v", err))
		}
	}
	return config, config.Validate()
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("Error upgrading connection")
		return
	}
	defer conn.Close()

	ss := &session{
		srv:  s,
		conn: &safeConn{Conn: conn},
		log:  s.log.WithField("remote", r.RemoteAddr),
	}
	ss.log.Info("Client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	config := simulator.DefaultConfig()
	if err := ss.sendStatus(false, &config); err != nil {
		ss.log.WithError(err).Error("Error sending status")
		return
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.log.WithError(err).Warn("Error reading message")
			}
			break
		}
		ss.log.WithField("type", msg.Type).Debug("Received command")

		switch msg.Type {
		case "run":
			config, err := decodeConfig(msg.Config)
			if err == nil {
				err = ss.start(ctx, config)
			}
			if err != nil {
				ss.log.WithError(err).Warn("Rejected run")
				ss.sendError(err)
				continue
			}
			ss.log.WithFields(logrus.Fields{
				"arrivalRate": config.ArrivalRate,
				"serviceRate": config.ServiceRate,
				"endTime":     config.EndTime,
			}).Info("Simulation started")

		case "stop":
			if ss.stop() {
				ss.sendStatus(false, nil)
			}

		default:
			ss.sendError(fmt.Errorf("unknown command %q", msg.Type))
		}
	}

	ss.stop()
	ss.log.Info("Client disconnected")
}

func (s *server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "M/M/1 simulation server")
	fmt.Fprintln(w, "  /ws            WebSocket: {\"type\":\"run\",\"config\":{...}} or {\"type\":\"stop\"}")
	fmt.Fprintln(w, "  /metrics       Prometheus metrics of the last finished run")
	fmt.Fprintln(w, "  /quitquitquit  Shut the server down")
}

func (s *server) quitHandler(quit func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.log.Info("Shutdown requested via /quitquitquit")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Server shutting down...")

		go func() {
			time.Sleep(100 * time.Millisecond)
			quit()
		}()
	}
}
