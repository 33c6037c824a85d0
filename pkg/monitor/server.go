package monitor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rmap-protocol/rmap-go/pkg/engine"
	"github.com/rmap-protocol/rmap-go/pkg/initiator"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// maxBodySize bounds PUT bodies. Hex doubles the data length.
const maxBodySize = 2*wire.MaxDataLength + 2

// Memory reads and writes named memory objects. *initiator.Initiator
// implements it.
type Memory interface {
	Registry() *registry.Registry
	Read(ctx context.Context, targetID, memoryID string, timeout time.Duration, opts ...initiator.Option) ([]byte, error)
	Write(ctx context.Context, targetID, memoryID string, data []byte, timeout time.Duration, opts ...initiator.Option) error
}

// StatsSource provides engine counters. *engine.Engine implements it.
type StatsSource interface {
	Stats() engine.Stats
}

var (
	_ Memory      = (*initiator.Initiator)(nil)
	_ StatsSource = (*engine.Engine)(nil)
)

// Config configures the monitor server.
type Config struct {
	// Address to listen on (e.g., "127.0.0.1:8080").
	Address string

	// Memory serves the target routes. Required.
	Memory Memory

	// Stats serves /stats. Required.
	Stats StatsSource

	// History serves /history (optional).
	History *History

	// Timeout applies to reads and writes (default: initiator default).
	Timeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Server is the monitor HTTP server.
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// NewServer creates a server and registers its routes.
func NewServer(config Config) (*Server, error) {
	if config.Memory == nil || config.Stats == nil {
		return nil, errors.New("monitor: memory and stats are required")
	}
	s := &Server{config: config, router: mux.NewRouter()}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/targets", s.handleTargets).Methods(http.MethodGet)
	s.router.HandleFunc("/targets/{target}", s.handleTarget).Methods(http.MethodGet)
	s.router.HandleFunc("/targets/{target}/{memory}", s.handleRead).Methods(http.MethodGet)
	s.router.HandleFunc("/targets/{target}/{memory}", s.handleWrite).Methods(http.MethodPut)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves HTTP on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the configured address and serves HTTP.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("monitor: listen: %w", err)
	}
	return s.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// memoryView is the JSON form of a memory object.
type memoryView struct {
	ID              string `json:"id"`
	Address         string `json:"address"`
	ExtendedAddress uint8  `json:"extendedAddress"`
	Size            uint32 `json:"size"`
	Access          string `json:"access"`
}

// targetView is the JSON form of a target node.
type targetView struct {
	ID             string       `json:"id"`
	LogicalAddress string       `json:"logicalAddress"`
	Memory         []memoryView `json:"memory"`
}

func viewOf(t registry.TargetNode) targetView {
	v := targetView{
		ID:             t.ID,
		LogicalAddress: fmt.Sprintf("0x%02x", t.LogicalAddress),
		Memory:         make([]memoryView, 0, len(t.MemoryObjects)),
	}
	for _, m := range t.MemoryObjects {
		v.Memory = append(v.Memory, memoryView{
			ID:              m.ID,
			Address:         fmt.Sprintf("0x%08x", m.Address),
			ExtendedAddress: m.ExtendedAddress,
			Size:            m.Size,
			Access:          m.Access.String(),
		})
	}
	return v
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Stats.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.config.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := s.config.History.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets := s.config.Memory.Registry().Targets()
	views := make([]targetView, 0, len(targets))
	for _, t := range targets {
		views = append(views, viewOf(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.config.Memory.Registry().Target(mux.Vars(r)["target"])
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, err := s.config.Memory.Read(r.Context(), vars["target"], vars["memory"], s.config.Timeout)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target": vars["target"],
		"memory": vars["memory"],
		"data":   hex.EncodeToString(data),
	})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	data, err := wire.ParseHex(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.config.Memory.Write(r.Context(), vars["target"], vars["memory"], data, s.config.Timeout); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFailure maps an operation error to an HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var se *wire.StatusError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, initiator.ErrAccess):
		code = http.StatusForbidden
	case errors.Is(err, engine.ErrTimeout):
		code = http.StatusGatewayTimeout
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"status": se.Status.String(),
			"code":   uint8(se.Status),
		})
		return
	case errors.Is(err, engine.ErrNotRunning), errors.Is(err, engine.ErrTransport):
		code = http.StatusServiceUnavailable
	}
	if s.config.Logger != nil {
		s.config.Logger.Debug("request failed", "error", err, "code", code)
	}
	writeError(w, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
