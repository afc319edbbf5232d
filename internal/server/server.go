// Package server exposes planning sessions over a JSON HTTP API so hosts
// other than the CLI (editors, agents behind the MCP bridge) can drive them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/planning"
)

// Server is the compass HTTP server.
type Server struct {
	ctrl     *controller.Controller
	log      *logrus.Logger
	router   *mux.Router
	listener net.Listener
	server   *http.Server

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	running  map[string]bool
	stopping bool
	wg       sync.WaitGroup
}

// ErrStopping is returned for executions requested after Stop.
var ErrStopping = errors.New("server is stopping")

// New creates a Server around ctrl. A nil logger discards request logs.
func New(ctrl *controller.Controller, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ctrl:    ctrl,
		log:     logger,
		baseCtx: ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodPost)

	api := r.PathPrefix("/sessions").Subrouter()
	api.HandleFunc("/create", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/get", s.handleGet).Methods(http.MethodPost)
	api.HandleFunc("/list", s.handleList).Methods(http.MethodPost)
	api.HandleFunc("/answer", s.handleAnswer).Methods(http.MethodPost)
	api.HandleFunc("/skip", s.handleSkip).Methods(http.MethodPost)
	api.HandleFunc("/complete_interview", s.handleCompleteInterview).Methods(http.MethodPost)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodPost)
	api.HandleFunc("/set_plan", s.handleSetPlan).Methods(http.MethodPost)
	api.HandleFunc("/confirm", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/modify", s.handleModify).Methods(http.MethodPost)
	api.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/progress", s.handleProgress).Methods(http.MethodPost)
	api.HandleFunc("/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)

	s.router = r
	s.server = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds addr. Use "127.0.0.1:0" for a random port.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: binding listener: %w", err)
	}
	s.listener = ln
	return nil
}

// Addr returns the address the server is listening on (e.g. "127.0.0.1:7420").
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Call in a goroutine, after Listen.
func (s *Server) Start() error {
	if s.listener == nil {
		return errors.New("server: Start called before Listen")
	}
	s.log.WithField("addr", s.Addr()).Info("compass server listening")
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down, cancels running executions and waits for them
// to return. Executions requested after Stop are refused with ErrStopping.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.cancel()
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Start(r.Context(), req.Prompt, req.ProjectType, controller.StartOptions{SkipInterview: req.SkipInterview})
	s.respond(w, r, snap, err)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Get(req.SessionID)
	s.respond(w, r, snap, err)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if !readJSON(w, r, &req) {
		return
	}
	summaries, err := s.ctrl.List(req.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Sessions: toSummaries(summaries)})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !readJSON(w, r, &req) {
		return
	}
	index, err := s.resolveIndex(req.SessionID, req.Index, req.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.ctrl.Answer(req.SessionID, index, req.Value)
	s.respond(w, r, snap, err)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if !readJSON(w, r, &req) {
		return
	}
	index, err := s.resolveIndex(req.SessionID, req.Index, req.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.ctrl.Skip(req.SessionID, index)
	s.respond(w, r, snap, err)
}

func (s *Server) handleCompleteInterview(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.CompleteInterview(req.SessionID)
	s.respond(w, r, snap, err)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.GeneratePlan(r.Context(), req.SessionID)
	s.respond(w, r, snap, err)
}

func (s *Server) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	var req SetPlanRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.InstallPlan(req.SessionID, req.Plan)
	s.respond(w, r, snap, err)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Confirm(req.SessionID)
	s.respond(w, r, snap, err)
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req ModifyRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Modify(req.SessionID, req.Feedback)
	s.respond(w, r, snap, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Cancel(req.SessionID)
	s.respond(w, r, snap, err)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.ReportProgress(req.SessionID, req.TaskName, req.Percent)
	s.respond(w, r, snap, err)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Finish(req.SessionID)
	s.respond(w, r, snap, err)
}

// handleExecute starts the executor in the background and returns at once.
// Progress is observable through /sessions/get.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.Get(req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if snap.State != planning.StateExecuting {
		s.fail(w, r, &planning.StateTransitionError{
			Op: "execute", From: snap.State, To: planning.StateCompleted, Reason: "only valid in executing",
		})
		return
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.fail(w, r, ErrStopping)
		return
	}
	if s.running[req.SessionID] {
		s.mu.Unlock()
		s.fail(w, r, &planning.StateTransitionError{
			Op: "execute", From: snap.State, To: planning.StateCompleted, Reason: "already running",
		})
		return
	}
	s.running[req.SessionID] = true
	// Add under mu so Stop cannot reach Wait between the check and the Add.
	s.wg.Add(1)
	s.mu.Unlock()

	go func(id string) {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, id)
			s.mu.Unlock()
		}()
		entry := s.log.WithField("session", id)
		if _, err := s.ctrl.Execute(s.baseCtx, id, nil); err != nil {
			entry.WithError(err).Warn("execution failed")
			return
		}
		entry.Info("execution finished")
	}(req.SessionID)

	writeJSON(w, http.StatusAccepted, ExecuteResponse{Started: true, Session: snap})
}

// resolveIndex picks the question addressed by key, by index, or the
// current question when neither is given.
func (s *Server) resolveIndex(sessionID string, index *int, key string) (int, error) {
	if key == "" && index != nil {
		return *index, nil
	}
	snap, err := s.ctrl.Get(sessionID)
	if err != nil {
		return 0, err
	}
	if key == "" {
		return snap.Interview.CurrentIndex, nil
	}
	for i, q := range snap.Interview.Questions {
		if q.Key == key {
			return i, nil
		}
	}
	return 0, fmt.Errorf("question key %q %w", key, planning.ErrNotFound)
}

// --- Helpers ---

func (s *Server) respond(w http.ResponseWriter, r *http.Request, snap planning.Snapshot, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: snap})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

// classify maps controller errors to an HTTP status and a short kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, planning.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, planning.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, planning.ErrStateTransition):
		return http.StatusConflict, "state_transition"
	case errors.Is(err, controller.ErrNoCollaborator), errors.Is(err, ErrStopping):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	// An empty body is fine for requests with no fields.
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid JSON: %v", err), Kind: "validation"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
