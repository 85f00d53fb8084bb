// Package api serves the task list over HTTP. Writes go through the sync
// coordinator, so a write made while the store is unreachable is accepted
// and queued.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

const maxBodyBytes = 1 << 20

// Server holds the HTTP handlers.
type Server struct {
	coord    *syncer.Coordinator
	logger   *log.Logger
	origins  []string
	priority int
	probe    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request error logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithDefaultPriority sets the priority used when a new task omits one.
func WithDefaultPriority(p int) Option {
	return func(s *Server) { s.priority = p }
}

// WithProbeTimeout bounds the store check made by /healthz.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Server) { s.probe = d }
}

// New returns a Server over c.
func New(c *syncer.Coordinator, opts ...Option) *Server {
	s := &Server{
		coord:    c,
		logger:   log.New(os.Stderr, "housekeep: ", 0),
		origins:  []string{"*"},
		priority: 3, //nolint:mnd // middle of the 1..5 scale
		probe:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /tasks", s.listTasks)
	mux.HandleFunc("POST /tasks", s.createTask)
	mux.HandleFunc("GET /tasks/{id}", s.getTask)
	mux.HandleFunc("PUT /tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.deleteTask)
	mux.HandleFunc("POST /tasks/{id}/complete", s.lifecycle(s.coord.Complete))
	mux.HandleFunc("POST /tasks/{id}/reactivate", s.lifecycle(s.coord.Reactivate))
	mux.HandleFunc("POST /tasks/{id}/cancel", s.lifecycle(s.coord.Cancel))
	mux.HandleFunc("POST /tasks/{id}/postpone", s.postponeTask)
	mux.HandleFunc("POST /sync", s.sync)
	mux.HandleFunc("GET /pending", s.listPending)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

// taskResponse wraps a single task. Queued is set when the write was
// accepted but not yet stored.
type taskResponse struct {
	Task   task.Task `json:"task"`
	Queued bool      `json:"queued"`
}

type listResponse struct {
	Tasks   []task.Task `json:"tasks"`
	Pending int         `json:"pending"`
	Offline bool        `json:"offline"`
}

type syncResponse struct {
	Applied   int         `json:"applied"`
	Remaining int         `json:"remaining"`
	Remapped  map[int]int `json:"remapped,omitempty"`
	Failed    *queue.Op   `json:"failed,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// taskInput is the body of POST /tasks and PUT /tasks/{id}. Absent fields
// keep their current value on update.
type taskInput struct {
	Name        *string `json:"name"`
	Priority    *int    `json:"priority"`
	Due         *string `json:"due"`
	AssignedTo  *string `json:"assigned_to"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

func (in taskInput) apply(t *task.Task) error {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Due != nil {
		if *in.Due == "" {
			t.Due = nil
		} else {
			d, err := date.Parse(*in.Due)
			if err != nil {
				return task.ValidateDate("due", *in.Due, err)
			}
			t.Due = &d
		}
	}
	if in.AssignedTo != nil {
		t.AssignedTo = *in.AssignedTo
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	pending, err := s.coord.Pending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"status": "ok", "pending": pending, "store": "reachable"}
	if p, ok := s.coord.Store().(store.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), s.probe)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp["store"] = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	view, err := s.coord.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	var opts board.FilterOptions
	for _, raw := range q["status"] {
		st, err := task.ParseStatus(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		opts.Statuses = append(opts.Statuses, st)
	}
	opts.AssignedTo = q.Get("assigned_to")
	opts.Type = q.Get("type")
	opts.Search = q.Get("q")

	tasks := board.Filter(view.Tasks, opts)
	if field := q.Get("sort"); field != "" {
		board.Sort(tasks, field, q.Get("order") == "desc")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, listResponse{Tasks: tasks, Pending: view.Pending, Offline: view.Offline})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.coord.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in taskInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	t := task.New("", s.priority)
	if err := in.apply(&t); err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.coord.Add(r.Context(), t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOutcome(w, out, http.StatusCreated)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in taskInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.coord.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := in.apply(t); err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.coord.Update(r.Context(), *t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOutcome(w, out, http.StatusOK)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.coord.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if out.Queued {
		s.writeOutcome(w, out, http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lifecycle(fn func(context.Context, int) (syncer.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out, err := fn(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeOutcome(w, out, http.StatusOK)
	}
}

func (s *Server) postponeTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	body := struct {
		Days int `json:"days"`
	}{Days: 1}
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
	}
	out, err := s.coord.Postpone(r.Context(), id, body.Days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOutcome(w, out, http.StatusOK)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	res, err := s.coord.Drain(r.Context())
	resp := syncResponse{
		Applied:   res.Applied,
		Remaining: res.Remaining,
		Remapped:  res.Remapped,
		Failed:    res.Failed,
	}
	if err != nil {
		if res.Failed == nil {
			s.writeError(w, err)
			return
		}
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	ops, err := s.coord.PendingOps(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ops == nil {
		ops = []queue.Op{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// writeOutcome answers 202 for queued writes and status otherwise.
func (s *Server) writeOutcome(w http.ResponseWriter, out syncer.Outcome, status int) {
	if out.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, taskResponse{Task: out.Task, Queued: out.Queued})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code, msg, details := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	writeJSON(w, status, output.ErrorResponse{Error: msg, Code: code, Details: details})
}

// classify maps an error onto an HTTP status and the CLI's error codes.
func classify(err error) (status int, code, msg string, details map[string]any) {
	var ce *clierr.Error
	if errors.As(err, &ce) {
		switch ce.Code {
		case clierr.TaskNotFound:
			status = http.StatusNotFound
		case clierr.InvalidTransition, clierr.InvalidOperation:
			status = http.StatusConflict
		case clierr.InternalError, clierr.StorageError:
			status = http.StatusInternalServerError
		default:
			status = http.StatusBadRequest
		}
		return status, ce.Code, ce.Message, ce.Details
	}
	switch {
	case store.IsNotFound(err):
		return http.StatusNotFound, clierr.TaskNotFound, err.Error(), nil
	case store.IsTransient(err):
		return http.StatusServiceUnavailable, clierr.StorageError, err.Error(), nil
	}
	return http.StatusInternalServerError, clierr.StorageError, err.Error(), nil
}

func pathID(r *http.Request) (int, error) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id == 0 {
		return 0, task.ValidateTaskID(raw)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return clierr.Newf(clierr.InvalidInput, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // best-effort; the client may be gone
}
