// Package server is the local HTTP backend for focus sessions and habits.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

type server struct {
	db     ht.Database
	logger ht.Logger
	token  string
}

// Option configures the handler returned by New.
type Option func(*server)

// WithToken requires "Authorization: Bearer <token>" on every /api request.
func WithToken(token string) Option {
	return func(s *server) { s.token = token }
}

// New returns the HTTP handler serving the focus-session and habit API from db.
func New(db ht.Database, logger ht.Logger, opts ...Option) http.Handler {
	if logger == nil {
		logger = ht.NewNopLogger()
	}
	s := &server{db: db, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireToken)

	// /active must be registered ahead of /{id}.
	api.HandleFunc("/focus-sessions/active", s.activeSession).Methods(http.MethodGet)
	api.HandleFunc("/focus-sessions", s.listSessions).Methods(http.MethodGet)
	api.HandleFunc("/focus-sessions", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/focus-sessions/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/focus-sessions/{id}/events", s.sessionEvents).Methods(http.MethodGet)
	api.HandleFunc("/focus-sessions/{id}/{action:pause|resume|complete|cancel}", s.sessionAction).Methods(http.MethodPost)

	api.HandleFunc("/habits", s.listHabits).Methods(http.MethodGet)
	api.HandleFunc("/habits", s.createHabit).Methods(http.MethodPost)
	api.HandleFunc("/habits/{id}", s.getHabit).Methods(http.MethodGet)
	api.HandleFunc("/habits/{id}", s.deleteHabit).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no such endpoint"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.CheckMigrations(); err != nil {
		s.writeError(w, r, fmt.Errorf("checking schema: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sessions

func (s *server) activeSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.db.ActiveSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *server) listSessions(w http.ResponseWriter, r *http.Request) {
	q, err := odata.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.db.ListSessions(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) startSession(w http.ResponseWriter, r *http.Request) {
	var req ht.StartSessionRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.HabitID == "" {
		s.writeError(w, r, fmt.Errorf("%w: habitId is required", ht.ErrInvalidInput))
		return
	}

	session, err := s.db.StartSession(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("session started", "id", session.ID, "habit", session.HabitID, "planned_minutes", session.PlannedDurationMinutes)
	writeJSON(w, http.StatusCreated, session)
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.db.FindSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.db.FindSession(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.db.SessionEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.SessionEvent{}
	}
	writeJSON(w, http.StatusOK, model.Page[model.SessionEvent]{Value: events})
}

// completeRequest is the optional body of the complete action.
type completeRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (s *server) sessionAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, action := vars["id"], model.SessionAction(vars["action"])
	ctx := r.Context()

	var (
		session *model.FocusSession
		err     error
	)
	switch action {
	case model.ActionPause:
		session, err = s.db.PauseSession(ctx, id)
	case model.ActionResume:
		session, err = s.db.ResumeSession(ctx, id)
	case model.ActionComplete:
		var req completeRequest
		if err := decodeBody(r, &req, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		session, err = s.db.CompleteSession(ctx, id, req.Notes)
	case model.ActionCancel:
		session, err = s.db.CancelSession(ctx, id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("session "+string(action), "id", session.ID, "status", session.Status)
	writeJSON(w, http.StatusOK, session)
}

// Habits

func (s *server) listHabits(w http.ResponseWriter, r *http.Request) {
	q, err := odata.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.db.ListHabits(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) createHabit(w http.ResponseWriter, r *http.Request) {
	var req ht.CreateHabitRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	habit, err := s.db.CreateHabit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("habit created", "id", habit.ID, "name", habit.Name)
	writeJSON(w, http.StatusCreated, habit)
}

func (s *server) getHabit(w http.ResponseWriter, r *http.Request) {
	habit, err := s.db.GetHabit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *server) deleteHabit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.db.ArchiveHabit(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("habit archived", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a JSON request body into v. An empty body is an error
// unless optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return fmt.Errorf("%w: request body is required", ht.ErrInvalidInput)
		}
		return fmt.Errorf("%w: decoding request body: %v", ht.ErrInvalidInput, err)
	}
	return nil
}
