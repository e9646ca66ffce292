package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Server exposes the dashboard page and the JSON API over the core
// operations: load a dataset, inspect/override the boundary, read metrics,
// publish a summary. Every request triggers a complete synchronous
// recomputation; nothing is cached.
type Server struct {
	cfg       Config
	store     *DatasetStore
	loader    *Loader
	sessions  *SessionRegistry
	publisher *Publisher
}

func NewServer(cfg Config, store *DatasetStore, loader *Loader, publisher *Publisher) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		loader:    loader,
		sessions:  NewSessionRegistry(),
		publisher: publisher,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /load", s.handleLoadForm)
	mux.HandleFunc("POST /boundary", s.handleBoundaryForm)
	mux.HandleFunc("POST /publish", s.handlePublishForm)

	mux.HandleFunc("GET /api/datasets", s.handleDatasets)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}/boundary", s.handleSetBoundary)
	mux.HandleFunc("POST /api/sessions/{id}/publish", s.handlePublish)
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("Dashboard listening on %s", s.cfg.ListenAddr)
	return http.ListenAndServe(s.cfg.ListenAddr, s.Handler())
}

// boundaryNote is shown next to inferred dates everywhere they surface.
const boundaryNote = "Inferred dates are a best-effort guess from task closure dates; set the sprint's true start and end if they differ."

type boundaryJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func toBoundaryJSON(b Boundary) boundaryJSON {
	return boundaryJSON{Start: b.Start.Format(dateLayout), End: b.End.Format(dateLayout)}
}

type sessionJSON struct {
	ID           string       `json:"id"`
	Dataset      string       `json:"dataset"`
	Inferred     boundaryJSON `json:"inferred_boundary"`
	Effective    boundaryJSON `json:"effective_boundary"`
	BoundaryNote string       `json:"boundary_note"`
	Warnings     []string     `json:"warnings,omitempty"`
	Metrics      Metrics      `json:"metrics"`
}

func (s *Server) sessionJSON(sess *Session) sessionJSON {
	out := sessionJSON{
		ID:           sess.ID,
		Dataset:      sess.TaskSet.Name,
		Inferred:     toBoundaryJSON(sess.Inferred),
		Effective:    toBoundaryJSON(sess.Boundary()),
		BoundaryNote: boundaryNote,
		Metrics:      sess.Metrics(s.cfg.MetricsOptions()),
	}
	for _, w := range sess.TaskSet.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}

// newSession loads a dataset and registers a fresh session for it.
func (s *Server) newSession(name string, r io.Reader) (*Session, error) {
	ts, err := s.loader.Load(name, r)
	if err != nil {
		return nil, err
	}
	for _, w := range ts.Warnings {
		log.Printf("load dataset=%s warning: %v", name, w)
	}
	sess := NewSession(ts, InferBoundary(ts, FallbackFor(name, time.Now().In(s.cfg.Location))))
	s.sessions.Add(sess)
	log.Printf("session created id=%s dataset=%s tasks=%d inferred=%s",
		sess.ID, name, len(ts.Tasks), sess.Inferred)
	return sess, nil
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": names})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.sessionJSON(sess))
}

// sessionFromRequest accepts either a multipart upload (field "file") or a
// JSON body naming a file in the datasets directory.
func (s *Server) sessionFromRequest(r *http.Request) (*Session, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, &LoadError{Reason: "missing uploaded file", Err: err}
		}
		defer file.Close()
		return s.newSession(header.Filename, file)
	}

	var body struct {
		Dataset string `json:"dataset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, &LoadError{Reason: "invalid request body", Err: err}
	}
	if body.Dataset == "" {
		return nil, &LoadError{Reason: "dataset name is required"}
	}
	f, err := s.store.Open(body.Dataset)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.newSession(body.Dataset, f)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionJSON(sess))
}

func (s *Server) handleSetBoundary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body boundaryJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	start, end, err := parseBoundaryDates(body.Start, body.End, s.cfg.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.SetBoundary(start, end); err != nil {
		s.writeError(w, err)
		return
	}
	log.Printf("boundary override session=%s boundary=%s", sess.ID, sess.Boundary())
	writeJSON(w, http.StatusOK, s.sessionJSON(sess))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.publisher == nil {
		http.Error(w, "publishing is not configured", http.StatusServiceUnavailable)
		return
	}
	result, err := s.publisher.Publish(sess, sess.Metrics(s.cfg.MetricsOptions()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseBoundaryDates(startRaw, endRaw string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startRaw, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Msg: fmt.Sprintf("invalid start date %q (want YYYY-MM-DD)", startRaw)}
	}
	end, err := time.ParseInLocation(dateLayout, endRaw, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Msg: fmt.Sprintf("invalid end date %q (want YYYY-MM-DD)", endRaw)}
	}
	return start, end, nil
}

// writeError maps the error kinds onto HTTP statuses. Everything here is
// recoverable at the user-interaction boundary; the server never exits on
// bad input.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var le *LoadError
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &le):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("server error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response error: %v", err)
	}
}
