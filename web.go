package main

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
)

//go:embed index.html.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html.tmpl").
	Funcs(template.FuncMap{"pct": func(f float64) float64 { return f * 100 }}).
	ParseFS(templateFS, "index.html.tmpl"))

type indexData struct {
	TeamName     string
	Datasets     []string
	Session      *sessionJSON
	BoundaryNote string
	Error        string
	Published    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		TeamName:     s.cfg.TeamName,
		BoundaryNote: boundaryNote,
		Error:        r.URL.Query().Get("error"),
		Published:    r.URL.Query().Get("published"),
	}

	names, err := s.store.List()
	if err != nil {
		log.Printf("list datasets error: %v", err)
	} else {
		data.Datasets = names
	}

	if id := r.URL.Query().Get("session"); id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			sj := s.sessionJSON(sess)
			data.Session = &sj
		} else {
			data.Error = "session expired; load the dataset again"
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("render index error: %v", err)
	}
}

// handleLoadForm backs the dataset picker and the upload form on the page.
func (s *Server) handleLoadForm(w http.ResponseWriter, r *http.Request) {
	var sess *Session
	var err error

	if file, header, ferr := r.FormFile("file"); ferr == nil {
		defer file.Close()
		sess, err = s.newSession(header.Filename, file)
	} else if name := r.FormValue("dataset"); name != "" {
		var f io.ReadCloser
		f, err = s.store.Open(name)
		if err == nil {
			defer f.Close()
			sess, err = s.newSession(name, f)
		}
	} else {
		err = &LoadError{Reason: "choose a dataset or upload a CSV file"}
	}

	if err != nil {
		redirectWithError(w, r, "", err)
		return
	}
	http.Redirect(w, r, "/?session="+url.QueryEscape(sess.ID), http.StatusSeeOther)
}

func (s *Server) handleBoundaryForm(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session")
	sess, ok := s.sessions.Get(id)
	if !ok {
		redirectWithError(w, r, "", fmt.Errorf("session expired; load the dataset again"))
		return
	}
	start, end, err := parseBoundaryDates(r.FormValue("start"), r.FormValue("end"), s.cfg.Location)
	if err == nil {
		err = sess.SetBoundary(start, end)
	}
	if err != nil {
		redirectWithError(w, r, id, err)
		return
	}
	log.Printf("boundary override session=%s boundary=%s", sess.ID, sess.Boundary())
	http.Redirect(w, r, "/?session="+url.QueryEscape(id), http.StatusSeeOther)
}

func (s *Server) handlePublishForm(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session")
	sess, ok := s.sessions.Get(id)
	if !ok {
		redirectWithError(w, r, "", fmt.Errorf("session expired; load the dataset again"))
		return
	}
	if s.publisher == nil {
		redirectWithError(w, r, id, fmt.Errorf("publishing is not configured"))
		return
	}
	result, err := s.publisher.Publish(sess, sess.Metrics(s.cfg.MetricsOptions()))
	if err != nil {
		redirectWithError(w, r, id, err)
		return
	}
	q := url.Values{"session": {id}, "published": {result.FilePath}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	q := url.Values{"error": {err.Error()}}
	if sessionID != "" {
		q.Set("session", sessionID)
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}
