package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func newTestServer(t *testing.T, publisher *Publisher) *Server {
	t.Helper()
	cfg := Config{TeamName: "Platform Team"}
	cfg.ApplyDefaults()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/q3_sprint_2_2025.csv", []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	store := NewDatasetStore(fs, "/data")
	return NewServer(cfg, store, NewLoader(cfg), publisher)
}

func decodeSession(t *testing.T, body io.Reader) sessionJSON {
	t.Helper()
	var sess sessionJSON
	if err := json.NewDecoder(body).Decode(&sess); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	return sess
}

func createSession(t *testing.T, h http.Handler, dataset string) sessionJSON {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`{"dataset":"`+dataset+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec.Body)
}

func TestAPIDatasetsList(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/datasets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Datasets []string `json:"datasets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Datasets) != 1 || body.Datasets[0] != "q3_sprint_2_2025.csv" {
		t.Fatalf("unexpected datasets: %v", body.Datasets)
	}
}

func TestAPICreateSessionInfersBoundary(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	if sess.ID == "" {
		t.Fatal("expected a session ID")
	}
	if sess.Dataset != "q3_sprint_2_2025.csv" {
		t.Fatalf("unexpected dataset: %q", sess.Dataset)
	}
	// Closure dates in the sample run 2025-07-01 through 2025-07-16.
	if sess.Inferred.Start != "2025-07-01" || sess.Inferred.End != "2025-07-16" {
		t.Fatalf("unexpected inferred boundary: %+v", sess.Inferred)
	}
	if sess.Effective != sess.Inferred {
		t.Fatalf("effective boundary should start as the inferred one: %+v", sess.Effective)
	}
	if sess.BoundaryNote == "" {
		t.Fatal("expected the inferred-dates caveat in the response")
	}
	if sess.Metrics.CompletedCount != 3 || sess.Metrics.CompletedPoints != 9 {
		t.Fatalf("unexpected metrics at inferred boundary: %+v", sess.Metrics)
	}
}

func TestAPICreateSessionUnknownDataset(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`{"dataset":"absent.csv"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown dataset, got %d", rec.Code)
	}
}

func TestAPICreateSessionFromUpload(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "uploaded.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(sampleCSV)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", rec.Code, rec.Body.String())
	}
	sess := decodeSession(t, rec.Body)
	if sess.Dataset != "uploaded.csv" {
		t.Fatalf("unexpected dataset name: %q", sess.Dataset)
	}
	if sess.Metrics.TotalTasks != 4 {
		t.Fatalf("unexpected task count: %d", sess.Metrics.TotalTasks)
	}
}

func TestAPIBoundaryOverrideRecomputes(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	req := httptest.NewRequest("PUT", "/api/sessions/"+sess.ID+"/boundary",
		strings.NewReader(`{"start":"2025-07-01","end":"2025-07-14"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("override: status %d body %s", rec.Code, rec.Body.String())
	}
	updated := decodeSession(t, rec.Body)
	if updated.Effective.Start != "2025-07-01" || updated.Effective.End != "2025-07-14" {
		t.Fatalf("unexpected effective boundary: %+v", updated.Effective)
	}
	if updated.Inferred != sess.Inferred {
		t.Fatalf("inferred boundary must not change on override: %+v", updated.Inferred)
	}
	// The late 16 Jul closure now falls outside the window.
	if updated.Metrics.CompletedCount != 2 || updated.Metrics.CompletedPoints != 6 {
		t.Fatalf("unexpected metrics after override: %+v", updated.Metrics)
	}
}

func TestAPIBoundaryInvertedRangeRejected(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	req := httptest.NewRequest("PUT", "/api/sessions/"+sess.ID+"/boundary",
		strings.NewReader(`{"start":"2025-07-14","end":"2025-07-01"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inverted range, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/"+sess.ID, nil))
	after := decodeSession(t, rec.Body)
	if after.Effective != sess.Effective {
		t.Fatalf("rejected override must keep prior boundary: %+v", after.Effective)
	}
}

func TestAPIBoundaryBadDateFormat(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	req := httptest.NewRequest("PUT", "/api/sessions/"+sess.ID+"/boundary",
		strings.NewReader(`{"start":"07/01/2025","end":"2025-07-14"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed date, got %d", rec.Code)
	}
}

func TestAPIUnknownSession(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/api/sessions/nope", nil),
		httptest.NewRequest("PUT", "/api/sessions/nope/boundary", strings.NewReader(`{}`)),
		httptest.NewRequest("POST", "/api/sessions/nope/publish", nil),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestAPIPublishUnconfigured(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions/"+sess.ID+"/publish", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a publisher, got %d", rec.Code)
	}
}

func TestAPIPublishWritesReport(t *testing.T) {
	cfg := Config{TeamName: "Platform Team", ReportOutputDir: t.TempDir()}
	h := newTestServer(t, NewPublisher(cfg)).Handler()
	sess := createSession(t, h, "q3_sprint_2_2025.csv")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions/"+sess.ID+"/publish", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: status %d body %s", rec.Code, rec.Body.String())
	}
	var result PublishResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.FilePath == "" || result.SlackChannel != "" || result.Highlighted {
		t.Fatalf("unexpected publish result: %+v", result)
	}
}

func TestIndexPageRenders(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Platform Team") {
		t.Fatalf("page should carry the team name:\n%s", body)
	}
	if !strings.Contains(body, "q3_sprint_2_2025.csv") {
		t.Fatalf("page should list available datasets:\n%s", body)
	}
}

func TestFormLoadAndBoundaryFlow(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	form := strings.NewReader("dataset=q3_sprint_2_2025.csv")
	req := httptest.NewRequest("POST", "/load", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("load form: status %d body %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/?session=") {
		t.Fatalf("unexpected redirect target: %q", loc)
	}
	id := strings.TrimPrefix(loc, "/?session=")

	form = strings.NewReader("session=" + id + "&start=2025-07-01&end=2025-07-14")
	req = httptest.NewRequest("POST", "/boundary", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("boundary form: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/?session="+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "2025-07-14") {
		t.Fatalf("dashboard should show the overridden boundary:\n%s", rec.Body.String())
	}
}
