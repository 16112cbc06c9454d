// Package testutils carries the fake processing service the package tests
// dispatch against, plus small payload helpers. It deliberately depends on
// nothing from this module so in-package tests can import it freely.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// ProcessRequest is what the fake saw for one process call.
type ProcessRequest struct {
	Path  string
	Files map[string]string
	Form  map[string]string
}

// FakeProcessor mimics the external processing service. Reconfiguring and
// hit inspection are safe at any point, including while requests are in
// flight.
type FakeProcessor struct {
	Server *httptest.Server

	mu         sync.Mutex
	fileID     string
	failWith   string
	delay      time.Duration
	requests   []ProcessRequest
	renditions map[string][]byte
}

func NewFakeProcessor(t *testing.T) *FakeProcessor {
	f := &FakeProcessor{
		fileID:     "out_1.mp4",
		renditions: map[string][]byte{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeProcessor) URL() string {
	return f.Server.URL
}

// SetFileID changes the file id returned for successful process calls.
func (f *FakeProcessor) SetFileID(fileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileID = fileID
}

// SetFailWith makes every process call fail with the given service message.
// An empty string restores success.
func (f *FakeProcessor) SetFailWith(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = message
}

// SetDelay adds artificial latency to every process call.
func (f *FakeProcessor) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// AddRendition makes bytes retrievable under the given file id.
func (f *FakeProcessor) AddRendition(fileID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renditions[fileID] = data
}

// HitCount reports how many process calls arrived.
func (f *FakeProcessor) HitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// LastRequest returns the most recent process call, nil when none arrived.
func (f *FakeProcessor) LastRequest() *ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	last := f.requests[len(f.requests)-1]
	return &last
}

func (f *FakeProcessor) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	case strings.HasPrefix(r.URL.Path, "/download/"):
		f.handleDownload(w, r)
	case r.URL.Path == "/upload" || r.URL.Path == "/trim" || r.URL.Path == "/merge":
		f.handleProcess(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

func (f *FakeProcessor) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(256 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("bad multipart: %v", err)})
		return
	}

	request := ProcessRequest{
		Path:  r.URL.Path,
		Files: map[string]string{},
		Form:  map[string]string{},
	}
	for field, headers := range r.MultipartForm.File {
		if len(headers) > 0 {
			request.Files[field] = headers[0].Filename
		}
	}
	for field, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			request.Form[field] = values[0]
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, request)
	fileID, failWith, delay := f.fileID, f.failWith, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failWith != "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": failWith})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file_id": fileID,
		"message": "processed",
	})
}

func (f *FakeProcessor) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(r.URL.Path, "/download/")
	f.mu.Lock()
	data, ok := f.renditions[fileID]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "File not found"})
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileID))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Payload returns n deterministic bytes standing in for video data.
func Payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return data
}
