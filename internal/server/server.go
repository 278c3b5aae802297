// Package server provides the HTTP API for async watch sessions.
//
// Endpoints:
//
//	POST /watches        — enqueue a new watch; returns watch ID immediately
//	GET  /watches/{id}   — poll watch status and retrieve the manifest URL
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/felipeplets/percy-cli/internal/storage"
	"github.com/felipeplets/percy-cli/internal/watch"
	"github.com/felipeplets/percy-cli/internal/watchop"
)

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store    watchop.Store
	uploader storage.Uploader
	mux      *http.ServeMux

	// defaultWatchOptions are used as a base for every watch; request
	// fields may override individual values.
	defaultWatchOptions watch.Options
}

// New creates a Server wired to the given store and uploader.
func New(store watchop.Store, uploader storage.Uploader, defaults watch.Options) *Server {
	s := &Server{
		store:               store,
		uploader:            uploader,
		defaultWatchOptions: defaults,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /watches", s.handleCreateWatch)
	s.mux.HandleFunc("GET /watches/{id}", s.handleGetWatch)

	return s
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

// createWatchRequest is the JSON body for POST /watches.
type createWatchRequest struct {
	URL                 string   `json:"url"`
	NavigationTimeout   string   `json:"navigation_timeout,omitempty"`
	TotalTimeout        string   `json:"total_timeout,omitempty"`
	Intercept           bool     `json:"intercept"`
	DisableCache        bool     `json:"disable_cache"`
	EnableJavaScript    bool     `json:"enable_javascript"`
	AllowedHostnames    []string `json:"allowed_hostnames,omitempty"`
	DisallowedHostnames []string `json:"disallowed_hostnames,omitempty"`
}

// createWatchResponse is returned immediately from POST /watches.
type createWatchResponse struct {
	WatchID string `json:"watch_id"`
	Status  string `json:"status"`
}

func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var req createWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	opts := s.defaultWatchOptions
	opts.URL = req.URL
	opts.Intercept = req.Intercept
	opts.DisableCache = req.DisableCache
	opts.EnableJavaScript = req.EnableJavaScript
	if len(req.AllowedHostnames) > 0 {
		opts.AllowedHostnames = req.AllowedHostnames
	}
	if len(req.DisallowedHostnames) > 0 {
		opts.DisallowedHostnames = req.DisallowedHostnames
	}

	if req.NavigationTimeout != "" {
		d, err := time.ParseDuration(req.NavigationTimeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid navigation_timeout %q: %s", req.NavigationTimeout, err))
			return
		}
		opts.NavigationTimeout = d
	}
	if req.TotalTimeout != "" {
		d, err := time.ParseDuration(req.TotalTimeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid total_timeout %q: %s", req.TotalTimeout, err))
			return
		}
		opts.TotalTimeout = d
	}

	wt, err := s.store.Create(req.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create watch: "+err.Error())
		return
	}

	// Run the watch in the background. The request context is intentionally
	// not used here - it is cancelled the moment this handler returns, and
	// we do not want the watch cancelled when the HTTP connection closes.
	go watchop.Run(context.Background(), watchop.WorkerOptions{
		WatchID:      wt.ID,
		Store:        s.store,
		Uploader:     s.uploader,
		WatchOptions: opts,
	})

	writeJSON(w, http.StatusAccepted, createWatchResponse{
		WatchID: wt.ID,
		Status:  string(watchop.StatusPending),
	})
}

func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "watch id is required")
		return
	}

	wt, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("watch %q not found", id))
		return
	}

	writeJSON(w, http.StatusOK, wt)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
