// Package server exposes a graph document over HTTP.
//
// The document is read from disk on every request, so a running server picks
// up the graph written by the latest scan without a restart.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/orgraph/pkg/graph"
)

// Server serves the graph stored at Path.
type Server struct {
	path   string
	logger *log.Logger
}

// New creates a Server for the graph document at path.
func New(path string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{path: path, logger: logger}
}

// Handler returns the HTTP routes:
//
//	GET /healthz      liveness probe
//	GET /graph        the graph document
//	GET /stats?top=N  summary with the N most depended-on nodes
//	GET /nodes/{id}   one node with its incoming and outgoing links
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Get("/graph", s.handleGraph)
	r.Get("/stats", s.handleStats)
	r.Get("/nodes/*", s.handleNode)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) load(w http.ResponseWriter) (*graph.Graph, bool) {
	g, err := graph.ReadFile(s.path)
	if err == nil {
		return g, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "no graph has been written yet")
		return nil, false
	}
	s.logger.Error("read graph", "path", s.path, "err", err)
	writeError(w, http.StatusInternalServerError, "graph document is unreadable")
	return nil, false
}

func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	g, ok := s.load(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := graph.WriteJSON(w, g); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "top must be an integer")
			return
		}
		top = n
	}
	g, ok := s.load(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.Stats(g, top))
}

// NodeDetail is the /nodes response.
type NodeDetail struct {
	graph.Node
	DependsOn    []graph.Link `json:"depends_on"`
	DependedOnBy []graph.Link `json:"depended_on_by"`
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	g, ok := s.load(w)
	if !ok {
		return
	}
	for _, n := range g.Nodes {
		if n.ID != id {
			continue
		}
		d := NodeDetail{Node: n, DependsOn: []graph.Link{}, DependedOnBy: []graph.Link{}}
		for _, l := range g.Links {
			if l.Source == id {
				d.DependsOn = append(d.DependsOn, l)
			}
			if l.Target == id {
				d.DependedOnBy = append(d.DependedOnBy, l)
			}
		}
		writeJSON(w, http.StatusOK, d)
		return
	}
	writeError(w, http.StatusNotFound, "unknown node "+strconv.Quote(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
