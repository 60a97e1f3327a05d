// Package adminhttp exposes the operational and lifecycle admin surface
// over the declared cluster, the same role the teacher's AdminHTTP plays
// for its own state.
package adminhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/davecgh/go-spew/spew"
	log "github.com/golang/glog"

	"github.com/mesosphere/kafka-mesos/internal/reconciler"
)

// Server serves the admin HTTP surface from a Reconciler.
type Server struct {
	rec  *reconciler.Reconciler
	port int
}

// New builds a Server. Nothing is listening until Serve is called.
func New(rec *reconciler.Reconciler, port int) *Server {
	return &Server{rec: rec, port: port}
}

// Serve starts the admin HTTP interface and blocks until it exits; intended
// to be run on its own goroutine.
func (s *Server) Serve() {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/brokers", s.handleBrokers)
	mux.HandleFunc("/brokers/dump", s.handleBrokersDump)
	mux.HandleFunc("/brokers/", s.handleBrokerRemove)

	log.Infof("adminhttp: listening on port %d", s.port)
	log.Error(http.ListenAndServe(fmt.Sprintf(":%d", s.port), mux))
}

// handleStats serves the lifetime reconcile counters, JSON-encoded the same
// way the teacher's /stats endpoint reports its own counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log.Infof("adminhttp: received %s %s", r.Method, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.rec.Stats()); err != nil {
		log.Errorf("adminhttp: failed to encode /stats response: %v", err)
	}
}

// handleBrokers lists the declared cluster on GET and declares a new broker
// on POST, JSON-encoded the same way the teacher's /members endpoint does.
func (s *Server) handleBrokers(w http.ResponseWriter, r *http.Request) {
	log.Infof("adminhttp: received %s %s", r.Method, r.URL.Path)
	switch r.Method {
	case http.MethodGet, "":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.rec.Snapshot()); err != nil {
			log.Errorf("adminhttp: failed to encode /brokers response: %v", err)
		}

	case http.MethodPost:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "adminhttp: missing required \"id\" query parameter", http.StatusBadRequest)
			return
		}
		var req reconciler.BrokerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("adminhttp: decoding request body: %v", err), http.StatusBadRequest)
			return
		}
		if err := s.rec.AddBroker(id, req); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)

	default:
		http.Error(w, "adminhttp: method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBrokersDump serves a human-readable go-spew dump of the broker
// snapshot, as an operator debugging aid.
func (s *Server) handleBrokersDump(w http.ResponseWriter, r *http.Request) {
	log.Infof("adminhttp: received %s %s", r.Method, r.URL.Path)
	fmt.Fprint(w, spew.Sdump(s.rec.Snapshot()))
}

// handleBrokerRemove parses /brokers/<id>/remove, since go.mod predates Go's
// 1.22 method-and-pattern mux routing and the id segment must be extracted
// by hand.
func (s *Server) handleBrokerRemove(w http.ResponseWriter, r *http.Request) {
	log.Infof("adminhttp: received %s %s", r.Method, r.URL.Path)

	rest := strings.TrimPrefix(r.URL.Path, "/brokers/")
	id := strings.TrimSuffix(rest, "/remove")
	if id == rest || id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "adminhttp: method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.rec.RemoveBroker(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
