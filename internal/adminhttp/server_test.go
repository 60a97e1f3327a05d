package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mesosphere/kafka-mesos/internal/broker"
	"github.com/mesosphere/kafka-mesos/internal/cluster"
	"github.com/mesosphere/kafka-mesos/internal/reconciler"
	"github.com/mesosphere/kafka-mesos/internal/taskbuilder"
)

func newTestServer() (*Server, *reconciler.Reconciler, *cluster.Cluster) {
	cl := cluster.New(nil)
	rec := reconciler.New(cl, taskbuilder.Config{}, nil)
	return New(rec, 0), rec, cl
}

func TestHandleStatsServesLifetimeCounters(t *testing.T) {
	s, rec, cl := newTestServer()
	cl.AddBroker(broker.New("0", 1, 512, 256, nil, nil))
	rec.ResourceOffers(nil) // bumps ReconcileCount with no actions taken

	w := httptest.NewRecorder()
	s.handleStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var got reconciler.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding /stats response: %v", err)
	}
	if got.ReconcileCount != 1 {
		t.Errorf("ReconcileCount = %d, want 1", got.ReconcileCount)
	}
}

func TestHandleBrokersListsDeclaredBrokers(t *testing.T) {
	s, _, cl := newTestServer()
	cl.AddBroker(broker.New("0", 1, 512, 256, nil, nil))

	w := httptest.NewRecorder()
	s.handleBrokers(w, httptest.NewRequest(http.MethodGet, "/brokers", nil))

	var got []reconciler.BrokerView
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding /brokers response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "0" {
		t.Errorf("expected one broker view for id 0, got %+v", got)
	}
}

func TestHandleBrokersCreatesABrokerOnPost(t *testing.T) {
	s, _, cl := newTestServer()

	body := strings.NewReader(`{"cpus": 1, "mem_mb": 512, "heap_mb": 256}`)
	w := httptest.NewRecorder()
	s.handleBrokers(w, httptest.NewRequest(http.MethodPost, "/brokers?id=0", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if _, ok := cl.GetBroker("0"); !ok {
		t.Fatal("expected broker 0 to be declared in the cluster")
	}
}

func TestHandleBrokersPostRequiresAnID(t *testing.T) {
	s, _, _ := newTestServer()

	w := httptest.NewRecorder()
	s.handleBrokers(w, httptest.NewRequest(http.MethodPost, "/brokers", strings.NewReader(`{}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleBrokerRemoveDeletesTheBroker(t *testing.T) {
	s, _, cl := newTestServer()
	cl.AddBroker(broker.New("0", 1, 512, 256, nil, nil))

	w := httptest.NewRecorder()
	s.handleBrokerRemove(w, httptest.NewRequest(http.MethodPost, "/brokers/0/remove", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}
	if _, ok := cl.GetBroker("0"); ok {
		t.Error("expected broker 0 to be removed from the cluster")
	}
}

func TestHandleBrokerRemoveOnAnUnknownIDIs404(t *testing.T) {
	s, _, _ := newTestServer()

	w := httptest.NewRecorder()
	s.handleBrokerRemove(w, httptest.NewRequest(http.MethodPost, "/brokers/missing/remove", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleBrokerRemoveRejectsAPathWithoutTheRemoveSuffix(t *testing.T) {
	s, _, _ := newTestServer()

	w := httptest.NewRecorder()
	s.handleBrokerRemove(w, httptest.NewRequest(http.MethodGet, "/brokers/0", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
