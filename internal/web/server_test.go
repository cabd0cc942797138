package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store/memory"
)

func testServer() *Server {
	cfg := &config.Config{
		Matching: config.MatchingConfig{
			Threshold:      0.75,
			HighConfidence: 0.85,
			AutoAccept:     0.90,
			Boost:          0.05,
			IoU:            0.25,
		},
		Clustering: config.ClusteringConfig{
			TimeThresholdMinutes:    30,
			DistanceThresholdMeters: 500,
		},
	}
	st := memory.New()
	pipeline := scan.New(st, nil, nil, cfg)
	return NewServer(cfg, "127.0.0.1", 0, st, pipeline, nil)
}

func TestServer_HealthRoute(t *testing.T) {
	server := testServer()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestServer_RoutesRegistered(t *testing.T) {
	server := testServer()

	// A request to a registered route with a bad body must not 404/405.
	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/persons"},
		{"POST", "/api/v1/persons"},
		{"POST", "/api/v1/match"},
		{"GET", "/api/v1/encounters"},
		{"POST", "/api/v1/encounters/cluster"},
		{"POST", "/api/v1/audit"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			recorder := httptest.NewRecorder()
			server.Router().ServeHTTP(recorder, req)

			if recorder.Code == http.StatusNotFound || recorder.Code == http.StatusMethodNotAllowed {
				t.Errorf("route not registered: got %d", recorder.Code)
			}
		})
	}
}
