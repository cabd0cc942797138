package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/detect"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/store/memory"
)

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		Threshold:      0.75,
		HighConfidence: 0.85,
		AutoAccept:     0.90,
		Boost:          0.05,
		IoU:            0.25,
	}
}

// testPipeline builds a pipeline over the store; detection and embedding
// are not exercised by handler tests that only label.
func testPipeline(st *memory.Store) *scan.Pipeline {
	return scan.New(st, nil, nil, &config.Config{Matching: testMatchingConfig()})
}

// seedPerson creates a person with one unit embedding along the given axis.
func seedPerson(t *testing.T, st *memory.Store, name string, axis int) *store.Person {
	t.Helper()
	person, err := st.CreatePerson(context.Background(), name)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	vec := make([]float32, 4)
	vec[axis] = 1
	err = st.AddEmbedding(context.Background(), store.FaceEmbedding{
		ID:       uuid.New(),
		PersonID: person.ID,
		Vector:   vec,
	})
	if err != nil {
		t.Fatalf("add embedding: %v", err)
	}
	return person
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Fatalf("expected status %d, got %d (body: %s)", expected, recorder.Code, recorder.Body.String())
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body: %s)", err, recorder.Body.String())
	}
}

// stubDetector returns a fixed face list for any image.
type stubDetector struct {
	faces []detect.Face
	err   error
}

func (d *stubDetector) Detect(ctx context.Context, imageData []byte) ([]detect.Face, error) {
	return d.faces, d.err
}

// stubEmbedder returns a fixed vector for any crop.
type stubEmbedder struct {
	vector []float32
	err    error
}

func (e *stubEmbedder) EmbedFace(ctx context.Context, crop []byte) ([]float32, error) {
	return e.vector, e.err
}
