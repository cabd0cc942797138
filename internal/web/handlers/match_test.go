package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/store/memory"
)

func matchRouter(st *memory.Store, index *store.PersonIndex) *chi.Mux {
	h := NewMatchHandler(st, index, testMatchingConfig())
	r := chi.NewRouter()
	r.Post("/match", h.Match)
	return r
}

func TestMatchHandler_RanksBestPerson(t *testing.T) {
	st := memory.New()
	alice := seedPerson(t, st, "Alice", 0)
	seedPerson(t, st, "Bob", 1)
	router := matchRouter(st, nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, "POST", "/match", matchRequest{
		Embedding: []float32{1, 0, 0, 0},
		TopK:      5,
	}))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Matches []matchResponse `json:"matches"`
		Count   int             `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 1 {
		t.Fatalf("expected 1 match (Bob is orthogonal), got %d", resp.Count)
	}
	if resp.Matches[0].PersonID != alice.ID {
		t.Errorf("expected Alice, got %s", resp.Matches[0].PersonName)
	}
	if resp.Matches[0].Confidence != "high" {
		t.Errorf("expected high confidence, got %s", resp.Matches[0].Confidence)
	}
}

func TestMatchHandler_BoostBreaksTie(t *testing.T) {
	st := memory.New()
	seedPerson(t, st, "Alice", 0)
	bob, err := st.CreatePerson(t.Context(), "Bob")
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	// Same direction as Alice but slightly off, so Bob needs the boost to win.
	err = st.AddEmbedding(t.Context(), store.FaceEmbedding{
		ID:       uuid.New(),
		PersonID: bob.ID,
		Vector:   []float32{0.97, 0.2429, 0, 0},
	})
	if err != nil {
		t.Fatalf("add embedding: %v", err)
	}
	router := matchRouter(st, nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, "POST", "/match", matchRequest{
		Embedding: []float32{1, 0, 0, 0},
		TopK:      2,
		Boost:     []uuid.UUID{bob.ID},
	}))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Matches []matchResponse `json:"matches"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(resp.Matches))
	}
	if resp.Matches[0].PersonID != bob.ID {
		t.Errorf("expected boosted Bob first, got %s", resp.Matches[0].PersonName)
	}
}

func TestMatchHandler_RequiresEmbedding(t *testing.T) {
	router := matchRouter(memory.New(), nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, "POST", "/match", matchRequest{}))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestMatchHandler_UsesIndexPreselection(t *testing.T) {
	st := memory.New()
	alice := seedPerson(t, st, "Alice", 0)
	seedPerson(t, st, "Bob", 1)

	persons, err := st.ListPersons(t.Context())
	if err != nil {
		t.Fatalf("list persons: %v", err)
	}
	index := store.NewPersonIndex()
	index.Build(persons)
	router := matchRouter(st, index)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, "POST", "/match", matchRequest{
		Embedding: []float32{1, 0, 0, 0},
		TopK:      3,
	}))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Matches []matchResponse `json:"matches"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Matches) == 0 || resp.Matches[0].PersonID != alice.ID {
		t.Fatalf("expected Alice via index pre-selection, got %+v", resp.Matches)
	}
}
