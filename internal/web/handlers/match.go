package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/match"
	"github.com/recallapp/recall/internal/store"
)

// MatchHandler ranks person suggestions for a query embedding.
type MatchHandler struct {
	store    store.PersonReader
	index    *store.PersonIndex // optional, pre-selects candidates
	matching config.MatchingConfig
}

// NewMatchHandler creates a match handler. index may be nil, in which case
// every stored person is a candidate.
func NewMatchHandler(st store.PersonReader, index *store.PersonIndex, matching config.MatchingConfig) *MatchHandler {
	return &MatchHandler{store: st, index: index, matching: matching}
}

type matchRequest struct {
	Embedding []float32   `json:"embedding"`
	TopK      int         `json:"top_k"`
	Threshold float64     `json:"threshold"` // 0 keeps the configured default
	Boost     []uuid.UUID `json:"boost"`     // recently seen persons
}

type matchResponse struct {
	PersonID   uuid.UUID `json:"person_id"`
	PersonName string    `json:"person_name"`
	Similarity float64   `json:"similarity"`
	Confidence string    `json:"confidence"`
}

// Match handles POST /match.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}

	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	candidates := h.preselect(req.Embedding, persons)

	opts := match.OptionsFromConfig(h.matching)
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.Threshold > 0 {
		opts.Threshold = req.Threshold
	}
	if len(req.Boost) > 0 {
		opts.Boost = make(map[uuid.UUID]bool, len(req.Boost))
		for _, id := range req.Boost {
			opts.Boost[id] = true
		}
	}

	results := match.FindMatches(req.Embedding, candidates, opts)
	out := make([]matchResponse, len(results))
	for i, res := range results {
		out[i] = matchResponse{
			PersonID:   res.Person.ID,
			PersonName: res.Person.Name,
			Similarity: res.Similarity,
			Confidence: string(res.Confidence),
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": out, "count": len(out)})
}

// preselect narrows the candidate set through the HNSW index when one is
// available. Falls back to every person on an empty/missing index.
func (h *MatchHandler) preselect(query []float32, persons []store.Person) []store.Person {
	if h.index == nil || h.index.Len() == 0 {
		return persons
	}
	nearest := h.index.NearestPersons(query, 16)
	if len(nearest) == 0 {
		return persons
	}
	wanted := make(map[uuid.UUID]bool, len(nearest))
	for _, id := range nearest {
		wanted[id] = true
	}
	candidates := make([]store.Person, 0, len(nearest))
	for _, p := range persons {
		if wanted[p.ID] {
			candidates = append(candidates, p)
		}
	}
	return candidates
}
