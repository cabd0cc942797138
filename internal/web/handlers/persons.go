package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/match"
	"github.com/recallapp/recall/internal/store"
)

// PersonsHandler serves person CRUD endpoints.
type PersonsHandler struct {
	store store.PersonWriter
}

// NewPersonsHandler creates a persons handler.
func NewPersonsHandler(st store.PersonWriter) *PersonsHandler {
	return &PersonsHandler{store: st}
}

type personResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	EmbeddingCount int       `json:"embedding_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type embeddingResponse struct {
	ID            uuid.UUID `json:"id"`
	Dim           int       `json:"dim"`
	CropRef       string    `json:"crop_ref,omitempty"`
	BoundingBoxID uuid.UUID `json:"bounding_box_id"`
	EncounterID   uuid.UUID `json:"encounter_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPersonResponse(p store.Person) personResponse {
	return personResponse{
		ID:             p.ID,
		Name:           p.Name,
		EmbeddingCount: len(p.Embeddings),
		CreatedAt:      p.CreatedAt,
	}
}

// List handles GET /persons.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	out := make([]personResponse, len(persons))
	for i, p := range persons {
		out[i] = toPersonResponse(p)
	}
	respondJSON(w, http.StatusOK, map[string]any{"persons": out, "count": len(out)})
}

// Create handles POST /persons. The name is stored as entered; when a
// person with the same normalized name already exists, that person is
// returned instead of creating a duplicate.
func (h *PersonsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}
	if existing := match.FindPersonByName(persons, name); existing != nil {
		respondJSON(w, http.StatusOK, toPersonResponse(*existing))
		return
	}

	person, err := h.store.CreatePerson(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create person")
		return
	}
	respondJSON(w, http.StatusCreated, toPersonResponse(*person))
}

// Get handles GET /persons/{id}.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	person, err := h.store.GetPerson(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(*person))
}

// Delete handles DELETE /persons/{id}.
func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	err := h.store.DeletePerson(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete person")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Embeddings handles GET /persons/{id}/embeddings.
func (h *PersonsHandler) Embeddings(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	person, err := h.store.GetPerson(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}

	out := make([]embeddingResponse, len(person.Embeddings))
	for i, emb := range person.Embeddings {
		out[i] = embeddingResponse{
			ID:            emb.ID,
			Dim:           len(emb.Vector),
			CropRef:       emb.CropRef,
			BoundingBoxID: emb.BoundingBoxID,
			EncounterID:   emb.EncounterID,
			CreatedAt:     emb.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"embeddings": out, "count": len(out)})
}
