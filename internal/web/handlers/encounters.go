package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/encounter"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
)

// EncountersHandler serves encounter and face-box endpoints. Label writes
// go through the pipeline so they take the encounter write lock.
type EncountersHandler struct {
	store      store.Store
	clustering encounter.Options
	pipeline   *scan.Pipeline
}

// NewEncountersHandler creates an encounters handler.
func NewEncountersHandler(st store.Store, clustering encounter.Options, pipeline *scan.Pipeline) *EncountersHandler {
	return &EncountersHandler{store: st, clustering: clustering, pipeline: pipeline}
}

type boxResponse struct {
	ID           uuid.UUID    `json:"id"`
	PhotoID      uuid.UUID    `json:"photo_id"`
	Rect         store.Rect   `json:"rect"`
	PersonID     uuid.UUID    `json:"person_id"`
	PersonName   string       `json:"person_name,omitempty"`
	Confidence   float64      `json:"confidence"`
	AutoAccepted bool         `json:"auto_accepted"`
}

type photoResponse struct {
	ID       uuid.UUID     `json:"id"`
	ImageRef string        `json:"image_ref"`
	TakenAt  time.Time     `json:"taken_at"`
	Location *store.LatLng `json:"location,omitempty"`
	Boxes    []boxResponse `json:"boxes"`
}

type encounterResponse struct {
	ID        uuid.UUID       `json:"id"`
	TakenAt   time.Time       `json:"taken_at"`
	Location  *store.LatLng   `json:"location,omitempty"`
	Photos    []photoResponse `json:"photos"`
	PersonIDs []uuid.UUID     `json:"person_ids"`
}

func toBoxResponse(b store.FaceBoundingBox) boxResponse {
	return boxResponse{
		ID:           b.ID,
		PhotoID:      b.PhotoID,
		Rect:         b.Rect,
		PersonID:     b.PersonID,
		PersonName:   b.PersonName,
		Confidence:   b.Confidence,
		AutoAccepted: b.AutoAccepted,
	}
}

func toEncounterResponse(enc store.Encounter) encounterResponse {
	photos := make([]photoResponse, len(enc.Photos))
	for i, photo := range enc.Photos {
		boxes := make([]boxResponse, len(photo.Boxes))
		for j, box := range photo.Boxes {
			boxes[j] = toBoxResponse(box)
		}
		photos[i] = photoResponse{
			ID:       photo.ID,
			ImageRef: photo.ImageRef,
			TakenAt:  photo.TakenAt,
			Location: photo.Location,
			Boxes:    boxes,
		}
	}
	if enc.PersonIDs == nil {
		enc.PersonIDs = []uuid.UUID{}
	}
	return encounterResponse{
		ID:        enc.ID,
		TakenAt:   enc.TakenAt,
		Location:  enc.Location,
		Photos:    photos,
		PersonIDs: enc.PersonIDs,
	}
}

// List handles GET /encounters.
func (h *EncountersHandler) List(w http.ResponseWriter, r *http.Request) {
	encounters, err := h.store.ListEncounters(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list encounters")
		return
	}
	out := make([]encounterResponse, len(encounters))
	for i, enc := range encounters {
		out[i] = toEncounterResponse(enc)
	}
	respondJSON(w, http.StatusOK, map[string]any{"encounters": out, "count": len(out)})
}

// Get handles GET /encounters/{id}.
func (h *EncountersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	enc, err := h.store.GetEncounter(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "encounter not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get encounter")
		return
	}
	respondJSON(w, http.StatusOK, toEncounterResponse(*enc))
}

// Cluster handles POST /encounters/cluster: groups all unclustered photos
// into encounters and persists them.
func (h *EncountersHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	photos, err := h.store.ListUnclusteredPhotos(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}

	encounters := encounter.Cluster(photos, h.clustering)
	for i := range encounters {
		if err := h.store.SaveEncounter(r.Context(), &encounters[i]); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to save encounter")
			return
		}
	}

	out := make([]encounterResponse, len(encounters))
	for i, enc := range encounters {
		out[i] = toEncounterResponse(enc)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"encounters":     out,
		"count":          len(out),
		"photos_grouped": len(photos),
	})
}

// LabelBox handles PUT /encounters/{id}/boxes/{boxID}/label: assigns a
// person to a face box and records the face embedding when provided. The
// write goes through the pipeline under the encounter's lock so it never
// races a concurrent scan labeling the same encounter. Propagation needs
// sibling face crops and stays with the scan path.
func (h *EncountersHandler) LabelBox(w http.ResponseWriter, r *http.Request) {
	encID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	boxID, ok := urlUUID(w, r, "boxID")
	if !ok {
		return
	}

	var req struct {
		PersonID   uuid.UUID `json:"person_id"`
		Confidence float64   `json:"confidence"`
		Embedding  []float32 `json:"embedding"`
		CropRef    string    `json:"crop_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.PersonID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}

	person, err := h.store.GetPerson(r.Context(), req.PersonID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}

	_, err = h.pipeline.LabelFace(r.Context(), scan.LabelRequest{
		Photo:      store.EncounterPhoto{EncounterID: encID},
		Box:        store.FaceBoundingBox{ID: boxID},
		Embedding:  req.Embedding,
		CropRef:    req.CropRef,
		Person:     *person,
		Confidence: req.Confidence,
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "box not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to label box")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "labeled"})
}

// ClearBoxLabel handles DELETE /encounters/{id}/boxes/{boxID}/label.
func (h *EncountersHandler) ClearBoxLabel(w http.ResponseWriter, r *http.Request) {
	if _, ok := urlUUID(w, r, "id"); !ok {
		return
	}
	boxID, ok := urlUUID(w, r, "boxID")
	if !ok {
		return
	}

	err := h.store.ClearBoxLabel(r.Context(), boxID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "box not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear label")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
