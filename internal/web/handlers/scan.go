package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
)

// maxUploadSize caps scan uploads at 50MB.
const maxUploadSize = 50 << 20

// ScanHandler runs the detect/reconcile/match pipeline on uploaded photos.
type ScanHandler struct {
	store    store.Store
	pipeline *scan.Pipeline
}

// NewScanHandler creates a scan handler.
func NewScanHandler(st store.Store, pipeline *scan.Pipeline) *ScanHandler {
	return &ScanHandler{store: st, pipeline: pipeline}
}

type suggestionResponse struct {
	Box     boxResponse     `json:"box"`
	Matches []matchResponse `json:"matches"`
}

// Scan handles POST /scan: a multipart photo upload. The photo is stored
// as unclustered, faces are detected and matched, and ranked suggestions
// come back for review.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	photo := store.EncounterPhoto{
		ID:       uuid.New(),
		ImageRef: r.FormValue("image_ref"),
		TakenAt:  parseTakenAt(r.FormValue("taken_at")),
		Location: parseLocation(r.FormValue("lat"), r.FormValue("lng")),
	}
	if err := h.store.AddPhoto(r.Context(), photo); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	result := h.pipeline.ScanPhoto(r.Context(), scan.PhotoInput{Photo: photo, Image: imageData})
	if result.Err != nil {
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	boxes := make([]boxResponse, len(result.Boxes))
	for i, box := range result.Boxes {
		boxes[i] = toBoxResponse(box)
	}
	suggestions := make([]suggestionResponse, len(result.Suggestions))
	for i, s := range result.Suggestions {
		matches := make([]matchResponse, len(s.Matches))
		for j, m := range s.Matches {
			matches[j] = matchResponse{
				PersonID:   m.Person.ID,
				PersonName: m.Person.Name,
				Similarity: m.Similarity,
				Confidence: string(m.Confidence),
			}
		}
		suggestions[i] = suggestionResponse{Box: toBoxResponse(s.Box), Matches: matches}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photo_id":    photo.ID,
		"boxes":       boxes,
		"suggestions": suggestions,
	})
}

// parseTakenAt parses an RFC3339 timestamp, defaulting to now.
func parseTakenAt(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}

// parseLocation builds a coordinate pair; both fields must parse.
func parseLocation(latStr, lngStr string) *store.LatLng {
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil
	}
	return &store.LatLng{Lat: lat, Lng: lng}
}
