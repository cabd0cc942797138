package store

import (
	"time"

	"github.com/google/uuid"
)

// Person is a named identity the user wants to recall. Embeddings keep
// insertion order; the first one acts as the profile face.
type Person struct {
	ID         uuid.UUID
	Name       string
	Embeddings []FaceEmbedding
	CreatedAt  time.Time
}

// FaceEmbedding is one face vector attributed to a person. It is owned by
// exactly one person at a time. BoundingBoxID and EncounterID are loose
// references (uuid.Nil when unknown); no referential integrity is enforced
// at write time, the integrity auditor repairs drift.
type FaceEmbedding struct {
	ID            uuid.UUID
	PersonID      uuid.UUID
	Vector        []float32
	CropRef       string    // reference to the stored face crop
	BoundingBoxID uuid.UUID // box the vector was derived from, uuid.Nil for pre-tracking data
	EncounterID   uuid.UUID // uuid.Nil when not recorded
	CreatedAt     time.Time
}

// Rect is a normalized rectangle in a bottom-left-origin unit square.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the rectangle area, 0 for degenerate rects.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// FaceBoundingBox locates one detected face within a photo. PersonID is
// uuid.Nil while the face is unlabeled. PersonName is a denormalized cache
// of the owning person's name at label time.
type FaceBoundingBox struct {
	ID           uuid.UUID
	PhotoID      uuid.UUID
	Rect         Rect
	PersonID     uuid.UUID
	PersonName   string
	Confidence   float64 // similarity at label time, 0 when labeled manually
	AutoAccepted bool
}

// Labeled reports whether the box is currently assigned to a person.
func (b FaceBoundingBox) Labeled() bool {
	return b.PersonID != uuid.Nil
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EncounterPhoto is a single photo with its detected face boxes.
// EncounterID is uuid.Nil until the photo has been clustered.
type EncounterPhoto struct {
	ID          uuid.UUID
	EncounterID uuid.UUID
	ImageRef    string
	TakenAt     time.Time
	Location    *LatLng
	Boxes       []FaceBoundingBox
}

// Encounter is a modeled real-world meeting: a group of photos close in
// time and optionally location. TakenAt is the earliest photo's timestamp,
// Location comes from the first photo that has one. PersonIDs is a derived
// view recomputed from box ownership, never authoritative.
type Encounter struct {
	ID        uuid.UUID
	TakenAt   time.Time
	Location  *LatLng
	Photos    []EncounterPhoto
	PersonIDs []uuid.UUID
}

// DerivePersonIDs recomputes the encounter's person links from current box
// ownership, preserving first-seen order.
func (e *Encounter) DerivePersonIDs() {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0)
	for _, photo := range e.Photos {
		for _, box := range photo.Boxes {
			if box.PersonID == uuid.Nil || seen[box.PersonID] {
				continue
			}
			seen[box.PersonID] = true
			ids = append(ids, box.PersonID)
		}
	}
	e.PersonIDs = ids
}
