package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// PersonReader provides read-only access to persons and their embeddings.
type PersonReader interface {
	// GetPerson retrieves a person with embeddings loaded in insertion order.
	GetPerson(ctx context.Context, id uuid.UUID) (*Person, error)
	// ListPersons returns all persons with embeddings loaded.
	ListPersons(ctx context.Context) ([]Person, error)
	// CountPersons returns the number of persons stored.
	CountPersons(ctx context.Context) (int, error)
}

// PersonWriter provides write access to persons and their embeddings.
type PersonWriter interface {
	PersonReader

	// CreatePerson stores a new person with the given name.
	CreatePerson(ctx context.Context, name string) (*Person, error)
	// DeletePerson removes a person and cascades deletion of owned embeddings.
	DeletePerson(ctx context.Context, id uuid.UUID) error
	// AddEmbedding attaches a face embedding to its person.
	AddEmbedding(ctx context.Context, emb FaceEmbedding) error
	// DeleteEmbeddings removes the given embeddings in one operation.
	// Used by the integrity auditor after the full orphan set is known.
	DeleteEmbeddings(ctx context.Context, ids []uuid.UUID) error
}

// EncounterReader provides read-only access to encounters, photos and boxes.
type EncounterReader interface {
	// GetEncounter retrieves an encounter with photos and boxes loaded.
	GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// ListEncounters returns all encounters ordered by timestamp.
	ListEncounters(ctx context.Context) ([]Encounter, error)
	// ListBoxes returns every face bounding box across all encounters.
	// The integrity auditor builds its ownership map from this.
	ListBoxes(ctx context.Context) ([]FaceBoundingBox, error)
	// ListUnclusteredPhotos returns photos not yet assigned to any encounter.
	ListUnclusteredPhotos(ctx context.Context) ([]EncounterPhoto, error)
}

// EncounterWriter provides write access to encounters, photos and boxes.
type EncounterWriter interface {
	EncounterReader

	// SaveEncounter stores an encounter together with its photos and boxes,
	// claiming any previously unclustered photos it contains.
	SaveEncounter(ctx context.Context, enc *Encounter) error
	// AddPhoto stores a photo that has not been clustered yet.
	AddPhoto(ctx context.Context, photo EncounterPhoto) error
	// ReplaceBoxes swaps the box set of a photo after a detection pass.
	ReplaceBoxes(ctx context.Context, photoID uuid.UUID, boxes []FaceBoundingBox) error
	// UpdateBoxLabel assigns a person to a box as a single atomic update.
	UpdateBoxLabel(ctx context.Context, boxID, personID uuid.UUID, personName string, confidence float64, autoAccepted bool) error
	// ClearBoxLabel removes the person assignment from a box.
	ClearBoxLabel(ctx context.Context, boxID uuid.UUID) error
}

// Store is the full persistence surface the application needs.
type Store interface {
	PersonWriter
	EncounterWriter
}
