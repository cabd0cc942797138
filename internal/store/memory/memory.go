// Package memory provides a mutex-guarded in-memory implementation of the
// store interfaces. It backs tests and the no-database mode of the server.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
)

// Store is an in-memory store.Store. The exported *Error fields inject
// failures for tests.
type Store struct {
	mu      sync.RWMutex
	persons map[uuid.UUID]*store.Person
	order   []uuid.UUID // person creation order
	photos  map[uuid.UUID]*store.EncounterPhoto
	encs    map[uuid.UUID]*encounterMeta

	// Error injection
	ListPersonsError      error
	ListBoxesError        error
	DeleteEmbeddingsError error
	UpdateBoxLabelError   error
}

type encounterMeta struct {
	id       uuid.UUID
	takenAt  time.Time
	location *store.LatLng
	photoIDs []uuid.UUID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		persons: make(map[uuid.UUID]*store.Person),
		photos:  make(map[uuid.UUID]*store.EncounterPhoto),
		encs:    make(map[uuid.UUID]*encounterMeta),
	}
}

func copyPerson(p *store.Person) store.Person {
	out := *p
	out.Embeddings = make([]store.FaceEmbedding, len(p.Embeddings))
	copy(out.Embeddings, p.Embeddings)
	return out
}

func copyPhoto(p *store.EncounterPhoto) store.EncounterPhoto {
	out := *p
	out.Boxes = make([]store.FaceBoundingBox, len(p.Boxes))
	copy(out.Boxes, p.Boxes)
	if p.Location != nil {
		loc := *p.Location
		out.Location = &loc
	}
	return out
}

// GetPerson retrieves a person with embeddings in insertion order.
func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*store.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyPerson(p)
	return &out, nil
}

// ListPersons returns all persons in creation order.
func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	if s.ListPersonsError != nil {
		return nil, s.ListPersonsError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Person, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.persons[id]; ok {
			out = append(out, copyPerson(p))
		}
	}
	return out, nil
}

// CountPersons returns the number of persons stored.
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.persons), nil
}

// CreatePerson stores a new person with the given name.
func (s *Store) CreatePerson(ctx context.Context, name string) (*store.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &store.Person{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.persons[p.ID] = p
	s.order = append(s.order, p.ID)
	out := copyPerson(p)
	return &out, nil
}

// DeletePerson removes a person; owned embeddings go with it.
func (s *Store) DeletePerson(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.persons, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddEmbedding attaches an embedding to its person.
func (s *Store) AddEmbedding(ctx context.Context, emb store.FaceEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[emb.PersonID]
	if !ok {
		return store.ErrNotFound
	}
	p.Embeddings = append(p.Embeddings, emb)
	return nil
}

// DeleteEmbeddings removes the given embeddings from their persons.
func (s *Store) DeleteEmbeddings(ctx context.Context, ids []uuid.UUID) error {
	if s.DeleteEmbeddingsError != nil {
		return s.DeleteEmbeddingsError
	}
	doomed := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.persons {
		kept := p.Embeddings[:0]
		for _, emb := range p.Embeddings {
			if !doomed[emb.ID] {
				kept = append(kept, emb)
			}
		}
		p.Embeddings = kept
	}
	return nil
}

// GetEncounter assembles an encounter with photos, boxes and derived person links.
func (s *Store) GetEncounter(ctx context.Context, id uuid.UUID) (*store.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.encs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	enc := s.assemble(meta)
	return &enc, nil
}

func (s *Store) assemble(meta *encounterMeta) store.Encounter {
	enc := store.Encounter{
		ID:      meta.id,
		TakenAt: meta.takenAt,
	}
	if meta.location != nil {
		loc := *meta.location
		enc.Location = &loc
	}
	for _, pid := range meta.photoIDs {
		if photo, ok := s.photos[pid]; ok {
			enc.Photos = append(enc.Photos, copyPhoto(photo))
		}
	}
	enc.DerivePersonIDs()
	return enc
}

// ListEncounters returns all encounters ordered by timestamp.
func (s *Store) ListEncounters(ctx context.Context) ([]store.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Encounter, 0, len(s.encs))
	for _, meta := range s.encs {
		out = append(out, s.assemble(meta))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TakenAt.Before(out[j].TakenAt)
	})
	return out, nil
}

// ListBoxes returns every box across all photos, clustered or not.
func (s *Store) ListBoxes(ctx context.Context) ([]store.FaceBoundingBox, error) {
	if s.ListBoxesError != nil {
		return nil, s.ListBoxesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.FaceBoundingBox
	for _, photo := range s.photos {
		out = append(out, photo.Boxes...)
	}
	return out, nil
}

// ListUnclusteredPhotos returns photos without an encounter, oldest first.
func (s *Store) ListUnclusteredPhotos(ctx context.Context) ([]store.EncounterPhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.EncounterPhoto
	for _, photo := range s.photos {
		if photo.EncounterID == uuid.Nil {
			out = append(out, copyPhoto(photo))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TakenAt.Before(out[j].TakenAt)
	})
	return out, nil
}

// SaveEncounter stores the encounter and claims its photos.
func (s *Store) SaveEncounter(ctx context.Context, enc *store.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := &encounterMeta{
		id:      enc.ID,
		takenAt: enc.TakenAt,
	}
	if enc.Location != nil {
		loc := *enc.Location
		meta.location = &loc
	}
	for i := range enc.Photos {
		photo := copyPhoto(&enc.Photos[i])
		photo.EncounterID = enc.ID
		s.photos[photo.ID] = &photo
		meta.photoIDs = append(meta.photoIDs, photo.ID)
	}
	s.encs[enc.ID] = meta
	return nil
}

// AddPhoto stores a photo that has not been clustered yet.
func (s *Store) AddPhoto(ctx context.Context, photo store.EncounterPhoto) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := copyPhoto(&photo)
	s.photos[p.ID] = &p
	return nil
}

// ReplaceBoxes swaps the box set of a photo after a detection pass.
func (s *Store) ReplaceBoxes(ctx context.Context, photoID uuid.UUID, boxes []store.FaceBoundingBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[photoID]
	if !ok {
		return store.ErrNotFound
	}
	photo.Boxes = make([]store.FaceBoundingBox, len(boxes))
	copy(photo.Boxes, boxes)
	for i := range photo.Boxes {
		photo.Boxes[i].PhotoID = photoID
	}
	return nil
}

// UpdateBoxLabel assigns a person to a box in place.
func (s *Store) UpdateBoxLabel(ctx context.Context, boxID, personID uuid.UUID, personName string, confidence float64, autoAccepted bool) error {
	if s.UpdateBoxLabelError != nil {
		return s.UpdateBoxLabelError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	box := s.findBox(boxID)
	if box == nil {
		return store.ErrNotFound
	}
	box.PersonID = personID
	box.PersonName = personName
	box.Confidence = confidence
	box.AutoAccepted = autoAccepted
	return nil
}

// ClearBoxLabel removes the person assignment from a box.
func (s *Store) ClearBoxLabel(ctx context.Context, boxID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	box := s.findBox(boxID)
	if box == nil {
		return store.ErrNotFound
	}
	box.PersonID = uuid.Nil
	box.PersonName = ""
	box.Confidence = 0
	box.AutoAccepted = false
	return nil
}

func (s *Store) findBox(boxID uuid.UUID) *store.FaceBoundingBox {
	for _, photo := range s.photos {
		for i := range photo.Boxes {
			if photo.Boxes[i].ID == boxID {
				return &photo.Boxes[i]
			}
		}
	}
	return nil
}
