package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
)

func TestPersonLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreatePerson(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	emb := store.FaceEmbedding{ID: uuid.New(), PersonID: alice.ID, Vector: []float32{1, 0}}
	if err := s.AddEmbedding(ctx, emb); err != nil {
		t.Fatalf("AddEmbedding: %v", err)
	}

	got, err := s.GetPerson(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if len(got.Embeddings) != 1 || got.Embeddings[0].ID != emb.ID {
		t.Errorf("expected embedding attached to person")
	}

	count, _ := s.CountPersons(ctx)
	if count != 1 {
		t.Errorf("expected 1 person, got %d", count)
	}

	if err := s.DeletePerson(ctx, alice.ID); err != nil {
		t.Fatalf("DeletePerson: %v", err)
	}
	if _, err := s.GetPerson(ctx, alice.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after deletion, got %v", err)
	}
}

func TestListPersons_CreationOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	names := []string{"Alice", "Bob", "Carol"}
	for _, n := range names {
		if _, err := s.CreatePerson(ctx, n); err != nil {
			t.Fatalf("CreatePerson(%s): %v", n, err)
		}
	}

	persons, err := s.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons: %v", err)
	}
	for i, n := range names {
		if persons[i].Name != n {
			t.Errorf("expected persons in creation order, got %s at %d", persons[i].Name, i)
		}
	}
}

func TestDeleteEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, _ := s.CreatePerson(ctx, "Alice")
	keep := store.FaceEmbedding{ID: uuid.New(), PersonID: alice.ID}
	drop := store.FaceEmbedding{ID: uuid.New(), PersonID: alice.ID}
	s.AddEmbedding(ctx, keep)
	s.AddEmbedding(ctx, drop)

	if err := s.DeleteEmbeddings(ctx, []uuid.UUID{drop.ID}); err != nil {
		t.Fatalf("DeleteEmbeddings: %v", err)
	}

	got, _ := s.GetPerson(ctx, alice.ID)
	if len(got.Embeddings) != 1 || got.Embeddings[0].ID != keep.ID {
		t.Errorf("expected only the kept embedding to remain")
	}
}

func TestEncounterRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	personID := uuid.New()
	box := store.FaceBoundingBox{
		ID:         uuid.New(),
		Rect:       store.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
		PersonID:   personID,
		PersonName: "Alice",
	}
	photo := store.EncounterPhoto{
		ID:      uuid.New(),
		TakenAt: time.Now(),
		Boxes:   []store.FaceBoundingBox{box},
	}
	enc := &store.Encounter{
		ID:      uuid.New(),
		TakenAt: photo.TakenAt,
		Photos:  []store.EncounterPhoto{photo},
	}

	if err := s.SaveEncounter(ctx, enc); err != nil {
		t.Fatalf("SaveEncounter: %v", err)
	}

	got, err := s.GetEncounter(ctx, enc.ID)
	if err != nil {
		t.Fatalf("GetEncounter: %v", err)
	}
	if len(got.Photos) != 1 || len(got.Photos[0].Boxes) != 1 {
		t.Fatalf("expected 1 photo with 1 box")
	}
	if got.Photos[0].EncounterID != enc.ID {
		t.Errorf("photo must be claimed by the encounter")
	}
	if len(got.PersonIDs) != 1 || got.PersonIDs[0] != personID {
		t.Errorf("expected derived person link, got %v", got.PersonIDs)
	}
}

func TestUpdateAndClearBoxLabel(t *testing.T) {
	ctx := context.Background()
	s := New()

	box := store.FaceBoundingBox{ID: uuid.New()}
	photo := store.EncounterPhoto{ID: uuid.New(), Boxes: []store.FaceBoundingBox{box}}
	if err := s.AddPhoto(ctx, photo); err != nil {
		t.Fatalf("AddPhoto: %v", err)
	}

	personID := uuid.New()
	if err := s.UpdateBoxLabel(ctx, box.ID, personID, "Alice", 0.93, true); err != nil {
		t.Fatalf("UpdateBoxLabel: %v", err)
	}

	boxes, _ := s.ListBoxes(ctx)
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}
	if boxes[0].PersonID != personID || boxes[0].PersonName != "Alice" || !boxes[0].AutoAccepted {
		t.Errorf("label not applied: %+v", boxes[0])
	}

	if err := s.ClearBoxLabel(ctx, box.ID); err != nil {
		t.Fatalf("ClearBoxLabel: %v", err)
	}
	boxes, _ = s.ListBoxes(ctx)
	if boxes[0].Labeled() || boxes[0].PersonName != "" {
		t.Errorf("label not cleared: %+v", boxes[0])
	}

	if err := s.UpdateBoxLabel(ctx, uuid.New(), personID, "Alice", 0, false); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown box, got %v", err)
	}
}

func TestReplaceBoxes(t *testing.T) {
	ctx := context.Background()
	s := New()

	photo := store.EncounterPhoto{
		ID:    uuid.New(),
		Boxes: []store.FaceBoundingBox{{ID: uuid.New()}},
	}
	s.AddPhoto(ctx, photo)

	fresh := []store.FaceBoundingBox{{ID: uuid.New()}, {ID: uuid.New()}}
	if err := s.ReplaceBoxes(ctx, photo.ID, fresh); err != nil {
		t.Fatalf("ReplaceBoxes: %v", err)
	}

	boxes, _ := s.ListBoxes(ctx)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes after replacement, got %d", len(boxes))
	}
	for _, b := range boxes {
		if b.PhotoID != photo.ID {
			t.Errorf("replaced boxes must reference their photo")
		}
	}
}

func TestListUnclusteredPhotos(t *testing.T) {
	ctx := context.Background()
	s := New()

	older := store.EncounterPhoto{ID: uuid.New(), TakenAt: time.Now().Add(-time.Hour)}
	newer := store.EncounterPhoto{ID: uuid.New(), TakenAt: time.Now()}
	clustered := store.EncounterPhoto{ID: uuid.New(), EncounterID: uuid.New(), TakenAt: time.Now()}
	s.AddPhoto(ctx, newer)
	s.AddPhoto(ctx, older)
	s.AddPhoto(ctx, clustered)

	photos, err := s.ListUnclusteredPhotos(ctx)
	if err != nil {
		t.Fatalf("ListUnclusteredPhotos: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 unclustered photos, got %d", len(photos))
	}
	if photos[0].ID != older.ID {
		t.Errorf("expected oldest photo first")
	}
}
