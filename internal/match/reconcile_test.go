package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
)

func TestReconcile_CarriesLabelAcrossRedetection(t *testing.T) {
	personID := uuid.New()
	existing := []store.FaceBoundingBox{
		{
			ID:           uuid.New(),
			Rect:         store.Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5},
			PersonID:     personID,
			PersonName:   "Alice",
			AutoAccepted: true,
		},
	}
	fresh := []store.FaceBoundingBox{
		{
			ID:   uuid.New(),
			Rect: store.Rect{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5},
		},
	}

	reconciled := Reconcile(existing, fresh, 0.25)

	if len(reconciled) != 1 {
		t.Fatalf("expected 1 box, got %d", len(reconciled))
	}
	if reconciled[0].PersonID != personID {
		t.Errorf("expected person ID carried over")
	}
	if reconciled[0].PersonName != "Alice" {
		t.Errorf("expected person name 'Alice', got '%s'", reconciled[0].PersonName)
	}
	if !reconciled[0].AutoAccepted {
		t.Errorf("expected auto-accepted flag carried over")
	}
	if reconciled[0].ID != fresh[0].ID {
		t.Errorf("fresh box identity must be preserved")
	}
}

func TestReconcile_NoOverlapStaysUnlabeled(t *testing.T) {
	existing := []store.FaceBoundingBox{
		{
			Rect:       store.Rect{X: 0, Y: 0, Width: 0.2, Height: 0.2},
			PersonID:   uuid.New(),
			PersonName: "Alice",
		},
	}
	fresh := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0.7, Y: 0.7, Width: 0.2, Height: 0.2}},
	}

	reconciled := Reconcile(existing, fresh, 0.25)

	if reconciled[0].Labeled() {
		t.Errorf("expected fresh box to stay unlabeled, got person %s", reconciled[0].PersonName)
	}
}

func TestReconcile_GreedyTakesFirstMatch(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	// Both existing boxes overlap the fresh one above the threshold; the
	// first in input order wins.
	existing := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5}, PersonID: alice, PersonName: "Alice"},
		{Rect: store.Rect{X: 0.05, Y: 0.05, Width: 0.5, Height: 0.5}, PersonID: bob, PersonName: "Bob"},
	}
	fresh := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0.02, Y: 0.02, Width: 0.5, Height: 0.5}},
	}

	reconciled := Reconcile(existing, fresh, 0.25)

	if reconciled[0].PersonID != alice {
		t.Errorf("greedy match must take the first overlapping box")
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	if got := Reconcile(nil, nil, 0.25); len(got) != 0 {
		t.Errorf("expected empty output for empty inputs, got %d", len(got))
	}

	fresh := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3}},
	}
	got := Reconcile(nil, fresh, 0.25)
	if len(got) != 1 || got[0].Labeled() {
		t.Errorf("with no existing boxes fresh boxes must pass through unlabeled")
	}
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	existing := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5}, PersonID: uuid.New(), PersonName: "Alice"},
	}
	fresh := []store.FaceBoundingBox{
		{Rect: store.Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5}},
	}

	_ = Reconcile(existing, fresh, 0.25)

	if fresh[0].Labeled() {
		t.Errorf("input slice must not be mutated")
	}
}
