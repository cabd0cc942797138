package store

import (
	"testing"

	"github.com/google/uuid"
)

func indexedPerson(name string, vectors ...[]float32) Person {
	p := Person{ID: uuid.New(), Name: name}
	for _, v := range vectors {
		p.Embeddings = append(p.Embeddings, FaceEmbedding{ID: uuid.New(), PersonID: p.ID, Vector: v})
	}
	return p
}

func TestPersonIndex_NearestPersons(t *testing.T) {
	alice := indexedPerson("Alice", []float32{1, 0, 0})
	bob := indexedPerson("Bob", []float32{0, 1, 0})
	carol := indexedPerson("Carol", []float32{0, 0, 1})

	idx := NewPersonIndex()
	idx.Build([]Person{alice, bob, carol})

	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed embeddings, got %d", idx.Len())
	}

	got := idx.NearestPersons([]float32{0.9, 0.1, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0] != alice.ID {
		t.Errorf("expected Alice nearest, got %v", got[0])
	}
}

func TestPersonIndex_DeduplicatesPersons(t *testing.T) {
	// Two embeddings of the same person both match, but the person must
	// appear once.
	alice := indexedPerson("Alice", []float32{1, 0, 0}, []float32{0.99, 0.01, 0})
	bob := indexedPerson("Bob", []float32{0, 1, 0})

	idx := NewPersonIndex()
	idx.Build([]Person{alice, bob})

	got := idx.NearestPersons([]float32{1, 0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct persons, got %d", len(got))
	}
	if got[0] != alice.ID || got[1] != bob.ID {
		t.Errorf("expected [Alice, Bob], got %v", got)
	}
}

func TestPersonIndex_AddIncrementally(t *testing.T) {
	idx := NewPersonIndex()

	personID := uuid.New()
	idx.Add(personID, FaceEmbedding{ID: uuid.New(), Vector: []float32{1, 0}})

	got := idx.NearestPersons([]float32{1, 0}, 1)
	if len(got) != 1 || got[0] != personID {
		t.Errorf("expected incrementally added person found, got %v", got)
	}
}

func TestPersonIndex_EmptyAndDegenerate(t *testing.T) {
	idx := NewPersonIndex()

	if got := idx.NearestPersons([]float32{1, 0}, 5); got != nil {
		t.Errorf("empty index must return nil, got %v", got)
	}

	idx.Build([]Person{indexedPerson("Alice", []float32{1, 0})})
	if got := idx.NearestPersons(nil, 5); got != nil {
		t.Errorf("empty query must return nil, got %v", got)
	}
	if got := idx.NearestPersons([]float32{1, 0}, 0); got != nil {
		t.Errorf("k=0 must return nil, got %v", got)
	}

	// Embeddings without vectors are skipped during build.
	empty := Person{ID: uuid.New(), Embeddings: []FaceEmbedding{{ID: uuid.New()}}}
	idx.Build([]Person{empty})
	if idx.Len() != 0 {
		t.Errorf("expected vectorless embeddings skipped, indexed %d", idx.Len())
	}
}
