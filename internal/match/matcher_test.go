package match

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/vector"
)

func personWithVectors(name string, vectors ...[]float32) store.Person {
	p := store.Person{ID: uuid.New(), Name: name}
	for _, v := range vectors {
		p.Embeddings = append(p.Embeddings, store.FaceEmbedding{
			ID:       uuid.New(),
			PersonID: p.ID,
			Vector:   v,
		})
	}
	return p
}

func TestFindMatches_ExactMatch(t *testing.T) {
	personA := personWithVectors("A", []float32{1, 0})
	personB := personWithVectors("B", []float32{0, 1})

	results := FindMatches([]float32{1, 0}, []store.Person{personA, personB}, Options{
		TopK:           1,
		Threshold:      0.5,
		HighConfidence: 0.85,
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Person.Name != "A" {
		t.Errorf("expected person A, got %s", results[0].Person.Name)
	}
	if math.Abs(results[0].Similarity-1.0) > 0.0001 {
		t.Errorf("expected similarity 1.0, got %v", results[0].Similarity)
	}
	if results[0].Confidence != vector.ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", results[0].Confidence)
	}
}

func TestFindMatches_BoostReordersResults(t *testing.T) {
	// A sits at 0.80 unboosted; B at 0.77 gets +0.05 and should win.
	query := []float32{1, 0}
	personA := personWithVectors("A", rotated(0.80))
	personB := personWithVectors("B", rotated(0.77))

	results := FindMatches(query, []store.Person{personA, personB}, Options{
		TopK:           2,
		Threshold:      0.75,
		HighConfidence: 0.85,
		Boost:          map[uuid.UUID]bool{personB.ID: true},
		BoostAmount:    0.05,
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Person.Name != "B" || results[1].Person.Name != "A" {
		t.Errorf("expected order [B, A], got [%s, %s]", results[0].Person.Name, results[1].Person.Name)
	}
	if math.Abs(results[0].Similarity-0.82) > 0.001 {
		t.Errorf("expected boosted similarity 0.82, got %v", results[0].Similarity)
	}
	if math.Abs(results[1].Similarity-0.80) > 0.001 {
		t.Errorf("expected similarity 0.80, got %v", results[1].Similarity)
	}
}

// rotated returns a unit vector whose cosine similarity to [1, 0] is sim.
func rotated(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestFindMatches_BoostCappedAtOne(t *testing.T) {
	person := personWithVectors("A", []float32{1, 0})

	results := FindMatches([]float32{1, 0}, []store.Person{person}, Options{
		TopK:        1,
		Threshold:   0.5,
		Boost:       map[uuid.UUID]bool{person.ID: true},
		BoostAmount: 0.05,
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Similarity > 1.0 {
		t.Errorf("boosted similarity must not exceed 1.0, got %v", results[0].Similarity)
	}
}

func TestFindMatches_RespectsTopKAndThreshold(t *testing.T) {
	query := []float32{1, 0}
	candidates := []store.Person{
		personWithVectors("close", rotated(0.95)),
		personWithVectors("mid", rotated(0.85)),
		personWithVectors("edge", rotated(0.80)),
		personWithVectors("below", rotated(0.50)),
	}

	results := FindMatches(query, candidates, Options{
		TopK:           2,
		Threshold:      0.75,
		HighConfidence: 0.85,
	})

	if len(results) > 2 {
		t.Fatalf("expected at most topK=2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Similarity <= 0.75 {
			t.Errorf("result %s has similarity %v, not above threshold", r.Person.Name, r.Similarity)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

func TestFindMatches_BestEmbeddingWins(t *testing.T) {
	// Person has one weak and one strong embedding; the strong one counts.
	person := personWithVectors("multi", rotated(0.3), rotated(0.9))

	results := FindMatches([]float32{1, 0}, []store.Person{person}, Options{
		TopK:      1,
		Threshold: 0.75,
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if math.Abs(results[0].Similarity-0.9) > 0.001 {
		t.Errorf("expected best-embedding similarity 0.9, got %v", results[0].Similarity)
	}
}

func TestFindMatches_EmptyAndDegenerateInputs(t *testing.T) {
	if results := FindMatches([]float32{1, 0}, nil, Options{TopK: 1, Threshold: 0.5}); len(results) != 0 {
		t.Errorf("expected empty result for no candidates, got %d", len(results))
	}

	// Person with no embeddings degrades to similarity 0 and is filtered.
	person := store.Person{ID: uuid.New(), Name: "empty"}
	if results := FindMatches([]float32{1, 0}, []store.Person{person}, Options{TopK: 1, Threshold: 0.5}); len(results) != 0 {
		t.Errorf("expected empty result for embedding-less candidate, got %d", len(results))
	}

	// Mismatched vector lengths degrade to 0, never panic.
	short := personWithVectors("short", []float32{1})
	if results := FindMatches([]float32{1, 0}, []store.Person{short}, Options{TopK: 1, Threshold: 0.5}); len(results) != 0 {
		t.Errorf("expected empty result for mismatched vectors, got %d", len(results))
	}
}

func TestFindMatches_StableOrderOnTies(t *testing.T) {
	query := []float32{1, 0}
	first := personWithVectors("first", rotated(0.9))
	second := personWithVectors("second", rotated(0.9))

	results := FindMatches(query, []store.Person{first, second}, Options{
		TopK:      2,
		Threshold: 0.75,
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Person.Name != "first" {
		t.Errorf("tie must keep input order, got %s first", results[0].Person.Name)
	}
}
