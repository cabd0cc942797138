package store

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// HNSW index parameters for face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchMultiplier requests extra candidates so enough distinct
	// persons survive the dedup step.
	hnswSearchMultiplier = 3
)

// PersonIndex is an in-memory HNSW index over all face embeddings, used to
// pre-select candidate persons for a query before exact ranking. Optional:
// with a small person count a linear scan over the store is fine.
type PersonIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
	embToOwner map[string]uuid.UUID // embedding id -> person id
}

// NewPersonIndex creates an empty index.
func NewPersonIndex() *PersonIndex {
	return &PersonIndex{embToOwner: make(map[string]uuid.UUID)}
}

// Build replaces the index content with the given persons' embeddings.
func (x *PersonIndex) Build(persons []Person) {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	x.embToOwner = make(map[string]uuid.UUID)
	for _, person := range persons {
		for _, emb := range person.Embeddings {
			if len(emb.Vector) == 0 {
				continue
			}
			key := emb.ID.String()
			g.Add(hnsw.MakeNode(key, emb.Vector))
			x.embToOwner[key] = person.ID
		}
	}
	x.graph = g
}

// Add inserts a single embedding for a person.
func (x *PersonIndex) Add(personID uuid.UUID, emb FaceEmbedding) {
	if len(emb.Vector) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = hnswMaxNeighbors
		g.Ml = 1.0 / float64(hnswMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		x.graph = g
	}
	key := emb.ID.String()
	x.graph.Add(hnsw.MakeNode(key, emb.Vector))
	x.embToOwner[key] = personID
}

// NearestPersons returns up to k distinct person IDs whose embeddings are
// closest to the query, nearest first.
func (x *PersonIndex) NearestPersons(query []float32, k int) []uuid.UUID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || k <= 0 || len(query) == 0 {
		return nil
	}

	neighbors := x.graph.Search(query, k*hnswSearchMultiplier)

	seen := make(map[uuid.UUID]bool, k)
	persons := make([]uuid.UUID, 0, k)
	for _, n := range neighbors {
		owner, ok := x.embToOwner[n.Key]
		if !ok || seen[owner] {
			continue
		}
		seen[owner] = true
		persons = append(persons, owner)
		if len(persons) == k {
			break
		}
	}
	return persons
}

// Len returns the number of embeddings indexed.
func (x *PersonIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.embToOwner)
}
