package match

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/vector"
)

// Embedder computes a face embedding from a face crop. Implemented by the
// detect package; abstracted here so propagation can be tested without a
// running embedding service.
type Embedder interface {
	EmbedFace(ctx context.Context, crop []byte) ([]float32, error)
}

// SiblingFace is an unlabeled face in the same photo set as a freshly
// labeled one.
type SiblingFace struct {
	Box     store.FaceBoundingBox
	Crop    []byte
	CropRef string
}

// Assignment is one auto-accepted label produced by propagation. The caller
// persists the box update and the new embedding under the encounter write
// lock, committing per face.
type Assignment struct {
	Box        store.FaceBoundingBox
	Embedding  store.FaceEmbedding
	Similarity float64
}

// PropagateOptions controls label propagation. Disabled turns propagation
// off entirely: visually near-identical distinct individuals (twins) would
// otherwise get each other's labels.
type PropagateOptions struct {
	Disabled            bool
	AutoAcceptThreshold float64
	EncounterID         uuid.UUID // recorded on created embeddings, uuid.Nil allowed
}

// Propagate extends a confirmed label to sibling faces whose embeddings are
// near-identical to the source. Siblings are embedded concurrently; a
// failed embedding skips that sibling only. Already-labeled siblings are
// never touched. Returns assignments in sibling input order.
func Propagate(ctx context.Context, sourceEmbedding []float32, person store.Person, siblings []SiblingFace, embedder Embedder, opts PropagateOptions) []Assignment {
	if opts.Disabled || len(sourceEmbedding) == 0 || len(siblings) == 0 {
		return nil
	}

	type siblingResult struct {
		index      int
		embedding  []float32
		similarity float64
	}
	resultsChan := make(chan siblingResult, len(siblings))

	var wg sync.WaitGroup
	for i := range siblings {
		if siblings[i].Box.Labeled() {
			continue
		}
		wg.Add(1)
		go func(idx int, crop []byte) {
			defer wg.Done()
			emb, err := embedder.EmbedFace(ctx, crop)
			if err != nil {
				return
			}
			resultsChan <- siblingResult{
				index:      idx,
				embedding:  emb,
				similarity: vector.CosineSimilarity(sourceEmbedding, emb),
			}
		}(i, siblings[i].Crop)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	accepted := make(map[int]siblingResult)
	for r := range resultsChan {
		if r.similarity >= opts.AutoAcceptThreshold {
			accepted[r.index] = r
		}
	}

	assignments := make([]Assignment, 0, len(accepted))
	for i := range siblings {
		r, ok := accepted[i]
		if !ok {
			continue
		}

		box := siblings[i].Box
		box.PersonID = person.ID
		box.PersonName = person.Name
		box.Confidence = r.similarity
		box.AutoAccepted = true

		assignments = append(assignments, Assignment{
			Box: box,
			Embedding: store.FaceEmbedding{
				ID:            uuid.New(),
				PersonID:      person.ID,
				Vector:        r.embedding,
				CropRef:       siblings[i].CropRef,
				BoundingBoxID: box.ID,
				EncounterID:   opts.EncounterID,
				CreatedAt:     time.Now(),
			},
			Similarity: r.similarity,
		})
	}
	return assignments
}
