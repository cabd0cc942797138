// Package scan orchestrates one review pass over a batch of photos:
// detect faces, reconcile boxes with earlier passes, embed unlabeled
// faces and rank person suggestions, then apply labels with per-face
// durability and optional propagation to sibling faces.
package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/detect"
	"github.com/recallapp/recall/internal/match"
	"github.com/recallapp/recall/internal/store"
)

const defaultConcurrency = 5

// Detector finds faces in an image. Implemented by detect.DetectorClient.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]detect.Face, error)
}

// Pipeline runs scans against one store. Safe for concurrent use; writes
// to a single encounter are serialized through a per-encounter lock so
// label propagation never races a concurrent label.
type Pipeline struct {
	store    store.Store
	detector Detector
	embedder match.Embedder

	matching     match.Options
	propagation  match.PropagateOptions
	iouThreshold float64
	concurrency  int

	mu       sync.Mutex
	recent   map[uuid.UUID]bool // persons labeled this session, boosted on match
	encLocks map[uuid.UUID]*sync.Mutex
}

// New creates a pipeline with thresholds taken from the configuration.
func New(st store.Store, detector Detector, embedder match.Embedder, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:    st,
		detector: detector,
		embedder: embedder,
		matching: match.OptionsFromConfig(cfg.Matching),
		propagation: match.PropagateOptions{
			AutoAcceptThreshold: cfg.Matching.AutoAccept,
		},
		iouThreshold: cfg.Matching.IoU,
		concurrency:  defaultConcurrency,
		recent:       make(map[uuid.UUID]bool),
		encLocks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetConcurrency caps the number of photos detected in parallel.
func (p *Pipeline) SetConcurrency(n int) {
	if n > 0 {
		p.concurrency = n
	}
}

// SetPropagationDisabled turns sibling label propagation off. Propagation
// can mislabel visually near-identical distinct individuals, so it has to
// be opt-out-able.
func (p *Pipeline) SetPropagationDisabled(disabled bool) {
	p.propagation.Disabled = disabled
}

// PhotoInput is one photo to scan: stored metadata plus the image bytes.
type PhotoInput struct {
	Photo store.EncounterPhoto
	Image []byte
}

// FaceSuggestion is one detected, still-unlabeled face with its ranked
// person suggestions. Faces that kept a label through reconciliation are
// reported in PhotoResult.Boxes but carry no suggestion.
type FaceSuggestion struct {
	Box       store.FaceBoundingBox
	Crop      []byte
	Embedding []float32
	Matches   []match.Result
}

// PhotoResult is the outcome of scanning one photo. Err is set when the
// photo failed; other photos in the batch are unaffected.
type PhotoResult struct {
	Photo       store.EncounterPhoto
	Boxes       []store.FaceBoundingBox
	Suggestions []FaceSuggestion
	Err         error
}

// ScanPhotos scans a batch with bounded concurrency. Results come back in
// input order. A per-photo failure is recorded on that photo's result;
// context cancellation marks the remaining photos failed and returns.
func (p *Pipeline) ScanPhotos(ctx context.Context, inputs []PhotoInput) []PhotoResult {
	results := make([]PhotoResult, len(inputs))
	semaphore := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i := range inputs {
		wg.Add(1)
		go func(idx int, input PhotoInput) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				results[idx] = PhotoResult{Photo: input.Photo, Err: ctx.Err()}
				return
			}
			results[idx] = p.ScanPhoto(ctx, input)
		}(i, inputs[i])
	}

	wg.Wait()
	return results
}

// ScanPhoto detects faces in one photo, reconciles the fresh boxes with
// the previously stored ones so confirmed labels survive re-detection,
// persists the reconciled set, and suggests persons for the faces that
// remain unlabeled.
func (p *Pipeline) ScanPhoto(ctx context.Context, input PhotoInput) PhotoResult {
	result := PhotoResult{Photo: input.Photo}

	faces, err := p.detector.Detect(ctx, input.Image)
	if err != nil {
		result.Err = fmt.Errorf("detect faces in %s: %w", input.Photo.ImageRef, err)
		return result
	}

	fresh := make([]store.FaceBoundingBox, len(faces))
	for i, face := range faces {
		fresh[i] = store.FaceBoundingBox{
			ID:      uuid.New(),
			PhotoID: input.Photo.ID,
			Rect:    face.Rect,
		}
	}
	boxes := match.Reconcile(input.Photo.Boxes, fresh, p.iouThreshold)

	if err := p.store.ReplaceBoxes(ctx, input.Photo.ID, boxes); err != nil {
		result.Err = fmt.Errorf("persist boxes for %s: %w", input.Photo.ImageRef, err)
		return result
	}
	result.Boxes = boxes

	persons, err := p.store.ListPersons(ctx)
	if err != nil {
		result.Err = fmt.Errorf("list persons: %w", err)
		return result
	}

	opts := p.matchOptions()
	for i, box := range boxes {
		if box.Labeled() {
			continue
		}
		embedding, err := p.embedder.EmbedFace(ctx, faces[i].Crop)
		if err != nil {
			// One bad face must not sink the photo.
			continue
		}
		result.Suggestions = append(result.Suggestions, FaceSuggestion{
			Box:       box,
			Crop:      faces[i].Crop,
			Embedding: embedding,
			Matches:   match.FindMatches(embedding, persons, opts),
		})
	}
	return result
}

// LabelRequest applies one confirmed label: a person for a face box, with
// the face embedding to store. Siblings are the photo set's remaining
// unlabeled faces, offered for propagation.
type LabelRequest struct {
	Photo      store.EncounterPhoto
	Box        store.FaceBoundingBox
	Embedding  []float32
	CropRef    string
	Person     store.Person
	Confidence float64 // 0 for a manual label
	Siblings   []match.SiblingFace
}

// LabelFace persists a confirmed label and the face embedding, then
// propagates the label to near-identical sibling faces. All writes for
// the photo's encounter happen under its write lock; each face commits
// individually so cancellation never loses confirmed labels. Without an
// embedding only the label is written; there is nothing to store or
// propagate from.
func (p *Pipeline) LabelFace(ctx context.Context, req LabelRequest) ([]match.Assignment, error) {
	lock := p.encounterLock(req.Photo.EncounterID)
	lock.Lock()
	defer lock.Unlock()

	err := p.store.UpdateBoxLabel(ctx, req.Box.ID, req.Person.ID, req.Person.Name, req.Confidence, false)
	if err != nil {
		return nil, fmt.Errorf("label box %s: %w", req.Box.ID, err)
	}
	p.markRecent(req.Person.ID)
	if len(req.Embedding) == 0 {
		return nil, nil
	}

	emb := store.FaceEmbedding{
		ID:            uuid.New(),
		PersonID:      req.Person.ID,
		Vector:        req.Embedding,
		CropRef:       req.CropRef,
		BoundingBoxID: req.Box.ID,
		EncounterID:   req.Photo.EncounterID,
	}
	if err := p.store.AddEmbedding(ctx, emb); err != nil {
		return nil, fmt.Errorf("store embedding for box %s: %w", req.Box.ID, err)
	}

	propOpts := p.propagation
	propOpts.EncounterID = req.Photo.EncounterID
	assignments := match.Propagate(ctx, req.Embedding, req.Person, req.Siblings, p.embedder, propOpts)

	applied := assignments[:0]
	for _, a := range assignments {
		err := p.store.UpdateBoxLabel(ctx, a.Box.ID, a.Box.PersonID, a.Box.PersonName, a.Box.Confidence, true)
		if err != nil {
			continue
		}
		if err := p.store.AddEmbedding(ctx, a.Embedding); err != nil {
			continue
		}
		applied = append(applied, a)
	}
	return applied, nil
}

// CreatePerson registers a new person for a label-new-face action and
// marks them recently seen. The name is stored as entered; when someone
// with the same normalized name already exists, that person is returned
// instead of creating a duplicate.
func (p *Pipeline) CreatePerson(ctx context.Context, name string) (*store.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("person name must not be empty")
	}
	persons, err := p.store.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	if existing := match.FindPersonByName(persons, name); existing != nil {
		p.markRecent(existing.ID)
		return existing, nil
	}
	person, err := p.store.CreatePerson(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	p.markRecent(person.ID)
	return person, nil
}

// matchOptions snapshots the matcher options with the current boost set.
func (p *Pipeline) matchOptions() match.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	boost := make(map[uuid.UUID]bool, len(p.recent))
	for id := range p.recent {
		boost[id] = true
	}
	opts := p.matching
	opts.Boost = boost
	return opts
}

func (p *Pipeline) markRecent(personID uuid.UUID) {
	p.mu.Lock()
	p.recent[personID] = true
	p.mu.Unlock()
}

// encounterLock returns the write lock for an encounter. uuid.Nil (photo
// not clustered yet) shares one lock, which is conservative but correct.
func (p *Pipeline) encounterLock(encounterID uuid.UUID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.encLocks[encounterID]
	if !ok {
		lock = &sync.Mutex{}
		p.encLocks[encounterID] = lock
	}
	return lock
}
