// Package integrity detects and removes face embeddings orphaned by
// historical relabeling. An embedding is orphaned when the bounding box it
// was derived from is no longer owned by the embedding's person; sampling a
// person's embeddings without repairing this first can present a wrong face
// under the wrong name.
package integrity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/store"
)

// ownership classifies a box id from the embedding's point of view.
type ownership int

const (
	ownershipNotFound ownership = iota // box id absent from any known encounter
	ownershipUnowned                   // box exists, person assignment cleared
	ownershipOwned                     // box exists and is assigned
)

type boxOwner struct {
	state    ownership
	personID uuid.UUID
}

// Report summarizes one audit pass.
type Report struct {
	Removed         []uuid.UUID `json:"removed"`
	AffectedPersons int         `json:"affected_persons"`
}

// Audit cross-references every person's embeddings against current bounding
// box ownership and returns the orphaned embedding IDs. Pure and
// side-effect-free; running it twice over the same state yields the same
// result, and a run after the removals were applied yields zero.
//
// Rules:
//   - embeddings without a box reference are never flagged (pre-tracking
//     data, unverifiable);
//   - a box owned by a different person, or with its owner cleared,
//     orphans the embedding;
//   - a box id not found in any encounter keeps the embedding: the source
//     context is gone and deleting would destroy data conservatively kept.
func Audit(persons []store.Person, boxes []store.FaceBoundingBox) Report {
	owners := make(map[uuid.UUID]boxOwner, len(boxes))
	for _, box := range boxes {
		if box.PersonID == uuid.Nil {
			owners[box.ID] = boxOwner{state: ownershipUnowned}
			continue
		}
		owners[box.ID] = boxOwner{state: ownershipOwned, personID: box.PersonID}
	}

	var removed []uuid.UUID
	affected := 0
	for _, person := range persons {
		orphans := orphanedEmbeddings(person, owners)
		if len(orphans) == 0 {
			continue
		}
		affected++
		removed = append(removed, orphans...)
	}

	return Report{Removed: removed, AffectedPersons: affected}
}

// orphanedEmbeddings returns the full orphan set for one person.
func orphanedEmbeddings(person store.Person, owners map[uuid.UUID]boxOwner) []uuid.UUID {
	var orphans []uuid.UUID
	for _, emb := range person.Embeddings {
		if emb.BoundingBoxID == uuid.Nil {
			continue
		}
		owner, found := owners[emb.BoundingBoxID]
		if !found {
			continue // encounter deleted, keep conservatively
		}
		switch owner.state {
		case ownershipUnowned:
			orphans = append(orphans, emb.ID)
		case ownershipOwned:
			if owner.personID != person.ID {
				orphans = append(orphans, emb.ID)
			}
		}
	}
	return orphans
}

// Runner executes audits against the persistence layer.
type Runner struct {
	persons    store.PersonWriter
	encounters store.EncounterReader
}

// NewRunner creates an audit runner over the given store.
func NewRunner(persons store.PersonWriter, encounters store.EncounterReader) *Runner {
	return &Runner{persons: persons, encounters: encounters}
}

// Run fetches all persons and boxes, computes the orphan set, and deletes
// it in a single batch. A fetch failure aborts the run before any deletion,
// so a failed run never leaves partially-deleted state and is always safe
// to retry. Set dryRun to report without deleting.
func (r *Runner) Run(ctx context.Context, dryRun bool) (Report, error) {
	persons, err := r.persons.ListPersons(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing persons: %w", err)
	}

	boxes, err := r.encounters.ListBoxes(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing boxes: %w", err)
	}

	report := Audit(persons, boxes)
	if dryRun || len(report.Removed) == 0 {
		return report, nil
	}

	if err := r.persons.DeleteEmbeddings(ctx, report.Removed); err != nil {
		return Report{}, fmt.Errorf("deleting orphaned embeddings: %w", err)
	}
	return report, nil
}
