package match

import "github.com/recallapp/recall/internal/store"

// Reconcile merges freshly detected boxes with previously persisted ones.
// Re-running detection with different parameters shifts box geometry
// slightly; any fresh box overlapping an existing box above the IoU
// threshold inherits its person assignment so human-entered labels survive
// the re-detection. Matching is greedy first-match, not optimal bipartite
// assignment. The input slices are not modified.
func Reconcile(existing, fresh []store.FaceBoundingBox, iouThreshold float64) []store.FaceBoundingBox {
	reconciled := make([]store.FaceBoundingBox, len(fresh))
	copy(reconciled, fresh)

	for i := range reconciled {
		for _, old := range existing {
			if IoU(reconciled[i].Rect, old.Rect) > iouThreshold {
				reconciled[i].PersonID = old.PersonID
				reconciled[i].PersonName = old.PersonName
				reconciled[i].AutoAccepted = old.AutoAccepted
				break
			}
		}
	}
	return reconciled
}
