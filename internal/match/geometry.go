package match

import "github.com/recallapp/recall/internal/store"

// IoU calculates Intersection over Union between two normalized rectangles.
// Returns 0 when the rects do not overlap or either rect is degenerate.
func IoU(a, b store.Rect) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	// Calculate intersection.
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}
