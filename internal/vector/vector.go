// Package vector provides cosine similarity and confidence tiering over
// face embeddings.
package vector

import "math"

// Confidence describes how trustworthy a similarity score is.
type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceAmbiguous Confidence = "ambiguous"
	ConfidenceNone      Confidence = "none"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1 (1 = identical direction).
// Returns 0 for mismatched lengths, empty vectors, or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
// Returns maximum distance for invalid input.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	return 1 - CosineSimilarity(a, b)
}

// Classify maps a similarity score to a confidence tier.
// high and ambiguous are the tier cutoffs: similarity >= high is a
// confident match, similarity >= ambiguous needs user review, anything
// below is no match.
func Classify(similarity, ambiguous, high float64) Confidence {
	switch {
	case similarity >= high:
		return ConfidenceHigh
	case similarity >= ambiguous:
		return ConfidenceAmbiguous
	default:
		return ConfidenceNone
	}
}
