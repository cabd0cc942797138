// Package match implements the identity-resolution core: ranking candidate
// persons for a query embedding, carrying labels across repeated detection
// passes, and propagating a manual label to near-identical sibling faces.
package match

import (
	"sort"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/vector"
)

// Result is one ranked person suggestion for a query embedding.
type Result struct {
	Person     store.Person
	Similarity float64
	Confidence vector.Confidence
}

// Options controls FindMatches. Zero values fall back to sensible defaults
// (TopK 1); thresholds normally come from config via OptionsFromConfig.
type Options struct {
	TopK           int
	Threshold      float64
	HighConfidence float64
	Boost          map[uuid.UUID]bool // persons seen recently get a similarity bonus
	BoostAmount    float64
}

// OptionsFromConfig builds matcher options from the configured thresholds.
func OptionsFromConfig(cfg config.MatchingConfig) Options {
	return Options{
		TopK:           1,
		Threshold:      cfg.Threshold,
		HighConfidence: cfg.HighConfidence,
		BoostAmount:    cfg.Boost,
	}
}

// FindMatches ranks candidate persons by their best embedding similarity to
// the query. Candidates in the boost set get BoostAmount added (capped at 1).
// Only candidates strictly above the threshold are returned, sorted
// descending by adjusted similarity; ties keep input order. Never errors:
// malformed vectors degrade to similarity 0 and an empty candidate list
// yields an empty result.
func FindMatches(query []float32, candidates []store.Person, opts Options) []Result {
	if opts.TopK <= 0 {
		opts.TopK = 1
	}

	results := make([]Result, 0, len(candidates))
	for _, person := range candidates {
		best := 0.0
		for _, emb := range person.Embeddings {
			if sim := vector.CosineSimilarity(query, emb.Vector); sim > best {
				best = sim
			}
		}

		adjusted := best
		if opts.Boost[person.ID] {
			adjusted = min(best+opts.BoostAmount, 1.0)
		}

		if adjusted > opts.Threshold {
			results = append(results, Result{
				Person:     person,
				Similarity: adjusted,
				Confidence: vector.Classify(adjusted, opts.Threshold, opts.HighConfidence),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}
