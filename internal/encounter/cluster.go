// Package encounter groups timestamped, optionally geotagged photos into
// discrete real-world encounters.
package encounter

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/store"
)

// Options controls clustering. Thresholds normally come from config.
type Options struct {
	TimeThreshold     time.Duration // max gap between consecutive photos of one encounter
	DistanceThreshold float64       // max distance in meters between consecutive photos
}

// OptionsFromConfig builds clustering options from the configured thresholds.
func OptionsFromConfig(cfg config.ClusteringConfig) Options {
	return Options{
		TimeThreshold:     cfg.TimeThreshold(),
		DistanceThreshold: cfg.DistanceThreshold(),
	}
}

// Cluster groups photos into encounters using single-pass greedy chain
// clustering over the timestamp-sorted sequence: a photo joins the open
// cluster iff the gap to the previous photo is within the time threshold
// and, when both photos carry a location, they are within the distance
// threshold. Deterministic (stable sort); empty input yields no clusters.
func Cluster(photos []store.EncounterPhoto, opts Options) []store.Encounter {
	if len(photos) == 0 {
		return nil
	}

	sorted := make([]store.EncounterPhoto, len(photos))
	copy(sorted, photos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TakenAt.Before(sorted[j].TakenAt)
	})

	var encounters []store.Encounter
	current := newEncounter(sorted[0])

	for i := 1; i < len(sorted); i++ {
		prev := current.Photos[len(current.Photos)-1]
		photo := sorted[i]

		if belongsTogether(prev, photo, opts) {
			appendPhoto(&current, photo)
			continue
		}

		encounters = append(encounters, current)
		current = newEncounter(photo)
	}

	return append(encounters, current)
}

// belongsTogether decides whether photo continues the encounter prev
// belongs to. Photos without a location are chained on time alone.
func belongsTogether(prev, photo store.EncounterPhoto, opts Options) bool {
	if photo.TakenAt.Sub(prev.TakenAt) > opts.TimeThreshold {
		return false
	}
	if prev.Location == nil || photo.Location == nil {
		return true
	}
	return Haversine(*prev.Location, *photo.Location) <= opts.DistanceThreshold
}

func newEncounter(first store.EncounterPhoto) store.Encounter {
	enc := store.Encounter{
		ID:      uuid.New(),
		TakenAt: first.TakenAt,
	}
	appendPhoto(&enc, first)
	return enc
}

func appendPhoto(enc *store.Encounter, photo store.EncounterPhoto) {
	photo.EncounterID = enc.ID
	enc.Photos = append(enc.Photos, photo)
	// The encounter location is the first photo's that has one.
	if enc.Location == nil && photo.Location != nil {
		loc := *photo.Location
		enc.Location = &loc
	}
}
