package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/detect"
	"github.com/recallapp/recall/internal/match"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/vector"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Scan a directory of photos for faces",
	Long: `Scan local photos: detect faces, match them against known persons and
print ranked suggestions. File modification times stand in for capture
timestamps. With --auto-accept, high-confidence matches are labeled
immediately and propagated to near-identical faces in the same photo.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("concurrency", 5, "Number of photos detected in parallel")
	scanCmd.Flags().Int("limit", 0, "Maximum number of photos to scan (0 = all)")
	scanCmd.Flags().Bool("propagate", true, "Propagate accepted labels to near-identical sibling faces")
	scanCmd.Flags().Bool("auto-accept", false, "Label faces automatically when confidence is high")
}

// imageExtensions are the file types the scanner picks up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// collectImages lists image files under dir, capped at limit when limit > 0.
func collectImages(dir string, limit int) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// loadInputs reads the images and registers them as unclustered photos.
func loadInputs(ctx context.Context, st store.Store, paths []string) ([]scan.PhotoInput, error) {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Loading photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var inputs []scan.PhotoInput
	for _, path := range paths {
		bar.Add(1)
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("\nWarning: skipping %s: %v\n", path, err)
			continue
		}
		takenAt := time.Now()
		if info, err := os.Stat(path); err == nil {
			takenAt = info.ModTime()
		}

		photo := store.EncounterPhoto{
			ID:       uuid.New(),
			ImageRef: path,
			TakenAt:  takenAt,
		}
		if err := st.AddPhoto(ctx, photo); err != nil {
			return nil, fmt.Errorf("storing photo %s: %w", path, err)
		}
		inputs = append(inputs, scan.PhotoInput{Photo: photo, Image: data})
	}
	fmt.Println()
	return inputs, nil
}

// printSuggestions reports the scan outcome for one photo.
func printSuggestions(result scan.PhotoResult) {
	fmt.Printf("%s: %d face(s)\n", result.Photo.ImageRef, len(result.Boxes))
	for _, s := range result.Suggestions {
		if len(s.Matches) == 0 {
			fmt.Println("  unknown face (no match above threshold)")
			continue
		}
		for _, m := range s.Matches {
			fmt.Printf("  %s (similarity %.2f, %s)\n", m.Person.Name, m.Similarity, m.Confidence)
		}
	}
}

// autoAccept labels every face whose best match is high-confidence,
// offering the photo's remaining unlabeled faces for propagation.
func autoAccept(ctx context.Context, pipeline *scan.Pipeline, result scan.PhotoResult) int {
	accepted := 0
	for i, s := range result.Suggestions {
		if len(s.Matches) == 0 || s.Matches[0].Confidence != vector.ConfidenceHigh {
			continue
		}
		var siblings []match.SiblingFace
		for j, other := range result.Suggestions {
			if j == i {
				continue
			}
			siblings = append(siblings, match.SiblingFace{Box: other.Box, Crop: other.Crop})
		}
		assignments, err := pipeline.LabelFace(ctx, scan.LabelRequest{
			Photo:      result.Photo,
			Box:        s.Box,
			Embedding:  s.Embedding,
			Person:     s.Matches[0].Person,
			Confidence: s.Matches[0].Similarity,
			Siblings:   siblings,
		})
		if err != nil {
			fmt.Printf("Warning: failed to label face in %s: %v\n", result.Photo.ImageRef, err)
			continue
		}
		accepted += 1 + len(assignments)
	}
	return accepted
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	paths, err := collectImages(args[0], mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No images found")
		return nil
	}

	detector := detect.NewDetectorClient(cfg.Detector.URL, cfg.Detector.Enhance, cfg.Detector.MaxImageSize)
	embedder := detect.NewEmbedderClient(cfg.Embedder.URL, cfg.Embedder.Dim)
	pipeline := scan.New(st, detector, embedder, cfg)
	pipeline.SetConcurrency(mustGetInt(cmd, "concurrency"))
	pipeline.SetPropagationDisabled(!mustGetBool(cmd, "propagate"))

	inputs, err := loadInputs(ctx, st, paths)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %d photos (%d workers)...\n", len(inputs), mustGetInt(cmd, "concurrency"))
	results := pipeline.ScanPhotos(ctx, inputs)

	failed, labeled := 0, 0
	for _, result := range results {
		if result.Err != nil {
			fmt.Printf("Warning: %v\n", result.Err)
			failed++
			continue
		}
		printSuggestions(result)
		if mustGetBool(cmd, "auto-accept") {
			labeled += autoAccept(ctx, pipeline, result)
		}
	}

	fmt.Printf("\nScanned %d photos (%d failed)\n", len(results), failed)
	if mustGetBool(cmd, "auto-accept") {
		fmt.Printf("Auto-accepted %d face label(s)\n", labeled)
	}
	return nil
}
