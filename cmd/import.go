package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/store/library"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import photo metadata from a MariaDB photo library",
	Long: `Import photo metadata (file reference, capture time, location) from an
existing PhotoPrism-style photo library. Imported photos land in the
store as unclustered; run 'cluster' afterwards to group them into
encounters. Requires LIBRARY_DATABASE_DSN.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("limit", 1000, "Maximum number of photos to import")
	importCmd.Flags().String("after", "", "Only import photos taken after this date (YYYY-MM-DD)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.Library.DSN == "" {
		return fmt.Errorf("LIBRARY_DATABASE_DSN environment variable is required")
	}

	after := time.Time{}
	if s := mustGetString(cmd, "after"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("invalid --after date %q: %w", s, err)
		}
		after = t
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	lib, err := library.NewPool(cfg.Library.DSN)
	if err != nil {
		return fmt.Errorf("connecting to photo library: %w", err)
	}
	defer lib.Close()

	total, err := lib.CountPhotos(ctx)
	if err != nil {
		return fmt.Errorf("counting library photos: %w", err)
	}
	fmt.Printf("Photo library holds %d photo(s)\n", total)

	photos, err := lib.ListPhotos(ctx, after, mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("listing library photos: %w", err)
	}

	imported := 0
	for _, photo := range photos {
		entry := store.EncounterPhoto{
			ID:       uuid.New(),
			ImageRef: photo.FileRef,
			TakenAt:  photo.TakenAt,
		}
		if photo.HasGeo {
			entry.Location = &store.LatLng{Lat: photo.Lat, Lng: photo.Lng}
		}
		if err := st.AddPhoto(ctx, entry); err != nil {
			return fmt.Errorf("storing photo %s: %w", photo.FileRef, err)
		}
		imported++
	}

	fmt.Printf("Imported %d photo(s); run 'recall cluster' to group them\n", imported)
	return nil
}
