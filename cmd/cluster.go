package cmd

import (
	"context"
	"fmt"

	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/encounter"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group unclustered photos into encounters",
	Long: `Group all photos that do not belong to an encounter yet. Photos close
in time (and place, when geotagged) end up in the same encounter.`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().Bool("dry-run", false, "Show the grouping without persisting it")
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	photos, err := st.ListUnclusteredPhotos(ctx)
	if err != nil {
		return fmt.Errorf("listing unclustered photos: %w", err)
	}
	if len(photos) == 0 {
		fmt.Println("No unclustered photos")
		return nil
	}

	encounters := encounter.Cluster(photos, encounter.OptionsFromConfig(cfg.Clustering))
	dryRun := mustGetBool(cmd, "dry-run")

	for i := range encounters {
		enc := &encounters[i]
		where := "no location"
		if enc.Location != nil {
			where = fmt.Sprintf("%.4f,%.4f", enc.Location.Lat, enc.Location.Lng)
		}
		fmt.Printf("Encounter %s: %d photo(s), %s, %s\n",
			enc.ID, len(enc.Photos), enc.TakenAt.Format("2006-01-02 15:04"), where)

		if dryRun {
			continue
		}
		if err := st.SaveEncounter(ctx, enc); err != nil {
			return fmt.Errorf("saving encounter: %w", err)
		}
	}

	if dryRun {
		fmt.Printf("\nDry run: %d photo(s) would form %d encounter(s)\n", len(photos), len(encounters))
	} else {
		fmt.Printf("\nGrouped %d photo(s) into %d encounter(s)\n", len(photos), len(encounters))
	}
	return nil
}
