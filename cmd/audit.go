package cmd

import (
	"context"
	"fmt"

	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/integrity"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Remove embeddings whose face box was relabeled or deleted",
	Long: `Audit the embedding store against current face box ownership. An
embedding is orphaned when the box it was derived from no longer belongs
to the same person. Orphans are deleted; embeddings without a box
reference are never touched.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Bool("dry-run", false, "Report orphans without deleting them")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dryRun := mustGetBool(cmd, "dry-run")
	runner := integrity.NewRunner(st, st)

	report, err := runner.Run(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if len(report.Removed) == 0 {
		fmt.Println("No orphaned embeddings found")
		return nil
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	fmt.Printf("%s %d orphaned embedding(s) across %d person(s)\n",
		verb, len(report.Removed), report.AffectedPersons)
	for _, id := range report.Removed {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
