package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/storage/local"
)

func newDatasetCmd() *cobra.Command {
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Return the wildfire history, refreshing the cached snapshot as needed",
		Long: `Loads the newest snapshot and, depending on its age, reuses it, patches the
active incidents, re-scrapes the current year, or builds the whole history
from scratch. Any refreshed snapshot is saved and published to configured sinks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := appInstance.Dataset().GetDataset(cmd.Context(), appInstance.Now())
			if err != nil {
				return fmt.Errorf("get dataset: %w", err)
			}
			appInstance.Logger().Info("dataset ready",
				zap.Int("records", len(snap.Records)),
				zap.Time("captured_at", snap.CapturedAt),
			)
			if asCSV {
				return local.Encode(cmd.OutOrStdout(), snap.Records)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d records captured %s\n", len(snap.Records), snap.CapturedAt.Format(local.DateLayout))
			return err
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the dataset as CSV to stdout")
	return cmd
}
