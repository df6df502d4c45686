package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/report"
)

func newStatsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the snapshot by year, month and county",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var snap incident.Snapshot
			if refresh {
				if snap, err = appInstance.Dataset().GetDataset(cmd.Context(), appInstance.Now()); err != nil {
					return fmt.Errorf("get dataset: %w", err)
				}
			} else {
				var ok bool
				snap, ok, err = appInstance.Snapshots().Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load snapshot: %w", err)
				}
				if !ok {
					return errors.New("no snapshot on disk; run `calfire dataset` or pass --refresh")
				}
			}

			out := cmd.OutOrStdout()
			for _, section := range []struct {
				title string
				rows  []report.Row
			}{
				{"Annual", report.Annual(snap.Records)},
				{"Monthly", report.Monthly(snap.Records)},
				{"By county", report.ByCounty(snap.Records)},
			} {
				if err := report.Write(out, section.title, section.rows); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the snapshot first")
	return cmd
}
