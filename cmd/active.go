package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/calfire-history/internal/storage/local"
)

func newActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Scrape the current incident list and print it as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records, err := appInstance.Fetcher().FetchActive(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch active incidents: %w", err)
			}
			return local.Encode(cmd.OutOrStdout(), records)
		},
	}
}
