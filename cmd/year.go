package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/calfire-history/internal/storage/local"
)

func newYearCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "year",
		Short: "Scrape one year from its authoritative source and print it as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if year == 0 {
				year = appInstance.Now().Year()
			}
			records, err := appInstance.Fetcher().FetchYear(cmd.Context(), year)
			if err != nil {
				return fmt.Errorf("fetch year %d: %w", year, err)
			}
			return local.Encode(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to fetch (default current year)")
	return cmd
}
