package report

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Write renders rows as an aligned text table under title.
func Write(w io.Writer, title string, rows []Row) error {
	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "key\tfires\tacres\tlargest\tarea_sf\tlargest_sf\tregion\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%s\t\n",
			r.Key, r.Fires, r.TotalAcres, r.LargestAcres, r.TotalSF(), r.LargestSF(), r.Region)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}
