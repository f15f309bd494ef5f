package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the emission summary across all productions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := eng.Report(ctx)
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}

			if csvPath != "" {
				return writeReportCSV(csvPath, report)
			}

			fmt.Println(cli.TitleStyle.Render("Production emission summary"))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("Production"),
				cli.HeaderStyle.Render("Status"),
				cli.HeaderStyle.Render("Direct"),
				cli.HeaderStyle.Render("Allocated"),
				cli.HeaderStyle.Render("Total"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 20),
				strings.Repeat("-", 9),
				strings.Repeat("-", 12),
				strings.Repeat("-", 12),
				strings.Repeat("-", 12))

			for _, p := range report.Projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.Name,
					p.Status,
					cli.FormatEmissions(p.Summary.DirectEmissions),
					cli.FormatEmissions(p.Summary.AllocatedEmissions),
					cli.FormatEmissions(p.Summary.TotalEmissions))
			}
			_ = w.Flush()

			fmt.Println()
			fmt.Printf("Total direct:    %s\n", cli.FormatEmissions(report.TotalDirect))
			fmt.Printf("Total allocated: %s\n", cli.FormatEmissions(report.TotalAllocated))
			fmt.Printf("Total:           %s\n", cli.FormatEmissions(report.TotalEmissions))
			if report.UnallocatedTotal > 0 {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Unallocated operational emissions: %s",
					cli.FormatEmissions(report.UnallocatedTotal))))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "write the report to a CSV file instead of stdout")

	return cmd
}

func writeReportCSV(path string, report *service.SummaryReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"project_id", "name", "status", "direct_kg", "allocated_kg", "total_kg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range report.Projects {
		row := []string{
			p.ID,
			p.Name,
			string(p.Status),
			strconv.FormatFloat(p.Summary.DirectEmissions, 'f', -1, 64),
			strconv.FormatFloat(p.Summary.AllocatedEmissions, 'f', -1, 64),
			strconv.FormatFloat(p.Summary.TotalEmissions, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
