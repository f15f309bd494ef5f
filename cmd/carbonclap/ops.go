package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/engine"
	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/spf13/cobra"
)

func opsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Manage operational emission records",
		Long: `Record, list, and delete shared emissions not attributable to a single
production, such as office electricity or pooled equipment.`,
	}

	cmd.AddCommand(addOpCmd())
	cmd.AddCommand(listOpsCmd())
	cmd.AddCommand(deleteOpCmd())

	return cmd
}

func addOpCmd() *cobra.Command {
	var (
		category string
		date     string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "add <amount-kg>",
		Short: "Record an operational emission",
		Long: `Record a shared emission. The record starts unallocated; use
'carbonclap allocate apply' to distribute it across productions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			recordDate := time.Now()
			if date != "" {
				if recordDate, err = parseDate(date); err != nil {
					return err
				}
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			record, err := eng.AddOperationalRecord(ctx, engine.OperationalRecordSpec{
				Category: category,
				Amount:   amount,
				Date:     recordDate,
				Notes:    notes,
			})
			if err != nil {
				return fmt.Errorf("failed to add operational record: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Recorded %s as %s",
				cli.FormatEmissions(record.Amount), shortID(record.ID))))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "other", "emission category (energy, facilities, equipment, other)")
	cmd.Flags().StringVar(&date, "date", "", "emission date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}

func listOpsCmd() *cobra.Command {
	var (
		category string
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operational emission records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := service.RecordFilter{Category: category}
			if from != "" {
				start, err := parseDate(from)
				if err != nil {
					return err
				}
				filter.StartDate = &start
			}
			if to != "" {
				end, err := parseDate(to)
				if err != nil {
					return err
				}
				filter.EndDate = &end
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			all, err := eng.GetOperationalRecords(ctx)
			if err != nil {
				return fmt.Errorf("failed to list operational records: %w", err)
			}

			records := all[:0:0]
			for i := range all {
				if filter.Matches(&all[i]) {
					records = append(records, all[i])
				}
			}

			if len(records) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No operational records found."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Date"),
				cli.HeaderStyle.Render("Category"),
				cli.HeaderStyle.Render("Amount"),
				cli.HeaderStyle.Render("Allocation"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 8),
				strings.Repeat("-", 10),
				strings.Repeat("-", 10),
				strings.Repeat("-", 12),
				strings.Repeat("-", 10))

			for _, r := range records {
				allocation := "unallocated"
				if r.IsAllocated && r.Rule != nil {
					allocation = string(r.Rule.Method)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					shortID(r.ID),
					r.Date.Format("2006-01-02"),
					r.Category,
					cli.FormatEmissions(r.Amount),
					allocation)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only show records in this category")
	cmd.Flags().StringVar(&from, "from", "", "only show records on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only show records on or before this date (YYYY-MM-DD)")

	return cmd
}

func deleteOpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete an operational record",
		Long: `Delete an operational record. Any allocation line items it owns are
removed and the affected production summaries updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.DeleteOperationalRecord(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete operational record: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("✓ Deleted operational record " + args[0]))
			return nil
		},
	}
}
