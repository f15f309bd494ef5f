package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/engine"
	"github.com/spf13/cobra"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage direct emission records",
		Long:  `Record, list, and delete emissions attributable to a single production.`,
	}

	cmd.AddCommand(addRecordCmd())
	cmd.AddCommand(listRecordsCmd())
	cmd.AddCommand(deleteRecordCmd())

	return cmd
}

func addRecordCmd() *cobra.Command {
	var (
		category string
		date     string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "add <project-id> <amount-kg>",
		Short: "Record a direct emission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := parseAmount(args[1])
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

			record, err := eng.AddDirectRecord(ctx, engine.DirectRecordSpec{
				ProjectID: args[0],
				Category:  category,
				Amount:    amount,
				Date:      recordDate,
				Notes:     notes,
			})
			if err != nil {
				return fmt.Errorf("failed to add record: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Recorded %s for production %s",
				cli.FormatEmissions(record.Amount), shortID(record.ProjectID))))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "other", "emission category (fuel, travel, energy, materials, other)")
	cmd.Flags().StringVar(&date, "date", "", "emission date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}

func listRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a production's direct emission records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.GetDirectRecordsByProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			if len(records) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No direct records for this production."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Date"),
				cli.HeaderStyle.Render("Category"),
				cli.HeaderStyle.Render("Amount"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 8),
				strings.Repeat("-", 10),
				strings.Repeat("-", 10),
				strings.Repeat("-", 12))

			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					shortID(r.ID),
					r.Date.Format("2006-01-02"),
					r.Category,
					cli.FormatEmissions(r.Amount))
			}

			return nil
		},
	}
}

func deleteRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a direct emission record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.DeleteDirectRecord(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("✓ Deleted record " + args[0]))
			return nil
		},
	}
}
