package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/spf13/cobra"
)

func allocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Manage operational emission allocations",
		Long: `Apply, remove, and inspect allocation rules that distribute shared
emissions across active productions.`,
	}

	cmd.AddCommand(applyAllocationCmd())
	cmd.AddCommand(removeAllocationCmd())
	cmd.AddCommand(showAllocationCmd())

	return cmd
}

func applyAllocationCmd() *cobra.Command {
	var (
		method      string
		targets     []string
		percentages string
	)

	cmd := &cobra.Command{
		Use:   "apply <record-id>",
		Short: "Apply an allocation rule to an operational record",
		Long: `Distribute an operational record across productions.

Methods:
  equal     split evenly across active productions
  budget    split proportionally to production budgets
  duration  split proportionally to production length in days
  custom    explicit percentages via --percentages

Equal, budget, and duration follow the active production slate; --targets
narrows them only until the next slate change or recompute. Reapplying a
rule is safe: the previous split is fully replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rule := &model.AllocationRule{
				Method:         model.AllocationMethod(method),
				TargetProjects: targets,
			}
			if percentages != "" {
				parsed, err := parsePercentages(percentages)
				if err != nil {
					return err
				}
				rule.CustomPercentages = parsed
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.ApplyAllocation(ctx, args[0], rule); err != nil {
				return fmt.Errorf("failed to apply allocation: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Allocated record %s by %s", shortID(args[0]), method)))
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "equal", "allocation method (equal, budget, duration, custom)")
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "target production ids (default: all active)")
	cmd.Flags().StringVar(&percentages, "percentages", "", "custom percentages as id=pct,id=pct")

	return cmd
}

func removeAllocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <record-id>",
		Short: "Remove a record's allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.RemoveAllocation(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove allocation: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("✓ Removed allocation from record " + args[0]))
			return nil
		},
	}
}

func showAllocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a record's allocation line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := eng.GetLineItems(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get line items: %w", err)
			}

			if len(items) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No line items. The record is unallocated or no production is eligible."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("Production"),
				cli.HeaderStyle.Render("Share"),
				cli.HeaderStyle.Render("Amount"),
				cli.HeaderStyle.Render("Method"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 10),
				strings.Repeat("-", 7),
				strings.Repeat("-", 12),
				strings.Repeat("-", 8))

			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					shortID(item.ProjectID),
					cli.FormatPercent(item.Percentage),
					cli.FormatEmissions(item.AllocatedAmount),
					item.Method)
			}

			return nil
		},
	}
}
