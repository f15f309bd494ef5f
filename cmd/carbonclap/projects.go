package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/engine"
	"github.com/carbonclap/carbonclap/internal/model"
	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage productions",
		Long:  `List, add, update, and delete productions tracked for emissions.`,
	}

	cmd.AddCommand(listProjectsCmd())
	cmd.AddCommand(addProjectCmd())
	cmd.AddCommand(updateProjectCmd())
	cmd.AddCommand(deleteProjectCmd())

	return cmd
}

func listProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all productions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			projects, err := eng.GetProjects(ctx)
			if err != nil {
				return fmt.Errorf("failed to get projects: %w", err)
			}

			if len(projects) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No productions found. Use 'carbonclap projects add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Name"),
				cli.HeaderStyle.Render("Status"),
				cli.HeaderStyle.Render("Direct"),
				cli.HeaderStyle.Render("Allocated"),
				cli.HeaderStyle.Render("Total"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 8),
				strings.Repeat("-", 20),
				strings.Repeat("-", 9),
				strings.Repeat("-", 12),
				strings.Repeat("-", 12),
				strings.Repeat("-", 12))

			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(p.ID),
					p.Name,
					p.Status,
					cli.FormatEmissions(p.Summary.DirectEmissions),
					cli.FormatEmissions(p.Summary.AllocatedEmissions),
					cli.FormatEmissions(p.Summary.TotalEmissions))
			}

			return nil
		},
	}
}

func addProjectCmd() *cobra.Command {
	var (
		status    string
		budget    float64
		startDate string
		endDate   string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new production",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			spec := engine.ProjectSpec{
				Name:   args[0],
				Status: model.ProjectStatus(status),
			}
			if cmd.Flags().Changed("budget") {
				spec.Budget = &budget
			}
			if startDate != "" {
				t, parseErr := parseDate(startDate)
				if parseErr != nil {
					return parseErr
				}
				spec.StartDate = &t
			}
			if endDate != "" {
				t, parseErr := parseDate(endDate)
				if parseErr != nil {
					return parseErr
				}
				spec.EndDate = &t
			}

			project, err := eng.AddProject(ctx, spec)
			if err != nil {
				return fmt.Errorf("failed to add project: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Added production %q (%s)", project.Name, shortID(project.ID))))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "planning", "status (planning, active, completed, on-hold)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "production budget")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")

	return cmd
}

func updateProjectCmd() *cobra.Command {
	var (
		name       string
		status     string
		budget     float64
		startDate  string
		endDate    string
		clearDates bool
	)

	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update a production",
		Long: `Update a production's name, status, budget, or dates.
Changing the budget, dates, or status triggers reallocation of the shared
emission records whose split depends on the changed field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			patch := engine.ProjectPatch{ClearDates: clearDates}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("status") {
				s := model.ProjectStatus(status)
				patch.Status = &s
			}
			if cmd.Flags().Changed("budget") {
				patch.Budget = &budget
			}
			var start, end time.Time
			if startDate != "" {
				if start, err = parseDate(startDate); err != nil {
					return err
				}
				patch.StartDate = &start
			}
			if endDate != "" {
				if end, err = parseDate(endDate); err != nil {
					return err
				}
				patch.EndDate = &end
			}

			project, err := eng.UpdateProject(ctx, args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to update project: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Updated production %q", project.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Float64Var(&budget, "budget", 0, "new budget")
	cmd.Flags().StringVar(&startDate, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "new end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDates, "clear-dates", false, "remove start and end dates")

	return cmd
}

func deleteProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a production",
		Long: `Delete a production along with its direct emission records.
Shared emission records that allocated to it are redistributed across the
remaining eligible productions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.DeleteProject(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("✓ Deleted production " + args[0]))
			return nil
		},
	}
}

// shortID abbreviates uuids for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
