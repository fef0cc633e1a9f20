package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flow/internal/core"
)

func parseDateFlag(name, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func projectCmd(run runner) *cobra.Command {
	var (
		end, from string
		daily     bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the running balance day by day",
		Long: `Project the running balance from the earliest transaction through --end
(default: the configured horizon from today).

Only days on which the balance moves are printed unless --daily is given.`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app) error {
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			fromDate, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}

			var points []core.CashflowPoint
			if fromDate.IsZero() {
				points, err = a.forecast.Cashflow(cmd.Context(), endDate)
			} else {
				points, err = a.forecast.CashflowSince(cmd.Context(), fromDate, endDate)
			}
			if err != nil {
				return err
			}
			if !daily {
				points = changes(points)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if points == nil {
					points = []core.CashflowPoint{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(points)
			}

			if len(points) == 0 {
				fmt.Fprintln(out, SubtleStyle.Render("Nothing to project."))
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\n", HeaderStyle.Render("Date"), HeaderStyle.Render("Balance"))
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\n", p.Date, amount(p.Amount))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&end, "end", "", "last projected day YYYY-MM-DD")
	cmd.Flags().StringVar(&from, "from", "", "first printed day YYYY-MM-DD")
	cmd.Flags().BoolVar(&daily, "daily", false, "print every day, not only changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// changes keeps the first point, every point whose balance differs from the
// previous day, and the last point.
func changes(points []core.CashflowPoint) []core.CashflowPoint {
	if len(points) < 2 {
		return points
	}
	out := []core.CashflowPoint{points[0]}
	for i := 1; i < len(points)-1; i++ {
		if !points[i].Amount.Equal(points[i-1].Amount) {
			out = append(out, points[i])
		}
	}
	return append(out, points[len(points)-1])
}

func summaryCmd(run runner) *cobra.Command {
	var end string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the headline numbers of the projection",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app) error {
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			f, err := a.forecast.Summary(cmd.Context(), endDate)
			if err != nil {
				return err
			}

			p := f.Projection
			var b strings.Builder
			fmt.Fprintln(&b, TitleStyle.Render("Cash flow"))
			fmt.Fprintf(&b, "Transactions   %d\n", f.Count)
			fmt.Fprintf(&b, "Total          %s\n", amount(f.Total))
			fmt.Fprintf(&b, "Today (%s)     %s\n", f.Today, amount(f.TodayBalance))
			if p.Days > 0 {
				fmt.Fprintf(&b, "Projection     %s → %s (%d days)\n", p.Start, p.End, p.Days)
				fmt.Fprintf(&b, "Final balance  %s\n", amount(p.Final))
				fmt.Fprintf(&b, "Lowest         %s on %s\n", amount(p.Min), p.MinDate)
				fmt.Fprintf(&b, "Highest        %s on %s", amount(p.Max), p.MaxDate)
			} else {
				fmt.Fprint(&b, SubtleStyle.Render("No projection yet."))
			}

			fmt.Fprintln(cmd.OutOrStdout(), BoxStyle.Render(b.String()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&end, "end", "", "last projected day YYYY-MM-DD")
	return cmd
}
