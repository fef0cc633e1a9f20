package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flow/internal/core"
)

func listCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List transactions",
		Args:    cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app) error {
			txs, err := a.transactions.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, SubtleStyle.Render("No transactions yet. Use 'flowctl add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				HeaderStyle.Render("ID"),
				HeaderStyle.Render("Name"),
				HeaderStyle.Render("Amount"),
				HeaderStyle.Render("Base date"),
				HeaderStyle.Render("Recurrence"))
			for _, t := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, amount(t.Amount), t.BaseDate, t.Recurrence)
			}
			return w.Flush()
		}),
	}
}

// transactionFlags are shared by add and edit.
type transactionFlags struct {
	name     string
	amount   string
	date     string
	interval int
	unit     string
	once     bool
}

func (f *transactionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "transaction name")
	cmd.Flags().StringVar(&f.amount, "amount", "", "signed amount, negative for outflows (e.g. -1200 or 12,50)")
	cmd.Flags().StringVar(&f.date, "date", "", "base date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&f.interval, "interval", 1, "repeat every N units")
	cmd.Flags().StringVar(&f.unit, "unit", "", "repeat unit: day, week, month or year (omit for one-time)")
}

// apply overwrites the fields of t whose flags were set.
func (f *transactionFlags) apply(cmd *cobra.Command, t core.Transaction) (core.Transaction, error) {
	changed := cmd.Flags().Changed

	if changed("name") {
		t.Name = f.name
	}
	if changed("amount") {
		a, err := core.ParseAmount(f.amount)
		if err != nil {
			return t, fmt.Errorf("amount %q: %w", f.amount, err)
		}
		t.Amount = a
	}
	if changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return t, err
		}
		t.BaseDate = d
	}

	switch {
	case f.once:
		t.Recurrence = core.Once()
	case changed("unit"):
		unit, err := core.ParseUnit(f.unit)
		if err != nil {
			return t, err
		}
		t.Recurrence = core.Every(f.interval, unit)
	case changed("interval"):
		if t.Recurrence.IsOneTime() {
			return t, fmt.Errorf("--interval needs --unit for a one-time transaction")
		}
		t.Recurrence.Interval = f.interval
	}
	return t, nil
}

func addCmd(run runner) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Example: `  flowctl add --name Rent --amount -1200 --date 2024-01-01 --unit month
  flowctl add --name Bonus --amount 500 --date 2024-06-30`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app) error {
			t, err := flags.apply(cmd, core.Transaction{
				BaseDate:   a.forecast.Today(),
				Recurrence: core.Once(),
			})
			if err != nil {
				return err
			}

			created, err := a.transactions.Create(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s, %s)\n",
				SuccessStyle.Render("Added"), created.ID, created.Name, amount(created.Amount), created.Recurrence)
			return nil
		}),
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func editCmd(run runner) *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:     "edit <id>",
		Short:   "Change fields of a transaction",
		Example: `  flowctl edit 3f0c… --amount -1250 --unit month --interval 1`,
		Args:    cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, a *app) error {
			current, err := a.transactions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := flags.apply(cmd, current)
			if err != nil {
				return err
			}

			updated, err := a.transactions.Update(cmd.Context(), current.ID, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s, %s)\n",
				SuccessStyle.Render("Updated"), updated.ID, updated.Name, amount(updated.Amount), updated.Recurrence)
			return nil
		}),
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.once, "once", false, "make the transaction one-time")
	cmd.MarkFlagsMutuallyExclusive("once", "unit")
	return cmd
}

func rmCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove transactions",
		Args:    cobra.MinimumNArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, a *app) error {
			var failed []string
			for _, id := range args {
				if err := a.transactions.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render(err.Error()))
					failed = append(failed, id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Removed"), id)
			}
			if len(failed) > 0 {
				return fmt.Errorf("could not remove %s", strings.Join(failed, ", "))
			}
			return nil
		}),
	}
}
