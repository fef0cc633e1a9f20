package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"flow/internal/core"
)

func importCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON transaction list",
		Long: `Import a JSON array of transactions into the configured backend.

Both the current format (recurrence object) and the older format with a
single "interval" field (ONCE, DAILY, WEEKLY, MONTHLY, YEARLY) are accepted.
Records keep their IDs; IDs already stored are skipped. Use "-" to read
from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, a *app) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			txs, err := core.DecodeTransactions(data)
			if err != nil {
				return err
			}

			n, err := a.transactions.Import(cmd.Context(), txs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d transactions\n", SuccessStyle.Render("Imported"), n, len(txs))
			return nil
		}),
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
