package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/questionbank"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Parse a question bank and report malformed records",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print every dropped record")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return &questionbank.LoadError{Source: args[0], Err: err}
	}

	r := questionbank.Check(string(raw))
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, i18n.Td(e.ctx, "BankChecked", map[string]any{"Kept": len(r.Questions), "Dropped": len(r.Dropped)}))

	if e.v.GetBool("verbose") {
		for _, record := range r.Dropped {
			first, _, _ := strings.Cut(record, "\n")
			fmt.Fprintf(out, "  dropped: %s\n", strings.TrimSpace(first))
		}
	}
	if len(r.Dropped) > 0 {
		return fmt.Errorf("%d malformed records", len(r.Dropped))
	}
	return nil
}
