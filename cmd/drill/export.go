package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stemsi/examdrill/internal/i18n"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the wrong-answer book of a session",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("id", "", "Session ID")
	f.StringP("output", "o", "", "Output file path (- for stdout, default from the server)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := e.call()
	defer cancel()

	body, name, err := e.api.Export(ctx, e.v.GetString("id"))
	if err != nil {
		return err
	}

	out := e.v.GetString("output")
	switch out {
	case "-":
		_, err = cmd.OutOrStdout().Write(body)
		return err
	case "":
		out = name
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.Td(e.ctx, "ExportWritten", map[string]any{"Count": len(body), "File": out}))
	return nil
}
