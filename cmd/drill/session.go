package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/model"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset a stored session",
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Show a session. Pass --token - to type a verification token",
		RunE:  runSessionLoad,
	}
	loadCmd.Flags().String("id", "", "Session ID")
	loadCmd.Flags().String("token", "", "Bot verification token (- prompts without echo)")
	_ = loadCmd.MarkFlagRequired("id")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the wrong-answer book of a session",
		RunE:  runSessionClear,
	}
	clearCmd.Flags().String("id", "", "Session ID")
	_ = clearCmd.MarkFlagRequired("id")

	cmd.AddCommand(loadCmd, clearCmd)
	return cmd
}

func runSessionLoad(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	token := e.v.GetString("token")
	if token == "-" {
		if token, err = readSecret("Token: "); err != nil {
			return err
		}
	}

	ctx, cancel := e.call()
	defer cancel()

	snap, err := e.api.Load(ctx, e.v.GetString("id"), token)
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Td(e.ctx, "SessionLoadFailed", map[string]any{"Reason": err.Error()}))
		return err
	}
	printSnapshot(cmd, snap)
	return nil
}

func runSessionClear(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := e.call()
	defer cancel()

	snap, err := e.api.Clear(ctx, e.v.GetString("id"))
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Td(e.ctx, "SessionSaveFailed", map[string]any{"Reason": err.Error()}))
		return err
	}
	printSnapshot(cmd, snap)
	return nil
}

func printSnapshot(cmd *cobra.Command, s *model.ExamSession) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:      %s\n", s.ID)
	fmt.Fprintf(out, "taken:   %d\n", s.ExamsTaken)
	fmt.Fprintf(out, "passed:  %d\n", s.ExamsPassed)
	fmt.Fprintf(out, "failed:  %d\n", s.ExamsFailed)
	fmt.Fprintf(out, "wrong:   %v\n", []string(s.WrongQuestionIDs))
}

// readSecret reads one line from the terminal without echoing it.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
