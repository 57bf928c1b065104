package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stemsi/examdrill/internal/exam"
	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/questionbank"
)

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Take exams and practice wrong answers interactively",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.String("bank", "", "Question bank URL or file path (defaults to <api>/tk.txt)")
	f.String("session", "", "Session ID to resume")
	f.String("export-dir", ".", "Directory for exported wrong-answer books")
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	source := e.v.GetString("bank")
	if source == "" {
		source = strings.TrimRight(e.v.GetString("api"), "/") + "/tk.txt"
	}

	d := &drill{
		ctx:         e.ctx,
		m:           exam.New(),
		api:         e.api,
		in:          bufio.NewScanner(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())),
		exportDir:   e.v.GetString("export-dir"),
		timeout:     e.v.GetDuration("timeout"),
	}

	questions, loadErr := questionbank.NewLoader(source, nil, e.log).Load(e.ctx)
	return d.run(questions, loadErr, e.v.GetString("session"))
}

// sessionAPI is the part of the API client the drill uses.
type sessionAPI interface {
	Load(ctx context.Context, id, token string) (*model.ExamSession, error)
	Save(ctx context.Context, id string, wrong []string, result model.ExamResult) (*model.ExamSession, error)
	Clear(ctx context.Context, id string) (*model.ExamSession, error)
	Welcome(ctx context.Context) (*model.WelcomeInfo, error)
}

// drill drives an exam.Machine from line-based input.
type drill struct {
	ctx         context.Context
	m           *exam.Machine
	api         sessionAPI
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
	exportDir   string
	timeout     time.Duration
}

func (d *drill) run(questions []model.Question, loadErr error, sessionID string) error {
	if loadErr != nil {
		d.m.BankFailed(loadErr)
		d.say("BankLoadFailed", map[string]any{"Reason": loadErr.Error()})
		return loadErr
	}
	if err := d.m.BankLoaded(questions); err != nil {
		return err
	}

	d.greet()
	if sessionID != "" {
		d.resume(sessionID)
	}
	return d.mainMenu()
}

func (d *drill) greet() {
	ctx, cancel := d.call()
	defer cancel()

	info, err := d.api.Welcome(ctx)
	if err != nil {
		return
	}
	d.say("Welcome", map[string]any{"City": info.City, "Country": info.Country, "Colo": info.Colo})
}

// resume loads a stored id without verification and forgets it on failure.
func (d *drill) resume(id string) {
	ctx, cancel := d.call()
	defer cancel()

	snap, err := d.api.Load(ctx, id, "")
	if err != nil {
		d.m.DropSession()
		d.say("SessionLoadFailed", map[string]any{"Reason": err.Error()})
		return
	}
	d.m.ApplySession(snap)
	d.say("SessionResumed", map[string]any{
		"ID":     snap.ID,
		"Taken":  snap.ExamsTaken,
		"Passed": snap.ExamsPassed,
		"Failed": snap.ExamsFailed,
		"Wrong":  len(snap.WrongQuestionIDs),
	})
}

func (d *drill) mainMenu() error {
	for {
		d.say("MainMenu", nil)
		line, ok := d.readLine()
		if !ok {
			return nil
		}

		switch line {
		case "e":
			if err := d.m.StartExam(); err != nil {
				d.refuse(err)
				continue
			}
			d.runExam()
		case "r":
			if err := d.m.OpenReview(); err != nil {
				d.refuse(err)
				continue
			}
			d.review()
		case "q":
			return nil
		}
	}
}

func (d *drill) review() {
	for d.m.State() == exam.StateReview {
		for _, q := range d.m.WrongQuestions() {
			fmt.Fprintf(d.out, "  %s  %s\n", q.ID, q.Question)
		}
		d.say("ReviewMenu", nil)

		line, ok := d.readLine()
		if !ok {
			return
		}
		switch line {
		case "p":
			if err := d.m.StartPractice(); err != nil {
				d.refuse(err)
				continue
			}
			d.runExam()
			return
		case "x":
			d.export()
		case "c":
			d.clear()
		case "b":
			_ = d.m.CloseReview()
		}
	}
}

func (d *drill) runExam() {
	for {
		switch d.m.State() {
		case exam.StateInProgress:
			idx, q := d.m.Current()
			d.showQuestion(idx, q)
			line, ok := d.readLine()
			if !ok {
				return
			}
			d.examInput(line, q)

		case exam.StatePreSubmit:
			d.say("ConfirmSubmit", map[string]any{"Unanswered": len(d.m.Unanswered())})
			line, ok := d.readLine()
			if !ok {
				return
			}
			switch line {
			case "y":
				res, err := d.m.Submit()
				if err != nil {
					d.refuse(err)
					continue
				}
				d.finish(res)
				return
			case "b":
				_ = d.m.Back()
			}

		default:
			return
		}
	}
}

func (d *drill) showQuestion(idx int, q model.ShuffledQuestion) {
	if d.interactive {
		fmt.Fprint(d.out, "\033[H\033[2J")
	}
	d.say("QuestionHeader", map[string]any{"Index": idx + 1, "Total": len(d.m.Questions()), "ID": q.ID})
	fmt.Fprintln(d.out, q.Question)

	chosen, _ := d.m.AnswerOf(q.ID)
	for i, opt := range q.ShuffledOptions {
		mark := " "
		if opt == chosen {
			mark = "*"
		}
		fmt.Fprintf(d.out, " %s %d) %s\n", mark, i+1, opt)
	}
	fmt.Fprint(d.out, i18n.T(d.ctx, "AnswerPrompt"))
}

func (d *drill) examInput(line string, q model.ShuffledQuestion) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	var err error
	switch fields[0] {
	case "n":
		err = d.m.Next()
	case "p":
		err = d.m.Prev()
	case "g":
		if len(fields) < 2 {
			return
		}
		n, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			return
		}
		err = d.m.Goto(n - 1)
	case "s":
		if err = d.m.Goto(len(d.m.Questions()) - 1); err == nil {
			err = d.m.Next()
		}
	default:
		n, convErr := strconv.Atoi(fields[0])
		if convErr != nil || n < 1 || n > len(q.ShuffledOptions) {
			return
		}
		if err = d.m.Answer(q.ID, q.ShuffledOptions[n-1]); err == nil {
			err = d.m.Next()
		}
	}
	if err != nil {
		d.refuse(err)
	}
}

// finish shows the result, then saves it. A failed save never changes the score.
func (d *drill) finish(res exam.Result) {
	d.say("ScoreLine", map[string]any{"Score": res.Score, "Total": res.Total})
	switch {
	case !res.Judged:
		d.say("PracticeDone", nil)
	case res.Passed:
		d.say("Passed", nil)
	default:
		d.say("Failed", nil)
	}

	ctx, cancel := d.call()
	defer cancel()

	hadSession := d.m.SessionID() != ""
	snap, err := d.api.Save(ctx, d.m.SessionID(), res.WrongIDs, res.Verdict())
	if err != nil {
		d.m.DropSession()
		d.say("SessionSaveFailed", map[string]any{"Reason": err.Error()})
		return
	}
	d.m.ApplySession(snap)
	if !hadSession {
		d.say("SessionCreated", map[string]any{"ID": snap.ID})
	}
}

func (d *drill) clear() {
	if d.m.SessionID() == "" {
		d.say("NoActiveSession", nil)
		return
	}
	ctx, cancel := d.call()
	defer cancel()

	snap, err := d.api.Clear(ctx, d.m.SessionID())
	if err != nil {
		d.m.DropSession()
		d.say("SessionSaveFailed", map[string]any{"Reason": err.Error()})
	} else {
		d.m.ApplySession(snap)
	}
	_ = d.m.CloseReview()
}

// export writes the wrong-answer book next to the user, the way the browser
// client offers a download.
func (d *drill) export() {
	id := d.m.SessionID()
	if id == "" {
		id = "export"
	}
	path := filepath.Join(d.exportDir, "wrong_answers_"+id+".txt")

	body := questionbank.Export(d.m.WrongQuestions())
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		fmt.Fprintln(d.out, err)
		return
	}
	d.say("ExportWritten", map[string]any{"Count": len(body), "File": path})
}

func (d *drill) refuse(err error) {
	var ve *exam.ValidationError
	if errors.As(err, &ve) {
		d.say(ve.Reason, map[string]any{"Count": exam.QuestionCount})
		return
	}
	fmt.Fprintln(d.out, err)
}

func (d *drill) say(id string, data map[string]any) {
	fmt.Fprintln(d.out, i18n.Td(d.ctx, id, data))
}

func (d *drill) readLine() (string, bool) {
	if !d.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(d.in.Text()), true
}

func (d *drill) call() (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(d.ctx)
	}
	return context.WithTimeout(d.ctx, d.timeout)
}
