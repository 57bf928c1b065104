package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stemsi/examdrill/internal/client"
	"github.com/stemsi/examdrill/internal/exam"
	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/model"
)

type saveCall struct {
	id     string
	wrong  []string
	result model.ExamResult
}

// fakeAPI stores one session in memory.
type fakeAPI struct {
	session *model.ExamSession
	loadErr error
	saveErr error
	saves   []saveCall
	cleared int
}

func (f *fakeAPI) Load(_ context.Context, id, _ string) (*model.ExamSession, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.session == nil || f.session.ID != strings.ToUpper(id) {
		return nil, &client.SessionError{Op: "load", Status: 404}
	}
	cp := *f.session
	return &cp, nil
}

func (f *fakeAPI) Save(_ context.Context, id string, wrong []string, result model.ExamResult) (*model.ExamSession, error) {
	f.saves = append(f.saves, saveCall{id: id, wrong: wrong, result: result})
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if f.session == nil {
		f.session = &model.ExamSession{ID: "NEW01"}
	}
	f.session.WrongQuestionIDs = model.WrongIDs(wrong)
	if result != "" {
		f.session.ExamsTaken++
		if result == model.ExamResultPass {
			f.session.ExamsPassed++
		} else {
			f.session.ExamsFailed++
		}
	}
	cp := *f.session
	return &cp, nil
}

func (f *fakeAPI) Clear(context.Context, string) (*model.ExamSession, error) {
	f.cleared++
	f.session.WrongQuestionIDs = model.WrongIDs{}
	cp := *f.session
	return &cp, nil
}

func (f *fakeAPI) Welcome(context.Context) (*model.WelcomeInfo, error) {
	return &model.WelcomeInfo{City: "Taipei", Country: "TW", Colo: "TPE"}, nil
}

func makeBank(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		id := fmt.Sprintf("Q%02d", i+1)
		qs[i] = model.Question{
			ID:            id,
			Question:      "Question " + id,
			Options:       []string{id + "-right", id + "-b", id + "-c", id + "-d"},
			CorrectAnswer: id + "-right",
		}
	}
	return qs
}

func newTestDrill(t *testing.T, api sessionAPI, script string) (*drill, *strings.Builder) {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatal(err)
	}
	out := &strings.Builder{}
	return &drill{
		ctx:       i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en")),
		m:         exam.New(),
		api:       api,
		in:        bufio.NewScanner(strings.NewReader(script)),
		out:       out,
		exportDir: t.TempDir(),
	}, out
}

func TestSubmitWithoutAnswersSavesFailure(t *testing.T) {
	api := &fakeAPI{}
	d, out := newTestDrill(t, api, "e\ns\ny\nq\n")

	if err := d.run(makeBank(40), nil, ""); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(api.saves) != 1 {
		t.Fatalf("expected one save, got %d", len(api.saves))
	}
	save := api.saves[0]
	if save.id != "" || save.result != model.ExamResultFail || len(save.wrong) != exam.QuestionCount {
		t.Fatalf("unexpected save %+v", save)
	}
	if d.m.SessionID() != "NEW01" || d.m.WrongCount() != exam.QuestionCount {
		t.Fatalf("session not applied: %q %d", d.m.SessionID(), d.m.WrongCount())
	}

	text := out.String()
	for _, want := range []string{"Welcome, visitor from Taipei", "Score 0/30", "FAILED", "Your new session ID is NEW01"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestCorrectAnswersPass(t *testing.T) {
	api := &fakeAPI{}
	d, out := newTestDrill(t, api, "")
	if err := d.run(makeBank(30), nil, ""); err != nil {
		t.Fatal(err)
	}
	if err := d.m.StartExam(); err != nil {
		t.Fatal(err)
	}

	// Pick the option carrying the "-right" suffix on every question.
	var script strings.Builder
	for _, q := range d.m.Questions() {
		for i, opt := range q.ShuffledOptions {
			if opt == q.CorrectAnswer {
				fmt.Fprintf(&script, "%d\n", i+1)
			}
		}
	}
	script.WriteString("y\n")
	d.in = bufio.NewScanner(strings.NewReader(script.String()))

	d.runExam()

	if res := d.m.Result(); res == nil || res.Score != 30 || !res.Passed {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(api.saves) != 1 || api.saves[0].result != model.ExamResultPass || len(api.saves[0].wrong) != 0 {
		t.Fatalf("unexpected saves %+v", api.saves)
	}
	if !strings.Contains(out.String(), "PASSED") {
		t.Fatal("expected PASSED in output")
	}
}

func TestSaveFailureKeepsScore(t *testing.T) {
	api := &fakeAPI{saveErr: errors.New("boom")}
	d, out := newTestDrill(t, api, "e\ns\ny\nq\n")

	if err := d.run(makeBank(30), nil, ""); err != nil {
		t.Fatal(err)
	}
	if res := d.m.Result(); res == nil || res.Total != 30 {
		t.Fatalf("result lost after failed save: %+v", res)
	}
	if d.m.SessionID() != "" {
		t.Fatal("expected no session after failed save")
	}
	if !strings.Contains(out.String(), "Result not saved: boom") {
		t.Fatalf("missing save failure message:\n%s", out.String())
	}
}

func TestResumeReviewPracticeAndExport(t *testing.T) {
	api := &fakeAPI{session: &model.ExamSession{
		ID:               "ABCDE",
		WrongQuestionIDs: model.WrongIDs{"Q03", "Q99"},
		ExamsTaken:       2, ExamsPassed: 1, ExamsFailed: 1,
	}}
	d, out := newTestDrill(t, api, "r\nx\np\ns\ny\nq\n")

	if err := d.run(makeBank(10), nil, "abcde"); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "Session ABCDE resumed: 2 taken, 1 passed, 1 failed, 2 wrong answers saved.") {
		t.Fatalf("missing resume line:\n%s", out.String())
	}

	raw, err := os.ReadFile(filepath.Join(d.exportDir, "wrong_answers_ABCDE.txt"))
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if !strings.HasPrefix(string(raw), "[I]Q03\n") {
		t.Fatalf("unexpected export %q", raw)
	}

	// Practice covers the one wrong question present in the pool and is not judged.
	if len(api.saves) != 1 || api.saves[0].result != "" || api.saves[0].id != "ABCDE" {
		t.Fatalf("unexpected saves %+v", api.saves)
	}
	if len(api.saves[0].wrong) != 1 || api.saves[0].wrong[0] != "Q03" {
		t.Fatalf("unexpected practice wrong ids %v", api.saves[0].wrong)
	}
	if !strings.Contains(out.String(), "Practice finished.") {
		t.Fatal("expected practice summary")
	}
}

func TestClearWithoutSessionStaysLocal(t *testing.T) {
	api := &fakeAPI{}
	d, out := newTestDrill(t, api, "c\nb\n")
	if err := d.m.BankLoaded(makeBank(40)); err != nil {
		t.Fatal(err)
	}
	d.m.ApplySession(&model.ExamSession{WrongQuestionIDs: model.WrongIDs{"Q03"}})
	if err := d.m.OpenReview(); err != nil {
		t.Fatalf("OpenReview: %v", err)
	}

	d.review()

	if api.cleared != 0 {
		t.Fatalf("clear reached the server %d times", api.cleared)
	}
	if !strings.Contains(out.String(), "No active session") {
		t.Fatalf("missing refusal in output:\n%s", out.String())
	}
	if d.m.WrongCount() != 1 || d.m.State() != exam.StateReady {
		t.Fatalf("unexpected machine state %s with %d wrong", d.m.State(), d.m.WrongCount())
	}
}

func TestResumeFailureDropsSession(t *testing.T) {
	api := &fakeAPI{loadErr: &client.SessionError{Op: "load", Status: 404, Msg: "Session ID does not exist."}}
	d, out := newTestDrill(t, api, "r\nq\n")

	if err := d.run(makeBank(10), nil, "ZZZZZ"); err != nil {
		t.Fatal(err)
	}
	if d.m.SessionID() != "" {
		t.Fatal("expected session to be dropped")
	}
	text := out.String()
	if !strings.Contains(text, "Could not load the session") {
		t.Fatalf("missing load failure:\n%s", text)
	}
	if !strings.Contains(text, "Your wrong-answer book is empty.") {
		t.Fatalf("expected review refusal:\n%s", text)
	}
}

func TestSmallPoolRefusesExam(t *testing.T) {
	d, out := newTestDrill(t, &fakeAPI{}, "e\nq\n")

	if err := d.run(makeBank(5), nil, ""); err != nil {
		t.Fatal(err)
	}
	if d.m.State() != exam.StateReady {
		t.Fatalf("expected Ready, got %s", d.m.State())
	}
	if !strings.Contains(out.String(), "fewer than 30 questions") {
		t.Fatalf("missing pool warning:\n%s", out.String())
	}
}

func TestBankFailureStopsDrill(t *testing.T) {
	d, out := newTestDrill(t, &fakeAPI{}, "")
	loadErr := errors.New("unreachable")

	if err := d.run(nil, loadErr, ""); !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if d.m.State() != exam.StateLoading {
		t.Fatalf("expected Loading, got %s", d.m.State())
	}
	if !strings.Contains(out.String(), "Could not load the question bank: unreachable") {
		t.Fatalf("missing bank failure:\n%s", out.String())
	}
}
