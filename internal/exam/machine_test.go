package exam

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stemsi/examdrill/internal/model"
)

func makePool(n int) []model.Question {
	pool := make([]model.Question, n)
	for i := range pool {
		id := fmt.Sprintf("Q%03d", i+1)
		pool[i] = model.Question{
			ID:            id,
			Question:      "Question " + id,
			Options:       []string{id + "-right", id + "-b", id + "-c", id + "-d"},
			CorrectAnswer: id + "-right",
		}
	}
	return pool
}

func readyMachine(t *testing.T, poolSize int) *Machine {
	t.Helper()
	m := New(WithRand(rand.New(rand.NewPCG(42, 99))))
	if err := m.BankLoaded(makePool(poolSize)); err != nil {
		t.Fatalf("BankLoaded: %v", err)
	}
	return m
}

func answerAll(t *testing.T, m *Machine, correct int) {
	t.Helper()
	for i, q := range m.Questions() {
		opt := q.CorrectAnswer
		if i >= correct {
			opt = q.ID + "-b"
		}
		if err := m.Answer(q.ID, opt); err != nil {
			t.Fatalf("Answer(%s): %v", q.ID, err)
		}
	}
}

func finishExam(t *testing.T, m *Machine) Result {
	t.Helper()
	if err := m.Goto(len(m.Questions()) - 1); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if m.State() != StatePreSubmit {
		t.Fatalf("expected pre-submit, got %s", m.State())
	}
	res, err := m.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return res
}

func TestInitialStateIsLoading(t *testing.T) {
	m := New()
	if m.State() != StateLoading {
		t.Fatalf("expected loading, got %s", m.State())
	}

	loadErr := errors.New("boom")
	m.BankFailed(loadErr)
	if m.State() != StateLoading || m.LoadError() != loadErr {
		t.Fatalf("failed load should keep loading and record the error")
	}
}

func TestStartExamSamplesDistinctQuestions(t *testing.T) {
	m := readyMachine(t, 120)
	if err := m.StartExam(); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if m.State() != StateInProgress {
		t.Fatalf("expected in progress, got %s", m.State())
	}

	qs := m.Questions()
	if len(qs) != QuestionCount {
		t.Fatalf("expected %d questions, got %d", QuestionCount, len(qs))
	}

	seen := make(map[string]bool)
	for _, q := range qs {
		if seen[q.ID] {
			t.Fatalf("question %s sampled twice", q.ID)
		}
		seen[q.ID] = true

		sortedShuffled := slices.Clone(q.ShuffledOptions)
		sortedOriginal := slices.Clone(q.Options)
		slices.Sort(sortedShuffled)
		slices.Sort(sortedOriginal)
		if !slices.Equal(sortedShuffled, sortedOriginal) {
			t.Fatalf("shuffled options of %s are not a permutation", q.ID)
		}
	}
}

func TestStartExamRejectsSmallPool(t *testing.T) {
	m := readyMachine(t, QuestionCount-1)

	err := m.StartExam()
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonPoolTooSmall {
		t.Fatalf("expected pool-too-small validation error, got %v", err)
	}
	if m.State() != StateReady {
		t.Fatalf("state changed to %s", m.State())
	}
}

func TestSubmitPassesAtThreshold(t *testing.T) {
	m := readyMachine(t, 40)
	if err := m.StartExam(); err != nil {
		t.Fatal(err)
	}
	answerAll(t, m, PassingScore)

	res := finishExam(t, m)
	if res.Score != 25 || res.Total != 30 {
		t.Fatalf("expected 25/30, got %d/%d", res.Score, res.Total)
	}
	if !res.Judged || !res.Passed || res.Verdict() != model.ExamResultPass {
		t.Fatalf("expected a judged pass, got %+v", res)
	}
	if len(res.WrongIDs) != 5 {
		t.Fatalf("expected 5 wrong ids, got %d", len(res.WrongIDs))
	}
	if m.State() != StateFinished {
		t.Fatalf("expected finished, got %s", m.State())
	}
}

func TestUnansweredCountsAsWrong(t *testing.T) {
	m := readyMachine(t, 30)
	if err := m.StartExam(); err != nil {
		t.Fatal(err)
	}
	for _, q := range m.Questions()[:24] {
		if err := m.Answer(q.ID, q.CorrectAnswer); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(m.Unanswered()); got != 6 {
		t.Fatalf("expected 6 unanswered, got %d", got)
	}

	res := finishExam(t, m)
	if res.Score != 24 || res.Passed || res.Verdict() != model.ExamResultFail {
		t.Fatalf("expected a judged fail with 24, got %+v", res)
	}
}

func TestAnswersAreOverwritable(t *testing.T) {
	m := readyMachine(t, 30)
	if err := m.StartExam(); err != nil {
		t.Fatal(err)
	}
	_, q := m.Current()

	if err := m.Answer(q.ID, q.ID+"-c"); err != nil {
		t.Fatal(err)
	}
	if err := m.Answer(q.ID, q.CorrectAnswer); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.AnswerOf(q.ID); got != q.CorrectAnswer {
		t.Fatalf("expected overwritten answer, got %q", got)
	}

	if err := m.Answer(q.ID, "not an option"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if err := m.Answer("nope", q.CorrectAnswer); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestNavigationAndBack(t *testing.T) {
	m := readyMachine(t, 30)
	if err := m.StartExam(); err != nil {
		t.Fatal(err)
	}

	if err := m.Prev(); err != nil {
		t.Fatal(err)
	}
	if i, _ := m.Current(); i != 0 {
		t.Fatalf("prev on first question moved to %d", i)
	}
	if err := m.Goto(17); err != nil {
		t.Fatal(err)
	}
	if err := m.Goto(30); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := m.Goto(29); err != nil {
		t.Fatal(err)
	}
	if err := m.Next(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StatePreSubmit {
		t.Fatalf("expected pre-submit, got %s", m.State())
	}
	if err := m.Back(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateInProgress {
		t.Fatalf("expected in progress after back, got %s", m.State())
	}
	if _, err := m.Submit(); err == nil {
		t.Fatal("submit outside pre-submit should fail")
	}
}

func TestReviewRequiresWrongSetInPool(t *testing.T) {
	m := readyMachine(t, 30)

	var ve *ValidationError
	if err := m.OpenReview(); !errors.As(err, &ve) || ve.Reason != ReasonWrongSetEmpty {
		t.Fatalf("expected empty wrong set error, got %v", err)
	}

	m.ApplySession(&model.ExamSession{ID: "AB12C", WrongQuestionIDs: model.WrongIDs{"gone-1", "gone-2"}})
	if err := m.OpenReview(); !errors.As(err, &ve) || ve.Reason != ReasonWrongSetNotInBank {
		t.Fatalf("expected not-in-bank error, got %v", err)
	}
	if m.State() != StateReady {
		t.Fatalf("state changed to %s", m.State())
	}

	m.ApplySession(&model.ExamSession{ID: "AB12C", WrongQuestionIDs: model.WrongIDs{"Q003", "gone-1", "Q007"}})
	if err := m.OpenReview(); err != nil {
		t.Fatalf("OpenReview: %v", err)
	}
	if err := m.StartPractice(); err != nil {
		t.Fatalf("StartPractice: %v", err)
	}
	if m.Mode() != ModePractice || len(m.Questions()) != 2 {
		t.Fatalf("expected a 2-question practice run, got %d in mode %d", len(m.Questions()), m.Mode())
	}

	answerAll(t, m, 2)
	res := finishExam(t, m)
	if res.Judged || res.Verdict() != "" {
		t.Fatalf("practice runs must not be judged, got %+v", res)
	}
}

func TestFullLengthPracticeIsNotJudged(t *testing.T) {
	m := readyMachine(t, 40)
	wrong := make(model.WrongIDs, 0, QuestionCount)
	for i := 1; i <= QuestionCount; i++ {
		wrong = append(wrong, fmt.Sprintf("Q%03d", i))
	}
	m.ApplySession(&model.ExamSession{ID: "PR030", WrongQuestionIDs: wrong})
	if err := m.OpenReview(); err != nil {
		t.Fatalf("OpenReview: %v", err)
	}
	if err := m.StartPractice(); err != nil {
		t.Fatalf("StartPractice: %v", err)
	}
	if len(m.Questions()) != QuestionCount {
		t.Fatalf("expected %d practice questions, got %d", QuestionCount, len(m.Questions()))
	}

	answerAll(t, m, QuestionCount)
	res := finishExam(t, m)
	if res.Score != QuestionCount || res.Judged || res.Passed || res.Verdict() != "" {
		t.Fatalf("practice run judged: %+v", res)
	}
}

func TestRetryAndReviewFromFinished(t *testing.T) {
	m := readyMachine(t, 30)
	if err := m.StartExam(); err != nil {
		t.Fatal(err)
	}
	res := finishExam(t, m)

	m.ApplySession(&model.ExamSession{ID: "ZZ999", WrongQuestionIDs: res.WrongIDs})
	if err := m.OpenReview(); err != nil {
		t.Fatalf("OpenReview from finished: %v", err)
	}
	if err := m.CloseReview(); err != nil {
		t.Fatal(err)
	}
	if err := m.StartExam(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(m.Unanswered()) != QuestionCount {
		t.Fatal("retry should start with no answers")
	}

	m.DropSession()
	if m.SessionID() != "" || m.WrongCount() != 0 {
		t.Fatal("DropSession should clear the cached session")
	}
}
