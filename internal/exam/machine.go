// Package exam drives one client's exam flow: sampling, answering, scoring and
// reviewing wrong answers. A Machine is not safe for concurrent use; callers
// own it from a single goroutine, as an event-driven UI would.
package exam

import (
	"math/rand/v2"

	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/questionbank"
)

const (
	// QuestionCount is the length of a standard exam.
	QuestionCount = 30
	// PassingScore is the minimum score that passes a standard exam.
	PassingScore = 25
)

// State is a step of the exam flow.
type State int

const (
	StateLoading State = iota
	StateReady
	StateInProgress
	StatePreSubmit
	StateFinished
	StateReview
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateInProgress:
		return "in progress"
	case StatePreSubmit:
		return "pre-submit"
	case StateFinished:
		return "finished"
	case StateReview:
		return "review"
	default:
		return "unknown"
	}
}

// Mode tells a standard exam from a wrong-answer practice run.
type Mode int

const (
	ModeExam Mode = iota
	ModePractice
)

// Result is the outcome of a submitted exam.
type Result struct {
	Score    int
	Total    int
	Judged   bool
	Passed   bool
	WrongIDs []string
}

// Verdict returns the result to persist, or "" for practice runs which are
// scored but not judged.
func (r Result) Verdict() model.ExamResult {
	if !r.Judged {
		return ""
	}
	if r.Passed {
		return model.ExamResultPass
	}
	return model.ExamResultFail
}

// Option configures a Machine.
type Option func(*Machine)

// WithRand makes sampling and option shuffling deterministic.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) { m.rng = r }
}

// Machine holds the question pool, the cached session copy and the exam in flight.
type Machine struct {
	state   State
	rng     *rand.Rand
	bank    *questionbank.Bank
	loadErr error

	session *model.ExamSession
	wrong   model.WrongIDs

	mode      Mode
	questions []model.ShuffledQuestion
	current   int
	answers   map[string]string
	result    *Result
}

// New returns a Machine in the Loading state.
func New(opts ...Option) *Machine {
	m := &Machine{
		state:   StateLoading,
		answers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Mode returns the kind of the exam in flight or last finished.
func (m *Machine) Mode() Mode { return m.mode }

// BankLoaded installs the question pool and moves Loading to Ready.
func (m *Machine) BankLoaded(questions []model.Question) error {
	if m.state != StateLoading {
		return &TransitionError{From: m.state, Action: "load the question bank"}
	}
	m.bank = questionbank.NewBank(questions)
	m.loadErr = nil
	m.state = StateReady
	return nil
}

// BankFailed records a fatal load failure. The machine stays in Loading.
func (m *Machine) BankFailed(err error) {
	m.loadErr = err
}

// LoadError returns the recorded bank failure, if any.
func (m *Machine) LoadError() error { return m.loadErr }

// PoolSize returns the number of questions in the loaded bank.
func (m *Machine) PoolSize() int {
	if m.bank == nil {
		return 0
	}
	return m.bank.Len()
}

// ApplySession reconciles the cached session with a server snapshot.
func (m *Machine) ApplySession(s *model.ExamSession) {
	cp := *s
	m.session = &cp
	m.wrong = append(model.WrongIDs{}, s.WrongQuestionIDs...)
}

// DropSession forgets the session after a failed session call.
func (m *Machine) DropSession() {
	m.session = nil
	m.wrong = nil
}

// Session returns the cached snapshot, or nil without a session.
func (m *Machine) Session() *model.ExamSession { return m.session }

// SessionID returns the cached identifier, or "".
func (m *Machine) SessionID() string {
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// WrongCount returns the size of the cached wrong-answer set.
func (m *Machine) WrongCount() int { return len(m.wrong) }

// WrongQuestions returns the pool questions in the wrong-answer set.
func (m *Machine) WrongQuestions() []model.Question {
	if m.bank == nil || len(m.wrong) == 0 {
		return nil
	}
	return m.bank.Filter(m.wrong)
}

// StartExam samples a standard exam from the pool.
func (m *Machine) StartExam() error {
	if m.state != StateReady && m.state != StateFinished {
		return &TransitionError{From: m.state, Action: "start an exam"}
	}
	if m.bank.Len() < QuestionCount {
		return &ValidationError{Reason: ReasonPoolTooSmall}
	}

	m.begin(ModeExam, Sample(m.rng, m.bank.Questions(), QuestionCount))
	return nil
}

// OpenReview shows the wrong-answer book.
func (m *Machine) OpenReview() error {
	if m.state != StateReady && m.state != StateFinished {
		return &TransitionError{From: m.state, Action: "open the review"}
	}
	if err := m.checkWrongSet(); err != nil {
		return err
	}
	m.state = StateReview
	return nil
}

// CloseReview returns from the wrong-answer book to Ready.
func (m *Machine) CloseReview() error {
	if m.state != StateReview {
		return &TransitionError{From: m.state, Action: "close the review"}
	}
	m.state = StateReady
	return nil
}

// StartPractice runs every wrong question still present in the pool.
func (m *Machine) StartPractice() error {
	if m.state != StateReview {
		return &TransitionError{From: m.state, Action: "start practice"}
	}
	if err := m.checkWrongSet(); err != nil {
		return err
	}

	wrong := m.WrongQuestions()
	if m.rng != nil {
		wrong = ShuffleWith(m.rng, wrong)
	} else {
		wrong = Shuffle(wrong)
	}
	m.begin(ModePractice, wrong)
	return nil
}

func (m *Machine) checkWrongSet() error {
	if len(m.wrong) == 0 {
		return &ValidationError{Reason: ReasonWrongSetEmpty}
	}
	if len(m.WrongQuestions()) == 0 {
		return &ValidationError{Reason: ReasonWrongSetNotInBank}
	}
	return nil
}

func (m *Machine) begin(mode Mode, picked []model.Question) {
	m.questions = make([]model.ShuffledQuestion, len(picked))
	for i, q := range picked {
		var opts []string
		if m.rng != nil {
			opts = ShuffleWith(m.rng, q.Options)
		} else {
			opts = Shuffle(q.Options)
		}
		m.questions[i] = model.ShuffledQuestion{Question: q, ShuffledOptions: opts}
	}
	m.mode = mode
	m.current = 0
	m.answers = make(map[string]string, len(picked))
	m.result = nil
	m.state = StateInProgress
}

// Questions returns the exam in flight.
func (m *Machine) Questions() []model.ShuffledQuestion { return m.questions }

// Current returns the index and content of the displayed question.
func (m *Machine) Current() (int, model.ShuffledQuestion) {
	return m.current, m.questions[m.current]
}

// Answer records (or overwrites) the chosen option for a question.
func (m *Machine) Answer(questionID, option string) error {
	if m.state != StateInProgress {
		return &TransitionError{From: m.state, Action: "answer"}
	}
	for _, q := range m.questions {
		if q.ID != questionID {
			continue
		}
		for _, opt := range q.ShuffledOptions {
			if opt == option {
				m.answers[questionID] = option
				return nil
			}
		}
		return ErrUnknownOption
	}
	return ErrUnknownQuestion
}

// AnswerOf returns the recorded answer for a question.
func (m *Machine) AnswerOf(questionID string) (string, bool) {
	a, ok := m.answers[questionID]
	return a, ok
}

// Goto jumps to any question of the exam.
func (m *Machine) Goto(index int) error {
	if m.state != StateInProgress {
		return &TransitionError{From: m.state, Action: "navigate"}
	}
	if index < 0 || index >= len(m.questions) {
		return ErrOutOfRange
	}
	m.current = index
	return nil
}

// Prev moves back one question, stopping at the first.
func (m *Machine) Prev() error {
	if m.state != StateInProgress {
		return &TransitionError{From: m.state, Action: "navigate"}
	}
	if m.current > 0 {
		m.current--
	}
	return nil
}

// Next advances one question; on the last question it moves to PreSubmit.
func (m *Machine) Next() error {
	if m.state != StateInProgress {
		return &TransitionError{From: m.state, Action: "navigate"}
	}
	if m.current < len(m.questions)-1 {
		m.current++
		return nil
	}
	m.state = StatePreSubmit
	return nil
}

// Unanswered returns the indices of questions without an answer.
func (m *Machine) Unanswered() []int {
	var out []int
	for i, q := range m.questions {
		if _, ok := m.answers[q.ID]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Back leaves the confirmation step without submitting.
func (m *Machine) Back() error {
	if m.state != StatePreSubmit {
		return &TransitionError{From: m.state, Action: "go back"}
	}
	m.state = StateInProgress
	return nil
}

// Submit scores the exam and moves to Finished. Persisting the result is the
// caller's job and must not affect the returned Result.
func (m *Machine) Submit() (Result, error) {
	if m.state != StatePreSubmit {
		return Result{}, &TransitionError{From: m.state, Action: "submit"}
	}

	res := Score(m.questions, m.answers)
	if m.mode == ModeExam {
		res.Judged = true
		res.Passed = res.Score >= PassingScore
	}
	m.result = &res
	m.state = StateFinished
	return res, nil
}

// Result returns the last submitted result, or nil.
func (m *Machine) Result() *Result { return m.result }

// Score counts the questions whose recorded answer equals the correct answer.
// Unanswered questions are wrong. The result is left unjudged; Submit judges
// exam runs only, whatever their length.
func Score(questions []model.ShuffledQuestion, answers map[string]string) Result {
	res := Result{Total: len(questions), WrongIDs: []string{}}
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && a == q.CorrectAnswer {
			res.Score++
			continue
		}
		res.WrongIDs = append(res.WrongIDs, q.ID)
	}
	return res
}
