package questionbank

import "github.com/stemsi/examdrill/internal/model"

// Bank is an immutable, id-indexed question pool.
type Bank struct {
	questions []model.Question
	byID      map[string]int
}

// NewBank indexes questions by id. When ids repeat, the first record wins the
// index but every record stays in the pool.
func NewBank(questions []model.Question) *Bank {
	b := &Bank{
		questions: questions,
		byID:      make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		if _, dup := b.byID[q.ID]; !dup {
			b.byID[q.ID] = i
		}
	}
	return b
}

// Questions returns the pool in bank order.
func (b *Bank) Questions() []model.Question {
	return b.questions
}

// Len returns the pool size.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Get looks a question up by id.
func (b *Bank) Get(id string) (model.Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// Filter returns the pool questions whose ids are in ids, in bank order.
func (b *Bank) Filter(ids []string) []model.Question {
	set := model.WrongIDs(ids).Set()
	var out []model.Question
	for _, q := range b.questions {
		if _, ok := set[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out
}
