// Package questionbank reads the tagged text format of the question bank.
//
// A bank is a sequence of records separated by "[I]". Inside a record the first
// non-blank line is the question id, a "[Q]" line holds the question text and the
// "[A]".."[D]" lines hold the options. The "[A]" option is the correct answer.
package questionbank

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/examdrill/internal/model"
)

const (
	recordSeparator = "[I]"
	questionTag     = "[Q]"
	answerTag       = "[A]"
	placeholderTag  = "[P]"
	tagWidth        = 3
)

var optionTags = [model.OptionCount]string{"[A]", "[B]", "[C]", "[D]"}

// Parse splits raw bank text into questions. Malformed records are logged and
// skipped without affecting their neighbours.
func Parse(text string, log zerolog.Logger) []model.Question {
	r := Check(text)
	for _, record := range r.Dropped {
		log.Warn().Str("record", record).Msg("Skipping malformed question record")
	}
	return r.Questions
}

// Report is the outcome of checking a bank.
type Report struct {
	Questions []model.Question
	// Dropped holds the trimmed text of every malformed record.
	Dropped []string
}

// Check parses text and keeps the malformed records for reporting.
func Check(text string) Report {
	blocks := strings.Split(text, recordSeparator)
	r := Report{Questions: make([]model.Question, 0, len(blocks))}

	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}

		q, ok := parseRecord(block)
		if !ok {
			r.Dropped = append(r.Dropped, strings.TrimSpace(block))
			continue
		}
		r.Questions = append(r.Questions, q)
	}

	return r
}

func parseRecord(block string) (model.Question, bool) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(block), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return model.Question{}, false
	}

	q := model.Question{ID: strings.TrimSpace(lines[0])}

	for _, l := range lines {
		if q.Question == "" && strings.HasPrefix(l, questionTag) {
			q.Question = tagValue(l)
		}
		if isOption(l) {
			q.Options = append(q.Options, tagValue(l))
		}
		if q.CorrectAnswer == "" && strings.HasPrefix(l, answerTag) {
			q.CorrectAnswer = tagValue(l)
		}
	}

	if q.ID == "" || q.Question == "" || len(q.Options) != model.OptionCount || q.CorrectAnswer == "" {
		return model.Question{}, false
	}
	return q, true
}

func isOption(line string) bool {
	for _, tag := range optionTags {
		if strings.HasPrefix(line, tag) {
			return true
		}
	}
	return false
}

func tagValue(line string) string {
	return strings.TrimSpace(line[tagWidth:])
}
