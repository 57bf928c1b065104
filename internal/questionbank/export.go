package questionbank

import (
	"strings"

	"github.com/stemsi/examdrill/internal/model"
)

// Export renders questions in the bank format for download. The answer line is
// written as an empty "[P]" placeholder, so an exported file does not carry the
// correct answer and will not round-trip through Parse unchanged.
func Export(questions []model.Question) string {
	records := make([]string, 0, len(questions))
	for _, q := range questions {
		var b strings.Builder
		b.WriteString(recordSeparator + q.ID + "\n")
		b.WriteString(questionTag + q.Question + "\n")
		for i, opt := range q.Options {
			b.WriteString("[" + string(rune('A'+i)) + "]" + opt + "\n")
		}
		b.WriteString(placeholderTag + "\n")
		records = append(records, b.String())
	}
	return strings.Join(records, "\n")
}
