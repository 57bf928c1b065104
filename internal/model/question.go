package model

// Question is a single multiple-choice item from the question bank.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// OptionCount is the number of options every valid question carries.
const OptionCount = 4

// ShuffledQuestion is a Question with its options permuted for one exam instance.
type ShuffledQuestion struct {
	Question
	ShuffledOptions []string `json:"shuffledOptions"`
}
