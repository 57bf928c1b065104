package exam

import (
	"errors"
	"fmt"
)

// ValidationError is a user-recoverable refusal of a transition. The machine
// state is unchanged when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Reasons carried by ValidationError. They double as i18n message ids.
const (
	ReasonPoolTooSmall      = "PoolTooSmall"
	ReasonWrongSetEmpty     = "WrongSetEmpty"
	ReasonWrongSetNotInBank = "WrongSetNotInBank"
)

// TransitionError reports an action that is not allowed in the current state.
type TransitionError struct {
	From   State
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.From)
}

var (
	ErrUnknownQuestion = errors.New("question is not part of this exam")
	ErrUnknownOption   = errors.New("option does not belong to the question")
	ErrOutOfRange      = errors.New("question index out of range")
)
