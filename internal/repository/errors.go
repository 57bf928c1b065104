package repository

import "errors"

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("session id already exists")
)

// initialCounters seeds the counters of a session created by its first save.
func initialCounters(result string) (taken, passed, failed int) {
	switch result {
	case "pass":
		return 1, 1, 0
	case "fail":
		return 1, 0, 1
	default:
		return 0, 0, 0
	}
}
