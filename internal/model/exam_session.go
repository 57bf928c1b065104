package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ExamResult is the verdict of a full-length exam.
type ExamResult string

const (
	ExamResultPass ExamResult = "pass"
	ExamResultFail ExamResult = "fail"
)

// Valid reports whether r is one of the recognised verdicts.
func (r ExamResult) Valid() bool {
	return r == ExamResultPass || r == ExamResultFail
}

// WrongIDs is the set of question ids a user answered incorrectly.
//
// On the wire it is a JSON string holding a JSON array ("[\"12\",\"40\"]"), which is
// the format stored in the database and read by the browser client. Decoding also
// accepts a bare array.
type WrongIDs []string

// Encode returns the JSON array text stored in the database.
func (w WrongIDs) Encode() string {
	if len(w) == 0 {
		return "[]"
	}
	b, _ := json.Marshal([]string(w))
	return string(b)
}

// ParseWrongIDs decodes the JSON array text stored in the database.
// An empty or malformed value yields an empty set.
func ParseWrongIDs(raw string) WrongIDs {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || ids == nil {
		return WrongIDs{}
	}
	return WrongIDs(ids)
}

// MarshalJSON encodes the set as a JSON string.
func (w WrongIDs) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Encode())
}

// UnmarshalJSON accepts either the string form or a bare JSON array.
func (w *WrongIDs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*w = WrongIDs{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decode wrong ids: %w", err)
		}
		*w = WrongIDs(ids)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode wrong ids: %w", err)
	}
	*w = ParseWrongIDs(raw)
	return nil
}

// Set returns the ids as a lookup set.
func (w WrongIDs) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(w))
	for _, id := range w {
		set[id] = struct{}{}
	}
	return set
}

// ExamSession is a user's persisted progress record.
type ExamSession struct {
	ID               string   `json:"id"`
	WrongQuestionIDs WrongIDs `json:"wrong_question_ids"`
	ExamsTaken       int      `json:"exams_taken"`
	ExamsPassed      int      `json:"exams_passed"`
	ExamsFailed      int      `json:"exams_failed"`
}

// SessionAction discriminates the operations of the session endpoint.
type SessionAction string

const (
	SessionActionLoad  SessionAction = "load"
	SessionActionSave  SessionAction = "save"
	SessionActionClear SessionAction = "clear"
)

// SessionRequest is the JSON body of POST /api/session.
type SessionRequest struct {
	Action         SessionAction `json:"action" binding:"required,oneof=load save clear"`
	SessionID      string        `json:"sessionId" binding:"omitempty,alphanum,len=5"`
	TurnstileToken string        `json:"turnstileToken" binding:"omitempty,max=4096"`
	Payload        *SavePayload  `json:"payload"`
}

// SavePayload carries the outcome of a finished exam.
type SavePayload struct {
	WrongAnswerIDs []string   `json:"wrongAnswerIds" binding:"omitempty,max=10000,dive,required,max=128"`
	Result         ExamResult `json:"result" binding:"omitempty,oneof=pass fail"`
}

// SessionUpdate is broadcast on a session's live feed after every mutation.
type SessionUpdate struct {
	Action  SessionAction `json:"action"`
	Result  ExamResult    `json:"result,omitempty"`
	Session *ExamSession  `json:"session"`
	At      time.Time     `json:"at"`
}

// SessionActivity is queued for the activity worker whenever a session is used.
type SessionActivity struct {
	SessionID string    `json:"session_id"`
	SeenAt    time.Time `json:"seen_at"`
}
