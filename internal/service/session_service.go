package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/cache"
	"github.com/stemsi/examdrill/internal/metrics"
	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/repository"
)

var (
	ErrSessionIDRequired  = errors.New("session id is required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrVerificationFailed = errors.New("human verification failed")
	ErrInvalidResult      = errors.New("result must be pass or fail")
	ErrSessionIDExhausted = errors.New("could not allocate a free session id")
)

const (
	sessionIDLength   = 5
	sessionIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// maxIDAttempts bounds the conditional-insert retry loop of a create.
	maxIDAttempts = 8
)

// Verifier checks a bot-verification token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token, remoteIP string) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	return f(ctx, token, remoteIP)
}

// SessionStore persists exam sessions.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*model.ExamSession, error)
	Create(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error)
	ReplaceWrongIDs(ctx context.Context, id string, wrong model.WrongIDs) (*model.ExamSession, error)
	RecordResult(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error)
	ClearWrongIDs(ctx context.Context, id string) (*model.ExamSession, error)
}

// SessionCache is the best-effort layer in front of the store. Mutations
// write through with Set; reads fill a miss with SetNX.
type SessionCache interface {
	Get(ctx context.Context, id string) (*model.ExamSession, bool)
	Set(ctx context.Context, s *model.ExamSession)
	SetNX(ctx context.Context, s *model.ExamSession)
	PublishUpdate(ctx context.Context, u model.SessionUpdate)
	QueueActivity(ctx context.Context, id string, at time.Time)
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithIDGenerator replaces the random session id generator.
func WithIDGenerator(fn func() string) SessionOption {
	return func(s *SessionService) { s.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = fn }
}

// SessionService implements load, save and clear of exam sessions.
type SessionService struct {
	store    SessionStore
	cache    SessionCache
	verifier Verifier
	newID    func() string
	now      func() time.Time
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService. A nil cache disables caching.
func NewSessionService(store SessionStore, sessionCache SessionCache, verifier Verifier, log zerolog.Logger, opts ...SessionOption) *SessionService {
	s := &SessionService{
		store:    store,
		cache:    sessionCache,
		verifier: verifier,
		newID:    GenerateSessionID,
		now:      time.Now,
		log:      log.With().Str("component", "session_service").Logger(),
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSessionID returns a random 5-character uppercase base-36 id.
func GenerateSessionID() string {
	b := make([]byte, sessionIDLength)
	for i := range b {
		b[i] = sessionIDAlphabet[rand.IntN(len(sessionIDAlphabet))]
	}
	return string(b)
}

// NormalizeSessionID trims and uppercases a user-entered id.
func NormalizeSessionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Load returns the session snapshot. A non-empty token is verified first;
// an empty token skips verification so stored ids can resume silently.
func (s *SessionService) Load(ctx context.Context, id, token, remoteIP string) (*model.ExamSession, error) {
	id = NormalizeSessionID(id)
	if id == "" {
		return nil, ErrSessionIDRequired
	}

	if token != "" {
		if err := s.verify(ctx, token, remoteIP); err != nil {
			metrics.SessionOperations.WithLabelValues("load", "forbidden").Inc()
			return nil, err
		}
	}

	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		metrics.SessionOperations.WithLabelValues("load", outcome(err)).Inc()
		return nil, err
	}
	metrics.SessionOperations.WithLabelValues("load", "ok").Inc()
	return snap, nil
}

// Snapshot looks a session up without verification, cache first.
func (s *SessionService) Snapshot(ctx context.Context, id string) (*model.ExamSession, error) {
	id = NormalizeSessionID(id)
	if id == "" {
		return nil, ErrSessionIDRequired
	}

	if snap, ok := s.cache.Get(ctx, id); ok {
		s.cache.QueueActivity(ctx, id, s.now())
		return snap, nil
	}

	snap, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("session_id", id).Msg("failed to load session")
		return nil, err
	}

	s.cache.SetNX(ctx, snap)
	s.cache.QueueActivity(ctx, id, s.now())
	return snap, nil
}

// Save stores the outcome of an exam. Without an id a new session is
// allocated and created is true.
func (s *SessionService) Save(ctx context.Context, id string, payload model.SavePayload) (snap *model.ExamSession, created bool, err error) {
	if payload.Result != "" && !payload.Result.Valid() {
		return nil, false, ErrInvalidResult
	}
	wrong := dedupe(payload.WrongAnswerIDs)

	id = NormalizeSessionID(id)
	if id == "" {
		snap, err = s.create(ctx, wrong, payload.Result)
		if err != nil {
			metrics.SessionOperations.WithLabelValues("create", outcome(err)).Inc()
			return nil, false, err
		}
		metrics.SessionOperations.WithLabelValues("create", "ok").Inc()
		s.log.Info().Str("session_id", snap.ID).Msg("session created")
		s.afterMutation(ctx, model.SessionActionSave, payload.Result, snap)
		return snap, true, nil
	}

	if payload.Result != "" {
		snap, err = s.store.RecordResult(ctx, id, wrong, payload.Result)
	} else {
		snap, err = s.store.ReplaceWrongIDs(ctx, id, wrong)
	}
	if errors.Is(err, repository.ErrNotFound) {
		err = ErrSessionNotFound
	}
	if err != nil {
		metrics.SessionOperations.WithLabelValues("save", outcome(err)).Inc()
		if !errors.Is(err, ErrSessionNotFound) {
			s.log.Error().Err(err).Str("session_id", id).Msg("failed to save session")
		}
		return nil, false, err
	}

	metrics.SessionOperations.WithLabelValues("save", "ok").Inc()
	s.afterMutation(ctx, model.SessionActionSave, payload.Result, snap)
	return snap, false, nil
}

// Clear empties the wrong-answer set. Counters are untouched.
func (s *SessionService) Clear(ctx context.Context, id string) (*model.ExamSession, error) {
	id = NormalizeSessionID(id)
	if id == "" {
		return nil, ErrSessionIDRequired
	}

	snap, err := s.store.ClearWrongIDs(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		err = ErrSessionNotFound
	}
	if err != nil {
		metrics.SessionOperations.WithLabelValues("clear", outcome(err)).Inc()
		if !errors.Is(err, ErrSessionNotFound) {
			s.log.Error().Err(err).Str("session_id", id).Msg("failed to clear session")
		}
		return nil, err
	}

	metrics.SessionOperations.WithLabelValues("clear", "ok").Inc()
	s.afterMutation(ctx, model.SessionActionClear, "", snap)
	return snap, nil
}

// create retries a conditional insert with fresh ids until one is free.
func (s *SessionService) create(ctx context.Context, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := s.newID()
		snap, err := s.store.Create(ctx, id, wrong, result)
		if errors.Is(err, repository.ErrDuplicateID) {
			metrics.SessionIDCollisions.Inc()
			s.log.Debug().Str("session_id", id).Int("attempt", attempt).Msg("session id taken, retrying")
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Msg("failed to create session")
			return nil, err
		}
		return snap, nil
	}
	s.log.Error().Int("attempts", maxIDAttempts).Msg("session id space exhausted")
	return nil, ErrSessionIDExhausted
}

func (s *SessionService) verify(ctx context.Context, token, remoteIP string) error {
	ok, err := s.verifier.Verify(ctx, token, remoteIP)
	switch {
	case err != nil:
		metrics.Verifications.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Msg("bot verification errored")
		return ErrVerificationFailed
	case !ok:
		metrics.Verifications.WithLabelValues("rejected").Inc()
		return ErrVerificationFailed
	default:
		metrics.Verifications.WithLabelValues("passed").Inc()
		return nil
	}
}

func (s *SessionService) afterMutation(ctx context.Context, action model.SessionAction, result model.ExamResult, snap *model.ExamSession) {
	s.cache.Set(ctx, snap)
	s.cache.PublishUpdate(ctx, model.SessionUpdate{
		Action:  action,
		Result:  result,
		Session: snap,
		At:      s.now(),
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrVerificationFailed):
		return "forbidden"
	case errors.Is(err, ErrSessionIDRequired), errors.Is(err, ErrInvalidResult):
		return "bad_request"
	default:
		return "error"
	}
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []string) model.WrongIDs {
	out := make(model.WrongIDs, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
