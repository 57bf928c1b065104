package questionbank

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examdrill/internal/model"
)

// LoadError reports that the bank could not be fetched at all.
type LoadError struct {
	Source string
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cannot load question bank %s: HTTP status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("cannot load question bank %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches and parses a bank from an HTTP URL or a local file path.
type Loader struct {
	source string
	client *http.Client
	log    zerolog.Logger
}

// NewLoader creates a Loader. A nil client gets a 30 second timeout.
func NewLoader(source string, client *http.Client, log zerolog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		source: source,
		client: client,
		log:    log.With().Str("component", "questionbank").Logger(),
	}
}

// Load fetches the bank and parses it. No partial result is returned on error.
func (l *Loader) Load(ctx context.Context) ([]model.Question, error) {
	text, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	questions := Parse(text, l.log)
	l.log.Info().Str("source", l.source).Int("questions", len(questions)).Msg("Question bank loaded")
	return questions, nil
}

func (l *Loader) fetch(ctx context.Context) (string, error) {
	if !strings.HasPrefix(l.source, "http://") && !strings.HasPrefix(l.source, "https://") {
		raw, err := os.ReadFile(l.source)
		if err != nil {
			return "", &LoadError{Source: l.source, Err: err}
		}
		return string(raw), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return "", &LoadError{Source: l.source, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &LoadError{Source: l.source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &LoadError{Source: l.source, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &LoadError{Source: l.source, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(raw), nil
}
