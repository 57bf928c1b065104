package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/response"
)

// SessionError is returned for any failed session API call.
type SessionError struct {
	Op     string
	Status int
	Code   response.ErrCode
	Msg    string
	Err    error
}

func (e *SessionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("session %s: %v", e.Op, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("session %s: %s (%d %s)", e.Op, e.Msg, e.Status, e.Code)
	default:
		return fmt.Sprintf("session %s: status %d", e.Op, e.Status)
	}
}

func (e *SessionError) Unwrap() error { return e.Err }

// Forbidden reports whether bot verification rejected the call.
func (e *SessionError) Forbidden() bool { return e.Status == http.StatusForbidden }

// NotFound reports whether the session id does not exist.
func (e *SessionError) NotFound() bool { return e.Status == http.StatusNotFound }

// IsForbidden reports whether err is a verification failure.
func IsForbidden(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Forbidden()
}

// Client talks to the session API.
type Client struct {
	baseURL string
	http    *http.Client
	lang    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLanguage sets Accept-Language on every request.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// New creates a Client rooted at baseURL (for example "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches a session. An empty token resumes without verification.
func (c *Client) Load(ctx context.Context, id, token string) (*model.ExamSession, error) {
	return c.session(ctx, model.SessionRequest{
		Action:         model.SessionActionLoad,
		SessionID:      id,
		TurnstileToken: token,
	})
}

// Save records an exam outcome. An empty id creates a new session.
func (c *Client) Save(ctx context.Context, id string, wrong []string, result model.ExamResult) (*model.ExamSession, error) {
	if wrong == nil {
		wrong = []string{}
	}
	return c.session(ctx, model.SessionRequest{
		Action:    model.SessionActionSave,
		SessionID: id,
		Payload:   &model.SavePayload{WrongAnswerIDs: wrong, Result: result},
	})
}

// Clear empties the wrong-answer set of a session.
func (c *Client) Clear(ctx context.Context, id string) (*model.ExamSession, error) {
	return c.session(ctx, model.SessionRequest{
		Action:    model.SessionActionClear,
		SessionID: id,
	})
}

// Welcome returns the edge location serving this client.
func (c *Client) Welcome(ctx context.Context) (*model.WelcomeInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/welcome", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("welcome: status %d", resp.StatusCode)
	}
	var info model.WelcomeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("welcome: %w", err)
	}
	return &info, nil
}

// Export downloads the wrong-answer book and its suggested file name.
func (c *Client) Export(ctx context.Context, id string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/session/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return nil, "", &SessionError{Op: "export", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &SessionError{Op: "export", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeError("export", resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &SessionError{Op: "export", Err: err}
	}

	name := "wrong_answers_" + strings.ToUpper(id) + ".txt"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return body, name, nil
}

func (c *Client) session(ctx context.Context, body model.SessionRequest) (*model.ExamSession, error) {
	op := string(body.Action)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &SessionError{Op: op, Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/session", bytes.NewReader(raw))
	if err != nil {
		return nil, &SessionError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SessionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, decodeError(op, resp)
	}

	var snap model.ExamSession
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &SessionError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode snapshot: %w", err)}
	}
	return &snap, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	return req, nil
}

// decodeError reads the error envelope; a body that is not one still yields the status.
func decodeError(op string, resp *http.Response) error {
	se := &SessionError{Op: op, Status: resp.StatusCode}

	var env response.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err == nil && env.Error != nil {
		se.Code = env.Error.Code
		se.Msg = env.Error.Message
	}
	return se
}
