// Package turnstile verifies Cloudflare Turnstile tokens.
package turnstile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrNotConfigured is returned when no secret key is set. Verification fails closed.
var ErrNotConfigured = errors.New("turnstile secret key is not configured")

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Client calls the siteverify endpoint.
type Client struct {
	secret    string
	verifyURL string
	timeout   time.Duration
	http      *http.Client
	log       zerolog.Logger
}

// NewClient creates a new Client. Every verification is bounded by timeout.
func NewClient(secret, verifyURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Client{
		secret:    secret,
		verifyURL: verifyURL,
		timeout:   timeout,
		http:      &http.Client{},
		log:       log.With().Str("component", "turnstile").Logger(),
	}
}

// Verify reports whether token is a valid challenge solution. A transport
// error, a timeout or a non-2xx answer is returned as an error and must be
// treated as a failed verification.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if c.secret == "" {
		return false, ErrNotConfigured
	}
	if token == "" {
		return false, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, _ := json.Marshal(verifyRequest{Secret: c.secret, Response: token, RemoteIP: remoteIP})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("call siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}
	if !out.Success {
		c.log.Debug().Strs("error_codes", out.ErrorCodes).Msg("Token rejected")
	}
	return out.Success, nil
}
