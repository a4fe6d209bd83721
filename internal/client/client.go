// Package client talks to the study server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/shared"
)

// ErrMalformedResponse is returned when the server answers 2xx with a body
// that lacks the expected fields.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError reports a non-2xx answer.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client is a study server client.
type Client struct {
	base   *url.URL
	http   *http.Client
	retry  shared.RetryPolicy
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetry sets the retry policy for transport errors and 5xx answers.
func WithRetry(p shared.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultTimeout},
		retry:  shared.DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve turns a server-relative path such as an img_url into an absolute URL.
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// do sends a request built by newReq, retrying on transient failures, and
// hands a 2xx response to handle.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error), handle func(*http.Response) error) error {
	return shared.Retry(ctx, c.retry, op, retryable, func() error {
		req, err := newReq()
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req.WithContext(ctx))
		if err != nil {
			c.logger.Debug("Request failed", "op", op, "url", req.URL.String(), "error", err)
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return handle(resp)
	})
}

type trialsResponse struct {
	WorkerID     string          `json:"workerId"`
	AssignmentID string          `json:"assignmentId"`
	Condition    string          `json:"condition"`
	N            int             `json:"n"`
	Trials       *[]domain.Trial `json:"trials"`
}

// FetchTrials requests a trial set for p.
func (c *Client) FetchTrials(ctx context.Context, p domain.Participant) ([]domain.Trial, error) {
	q := url.Values{}
	q.Set("workerId", p.WorkerID)
	q.Set("assignmentId", p.AssignmentID)
	q.Set("condition", string(p.Condition))
	if p.N > 0 {
		q.Set("n", strconv.Itoa(p.N))
	}
	target := c.Resolve("trials") + "?" + q.Encode()

	var out []domain.Trial
	err := c.do(ctx, "fetch trials",
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, target, nil)
		},
		func(resp *http.Response) error {
			var body trialsResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			if body.Trials == nil {
				return fmt.Errorf("%w: missing trials", ErrMalformedResponse)
			}
			out = *body.Trials
			return nil
		})
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i].ImgURL = c.Resolve(out[i].ImgURL)
	}
	return out, nil
}

type submitResponse struct {
	OK         bool   `json:"ok"`
	SurveyCode string `json:"survey_code"`
}

// Submit posts a finished session and returns the issued survey code.
// The session id travels as Idempotency-Key so a retried post is stored once.
func (c *Client) Submit(ctx context.Context, sub *domain.Submission) (string, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	target := c.Resolve("submit")

	var code string
	err = c.do(ctx, "submit",
		func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			if sub.SessionID != "" {
				req.Header.Set("Idempotency-Key", sub.SessionID)
			}
			return req, nil
		},
		func(resp *http.Response) error {
			var body submitResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			if body.SurveyCode == "" {
				return fmt.Errorf("%w: missing survey_code", ErrMalformedResponse)
			}
			code = body.SurveyCode
			return nil
		})
	if err != nil {
		return "", err
	}
	return code, nil
}

// ProbeImage checks that an image URL answers 2xx with an image body. The
// result drives the image loaded/failed events in non-browser hosts.
func (c *Client) ProbeImage(ctx context.Context, imgURL string) error {
	target := c.Resolve(imgURL)
	return c.do(ctx, "probe image",
		func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, target, nil)
		},
		func(resp *http.Response) error {
			ct := resp.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "image/") {
				return fmt.Errorf("%w: %s is %s", ErrMalformedResponse, target, ct)
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			return nil
		})
}
