package mutation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/notify"
	"github.com/clinicore/go-clinic-client/querycache"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
)

// Envelope is the backend's wrapped response shape.
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Success bool            `json:"success"`
}

// Operation describes one logical mutation endpoint.
type Operation struct {
	// Route is the resource path, e.g. "/patients". For Update and Delete
	// the record id is appended as a path segment.
	Route string
	// AllowAnonymous skips the auth-readiness guard (login itself).
	AllowAnonymous bool
	// Fallback is the error message used when nothing better can be
	// extracted from the failure.
	Fallback string
}

// Result is the outcome of a mutation. Failed mutations are never silently
// retried at this layer; the caller decides whether to resubmit.
type Result[T any] struct {
	Value T
	Err   error
}

// Pipeline issues mutations against the backend. Notification and cache
// invalidation are explicit post-steps (NotifySuccess, Invalidate, Report)
// composed by the caller, not implicit hooks.
type Pipeline struct {
	client   *http.Client
	baseURL  string
	tokens   *tokenstore.Manager
	sess     *session.Store
	cache    *querycache.Cache
	notifier notify.Notifier
	logger   zerolog.Logger
}

type PipelineOption func(*Pipeline)

func WithNotifier(n notify.Notifier) PipelineOption {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

func WithLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func NewPipeline(client *http.Client, baseURL string, tokens *tokenstore.Manager, sess *session.Store, cache *querycache.Cache, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokens:   tokens,
		sess:     sess,
		cache:    cache,
		notifier: notify.Nop{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run issues a single mutation and decodes the wrapped response into T.
func Run[T any](ctx context.Context, p *Pipeline, op Operation, input Input) Result[T] {
	var zero Result[T]

	if !op.AllowAnonymous && !p.tokens.IsValid() {
		// Doomed request: surface the cause without any network I/O.
		p.sessionExpired()
		zero.Err = &apierror.APIError{
			Class:   apierror.ClassAuthUnrecoverable,
			Message: "your session has expired, please log in again",
		}
		return zero
	}

	body, err := p.do(ctx, op, input)
	if err != nil {
		zero.Err = err
		return zero
	}
	if len(body) == 0 {
		return zero
	}

	var envelope Envelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Data != nil {
		body = envelope.Data
	}
	if jsonErr := json.Unmarshal(body, &zero.Value); jsonErr != nil {
		zero.Err = errors.Wrap(jsonErr, "[mutation.Run] decoding response")
	}
	return zero
}

func (p *Pipeline) do(ctx context.Context, op Operation, input Input) ([]byte, error) {
	route := op.Route
	if id := input.id(); id != "" {
		route = strings.TrimRight(route, "/") + "/" + id
	}

	var reqBody io.Reader
	if payload := input.body(); payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "[Pipeline.do] encoding payload")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, input.method(), p.baseURL+route, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "[Pipeline.do] building request")
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	p.logger.Debug().Str("method", input.method()).Str("route", route).Msg("mutation")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apierror.ClassifyErr(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, apierror.FromResponse(resp, raw)
	}
	return raw, nil
}

// NotifySuccess shows the fixed success notification for a completed
// mutation.
func (p *Pipeline) NotifySuccess(msg string) {
	if msg != "" {
		p.notifier.Success(msg)
	}
}

// Invalidate drops the named cache-key groups so subsequent reads reflect
// the mutation.
func (p *Pipeline) Invalidate(roots ...string) {
	for _, root := range roots {
		p.cache.Invalidate(root)
	}
}

// Report surfaces a mutation failure to the user. A 401 shows the
// session-expired notice (deduplicated against the transport's own);
// anything else shows the extracted message, falling back to fallback.
// Everything is suppressed while a login flow is active.
func (p *Pipeline) Report(err error, fallback string) {
	if err == nil || p.sess.LoginInProgress() {
		return
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Class {
		case apierror.ClassAuthExpired, apierror.ClassAuthUnrecoverable:
			p.notifier.SessionExpired()
			return
		}
		if msg := apierror.ExtractMessage(apiErr.Body, ""); msg != "" {
			p.notifier.Error(msg)
			return
		}
		if apiErr.Message != "" {
			p.notifier.Error(apierror.ReformatTimestamps(apiErr.Message))
			return
		}
	}
	if fallback == "" {
		fallback = "the operation could not be completed"
	}
	p.notifier.Error(fallback)
}

// Cache exposes the pipeline's query cache for read-side composition.
func (p *Pipeline) Cache() *querycache.Cache {
	return p.cache
}

// Client exposes the underlying HTTP client for read queries that share the
// transport chain.
func (p *Pipeline) Client() *http.Client {
	return p.client
}

// BaseURL returns the backend base URL without a trailing slash.
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

func (p *Pipeline) sessionExpired() {
	p.sess.Logout()
	if !p.sess.LoginInProgress() {
		p.notifier.SessionExpired()
	}
}
