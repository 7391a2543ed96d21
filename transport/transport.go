// Package transport implements the authenticated HTTP layer: bearer
// attachment, request IDs, and transparent recovery from access-token
// expiry. Callers whose requests merely raced a refresh never see the 401.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/notify"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
)

// DefaultTimeout bounds any single request, including its one retry.
const DefaultTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new credential pair. The
// implementation must not route its own call back through a Chain.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokenstore.Tokens, error)
}

// Chain is an http.RoundTripper that attaches auth headers and coordinates
// token refresh. At most one refresh call is in flight at a time; requests
// that race it are parked and replayed once it settles.
type Chain struct {
	base      http.RoundTripper
	tokens    *tokenstore.Manager
	sess      *session.Store
	refresher Refresher
	notifier  notify.Notifier
	logger    zerolog.Logger
	coord     refreshCoordinator
}

type ChainOption func(*Chain)

func WithBase(base http.RoundTripper) ChainOption {
	return func(c *Chain) {
		c.base = base
	}
}

func WithLogger(logger zerolog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

func WithNotifier(n notify.Notifier) ChainOption {
	return func(c *Chain) {
		c.notifier = n
	}
}

func NewChain(tokens *tokenstore.Manager, sess *session.Store, refresher Refresher, options ...ChainOption) *Chain {
	c := &Chain{
		base:      http.DefaultTransport,
		tokens:    tokens,
		sess:      sess,
		refresher: refresher,
		notifier:  notify.Nop{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewHTTPClient wraps a Chain in an http.Client with the fixed request
// timeout. A hung call aborts and surfaces as a network-class error.
func NewHTTPClient(chain *Chain, timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: chain, Timeout: timeout}
}

type ctxKey int

const retriedKey ctxKey = iota

func isRetried(req *http.Request) bool {
	v, _ := req.Context().Value(retriedKey).(bool)
	return v
}

// RoundTrip implements http.RoundTripper.
func (c *Chain) RoundTrip(req *http.Request) (*http.Response, error) {
	out := c.prepare(req)
	attachedToken := out.Header.Get("Authorization") != ""

	resp, err := c.base.RoundTrip(out)
	if err != nil {
		c.notifyClass(apierror.ClassNetwork)
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		if resp.StatusCode >= 400 {
			c.notifyClass(apierror.ClassifyStatus(resp.StatusCode))
		}
		return resp, nil
	}

	// A 401 with no token attached is a credentials problem, not an
	// expiry; and a request already retried once must not loop.
	if !attachedToken || isRetried(out) {
		return resp, nil
	}

	drain(resp)
	if err := c.recover(out.Context()); err != nil {
		return nil, err
	}
	return c.retry(out)
}

// prepare clones the request, tags it with a request ID, and attaches the
// bearer token when one is stored.
func (c *Chain) prepare(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.New().String())
	}
	if out.Header.Get("Authorization") == "" {
		if token := c.tokens.AccessToken(); token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return out
}

// recover runs (or joins) the shared refresh. On failure the session is torn
// down and every parked request fails with the same error.
func (c *Chain) recover(ctx context.Context) error {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		c.failSession(apierror.ErrNoRefreshToken)
		return apierror.ErrNoRefreshToken
	}

	err := c.coord.do(func() error {
		c.logger.Debug().Msg("access token rejected, refreshing")
		fresh, err := c.refresher.Refresh(ctx, refreshToken)
		if err != nil {
			return errors.Wrap(err, apierror.ErrRefreshFailed.Error())
		}
		refresh := fresh.RefreshToken
		if refresh == "" {
			refresh = refreshToken
		}
		return c.tokens.SetTokens(fresh.AccessToken, refresh, fresh.ExpiresIn)
	})
	if err != nil {
		c.failSession(err)
		return err
	}
	return nil
}

// retry re-issues the original request exactly once with the new token.
func (c *Chain) retry(req *http.Request) (*http.Response, error) {
	out := req.Clone(context.WithValue(req.Context(), retriedKey, true))
	out.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Chain.retry] GetBody")
		}
		out.Body = body
	}
	return c.RoundTrip(out)
}

// failSession clears tokens and ends the session. The expiry notification
// is suppressed while a credential entry flow is active so the login surface
// is not spammed, and deduplicated against the mutation pipeline's notice by
// the notifier itself.
func (c *Chain) failSession(cause error) {
	c.logger.Warn().Err(cause).Msg("session unrecoverable")
	c.sess.Logout()
	if !c.sess.LoginInProgress() {
		c.notifier.SessionExpired()
	}
}

// notifyClass surfaces a best-effort notification for a failed call. This
// is UX, not a contract: callers classify errors from the response itself.
func (c *Chain) notifyClass(class apierror.Class) {
	if c.sess.LoginInProgress() {
		return
	}
	if msg := classMessage(class); msg != "" {
		c.notifier.Error(msg)
	}
}

func classMessage(class apierror.Class) string {
	switch class {
	case apierror.ClassValidation:
		return "the request could not be processed, please check your input"
	case apierror.ClassPermission:
		return "you do not have permission to perform this action"
	case apierror.ClassNotFound:
		return "the requested record was not found"
	case apierror.ClassRateLimit:
		return "too many requests, please wait a moment and try again"
	case apierror.ClassServer:
		return "the server encountered an error, please try again later"
	case apierror.ClassNetwork:
		return "could not reach the server, please check your connection"
	}
	return ""
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		resp.Body.Close()
	}
}
