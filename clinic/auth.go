package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
)

// AuthClient talks to the backend's auth endpoints. It deliberately uses a
// bare HTTP client rather than the interceptor chain: a 401 during login or
// refresh is a terminal answer, not something to recover from, and routing
// the refresh call through the chain would recurse.
type AuthClient struct {
	client  *http.Client
	baseURL string
	tokens  *tokenstore.Manager
	sess    *session.Store
	logger  zerolog.Logger
}

type AuthOption func(*AuthClient)

func WithAuthLogger(logger zerolog.Logger) AuthOption {
	return func(a *AuthClient) {
		a.logger = logger
	}
}

func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *AuthClient) {
		a.client = client
	}
}

func NewAuthClient(baseURL string, tokens *tokenstore.Manager, sess *session.Store, options ...AuthOption) *AuthClient {
	a := &AuthClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		sess:    sess,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// Login exchanges credentials for a session. On success the tokens and user
// blob are persisted and the session store is populated in one step.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*User, error) {
	a.sess.BeginLogin()
	defer a.sess.EndLogin()
	a.sess.SetLoading(true)
	defer a.sess.SetLoading(false)

	tr, err := a.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, "")
	if err != nil {
		a.sess.SetErr(err.Error())
		return nil, err
	}
	if tr.User == nil {
		return nil, errors.New("[AuthClient.Login] response carried no user")
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if err := a.tokens.SetTokens(tr.AccessToken, tr.RefreshToken, expiresIn); err != nil {
		return nil, err
	}
	userJSON, err := json.Marshal(tr.User)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthClient.Login] serializing user")
	}
	if err := a.tokens.SetUser(userJSON); err != nil {
		return nil, err
	}

	a.sess.SetErr("")
	a.sess.Login(tr.User, a.tokens.Tokens())
	a.logger.Info().Str("user_id", tr.User.ID).Msg("logged in")
	return tr.User, nil
}

// Refresh exchanges a refresh token for a new credential pair. It satisfies
// the transport layer's Refresher contract; storage is the caller's job.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*tokenstore.Tokens, error) {
	tr, err := a.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, "")
	if err != nil {
		return nil, err
	}
	return &tokenstore.Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

// Logout revokes the session server-side (best effort) and clears all local
// state. The local clear happens even when the revocation call fails.
func (a *AuthClient) Logout(ctx context.Context) error {
	access := a.tokens.AccessToken()
	if access != "" {
		if _, err := a.post(ctx, "/auth/logout", struct{}{}, access); err != nil {
			a.logger.Warn().Err(err).Msg("server-side logout failed")
		}
	}
	a.sess.Logout()
	return nil
}

func (a *AuthClient) post(ctx context.Context, route string, payload any, bearer string) (*tokenResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "[AuthClient.post] %s encode", route)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+route, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrapf(err, "[AuthClient.post] %s request", route)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apierror.ClassifyErr(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, apierror.FromResponse(resp, raw)
	}

	var envelope mutation.Envelope
	body := raw
	if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Data != nil {
		body = envelope.Data
	}
	var tr tokenResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, errors.Wrapf(err, "[AuthClient.post] %s decode", route)
		}
	}
	return &tr, nil
}
