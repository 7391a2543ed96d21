package tokenstore

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Tokens is the in-memory view of the stored credentials. ExpiresIn is the
// remaining lifetime computed from the stored absolute expiry at read time.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Manager implements the token semantics over a Backend. Every operation is
// a safe no-op returning a zero value when no backend is available, so the
// manager can be used unconditionally in non-interactive contexts.
type Manager struct {
	backend Backend
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a Manager over the given backend. A nil backend yields
// a manager whose reads report "no session" and whose writes do nothing.
func NewManager(backend Backend, options ...ManagerOption) *Manager {
	m := &Manager{
		backend: backend,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// AccessToken returns the raw stored access token, or "" when absent.
func (m *Manager) AccessToken() string {
	if m.backend == nil {
		return ""
	}
	v, _ := m.backend.Get(KeyAccessToken)
	return v
}

// RefreshToken returns the raw stored refresh token, or "" when absent.
func (m *Manager) RefreshToken() string {
	if m.backend == nil {
		return ""
	}
	v, _ := m.backend.Get(KeyRefreshToken)
	return v
}

// Tokens returns the stored credential pair, or nil when no access token is
// present. The remaining lifetime is derived from the stored absolute expiry
// and can be negative for an already-expired token.
func (m *Manager) Tokens() *Tokens {
	access := m.AccessToken()
	if access == "" {
		return nil
	}
	t := &Tokens{
		AccessToken:  access,
		RefreshToken: m.RefreshToken(),
	}
	if expiry, ok := m.expiry(); ok {
		t.ExpiresIn = expiry.Sub(m.nowFunc())
	}
	return t
}

// SetTokens stores both tokens and the absolute expiry derived from
// expiresIn. Prior values are overwritten.
func (m *Manager) SetTokens(access, refresh string, expiresIn time.Duration) error {
	if m.backend == nil {
		return nil
	}
	if err := m.backend.Set(KeyAccessToken, access); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] access token")
	}
	if refresh != "" {
		if err := m.backend.Set(KeyRefreshToken, refresh); err != nil {
			return errors.Wrap(err, "[Manager.SetTokens] refresh token")
		}
	}
	expiry := m.nowFunc().Add(expiresIn).UnixMilli()
	if err := m.backend.Set(KeyTokenExpiry, strconv.FormatInt(expiry, 10)); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] expiry")
	}
	return nil
}

// SetAccessToken replaces the access token and its expiry, leaving the
// refresh token in place. Used after a refresh.
func (m *Manager) SetAccessToken(access string, expiresIn time.Duration) error {
	return m.SetTokens(access, "", expiresIn)
}

// UserJSON returns the stored user blob, or nil when absent.
func (m *Manager) UserJSON() []byte {
	if m.backend == nil {
		return nil
	}
	v, ok := m.backend.Get(KeyUser)
	if !ok || v == "" {
		return nil
	}
	return []byte(v)
}

// SetUser stores the serialized user object.
func (m *Manager) SetUser(userJSON []byte) error {
	if m.backend == nil {
		return nil
	}
	return errors.Wrap(m.backend.Set(KeyUser, string(userJSON)), "[Manager.SetUser]")
}

// IsExpired reports whether the stored access token has expired. Missing
// data fails safe: no recorded expiry means expired.
func (m *Manager) IsExpired() bool {
	expiry, ok := m.expiry()
	if !ok {
		return true
	}
	return !m.nowFunc().Before(expiry)
}

// IsValid reports whether an access token is present and not expired.
func (m *Manager) IsValid() bool {
	return m.AccessToken() != "" && !m.IsExpired()
}

// IsExpiringSoon reports whether the access token expires within threshold.
// When no absolute expiry was stored, the token's own exp claim is consulted
// instead; a token with neither is treated as expiring now.
func (m *Manager) IsExpiringSoon(threshold time.Duration) bool {
	expiry, ok := m.expiry()
	if !ok {
		expiry, ok = m.claimExpiry()
	}
	if !ok {
		return true
	}
	return expiry.Sub(m.nowFunc()) < threshold
}

// ClearTokens removes both tokens and the expiry. Idempotent.
func (m *Manager) ClearTokens() error {
	if m.backend == nil {
		return nil
	}
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry} {
		if err := m.backend.Delete(key); err != nil {
			return errors.Wrapf(err, "[Manager.ClearTokens] %s", key)
		}
	}
	return nil
}

// ClearUser removes the stored user blob. Idempotent.
func (m *Manager) ClearUser() error {
	if m.backend == nil {
		return nil
	}
	return errors.Wrap(m.backend.Delete(KeyUser), "[Manager.ClearUser]")
}

// ClearAll removes everything this package owns, including the legacy key.
func (m *Manager) ClearAll() error {
	if err := m.ClearTokens(); err != nil {
		return err
	}
	if err := m.ClearUser(); err != nil {
		return err
	}
	return m.PurgeLegacy()
}

// PurgeLegacy deletes the obsolete bare token key older releases wrote.
func (m *Manager) PurgeLegacy() error {
	if m.backend == nil {
		return nil
	}
	return errors.Wrap(m.backend.Delete(KeyLegacyToken), "[Manager.PurgeLegacy]")
}

func (m *Manager) expiry() (time.Time, bool) {
	if m.backend == nil {
		return time.Time{}, false
	}
	v, ok := m.backend.Get(KeyTokenExpiry)
	if !ok || v == "" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// claimExpiry parses the access token without verification and pulls out its
// exp claim. The client holds no verification keys; expiry is the only claim
// it acts on.
func (m *Manager) claimExpiry() (time.Time, bool) {
	access := m.AccessToken()
	if access == "" {
		return time.Time{}, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
