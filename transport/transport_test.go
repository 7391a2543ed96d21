package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
	"github.com/clinicore/go-clinic-client/tokenstore/memstore"
	"github.com/clinicore/go-clinic-client/transport"
)

type fakeRefresher struct {
	calls  atomic.Int64
	delay  time.Duration
	tokens *tokenstore.Tokens
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*tokenstore.Tokens, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

type recorder struct {
	mu        sync.Mutex
	errs      []string
	expired   int
	successes []string
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recorder) SessionExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *recorder) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

type fixture struct {
	tokens   *tokenstore.Manager
	sess     *session.Store
	notifier *recorder
	client   *http.Client
}

func newFixture(t *testing.T, refresher transport.Refresher) *fixture {
	t.Helper()
	tokens := tokenstore.NewManager(memstore.New())
	sess := session.NewStore(tokens)
	notifier := &recorder{}
	chain := transport.NewChain(tokens, sess, refresher, transport.WithNotifier(notifier))
	return &fixture{
		tokens:   tokens,
		sess:     sess,
		notifier: notifier,
		client:   transport.NewHTTPClient(chain, 5*time.Second),
	}
}

func TestChain_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	f := newFixture(t, &fakeRefresher{})
	require.NoError(t, f.tokens.SetTokens("access-1", "refresh-1", time.Minute))

	resp, err := f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "Bearer access-1", gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestChain_RefreshCollapsing(t *testing.T) {
	var protectedHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protectedHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	refresher := &fakeRefresher{
		delay:  50 * time.Millisecond,
		tokens: &tokenstore.Tokens{AccessToken: "fresh", ExpiresIn: 15 * time.Minute},
	}
	f := newFixture(t, refresher)
	require.NoError(t, f.tokens.SetTokens("stale", "refresh-1", time.Minute))

	const concurrency = 5
	var wg sync.WaitGroup
	statuses := make([]int, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.client.Get(server.URL)
			require.NoError(t, err)
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, refresher.calls.Load(), "concurrent 401s must collapse into one refresh")
	for _, status := range statuses {
		require.Equal(t, http.StatusOK, status)
	}
	require.Equal(t, "fresh", f.tokens.AccessToken())
	require.Equal(t, "refresh-1", f.tokens.RefreshToken(), "refresh token survives an access-only rotation")
}

func TestChain_RetryOnce(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized) // rejects even the refreshed token
	}))
	defer server.Close()

	refresher := &fakeRefresher{tokens: &tokenstore.Tokens{AccessToken: "fresh", ExpiresIn: time.Minute}}
	f := newFixture(t, refresher)
	require.NoError(t, f.tokens.SetTokens("stale", "refresh-1", time.Minute))

	resp, err := f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second 401 surfaces to the caller")
	require.EqualValues(t, 2, hits.Load(), "original plus exactly one retry")
	require.EqualValues(t, 1, refresher.calls.Load())
}

func TestChain_NoRefreshTokenFailsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{tokens: &tokenstore.Tokens{AccessToken: "fresh", ExpiresIn: time.Minute}}
	f := newFixture(t, refresher)
	require.NoError(t, f.tokens.SetTokens("stale", "", time.Minute))

	_, err := f.client.Get(server.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, apierror.ErrNoRefreshToken))
	require.EqualValues(t, 0, refresher.calls.Load(), "no refresh attempt without a refresh token")
	require.Empty(t, f.tokens.AccessToken(), "tokens cleared")
	require.Equal(t, 1, f.notifier.expiredCount())
}

func TestChain_RefreshFailureRejectsAllWaiters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{delay: 50 * time.Millisecond, err: errors.New("refresh token revoked")}
	f := newFixture(t, refresher)
	require.NoError(t, f.tokens.SetTokens("stale", "refresh-1", time.Minute))

	const concurrency = 4
	var wg sync.WaitGroup
	failures := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.client.Get(server.URL)
			failures[i] = err
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, refresher.calls.Load())
	for _, err := range failures {
		require.Error(t, err, "every raced request fails when the shared refresh fails")
	}
	require.Empty(t, f.tokens.AccessToken())
	require.False(t, f.sess.IsAuthenticated())
}

func TestChain_NoTokenAttachedPassesThe401Through(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{}
	f := newFixture(t, refresher)

	resp, err := f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, refresher.calls.Load())
}

func TestChain_ClassNotifications(t *testing.T) {
	status := make(chan int, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(<-status)
	}))
	defer server.Close()

	f := newFixture(t, &fakeRefresher{})
	require.NoError(t, f.tokens.SetTokens("access-1", "refresh-1", time.Minute))

	status <- http.StatusForbidden
	resp, err := f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, f.notifier.errCount())

	// Suppressed entirely while a login flow is active.
	f.sess.BeginLogin()
	status <- http.StatusInternalServerError
	resp, err = f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, f.notifier.errCount())
}
