package mutation_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
	"github.com/clinicore/go-clinic-client/tokenstore/memstore"
)

type recorder struct {
	mu        sync.Mutex
	successes []string
	errs      []string
	expired   int
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

type capturedRequest struct {
	Method  string
	Path    string
	Body    string
	HasBody bool
}

type fixture struct {
	tokens   *tokenstore.Manager
	sess     *session.Store
	cache    *querycache.Cache
	notifier *recorder
	pipe     *mutation.Pipeline
	captured *capturedRequest
	server   *httptest.Server
}

func newFixture(t *testing.T, status int, responseBody string) *fixture {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Body = string(body)
		captured.HasBody = len(body) > 0
		w.WriteHeader(status)
		w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)

	tokens := tokenstore.NewManager(memstore.New())
	sess := session.NewStore(tokens)
	cache := querycache.New()
	notifier := &recorder{}
	pipe := mutation.NewPipeline(server.Client(), server.URL, tokens, sess, cache,
		mutation.WithNotifier(notifier))

	return &fixture{
		tokens:   tokens,
		sess:     sess,
		cache:    cache,
		notifier: notifier,
		pipe:     pipe,
		captured: captured,
		server:   server,
	}
}

func (f *fixture) authenticate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tokens.SetTokens("access-1", "refresh-1", 15*time.Minute))
}

type named struct {
	Name string `json:"name"`
}

func TestRun_UpdatePayloadShaping(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{"data":{"name":"X"},"success":true}`)
	f.authenticate(t)

	op := mutation.Operation{Route: "/patients"}
	res := mutation.Run[named](context.Background(), f.pipe, op, mutation.Update{
		ID:      "abc",
		Payload: named{Name: "X"},
	})

	require.NoError(t, res.Err)
	require.Equal(t, http.MethodPut, f.captured.Method)
	require.Equal(t, "/patients/abc", f.captured.Path)
	require.JSONEq(t, `{"name":"X"}`, f.captured.Body, "body carries only the payload, never the id")
	require.Equal(t, "X", res.Value.Name)
}

func TestRun_UpdatePatchVerb(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{}`)
	f.authenticate(t)

	op := mutation.Operation{Route: "/appointments"}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Update{
		ID:      "a1",
		Payload: map[string]string{"status": "cancelled"},
		Patch:   true,
	})
	require.NoError(t, res.Err)
	require.Equal(t, http.MethodPatch, f.captured.Method)
}

func TestRun_DeleteSendsNoBody(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")
	f.authenticate(t)

	op := mutation.Operation{Route: "/patients"}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Delete{ID: "abc"})

	require.NoError(t, res.Err)
	require.Equal(t, http.MethodDelete, f.captured.Method)
	require.Equal(t, "/patients/abc", f.captured.Path)
	require.False(t, f.captured.HasBody)
}

func TestRun_CreatePostsPayload(t *testing.T) {
	f := newFixture(t, http.StatusCreated, `{"data":{"name":"Ada"}}`)
	f.authenticate(t)

	op := mutation.Operation{Route: "/patients"}
	res := mutation.Run[named](context.Background(), f.pipe, op, mutation.Create{Payload: named{Name: "Ada"}})

	require.NoError(t, res.Err)
	require.Equal(t, http.MethodPost, f.captured.Method)
	require.Equal(t, "/patients", f.captured.Path)
	require.Equal(t, "Ada", res.Value.Name)
}

func TestRun_GuardAbortsDoomedRequest(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{}`)
	// no tokens stored: auth-required mutation must not reach the network

	op := mutation.Operation{Route: "/patients"}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Create{Payload: named{Name: "Ada"}})

	require.Error(t, res.Err)
	var apiErr *apierror.APIError
	require.ErrorAs(t, res.Err, &apiErr)
	require.Equal(t, apierror.ClassAuthUnrecoverable, apiErr.Class)
	require.Empty(t, f.captured.Method, "no network I/O happened")
	require.Equal(t, 1, f.notifier.expired)
	require.False(t, f.sess.IsAuthenticated())
}

func TestRun_GuardSuppressedDuringLogin(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{}`)
	f.sess.BeginLogin()

	op := mutation.Operation{Route: "/patients"}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Create{Payload: named{}})

	require.Error(t, res.Err)
	require.Equal(t, 0, f.notifier.expired)
}

func TestRun_AllowAnonymousSkipsGuard(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{}`)

	op := mutation.Operation{Route: "/feedback", AllowAnonymous: true}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Create{Payload: named{Name: "x"}})

	require.NoError(t, res.Err)
	require.Equal(t, http.MethodPost, f.captured.Method)
}

func TestRun_ErrorBodyBecomesClassifiedError(t *testing.T) {
	f := newFixture(t, http.StatusUnprocessableEntity, `{"message":"slot already booked"}`)
	f.authenticate(t)

	op := mutation.Operation{Route: "/appointments"}
	res := mutation.Run[struct{}](context.Background(), f.pipe, op, mutation.Create{Payload: named{}})

	require.Error(t, res.Err)
	var apiErr *apierror.APIError
	require.ErrorAs(t, res.Err, &apiErr)
	require.Equal(t, apierror.ClassValidation, apiErr.Class)
	require.Equal(t, "slot already booked", apiErr.Message)
}

func TestReport(t *testing.T) {
	t.Run("validation error shows extracted message", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, `{}`)
		err := apierror.New(http.StatusUnprocessableEntity, []byte(`{"message":"name is required"}`))
		f.pipe.Report(err, "could not save")
		require.Equal(t, []string{"name is required"}, f.notifier.errs)
	})

	t.Run("401 shows the session-expired notice", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, `{}`)
		err := apierror.New(http.StatusUnauthorized, nil)
		f.pipe.Report(err, "could not save")
		require.Equal(t, 1, f.notifier.expired)
		require.Empty(t, f.notifier.errs)
	})

	t.Run("fallback when nothing extractable", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, `{}`)
		err := apierror.New(http.StatusInternalServerError, nil)
		f.pipe.Report(err, "could not save the record")
		require.Equal(t, []string{"could not save the record"}, f.notifier.errs)
	})

	t.Run("suppressed during login", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, `{}`)
		f.sess.BeginLogin()
		f.pipe.Report(apierror.New(http.StatusInternalServerError, nil), "x")
		require.Empty(t, f.notifier.errs)
	})

	t.Run("embedded timestamps are reformatted", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, `{}`)
		err := apierror.New(http.StatusUnprocessableEntity,
			[]byte(`{"message":"busy from 2025-09-30T18:31:00.000Z to 2025-09-30T23:30:00.000Z"}`))
		f.pipe.Report(err, "x")
		require.Len(t, f.notifier.errs, 1)
		require.NotContains(t, f.notifier.errs[0], "2025-09-30T18:31:00", "raw ISO timestamp must not surface")
		require.Contains(t, f.notifier.errs[0], "busy from ")
	})
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{}`)
	f.cache.Set("patients/p1", "cached", time.Minute)
	f.cache.Set("appointments/a1", "cached", time.Minute)

	f.pipe.Invalidate("patients")

	_, ok := f.cache.Get("patients/p1")
	require.False(t, ok)
	_, ok = f.cache.Get("appointments/a1")
	require.True(t, ok)
}
