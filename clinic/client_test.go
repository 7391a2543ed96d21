package clinic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicore/go-clinic-client/clinic"
	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
	"github.com/clinicore/go-clinic-client/session"
	"github.com/clinicore/go-clinic-client/tokenstore"
	"github.com/clinicore/go-clinic-client/tokenstore/memstore"
)

type backendFake struct {
	mux      *http.ServeMux
	listHits atomic.Int64
}

func newBackendFake(t *testing.T) (*backendFake, *httptest.Server) {
	t.Helper()
	f := &backendFake{mux: http.NewServeMux()}

	f.mux.HandleFunc("GET /patients", func(w http.ResponseWriter, r *http.Request) {
		f.listHits.Add(1)
		writeEnvelope(w, []clinic.Patient{{ID: "p1", FirstName: "Ada", LastName: "Nwosu"}})
	})
	f.mux.HandleFunc("POST /patients", func(w http.ResponseWriter, r *http.Request) {
		var input clinic.PatientInput
		_ = json.NewDecoder(r.Body).Decode(&input)
		writeEnvelope(w, clinic.Patient{ID: "p2", FirstName: input.FirstName, LastName: input.LastName})
	})
	f.mux.HandleFunc("GET /patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, clinic.Patient{ID: r.PathValue("id"), FirstName: "Ada"})
	})
	f.mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		writeEnvelope(w, map[string]any{
			"user":         clinic.User{ID: "u1", Email: creds.Email, FirstName: "Ada", LastName: "Nwosu", Role: "practitioner"},
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
			"expiresIn":    900,
		})
	})
	f.mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{"accessToken": "access-2", "expiresIn": 900})
	})

	server := httptest.NewServer(f.mux)
	t.Cleanup(server.Close)
	return f, server
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "success": true})
}

type stack struct {
	tokens *tokenstore.Manager
	sess   *session.Store
	cache  *querycache.Cache
	api    *clinic.Client
	auth   *clinic.AuthClient
}

func newStack(t *testing.T, server *httptest.Server) *stack {
	t.Helper()
	tokens := tokenstore.NewManager(memstore.New())
	require.NoError(t, tokens.SetTokens("access-1", "refresh-1", 15*time.Minute))
	sess := session.NewStore(tokens)
	cache := querycache.New()
	pipe := mutation.NewPipeline(server.Client(), server.URL, tokens, sess, cache)
	return &stack{
		tokens: tokens,
		sess:   sess,
		cache:  cache,
		api:    clinic.NewClient(pipe),
		auth:   clinic.NewAuthClient(server.URL, tokens, sess, clinic.WithAuthHTTPClient(server.Client())),
	}
}

func TestPatients_ListIsCached(t *testing.T) {
	fake, server := newBackendFake(t)
	s := newStack(t, server)

	first, err := s.api.Patients.List(context.Background(), clinic.ListFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.api.Patients.List(context.Background(), clinic.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, fake.listHits.Load(), "second list served from cache")
}

func TestPatients_DifferentFiltersDifferentEntries(t *testing.T) {
	fake, server := newBackendFake(t)
	s := newStack(t, server)

	_, err := s.api.Patients.List(context.Background(), clinic.ListFilter{})
	require.NoError(t, err)
	_, err = s.api.Patients.List(context.Background(), clinic.ListFilter{Search: "ada"})
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.listHits.Load())
}

func TestPatients_CreateInvalidatesLists(t *testing.T) {
	fake, server := newBackendFake(t)
	s := newStack(t, server)

	_, err := s.api.Patients.List(context.Background(), clinic.ListFilter{})
	require.NoError(t, err)

	created, err := s.api.Patients.Create(context.Background(), clinic.PatientInput{FirstName: "Grace", LastName: "Obi"})
	require.NoError(t, err)
	require.Equal(t, "p2", created.ID)

	_, err = s.api.Patients.List(context.Background(), clinic.ListFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.listHits.Load(), "mutation invalidated the cached list")
}

func TestPatients_Get(t *testing.T) {
	_, server := newBackendFake(t)
	s := newStack(t, server)

	patient, err := s.api.Patients.Get(context.Background(), "p9")
	require.NoError(t, err)
	require.Equal(t, "p9", patient.ID)
}

func TestAuthClient_LoginEstablishesSession(t *testing.T) {
	_, server := newBackendFake(t)
	s := newStack(t, server)
	require.NoError(t, s.tokens.ClearAll())

	user, err := s.auth.Login(context.Background(), "dr@example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)

	require.True(t, s.sess.IsAuthenticated())
	require.Equal(t, "access-1", s.tokens.AccessToken())
	require.Equal(t, "refresh-1", s.tokens.RefreshToken())
	require.NotNil(t, s.tokens.UserJSON())
	require.False(t, s.sess.LoginInProgress())
}

func TestAuthClient_LoginStateSurvivesRehydration(t *testing.T) {
	_, server := newBackendFake(t)
	s := newStack(t, server)
	require.NoError(t, s.tokens.ClearAll())

	user, err := s.auth.Login(context.Background(), "dr@example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, user, s.sess.State().User)

	restored := session.NewStore(s.tokens)
	restored.Rehydrate()
	require.True(t, restored.IsAuthenticated())
	require.Equal(t, user, restored.State().User)
}

func TestAuthClient_LoginFailureLeavesCleanState(t *testing.T) {
	_, server := newBackendFake(t)
	s := newStack(t, server)
	require.NoError(t, s.tokens.ClearAll())

	_, err := s.auth.Login(context.Background(), "dr@example.com", "wrong")
	require.Error(t, err)
	require.False(t, s.sess.IsAuthenticated())
	require.Contains(t, s.sess.State().Err, "invalid credentials")
}

func TestAuthClient_Refresh(t *testing.T) {
	_, server := newBackendFake(t)
	s := newStack(t, server)

	fresh, err := s.auth.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", fresh.AccessToken)
	require.Equal(t, 900*time.Second, fresh.ExpiresIn)
	require.Empty(t, fresh.RefreshToken, "backend may keep the refresh token unrotated")
}
