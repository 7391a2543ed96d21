// Package session exposes reactive session state to the embedding
// application. Login and Logout are the only composite mutators; observers
// never see a half-cleared session.
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicore/go-clinic-client/model"
	"github.com/clinicore/go-clinic-client/tokenstore"
)

// State is a snapshot of the session. Tokens is nil when unauthenticated.
type State struct {
	IsAuthenticated bool
	User            *model.User
	Tokens          *tokenstore.Tokens
	IsLoading       bool
	Err             string
}

// Observer receives a state snapshot after every change.
type Observer func(State)

// Store holds the in-memory session and keeps it in step with the durable
// token store. Instantiate one per logical session; there is no ambient
// singleton.
type Store struct {
	tokens *tokenstore.Manager
	logger zerolog.Logger

	mu            sync.RWMutex
	state         State
	loginInFlight bool
	observers     map[int]Observer
	nextObserver  int
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(tokens *tokenstore.Manager, options ...StoreOption) *Store {
	s := &Store{
		tokens:    tokens,
		logger:    zerolog.Nop(),
		observers: make(map[int]Observer),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session is usable. The in-memory flag
// alone is not trusted: a stale flag can never override an expired durable
// token.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	flag := s.state.IsAuthenticated
	s.mu.RUnlock()
	return flag && s.tokens.IsValid()
}

// Login sets the user and tokens together and marks the session
// authenticated. Used after a real login call and after rehydration.
func (s *Store) Login(user *model.User, tokens *tokenstore.Tokens) {
	s.mu.Lock()
	s.state = State{
		IsAuthenticated: true,
		User:            user,
		Tokens:          tokens,
	}
	snapshot := s.state
	s.mu.Unlock()

	s.logger.Debug().Str("user_id", userID(user)).Msg("session established")
	s.notifyObservers(snapshot)
}

// Logout clears the user, tokens, and durable storage together. It is the
// only correct way to end a session and is idempotent.
func (s *Store) Logout() {
	if err := s.tokens.ClearAll(); err != nil {
		s.logger.Warn().Err(err).Msg("clearing durable tokens")
	}
	s.mu.Lock()
	s.state = State{}
	snapshot := s.state
	s.mu.Unlock()

	s.logger.Debug().Msg("session cleared")
	s.notifyObservers(snapshot)
}

// SetLoading flips the loading flag, e.g. while a login call is in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	snapshot := s.state
	s.mu.Unlock()
	s.notifyObservers(snapshot)
}

// SetErr records a session-level error message.
func (s *Store) SetErr(msg string) {
	s.mu.Lock()
	s.state.Err = msg
	snapshot := s.state
	s.mu.Unlock()
	s.notifyObservers(snapshot)
}

// BeginLogin marks that a credential entry flow is active. While active, the
// transport and mutation layers suppress their notifications so a failed
// login is reported once, by the login flow itself.
func (s *Store) BeginLogin() {
	s.mu.Lock()
	s.loginInFlight = true
	s.mu.Unlock()
}

// EndLogin clears the credential-entry marker.
func (s *Store) EndLogin() {
	s.mu.Lock()
	s.loginInFlight = false
	s.mu.Unlock()
}

// LoginInProgress reports whether a credential entry flow is active.
func (s *Store) LoginInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginInFlight
}

// Subscribe registers an observer and returns an unsubscribe function. The
// observer is immediately invoked with the current state.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = obs
	snapshot := s.state
	s.mu.Unlock()

	obs(snapshot)
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notifyObservers(snapshot State) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.RUnlock()
	for _, obs := range observers {
		obs(snapshot)
	}
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
