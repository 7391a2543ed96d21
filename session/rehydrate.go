package session

import (
	"encoding/json"

	"github.com/clinicore/go-clinic-client/model"
)

// Rehydrate reconstructs the in-memory session from durable storage at
// startup. It always resolves to a definite Login or Logout so the store
// never diverges from storage after a restart, and it never returns an
// error across this boundary: unreadable state degrades to a clean logout.
// Calling it twice with the same storage contents is idempotent.
func (s *Store) Rehydrate() {
	if err := s.tokens.PurgeLegacy(); err != nil {
		s.logger.Warn().Err(err).Msg("purging legacy token key")
	}

	if !s.tokens.IsValid() {
		s.Logout()
		return
	}

	userJSON := s.tokens.UserJSON()
	if userJSON == nil {
		s.Logout()
		return
	}
	var user model.User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		s.logger.Warn().Err(err).Msg("stored user blob unreadable, clearing session")
		s.Logout()
		return
	}

	s.Login(&user, s.tokens.Tokens())
}
