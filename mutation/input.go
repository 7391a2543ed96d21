// Package mutation wraps create/update/delete calls with an auth-readiness
// guard, consistent error extraction, and explicit post-processing steps for
// notification and cache invalidation.
package mutation

import "net/http"

// Input is the tagged mutation variant. Dispatch is explicit: the shape of
// the request is decided by the variant, never by inspecting the payload.
type Input interface {
	method() string
	id() string
	body() any
}

// Create inserts a new record. The payload is the request body.
type Create struct {
	Payload any
}

func (c Create) method() string { return http.MethodPost }
func (c Create) id() string     { return "" }
func (c Create) body() any      { return c.Payload }

// Update modifies an existing record. Only the payload is sent as the body;
// the identifier stays in the route.
type Update struct {
	ID      string
	Payload any
	// Patch switches the verb from PUT to PATCH for partial updates.
	Patch bool
}

func (u Update) method() string {
	if u.Patch {
		return http.MethodPatch
	}
	return http.MethodPut
}
func (u Update) id() string { return u.ID }
func (u Update) body() any  { return u.Payload }

// Delete removes a record by id. No request body is sent.
type Delete struct {
	ID string
}

func (d Delete) method() string { return http.MethodDelete }
func (d Delete) id() string     { return d.ID }
func (d Delete) body() any      { return nil }
