// Package model holds the account identity record shared by the session
// store and the resource clients. It imports nothing from this module so
// both sides can depend on it.
package model

// User is the authenticated account as the backend reports it.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	ClinicID  string `json:"clinicId,omitempty"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
