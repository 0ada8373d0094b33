// Package auth signs users in. It stores the resulting identity in the redis
// session or hands it out as a bearer token; the tenancy resolver turns that
// identity into an acting context on every request.
package auth

import "time"

// Credential is the account record needed to check a password.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
}

// Token is an issued bearer token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
