// Package models defines the server-side data models shared by the
// repositories, services and HTTP layer.
package models

import "time"

// User is either a locally stored user (24-hex ID) or a record read live
// from the remote directory (integer ID). Job is only meaningful locally.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Job       string    `json:"job,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewUser is the input of a user creation.
type NewUser struct {
	Email     string `json:"email"`
	Job       string `json:"job"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserPatch carries a partial update; nil fields are left unchanged.
type UserPatch struct {
	Email     *string `json:"email,omitempty"`
	Job       *string `json:"job,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *UserPatch) Empty() bool {
	return p.Email == nil && p.Job == nil && p.FirstName == nil && p.LastName == nil
}
