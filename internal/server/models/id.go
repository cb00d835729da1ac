package models

import (
	"errors"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidUserID is returned by ParseUserID for identifiers that are
// neither local nor remote shaped.
var ErrInvalidUserID = errors.New("invalid user id")

// UserID identifies a user by shape: LocalID for users held in the local
// store, RemoteID for users owned by the remote directory.
type UserID interface {
	String() string
	isUserID()
}

// LocalID is a 24 character hexadecimal identifier.
type LocalID string

func (id LocalID) String() string { return string(id) }
func (LocalID) isUserID()         {}

// RemoteID is a non-negative integer identifier of the remote directory.
type RemoteID int

func (id RemoteID) String() string { return strconv.Itoa(int(id)) }
func (RemoteID) isUserID()         {}

// ParseUserID classifies raw. The check is purely syntactic: 24 hex
// characters make a LocalID, a plain decimal integer makes a RemoteID.
// The String form of the result is canonical (lower-case hex, no leading
// zeros).
func ParseUserID(raw string) (UserID, error) {
	if primitive.IsValidObjectID(raw) {
		return LocalID(strings.ToLower(raw)), nil
	}
	if isDigits(raw) {
		n, err := strconv.Atoi(raw)
		if err == nil {
			return RemoteID(n), nil
		}
	}
	return nil, ErrInvalidUserID
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
