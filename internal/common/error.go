// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInvalidArgument = errors.New("invalid argument")
	ErrorUpstream        = errors.New("upstream error")
	ErrorInternal        = errors.New("internal error")
)
