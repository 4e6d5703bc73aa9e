package domain

import "errors"

// ErrSessionNotFound is returned by stores and services for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")
