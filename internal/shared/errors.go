package shared

import "errors"

var (
	// ErrSessionNotFound indicates an unknown, expired or revoked session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrIdempotencyInFlight indicates the key was claimed but its request has not finished.
	ErrIdempotencyInFlight = errors.New("idempotent request still in progress")
)
