package ht

import "errors"

var (
	// ErrNotFound is returned when a session or habit does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionConflict is returned when starting a session while another one is open.
	ErrSessionConflict = errors.New("another focus session is already open")

	// ErrInvalidTransition is returned when an action does not apply to the session's status.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNoActiveSession is returned by actions that need an open session when there is none.
	ErrNoActiveSession = errors.New("no active focus session")

	// ErrInvalidInput is returned when a request carries a missing or out-of-range value.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrBackupKeysMissing is returned when creating a backup before the key pair was set up.
var ErrBackupKeysMissing = errors.New("backup keys are not set up (run: ht backup init)")
