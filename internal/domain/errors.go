package domain

import "errors"

var (
	// ErrUnknownSeverity is returned for a severity outside the known range.
	ErrUnknownSeverity = errors.New("unknown severity")

	// ErrUnexpectedAsset means a bundled asset lives outside the daemon namespace.
	ErrUnexpectedAsset = errors.New("unexpected bundled asset")

	// ErrEmptyAsset means a bundled asset's content could not be opened.
	ErrEmptyAsset = errors.New("bundled asset stream unavailable")

	// ErrAlreadyLaunched is returned when a supervisor is launched twice.
	ErrAlreadyLaunched = errors.New("supervisor already launched")

	// ErrTerminated is returned when Terminate wins the race against a launch.
	ErrTerminated = errors.New("supervisor terminated")
)
