package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a frame, placement, edge, or content node does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDanglingReference is returned when an edge would point at a placement that is not in the frame.
	ErrDanglingReference = errors.New("dangling edge reference")

	// ErrEndpointNotFound is returned by Connect when either endpoint is missing.
	ErrEndpointNotFound = fmt.Errorf("edge endpoint %w", ErrNotFound)

	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when content is already placed in the frame.
	ErrConflict = errors.New("conflict")
)
