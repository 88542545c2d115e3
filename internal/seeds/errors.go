package seeds

import "errors"

var (
	// ErrInvalidEntrypoint is returned when a registry entry names a
	// non-absolute or non-http(s) entrypoint.
	ErrInvalidEntrypoint = errors.New("seeds: entrypoint must be an absolute http(s) URL")
	// ErrDuplicateID is returned when two registry entries share an id.
	ErrDuplicateID = errors.New("seeds: duplicate registry entry id")
	// ErrUnknownStrategy marks a registry entry whose strategy has no
	// registered handler; the entry is logged and skipped, not fatal.
	ErrUnknownStrategy = errors.New("seeds: unknown strategy")
)
