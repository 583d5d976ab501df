package publisher

import "errors"

var (
	// ErrAuth indicates the hosting account rejected our credentials.
	ErrAuth = errors.New("hosting authentication failed")

	// ErrStorageFull indicates the upload would exceed the storage budget.
	ErrStorageFull = errors.New("hosting storage full")

	// ErrTooLarge indicates the file exceeds the publish size ceiling.
	ErrTooLarge = errors.New("file too large to publish")

	// ErrEmptyFile indicates the local file has no content to publish.
	ErrEmptyFile = errors.New("file is empty")

	// ErrHostUnavailable indicates the hosting service could not be reached.
	ErrHostUnavailable = errors.New("hosting service unavailable")
)
