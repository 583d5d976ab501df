package trailer

import "errors"

var (
	// ErrQuotaExhausted indicates every credential in the pool is spent.
	ErrQuotaExhausted = errors.New("all search credentials exhausted")

	// ErrKeyQuotaExceeded indicates the provider rejected one credential
	// for the current quota window. The pool rotates past it.
	ErrKeyQuotaExceeded = errors.New("credential quota exceeded")

	// ErrInvalidCredential indicates a bad or unprovisioned credential.
	// Not retryable.
	ErrInvalidCredential = errors.New("invalid search credential")
)
