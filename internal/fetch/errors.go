package fetch

import "errors"

var (
	// ErrBlocked indicates the index answered with an anti-automation
	// response (403/429 or a CAPTCHA interstitial). Retryable with a
	// longer delay and a fresh browser identity.
	ErrBlocked = errors.New("blocked by index")

	// ErrUnavailable indicates a transient network failure (timeout,
	// connection reset, 5xx). Retryable with normal backoff.
	ErrUnavailable = errors.New("index unavailable")
)
