package transfer

import "errors"

var (
	// ErrDaemonUnavailable indicates the torrent daemon could not be reached.
	ErrDaemonUnavailable = errors.New("torrent daemon unavailable")

	// ErrBadMagnet indicates a magnet link with no parseable info hash.
	ErrBadMagnet = errors.New("invalid magnet link")

	// ErrTimeout indicates the transfer did not complete within the poll budget.
	ErrTimeout = errors.New("transfer timed out")

	// ErrFailed indicates the daemon reported the transfer as failed.
	ErrFailed = errors.New("transfer failed")

	// ErrNoVideoFile indicates the completed transfer contains no usable video file.
	ErrNoVideoFile = errors.New("no video file in transfer")
)
