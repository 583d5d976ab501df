// Package catalog manages the persisted media catalog: media entries,
// their video content records, and the parser run status and log.
package catalog

import (
	"time"
)

// MediaType distinguishes movies from series.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// MediaStatus is the acquisition lifecycle state of a media entry.
type MediaStatus string

const (
	// StatusInactive is the initial state for newly discovered media.
	StatusInactive MediaStatus = "inactive"
	// StatusTrailer means a trailer was published but no full content yet.
	StatusTrailer MediaStatus = "trailer"
	// StatusReady means full content was published. Terminal success.
	StatusReady MediaStatus = "ready"
	// StatusNoVideo means every search exhausted with no qualifying
	// candidate. Retryable terminal.
	StatusNoVideo MediaStatus = "no_video"
	// StatusError means processing failed unexpectedly. Retryable terminal.
	StatusError MediaStatus = "error"
)

// Media is one catalog entry.
type Media struct {
	ID            int64
	Title         string
	OriginalTitle string // empty when unknown
	Type          MediaType
	Year          int
	Status        MediaStatus
	SourceID      string
	SourceType    string
	AddedAt       time.Time
	UpdatedAt     time.Time
}

// IsSeries reports whether the entry is a series.
func (m *Media) IsSeries() bool { return m.Type == MediaTypeSeries }

// VideoType distinguishes trailers from full assets.
type VideoType string

const (
	VideoTypeTrailer   VideoType = "trailer"
	VideoTypeFullMovie VideoType = "full_movie"
	VideoTypeEpisode   VideoType = "episode"
)

// VideoStatus is the state of one published asset.
type VideoStatus string

const (
	VideoPending VideoStatus = "pending"
	VideoReady   VideoStatus = "ready"
	VideoError   VideoStatus = "error"
)

// VideoContent is one playable or trailer asset owned by exactly one Media.
type VideoContent struct {
	ID          int64
	MediaID     int64
	URL         string
	Quality     string
	Type        VideoType
	Format      string
	Status      VideoStatus
	Score       int // selection confidence 0-100
	IsRussian   bool
	Title       string
	Description string
	Duration    int // seconds, 0 when unknown
	SizeBytes   int64
	AddedAt     time.Time
}

// IsFull reports whether the record is a full-content asset.
func (v *VideoContent) IsFull() bool {
	return v.Type == VideoTypeFullMovie || v.Type == VideoTypeEpisode
}

// RunState is the parser run status value.
type RunState string

const (
	RunActive   RunState = "active"
	RunInactive RunState = "inactive"
	RunError    RunState = "error"
)

// RunStatus is the singleton operational status row.
type RunStatus struct {
	Status         RunState
	LastRun        *time.Time
	ProcessedItems int
	Errors         []string // bounded, most recent last
}

// LogEntry is one append-only parser log record.
type LogEntry struct {
	ID        int64
	Message   string
	Detail    string
	CreatedAt time.Time
}
