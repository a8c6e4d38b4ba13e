// Package player provides the playback lifecycle controller.
package player

import "github.com/wavehop/wavehop/internal/domain/station"

// Status represents the playback lifecycle state.
type Status int

const (
	StatusIdle    Status = iota // No active session
	StatusLoading               // Session active, stream not yet playable
	StatusPlaying               // Stream producing audio
	StatusPaused                // Paused by the user
	StatusFailed                // Failure observed, automatic retry pending
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the status serializes
// as its name in API responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for API clients
// decoding state snapshots.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "loading":
		*s = StatusLoading
	case "playing":
		*s = StatusPlaying
	case "paused":
		*s = StatusPaused
	case "failed":
		*s = StatusFailed
	default:
		*s = StatusIdle
	}
	return nil
}

// State is the observable player state. It is mutated only by the
// Controller; consumers receive immutable snapshots.
type State struct {
	Status         Status           `json:"status"`
	IsPlaying      bool             `json:"isPlaying"`
	IsLoading      bool             `json:"isLoading"`
	Volume         float64          `json:"volume"`
	CurrentStation *station.Station `json:"currentStation"`
	Error          string           `json:"error,omitempty"`
}
