package player

import (
	"context"

	"github.com/wavehop/wavehop/internal/domain/station"
)

// Directory resolves candidate stations from the remote catalog and
// accepts best-effort playback reports.
type Directory interface {
	GetDiverseStations(ctx context.Context, count int) ([]station.Station, error)
	ReportPlay(ctx context.Context, stationID string) error
}

// Favorites persists the set of favorited stations.
type Favorites interface {
	Add(st station.Station) error
	Remove(stationID string) error
	Contains(stationID string) (bool, error)
	List() ([]station.Favorite, error)
}

// Tuner plays the cosmetic retuning static heard while a station switch
// is in flight. All methods are safe to call at any time; Stop is
// idempotent.
type Tuner interface {
	Start()
	Stop()
	SetVolume(v float64)
}

// Resource is a single playable audio stream owned by the controller.
type Resource interface {
	// Play starts or resumes audio output.
	Play()
	// Pause suspends audio output without releasing the stream.
	Pause()
	// SetVolume applies a volume in [0,1].
	SetVolume(v float64)
	// Close detaches handlers and releases the stream. After Close
	// returns, no further handler invocations are delivered for this
	// resource (late ones are discarded by the session guard anyway).
	Close()
}

// Handlers receive resource lifecycle callbacks.
type Handlers struct {
	// OnReady fires once the stream is decoded and playable.
	OnReady func()
	// OnError fires when loading or playback fails.
	OnError func(err error)
}

// Opener opens audio resources for stream URLs. Loading begins
// immediately; handlers are invoked from their own goroutine, never
// synchronously from Open.
type Opener interface {
	Open(url string, h Handlers) Resource
}
