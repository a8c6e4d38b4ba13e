// Package audio provides the beep/speaker-backed audio engine.
package audio

import (
	"math"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/mitchellh/mapstructure"

	"github.com/wavehop/wavehop/internal/app/player"
)

// Settings are the beep backend settings from the config file.
type Settings struct {
	SampleRate int `mapstructure:"sample_rate"`
	BufferMs   int `mapstructure:"buffer_ms"`
}

// minVolumeDB is the floor of the volume curve; anything below is silent.
const minVolumeDB = -10.0

// Engine owns the speaker and opens streaming audio resources.
// Exactly one engine should exist per process.
type Engine struct {
	sampleRate beep.SampleRate
	httpClient *http.Client
}

// NewEngine decodes the backend settings, initializes the speaker, and
// returns the engine.
func NewEngine(raw map[string]any) (*Engine, error) {
	var s Settings
	if err := mapstructure.Decode(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode audio settings")
	}
	if s.SampleRate <= 0 {
		s.SampleRate = 44100
	}
	if s.BufferMs <= 0 {
		s.BufferMs = 250
	}

	sr := beep.SampleRate(s.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(s.BufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}

	return &Engine{
		sampleRate: sr,
		httpClient: &http.Client{Timeout: 0}, // radio streams never end
	}, nil
}

// SampleRate returns the speaker sample rate.
func (e *Engine) SampleRate() beep.SampleRate {
	return e.sampleRate
}

// Open implements player.Opener: loading starts immediately in its own
// goroutine and the handlers fire from there.
func (e *Engine) Open(url string, h player.Handlers) player.Resource {
	r := newStreamResource(e, url, h)
	go r.load()
	return r
}

// volumeToDB maps a linear volume in [0,1] onto the exponent scale used
// by effects.Volume with Base 2. A square-root curve keeps the low end
// of the slider useful.
func volumeToDB(v float64) (db float64, silent bool) {
	if v <= 0.001 {
		return minVolumeDB, true
	}
	if v > 1 {
		v = 1
	}
	return minVolumeDB * (1 - math.Sqrt(v)), false
}
