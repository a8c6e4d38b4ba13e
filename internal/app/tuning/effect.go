// Package tuning provides the cosmetic "retuning" static heard while a
// station switch is in flight.
package tuning

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// staticGain keeps raw white noise from clipping or dominating the mix.
const staticGain = 0.5

// defaultFade is the fade-in/fade-out ramp duration.
const defaultFade = 150 * time.Millisecond

// Effect plays looping white noise with a fade-in/fade-out envelope.
// It is purely cosmetic feedback and has no bearing on playback
// correctness; Stop is idempotent.
type Effect struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	fade       time.Duration
	level      float64
	current    *staticStreamer

	// playFn hands a streamer to the mixer; replaced in tests.
	playFn func(beep.Streamer)
}

// New creates a tuning effect feeding the global speaker mixer.
// The speaker must already be initialized at sampleRate.
func New(sampleRate beep.SampleRate) *Effect {
	return &Effect{
		sampleRate: sampleRate,
		fade:       defaultFade,
		level:      0.3,
		playFn:     func(s beep.Streamer) { speaker.Play(s) },
	}
}

// Start begins the static loop with a fade-in. A previous instance still
// fading out is left to drain on its own.
func (e *Effect) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && !e.current.stopping() {
		return
	}

	s := newStaticStreamer(e.sampleRate, e.fade, e.level)
	e.current = s
	e.playFn(s)
}

// Stop fades the static out. The streamer drains itself and detaches
// from the mixer once silent.
func (e *Effect) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.current.fadeOut()
		e.current = nil
	}
}

// SetVolume sets the noise level in [0,1]. The caller is expected to
// pass an already attenuated value so the static never overwhelms
// program audio.
func (e *Effect) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.level = v
	if e.current != nil {
		e.current.setLevel(v)
	}
}

// staticStreamer generates white noise shaped by a linear gain envelope.
// It reports itself drained once a fade-out completes, which detaches it
// from the speaker mixer.
type staticStreamer struct {
	mu     sync.Mutex
	rng    *rand.Rand
	step   float64 // per-sample envelope delta
	gain   float64 // current envelope position
	target float64 // 1 while running, 0 while fading out
	level  float64 // user volume
	done   bool
}

func newStaticStreamer(sr beep.SampleRate, fade time.Duration, level float64) *staticStreamer {
	fadeSamples := sr.N(fade)
	if fadeSamples < 1 {
		fadeSamples = 1
	}
	return &staticStreamer{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		step:   1.0 / float64(fadeSamples),
		target: 1,
		level:  level,
	}
}

func (s *staticStreamer) fadeOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = 0
}

func (s *staticStreamer) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target == 0
}

func (s *staticStreamer) setLevel(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = v
}

// Stream implements beep.Streamer.
func (s *staticStreamer) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return 0, false
	}

	for i := range samples {
		if s.gain < s.target {
			s.gain += s.step
			if s.gain > s.target {
				s.gain = s.target
			}
		} else if s.gain > s.target {
			s.gain -= s.step
			if s.gain < s.target {
				s.gain = s.target
			}
		}

		if s.target == 0 && s.gain == 0 {
			// Fully faded out: pad the rest with silence and drain.
			for j := i; j < len(samples); j++ {
				samples[j][0], samples[j][1] = 0, 0
			}
			s.done = true
			return len(samples), true
		}

		v := (s.rng.Float64()*2 - 1) * s.gain * s.level * staticGain
		samples[i][0], samples[i][1] = v, v
	}

	return len(samples), true
}

// Err implements beep.Streamer.
func (s *staticStreamer) Err() error { return nil }
