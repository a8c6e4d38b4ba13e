package audio

import (
	"context"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/wavehop/wavehop/internal/app/player"
)

// streamResource is a single HTTP audio stream attached to the speaker
// mixer. It implements player.Resource.
type streamResource struct {
	mu       sync.Mutex
	engine   *Engine
	url      string
	handlers player.Handlers

	ctrl   *beep.Ctrl
	volume *effects.Volume
	level  float64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newStreamResource(e *Engine, url string, h player.Handlers) *streamResource {
	ctx, cancel := context.WithCancel(context.Background())
	return &streamResource{
		engine:   e,
		url:      url,
		handlers: h,
		level:    1,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// load connects to the stream, decodes it, and attaches it to the mixer.
// Runs in its own goroutine.
func (r *streamResource) load() {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		r.fail(errors.Wrap(err, "failed to create stream request"))
		return
	}
	req.Header.Set("User-Agent", "wavehop/1.0")
	req.Header.Set("Icy-MetaData", "0")

	resp, err := r.engine.httpClient.Do(req)
	if err != nil {
		r.fail(errors.Wrap(err, "failed to connect to stream"))
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		r.fail(errors.Newf("stream returned status %d", resp.StatusCode))
		return
	}

	streamer, format, err := mp3.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		r.fail(errors.Wrap(err, "failed to decode stream"))
		return
	}

	var source beep.Streamer = streamer
	if format.SampleRate != r.engine.sampleRate {
		source = beep.Resample(4, format.SampleRate, r.engine.sampleRate, streamer)
	}

	r.mu.Lock()
	if r.closed {
		// Superseded while connecting; never attach.
		r.mu.Unlock()
		resp.Body.Close()
		return
	}

	// Attached paused; the controller decides when audio starts.
	r.ctrl = &beep.Ctrl{Streamer: source, Paused: true}
	db, silent := volumeToDB(r.level)
	r.volume = &effects.Volume{Streamer: r.ctrl, Base: 2, Volume: db, Silent: silent}
	r.mu.Unlock()

	// A radio stream draining means the connection died.
	speaker.Play(beep.Seq(r.volume, beep.Callback(func() {
		r.fail(errors.New("stream ended unexpectedly"))
	})))

	r.ready()
}

// Play implements player.Resource.
func (r *streamResource) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctrl == nil || r.closed {
		return
	}
	speaker.Lock()
	r.ctrl.Paused = false
	speaker.Unlock()
}

// Pause implements player.Resource.
func (r *streamResource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctrl == nil || r.closed {
		return
	}
	speaker.Lock()
	r.ctrl.Paused = true
	speaker.Unlock()
}

// SetVolume implements player.Resource.
func (r *streamResource) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = v
	if r.volume == nil || r.closed {
		return
	}
	db, silent := volumeToDB(v)
	speaker.Lock()
	r.volume.Volume = db
	r.volume.Silent = silent
	speaker.Unlock()
}

// Close implements player.Resource: detaches handlers, aborts the HTTP
// stream, and releases the mixer slot.
func (r *streamResource) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ctrl := r.ctrl
	r.mu.Unlock()

	// Cancelling the request context tears down the connection; nilling
	// the ctrl streamer drains it out of the mixer.
	r.cancel()
	if ctrl != nil {
		speaker.Lock()
		ctrl.Paused = true
		ctrl.Streamer = nil
		speaker.Unlock()
	}
}

func (r *streamResource) ready() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	h := r.handlers.OnReady
	r.mu.Unlock()

	if h != nil {
		h()
	}
}

func (r *streamResource) fail(err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		zlog.Debug().Msgf("audio: suppressing error from closed stream: url=%s error=%v", r.url, err)
		return
	}
	h := r.handlers.OnError
	r.mu.Unlock()

	if h != nil {
		h(err)
	}
}
