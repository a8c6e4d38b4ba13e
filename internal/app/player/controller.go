package player

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/wavehop/wavehop/internal/domain/station"
)

// Errors
var (
	ErrUnknownStation = errors.New("unknown station")
)

// User-facing error messages.
const (
	msgNoStations     = "No stations available right now"
	msgRetryExhausted = "Unable to find working stations. Please try again later"
)

// tunerAttenuation keeps the retuning static well below program volume.
const tunerAttenuation = 0.3

// Config holds controller configuration. Zero values fall back to the
// defaults below.
type Config struct {
	LoadTimeout      time.Duration // How long a station may take to become playable
	MaxRetries       int           // Consecutive automatic failures before giving up
	DebounceWindow   time.Duration // Shuffle calls inside this window are dropped
	RetryBackoffStep time.Duration // Automatic retry delay grows linearly by this step
	PoolSize         int           // Stations requested per directory refill
	InitialVolume    float64       // Volume at startup
}

func (c *Config) applyDefaults() {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 9 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.DebounceWindow == 0 {
		c.DebounceWindow = time.Second
	}
	if c.DebounceWindow < 0 {
		// Negative disables the debounce entirely.
		c.DebounceWindow = 0
	}
	if c.RetryBackoffStep <= 0 {
		c.RetryBackoffStep = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 30
	}
	if c.InitialVolume <= 0 || c.InitialVolume > 1 {
		c.InitialVolume = 0.8
	}
}

// Controller is the single authority over what is currently playing,
// loading, or erroring. It owns exactly one playback session at a time
// and arbitrates between user intent and automatic recovery.
type Controller struct {
	mu sync.Mutex

	config    Config
	directory Directory
	favorites Favorites
	tuner     Tuner
	opener    Opener

	// Session identity. Every asynchronous callback captures the session
	// id it was created under and discards itself when the controller has
	// moved on. This is the mechanism that keeps a superseded station's
	// late events from corrupting a newer session's state.
	sessionID uint64

	resource Resource
	state    State
	pool     []station.Station

	// Retry state
	retryCount    int
	manualAttempt bool
	lastShuffle   time.Time

	// Timers
	loadTimerCancel  func()
	retryTimerCancel func()

	stateCh chan State
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new playback controller.
func NewController(cfg Config, directory Directory, favorites Favorites, tuner Tuner, opener Opener) *Controller {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config:    cfg,
		directory: directory,
		favorites: favorites,
		tuner:     tuner,
		opener:    opener,
		state: State{
			Status: StatusIdle,
			Volume: cfg.InitialVolume,
		},
		stateCh: make(chan State, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// States returns the channel of state snapshots, pushed on every mutation.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Snapshot returns the current player state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play begins a new playback session targeting st. Any active session is
// superseded: its timers are cancelled and its future events ignored.
// A failing play enters automatic recovery (unlike a user shuffle, which
// surfaces its error immediately).
func (c *Controller) Play(st station.Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playLocked(st, false)
}

// PlayByID plays a station already known to the controller: a pooled
// station or a favorite.
func (c *Controller) PlayByID(stationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.pool {
		if s.ID == stationID {
			c.playLocked(s, false)
			return nil
		}
	}

	favs, err := c.favorites.List()
	if err != nil {
		return errors.Wrap(err, "failed to look up favorites")
	}
	for _, f := range favs {
		if f.Station.ID == stationID {
			c.playLocked(f.Station, false)
			return nil
		}
	}

	return ErrUnknownStation
}

// Shuffle plays a new random station from the pool, refilling the pool
// from the directory when it is empty. Calls inside the debounce window
// are dropped silently. The attempt is marked manual: a failure surfaces
// immediately instead of entering automatic retry.
func (c *Controller) Shuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.config.DebounceWindow > 0 && now.Sub(c.lastShuffle) < c.config.DebounceWindow {
		zlog.Debug().Msg("player: shuffle dropped by debounce")
		return
	}
	c.lastShuffle = now

	c.retryCount = 0
	c.shuffleLocked(true)
}

// TogglePlayPause pauses a playing stream or resumes a paused one.
// No-op without a current station and stream. Manual control always
// takes precedence over automatic recovery, so any pending retry is
// cancelled.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentStation == nil || c.resource == nil {
		return
	}

	c.cancelRetryTimerLocked()

	if c.state.IsPlaying {
		c.resource.Pause()
		c.state.IsPlaying = false
		c.state.Status = StatusPaused
	} else {
		c.resource.Play()
		c.state.IsPlaying = true
		c.state.Status = StatusPlaying
	}
	c.publishLocked()
}

// SetVolume applies v (clamped to [0,1]) to the live stream and, at a
// fixed attenuation, to the tuning effect. The state volume is updated
// even with no active station.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	c.state.Volume = v
	if c.resource != nil {
		c.resource.SetVolume(v)
	}
	c.tuner.SetVolume(v * tunerAttenuation)
	c.publishLocked()
}

// ClearError dismisses the current error without starting another
// attempt: the retry counter resets and any pending automatic retry is
// cancelled.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Error = ""
	c.retryCount = 0
	c.cancelRetryTimerLocked()
	if c.state.Status == StatusFailed {
		c.state.Status = StatusIdle
	}
	c.publishLocked()
}

// AddFavorite persists st as a favorite.
func (c *Controller) AddFavorite(st station.Station) error {
	return c.favorites.Add(st)
}

// RemoveFavorite removes a favorite by station identifier.
func (c *Controller) RemoveFavorite(stationID string) error {
	return c.favorites.Remove(stationID)
}

// IsFavorite reports whether a station is favorited.
func (c *Controller) IsFavorite(stationID string) (bool, error) {
	return c.favorites.Contains(stationID)
}

// Favorites lists all favorited stations.
func (c *Controller) Favorites() ([]station.Favorite, error) {
	return c.favorites.List()
}

// Close releases the controller: the active stream is torn down and the
// state channel closed. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID++ // invalidate in-flight callbacks
	c.cancelLoadTimerLocked()
	c.cancelRetryTimerLocked()
	c.teardownResourceLocked()
	c.tuner.Stop()
	c.closed = true
	close(c.stateCh)
}

// playLocked starts a new session. Must be called with the lock held.
func (c *Controller) playLocked(st station.Station, manual bool) {
	c.sessionID++
	sid := c.sessionID

	// Tear down everything belonging to the superseded session before
	// touching new state: timers, stream bindings, tuning effect.
	c.cancelLoadTimerLocked()
	c.cancelRetryTimerLocked()
	c.teardownResourceLocked()
	c.tuner.Stop()

	c.manualAttempt = manual

	target := st
	c.state.CurrentStation = &target
	c.state.IsPlaying = false
	c.state.IsLoading = true
	c.state.Error = ""
	c.state.Status = StatusLoading
	c.publishLocked()

	zlog.Info().Msgf("player: tuning: session=%d station=%s country=%s manual=%v",
		sid, st.Name, st.Country, manual)

	c.tuner.SetVolume(c.state.Volume * tunerAttenuation)
	c.tuner.Start()

	// Bounded loading window: a stream that never becomes playable is a
	// failure, not a hang.
	c.loadTimerCancel = startTimer(c.config.LoadTimeout, func() {
		c.onLoadTimeout(sid)
	})

	c.resource = c.opener.Open(st.StreamURL(), Handlers{
		OnReady: func() { c.onResourceReady(sid) },
		OnError: func(err error) { c.onResourceError(sid, err) },
	})
}

// shuffleLocked selects a random station and plays it, refilling the
// pool first when needed. Must be called with the lock held.
func (c *Controller) shuffleLocked(manual bool) {
	if len(c.pool) == 0 {
		if err := c.refillPoolLocked(); err != nil {
			zlog.Warn().Msgf("player: pool refill failed: error=%v", err)
		}
	}

	if len(c.pool) == 0 {
		c.failLocked(manual, msgNoStations)
		return
	}

	pick := c.pool[rand.Intn(len(c.pool))]
	c.playLocked(pick, manual)
}

// refillPoolLocked requests a fresh diverse pool from the directory.
func (c *Controller) refillPoolLocked() error {
	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	stations, err := c.directory.GetDiverseStations(ctx, c.config.PoolSize)
	if err != nil {
		return err
	}
	c.pool = stations
	zlog.Info().Msgf("player: station pool refilled: count=%d", len(stations))
	return nil
}

// onResourceReady handles a stream becoming playable.
func (c *Controller) onResourceReady(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sid != c.sessionID {
		zlog.Debug().Msgf("player: discarding ready event from superseded session: session=%d current=%d", sid, c.sessionID)
		return
	}

	c.cancelLoadTimerLocked()
	c.tuner.Stop()

	c.resource.SetVolume(c.state.Volume)
	c.resource.Play()

	c.retryCount = 0
	c.state.IsLoading = false
	c.state.IsPlaying = true
	c.state.Error = ""
	c.state.Status = StatusPlaying
	c.publishLocked()

	st := c.state.CurrentStation
	zlog.Info().Msgf("player: playing: session=%d station=%s", sid, st.Name)

	// Best-effort click report; never surfaces to the user.
	go c.reportPlay(st.ID)
}

// onResourceError handles a stream failure event.
func (c *Controller) onResourceError(sid uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sid != c.sessionID {
		zlog.Debug().Msgf("player: discarding error from superseded session: session=%d current=%d error=%v", sid, c.sessionID, err)
		return
	}

	name := ""
	if c.state.CurrentStation != nil {
		name = c.state.CurrentStation.Name
	}
	zlog.Warn().Msgf("player: stream failed: session=%d station=%s error=%v", sid, name, err)

	c.failLocked(c.manualAttempt, fmt.Sprintf("Could not play %s", name))
}

// onLoadTimeout handles the loading window elapsing before the stream
// became playable.
func (c *Controller) onLoadTimeout(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sid != c.sessionID {
		return
	}

	name := ""
	if c.state.CurrentStation != nil {
		name = c.state.CurrentStation.Name
	}
	zlog.Warn().Msgf("player: load timed out: session=%d station=%s timeout=%v", sid, name, c.config.LoadTimeout)

	c.failLocked(c.manualAttempt, fmt.Sprintf("%s took too long to respond", name))
}

// failLocked runs the failure policy for the current session. Must be
// called with the lock held.
func (c *Controller) failLocked(manual bool, msg string) {
	// The failing session is over. Advancing the id makes any of its
	// still-in-flight events (a late ready, a second error) fall through
	// the session guard instead of acting on torn-down state.
	c.sessionID++

	c.cancelLoadTimerLocked()
	c.teardownResourceLocked()
	c.tuner.Stop()

	c.state.IsPlaying = false
	c.state.IsLoading = false

	// Explicit user intent is never overridden by automatic recovery:
	// a manual attempt surfaces its error and stops.
	if manual {
		c.state.Error = msg
		c.state.Status = StatusIdle
		c.publishLocked()
		return
	}

	c.retryCount++
	if c.retryCount >= c.config.MaxRetries {
		// Circuit breaker against retry storms on a flaky directory.
		zlog.Warn().Msgf("player: retries exhausted: attempts=%d", c.retryCount)
		c.retryCount = 0
		c.state.Error = msgRetryExhausted
		c.state.Status = StatusIdle
		c.publishLocked()
		return
	}

	c.state.Error = fmt.Sprintf("%s, retrying... (%d/%d)", msg, c.retryCount, c.config.MaxRetries)
	c.state.Status = StatusFailed
	c.publishLocked()

	// Linear backoff bounded by the retry cap above.
	delay := c.config.RetryBackoffStep * time.Duration(c.retryCount)
	sid := c.sessionID
	zlog.Info().Msgf("player: scheduling retry: attempt=%d delay=%v", c.retryCount, delay)

	c.retryTimerCancel = startTimer(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		// A manual action taken during the backoff supersedes the retry.
		if sid != c.sessionID {
			return
		}
		c.retryTimerCancel = nil
		c.shuffleLocked(false)
	})
}

// reportPlay registers a click with the directory. Failures are logged
// and dropped.
func (c *Controller) reportPlay(stationID string) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	if err := c.directory.ReportPlay(ctx, stationID); err != nil {
		zlog.Debug().Msgf("player: play report failed: station=%s error=%v", stationID, err)
	}
}

// publishLocked pushes a state snapshot without blocking. Must be called
// with the lock held.
func (c *Controller) publishLocked() {
	if c.closed {
		return
	}
	select {
	case c.stateCh <- c.state:
	default:
		// Channel full; the consumer only cares about the latest state.
	}
}

func (c *Controller) cancelLoadTimerLocked() {
	if c.loadTimerCancel != nil {
		c.loadTimerCancel()
		c.loadTimerCancel = nil
	}
}

func (c *Controller) cancelRetryTimerLocked() {
	if c.retryTimerCancel != nil {
		c.retryTimerCancel()
		c.retryTimerCancel = nil
	}
}

func (c *Controller) teardownResourceLocked() {
	if c.resource != nil {
		c.resource.Close()
		c.resource = nil
	}
}

// startTimer runs fn after d and returns a cancel function. A cancelled
// timer that already fired is rendered moot by the session id check at
// the top of every callback.
func startTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
