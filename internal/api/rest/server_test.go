package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavehop/wavehop/internal/app/player"
	"github.com/wavehop/wavehop/internal/domain/station"
)

// fakePlayer records intent calls and serves canned state.
type fakePlayer struct {
	mu           sync.Mutex
	state        player.State
	shuffleCalls int
	toggleCalls  int
	clearCalls   int
	volume       float64
	playedID     string
	playErr      error
	favorites    map[string]station.Station
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		state:     player.State{Status: player.StatusIdle, Volume: 0.8},
		favorites: make(map[string]station.Station),
	}
}

func (f *fakePlayer) Shuffle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shuffleCalls++
}

func (f *fakePlayer) TogglePlayPause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggleCalls++
}

func (f *fakePlayer) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakePlayer) ClearError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
}

func (f *fakePlayer) PlayByID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playedID = id
	return nil
}

func (f *fakePlayer) Snapshot() player.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePlayer) AddFavorite(st station.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites[st.ID] = st
	return nil
}

func (f *fakePlayer) RemoveFavorite(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.favorites, id)
	return nil
}

func (f *fakePlayer) IsFavorite(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.favorites[id]
	return ok, nil
}

func (f *fakePlayer) Favorites() ([]station.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]station.Favorite, 0, len(f.favorites))
	for _, st := range f.favorites {
		out = append(out, station.Favorite{Station: st, CreatedAt: time.Now()})
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakePlayer, *Hub) {
	t.Helper()
	fp := newFakePlayer()
	hub := NewHub()
	srv := httptest.NewServer(NewServer(fp, hub).Handler())
	t.Cleanup(srv.Close)
	return srv, fp, hub
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleState(t *testing.T) {
	srv, fp, _ := newTestServer(t)
	fp.state.Volume = 0.6

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/state", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got player.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 0.6, got.Volume)
}

func TestHandleShuffle(t *testing.T) {
	srv, fp, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/shuffle", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, fp.shuffleCalls)
}

func TestHandleToggleAndClearError(t *testing.T) {
	srv, fp, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/toggle", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, fp.toggleCalls)

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/error", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, fp.clearCalls)
}

func TestHandleVolume(t *testing.T) {
	srv, fp, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/volume", `{"volume": 0.45}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.45, fp.volume)

	resp = doRequest(t, http.MethodPut, srv.URL+"/api/volume", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlePlay(t *testing.T) {
	srv, fp, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/play/uuid-1", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "uuid-1", fp.playedID)

	fp.playErr = player.ErrUnknownStation
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/play/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFavoritesEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Add
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/favorites",
		`{"id": "s1", "name": "Station One", "country": "Iceland", "url": "https://s1.example.com/stream"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Missing required fields rejected.
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/favorites", `{"name": "no id"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Contains
	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites/s1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var check map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&check))
	assert.True(t, check["favorite"])

	// List
	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var favs []station.Favorite
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&favs))
	assert.Len(t, favs, 1)

	// Remove
	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/favorites/s1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/favorites/s1", "")
	var after map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&after))
	assert.False(t, after["favorite"])
}

func TestWebSocket_PushesSnapshots(t *testing.T) {
	srv, fp, hub := newTestServer(t)
	fp.state.Volume = 0.7

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Initial snapshot arrives immediately on connect.
	var initial player.State
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, 0.7, initial.Volume)

	// Broadcasts reach the subscriber.
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, time.Millisecond)
	hub.Broadcast(player.State{Status: player.StatusPlaying, IsPlaying: true, Volume: 0.7})

	var pushed player.State
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.True(t, pushed.IsPlaying)
	assert.Equal(t, player.StatusPlaying.String(), pushed.Status.String())
}

func TestHub_SubscribeBroadcastUnsubscribe(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	assert.Equal(t, 1, hub.Count())

	hub.Broadcast(player.State{Volume: 0.9})
	select {
	case s := <-ch:
		assert.Equal(t, 0.9, s.Volume)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast")
	}

	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.Count())
	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	hub.Unsubscribe(id)
}
