package radiobrowser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(mirrors []string, countries []string) *Client {
	c := New(Config{
		Mirrors:    mirrors,
		Countries:  countries,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})
	c.retryDelay = time.Millisecond
	return c
}

func stationJSON(uuid, name, country, urlStr string) string {
	return fmt.Sprintf(`{
		"stationuuid": "%s",
		"name": "%s",
		"country": "%s",
		"tags": "pop,rock",
		"url": "%s",
		"url_resolved": "%s"
	}`, uuid, name, country, urlStr, urlStr)
}

func TestGetRandomStations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/stations/search", r.URL.Path)
		assert.Equal(t, "random", r.URL.Query().Get("order"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("hidebroken"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s,%s]",
			stationJSON("uuid-1", "Station One", "Germany", "https://s1.example.com/stream"),
			stationJSON("uuid-2", "Station Two", "France", "https://s2.example.com/stream"),
		)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, nil)

	stations, err := client.GetRandomStations(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "uuid-1", stations[0].ID)
	assert.Equal(t, "Station One", stations[0].Name)
	assert.Equal(t, []string{"pop", "rock"}, stations[0].Tags)
}

func TestGetStationsByCountry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Japan", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", stationJSON("uuid-jp", "Tokyo FM", "Japan", "https://jp.example.com/stream"))
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, nil)

	stations, err := client.GetStationsByCountry(context.Background(), "Japan", 5)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "Japan", stations[0].Country)

	_, err = client.GetStationsByCountry(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestMirrorFailover(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	var goodCalls int
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", stationJSON("uuid-ok", "Survivor FM", "Austria", "https://ok.example.com/stream"))
	}))
	defer good.Close()

	client := newTestClient([]string{bad.URL, good.URL}, nil)

	stations, err := client.GetRandomStations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "uuid-ok", stations[0].ID)
	assert.Equal(t, 1, goodCalls)
}

func TestAllMirrorsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	client := newTestClient([]string{bad.URL}, nil)

	_, err := client.GetRandomStations(context.Background(), 1)
	assert.Error(t, err)
}

func TestGetDiverseStations_PartialCountryFailure(t *testing.T) {
	// One country endpoint fails, the rest succeed; the aggregate call
	// must still return a pool.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		country := r.URL.Query().Get("country")
		if country == "Broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s,%s]",
			stationJSON("uuid-"+country+"-1", country+" One", country, "https://a.example.com/"+country),
			stationJSON("uuid-"+country+"-2", country+" Two", country, "https://b.example.com/"+country),
		)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, []string{"Alpha", "Broken", "Beta"})

	stations, err := client.GetDiverseStations(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, stations, 4)
	for _, s := range stations {
		assert.NotEqual(t, "Broken", s.Country)
	}
}

func TestGetDiverseStations_Backfill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if country := r.URL.Query().Get("country"); country != "" {
			// Diverse fan-out comes up almost empty.
			fmt.Fprintf(w, "[%s]", stationJSON("uuid-"+country, country+" FM", country, "https://c.example.com/"+country))
			return
		}
		// Random backfill request.
		fmt.Fprintf(w, "[%s,%s,%s]",
			stationJSON("uuid-r1", "Random One", "Chile", "https://r1.example.com/stream"),
			stationJSON("uuid-r2", "Random Two", "Kenya", "https://r2.example.com/stream"),
			stationJSON("uuid-r3", "Random Three", "Norway", "https://r3.example.com/stream"),
		)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, []string{"Alpha"})

	stations, err := client.GetDiverseStations(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, stations, 4)

	seen := make(map[string]bool)
	for _, s := range stations {
		assert.False(t, seen[s.ID], "station %s duplicated", s.ID)
		seen[s.ID] = true
	}
}

func TestGetDiverseStations_NothingAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[]")
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, []string{"Alpha"})

	_, err := client.GetDiverseStations(context.Background(), 4)
	assert.Error(t, err)
}

func TestReportPlay(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer server.Close()

	client := newTestClient([]string{server.URL}, nil)

	err := client.ReportPlay(context.Background(), "uuid-123")
	require.NoError(t, err)
	assert.Equal(t, "/json/url/uuid-123", path)

	assert.Error(t, client.ReportPlay(context.Background(), ""))
}
