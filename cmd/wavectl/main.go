// Package main provides a command line client for the wavehop server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/wavehop/wavehop/internal/app/player"
	"github.com/wavehop/wavehop/internal/domain/station"
)

var (
	app    = kingpin.New("wavectl", "wavehop radio shuffle client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// playback commands
	shuffleCmd = app.Command("shuffle", "Shuffle to a random station")
	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	stateCmd   = app.Command("state", "Print the current player state")
	clearCmd   = app.Command("clear", "Clear the displayed error")

	playCmd = app.Command("play", "Play a specific station")
	playID  = playCmd.Arg("id", "Station ID").Required().String()

	volumeCmd = app.Command("volume", "Set playback volume")
	volumeVal = volumeCmd.Arg("level", "Volume between 0.0 and 1.0").Required().Float64()

	// favorites commands
	favCmd    = app.Command("favorites", "List favorite stations")
	addFavCmd = app.Command("favorite", "Favorite the currently playing station")
	unfavCmd  = app.Command("unfavorite", "Remove a favorite station")
	unfavID   = unfavCmd.Arg("id", "Station ID").Required().String()

	// watch command
	watchCmd = app.Command("watch", "Stream state changes over WebSocket")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case shuffleCmd.FullCommand():
		state := do(http.MethodPost, "/api/shuffle", nil)
		printState(state)
	case toggleCmd.FullCommand():
		state := do(http.MethodPost, "/api/toggle", nil)
		printState(state)
	case stateCmd.FullCommand():
		state := do(http.MethodGet, "/api/state", nil)
		printState(state)
	case clearCmd.FullCommand():
		state := do(http.MethodDelete, "/api/error", nil)
		printState(state)
	case playCmd.FullCommand():
		state := do(http.MethodPost, "/api/play/"+*playID, nil)
		printState(state)
	case volumeCmd.FullCommand():
		body := map[string]float64{"volume": *volumeVal}
		state := do(http.MethodPut, "/api/volume", body)
		printState(state)
	case favCmd.FullCommand():
		listFavorites()
	case addFavCmd.FullCommand():
		addFavorite()
	case unfavCmd.FullCommand():
		request(http.MethodDelete, "/api/favorites/"+*unfavID, nil)
		fmt.Println("Removed.")
	case watchCmd.FullCommand():
		watch()
	}
}

// request performs an HTTP request against the server and returns the
// response body. Any error or non-2xx status terminates the process.
func request(method, path string, body any) []byte {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, *server+path, reader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode >= 300 {
		fmt.Printf("Error: server returned %s: %s\n", resp.Status, strings.TrimSpace(string(data)))
		os.Exit(1)
	}
	return data
}

func do(method, path string, body any) player.State {
	data := request(method, path, body)

	var state player.State
	if err := json.Unmarshal(data, &state); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return state
}

func printState(s player.State) {
	fmt.Printf("Status:  %s\n", s.Status)
	fmt.Printf("Volume:  %.2f\n", s.Volume)
	if s.CurrentStation != nil {
		fmt.Printf("Station: %s (%s)\n", s.CurrentStation.Name, s.CurrentStation.Country)
		fmt.Printf("Stream:  %s\n", s.CurrentStation.StreamURL())
	}
	if s.Error != "" {
		fmt.Printf("Error:   %s\n", s.Error)
	}
}

// addFavorite favorites whatever station is currently playing.
func addFavorite() {
	state := do(http.MethodGet, "/api/state", nil)
	if state.CurrentStation == nil {
		fmt.Println("Nothing is playing.")
		os.Exit(1)
	}

	request(http.MethodPost, "/api/favorites", state.CurrentStation)
	fmt.Printf("Favorited %s.\n", state.CurrentStation.Name)
}

func listFavorites() {
	data := request(http.MethodGet, "/api/favorites", nil)

	var favs []station.Favorite
	if err := json.Unmarshal(data, &favs); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(favs) == 0 {
		fmt.Println("No favorites yet.")
		return
	}
	for _, f := range favs {
		fmt.Printf("  %-36s %-30s %s\n", f.Station.ID, f.Station.Name, f.Station.Country)
	}
}

// watch subscribes to the state stream and prints each snapshot.
func watch() {
	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Watching player state. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		conn.Close()
		os.Exit(0)
	}()

	for {
		var state player.State
		if err := conn.ReadJSON(&state); err != nil {
			fmt.Printf("Stream error: %v\n", err)
			return
		}
		fmt.Println("---")
		printState(state)
	}
}
