package rest

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/wavehop/wavehop/internal/app/player"
	"github.com/wavehop/wavehop/internal/domain/station"
)

// Player is the controller surface the API forwards user intents to.
type Player interface {
	Shuffle()
	TogglePlayPause()
	SetVolume(v float64)
	ClearError()
	PlayByID(stationID string) error
	Snapshot() player.State
	AddFavorite(st station.Station) error
	RemoveFavorite(stationID string) error
	IsFavorite(stationID string) (bool, error)
	Favorites() ([]station.Favorite, error)
}

// Server serves the presentation-facing API.
type Server struct {
	echo     *echo.Echo
	player   Player
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer creates the API server and registers its routes.
func NewServer(p Player, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		player: p,
		hub:    hub,
		upgrader: websocket.Upgrader{
			// The daemon is local; the browser UI may be served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	api := e.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/shuffle", s.handleShuffle)
	api.POST("/toggle", s.handleToggle)
	api.PUT("/volume", s.handleVolume)
	api.POST("/play/:id", s.handlePlay)
	api.DELETE("/error", s.handleClearError)
	api.GET("/favorites", s.handleListFavorites)
	api.POST("/favorites", s.handleAddFavorite)
	api.GET("/favorites/:id", s.handleIsFavorite)
	api.DELETE("/favorites/:id", s.handleRemoveFavorite)

	e.GET("/ws", s.handleWebSocket)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.player.Snapshot())
}

func (s *Server) handleShuffle(c echo.Context) error {
	s.player.Shuffle()
	return c.JSON(http.StatusAccepted, s.player.Snapshot())
}

func (s *Server) handleToggle(c echo.Context) error {
	s.player.TogglePlayPause()
	return c.JSON(http.StatusOK, s.player.Snapshot())
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

func (s *Server) handleVolume(c echo.Context) error {
	var req volumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid volume payload")
	}
	s.player.SetVolume(req.Volume)
	return c.JSON(http.StatusOK, s.player.Snapshot())
}

func (s *Server) handlePlay(c echo.Context) error {
	if err := s.player.PlayByID(c.Param("id")); err != nil {
		if errors.Is(err, player.ErrUnknownStation) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown station")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, s.player.Snapshot())
}

func (s *Server) handleClearError(c echo.Context) error {
	s.player.ClearError()
	return c.JSON(http.StatusOK, s.player.Snapshot())
}

func (s *Server) handleListFavorites(c echo.Context) error {
	favs, err := s.player.Favorites()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, favs)
}

type favoriteRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Country     string   `json:"country"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	ResolvedURL string   `json:"resolvedUrl"`
}

func (s *Server) handleAddFavorite(c echo.Context) error {
	var req favoriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid station payload")
	}
	if req.ID == "" || req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "station id and url are required")
	}

	err := s.player.AddFavorite(station.Station{
		ID:          req.ID,
		Name:        req.Name,
		Country:     req.Country,
		Tags:        req.Tags,
		URL:         req.URL,
		ResolvedURL: req.ResolvedURL,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleIsFavorite(c echo.Context) error {
	ok, err := s.player.IsFavorite(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"favorite": ok})
}

func (s *Server) handleRemoveFavorite(c echo.Context) error {
	if err := s.player.RemoveFavorite(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// handleWebSocket upgrades the connection and pushes a state snapshot on
// every mutation, starting with the current state.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "websocket upgrade failed")
	}
	defer conn.Close()

	id, states := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	zlog.Debug().Msgf("api: websocket subscriber connected: id=%s", id)

	if err := conn.WriteJSON(s.player.Snapshot()); err != nil {
		return nil
	}

	// Reads only serve to detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(state); err != nil {
				return nil
			}
		}
	}
}
