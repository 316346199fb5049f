package api

import (
	"context"
	"log/slog"

	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/tunehop/modules/directory"
	"github.com/zachfi/tunehop/modules/player"
	"github.com/zachfi/tunehop/modules/talkkiller"
)

var module = "api"

// PlayerControl is the playback surface exposed over HTTP.
type PlayerControl interface {
	CurrentStationID() string
	IsPlaying() bool
	SwitchTo(id string) error
	Play() error
	Pause() error
	NowPlaying() player.NowPlaying
	Relay() player.ByteTap
}

// Detector is the talk-killer surface exposed over HTTP.
type Detector interface {
	Settings() *talkkiller.SettingsStore
	Subscribe() *talkkiller.Subscription
	Unsubscribe(*talkkiller.Subscription)
}

// StationDirectory is the directory surface exposed over HTTP.
type StationDirectory interface {
	Stations() []directory.Station
	Filter(query string) []directory.Station
	Favourites() []string
	AddFavourite(id string) error
	RemoveFavourite(id string) error
	FallbackList() []string
	SetFallbackList(ids []string) error
	SaveTalkKillerSettings(s talkkiller.Settings) error
	Search(ctx context.Context, query string) ([]directory.Station, error)
}

// API registers the HTTP and websocket surface on the shared server router.
type API struct {
	services.Service

	cfg    *Config
	logger *slog.Logger

	player    PlayerControl
	detector  Detector
	directory StationDirectory
}

// New creates the API and registers its routes.
func New(cfg Config, logger slog.Logger, router *mux.Router, p PlayerControl, d Detector, dir StationDirectory) (*API, error) {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	a := &API{
		cfg:       &cfg,
		logger:    logger.With("module", module),
		player:    p,
		detector:  d,
		directory: dir,
	}

	a.registerRoutes(router)

	a.Service = services.NewBasicService(nil, a.running, nil)

	return a, nil
}

func (a *API) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (a *API) registerRoutes(router *mux.Router) {
	router.HandleFunc("/api/stations", a.handleStations)
	router.HandleFunc("/api/search", a.handleSearch)
	router.HandleFunc("/api/settings", a.handleSettings)
	router.HandleFunc("/api/fallback", a.handleFallback)
	router.HandleFunc("/api/favourites", a.handleFavourites)
	router.HandleFunc("/api/nowplaying", a.handleNowPlaying)
	router.HandleFunc("/api/player/play", a.handlePlay)
	router.HandleFunc("/api/player/pause", a.handlePause)
	router.HandleFunc("/api/player/switch", a.handleSwitch)
	router.HandleFunc("/api/events", a.handleEvents)
	router.HandleFunc("/stream", a.handleStream)
}
