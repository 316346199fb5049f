package directory

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/tunehop/modules/talkkiller"
)

var module = "directory"

// Station is one entry of the station directory. The detection core treats
// the ID as opaque; only the player dereferences the stream URL.
type Station struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	StreamURL string `yaml:"stream-url" json:"streamUrl"`
	Genre     string `yaml:"genre,omitempty" json:"genre,omitempty"`
	Homepage  string `yaml:"homepage,omitempty" json:"homepage,omitempty"`
}

// Directory serves the station catalog and owns the persisted user state:
// favourites, the ordered fallback list and the talk-killer settings. Files
// are loaded at construction so dependent modules can read them during
// wiring; every mutation is persisted immediately.
type Directory struct {
	services.Service

	cfg      *Config
	logger   *slog.Logger
	searcher Searcher

	mu       sync.RWMutex
	stations []Station
	byID     map[string]Station
	state    State
}

// New loads the stations and state files and returns the directory.
func New(cfg Config, logger slog.Logger) (*Directory, error) {
	d := &Directory{
		cfg:    &cfg,
		logger: logger.With("module", module),
		byID:   make(map[string]Station),
	}

	stations, err := loadStations(cfg.StationsFile)
	if err != nil {
		return nil, err
	}
	d.stations = stations
	for _, st := range stations {
		d.byID[st.ID] = st
	}

	if d.state, err = loadState(cfg.StateFile); err != nil {
		return nil, err
	}

	d.searcher = NewRadioBrowser(cfg.SearchURL, cfg.SearchTimeout, d.logger)

	d.Service = services.NewBasicService(nil, d.running, d.stopping)

	return d, nil
}

func (d *Directory) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (d *Directory) stopping(_ error) error {
	return d.save()
}

// Stations returns the full directory.
func (d *Directory) Stations() []Station {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Station, len(d.stations))
	copy(out, d.stations)
	return out
}

// Filter returns stations whose name or genre contains the query,
// case-insensitively. An empty query returns everything.
func (d *Directory) Filter(query string) []Station {
	if query == "" {
		return d.Stations()
	}

	q := strings.ToLower(query)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Station
	for _, st := range d.stations {
		if strings.Contains(strings.ToLower(st.Name), q) || strings.Contains(strings.ToLower(st.Genre), q) {
			out = append(out, st)
		}
	}
	return out
}

// Lookup resolves a station ID.
func (d *Directory) Lookup(id string) (Station, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.byID[id]
	return st, ok
}

// Favourites returns the favourite station IDs.
func (d *Directory) Favourites() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.state.Favourites...)
}

// AddFavourite appends a station to the favourites. Adding an existing
// favourite is a no-op.
func (d *Directory) AddFavourite(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, f := range d.state.Favourites {
		if f == id {
			return nil
		}
	}
	d.state.Favourites = append(d.state.Favourites, id)
	return d.saveLocked()
}

// RemoveFavourite removes a station from the favourites.
func (d *Directory) RemoveFavourite(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.state.Favourites[:0]
	for _, f := range d.state.Favourites {
		if f != id {
			kept = append(kept, f)
		}
	}
	d.state.Favourites = kept
	return d.saveLocked()
}

// FallbackList returns the ordered fallback rotation.
func (d *Directory) FallbackList() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.state.Fallback...)
}

// SetFallbackList replaces the fallback rotation. Order matters; duplicates
// are kept as given.
func (d *Directory) SetFallbackList(ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Fallback = append([]string(nil), ids...)
	return d.saveLocked()
}

// TalkKillerSettings returns the persisted settings, or ok=false when none
// have been saved yet.
func (d *Directory) TalkKillerSettings() (talkkiller.Settings, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state.TalkKiller == nil {
		return talkkiller.Settings{}, false
	}
	return *d.state.TalkKiller, true
}

// SaveTalkKillerSettings persists new settings. Validation is the caller's
// concern (the settings store validates on update).
func (d *Directory) SaveTalkKillerSettings(s talkkiller.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.TalkKiller = &s
	return d.saveLocked()
}

// Search queries the external search provider.
func (d *Directory) Search(ctx context.Context, query string) ([]Station, error) {
	if d.searcher == nil {
		return nil, errors.New("search provider not configured")
	}
	return d.searcher.Search(ctx, query, d.cfg.SearchLimit)
}

func (d *Directory) save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked()
}

func (d *Directory) saveLocked() error {
	if err := saveState(d.cfg.StateFile, d.state); err != nil {
		d.logger.Error("failed to persist state", "err", err)
		return err
	}
	return nil
}
