package directory

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/tunehop/modules/talkkiller"
)

// State is the mutable, user-owned part of the directory, persisted across
// restarts. The fallback list is ordered; duplicates are harmless and kept.
type State struct {
	Favourites []string             `yaml:"favourites,omitempty"`
	Fallback   []string             `yaml:"fallback,omitempty"`
	TalkKiller *talkkiller.Settings `yaml:"talk-killer,omitempty"`
}

type stationsFile struct {
	Stations []Station `yaml:"stations"`
}

func loadStations(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading stations file")
	}

	var f stationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing stations file")
	}

	for _, st := range f.Stations {
		if st.ID == "" || st.StreamURL == "" {
			return nil, errors.Errorf("station %q needs both id and stream-url", st.Name)
		}
	}

	return f.Stations, nil
}

// loadState reads the persisted state. A missing file is not an error; the
// zero State is returned.
func loadState(path string) (State, error) {
	var s State

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, errors.Wrap(err, "reading state file")
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrap(err, "parsing state file")
	}

	return s, nil
}

// saveState writes the state atomically: marshal to a temp file in the same
// directory, then rename over the destination.
func saveState(path string, s State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshalling state")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tunehop-state-*.yml")
	if err != nil {
		return errors.Wrap(err, "creating temp state file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "writing temp state file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "closing temp state file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "replacing state file")
	}

	return nil
}
