package directory

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultSearchURL     = "https://de1.api.radio-browser.info"
	defaultSearchTimeout = 10 * time.Second
	defaultSearchLimit   = 25
)

type Config struct {
	// StationsFile is the yaml file holding the station directory.
	StationsFile string `yaml:"stations-file,omitempty"`

	// StateFile persists the mutable state: favourites, the fallback list
	// and the talk-killer settings.
	StateFile string `yaml:"state-file,omitempty"`

	SearchURL     string        `yaml:"search-url,omitempty"`
	SearchTimeout time.Duration `yaml:"search-timeout,omitempty"`
	SearchLimit   int           `yaml:"search-limit,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.StationsFile, util.PrefixConfig(prefix, "stations-file"), "stations.yml",
		"YAML file holding the station directory.")
	f.StringVar(&cfg.StateFile, util.PrefixConfig(prefix, "state-file"), "tunehop-state.yml",
		"YAML file persisting favourites, fallback list and talk-killer settings.")
	f.StringVar(&cfg.SearchURL, util.PrefixConfig(prefix, "search-url"), defaultSearchURL,
		"Base URL of the radio-browser search provider.")
	f.DurationVar(&cfg.SearchTimeout, util.PrefixConfig(prefix, "search-timeout"), defaultSearchTimeout,
		"Timeout for search provider requests.")
	f.IntVar(&cfg.SearchLimit, util.PrefixConfig(prefix, "search-limit"), defaultSearchLimit,
		"Maximum results returned per search.")
}
