package api

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const defaultWriteTimeout = 10 * time.Second

type Config struct {
	// WriteTimeout bounds each websocket write; a client that cannot keep
	// up with the tick feed is disconnected.
	WriteTimeout time.Duration `yaml:"write-timeout,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.WriteTimeout, util.PrefixConfig(prefix, "write-timeout"), defaultWriteTimeout,
		"Write timeout for websocket event delivery.")
}
