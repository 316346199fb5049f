package player

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultReconnectInitial = 5 * time.Second
	defaultReconnectMax     = 60 * time.Second
	defaultFrameSize        = 512
	defaultRelayBuffer      = 256
)

type Config struct {
	// DefaultStation is the station ID to tune on startup.
	DefaultStation string `yaml:"default-station,omitempty"`

	// Autoplay starts playback immediately when a default station is set.
	Autoplay bool `yaml:"autoplay,omitempty"`

	// FrameSize is the number of PCM samples per decoded frame handed to
	// analysis taps.
	FrameSize int `yaml:"frame-size,omitempty"`

	// RelayBuffer is the chunk capacity of each HTTP relay listener.
	RelayBuffer int `yaml:"relay-buffer,omitempty"`

	ReconnectBackoff    time.Duration `yaml:"reconnect-backoff,omitempty"`     // initial delay before reconnecting after disconnect
	ReconnectBackoffMax time.Duration `yaml:"reconnect-backoff-max,omitempty"` // cap on reconnect delay (exponential backoff)
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.DefaultStation, util.PrefixConfig(prefix, "default-station"), "",
		"Station ID to tune on startup.")
	f.BoolVar(&cfg.Autoplay, util.PrefixConfig(prefix, "autoplay"), false,
		"Start playing the default station immediately.")
	f.IntVar(&cfg.FrameSize, util.PrefixConfig(prefix, "frame-size"), defaultFrameSize,
		"PCM samples per decoded frame.")
	f.IntVar(&cfg.RelayBuffer, util.PrefixConfig(prefix, "relay-buffer"), defaultRelayBuffer,
		"Chunks buffered per HTTP relay listener.")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectInitial,
		"Initial delay before reconnecting after stream disconnect. Exponential backoff is used up to reconnect-backoff-max.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax,
		"Maximum delay between reconnection attempts.")
}
