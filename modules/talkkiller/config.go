package talkkiller

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultBins      = 1024
	defaultTapBuffer = 64
)

type Config struct {
	// Bins is the number of frequency bins per spectrum snapshot. Must be a
	// power of two.
	Bins int `yaml:"bins,omitempty"`

	// TapBuffer is the frame capacity of the PCM tap between the player and
	// the detector. When full, frames are dropped, never the player blocked.
	TapBuffer int `yaml:"tap-buffer,omitempty"`

	// Defaults seed the settings store when the state file carries no
	// persisted settings yet.
	Defaults Settings `yaml:"defaults,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.Bins, util.PrefixConfig(prefix, "bins"), defaultBins,
		"Frequency bins per spectrum snapshot (power of two).")
	f.IntVar(&cfg.TapBuffer, util.PrefixConfig(prefix, "tap-buffer"), defaultTapBuffer,
		"PCM frames buffered between player and detector.")
	f.BoolVar(&cfg.Defaults.Enabled, util.PrefixConfig(prefix, "enabled"), false,
		"Enable the talk killer by default.")
	f.Float64Var(&cfg.Defaults.SpeechSeconds, util.PrefixConfig(prefix, "speech-seconds"), 6,
		"Seconds of sustained speech before switching stations (2-20).")
	f.Float64Var(&cfg.Defaults.Sensitivity, util.PrefixConfig(prefix, "sensitivity"), 0.6,
		"Minimum speech score classified as speech (0-1).")
	f.Float64Var(&cfg.Defaults.CooldownSeconds, util.PrefixConfig(prefix, "cooldown-seconds"), 20,
		"Minimum seconds between automatic switches (5-60).")
}
