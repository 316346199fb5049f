package notify

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const defaultTopicPrefix = "tunehop"

type Config struct {
	// Broker is the MQTT broker URL, e.g. tcp://localhost:1883. Empty
	// disables the notifier.
	Broker string `yaml:"broker,omitempty"`

	TopicPrefix string `yaml:"topic-prefix,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Broker, util.PrefixConfig(prefix, "broker"), "",
		"MQTT broker URL. Empty disables failover notifications.")
	f.StringVar(&cfg.TopicPrefix, util.PrefixConfig(prefix, "topic-prefix"), defaultTopicPrefix,
		"Topic prefix for published events.")
	f.StringVar(&cfg.Username, util.PrefixConfig(prefix, "username"), "", "MQTT username.")
	f.StringVar(&cfg.Password, util.PrefixConfig(prefix, "password"), "", "MQTT password.")
}
