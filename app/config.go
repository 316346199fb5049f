package app

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/tunehop/modules/api"
	"github.com/zachfi/tunehop/modules/directory"
	"github.com/zachfi/tunehop/modules/notify"
	"github.com/zachfi/tunehop/modules/player"
	"github.com/zachfi/tunehop/modules/talkkiller"
)

type Config struct {
	Target  string         `yaml:"target"`
	Tracing tracing.Config `yaml:"tracing,omitempty"`
	Server  server.Config  `yaml:"server,omitempty"`

	Directory  directory.Config  `yaml:"directory,omitempty"`
	Player     player.Config     `yaml:"player,omitempty"`
	TalkKiller talkkiller.Config `yaml:"talkkiller,omitempty"`
	API        api.Config        `yaml:"api,omitempty"`
	Notify     notify.Config     `yaml:"notify,omitempty"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 3030, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9090, "gRPC server listen port.")

	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)
	c.Directory.RegisterFlagsAndApplyDefaults("directory", f)
	c.Player.RegisterFlagsAndApplyDefaults("player", f)
	c.TalkKiller.RegisterFlagsAndApplyDefaults("talkkiller", f)
	c.API.RegisterFlagsAndApplyDefaults("api", f)
	c.Notify.RegisterFlagsAndApplyDefaults("notify", f)
}
