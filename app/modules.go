package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/tunehop/modules/api"
	"github.com/zachfi/tunehop/modules/directory"
	"github.com/zachfi/tunehop/modules/notify"
	"github.com/zachfi/tunehop/modules/player"
	"github.com/zachfi/tunehop/modules/talkkiller"
)

const (
	Server string = "server"

	Directory  string = "directory"
	Player     string = "player"
	TalkKiller string = "talkkiller"
	API        string = "api"
	Notify     string = "notify"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Directory, a.initDirectory)
	mm.RegisterModule(Player, a.initPlayer)
	mm.RegisterModule(TalkKiller, a.initTalkKiller)
	mm.RegisterModule(API, a.initAPI)
	mm.RegisterModule(Notify, a.initNotify)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		Player:     {Directory},
		TalkKiller: {Player, Directory},
		API:        {Server, Player, TalkKiller, Directory},
		Notify:     {TalkKiller},

		All: {API, Notify},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initDirectory() (services.Service, error) {
	d, err := directory.New(a.cfg.Directory, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init directory")
	}
	a.directory = d

	return d, nil
}

func (a *App) initPlayer() (services.Service, error) {
	p, err := player.New(a.cfg.Player, a.logger, a.directory, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init player")
	}
	a.player = p

	return p, nil
}

func (a *App) initTalkKiller() (services.Service, error) {
	// Persisted settings win over configured defaults.
	initial, ok := a.directory.TalkKillerSettings()
	if !ok {
		initial = a.cfg.TalkKiller.Defaults
	}

	d, err := talkkiller.New(a.cfg.TalkKiller, a.logger, a.player, a.directory, initial, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init talkkiller")
	}
	a.detector = d

	return d, nil
}

func (a *App) initAPI() (services.Service, error) {
	m, err := api.New(a.cfg.API, a.logger, a.Server.HTTP, a.player, a.detector, a.directory)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init api")
	}

	return m, nil
}

func (a *App) initNotify() (services.Service, error) {
	n, err := notify.New(a.cfg.Notify, a.logger, a.detector)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init notify")
	}

	return n, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.NewLogfmtLogger(os.Stderr)

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		slog.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
