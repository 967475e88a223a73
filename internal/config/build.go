package config

import (
	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/action"
	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/dispatcher"
	"github.com/lipengyu/lsyncd/internal/mirror"
	"github.com/lipengyu/lsyncd/internal/registry"
)

// Build turns a parsed File into a populated registry.Registry, wiring
// each SyncDecl to a default action.Rsync handler. exits is the channel
// every spawned child's exit is reported on (see dispatcher.ChildExit).
func Build(f *File, clk *clock.Clock, log *logrus.Entry, exits chan<- dispatcher.ChildExit) (*registry.Registry, error) {
	reg := registry.New()

	for _, decl := range f.Syncs {
		rsync := &action.Rsync{
			Command: decl.Command,
			Exits:   exits,
			Log:     log.WithField("sync", decl.Source),
		}

		cfg := mirror.Config{
			Delay:        decl.Delay,
			MaxProcesses: decl.MaxProcesses,
			Action:       rsync.Handle,
		}
		if decl.Startup {
			cfg.Startup = rsync.Startup
		}
		if err := cfg.Validate(); err != nil {
			return nil, &ConfigError{Msg: err.Error()}
		}

		s := mirror.New(decl.Source, decl.Target, cfg, clk, log)
		reg.Add(s)
	}
	return reg, nil
}
