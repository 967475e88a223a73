// Command lsyncd is the live directory mirroring daemon described by
// spec.md: it loads a set of Sync declarations, watches their source
// trees for filesystem modifications, and replicates those changes to
// the configured targets by spawning rsync child processes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/config"
	"github.com/lipengyu/lsyncd/internal/dispatcher"
	"github.com/lipengyu/lsyncd/internal/logging"
	"github.com/lipengyu/lsyncd/internal/status"
	"github.com/lipengyu/lsyncd/internal/watch"
)

// version is set by the release build via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:   "lsyncd",
		Short: "Live directory mirroring daemon",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/lsyncd.toml", "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override settings.log_level from the config file (debug|normal|error)")

	root.AddCommand(newRunCmd(&configPath, &logLevel))
	root.AddCommand(newStatusCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lsyncd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the status report for a running daemon's status file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if f.Settings.StatusFile == "" {
				return fmt.Errorf("settings.status_file is not configured")
			}
			data, err := os.ReadFile(f.Settings.StatusFile)
			if err != nil {
				return fmt.Errorf("read status file: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newRunCmd(configPath, logLevel *string) *cobra.Command {
	var nodaemon bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mirroring daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, *logLevel, nodaemon)
		},
	}
	cmd.Flags().BoolVar(&nodaemon, "nodaemon", true, "run in the foreground (backgrounding is not implemented; always true)")
	return cmd
}

func run(configPath, logLevelOverride string, _ bool) error {
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := f.Settings.LogLevel
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	baseLogger := logging.New(level)
	log := baseLogger.WithField("daemon", "lsyncd")

	clk := clock.New()
	exits := make(chan dispatcher.ChildExit, 64)

	reg, err := config.Build(f, clk, log, exits)
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		return fmt.Errorf("configuration declares no [[sync]] entries")
	}

	var fatalErr error
	wm, err := watch.New(clk, log, func(overflowErr error) {
		fatalErr = overflowErr
		logging.Fatal(log, "inotify event queue overflowed; terminating", map[string]interface{}{"error": overflowErr.Error()})
	})
	if err != nil {
		return fmt.Errorf("initialize watch manager: %w", err)
	}
	defer wm.Close()

	// Arm watches before running startup syncs (spec.md §4.4).
	for _, s := range reg.All() {
		wm.Add(s, "", true)
	}

	disp := dispatcher.New(reg, clk, log)
	if f.Settings.ShutdownTimeout > 0 {
		disp.SetDrainTimeout(time.Duration(f.Settings.ShutdownTimeout * float64(time.Second)))
	}
	if err := disp.RunStartup(); err != nil {
		return fmt.Errorf("startup phase failed: %w", err)
	}

	if f.Settings.Pidfile != "" {
		if err := os.WriteFile(f.Settings.Pidfile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			logging.Log(log, logging.Error, "failed to write pidfile", logrus.Fields{"error": err.Error()})
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				writeStatusFile(f.Settings.StatusFile, wm, clk.Now(), log)
			default:
				logging.Log(log, logging.Normal, "received shutdown signal", logrus.Fields{"signal": sig.String()})
				cancel()
				return
			}
		}
	}()

	disp.Run(ctx, wm, exits)

	if fatalErr != nil {
		return fatalErr
	}
	return nil
}

func writeStatusFile(path string, wm *watch.Manager, now clock.Time, log *logrus.Entry) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		logging.Log(log, logging.Error, "failed to write status file", logrus.Fields{"error": err.Error()})
		return
	}
	defer f.Close()
	if err := status.Write(f, wm, now); err != nil {
		logging.Log(log, logging.Error, "failed to render status report", logrus.Fields{"error": err.Error()})
	}
}
