package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templpack/internal/supervisor"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Run webpack in watch mode and follow template changes",
	Long: `Run webpack --watch against the generated configuration. The templates are
checked every watch.interval; when the set of assets changes the configuration
is rewritten and webpack restarted. Each manifest webpack writes is saved to
the manifest store.

With watch.notify enabled, template file events trigger the check right away.
With watch.reload.address set, browsers connected to the reload websocket are
told about every saved manifest.

Examples:
  templpack watch
  TEMPLPACK_WATCH_NOTIFY=true templpack watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSupervised(supervisor.ModeWatch)
	},
}

var devServerCmd = &cobra.Command{
	Use:     "dev-server",
	Aliases: []string{"server", "s"},
	Short:   "Run webpack-dev-server and follow template changes",
	Long: `Run webpack-dev-server against the generated configuration, restarting it
whenever the set of assets declared in templates changes.

On a terminal the server is wrapped in webpack-dashboard unless
bin.dashboard.mode is disabled.

Examples:
  templpack dev-server
  TEMPLPACK_BIN_DASHBOARD_MODE=disabled templpack dev-server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSupervised(supervisor.ModeServer)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(devServerCmd)
}

func runSupervised(mode supervisor.Mode) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	wake, stopWatcher, err := a.startTemplateWatcher(ctx)
	if err != nil {
		return err
	}
	defer stopWatcher()

	onSaved, stopReload, err := a.startReloadServer(store)
	if err != nil {
		return err
	}
	defer stopReload()

	sup, err := a.newSupervisor(store, wake, onSaved)
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "Watching templates", "mode", string(mode), "interval", a.cfg.Watch.Interval.String())

	return sup.Watch(ctx, mode)
}
