package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:     "compile",
	Aliases: []string{"c"},
	Short:   "Generate the webpack config, run webpack once and store the manifest",
	Long: `Scan the templates, write the generated webpack configuration and run
webpack to completion. The manifest webpack writes is saved to the configured
manifest store so templates can resolve asset URLs.

When no template declares an asset, webpack is not run.

Examples:
  templpack compile
  templpack compile -e prod
  TEMPLPACK_MANIFEST_STORE=sqlite templpack compile`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
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

	sup, err := a.newSupervisor(store, nil, nil)
	if err != nil {
		return err
	}

	return sup.Compile(ctx)
}
