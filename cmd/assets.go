package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/templpack/internal/bundleconfig"
	"github.com/conneroisu/templpack/internal/errors"
)

var assetsFormat string

var assetsCmd = &cobra.Command{
	Use:     "assets",
	Aliases: []string{"ls"},
	Short:   "List the assets declared in templates",
	Long: `Scan the configured template directories and list every declared asset
with its group, its webpack entry name and the module it resolves to.

Examples:
  templpack assets
  templpack assets -f json
  templpack assets -f yaml`,
	RunE: runAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().StringVarP(&assetsFormat, "format", "f", "table", "Output format (table, json, yaml)")
}

// assetInfo is one row of the assets listing.
type assetInfo struct {
	Resource string `json:"resource" yaml:"resource"`
	Group    string `json:"group" yaml:"group"`
	Name     string `json:"name" yaml:"name"`
	Module   string `json:"module,omitempty" yaml:"module,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runAssets(cmd *cobra.Command, args []string) error {
	if err := validateFormat(assetsFormat, "table", "json", "yaml"); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	infos, err := a.listAssets(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch assetsFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(infos)
	default:
		return a.outputAssetTable(out, infos)
	}
}

func (a *app) listAssets(ctx context.Context) ([]assetInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	collection, err := a.provider.Collect(ctx, nil)
	if err != nil {
		return nil, err
	}

	infos := make([]assetInfo, 0, len(collection.Assets))
	for _, asset := range collection.Assets {
		info := assetInfo{Resource: asset.Resource, Group: asset.Group, Name: a.namer.Name(asset.Resource)}
		if info.Group == "" {
			info.Group = bundleconfig.DefaultGroup
		}

		module, err := a.resolver.Resolve(asset.Resource)
		switch {
		case err == nil:
			info.Module = module
		case errors.IsAssetNotFound(err):
			info.Error = err.Error()
		default:
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (a *app) outputAssetTable(out io.Writer, infos []assetInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No assets found.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RESOURCE\tGROUP\tNAME\tMODULE")
		for _, info := range infos {
			module := info.Module
			if info.Error != "" {
				module = "(not found)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Resource, info.Group, info.Name, module)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	reports := a.reports.Reports()
	if len(reports) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\n%d template problem(s):\n", len(reports))
	seen := make(map[string]bool)
	for _, r := range reports {
		if seen[r.FilePath] {
			continue
		}
		seen[r.FilePath] = true

		file := r.FilePath
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(out, "  %s\n", file)
		for _, fr := range a.reports.ReportsByFile(r.FilePath) {
			if fr.Line > 0 {
				fmt.Fprintf(out, "    line %d: %v\n", fr.Line, fr.Err)
			} else {
				fmt.Fprintf(out, "    %v\n", fr.Err)
			}
		}
	}

	return nil
}

func validateFormat(format string, supported ...string) error {
	for _, s := range supported {
		if format == s {
			return nil
		}
	}

	return fmt.Errorf("unsupported format: %s (supported: %v)", format, supported)
}
