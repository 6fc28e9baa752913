package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/templpack/internal/manifest"
)

var (
	manifestFormat string
	manifestQuery  string
	manifestAsset  string
	manifestType   string
	manifestNamed  bool
)

var manifestCmd = &cobra.Command{
	Use:     "manifest",
	Aliases: []string{"m"},
	Short:   "Print the stored webpack manifest",
	Long: `Print the manifest saved by the last compile, watch or dev-server run.

Use --asset to resolve a single declaration the way templates do, or --query
to select values with a JSONPath expression.

Examples:
  templpack manifest
  templpack manifest -f yaml
  templpack manifest --asset @app/css/main.less
  templpack manifest --asset admin --named --type css
  templpack manifest --query '$..js'`,
	RunE: runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)

	manifestCmd.Flags().StringVarP(&manifestFormat, "format", "f", "json", "Output format (json, yaml)")
	manifestCmd.Flags().StringVarP(&manifestQuery, "query", "q", "", "JSONPath expression to evaluate against the manifest")
	manifestCmd.Flags().StringVarP(&manifestAsset, "asset", "a", "", "Print the URL of one asset resource")
	manifestCmd.Flags().StringVarP(&manifestType, "type", "t", "", "File type for --asset (guessed from the extension when empty)")
	manifestCmd.Flags().BoolVar(&manifestNamed, "named", false, "Treat --asset as an entry or group name")
}

func runManifest(cmd *cobra.Command, args []string) error {
	if err := validateFormat(manifestFormat, "json", "yaml"); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if manifestAsset != "" {
		lookup := manifest.NewLookup(store, a.namer, a.classifier)

		var url string
		if manifestNamed {
			url, err = lookup.NamedAssetURL(ctx, manifestAsset, manifestType)
		} else {
			url, err = lookup.AssetURL(ctx, manifestAsset, manifestType)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, url)

		return nil
	}

	m, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	var value any = m
	if manifestQuery != "" {
		results, err := manifest.Query(m, manifestQuery)
		if err != nil {
			return err
		}
		value = results
	}

	if manifestFormat == "yaml" {
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()

		return encoder.Encode(value)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
