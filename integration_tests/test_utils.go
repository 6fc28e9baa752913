//go:build integration
// +build integration

package integration_tests

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templpack/internal/assets"
	"github.com/conneroisu/templpack/internal/bundleconfig"
	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
	"github.com/conneroisu/templpack/internal/manifest"
	"github.com/conneroisu/templpack/internal/parser"
	"github.com/conneroisu/templpack/internal/resolve"
	"github.com/conneroisu/templpack/internal/supervisor"
)

// project is a temporary application with templates, assets and a fake
// webpack executable.
type project struct {
	dir          string
	configPath   string
	manifestPath string
	startsPath   string
	namer        *resolve.NameGenerator
	builder      *bundleconfig.Builder
	store        *manifest.FileStore
	commands     *supervisor.CommandBuilder
}

func (p *project) path(name string) string {
	return filepath.Join(p.dir, name)
}

func (p *project) write(t *testing.T, name, content string) {
	t.Helper()

	path := p.path(name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject lays out files and wires the collection, config generation
// and command pipeline the way the CLI does.
func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	p := &project{
		dir:          dir,
		configPath:   filepath.Join(dir, ".templpack", "webpack.config.js"),
		manifestPath: filepath.Join(dir, ".templpack", "webpack_manifest.json"),
		startsPath:   filepath.Join(dir, "starts.log"),
		store:        manifest.NewFileStore(filepath.Join(dir, ".templpack", "manifest.json")),
	}
	for name, content := range files {
		p.write(t, name, content)
	}

	// Every start is logged and writes a manifest. Watch modes keep running.
	script := "#!" + sh + "\n" +
		`echo "$WEBPACK_MODE" >> starts.log` + "\n" +
		`printf '{"main":{"js":"/build/main.js"}}' > .templpack/webpack_manifest.json` + "\n" +
		`[ "$WEBPACK_MODE" = compile ] && exit 0` + "\n" +
		"exec sleep 30\n"
	p.write(t, "bin/webpack", script)
	require.NoError(t, os.Chmod(p.path("bin/webpack"), 0o755))

	logger := logging.Discard()
	handler := errors.NewErrorHandler(errors.PolicySuppress, logger)

	registry := parser.NewRegistry(parser.NewGoTemplateParser("", "", "asset"))
	registry.Register(".templ", parser.NewTemplParser())
	extractor := assets.NewExtractor(registry, "asset", handler, logger)

	scanner, err := assets.NewDirectoryProvider([]string{p.path("views")}, []string{"*.html", "*.templ"}, extractor, logger)
	require.NoError(t, err)
	provider := assets.NewCollector([]assets.Provider{scanner}, handler, logger)

	aliases := resolve.NewAliasResolver(resolve.AliasConfig{
		Root:       dir,
		Additional: resolve.DefaultAdditionalAliases(dir),
	})
	require.NoError(t, aliases.Init())

	p.namer, err = resolve.NewNameGenerator(128)
	require.NoError(t, err)

	resolver := resolve.NewPathResolver(resolve.NewLocator(aliases, dir), resolve.NewClassifier(resolve.DefaultClassifierConfig()))
	dumper := bundleconfig.NewDumper(bundleconfig.DumperConfig{
		Path:              p.configPath,
		IncludeConfigPath: p.path("webpack.config.js"),
		ManifestPath:      p.manifestPath,
		Environment:       "dev",
	})
	p.builder = bundleconfig.NewBuilder(aliases, provider, resolver, p.namer, dumper, handler, logger)

	p.commands, err = supervisor.NewCommandBuilder(supervisor.CommandConfig{
		WorkingDirectory: dir,
		Timeout:          time.Minute,
		Webpack:          []string{p.path("bin/webpack")},
		DevServer:        []string{p.path("bin/webpack")},
		DashboardMode:    supervisor.DashboardDisabled,
	})
	require.NoError(t, err)

	return p
}

// starts returns the modes webpack was started with, in order.
func (p *project) starts() []string {
	data, err := os.ReadFile(p.startsPath)
	if err != nil {
		return nil
	}

	return strings.Fields(string(data))
}
