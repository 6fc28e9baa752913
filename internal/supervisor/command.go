package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/conneroisu/templpack/internal/validation"
)

// Mode selects how webpack is run.
type Mode string

const (
	ModeCompile Mode = "compile"
	ModeWatch   Mode = "watch"
	ModeServer  Mode = "server"
)

// DashboardMode controls wrapping webpack in webpack-dashboard.
type DashboardMode string

const (
	DashboardAlways    DashboardMode = "always"
	DashboardDevServer DashboardMode = "dev_server"
	DashboardDisabled  DashboardMode = "disabled"
)

// ParseDashboardMode accepts the configuration spellings, including "false".
func ParseDashboardMode(value string) (DashboardMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "always":
		return DashboardAlways, nil
	case "", "dev_server":
		return DashboardDevServer, nil
	case "disabled", "false", "off":
		return DashboardDisabled, nil
	default:
		return "", fmt.Errorf("unknown dashboard mode %q (supported: always, dev_server, disabled)", value)
	}
}

// Command is a fully resolved process invocation.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Interactive commands inherit the terminal; no output is captured.
	Interactive bool
}

// String returns the command line for logging.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// CommandConfig configures the webpack invocations.
type CommandConfig struct {
	WorkingDirectory   string
	Timeout            time.Duration
	Webpack            []string
	WebpackArguments   []string
	DevServer          []string
	DevServerArguments []string
	Dashboard          []string
	DashboardMode      DashboardMode
	// Terminal reports whether stdout is a terminal. The dashboard is only
	// used on a terminal.
	Terminal bool
	// Env is the base environment; nil means os.Environ().
	Env []string
}

// StdoutIsTerminal reports whether the process stdout is a terminal.
func StdoutIsTerminal() bool {
	fd := os.Stdout.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// CommandBuilder builds webpack commands for each mode.
type CommandBuilder struct {
	cfg CommandConfig
}

// NewCommandBuilder validates cfg and creates a builder.
func NewCommandBuilder(cfg CommandConfig) (*CommandBuilder, error) {
	if len(cfg.Webpack) == 0 {
		return nil, fmt.Errorf("webpack executable is not configured")
	}
	if len(cfg.DevServer) == 0 {
		return nil, fmt.Errorf("webpack-dev-server executable is not configured")
	}

	for _, group := range [][]string{cfg.Webpack, cfg.WebpackArguments, cfg.DevServer, cfg.DevServerArguments, cfg.Dashboard} {
		for _, arg := range group {
			if err := validation.ValidateArgument(arg); err != nil {
				return nil, fmt.Errorf("invalid argument '%s': %w", arg, err)
			}
		}
	}

	if cfg.DashboardMode == "" {
		cfg.DashboardMode = DashboardDevServer
	}

	return &CommandBuilder{cfg: cfg}, nil
}

// Build returns the command for mode using the generated config file.
func (b *CommandBuilder) Build(mode Mode, configPath string) (Command, error) {
	var (
		argv    []string
		timeout time.Duration
	)

	switch mode {
	case ModeCompile:
		argv = concat(b.cfg.Webpack, []string{"--config", configPath, "--color"}, b.cfg.WebpackArguments)
		timeout = b.cfg.Timeout
	case ModeWatch:
		argv = concat(b.cfg.Webpack, []string{"--config", configPath, "--watch"})
	case ModeServer:
		argv = concat(b.cfg.DevServer, []string{"--config", configPath}, b.cfg.DevServerArguments)
	default:
		return Command{}, fmt.Errorf("unknown mode %q", mode)
	}

	env := b.cfg.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(append([]string{}, env...), "WEBPACK_MODE="+string(mode))

	cmd := Command{Dir: b.cfg.WorkingDirectory, Timeout: timeout}

	if b.dashboard(mode) {
		argv = concat(b.cfg.Dashboard, []string{"--"}, argv)
		env = append(env, "WEBPACK_DASHBOARD=enabled")
		cmd.Interactive = true
	}

	cmd.Path = b.executable(argv[0])
	cmd.Args = argv[1:]
	cmd.Env = env

	return cmd, nil
}

func (b *CommandBuilder) dashboard(mode Mode) bool {
	if !b.cfg.Terminal || len(b.cfg.Dashboard) == 0 {
		return false
	}

	switch b.cfg.DashboardMode {
	case DashboardAlways:
		return true
	case DashboardDevServer:
		return mode != ModeCompile
	default:
		return false
	}
}

// executable resolves relative paths such as node_modules/.bin/webpack
// against the working directory. Bare names are looked up in PATH later.
func (b *CommandBuilder) executable(name string) string {
	if filepath.IsAbs(name) || !strings.ContainsRune(name, filepath.Separator) && !strings.ContainsRune(name, '/') {
		return name
	}

	return filepath.Join(b.cfg.WorkingDirectory, name)
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}
