package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommandBuilder(t *testing.T, mutate func(*CommandConfig)) *CommandBuilder {
	t.Helper()

	cfg := CommandConfig{
		WorkingDirectory:   "/srv/app",
		Timeout:            time.Hour,
		Webpack:            []string{"node_modules/.bin/webpack"},
		WebpackArguments:   []string{"--bail"},
		DevServer:          []string{"node_modules/.bin/webpack-dev-server"},
		DevServerArguments: []string{"--hot", "--history-api-fallback"},
		Dashboard:          []string{"node_modules/.bin/webpack-dashboard"},
		DashboardMode:      DashboardDevServer,
		Env:                []string{"PATH=/usr/bin"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	b, err := NewCommandBuilder(cfg)
	require.NoError(t, err)

	return b
}

func TestCommandBuilder(t *testing.T) {
	webpack := filepath.Join("/srv/app", "node_modules/.bin/webpack")
	devServer := filepath.Join("/srv/app", "node_modules/.bin/webpack-dev-server")
	dashboard := filepath.Join("/srv/app", "node_modules/.bin/webpack-dashboard")

	tests := []struct {
		name     string
		mode     Mode
		terminal bool
		dash     DashboardMode
		path     string
		args     []string
		env      []string
		timeout  time.Duration
	}{
		{
			name:    "compile",
			mode:    ModeCompile,
			path:    webpack,
			args:    []string{"--config", "/tmp/webpack.config.js", "--color", "--bail"},
			env:     []string{"PATH=/usr/bin", "WEBPACK_MODE=compile"},
			timeout: time.Hour,
		},
		{
			name: "watch",
			mode: ModeWatch,
			path: webpack,
			args: []string{"--config", "/tmp/webpack.config.js", "--watch"},
			env:  []string{"PATH=/usr/bin", "WEBPACK_MODE=watch"},
		},
		{
			name: "server",
			mode: ModeServer,
			path: devServer,
			args: []string{"--config", "/tmp/webpack.config.js", "--hot", "--history-api-fallback"},
			env:  []string{"PATH=/usr/bin", "WEBPACK_MODE=server"},
		},
		{
			name:     "server with dashboard",
			mode:     ModeServer,
			terminal: true,
			dash:     DashboardDevServer,
			path:     dashboard,
			args:     []string{"--", devServer, "--config", "/tmp/webpack.config.js", "--hot", "--history-api-fallback"},
			env:      []string{"PATH=/usr/bin", "WEBPACK_MODE=server", "WEBPACK_DASHBOARD=enabled"},
		},
		{
			name:     "compile skips dev_server dashboard",
			mode:     ModeCompile,
			terminal: true,
			dash:     DashboardDevServer,
			path:     webpack,
			args:     []string{"--config", "/tmp/webpack.config.js", "--color", "--bail"},
			env:      []string{"PATH=/usr/bin", "WEBPACK_MODE=compile"},
			timeout:  time.Hour,
		},
		{
			name:     "compile with dashboard always",
			mode:     ModeCompile,
			terminal: true,
			dash:     DashboardAlways,
			path:     dashboard,
			args:     []string{"--", webpack, "--config", "/tmp/webpack.config.js", "--color", "--bail"},
			env:      []string{"PATH=/usr/bin", "WEBPACK_MODE=compile", "WEBPACK_DASHBOARD=enabled"},
			timeout:  time.Hour,
		},
		{
			name:     "dashboard disabled",
			mode:     ModeWatch,
			terminal: true,
			dash:     DashboardDisabled,
			path:     webpack,
			args:     []string{"--config", "/tmp/webpack.config.js", "--watch"},
			env:      []string{"PATH=/usr/bin", "WEBPACK_MODE=watch"},
		},
		{
			name: "no dashboard without terminal",
			mode: ModeWatch,
			dash: DashboardAlways,
			path: webpack,
			args: []string{"--config", "/tmp/webpack.config.js", "--watch"},
			env:  []string{"PATH=/usr/bin", "WEBPACK_MODE=watch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestCommandBuilder(t, func(cfg *CommandConfig) {
				cfg.Terminal = tt.terminal
				if tt.dash != "" {
					cfg.DashboardMode = tt.dash
				}
			})

			cmd, err := b.Build(tt.mode, "/tmp/webpack.config.js")
			require.NoError(t, err)

			assert.Equal(t, tt.path, cmd.Path)
			assert.Equal(t, tt.args, cmd.Args)
			assert.Equal(t, tt.env, cmd.Env)
			assert.Equal(t, tt.timeout, cmd.Timeout)
			assert.Equal(t, "/srv/app", cmd.Dir)
			assert.Equal(t, len(tt.env) == 3, cmd.Interactive)
		})
	}
}

func TestCommandBuilderBareExecutable(t *testing.T) {
	b := newTestCommandBuilder(t, func(cfg *CommandConfig) {
		cfg.Webpack = []string{"npx", "webpack"}
	})

	cmd, err := b.Build(ModeWatch, "/tmp/webpack.config.js")
	require.NoError(t, err)

	assert.Equal(t, "npx", cmd.Path)
	assert.Equal(t, []string{"webpack", "--config", "/tmp/webpack.config.js", "--watch"}, cmd.Args)
	assert.Equal(t, "npx webpack --config /tmp/webpack.config.js --watch", cmd.String())
}

func TestCommandBuilderValidation(t *testing.T) {
	_, err := NewCommandBuilder(CommandConfig{DevServer: []string{"webpack-dev-server"}})
	assert.Error(t, err)

	_, err = NewCommandBuilder(CommandConfig{Webpack: []string{"webpack"}})
	assert.Error(t, err)

	_, err = NewCommandBuilder(CommandConfig{
		Webpack:          []string{"webpack"},
		DevServer:        []string{"webpack-dev-server"},
		WebpackArguments: []string{"--progress; rm -rf /"},
	})
	assert.Error(t, err)

	b := newTestCommandBuilder(t, nil)
	_, err = b.Build(Mode("deploy"), "/tmp/webpack.config.js")
	assert.Error(t, err)
}

func TestParseDashboardMode(t *testing.T) {
	tests := []struct {
		input    string
		expected DashboardMode
		wantErr  bool
	}{
		{"always", DashboardAlways, false},
		{"", DashboardDevServer, false},
		{"dev_server", DashboardDevServer, false},
		{"false", DashboardDisabled, false},
		{"Disabled", DashboardDisabled, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseDashboardMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}
