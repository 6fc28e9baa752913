// Package config provides configuration management for templpack using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Configuration comes from a YAML file (.templpack.yml by default), with
// environment overrides using the TEMPLPACK_ prefix. It covers template
// discovery, alias resolution, the webpack executables, the manifest store
// and the watch loop.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/manifest"
	"github.com/conneroisu/templpack/internal/resolve"
	"github.com/conneroisu/templpack/internal/supervisor"
)

type Config struct {
	Environment      string          `mapstructure:"environment" yaml:"environment"`
	WorkingDirectory string          `mapstructure:"working_directory" yaml:"working_directory"`
	CacheDirectory   string          `mapstructure:"cache_directory" yaml:"cache_directory"`
	Templates        TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Entries          []EntryConfig   `mapstructure:"entries" yaml:"entries"`
	Webpack          WebpackConfig   `mapstructure:"config" yaml:"config"`
	Aliases          AliasesConfig   `mapstructure:"aliases" yaml:"aliases"`
	Bin              BinConfig       `mapstructure:"bin" yaml:"bin"`
	EntryFile        EntryFileConfig `mapstructure:"entry_file" yaml:"entry_file"`
	Manifest         ManifestConfig  `mapstructure:"manifest" yaml:"manifest"`
	Watch            WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Log              LogConfig       `mapstructure:"log" yaml:"log"`

	// Warnings holds the validation warnings found by LoadFrom.
	Warnings []ValidationError `mapstructure:"-" yaml:"-"`
}

type TemplatesConfig struct {
	Directories []string `mapstructure:"directories" yaml:"directories"`
	Patterns    []string `mapstructure:"patterns" yaml:"patterns"`
	Function    string   `mapstructure:"function" yaml:"function"`
	Functions   []string `mapstructure:"functions" yaml:"functions"`
	Delimiters  []string `mapstructure:"delimiters" yaml:"delimiters"`
	// SuppressErrors is true, false or ignore_unknowns. Empty picks a
	// default from the environment.
	SuppressErrors string `mapstructure:"suppress_errors" yaml:"suppress_errors"`
}

type EntryConfig struct {
	Resource string `mapstructure:"resource" yaml:"resource"`
	Group    string `mapstructure:"group" yaml:"group"`
}

type WebpackConfig struct {
	Path       string         `mapstructure:"path" yaml:"path"`
	Output     string         `mapstructure:"output" yaml:"output"`
	Parameters map[string]any `mapstructure:"parameters" yaml:"parameters"`
}

type AliasesConfig struct {
	Root          string            `mapstructure:"root" yaml:"root"`
	PackageDirs   []string          `mapstructure:"package_dirs" yaml:"package_dirs"`
	PathInPackage string            `mapstructure:"path_in_package" yaml:"path_in_package"`
	Additional    map[string]string `mapstructure:"additional" yaml:"additional"`
}

type BinConfig struct {
	WorkingDirectory string           `mapstructure:"working_directory" yaml:"working_directory"`
	Timeout          time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	Webpack          ExecutableConfig `mapstructure:"webpack" yaml:"webpack"`
	DevServer        ExecutableConfig `mapstructure:"dev_server" yaml:"dev_server"`
	Dashboard        DashboardConfig  `mapstructure:"dashboard" yaml:"dashboard"`
}

type ExecutableConfig struct {
	Executable []string `mapstructure:"executable" yaml:"executable"`
	Arguments  []string `mapstructure:"arguments" yaml:"arguments"`
}

type DashboardConfig struct {
	Mode       string   `mapstructure:"mode" yaml:"mode"`
	Executable []string `mapstructure:"executable" yaml:"executable"`
}

type EntryFileConfig struct {
	Enabled            bool                `mapstructure:"enabled" yaml:"enabled"`
	DisabledExtensions []string            `mapstructure:"disabled_extensions" yaml:"disabled_extensions"`
	EnabledExtensions  []string            `mapstructure:"enabled_extensions" yaml:"enabled_extensions"`
	TypeMap            map[string][]string `mapstructure:"type_map" yaml:"type_map"`
}

type ManifestConfig struct {
	Path      string   `mapstructure:"path" yaml:"path"`
	Store     string   `mapstructure:"store" yaml:"store"`
	StorePath string   `mapstructure:"store_path" yaml:"store_path"`
	DSN       string   `mapstructure:"dsn" yaml:"dsn"`
	S3        S3Config `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Key       string `mapstructure:"key" yaml:"key"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Notify   bool          `mapstructure:"notify" yaml:"notify"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Reload   ReloadConfig  `mapstructure:"reload" yaml:"reload"`
}

// ReloadConfig serves manifest updates over a websocket while watching.
// An empty address disables it.
type ReloadConfig struct {
	Address        string   `mapstructure:"address" yaml:"address"`
	Path           string   `mapstructure:"path" yaml:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("working_directory", ".")
	v.SetDefault("cache_directory", ".templpack")

	v.SetDefault("templates.directories", []string{"./views", "./components"})
	v.SetDefault("templates.patterns", []string{"*.html", "*.gohtml", "*.tmpl", "*.templ"})
	v.SetDefault("templates.function", "asset")
	v.SetDefault("templates.functions", []string{})
	v.SetDefault("templates.delimiters", []string{"{{", "}}"})
	v.SetDefault("templates.suppress_errors", "")

	v.SetDefault("config.path", "./webpack.templpack.config.js")
	v.SetDefault("config.output", "")

	v.SetDefault("aliases.root", ".")
	v.SetDefault("aliases.package_dirs", []string{})
	v.SetDefault("aliases.path_in_package", "assets")

	v.SetDefault("bin.working_directory", ".")
	v.SetDefault("bin.timeout", time.Hour)
	v.SetDefault("bin.webpack.executable", []string{"node_modules/.bin/webpack"})
	v.SetDefault("bin.webpack.arguments", []string{})
	v.SetDefault("bin.dev_server.executable", []string{"node_modules/.bin/webpack-dev-server"})
	v.SetDefault("bin.dev_server.arguments", []string{"--hot", "--history-api-fallback", "--inline"})
	v.SetDefault("bin.dashboard.mode", string(supervisor.DashboardDevServer))
	v.SetDefault("bin.dashboard.executable", []string{"node_modules/.bin/webpack-dashboard"})

	classifier := resolve.DefaultClassifierConfig()
	v.SetDefault("entry_file.enabled", classifier.Enabled)
	v.SetDefault("entry_file.disabled_extensions", classifier.DisabledExtensions)
	v.SetDefault("entry_file.enabled_extensions", []string{})
	v.SetDefault("entry_file.type_map", classifier.TypeMap)

	// Keys without a fixed default are still registered so that
	// environment overrides reach Unmarshal.
	v.SetDefault("manifest.path", "")
	v.SetDefault("manifest.store", manifest.KindJSON)
	v.SetDefault("manifest.store_path", "")
	v.SetDefault("manifest.dsn", "")
	v.SetDefault("manifest.s3.endpoint", "")
	v.SetDefault("manifest.s3.region", "")
	v.SetDefault("manifest.s3.access_key", "")
	v.SetDefault("manifest.s3.secret_key", "")
	v.SetDefault("manifest.s3.bucket", "")
	v.SetDefault("manifest.s3.key", "webpack_manifest.json")
	v.SetDefault("manifest.s3.use_ssl", false)

	v.SetDefault("watch.interval", supervisor.DefaultInterval)
	v.SetDefault("watch.notify", false)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("watch.reload.address", "")
	v.SetDefault("watch.reload.path", "/__templpack/ws")
	v.SetDefault("watch.reload.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, completes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("cannot decode configuration: %v", err))
	}

	// Weak decoding turns a YAML boolean into "1"/"0"; read the raw value
	// as a string instead.
	config.Templates.SuppressErrors = v.GetString("templates.suppress_errors")

	applyDerivedDefaults(&config)

	result := ValidateConfig(&config)
	if result.HasErrors() {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration:\n"+result.String())
	}
	if result.HasWarnings() {
		config.Warnings = result.Warnings
	}

	return &config, nil
}

// applyDerivedDefaults fills values that depend on other keys.
func applyDerivedDefaults(config *Config) {
	if config.Webpack.Output == "" {
		config.Webpack.Output = filepath.Join(config.CacheDirectory, "webpack.config.js")
	}
	if config.Manifest.Path == "" {
		config.Manifest.Path = filepath.Join(config.CacheDirectory, "webpack_manifest.json")
	}
	if config.Manifest.StorePath == "" {
		name := "manifest.json"
		switch config.Manifest.Store {
		case manifest.KindYAML:
			name = "manifest.yaml"
		case manifest.KindSQLite:
			name = "manifest.db"
		}
		config.Manifest.StorePath = filepath.Join(config.CacheDirectory, name)
	}
	if config.Templates.SuppressErrors == "" {
		if config.IsDev() {
			config.Templates.SuppressErrors = "true"
		} else {
			config.Templates.SuppressErrors = string(errors.PolicyIgnoreUnknowns)
		}
	}
}

// IsDev reports whether the configured environment is development.
func (c *Config) IsDev() bool {
	env := strings.ToLower(c.Environment)

	return env == "dev" || env == "development"
}

// Abs resolves path against the working directory.
func (c *Config) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	base, err := filepath.Abs(c.WorkingDirectory)
	if err != nil {
		base = c.WorkingDirectory
	}

	return filepath.Join(base, path)
}

// ErrorPolicy returns the configured template error policy.
func (c *Config) ErrorPolicy() (errors.Policy, error) {
	return errors.ParsePolicy(c.Templates.SuppressErrors)
}

// Delims returns the Go template delimiters.
func (c *Config) Delims() (left, right string) {
	if len(c.Templates.Delimiters) == 2 {
		return c.Templates.Delimiters[0], c.Templates.Delimiters[1]
	}

	return "", ""
}

// ClassifierConfig converts the entry_file section.
func (c *Config) ClassifierConfig() resolve.ClassifierConfig {
	return resolve.ClassifierConfig{
		Enabled:            c.EntryFile.Enabled,
		EnabledExtensions:  c.EntryFile.EnabledExtensions,
		DisabledExtensions: c.EntryFile.DisabledExtensions,
		TypeMap:            c.EntryFile.TypeMap,
	}
}

// AliasConfig converts the aliases section. The default @app and @root
// aliases are added unless overridden.
func (c *Config) AliasConfig() resolve.AliasConfig {
	root := c.Abs(c.Aliases.Root)

	additional := resolve.DefaultAdditionalAliases(root)
	for name, path := range c.Aliases.Additional {
		additional[name] = path
	}

	dirs := make([]string, len(c.Aliases.PackageDirs))
	for i, dir := range c.Aliases.PackageDirs {
		dirs[i] = c.Abs(dir)
	}

	return resolve.AliasConfig{
		Root:          root,
		PackageDirs:   dirs,
		PathInPackage: c.Aliases.PathInPackage,
		Additional:    additional,
	}
}

// StoreConfig converts the manifest section.
func (c *Config) StoreConfig() manifest.StoreConfig {
	return manifest.StoreConfig{
		Kind: c.Manifest.Store,
		Path: c.Abs(c.Manifest.StorePath),
		DSN:  c.Manifest.DSN,
		S3: manifest.ObjectStoreConfig{
			Endpoint:  c.Manifest.S3.Endpoint,
			Region:    c.Manifest.S3.Region,
			AccessKey: c.Manifest.S3.AccessKey,
			SecretKey: c.Manifest.S3.SecretKey,
			Bucket:    c.Manifest.S3.Bucket,
			Key:       c.Manifest.S3.Key,
			UseSSL:    c.Manifest.S3.UseSSL,
		},
	}
}

// CommandConfig converts the bin section.
func (c *Config) CommandConfig(terminal bool) (supervisor.CommandConfig, error) {
	mode, err := supervisor.ParseDashboardMode(c.Bin.Dashboard.Mode)
	if err != nil {
		return supervisor.CommandConfig{}, err
	}

	return supervisor.CommandConfig{
		WorkingDirectory:   c.Abs(c.Bin.WorkingDirectory),
		Timeout:            c.Bin.Timeout,
		Webpack:            c.Bin.Webpack.Executable,
		WebpackArguments:   c.Bin.Webpack.Arguments,
		DevServer:          c.Bin.DevServer.Executable,
		DevServerArguments: c.Bin.DevServer.Arguments,
		Dashboard:          c.Bin.Dashboard.Executable,
		DashboardMode:      mode,
		Terminal:           terminal,
	}, nil
}
