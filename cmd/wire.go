package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/conneroisu/templpack/internal/assets"
	"github.com/conneroisu/templpack/internal/bundleconfig"
	"github.com/conneroisu/templpack/internal/config"
	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
	"github.com/conneroisu/templpack/internal/manifest"
	"github.com/conneroisu/templpack/internal/parser"
	"github.com/conneroisu/templpack/internal/resolve"
	"github.com/conneroisu/templpack/internal/supervisor"
	"github.com/conneroisu/templpack/internal/watcher"
	"github.com/conneroisu/templpack/internal/websocket"
)

// nameCacheSize bounds the memoized entry names.
const nameCacheSize = 4096

// app holds the components every command shares.
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	reports    *errors.ErrorCollector
	provider   assets.Provider
	classifier *resolve.Classifier
	namer      *resolve.NameGenerator
	resolver   *resolve.PathResolver
	builder    *bundleconfig.Builder
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
	for _, w := range cfg.Warnings {
		logger.Warn(context.Background(), nil, w.Message, "field", w.Field, "suggestions", w.Suggestions)
	}

	policy, err := cfg.ErrorPolicy()
	if err != nil {
		return nil, err
	}
	reports := errors.NewErrorCollector()
	handler := errors.NewErrorHandler(policy, logger.WithComponent("templates")).WithCollector(reports)

	left, right := cfg.Delims()
	functions := append([]string{cfg.Templates.Function}, cfg.Templates.Functions...)
	registry := parser.NewRegistry(parser.NewGoTemplateParser(left, right, functions...))
	registry.Register(".templ", parser.NewTemplParser())

	extractor := assets.NewExtractor(registry, cfg.Templates.Function, handler, logger)

	dirs := make([]string, len(cfg.Templates.Directories))
	for i, dir := range cfg.Templates.Directories {
		dirs[i] = cfg.Abs(dir)
	}
	scanner, err := assets.NewDirectoryProvider(dirs, cfg.Templates.Patterns, extractor, logger)
	if err != nil {
		return nil, err
	}

	entries := make([]assets.Declaration, len(cfg.Entries))
	for i, entry := range cfg.Entries {
		entries[i] = assets.Declaration{Resource: entry.Resource, Group: entry.Group}
	}

	provider := assets.NewCollector([]assets.Provider{assets.NewStaticProvider(entries), scanner}, handler, logger)

	aliases := resolve.NewAliasResolver(cfg.AliasConfig())
	if err := aliases.Init(); err != nil {
		return nil, fmt.Errorf("failed to resolve aliases: %w", err)
	}
	classifier := resolve.NewClassifier(cfg.ClassifierConfig())
	resolver := resolve.NewPathResolver(resolve.NewLocator(aliases, cfg.Abs(".")), classifier)
	namer, err := resolve.NewNameGenerator(nameCacheSize)
	if err != nil {
		return nil, err
	}

	dumper := bundleconfig.NewDumper(bundleconfig.DumperConfig{
		Path:              cfg.Abs(cfg.Webpack.Output),
		IncludeConfigPath: cfg.Abs(cfg.Webpack.Path),
		ManifestPath:      cfg.Abs(cfg.Manifest.Path),
		Environment:       cfg.Environment,
		Parameters:        cfg.Webpack.Parameters,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		reports:    reports,
		provider:   provider,
		classifier: classifier,
		namer:      namer,
		resolver:   resolver,
		builder:    bundleconfig.NewBuilder(aliases, provider, resolver, namer, dumper, handler, logger),
	}, nil
}

func (a *app) openStore() (manifest.Store, error) {
	store, err := manifest.Open(a.cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest store: %w", err)
	}

	return store, nil
}

func (a *app) newSupervisor(store manifest.Store, wake <-chan struct{}, onSaved func(context.Context)) (*supervisor.Supervisor, error) {
	commandConfig, err := a.cfg.CommandConfig(supervisor.StdoutIsTerminal())
	if err != nil {
		return nil, err
	}
	commands, err := supervisor.NewCommandBuilder(commandConfig)
	if err != nil {
		return nil, err
	}

	return supervisor.New(supervisor.Config{
		Builder:      a.builder,
		Commands:     commands,
		ManifestPath: a.cfg.Abs(a.cfg.Manifest.Path),
		Store:        store,
		Interval:     a.cfg.Watch.Interval,
		Wake:         wake,
		Logger:       a.logger,
		OnSaved:      onSaved,
	})
}

// startTemplateWatcher wakes the watch loop early when a template changes.
// It returns a nil channel when notifications are disabled.
func (a *app) startTemplateWatcher(ctx context.Context) (<-chan struct{}, func(), error) {
	if !a.cfg.Watch.Notify {
		return nil, func() {}, nil
	}

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return nil, nil, err
	}

	fw.AddFilter(watcher.PatternFilter(a.cfg.Templates.Patterns...))
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoVendorFilter)

	wake := make(chan struct{}, 1)
	fw.AddHandler(watcher.Notify(wake))

	for _, dir := range a.cfg.Templates.Directories {
		if err := fw.AddRecursive(a.cfg.Abs(dir)); err != nil {
			_ = fw.Stop()
			return nil, nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, nil, err
	}

	return wake, func() { _ = fw.Stop() }, nil
}

// startReloadServer serves manifest updates to browsers. The returned
// callback broadcasts the stored manifest; it is nil when no reload address
// is configured.
func (a *app) startReloadServer(store manifest.Store) (func(context.Context), func(), error) {
	reload := a.cfg.Watch.Reload
	if reload.Address == "" {
		return nil, func() {}, nil
	}

	listener, err := net.Listen("tcp", reload.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", reload.Address, err)
	}

	hub := websocket.NewHub(reload.AllowedOrigins, a.logger)
	mux := http.NewServeMux()
	mux.Handle(reload.Path, hub)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error(context.Background(), err, "Reload server failed")
		}
	}()
	a.logger.Info(context.Background(), "Serving manifest updates", "url", "ws://"+listener.Addr().String()+reload.Path)

	onSaved := func(ctx context.Context) {
		m, err := store.Load(ctx)
		if err != nil {
			a.logger.Warn(ctx, err, "Failed to load manifest for reload")
			return
		}
		hub.Broadcast(websocket.NewManifestMessage(m))
	}

	stop := func() {
		hub.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}

	return onSaved, stop, nil
}
