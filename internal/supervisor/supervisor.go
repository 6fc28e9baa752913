// Package supervisor runs webpack against the generated configuration and
// keeps it in sync with the templates: it regenerates the configuration,
// restarts the process when the configuration changes and persists the
// asset manifest webpack produces.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/templpack/internal/bundleconfig"
	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
	"github.com/conneroisu/templpack/internal/manifest"
)

// NoEntryPointsNotice is printed when there is nothing for webpack to build.
const NoEntryPointsNotice = "No entry points found - not running webpack"

// DefaultInterval is the pause between configuration checks in watch mode.
const DefaultInterval = time.Second

// State is the supervisor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDumping
	StateRunning
	StateRestarting
	StateDone
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDumping:
		return "dumping"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateDone:
		return "done"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ConfigBuilder produces configuration snapshots.
type ConfigBuilder interface {
	Build(ctx context.Context, previous *bundleconfig.Snapshot) (*bundleconfig.Snapshot, error)
}

// CommandFactory turns a mode and config path into a command.
type CommandFactory interface {
	Build(mode Mode, configPath string) (Command, error)
}

// Config wires a Supervisor.
type Config struct {
	Builder      ConfigBuilder
	Commands     CommandFactory
	Spawn        Spawner
	ManifestPath string
	Store        manifest.Store
	Interval     time.Duration
	// Wake, when set, triggers an immediate configuration check.
	Wake   <-chan struct{}
	Output OutputFunc
	Notice io.Writer
	Logger logging.Logger
	// OnSaved is called after each manifest save.
	OnSaved func(ctx context.Context)
}

// Supervisor drives webpack compile, watch and dev-server runs.
type Supervisor struct {
	builder      ConfigBuilder
	commands     CommandFactory
	spawn        Spawner
	manifestPath string
	store        manifest.Store
	interval     time.Duration
	wake         <-chan struct{}
	output       OutputFunc
	notice       io.Writer
	logger       logging.Logger
	onSaved      func(ctx context.Context)

	stateMu sync.RWMutex
	state   State

	// manifestMu serializes saves triggered by output and by the loop.
	manifestMu sync.Mutex
}

// New creates a Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Builder == nil {
		return nil, fmt.Errorf("supervisor: config builder is required")
	}
	if cfg.Commands == nil {
		return nil, fmt.Errorf("supervisor: command factory is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("supervisor: manifest store is required")
	}
	if cfg.ManifestPath == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "manifest path is required")
	}

	s := &Supervisor{
		builder:      cfg.Builder,
		commands:     cfg.Commands,
		spawn:        cfg.Spawn,
		manifestPath: cfg.ManifestPath,
		store:        cfg.Store,
		interval:     cfg.Interval,
		wake:         cfg.Wake,
		output:       cfg.Output,
		notice:       cfg.Notice,
		logger:       cfg.Logger,
		onSaved:      cfg.OnSaved,
	}
	if s.spawn == nil {
		s.spawn = NewExecProcess
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.output == nil {
		s.output = StdOutput
	}
	if s.notice == nil {
		s.notice = os.Stdout
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.WithComponent("supervisor")

	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	return s.state
}

func (s *Supervisor) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Compile generates the configuration, runs webpack once and saves the
// resulting manifest.
func (s *Supervisor) Compile(ctx context.Context) error {
	s.setState(StateDumping)

	if err := s.removeStaleManifest(); err != nil {
		s.setState(StateStopped)
		return err
	}

	snapshot, err := s.builder.Build(ctx, nil)
	if err != nil {
		if errors.IsNoEntryPoints(err) {
			s.printNotice()
			s.setState(StateDone)

			return nil
		}
		s.setState(StateStopped)

		return err
	}

	cmd, err := s.commands.Build(ModeCompile, snapshot.ConfigPath)
	if err != nil {
		s.setState(StateStopped)
		return err
	}

	s.setState(StateRunning)
	op := logging.StartOperation(s.logger, "compile")
	s.logger.Debug(ctx, "Running webpack", "command", cmd.String())

	proc := s.spawn(cmd, s.output)
	if err := proc.Start(ctx); err != nil {
		op.EndWithError(ctx, err)
		s.setState(StateStopped)

		return errors.NewBuildError(errors.ErrCodeBuildFailed, "failed to start webpack", err)
	}
	if err := proc.Wait(); err != nil {
		op.EndWithError(ctx, err)
		s.setState(StateStopped)

		return errors.NewBuildError(errors.ErrCodeBuildFailed, "webpack compilation failed", err)
	}
	op.End(ctx)

	if _, err := s.persistManifest(ctx, true); err != nil {
		s.setState(StateStopped)
		return err
	}
	s.setState(StateDone)

	return nil
}

// Watch runs webpack in watch or dev-server mode until ctx is canceled, the
// process exits or no entry points remain. The configuration is checked
// every interval and the process is restarted whenever it is rewritten.
func (s *Supervisor) Watch(ctx context.Context, mode Mode) error {
	if mode != ModeWatch && mode != ModeServer {
		return fmt.Errorf("supervisor: watch does not support mode %q", mode)
	}

	s.setState(StateDumping)
	snapshot, err := s.builder.Build(ctx, nil)
	if err != nil {
		if errors.IsNoEntryPoints(err) {
			s.printNotice()
			s.setState(StateStopped)

			return nil
		}
		s.setState(StateStopped)

		return err
	}

	// A manifest left by an earlier run would otherwise be saved on the
	// first tick, before webpack has built anything.
	if err := s.removeStaleManifest(); err != nil {
		s.setState(StateStopped)
		return err
	}

	proc, err := s.start(ctx, mode, snapshot)
	if err != nil {
		s.setState(StateStopped)
		return err
	}
	defer func() {
		if stopErr := proc.Stop(); stopErr != nil {
			s.logger.Warn(ctx, stopErr, "Failed to stop webpack")
		}
		s.setState(StateStopped)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.wake:
		}

		s.setState(StateDumping)
		next, err := s.builder.Build(ctx, snapshot)
		if err != nil {
			if errors.IsNoEntryPoints(err) {
				s.printNotice()
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		switch {
		case next.Rewritten:
			s.setState(StateRestarting)
			s.logger.Info(ctx, "Webpack config changed, restarting", "path", next.ConfigPath, "entries", next.EntryCount())
			if err := proc.Stop(); err != nil {
				return err
			}
			restarted, err := s.start(ctx, mode, next)
			if err != nil {
				return err
			}
			proc = restarted
		case !proc.Running():
			if err := proc.Err(); err != nil {
				return errors.NewBuildError(errors.ErrCodeBuildFailed, "webpack exited", err)
			}

			return nil
		default:
			s.setState(StateRunning)
			if _, err := s.persistManifest(ctx, false); err != nil {
				s.logger.Warn(ctx, err, "Failed to save manifest")
			}
		}

		snapshot = next
	}
}

func (s *Supervisor) start(ctx context.Context, mode Mode, snapshot *bundleconfig.Snapshot) (Process, error) {
	cmd, err := s.commands.Build(mode, snapshot.ConfigPath)
	if err != nil {
		return nil, err
	}

	proc := s.spawn(cmd, func(stream Stream, data []byte) {
		s.output(stream, data)
		if _, err := s.persistManifest(ctx, false); err != nil {
			s.logger.Warn(ctx, err, "Failed to save manifest")
		}
	})

	s.logger.Debug(ctx, "Starting webpack", "mode", string(mode), "command", cmd.String())
	if err := proc.Start(ctx); err != nil {
		return nil, errors.NewBuildError(errors.ErrCodeBuildFailed, "failed to start webpack", err)
	}
	s.setState(StateRunning)

	return proc, nil
}

func (s *Supervisor) removeStaleManifest() error {
	if err := os.Remove(s.manifestPath); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "failed to remove stale manifest file", err)
	}

	return nil
}

func (s *Supervisor) persistManifest(ctx context.Context, failIfMissing bool) (bool, error) {
	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()

	saved, err := manifest.Persist(ctx, s.manifestPath, s.store, failIfMissing)
	if saved {
		s.logger.Info(ctx, "Manifest saved", "path", s.manifestPath)
		if s.onSaved != nil {
			s.onSaved(ctx)
		}
	}

	return saved, err
}

func (s *Supervisor) printNotice() {
	_, _ = fmt.Fprintln(s.notice, NoEntryPointsNotice)
}
