package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Stream identifies which process stream produced output.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}

	return "stdout"
}

// OutputFunc receives process output as it is produced. It may be called
// from several goroutines.
type OutputFunc func(stream Stream, data []byte)

// StdOutput forwards process output to the current process streams.
func StdOutput(stream Stream, data []byte) {
	if stream == Stderr {
		_, _ = os.Stderr.Write(data)
		return
	}
	_, _ = os.Stdout.Write(data)
}

// Process is a running or finished webpack invocation.
type Process interface {
	Start(ctx context.Context) error
	Wait() error
	Stop() error
	Running() bool
	Err() error
}

// Spawner creates a process for a command.
type Spawner func(cmd Command, output OutputFunc) Process

// StopTimeout is how long a stopped process gets between SIGTERM and SIGKILL.
const StopTimeout = 10 * time.Second

// ExecProcess runs a Command with os/exec.
type ExecProcess struct {
	command Command
	output  OutputFunc

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stopped bool
}

// NewExecProcess implements Spawner.
func NewExecProcess(cmd Command, output OutputFunc) Process {
	if output == nil {
		output = StdOutput
	}

	return &ExecProcess{command: cmd, output: output}
}

// Start launches the process. A positive command timeout bounds its lifetime.
func (p *ExecProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	var cancel context.CancelFunc
	if p.command.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.command.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(ctx, p.command.Path, p.command.Args...)
	cmd.Dir = p.command.Dir
	cmd.Env = p.command.Env
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = StopTimeout

	if p.command.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = streamWriter{stream: Stdout, fn: p.output}
		cmd.Stderr = streamWriter{stream: Stderr, fn: p.output}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", p.command.Path, err)
	}

	p.cmd = cmd
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		err := cmd.Wait()
		if err == nil && ctx.Err() == context.DeadlineExceeded {
			err = ctx.Err()
		}

		p.mu.Lock()
		p.err = err
		p.mu.Unlock()

		cancel()
		close(p.done)
	}()

	return nil
}

// Wait blocks until the process exits and returns its error.
func (p *ExecProcess) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return fmt.Errorf("process not started")
	}
	<-done

	return p.Err()
}

// Stop terminates the process and waits for it to exit. Errors caused by
// the termination itself are not reported by Err.
func (p *ExecProcess) Stop() error {
	p.mu.Lock()
	if p.cmd == nil {
		p.mu.Unlock()
		return nil
	}
	done := p.done
	select {
	case <-done:
		p.mu.Unlock()
		return nil
	default:
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	<-done

	return nil
}

// Running reports whether the process has started and not yet exited.
func (p *ExecProcess) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Err returns the exit error of a finished process.
func (p *ExecProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	if p.err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(p.err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %w", p.command.Path, exitErr.ExitCode(), p.err)
		}
	}

	return p.err
}

type streamWriter struct {
	stream Stream
	fn     OutputFunc
}

func (w streamWriter) Write(p []byte) (int, error) {
	w.fn(w.stream, append([]byte(nil), p...))

	return len(p), nil
}
