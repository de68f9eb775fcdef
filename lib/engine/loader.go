// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bureau-foundation/overlay-playground/lib/clock"
)

// DialLoader returns a Loader for an engine that is already listening
// on socketPath. Each load probes the socket once so that a missing
// engine fails initialization rather than the first call.
func DialLoader(socketPath string) Loader {
	return func(ctx context.Context) (Engine, error) {
		if err := probe(ctx, socketPath); err != nil {
			return nil, err
		}
		return NewSocketEngine(socketPath), nil
	}
}

func probe(ctx context.Context, socketPath string) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	connection, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("engine socket %s not accepting connections: %w", socketPath, err)
	}
	connection.Close()
	return nil
}

// DefaultStartTimeout bounds how long ProcessLoader waits for a freshly
// started engine to accept connections.
const DefaultStartTimeout = 10 * time.Second

// pollInterval is how often ProcessLoader probes the socket of a
// starting engine.
const pollInterval = 50 * time.Millisecond

// ProcessLoader starts the engine binary on first use. The command is
// run with "--socket <SocketPath>" appended, and the engine counts as
// loaded once that socket accepts a connection. Closing the returned
// Engine kills the process.
type ProcessLoader struct {
	// Command is the engine executable followed by its arguments.
	Command []string

	// Env is appended to the current environment for the child.
	Env []string

	SocketPath string

	// StartTimeout defaults to DefaultStartTimeout.
	StartTimeout time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

func (l *ProcessLoader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Loader adapts l to the Loader signature.
func (l *ProcessLoader) Loader() Loader { return l.Load }

// Load starts the engine process and waits for its socket.
func (l *ProcessLoader) Load(ctx context.Context) (Engine, error) {
	if len(l.Command) == 0 {
		return nil, errors.New("engine command is empty")
	}
	if l.SocketPath == "" {
		return nil, errors.New("engine socket path is empty")
	}
	engineClock := l.Clock
	if engineClock == nil {
		engineClock = clock.Real()
	}
	startTimeout := l.StartTimeout
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}

	if err := os.Remove(l.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale engine socket: %w", err)
	}

	arguments := append(append([]string{}, l.Command[1:]...), "--socket", l.SocketPath)
	command := exec.Command(l.Command[0], arguments...)
	command.Env = append(os.Environ(), l.Env...)
	command.Stdout = os.Stderr
	command.Stderr = os.Stderr
	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting engine %s: %w", l.Command[0], err)
	}

	process := &processEngine{
		SocketEngine: NewSocketEngine(l.SocketPath),
		command:      command,
		exited:       make(chan struct{}),
	}
	go func() {
		process.exitErr = command.Wait()
		close(process.exited)
	}()

	l.logger().Info("engine process started",
		"command", l.Command[0],
		"pid", command.Process.Pid,
		"socket", l.SocketPath,
	)

	ticker := engineClock.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := engineClock.After(startTimeout)

	for {
		if probe(ctx, l.SocketPath) == nil {
			l.logger().Info("engine ready", "pid", command.Process.Pid)
			return process, nil
		}
		select {
		case <-ctx.Done():
			process.Close()
			return nil, fmt.Errorf("waiting for engine: %w", ctx.Err())
		case <-process.exited:
			return nil, fmt.Errorf("engine exited before accepting connections: %w", exitError(process.exitErr))
		case <-deadline:
			process.Close()
			return nil, fmt.Errorf("engine did not accept connections on %s within %v", l.SocketPath, startTimeout)
		case <-ticker.C:
		}
	}
}

func exitError(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}

// processEngine is a SocketEngine whose lifetime owns the engine
// process.
type processEngine struct {
	*SocketEngine

	command   *exec.Cmd
	exited    chan struct{}
	exitErr   error
	closeOnce sync.Once
}

// Call fails fast once the process has exited.
func (p *processEngine) Call(ctx context.Context, request Message) (Message, error) {
	select {
	case <-p.exited:
		return Message{}, fmt.Errorf("engine process exited: %w", exitError(p.exitErr))
	default:
	}
	return p.SocketEngine.Call(ctx, request)
}

// Close kills the process and waits for it to be reaped.
func (p *processEngine) Close() error {
	p.closeOnce.Do(func() {
		p.SocketEngine.Close()
		select {
		case <-p.exited:
		default:
			p.command.Process.Kill()
			<-p.exited
		}
		os.Remove(p.socketPath)
	})
	return nil
}
