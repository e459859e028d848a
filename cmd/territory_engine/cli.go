package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sportsin/territory/internal/channel"
	"github.com/sportsin/territory/internal/dispatcher"
	"github.com/sportsin/territory/internal/logging"
	"github.com/sportsin/territory/internal/monitor"
)

// maxLineSize bounds a single command line.
const maxLineSize = 1 << 20

// response is written to stdout for every command line.
type response struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// runCLI dispatches every line read from r and writes one JSON response per
// command to w. It returns when r is exhausted or ctx ends.
func runCLI(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := channel.New[string](64)
	scanErr := make(chan error, 1)

	go func() {
		defer lines.Close()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			lines.Send(scanner.Text())
		}
		scanErr <- scanner.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			Logger.Info("Stopping command loop", "reason", ctx.Err())
			return nil
		case line, ok := <-lines.Receive():
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("reading commands: %w", err)
				}
				Logger.Info("Command input closed")
				return nil
			}
			resp, handled := handleLine(ctx, line)
			if !handled {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// handleLine dispatches one command line. Blank lines are not commands.
func handleLine(ctx context.Context, line string) (response, bool) {
	e, ok := dispatcher.ParseLine(line, time.Now())
	if !ok {
		return response{}, false
	}

	ctx = logging.WithAttrs(ctx, slog.String("command", e.Command))
	result, err := eventDispatcher.Dispatch(ctx, e)
	if err != nil {
		return response{Command: e.Command, Error: err.Error()}, true
	}
	return response{Command: e.Command, OK: true, Result: result}, true
}

// registerLifecycleHandlers adds the commands that report on the process itself.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		return map[string]string{"version": CurrentVersion, "buildDate": BuildDate}, nil
	})

	d.Register(":COMMANDS:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		return d.Commands(), nil
	})

	d.Register(":STATUS:", func(ctx context.Context, _ dispatcher.Event) (any, error) {
		svc := monitorService
		if svc == nil {
			deps := monitor.Dependencies{
				Territory: territoryEngine.Registry(),
				Perks:     storageBackend,
			}
			if eventSink != nil {
				deps.Events = eventSink.Queue
			}
			svc = monitor.NewService(deps)
		}
		return svc.Status(ctx)
	}, dispatcher.Logged())

	d.Register(":SNAPSHOT:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		switch b := storageBackend.(type) {
		case snapshotter:
			return b.Snapshot()
		case interface{ Dump() error }:
			return nil, b.Dump()
		default:
			return nil, errors.New("storage backend does not take snapshots")
		}
	}, dispatcher.Logged())
}
