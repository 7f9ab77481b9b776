// Package worker spawns and supervises the browser worker processes that
// hold one persistent session each.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robgallardof/multig/internal/domain"
	"github.com/robgallardof/multig/internal/logging"
	"github.com/robgallardof/multig/internal/metrics"
	"github.com/robgallardof/multig/internal/platform/retry"
)

const (
	prepareMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Launcher runs the worker binary, once in a blocking prepare pass and then
// as a long-running detached process. Process-boundary failures never cross
// it as errors: preparation reports a bool, launching reports SentinelPID.
type Launcher struct {
	workerBin  string
	runner     CommandRunner
	clock      clockwork.Clock
	detach     bool
	retryDelay time.Duration
	events     chan Event
}

// Option configures a Launcher.
type Option func(*Launcher)

func WithRunner(r CommandRunner) Option {
	return func(l *Launcher) { l.runner = r }
}

func WithClock(c clockwork.Clock) Option {
	return func(l *Launcher) { l.clock = c }
}

func WithRetryDelay(d time.Duration) Option {
	return func(l *Launcher) { l.retryDelay = d }
}

// WithDetach controls whether launched workers get their own process group.
func WithDetach(detach bool) Option {
	return func(l *Launcher) { l.detach = detach }
}

func NewLauncher(workerBin string, opts ...Option) *Launcher {
	l := &Launcher{
		workerBin:  workerBin,
		runner:     NewExecRunner(),
		clock:      clockwork.NewRealClock(),
		detach:     true,
		retryDelay: defaultRetryDelay,
		events:     make(chan Event, eventBufferSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PrepareProfile runs the worker in prepare-only mode, retrying on non-zero
// exit up to the attempt budget. It reports success as a bool and never an
// error: a profile that cannot be prepared is logged, counted, and skipped.
func (l *Launcher) PrepareProfile(ctx context.Context, req domain.LaunchRequest) bool {
	args := append(buildArgs(req), "--prepare-only")
	log := logging.WithProfile(req.Profile.ID)

	policy := retry.Policy{
		MaxAttempts: prepareMaxAttempts,
		Backoff:     l.retryDelay,
		Clock:       l.clock,
		OnRetry: func(attempt int, err error) {
			log.Warn("profile preparation attempt failed",
				"attempt", attempt, "error", err)
		},
	}

	err := retry.DoVoid(ctx, policy, func() error {
		out, runErr := l.runner.RunBlocking(ctx, l.workerBin, args, envList(req.ExtraEnv))
		if runErr != nil {
			metrics.PrepareAttempts.WithLabelValues("failure").Inc()
			return fmt.Errorf("prepare run (exit %d): %w: %s", exitCode(runErr), runErr, out)
		}
		metrics.PrepareAttempts.WithLabelValues("success").Inc()
		return nil
	})
	if err != nil {
		metrics.PrepareFailures.Inc()
		log.Error("profile preparation exhausted retries", "error", err)
		return false
	}

	log.Info("profile prepared")
	return true
}

// Launch starts the long-running worker. It returns the worker's pid, or
// SentinelPID when the spawn failed; callers must have run the prepare pass
// first when the profile needs one. Exit results are delivered on the event
// channel by a monitor goroutine.
func (l *Launcher) Launch(ctx context.Context, req domain.LaunchRequest) int {
	log := logging.WithProfile(req.Profile.ID)

	handle, err := l.runner.Start(l.workerBin, buildArgs(req), envList(req.ExtraEnv), l.detach)
	if err != nil {
		metrics.SpawnErrors.Inc()
		log.Error("worker spawn failed", "error", err)
		l.emit(Event{Kind: EventSpawnFailed, ProfileID: req.Profile.ID, Err: err, At: l.clock.Now()})
		return domain.SentinelPID
	}

	l.emit(Event{Kind: EventSpawned, ProfileID: req.Profile.ID, PID: handle.PID, At: l.clock.Now()})

	go func() {
		res := <-handle.Done
		l.emit(Event{
			Kind:      EventExited,
			ProfileID: req.Profile.ID,
			PID:       res.PID,
			ExitCode:  res.ExitCode,
			Err:       res.Err,
			At:        l.clock.Now(),
		})
	}()

	return handle.PID
}

// buildArgs assembles the worker argv. Proxy flags are only passed when a
// proxy endpoint is bound, and credentials only alongside the endpoint.
func buildArgs(req domain.LaunchRequest) []string {
	args := []string{
		"--profile", req.Profile.StorageDir,
		"--url", req.URL,
	}
	if req.Proxy != nil {
		args = append(args, "--proxy-server", fmt.Sprintf("http://%s:%d", req.Proxy.Host, req.Proxy.Port))
		if req.ProxyUsername != "" {
			args = append(args, "--proxy-username", req.ProxyUsername)
		}
		if req.ProxyPassword != "" {
			args = append(args, "--proxy-password", req.ProxyPassword)
		}
	}
	if req.ConfigJSON != "" {
		args = append(args, "--config", req.ConfigJSON)
	}
	if req.AddonURL != "" {
		args = append(args, "--addon-url", req.AddonURL)
	}
	return args
}

func envList(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	env := make([]string, 0, len(extra))
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
