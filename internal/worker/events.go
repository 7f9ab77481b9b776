package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robgallardof/multig/internal/metrics"
)

// EventKind classifies worker lifecycle events.
type EventKind string

const (
	EventSpawned     EventKind = "spawned"
	EventExited      EventKind = "exited"
	EventSpawnFailed EventKind = "spawn_failed"
)

// Event is a worker lifecycle notification published by the launcher.
type Event struct {
	Kind      EventKind
	ProfileID uuid.UUID
	PID       int
	ExitCode  int
	Err       error
	At        time.Time
}

// eventBufferSize bounds the event channel. Events beyond the buffer
// are dropped rather than blocking the launcher.
const eventBufferSize = 64

func (l *Launcher) emit(ev Event) {
	select {
	case l.events <- ev:
	default:
		slog.Warn("dropping worker event, subscriber too slow",
			"kind", ev.Kind, "profile_id", ev.ProfileID)
	}
}

// Events returns the lifecycle event stream. The channel is never
// closed; consumers stop via their own context.
func (l *Launcher) Events() <-chan Event {
	return l.events
}

// LogEvents consumes the launcher's event stream until ctx is done,
// logging each event and updating exit counters.
func LogEvents(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Kind {
			case EventSpawned:
				slog.Info("worker spawned", "profile_id", ev.ProfileID, "pid", ev.PID)
			case EventExited:
				outcome := "clean"
				if ev.ExitCode != 0 || ev.Err != nil {
					outcome = "abnormal"
				}
				metrics.WorkerExits.WithLabelValues(outcome).Inc()
				slog.Info("worker exited",
					"profile_id", ev.ProfileID, "pid", ev.PID,
					"exit_code", ev.ExitCode, "error", ev.Err)
			case EventSpawnFailed:
				slog.Error("worker spawn failed", "profile_id", ev.ProfileID, "error", ev.Err)
			}
		}
	}
}
