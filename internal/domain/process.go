package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessEntry records the worker process believed to embody a running
// profile session. Lifetime is advisory: the registry re-validates entries on
// every read and prunes the ones whose PID is gone or reused.
type ProcessEntry struct {
	ProfileID uuid.UUID `json:"profile_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	URL       string    `json:"url"`
}

// ProcessStore is the durable map backing the process registry. Mutations go
// through whole-map read/modify/write; Replace must persist atomically.
type ProcessStore interface {
	Load() (map[uuid.UUID]ProcessEntry, error)
	Replace(entries map[uuid.UUID]ProcessEntry) error
}

// ProcessProbe is the OS process-control facility, split per platform.
type ProcessProbe interface {
	// Alive reports whether a process with this PID currently exists.
	Alive(pid int) bool
	// CommandLine returns the process's command line for signature checks.
	// ok is false on platforms or states where introspection is unavailable;
	// callers must then assume the process is the original one (documented
	// limitation, not to be silently strengthened).
	CommandLine(pid int) (string, bool)
	// Terminate delivers a graceful termination signal.
	Terminate(pid int) error
}
