// Package registry tracks which profiles currently have a live worker
// process, resilient to PID reuse by the OS.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robgallardof/multig/internal/domain"
)

// Registry is the durable record of {profile -> pid, startTime, url}. Every
// read re-validates entries against the OS and prunes the stale ones, so the
// stored map is self-healing: a dead or recycled PID disappears on the next
// observation.
//
// Concurrent calls for different profiles are safe; concurrent register/stop
// for the same profile must be serialized by the caller.
type Registry struct {
	store      domain.ProcessStore
	probe      domain.ProcessProbe
	clock      clockwork.Clock
	workerHint string

	mu sync.Mutex
}

// New creates a Registry. workerHint is the signature substring expected in a
// live worker's command line (the worker executable name); together with the
// profile id it rejects PIDs recycled by unrelated processes.
func New(store domain.ProcessStore, probe domain.ProcessProbe, clock clockwork.Clock, workerHint string) *Registry {
	return &Registry{
		store:      store,
		probe:      probe,
		clock:      clock,
		workerHint: workerHint,
	}
}

// Register records a freshly spawned worker, overwriting any prior entry for
// the profile. The caller is responsible for having stopped a previous worker
// first.
func (r *Registry) Register(profileID uuid.UUID, pid int, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load process registry: %w", err)
	}

	entries[profileID] = domain.ProcessEntry{
		ProfileID: profileID,
		PID:       pid,
		StartedAt: r.clock.Now().UTC(),
		URL:       url,
	}

	if err := r.store.Replace(entries); err != nil {
		return fmt.Errorf("failed to persist process registry: %w", err)
	}

	slog.Info("Worker registered", "profile_id", profileID.String(), "pid", pid, "url", url)
	return nil
}

// ActiveProfileIDs returns the profiles whose recorded worker is verifiably
// alive, pruning every entry that fails verification as a side effect.
func (r *Registry) ActiveProfileIDs() ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load process registry: %w", err)
	}

	var active []uuid.UUID
	pruned := false
	for profileID, entry := range entries {
		if !r.verify(entry) {
			slog.Info("Pruning stale process entry",
				"profile_id", profileID.String(), "pid", entry.PID)
			delete(entries, profileID)
			pruned = true
			continue
		}
		active = append(active, profileID)
	}

	if pruned {
		if err := r.store.Replace(entries); err != nil {
			return nil, fmt.Errorf("failed to persist pruned registry: %w", err)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].String() < active[j].String()
	})
	return active, nil
}

// Stop terminates the profile's worker if one is verifiably running. The
// entry is always deleted locally, whether or not the signal was delivered.
// Returns true only when a live process was actually signaled.
func (r *Registry) Stop(profileID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.store.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load process registry: %w", err)
	}

	entry, ok := entries[profileID]
	if !ok {
		return false, nil
	}

	signaled := false
	if r.verify(entry) {
		if err := r.probe.Terminate(entry.PID); err != nil {
			slog.Warn("Failed to signal worker",
				"profile_id", profileID.String(), "pid", entry.PID, "error", err)
		} else {
			signaled = true
			slog.Info("Worker signaled to stop",
				"profile_id", profileID.String(), "pid", entry.PID)
		}
	}

	delete(entries, profileID)
	if err := r.store.Replace(entries); err != nil {
		return signaled, fmt.Errorf("failed to persist process registry: %w", err)
	}
	return signaled, nil
}

// verify checks that the recorded PID exists and, where the host supports
// command-line introspection, that the process signature references both the
// worker entry point and the profile's own identifier. An unreadable command
// line degrades to "assume alive".
func (r *Registry) verify(entry domain.ProcessEntry) bool {
	if !r.probe.Alive(entry.PID) {
		return false
	}

	cmdline, ok := r.probe.CommandLine(entry.PID)
	if !ok {
		return true
	}
	return strings.Contains(cmdline, r.workerHint) &&
		strings.Contains(cmdline, entry.ProfileID.String())
}
