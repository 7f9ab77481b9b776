package registry

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robgallardof/multig/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkerHint = "camoufox-runner"

// --- Fakes ---

type fakeStore struct {
	entries  map[uuid.UUID]domain.ProcessEntry
	replaces int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[uuid.UUID]domain.ProcessEntry{}}
}

func (s *fakeStore) Load() (map[uuid.UUID]domain.ProcessEntry, error) {
	out := make(map[uuid.UUID]domain.ProcessEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) Replace(entries map[uuid.UUID]domain.ProcessEntry) error {
	s.replaces++
	s.entries = entries
	return nil
}

type fakeProbe struct {
	alive      map[int]bool
	cmdlines   map[int]string
	terminated []int
	termErr    error
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{alive: map[int]bool{}, cmdlines: map[int]string{}}
}

func (p *fakeProbe) Alive(pid int) bool { return p.alive[pid] }

func (p *fakeProbe) CommandLine(pid int) (string, bool) {
	line, ok := p.cmdlines[pid]
	return line, ok
}

func (p *fakeProbe) Terminate(pid int) error {
	p.terminated = append(p.terminated, pid)
	return p.termErr
}

func workerCmdline(profileID uuid.UUID) string {
	return fmt.Sprintf("/usr/bin/python3 /opt/%s --profile /var/profiles/%s --url https://example.com",
		testWorkerHint, profileID)
}

func newTestRegistry(store *fakeStore, probe *fakeProbe) *Registry {
	return New(store, probe, clockwork.NewFakeClock(), testWorkerHint)
}

// --- Tests ---

func TestRegisterAndActive(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	probe.alive[100] = true
	probe.cmdlines[100] = workerCmdline(id)

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, active)
}

func TestRegister_OverwritesPriorEntry(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://a.example"))
	require.NoError(t, reg.Register(id, 200, "https://b.example"))

	assert.Len(t, store.entries, 1)
	assert.Equal(t, 200, store.entries[id].PID)
	assert.Equal(t, "https://b.example", store.entries[id].URL)
}

func TestActive_PrunesDeadProcess(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	// Process terminated: not alive according to the OS.

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, store.entries, "stale entry must be pruned from the durable map")
}

func TestActive_SecondReadIsSideEffectFree(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))

	_, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	replacesAfterPrune := store.replaces

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, replacesAfterPrune, store.replaces, "no further writes once pruned")
}

func TestActive_RejectsRecycledPID(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	// The PID is alive but belongs to an unrelated process now.
	probe.alive[100] = true
	probe.cmdlines[100] = "/usr/sbin/nginx -g daemon off;"

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, store.entries)
}

func TestActive_SignatureNeedsProfileID(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	other := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	// Right worker binary, wrong profile: a worker recycled onto this PID.
	probe.alive[100] = true
	probe.cmdlines[100] = workerCmdline(other)

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActive_AssumesAliveWithoutIntrospection(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	probe.alive[100] = true
	// No command line readable: platform without /proc.

	active, err := reg.ActiveProfileIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, active)
}

func TestStop_NothingRegistered(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	signaled, err := reg.Stop(uuid.New())
	require.NoError(t, err)
	assert.False(t, signaled)
	assert.Empty(t, probe.terminated, "no OS signal may be sent for an unknown profile")
}

func TestStop_LiveWorkerIsSignaledAndDeleted(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	probe.alive[100] = true
	probe.cmdlines[100] = workerCmdline(id)

	signaled, err := reg.Stop(id)
	require.NoError(t, err)
	assert.True(t, signaled)
	assert.Equal(t, []int{100}, probe.terminated)
	assert.Empty(t, store.entries)
}

func TestStop_DeadWorkerDeletesEntryWithoutSignal(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))

	signaled, err := reg.Stop(id)
	require.NoError(t, err)
	assert.False(t, signaled)
	assert.Empty(t, probe.terminated)
	assert.Empty(t, store.entries, "entry is deleted even when nothing was signaled")
}

func TestStop_SignalFailureStillDeletesEntry(t *testing.T) {
	store := newFakeStore()
	probe := newFakeProbe()
	probe.termErr = fmt.Errorf("operation not permitted")
	reg := newTestRegistry(store, probe)

	id := uuid.New()
	require.NoError(t, reg.Register(id, 100, "https://example.com"))
	probe.alive[100] = true
	probe.cmdlines[100] = workerCmdline(id)

	signaled, err := reg.Stop(id)
	require.NoError(t, err)
	assert.False(t, signaled)
	assert.Empty(t, store.entries)
}
