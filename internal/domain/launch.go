package domain

// SentinelPID is returned by the launch orchestrator instead of a process id
// when the worker could not be started. Failures on the detached-process
// boundary are never raised as errors, only logged and signalled this way.
const SentinelPID = -1

// LaunchRequest carries everything the worker needs for one session: the
// profile's storage directory, the target URL, optional proxy connection data
// and credentials, an optional JSON configuration blob, an optional add-on
// URL, and extra environment variables.
type LaunchRequest struct {
	Profile       *Profile
	URL           string
	Proxy         *ProxyEndpoint
	ProxyUsername string
	ProxyPassword string
	ConfigJSON    string
	AddonURL      string
	ExtraEnv      map[string]string
}
