package domain

import "errors"

var (
	// ErrProfileNotFound is returned when a referenced profile id does not exist.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProxyNotFound is returned when a referenced proxy id does not exist.
	ErrProxyNotFound = errors.New("proxy not found")
	// ErrProxyInUse is returned when a proxy is already bound to a different profile.
	ErrProxyInUse = errors.New("proxy already assigned to another profile")
	// ErrPoolExhausted is returned by random allocation when no proxy is available.
	// Callers may resync the pool from the vendor and retry once; this core does
	// not perform that resynchronization itself.
	ErrPoolExhausted = errors.New("no available proxy in pool")
	// ErrLaunchFailed is returned when the worker could not be spawned, or when
	// preparation failed and the launch was aborted before any spawn.
	ErrLaunchFailed = errors.New("worker launch failed")
)
