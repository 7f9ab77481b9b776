// Package app is the application layer, the only component that references
// multiple domain components. It orchestrates sessions across the proxy pool,
// the assignment ledger, the process registry and the worker launcher.
package app
