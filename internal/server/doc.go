// Package server implements the accept-worker: the owner of one
// reactor.Loop, one session pool, one per-worker DNS name cache, and
// (when the platform supports it) its own SO_REUSEPORT listening
// socket. Everything a Worker owns is private to the goroutine that
// runs it; workers never share a pool, cache, or loop.
package server
