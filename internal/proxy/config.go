package proxy

import "time"

// Config carries the listener/pool/cache knobs an accept-worker is
// built from, filled from the CLI flags parsed in the root main.go.
type Config struct {
	Port int

	AcceptCapacity int

	NameCacheCapacity int
	CacheLifetime     time.Duration

	DialTimeout         time.Duration
	NegotiationTimeout  time.Duration
	TCPKeepAlive        time.Duration

	Verbose bool
}
