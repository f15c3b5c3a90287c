// Package proxy holds the small pieces shared across every
// accept-worker regardless of which one it is: the listener-side
// config knobs (keepalive, SO_REUSEPORT) and the GC ballast that
// keeps the heap from shrinking under the fixed-size arenas the
// workers allocate up front.
package proxy
