// Package reactor is a readiness-driven, non-blocking multiplexer that
// tells a session's Frontend/Backend endpoints when their fd is ready
// to read or write, instead of blocking a goroutine per connection on
// I/O the way an idiomatic net.Conn-based Go server would.
//
// Loop is implemented once per accept-worker, one event loop per
// thread. On Linux it is backed directly by epoll via
// golang.org/x/sys/unix, matching original_source's libev epoll
// backend. Elsewhere it falls back to a level-triggered readiness
// poller built on the poll(2) syscall via unix.Poll — the poll step of
// the fallback order original_source's main.cc uses when epoll isn't
// available.
package reactor

import "fmt"

// Events is a bitmask of readiness conditions a registration is
// interested in, or that Wait reports as having occurred.
type Events uint32

const (
	Readable Events = 1 << iota
	Writable
	Error
	Hup
)

func (e Events) String() string {
	s := ""
	if e&Readable != 0 {
		s += "R"
	}
	if e&Writable != 0 {
		s += "W"
	}
	if e&Error != 0 {
		s += "E"
	}
	if e&Hup != 0 {
		s += "H"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Event reports one fd's readiness after a Wait call.
type Event struct {
	Fd     int
	Events Events
	// Data is whatever was passed to Add for this fd, handed back
	// unchanged so the caller can recover its session without a
	// separate fd → session lookup.
	Data any
}

// Loop is the reactor's public contract. A Loop is owned by exactly one
// worker goroutine; none of its methods are safe to call concurrently.
type Loop interface {
	// Add registers fd for the given readiness events, tagging it with
	// data for later retrieval from Wait's results.
	Add(fd int, events Events, data any) error
	// Modify changes the readiness events an already-registered fd is
	// waiting on.
	Modify(fd int, events Events) error
	// Remove deregisters fd. It is not an error to Remove an fd that
	// was already closed out from under the loop (Linux drops closed
	// fds from its interest set automatically).
	Remove(fd int) error
	// Wait blocks until at least one registered fd is ready, the
	// timeout (in milliseconds; negative means forever) elapses, or an
	// error occurs. The returned slice aliases the Loop's internal
	// buffer and is only valid until the next Wait call.
	Wait(timeoutMillis int) ([]Event, error)
	// Close releases the loop's kernel resources. Registered fds are
	// not closed.
	Close() error
}

// ErrClosed is returned by Loop methods called after Close.
var ErrClosed = fmt.Errorf("reactor: loop closed")
