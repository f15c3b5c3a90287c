package session

import (
	"net"

	"github.com/loopfwd/loopfwd/internal/http1"
	"github.com/loopfwd/loopfwd/internal/iobuf"
	"github.com/loopfwd/loopfwd/internal/namecache"
	"github.com/loopfwd/loopfwd/internal/reactor"
	"golang.org/x/sys/unix"
)

// Resolver looks up host's IPv4 address, consulting (and populating)
// the worker's name cache. Sessions never talk to the cache directly;
// they go through this so a cache miss's blocking DNS lookup is the
// worker's concern, not the session's.
type Resolver func(host []byte) (net.IP, error)

// Releaser returns a Session's pool slot once it's done. Session
// itself doesn't import package pool to avoid a dependency cycle with
// whatever owns the pool (the worker); the accept loop supplies this
// closure at construction time.
type Releaser func(*Session)

// Session is one accepted client connection paired with (at most) one
// backend connection to whatever origin its requests currently target.
// It is driven exclusively by its owning worker's event loop.
type Session struct {
	loop     reactor.Loop
	release  Releaser
	resolve  Resolver
	frontTok Token
	backTok  Token

	frontFD int
	backFD  int

	front, back iobuf.IOBuffer
	parser      *http1.Parser
	progress    Progress

	keepAlive bool
	// currently-connected backend target, valid only while backFD >= 0.
	backendHost string
	backendPort int
	connecting  bool

	reqMode  http1.BodyMode
	reqSkip  int64
	respMode http1.BodyMode
	respSkip int64

	nameCache *namecache.Cache

	frontendReading, frontendWriting bool
	backendReading, backendWriting   bool

	released bool
}

// Init placement-constructs a freshly allocated Session over slot,
// which must be a pointer into the worker's pool (so the frontTok/
// backTok self-references it records stay valid for the session's
// entire lifetime, including after the pool reuses the slot for a
// later connection). frontRegion and backRegion are the two fixed
// storage regions carved for this slot out of the worker's Arena;
// they must not be shared with any other live session.
func Init(slot *Session, loop reactor.Loop, release Releaser, resolve Resolver, cache *namecache.Cache,
	frontFD int, frontRegion, backRegion []byte, localAddr, peerAddr string) *Session {

	*slot = Session{
		loop:      loop,
		release:   release,
		resolve:   resolve,
		frontFD:   frontFD,
		backFD:    -1,
		front:     iobuf.NewIOBuffer(frontRegion),
		back:      iobuf.NewIOBuffer(backRegion),
		nameCache: cache,
	}
	slot.parser = http1.NewRequestParser(localAddr, peerAddr)
	slot.progress = RequestStarted
	slot.frontTok = Token{Session: slot, IsBackend: false}
	slot.backTok = Token{Session: slot, IsBackend: true}
	return slot
}

// Start registers the frontend fd for reading, kicking off the state
// machine.
func (s *Session) Start() error {
	s.frontendReading = true
	return s.loop.Add(s.frontFD, reactor.Readable, &s.frontTok)
}

// Progress reports the session's current lifecycle position.
func (s *Session) Progress() Progress { return s.progress }

// Release tears down both endpoints and returns the session to its
// pool. It is idempotent: a second call is a no-op.
func (s *Session) Release() {
	if s.released {
		return
	}
	s.released = true

	_ = s.loop.Remove(s.frontFD)
	unix.Shutdown(s.frontFD, unix.SHUT_WR)
	unix.Close(s.frontFD)

	s.teardownBackend()

	if s.release != nil {
		s.release(s)
	}
}

func (s *Session) teardownBackend() {
	if s.backFD < 0 {
		return
	}
	_ = s.loop.Remove(s.backFD)
	unix.Close(s.backFD)
	s.backFD = -1
	s.connecting = false
	s.backendHost, s.backendPort = "", 0
	s.backendReading, s.backendWriting = false, false
}

func (s *Session) armFrontend(events reactor.Events) {
	s.frontendReading = events&reactor.Readable != 0
	s.frontendWriting = events&reactor.Writable != 0
	_ = s.loop.Modify(s.frontFD, events)
}

func (s *Session) armBackend(events reactor.Events) {
	s.backendReading = events&reactor.Readable != 0
	s.backendWriting = events&reactor.Writable != 0
	if s.backFD >= 0 {
		_ = s.loop.Modify(s.backFD, events)
	}
}

func ioEvents(reading, writing bool) reactor.Events {
	var e reactor.Events
	if reading {
		e |= reactor.Readable
	}
	if writing {
		e |= reactor.Writable
	}
	return e
}
