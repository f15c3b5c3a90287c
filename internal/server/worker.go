package server

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/loopfwd/loopfwd/internal/namecache"
	"github.com/loopfwd/loopfwd/internal/pool"
	"github.com/loopfwd/loopfwd/internal/proxy"
	"github.com/loopfwd/loopfwd/internal/reactor"
	"github.com/loopfwd/loopfwd/internal/region"
	"github.com/loopfwd/loopfwd/internal/session"
	"golang.org/x/sys/unix"
)

// RegionSize is the fixed capacity of each of a session's two storage
// regions.
const RegionSize = 4096

// Worker is one accept-thread: its own event loop, session pool,
// name cache and (usually) its own listening socket. Nothing it owns
// is touched by any other worker.
type Worker struct {
	id  int
	cfg proxy.Config

	loop     reactor.Loop
	pool     *pool.Pool[session.Session]
	arena    *region.Arena
	cache    *namecache.Cache
	listenFD int
}

// New builds worker id. listenFD is the raw, already-bound-and-
// listening socket this worker accepts on — its own SO_REUSEPORT
// socket, or the single shared one when the platform (or the
// operator) opted out of address sharing.
func New(id int, cfg proxy.Config, listenFD int) (*Worker, error) {
	loop, err := reactor.NewEpoll(cfg.AcceptCapacity*2 + 16)
	if err != nil {
		return nil, fmt.Errorf("server: worker %d: %w", id, err)
	}

	w := &Worker{
		id:        id,
		cfg:       cfg,
		loop:      loop,
		pool:      pool.New[session.Session](cfg.AcceptCapacity),
		arena:     region.New(cfg.AcceptCapacity*2, RegionSize),
		cache:     namecache.New(cfg.NameCacheCapacity, cfg.CacheLifetime),
		listenFD:  listenFD,
	}
	return w, nil
}

// PoolBytes reports the backing memory of this worker's session
// region arena, for the startup accounting log line.
func (w *Worker) PoolBytes() int {
	return w.cfg.AcceptCapacity * 2 * RegionSize
}

// Run registers the listening socket and drives the event loop until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.loop.Add(w.listenFD, reactor.Readable, nil); err != nil {
		return fmt.Errorf("server: worker %d: register listener: %w", w.id, err)
	}
	defer w.loop.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		events, err := w.loop.Wait(250)
		if err != nil {
			if err == reactor.ErrClosed {
				return nil
			}
			return fmt.Errorf("server: worker %d: wait: %w", w.id, err)
		}

		for _, ev := range events {
			if ev.Fd == w.listenFD {
				w.acceptAll()
				continue
			}
			session.Dispatch(ev)
		}
	}
}

// acceptAll drains the listening socket's accept backlog: with
// non-blocking SOCK_NONBLOCK listeners under level-triggered epoll,
// the event keeps firing until EAGAIN, so a single readiness
// notification can correspond to many pending connections.
func (w *Worker) acceptAll() {
	for {
		fd, _, err := unix.Accept4(w.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				log.Printf("worker %d: accept: %v", w.id, err)
			}
			return
		}
		w.acceptOne(fd)
	}
}

func (w *Worker) acceptOne(fd int) {
	_ = proxy.ApplyKeepAlive(fd, int(w.cfg.TCPKeepAlive.Seconds()))

	slot, handle, err := w.pool.Allocate()
	if err != nil {
		if w.cfg.Verbose {
			log.Printf("worker %d: pool exhausted, rejecting connection", w.id)
		}
		unix.Close(fd)
		return
	}

	release := func(*session.Session) { w.pool.Release(handle) }
	resolve := w.resolver()

	frontRegion := w.arena.At(int(handle) * 2)
	backRegion := w.arena.At(int(handle)*2 + 1)

	localAddr := localAddrString(fd)
	peerAddr := peerAddrString(fd)

	s := session.Init(slot, w.loop, release, resolve, w.cache, fd, frontRegion, backRegion, localAddr, peerAddr)
	if err := s.Start(); err != nil {
		if w.cfg.Verbose {
			log.Printf("worker %d: start session: %v", w.id, err)
		}
		w.pool.Release(handle)
		unix.Close(fd)
	}
}

func peerAddrString(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

// localAddrString captures the accepted socket's own local address,
// the value Via's synthesized entry reports as this hop's identity.
func localAddrString(fd int) string {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

func sockaddrString(sa unix.Sockaddr) string {
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	ip := net.IPv4(sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
	return fmt.Sprintf("%s:%d", ip, sa4.Port)
}
