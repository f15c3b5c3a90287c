//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollLoop is the Linux Loop backend, one epoll instance per
// accept-worker.
type epollLoop struct {
	fd int

	mu      sync.Mutex
	closed  bool
	data    map[int]any
	events  []unix.EpollEvent
	results []Event
}

// NewEpoll creates a Loop backed by epoll_create1, sized to expect up
// to maxEvents ready fds per Wait call.
func NewEpoll(maxEvents int) (Loop, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if maxEvents <= 0 {
		maxEvents = 128
	}
	return &epollLoop{
		fd:      fd,
		data:    make(map[int]any),
		events:  make([]unix.EpollEvent, maxEvents),
		results: make([]Event, 0, maxEvents),
	}, nil
}

func toEpollEvents(e Events) uint32 {
	var out uint32
	if e&Readable != 0 {
		out |= unix.EPOLLIN
	}
	if e&Writable != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(raw uint32) Events {
	var out Events
	if raw&unix.EPOLLIN != 0 {
		out |= Readable
	}
	if raw&unix.EPOLLOUT != 0 {
		out |= Writable
	}
	if raw&unix.EPOLLERR != 0 {
		out |= Error
	}
	if raw&unix.EPOLLHUP != 0 || raw&unix.EPOLLRDHUP != 0 {
		out |= Hup
	}
	return out
}

func (l *epollLoop) Add(fd int, events Events, data any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(l.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	l.data[fd] = data
	return nil
}

func (l *epollLoop) Modify(fd int, events Events) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(l.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (l *epollLoop) Remove(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	delete(l.data, fd)
	err := unix.EpollCtl(l.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		// Already gone (e.g. the fd was closed before we got to
		// deregister it); epoll drops closed fds on its own.
		return nil
	}
	return err
}

func (l *epollLoop) Wait(timeoutMillis int) ([]Event, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	epfd := l.fd
	l.mu.Unlock()

	var n int
	var err error
	for {
		n, err = unix.EpollWait(epfd, l.events, timeoutMillis)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.results = l.results[:0]
	for i := 0; i < n; i++ {
		raw := l.events[i]
		fd := int(raw.Fd)
		l.results = append(l.results, Event{
			Fd:     fd,
			Events: fromEpollEvents(raw.Events),
			Data:   l.data[fd],
		})
	}
	return l.results, nil
}

func (l *epollLoop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.fd)
}
