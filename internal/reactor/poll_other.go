//go:build !linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollLoop is the non-Linux Loop backend: a level-triggered readiness
// poller built on the poll(2) syscall, the fallback step
// original_source's main.cc drops to when epoll isn't available.
type pollLoop struct {
	mu      sync.Mutex
	closed  bool
	order   []int
	data    map[int]any
	want    map[int]Events
	results []Event
}

// NewEpoll is named for parity with the Linux build's constructor;
// despite the name it returns the poll(2)-backed Loop on this
// platform. Callers only ever see the Loop interface.
func NewEpoll(maxEvents int) (Loop, error) {
	return &pollLoop{
		data:    make(map[int]any),
		want:    make(map[int]Events),
		results: make([]Event, 0, max(maxEvents, 128)),
	}, nil
}

func (l *pollLoop) Add(fd int, events Events, data any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, ok := l.want[fd]; !ok {
		l.order = append(l.order, fd)
	}
	l.want[fd] = events
	l.data[fd] = data
	return nil
}

func (l *pollLoop) Modify(fd int, events Events) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.want[fd] = events
	return nil
}

func (l *pollLoop) Remove(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	delete(l.want, fd)
	delete(l.data, fd)
	for i, f := range l.order {
		if f == fd {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

func toPollEvents(e Events) int16 {
	var out int16
	if e&Readable != 0 {
		out |= unix.POLLIN
	}
	if e&Writable != 0 {
		out |= unix.POLLOUT
	}
	return out
}

func fromPollEvents(raw int16) Events {
	var out Events
	if raw&unix.POLLIN != 0 {
		out |= Readable
	}
	if raw&unix.POLLOUT != 0 {
		out |= Writable
	}
	if raw&unix.POLLERR != 0 {
		out |= Error
	}
	if raw&(unix.POLLHUP|unix.POLLNVAL) != 0 {
		out |= Hup
	}
	return out
}

func (l *pollLoop) Wait(timeoutMillis int) ([]Event, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	fds := make([]unix.PollFd, len(l.order))
	for i, fd := range l.order {
		fds[i] = unix.PollFd{Fd: int32(fd), Events: toPollEvents(l.want[fd])}
	}
	l.mu.Unlock()

	var err error
	for {
		_, err = unix.Poll(fds, timeoutMillis)
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
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		l.results = append(l.results, Event{
			Fd:     fd,
			Events: fromPollEvents(pfd.Revents),
			Data:   l.data[fd],
		})
	}
	return l.results, nil
}

func (l *pollLoop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
