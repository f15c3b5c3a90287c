package iobuf

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// Status is the outcome of a non-blocking recv or send.
type Status int

const (
	// StatusOK means the syscall made progress; for recv, chunk holds
	// what was read.
	StatusOK Status = iota
	// StatusFull means the window is already at capacity; nothing was
	// attempted.
	StatusFull
	// StatusShutdown means recv saw EOF (peer half-closed its write
	// side).
	StatusShutdown
	// StatusWouldBlock means the syscall would have blocked; the caller
	// should wait for the next readiness event.
	StatusWouldBlock
	// StatusError means an unexpected I/O error occurred.
	StatusError
)

// IOBuffer is a ByteBuffer specialized with recv/send against a raw
// non-blocking file descriptor, and tail-append helpers used while
// rewriting headers.
type IOBuffer struct {
	ByteBuffer
}

// NewIOBuffer wraps region as an empty IOBuffer.
func NewIOBuffer(region []byte) IOBuffer {
	return IOBuffer{ByteBuffer: NewByteBuffer(region)}
}

// Recv reads once from fd into the buffer's tail. chunk is the slice of
// newly received bytes (a view into the window just appended), valid
// until the buffer's next mutation.
func (b *IOBuffer) Recv(fd int) (status Status, chunk []byte) {
	free := b.FreeSize()
	if free == 0 {
		return StatusFull, nil
	}

	n, err := unix.Read(fd, b.Tail())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return StatusWouldBlock, nil
		}
		return StatusError, nil
	}
	if n == 0 {
		return StatusShutdown, nil
	}

	chunk = b.Tail()[:n]
	b.Grow(n)
	return StatusOK, chunk
}

// Send writes once from the buffer's window to fd, consuming whatever
// portion was accepted.
func (b *IOBuffer) Send(fd int) Status {
	if b.Empty() {
		return StatusOK
	}

	n, err := unix.Write(fd, b.Bytes())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return StatusWouldBlock
		}
		return StatusError
	}
	b.ShrinkFront(n)
	return StatusOK
}

// AppendBytes copies p into the tail. It reports false, leaving the
// buffer unchanged, if p would not fit in the remaining capacity — the
// caller (the header rewriter) must treat that as a fatal parse error
// per spec §3's output-overflow invariant.
func (b *IOBuffer) AppendBytes(p []byte) bool {
	if len(p) > b.FreeSize() {
		return false
	}
	copy(b.Tail(), p)
	b.Grow(len(p))
	return true
}

// AppendString is AppendBytes for a string, avoiding an intermediate
// allocation.
func (b *IOBuffer) AppendString(s string) bool {
	if len(s) > b.FreeSize() {
		return false
	}
	copy(b.Tail(), s)
	b.Grow(len(s))
	return true
}

// AppendInt formats n in decimal and appends it.
func (b *IOBuffer) AppendInt(n int) bool {
	var tmp [20]byte
	return b.AppendBytes(strconv.AppendInt(tmp[:0], int64(n), 10))
}
