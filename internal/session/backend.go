package session

import (
	"fmt"
	"strings"

	"github.com/loopfwd/loopfwd/internal/http1"
	"github.com/loopfwd/loopfwd/internal/iobuf"
	"github.com/loopfwd/loopfwd/internal/reactor"
	"golang.org/x/sys/unix"
)

// connectBackend resolves host (through the worker's name cache, via
// s.resolve) and opens a non-blocking TCP connection to host:port.
// The caller tears down any previous backend connection first. On
// EINPROGRESS the fd is registered for both readability and
// writability, and the connect is finished off the first resulting
// readiness event (see checkConnect).
func (s *Session) connectBackend(host string, port int) {
	s.backendHost, s.backendPort = host, port

	ip, err := s.resolve([]byte(host))
	if err != nil {
		s.handleConnectFailure(err)
		return
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		s.handleConnectFailure(err)
		return
	}

	addr := unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip.To4())

	err = unix.Connect(fd, &addr)
	if err == nil {
		if err := s.loop.Add(fd, reactor.Writable, &s.backTok); err != nil {
			unix.Close(fd)
			s.handleConnectFailure(err)
			return
		}
		s.backFD = fd
		s.connecting = false
		s.onBackendConnected()
		return
	}
	if err != unix.EINPROGRESS {
		unix.Close(fd)
		s.handleConnectFailure(err)
		return
	}

	s.backFD = fd
	s.connecting = true
	if err := s.loop.Add(fd, reactor.Readable|reactor.Writable, &s.backTok); err != nil {
		unix.Close(fd)
		s.backFD = -1
		s.connecting = false
		s.handleConnectFailure(err)
	}
}

// checkConnect resolves a pending EINPROGRESS connect on the backend
// fd's first readiness event, via SO_ERROR.
func (s *Session) checkConnect() {
	errno, err := unix.GetsockoptInt(s.backFD, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		s.handleConnectFailure(err)
		return
	}
	if errno != 0 {
		s.handleConnectFailure(unix.Errno(errno))
		return
	}

	s.connecting = false
	s.onBackendConnected()
}

// onBackendConnected arms the backend fd for the phase the session is
// actually in: writing the already-parsed request head (and whatever
// body bytes have accumulated in the backend buffer).
func (s *Session) onBackendConnected() {
	s.startBackendWritesOnly()
}

// handleConnectFailure implements the Backend-connect error path: a
// failure before the request was fully received is fatal (release);
// one after is reported to the client as a synthesized 502.
func (s *Session) handleConnectFailure(err error) {
	s.teardownBackend()

	if s.progress < RequestFinished {
		s.Release()
		return
	}

	s.writeBadGateway(err)
	s.keepAlive = false
	s.progress = ResponseFinished
	s.wakeFrontendForWriting()
}

// writeBadGateway synthesizes the 502 Bad Gateway response directly
// into the frontend buffer, matching original_source's error_callback
// template verbatim: strerror(errno) + " (" + errno + ")" as the body.
func (s *Session) writeBadGateway(err error) {
	var body string
	if errno, ok := err.(unix.Errno); ok {
		msg := errno.Error()
		if msg != "" {
			msg = strings.ToUpper(msg[:1]) + msg[1:]
		}
		body = fmt.Sprintf("%s (%d)", msg, int(errno))
	} else {
		body = err.Error()
	}

	resp := "HTTP/1.1 502 Bad Gateway\r\n" +
		"Connection: close\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" + body

	s.front.Reset()
	s.front.AppendString(resp)
}

// OnBackendReadable handles a readiness event on the backend fd:
// origin → frontend-bound buffer.
func (s *Session) OnBackendReadable() {
	status, chunk := s.back.Recv(s.backFD)

	switch status {
	case iobuf.StatusFull:
		s.stopBackendReads()
		return
	case iobuf.StatusShutdown:
		s.progress = ResponseFinished
		s.wakeFrontendForWriting()
		return
	case iobuf.StatusError:
		s.Release()
		return
	case iobuf.StatusWouldBlock:
		return
	}

	s.dispatchBackendRead(chunk)
}

func (s *Session) dispatchBackendRead(chunk []byte) {
	switch s.progress {
	case ResponseStarted:
		result := s.parser.ParseHead(&s.back, &s.front)
		switch result {
		case http1.Continue:
			return
		case http1.Terminate:
			s.Release()
			return
		}

		mode, skip := s.parser.ResponseBodyFraming()
		s.respMode, s.respSkip = mode, skip
		if mode == http1.BodyNone {
			s.progress = ResponseFinished
		} else if mode == http1.BodyWaitShutdown {
			s.progress = ResponseWaitShutdown
		} else {
			s.progress = ResponseHeadFinished
			// Body bytes bundled with the head in the same recv are
			// already sitting in s.back's window past what ParseHead
			// shrank off; count them now rather than waiting on a
			// later OnBackendReadable chunk that may never come.
			if leftover := s.back.Bytes(); len(leftover) > 0 {
				switch consumeBody(s.parser, s.respMode, &s.respSkip, leftover) {
				case http1.Proceed:
					s.progress = ResponseFinished
				case http1.Terminate:
					s.Release()
					return
				}
			}
		}
		s.keepAlive = s.parser.KeepAlive && !s.parser.ForceClose
		s.startFrontendWritesOnly()

	case ResponseHeadFinished:
		result := consumeBody(s.parser, s.respMode, &s.respSkip, chunk)
		switch result {
		case http1.Proceed:
			s.progress = ResponseFinished
			s.wakeFrontendForWriting()
		case http1.Continue:
			s.wakeFrontendForWriting()
		case http1.Terminate:
			s.Release()
		}

	case ResponseWaitShutdown:
		s.wakeFrontendForWriting()

	case ResponseFinished:
		// Unexpected trailing bytes; ignored until the peer closes.
	}
}

// OnBackendWritable handles a readiness event on the backend fd:
// frontend-filled buffer → origin, or the resolution of a pending
// non-blocking connect.
func (s *Session) OnBackendWritable() {
	if s.connecting {
		s.checkConnect()
		return
	}

	if s.back.Empty() {
		if !s.front.Empty() {
			iobuf.Swap(&s.back.ByteBuffer, &s.front.ByteBuffer)
			s.startFrontendReadsOnly()
		} else if s.progress == RequestFinished {
			s.back.Reset()
			s.progress = ResponseStarted
			s.parser.StartResponse()
			s.startBackendReadsOnly()
			return
		} else {
			s.stopBackendWrites()
			return
		}
	}

	switch s.back.Send(s.backFD) {
	case iobuf.StatusShutdown, iobuf.StatusError:
		s.Release()
	case iobuf.StatusWouldBlock:
		return
	}
}
