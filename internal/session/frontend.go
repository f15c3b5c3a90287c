package session

import (
	"github.com/loopfwd/loopfwd/internal/http1"
	"github.com/loopfwd/loopfwd/internal/iobuf"
)

// OnFrontendReadable handles a readiness event on the frontend fd:
// client → backend-bound buffer.
func (s *Session) OnFrontendReadable() {
	status, chunk := s.front.Recv(s.frontFD)

	switch status {
	case iobuf.StatusFull:
		if s.progress < RequestHeadFinished {
			s.Release()
			return
		}
		s.stopFrontendReads()
		return
	case iobuf.StatusShutdown, iobuf.StatusError:
		s.Release()
		return
	case iobuf.StatusWouldBlock:
		return
	}

	s.dispatchFrontendRead(chunk)
}

func (s *Session) dispatchFrontendRead(chunk []byte) {
	switch s.progress {
	case RequestStarted:
		s.parseRequestHead()

	case RequestHeadFinished:
		result := consumeBody(s.parser, s.reqMode, &s.reqSkip, chunk)
		switch result {
		case http1.Proceed:
			s.progress = RequestFinished
			s.startBackendWritesOnly()
		case http1.Continue:
			s.startBackendWritesOnly()
		case http1.Terminate:
			s.Release()
		}

	case RequestFinished:
		// Further request bytes only signal connection state; the
		// body (if any) has already been relayed. A zero-length
		// chunk was handled above as Shutdown.
	}
}

// parseRequestHead runs the head parser against the accumulated
// frontend window, writing the rewritten head into the backend
// buffer, and reacts to the result.
func (s *Session) parseRequestHead() {
	result := s.parser.ParseHead(&s.front, &s.back)
	switch result {
	case http1.Continue:
		return
	case http1.Terminate:
		s.Release()
		return
	}

	if len(s.parser.Host) == 0 {
		s.Release()
		return
	}

	mode, skip := s.parser.RequestBodyFraming()
	s.reqMode, s.reqSkip = mode, skip
	if mode == http1.BodyNone {
		s.progress = RequestFinished
	} else {
		s.progress = RequestHeadFinished
		// Body bytes that arrived bundled with the head in the same
		// recv are already sitting in s.front's window past what
		// ParseHead shrank off; a later OnFrontendReadable chunk is
		// not guaranteed, so account for them right here.
		if leftover := s.front.Bytes(); len(leftover) > 0 {
			switch consumeBody(s.parser, s.reqMode, &s.reqSkip, leftover) {
			case http1.Proceed:
				s.progress = RequestFinished
			case http1.Terminate:
				s.Release()
				return
			}
		}
	}

	host, port := string(s.parser.Host), s.parser.Port
	if s.backFD >= 0 && s.keepAlive && host == s.backendHost && port == s.backendPort {
		s.startBackendWritesOnly()
		return
	}

	s.teardownBackend()
	s.connectBackend(host, port)
}

// OnFrontendWritable handles a readiness event on the frontend fd:
// backend-filled buffer → client.
func (s *Session) OnFrontendWritable() {
	if s.front.Empty() {
		if !s.back.Empty() {
			iobuf.Swap(&s.front.ByteBuffer, &s.back.ByteBuffer)
			s.startBackendReadsOnly()
		} else if s.progress == ResponseFinished {
			if s.keepAlive {
				s.restartForKeepAlive()
			} else {
				s.Release()
			}
			return
		} else {
			s.stopFrontendWrites()
			return
		}
	}

	switch s.front.Send(s.frontFD) {
	case iobuf.StatusShutdown, iobuf.StatusError:
		s.Release()
	case iobuf.StatusWouldBlock:
		return
	}
}

func (s *Session) restartForKeepAlive() {
	s.front.Reset()
	s.back.Reset()
	s.parser.ResetRequest()
	s.progress = RequestStarted
	s.reqMode, s.reqSkip = http1.BodyNone, 0
	s.respMode, s.respSkip = http1.BodyNone, 0
	s.startFrontendReadsOnly()
}
