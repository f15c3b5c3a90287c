package session

import "github.com/loopfwd/loopfwd/internal/reactor"

// Dispatch routes one reactor.Event to the right Frontend/Backend
// handler for the Token it was registered with. It is the single
// entry point a worker's event loop calls for every readiness
// notification. Session touches the reactor only to register
// (Start, connectBackend), re-arm (the arm* helpers) and deregister
// (Release, teardownBackend) its own fds.
//
// Error/Hup bits aren't handled separately — they surface as an
// EAGAIN-free read() or write() returning an error or EOF the next
// time the corresponding handler runs, which is what releases the
// session.
func Dispatch(ev reactor.Event) {
	tok, ok := ev.Data.(*Token)
	if !ok || tok == nil {
		return
	}
	s := tok.Session
	readable := ev.Events&reactor.Readable != 0
	writable := ev.Events&reactor.Writable != 0
	// Neither bit set means only Error/Hup fired; try the read path so
	// the handler's Recv/Send surfaces the failure.
	if !readable && !writable {
		readable = true
	}

	if tok.IsBackend {
		// While a connect is pending the fd is registered for both
		// directions purely to catch the completion; resolving it is
		// the only thing this wakeup means, regardless of which bit
		// fired. A later wakeup drives the normal read/write flow.
		if s.connecting {
			s.OnBackendWritable()
			return
		}
		if readable {
			s.OnBackendReadable()
			if s.released {
				return
			}
		}
		if writable {
			s.OnBackendWritable()
		}
		return
	}

	if readable {
		s.OnFrontendReadable()
		if s.released {
			return
		}
	}
	if writable {
		s.OnFrontendWritable()
	}
}
