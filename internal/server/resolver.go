package server

import (
	"context"
	"fmt"
	"net"

	"github.com/loopfwd/loopfwd/internal/session"
)

// resolver builds the per-worker session.Resolver: a name-cache
// lookup on the hot path, falling back to a blocking DNS lookup on a
// miss. Nothing here calls for an async DNS collaborator, and
// original_source resolves inline too (`http.cc`'s getaddrinfo call
// on the event-loop thread) — a real async resolver would need its
// own thread pool or notification channel that nothing else in this
// design needs, so the pragmatic blocking call inline is the grounded
// choice here.
func (w *Worker) resolver() session.Resolver {
	return func(host []byte) (net.IP, error) {
		if ip, ok := w.cache.Get(host); ok {
			return ip, nil
		}

		addrs, err := net.DefaultResolver.LookupIP(context.Background(), "ip4", string(host))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("resolve %s: no addresses", host)
		}

		ip := addrs[0].To4()
		w.cache.Insert(host, ip)
		return ip, nil
	}
}
