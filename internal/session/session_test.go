package session

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/loopfwd/loopfwd/internal/namecache"
	"github.com/loopfwd/loopfwd/internal/reactor"
	"golang.org/x/sys/unix"
)

// originServer accepts exactly one connection and hands it to handle,
// matching the single-request scope of these tests.
func originServer(t *testing.T, handle func(net.Conn)) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}()
	return ln
}

// newTestSession wires a Session over a fresh socketpair standing in
// for the accepted client connection, returning the session alongside
// the loop that drives it and the fd the test itself reads/writes as
// the "client". Every Host header these tests send resolves to
// 127.0.0.1, regardless of the name in it.
func newTestSession(t *testing.T, loop reactor.Loop) (s *Session, clientFD int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatal(err)
	}

	cache := namecache.New(16, time.Minute)
	resolve := func(host []byte) (net.IP, error) {
		return net.ParseIP("127.0.0.1").To4(), nil
	}
	release := func(*Session) {}

	slot := &Session{}
	s = Init(slot, loop, release, resolve, cache, fds[0],
		make([]byte, 4096), make([]byte, 4096), "10.0.0.1", "203.0.113.9")

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { unix.Close(fds[1]) })
	return s, fds[1]
}

// drive pumps the reactor loop, dispatching every event to the Session
// machinery, until cond reports done or the deadline passes.
func drive(t *testing.T, loop reactor.Loop, deadline time.Time, cond func() bool) {
	t.Helper()
	for {
		if cond() {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatal("timed out waiting for session to progress")
		}
		events, err := loop.Wait(int(remaining / time.Millisecond))
		if err != nil {
			t.Fatalf("loop.Wait: %v", err)
		}
		for _, ev := range events {
			Dispatch(ev)
		}
	}
}

func TestSessionProxiesContentLengthRequestAndResponse(t *testing.T) {
	loop, err := reactor.NewEpoll(16)
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	origin := originServer(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		req, err := http.ReadRequest(r)
		if err != nil {
			return
		}
		body := make([]byte, req.ContentLength)
		if _, err := r.Read(body); err != nil && len(body) > 0 {
			return
		}
		_ = req.Body.Close()
		resp := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
		c.Write([]byte(resp))
	})
	defer origin.Close()

	originAddr := origin.Addr().String()

	s, clientFD := newTestSession(t, loop)

	req := "POST /upload HTTP/1.1\r\nHost: " + originAddr +
		"\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	drive(t, loop, deadline, func() bool { return s.Progress() == ResponseFinished })

	const want = "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	got := readFromClient(t, loop, clientFD, deadline, len(want))

	if string(got) != want {
		t.Fatalf("unexpected response from proxy: %q", got)
	}
}

func TestSessionProxiesChunkedRequestBody(t *testing.T) {
	loop, err := reactor.NewEpoll(16)
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	bodyOK := make(chan bool, 1)
	origin := originServer(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		req, err := http.ReadRequest(r)
		if err != nil {
			bodyOK <- false
			return
		}
		body := make([]byte, 5)
		n, _ := req.Body.Read(body)
		_ = req.Body.Close()
		bodyOK <- string(body[:n]) == "hello"
		c.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	})
	defer origin.Close()

	s, clientFD := newTestSession(t, loop)

	req := "POST /upload HTTP/1.1\r\nHost: " + origin.Addr().String() +
		"\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	drive(t, loop, deadline, func() bool { return s.Progress() == ResponseFinished })

	select {
	case ok := <-bodyOK:
		if !ok {
			t.Fatal("origin did not see the dechunked body intact")
		}
	default:
		t.Fatal("origin never ran")
	}
}

func TestSessionSynthesizesBadGatewayOnConnectRefused(t *testing.T) {
	loop, err := reactor.NewEpoll(16)
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	dead, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := dead.Addr().String()
	dead.Close()

	s, clientFD := newTestSession(t, loop)

	req := "GET / HTTP/1.1\r\nHost: " + deadAddr + "\r\nConnection: close\r\n\r\n"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	drive(t, loop, deadline, func() bool { return s.Progress() == ResponseFinished })

	const wantPrefix = "HTTP/1.1 502 Bad Gateway\r\n"
	got := readFromClient(t, loop, clientFD, deadline, len(wantPrefix))

	if !strings.HasPrefix(string(got), wantPrefix) {
		t.Fatalf("expected a 502 response, got %q", got)
	}
}

// readFromClient drives loop until at least minBytes have been read
// from clientFD, returning everything read.
func readFromClient(t *testing.T, loop reactor.Loop, clientFD int, deadline time.Time, minBytes int) []byte {
	t.Helper()
	buf := make([]byte, 512)
	var got []byte
	drive(t, loop, deadline, func() bool {
		n, err := unix.Read(clientFD, buf)
		if err == unix.EAGAIN {
			return len(got) >= minBytes
		}
		if n > 0 {
			got = append(got, buf[:n]...)
		}
		return len(got) >= minBytes
	})
	return got
}

