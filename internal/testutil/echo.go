package testutil

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
)

// StartHTTPOriginServer starts a single-shot HTTP/1.1 origin on
// 127.0.0.1:0 that replies to the first request line it reads on
// each accepted connection with a canned 200 response of body, then
// closes. It stands in for the backend/origin side of an end-to-end
// proxy test the way StartEchoTCPServer stood in for teacher's raw
// TCP relay tests.
func StartHTTPOriginServer(t *testing.T, ctx context.Context, body string) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOneHTTPRequest(c, body)
		}
	}()

	return ln
}

func serveOneHTTPRequest(c net.Conn, body string) {
	defer c.Close()

	r := bufio.NewReader(c)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	_, _ = c.Write([]byte(resp))
}
