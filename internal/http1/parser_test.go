package http1

import (
	"testing"

	"github.com/loopfwd/loopfwd/internal/iobuf"
)

func newBuf(t *testing.T, size int) iobuf.IOBuffer {
	t.Helper()
	return iobuf.NewIOBuffer(make([]byte, size))
}

func feed(buf *iobuf.IOBuffer, s string) []byte {
	tail := buf.Tail()
	n := copy(tail, s)
	buf.Grow(n)
	return buf.Bytes()[buf.Len()-n:]
}

func TestParseRequestHeadRewritesHopHeaders(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "GET /index.html HTTP/1.1\r\nHost: example.com:8080\r\nContent-Length: 0\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	result := p.ParseHead(&in, &out)
	if result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	if p.Method != "GET" || p.RequestURI != "/index.html" {
		t.Fatalf("got method %q uri %q", p.Method, p.RequestURI)
	}
	if string(p.Host) != "example.com" || p.Port != 8080 {
		t.Fatalf("got host %q port %d", p.Host, p.Port)
	}
	if p.Version != 1001 {
		t.Fatalf("got version %d, want 1001", p.Version)
	}

	want := "GET /index.html HTTP/1.1\r\nHost: example.com:8080\r\nContent-Length: 0\r\nVia: 1.1 10.0.0.1\r\nX-Forwarded-For: 203.0.113.9\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseRequestHeadExtendsExistingViaAndXFF(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "GET / HTTP/1.1\r\nHost: example.com\r\nVia: 1.0 upstream\r\nX-Forwarded-For: 198.51.100.2\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	want := "GET / HTTP/1.1\r\nHost: example.com\r\nVia: 1.0 upstream, 1.1 10.0.0.1\r\nX-Forwarded-For: 198.51.100.2, 203.0.113.9\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseRequestHeadNoTransformPassesThroughUnchanged(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "GET / HTTP/1.1\r\nHost: example.com\r\nCache-Control: no-transform\r\nVia: 1.0 upstream\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	want := "GET / HTTP/1.1\r\nHost: example.com\r\nCache-Control: no-transform\r\nVia: 1.0 upstream\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseRequestHeadSplitAcrossRecvBoundary(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	p := NewRequestParser("10.0.0.1", "203.0.113.9")

	feed(&in, "GET / HTTP/1.1\r\nHost: example.com\r")
	if result := p.ParseHead(&in, &out); result != Continue {
		t.Fatalf("got %v, want Continue on partial head", result)
	}

	feed(&in, "\n\r\n")
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed once the rest arrives", result)
	}
	if string(p.Host) != "example.com" {
		t.Fatalf("got host %q", p.Host)
	}
}

func TestParseRequestHeadFoldedHeaderLine(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "GET / HTTP/1.1\r\nHost: example.com\r\nX-Long: first\r\n second\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	want := "GET / HTTP/1.1\r\nHost: example.com\r\nX-Long: first\r\n second\r\nVia: 1.1 10.0.0.1\r\nX-Forwarded-For: 203.0.113.9\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseRequestHTTP10ForcesClose(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "GET / HTTP/1.0\r\nHost: example.com\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}
	if !p.ForceClose {
		t.Fatal("expected HTTP/1.0 request to force close")
	}
}

func TestParseResponseHeadKeepAlive(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.StartResponse()
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}
	if p.StatusCode != 200 || p.Reason != "OK" {
		t.Fatalf("got status %d reason %q", p.StatusCode, p.Reason)
	}
	if !p.KeepAlive {
		t.Fatal("expected HTTP/1.1 200 without Connection: close to keep alive")
	}
	mode, skip := p.ResponseBodyFraming()
	if mode != BodyContentLength || skip != 5 {
		t.Fatalf("got mode %v skip %d", mode, skip)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseResponseHeadNeverInjectsHopHeaders(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.StartResponse()
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("response head must pass through verbatim with no Via/X-Forwarded-For, got %q, want %q", got, want)
	}
}

func TestParseResponseHeadWithReceivedViaPassesThroughUnchanged(t *testing.T) {
	in := newBuf(t, 4096)
	out := newBuf(t, 4096)
	feed(&in, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nVia: 1.0 upstream\r\n\r\n")

	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.StartResponse()
	if result := p.ParseHead(&in, &out); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nVia: 1.0 upstream\r\n\r\n"
	if got := string(out.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseBodyChunked(t *testing.T) {
	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.Chunked = true
	mode, skip := p.RequestBodyFraming()
	if mode != BodyChunked {
		t.Fatalf("got mode %v, want BodyChunked", mode)
	}

	data := []byte("5\r\nhello\r\n0\r\n\r\n")
	result := p.ParseBody(&skip, data)
	if result != Proceed {
		t.Fatalf("got %v, want Proceed at end of chunked body", result)
	}
}

func TestParseBodyChunkedAcrossRecvBoundary(t *testing.T) {
	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.Chunked = true
	_, skip := p.RequestBodyFraming()

	if result := p.ParseBody(&skip, []byte("5\r")); result != Continue {
		t.Fatalf("got %v, want Continue", result)
	}
	if result := p.ParseBody(&skip, []byte("\nhello\r\n0\r")); result != Continue {
		t.Fatalf("got %v, want Continue", result)
	}
	if result := p.ParseBody(&skip, []byte("\n\r\n")); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}
}

func TestParseBodyChunkedWithTrailers(t *testing.T) {
	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.Chunked = true
	_, skip := p.RequestBodyFraming()

	data := []byte("3\r\nabc\r\n0\r\nX-Checksum: deadbeef\r\n\r\n")
	if result := p.ParseBody(&skip, data); result != Proceed {
		t.Fatalf("got %v, want Proceed", result)
	}
}

func TestParseBodyContentLength(t *testing.T) {
	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	p.ContentLength = 5
	mode, skip := p.RequestBodyFraming()
	if mode != BodyContentLength || skip != 5 {
		t.Fatalf("got mode %v skip %d", mode, skip)
	}

	// plain content-length bodies don't need the chunked sub-machine;
	// the session just decrements skip as bytes arrive.
	skip -= 5
	if skip != 0 {
		t.Fatalf("got skip %d, want 0", skip)
	}
}

func TestParseBodyNoneWithoutContentLength(t *testing.T) {
	p := NewRequestParser("10.0.0.1", "203.0.113.9")
	mode, _ := p.RequestBodyFraming()
	if mode != BodyNone {
		t.Fatalf("got mode %v, want BodyNone", mode)
	}
}
