package http1

import (
	"bytes"
	"strconv"

	"github.com/loopfwd/loopfwd/internal/iobuf"
)

// parseHeaderLine dispatches on the header name: recognised names
// apply their effect to p's fields. On a request, Via/X-Forwarded-For
// are withheld for emitHopHeaders to emit at the blank line instead;
// on a response hop-header rewriting never applies, so those two
// names fall through and are copied verbatim like everything else.
func (p *Parser) parseHeaderLine(line []byte, out *iobuf.IOBuffer) Result {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return Terminate
	}
	name := bytes.TrimSpace(line[:colon])
	value := trimOWS(line[colon+1:])

	switch {
	case bytes.EqualFold(name, []byte("Host")):
		host, port, ok := splitHostPort(value)
		if !ok {
			return Terminate
		}
		p.Host = host
		p.Port = port

	case bytes.EqualFold(name, []byte("Content-Length")):
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || n < 0 {
			return Terminate
		}
		p.ContentLength = n

	case bytes.EqualFold(name, []byte("Transfer-Encoding")):
		if bytes.EqualFold(value, []byte("chunked")) {
			p.Chunked = true
		}

	case bytes.EqualFold(name, []byte("Cache-Control")):
		if bytes.EqualFold(value, []byte("no-transform")) {
			p.NoTransform = true
		}

	case bytes.EqualFold(name, []byte("Connection")):
		isClose := bytes.EqualFold(value, []byte("close"))
		isKeepAlive := bytes.EqualFold(value, []byte("keep-alive"))
		if p.mode == modeRequest {
			if isClose {
				p.ForceClose = true
			} else if isKeepAlive {
				p.ForceClose = false
			}
		} else {
			if isClose {
				p.KeepAlive = false
			} else if isKeepAlive && !p.ForceClose {
				p.KeepAlive = true
			}
		}

	case p.mode == modeRequest && bytes.EqualFold(name, []byte("Via")):
		p.sawVia = true
		p.Via = value
		return Continue

	case p.mode == modeRequest && bytes.EqualFold(name, []byte("X-Forwarded-For")):
		p.sawXFF = true
		p.XForwardedFor = value
		return Continue
	}

	if !out.AppendBytes(line) || !out.AppendString("\r\n") {
		return Terminate
	}
	return Continue
}

// emitHopHeaders writes the Via and X-Forwarded-For lines for the
// current message, per spec: pass the received line through unchanged
// under no-transform, otherwise extend it (or synthesize one from
// scratch when none was received).
func (p *Parser) emitHopHeaders(out *iobuf.IOBuffer) bool {
	if p.NoTransform {
		if p.sawVia && !emitLine(out, "Via", p.Via) {
			return false
		}
		if p.sawXFF && !emitLine(out, "X-Forwarded-For", p.XForwardedFor) {
			return false
		}
		return true
	}

	via := formatVersion(p.Version) + " " + p.LocalAddress
	if p.sawVia {
		via = string(p.Via) + ", " + via
	}
	if !emitLine(out, "Via", []byte(via)) {
		return false
	}

	xff := p.PeerAddress
	if p.sawXFF {
		xff = string(p.XForwardedFor) + ", " + xff
	}
	return emitLine(out, "X-Forwarded-For", []byte(xff))
}

// formatVersion renders a major*1000+minor version as "major.minor",
// the bare form Via entries use (no "HTTP/" prefix).
func formatVersion(version int) string {
	return strconv.Itoa(version/1000) + "." + strconv.Itoa(version%1000)
}

func emitLine(out *iobuf.IOBuffer, name string, value []byte) bool {
	return out.AppendString(name) && out.AppendString(": ") &&
		out.AppendBytes(value) && out.AppendString("\r\n")
}

// splitHostPort splits a Host header value into its host and port
// parts, defaulting port to 80 when absent. The returned host aliases
// value; it is never copied.
func splitHostPort(value []byte) (host []byte, port int, ok bool) {
	if len(value) == 0 {
		return nil, 0, false
	}
	if idx := bytes.LastIndexByte(value, ':'); idx >= 0 {
		p, err := strconv.Atoi(string(value[idx+1:]))
		if err != nil || p <= 0 || p > 65535 {
			return nil, 0, false
		}
		return value[:idx], p, true
	}
	return value, 80, true
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
