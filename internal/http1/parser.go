package http1

import (
	"bytes"
	"strconv"

	"github.com/loopfwd/loopfwd/internal/iobuf"
)

// Result is what a parse step reports back to the session state
// machine driving it.
type Result int

const (
	// Continue means the call consumed everything currently available
	// and needs more input before it can make further progress.
	Continue Result = iota
	// Proceed means the call reached a well-defined boundary (end of
	// head, end of body) and the session should advance Progress.
	Proceed
	// Terminate means the input is malformed; the session must be
	// released.
	Terminate
)

// Unset is the sentinel used for ContentLength when no value has been
// parsed yet. The chunk-size accumulator starts at 0 instead.
const Unset int64 = -1

type mode int

const (
	modeRequest mode = iota
	modeResponse
)

type lineKind int

const (
	lineStartLine lineKind = iota
	lineHeader
)

// Parser holds all per-message state needed to resume parsing across
// recv boundaries: which kind of line it currently expects, how much of
// the input window has already been turned into complete lines, the
// parsed head fields, and the chunked-body sub-state machine.
type Parser struct {
	mode      mode
	expect    lineKind
	lineStart int // offset into in.Bytes() where the current, not-yet-terminated line begins

	// Parsed head fields.
	Method        string
	RequestURI    string
	VersionText   string
	Version       int // major*1000 + minor
	Host          []byte
	Port          int
	StatusCode    int
	Reason        string
	ContentLength int64
	Chunked       bool
	KeepAlive     bool
	ForceClose    bool
	NoTransform   bool
	Via           []byte
	XForwardedFor []byte
	sawVia        bool
	sawXFF        bool

	// Pre-formatted addresses captured once at session construction,
	// used when emitting/extending Via and X-Forwarded-For.
	LocalAddress string
	PeerAddress  string

	body bodyState
}

// ResetRequest rearms the parser to scan a new request line, clearing
// every field parsed from the previous message but preserving
// LocalAddress/PeerAddress (session-lifetime, not message-lifetime).
func (p *Parser) ResetRequest() {
	local, peer := p.LocalAddress, p.PeerAddress
	*p = Parser{mode: modeRequest, expect: lineStartLine}
	p.ContentLength = Unset
	p.LocalAddress, p.PeerAddress = local, peer
	p.body.reset()
}

// StartResponse rearms the parser to scan a response line, preserving
// the request-derived fields (ForceClose in particular) that govern
// response keep-alive semantics. Hop-header capture fields are
// request-message-lifetime, not session-lifetime, and must not leak
// into the response (Via/X-Forwarded-For are never emitted for
// responses, but a stale NoTransform or VersionText would still be
// wrong to carry across).
func (p *Parser) StartResponse() {
	p.mode = modeResponse
	p.expect = lineStartLine
	p.lineStart = 0
	p.VersionText = ""
	p.ContentLength = Unset
	p.Chunked = false
	p.StatusCode = 0
	p.Reason = ""
	p.NoTransform = false
	p.Via = nil
	p.XForwardedFor = nil
	p.sawVia = false
	p.sawXFF = false
	p.body.reset()
}

// NewRequestParser creates a Parser ready to scan a request line.
func NewRequestParser(localAddr, peerAddr string) *Parser {
	p := &Parser{mode: modeRequest, expect: lineStartLine}
	p.ContentLength = Unset
	p.LocalAddress = localAddr
	p.PeerAddress = peerAddr
	return p
}

// ParseHead consumes as many complete lines as are available in in's
// window, dispatching each to the request-line/header or
// response-line/header handler, and writes the (possibly rewritten)
// head straight into out. It returns Proceed once the blank
// header-terminator line has been processed, Continue if in's window
// ran out first, and Terminate on a malformed line.
func (p *Parser) ParseHead(in, out *iobuf.IOBuffer) Result {
	data := in.Bytes()

	for {
		rel := bytes.Index(data[p.lineStart:], crlf)
		if rel < 0 {
			return Continue
		}

		crPos := p.lineStart + rel
		lineEnd := crPos

		// Header-line folding: a CRLF followed by SP/HTAB doesn't end
		// the line, it continues it. Keep extending lineEnd until we
		// find a CRLF that truly terminates the line, or run out of
		// buffered data to decide with (carry to next recv, leaving
		// lineStart untouched so the whole line is rescanned). A
		// blank line (the header-section terminator) can't be folded
		// — it has no value to continue — so it never needs the
		// one-byte lookahead the fold check requires.
		blank := p.expect == lineHeader && crPos == p.lineStart
		for p.expect == lineHeader && !blank {
			next := crPos + 2
			if next >= len(data) {
				return Continue
			}
			if data[next] != ' ' && data[next] != '\t' {
				break
			}

			rel = bytes.Index(data[next:], crlf)
			if rel < 0 {
				return Continue
			}
			crPos = next + rel
			lineEnd = crPos
		}

		line := data[p.lineStart:lineEnd]
		consumedThrough := crPos + 2

		var result Result
		switch p.expect {
		case lineStartLine:
			if p.mode == modeRequest {
				result = p.parseRequestLine(line)
			} else {
				result = p.parseResponseLine(line)
			}
			if result == Proceed {
				if !out.AppendBytes(line) || !out.AppendString("\r\n") {
					return Terminate
				}
				p.expect = lineHeader
				result = Continue
			}
		case lineHeader:
			if len(line) == 0 {
				if p.mode == modeRequest && !p.emitHopHeaders(out) {
					return Terminate
				}
				if !out.AppendString("\r\n") {
					return Terminate
				}
				in.ShrinkFront(consumedThrough)
				p.lineStart = 0
				return Proceed
			}
			result = p.parseHeaderLine(line, out)
		}

		if result == Terminate {
			return Terminate
		}

		p.lineStart = consumedThrough
	}
}

var crlf = []byte("\r\n")

func (p *Parser) parseRequestLine(line []byte) Result {
	parts := splitSP(line, 3)
	if len(parts) != 3 {
		return Terminate
	}

	p.Method = string(parts[0])
	p.RequestURI = string(parts[1])

	version, ok := parseHTTPVersion(parts[2])
	if !ok {
		return Terminate
	}
	p.VersionText = string(parts[2])
	p.Version = version
	if version == 1000 {
		p.ForceClose = true
	}

	return Proceed
}

func (p *Parser) parseResponseLine(line []byte) Result {
	parts := splitSP(line, 3)
	if len(parts) < 2 {
		return Terminate
	}

	version, ok := parseHTTPVersion(parts[0])
	if !ok {
		return Terminate
	}
	p.Version = version

	status, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return Terminate
	}
	p.StatusCode = status

	if len(parts) == 3 {
		p.Reason = string(parts[2])
	}

	if version >= 1001 && !p.ForceClose {
		p.KeepAlive = true
	}

	return Proceed
}

// splitSP splits line on single spaces into at most n fields, the last
// field keeping any remaining spaces (needed for the reason phrase,
// which is not further split).
func splitSP(line []byte, n int) [][]byte {
	var out [][]byte
	for len(out) < n-1 {
		idx := bytes.IndexByte(line, ' ')
		if idx < 0 {
			break
		}
		out = append(out, line[:idx])
		line = line[idx+1:]
	}
	if len(line) > 0 || len(out) > 0 {
		out = append(out, line)
	}
	return out
}

// parseHTTPVersion parses "HTTP/major.minor" into major*1000+minor.
func parseHTTPVersion(s []byte) (int, bool) {
	const prefix = "HTTP/"
	if len(s) <= len(prefix) || string(s[:len(prefix)]) != prefix {
		return 0, false
	}
	s = s[len(prefix):]
	dot := bytes.IndexByte(s, '.')
	if dot < 0 {
		return 0, false
	}
	major, err := strconv.Atoi(string(s[:dot]))
	if err != nil {
		return 0, false
	}
	minor, err := strconv.Atoi(string(s[dot+1:]))
	if err != nil {
		return 0, false
	}
	return major*1000 + minor, true
}
