package http1

import "math"

// BodyMode is how the current message's body is framed, decided once
// right after the head finishes.
type BodyMode int

const (
	// BodyNone means there is no body; Progress jumps straight to the
	// *_FINISHED state.
	BodyNone BodyMode = iota
	// BodyContentLength means exactly skip bytes follow (the count the
	// framing call returns).
	BodyContentLength
	// BodyChunked means the chunked transfer-coding sub-state machine
	// governs when the body ends.
	BodyChunked
	// BodyWaitShutdown means body bytes flow until the peer closes its
	// write side; only a response in this framing.
	BodyWaitShutdown
)

type chunkState int

const (
	stateNoSearch chunkState = iota
	stateMarkerCRSearch
	stateMarkerLFExpect
	stateChunkCRExpect
	stateChunkLFExpect
	stateTrailerCRSearch
	stateTrailerLFExpect
	stateTrailerCR2Expect
	stateTrailerLF2Expect
)

type bodyState struct {
	state       chunkState
	markerValue int64
	bodyEnd     bool
}

func (b *bodyState) reset() {
	*b = bodyState{}
}

// RequestBodyFraming decides the request body's framing immediately
// after ParseHead returns Proceed.
func (p *Parser) RequestBodyFraming() (mode BodyMode, skip int64) {
	if p.Chunked {
		p.body.reset()
		return BodyChunked, 0
	}
	if p.ContentLength != Unset && p.ContentLength > 0 {
		return BodyContentLength, p.ContentLength
	}
	return BodyNone, 0
}

// ResponseBodyFraming decides the response body's framing immediately
// after ParseHead returns Proceed in response mode.
func (p *Parser) ResponseBodyFraming() (mode BodyMode, skip int64) {
	if p.Chunked {
		p.body.reset()
		return BodyChunked, 0
	}
	if p.ContentLength == Unset && p.Version < 1001 && !p.KeepAlive {
		return BodyWaitShutdown, 0
	}
	if p.ContentLength != Unset && p.ContentLength > 0 {
		return BodyContentLength, p.ContentLength
	}
	return BodyNone, 0
}

// ParseBody advances the chunked-body sub-state machine (or, for a
// plain content-length body, just decrements *skipChunk) across chunk,
// the newly received bytes. *skipChunk must already reflect the current
// segment's remaining byte count; callers using BodyContentLength
// framing don't need ParseBody at all — a plain skip subtraction
// suffices — this method exists for BodyChunked framing.
func (p *Parser) ParseBody(skipChunk *int64, chunk []byte) Result {
	i := 0
	for i < len(chunk) {
		if *skipChunk > 0 {
			n := *skipChunk
			remain := int64(len(chunk) - i)
			if n > remain {
				n = remain
			}
			i += int(n)
			*skipChunk -= n
			continue
		}

		b := chunk[i]

		switch p.body.state {
		case stateNoSearch:
			if isHexDigit(b) {
				if p.body.markerValue > (math.MaxInt64-15)/16 {
					return Terminate
				}
				p.body.markerValue = p.body.markerValue*16 + int64(hexVal(b))
				i++
				continue
			}
			if b != ';' && b != '\r' {
				return Terminate
			}
			// Both chunk-extensions and the marker's own CR are
			// handled by MARKER_CR_SEARCH; re-examine the same byte
			// there instead of duplicating the CRLF scan here.
			p.body.state = stateMarkerCRSearch

		case stateMarkerCRSearch:
			if b != '\r' {
				i++
				continue
			}
			i++
			if i == len(chunk) {
				p.body.state = stateMarkerLFExpect
				return Continue
			}
			if chunk[i] != '\n' {
				// Not a marker end after all; keep searching for the
				// next \r without having consumed this byte's role
				// as a potential search restart.
				continue
			}
			i++
			p.markerEnd()
			*skipChunk = p.afterMarkerEnd()

		case stateMarkerLFExpect:
			if b != '\n' {
				return Terminate
			}
			i++
			p.markerEnd()
			*skipChunk = p.afterMarkerEnd()

		case stateChunkCRExpect:
			if p.body.bodyEnd {
				if b == '\r' {
					i++
					p.body.state = stateChunkLFExpect
					continue
				}
				p.body.state = stateTrailerCRSearch
				continue
			}
			if b != '\r' {
				return Terminate
			}
			i++
			p.body.state = stateChunkLFExpect

		case stateChunkLFExpect:
			if b != '\n' {
				return Terminate
			}
			i++
			if p.body.bodyEnd {
				return Proceed
			}
			p.body.state = stateNoSearch

		case stateTrailerCRSearch:
			if b == '\r' {
				p.body.state = stateTrailerLFExpect
			}
			i++

		case stateTrailerLFExpect:
			if b == '\n' {
				p.body.state = stateTrailerCR2Expect
			} else {
				p.body.state = stateTrailerCRSearch
			}
			i++

		case stateTrailerCR2Expect:
			if b == '\r' {
				p.body.state = stateTrailerLF2Expect
			} else {
				p.body.state = stateTrailerCRSearch
			}
			i++

		case stateTrailerLF2Expect:
			i++
			if b == '\n' {
				return Proceed
			}
			p.body.state = stateTrailerCRSearch
		}
	}

	return Continue
}

// markerEnd finalizes a chunk-size marker once its terminating CR has
// been seen: a zero-length marker is the terminator chunk.
func (p *Parser) markerEnd() {
	if p.body.markerValue == 0 {
		p.body.bodyEnd = true
	}
}

// afterMarkerEnd computes the payload byte count for the chunk just
// parsed (0 for the terminator chunk) and arms the state that consumes
// the CRLF following it.
func (p *Parser) afterMarkerEnd() int64 {
	p.body.state = stateChunkCRExpect
	if p.body.bodyEnd {
		return 0
	}
	skip := p.body.markerValue
	p.body.markerValue = 0
	return skip
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}
