package session

import "github.com/loopfwd/loopfwd/internal/http1"

// consumeBody advances skip by the body bytes accumulated in chunk,
// using the chunked sub-state machine only when the message is
// actually chunked. A content-length body needs no state machine —
// ParseBody's generic skipChunk fast path drains the counter but never
// reports completion on its own, since Proceed is only raised by the
// chunk-terminator and trailer states — so that framing is handled
// here with a direct subtraction instead.
func consumeBody(p *http1.Parser, mode http1.BodyMode, skip *int64, chunk []byte) http1.Result {
	if mode == http1.BodyChunked {
		return p.ParseBody(skip, chunk)
	}

	n := int64(len(chunk))
	if n > *skip {
		n = *skip
	}
	*skip -= n
	if *skip == 0 {
		return http1.Proceed
	}
	return http1.Continue
}
