// Package http1 implements the incremental, allocation-light HTTP/1.1
// parser shared by a session's Frontend and Backend endpoints: request
// line + headers, response line + headers, and the chunked-body
// sub-state machine, all driven one recv chunk at a time so a line (or
// a chunk-size marker) split across two reads resumes correctly on the
// next call.
//
// The parser never materializes a request or response object; it reads
// straight out of the caller's IOBuffer window and, for the head,
// writes the (possibly hop-header-rewritten) output directly into the
// destination endpoint's IOBuffer. Body bytes are never touched by the
// parser — they flow to the peer via the zero-copy buffer swap — Parser
// only tracks how many of them remain so the session knows when the
// body ends.
package http1
