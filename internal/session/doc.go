// Package session implements the per-connection Frontend/Backend
// state machines and the Progress sequencing that drives them: the
// part of the system that decides, on every readiness event, whether
// to recv, to parse, to swap buffers with the peer, or to send.
//
// A Session is allocated from a worker's pool.Pool, owns two fixed-size
// iobuf.IOBuffer windows carved from the worker's region.Arena, and is
// driven exclusively by the worker goroutine that accepted its
// frontend connection — nothing here is safe for concurrent use from
// two goroutines.
package session
