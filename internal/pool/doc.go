// Package pool implements the fixed-capacity, free-list session
// allocator described as an external collaborator in spec §6: Allocate
// hands out a pointer into a pre-sized slice of T, Release returns it,
// and Allocate on an exhausted pool reports ErrExhausted instead of
// growing.
//
// Unlike the original's type-erased thread-local pool pointer per
// object type (spec Design Note §9), a Pool[T] here is an explicit
// value owned by one worker and passed to whatever constructs sessions
// from it — there is no global or thread-local registry to get out of
// sync.
package pool
