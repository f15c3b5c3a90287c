// Package namecache implements the per-worker host-name → resolved
// IPv4-address cache described as an external collaborator in spec §6:
// bounded capacity with least-recently-used eviction, entries expiring
// after a fixed TTL.
//
// TTL bookkeeping is delegated to github.com/patrickmn/go-cache, which
// already filters expired entries out of Get; a doubly-linked
// most-recently-used list on top supplies the capacity-bounded eviction
// go-cache doesn't do on its own.
package namecache
