// Package iobuf implements the fixed-capacity buffer types that the proxy
// relays bytes through: ByteBuffer, a cursor window over a caller-owned
// storage region, and IOBuffer, which adds non-blocking recv/send and
// formatted append on top of it.
//
// Two IOBuffers over distinct regions can trade places by exchanging their
// pointer/length/base triples in Swap; no bytes move.
package iobuf
