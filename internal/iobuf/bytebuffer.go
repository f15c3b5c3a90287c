package iobuf

// ByteBuffer is a cursor window [begin, end) over a fixed-size storage
// region owned by someone else (a session's slice of a worker's region
// arena). The region never moves or grows; only the window does.
type ByteBuffer struct {
	region     []byte
	begin, end int
}

// NewByteBuffer wraps region, an empty window at its base.
func NewByteBuffer(region []byte) ByteBuffer {
	return ByteBuffer{region: region}
}

// Reset empties the window and returns its begin to the region base.
func (b *ByteBuffer) Reset() {
	b.begin, b.end = 0, 0
}

// Len returns the number of bytes currently in the window.
func (b *ByteBuffer) Len() int {
	return b.end - b.begin
}

// Empty reports whether the window holds no bytes.
func (b *ByteBuffer) Empty() bool {
	return b.begin == b.end
}

// Capacity returns the size of the underlying storage region.
func (b *ByteBuffer) Capacity() int {
	return len(b.region)
}

// FreeSize returns the bytes remaining until the region's capacity is
// exhausted: capacity - (end - base). It does not account for bytes
// already consumed off the front; only Reset reclaims those.
func (b *ByteBuffer) FreeSize() int {
	return len(b.region) - b.end
}

// Bytes returns the current window contents. The returned slice aliases
// the region and is only valid until the next mutation of b.
func (b *ByteBuffer) Bytes() []byte {
	return b.region[b.begin:b.end]
}

// Tail returns the unused region past the window end, the space grow
// writes into.
func (b *ByteBuffer) Tail() []byte {
	return b.region[b.end:]
}

// Grow extends the window end by n, claiming bytes already written into
// Tail (e.g. by a recv syscall). It panics if that would exceed capacity;
// callers must check FreeSize first.
func (b *ByteBuffer) Grow(n int) {
	if b.end+n > len(b.region) {
		panic("iobuf: grow past region capacity")
	}
	b.end += n
}

// ShrinkFront advances the window begin by n, dropping n bytes off the
// front without moving the rest. It panics on underflow.
func (b *ByteBuffer) ShrinkFront(n int) {
	if b.begin+n > b.end {
		panic("iobuf: shrink past window end")
	}
	b.begin += n
}

// Swap exchanges the window and region of a and b without copying any
// bytes, per spec §3/§4.1: both sides simply trade pointer/length/base
// triples.
func Swap(a, b *ByteBuffer) {
	*a, *b = *b, *a
}
