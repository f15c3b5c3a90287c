package region

import "github.com/indigo-web/utils/arena"

// Arena carves fixed-size, non-growing byte regions out of one
// contiguous backing allocation. regionSize is the capacity of each
// region handed out by At; slots is the number of regions the arena was
// sized for.
type Arena struct {
	backing    []byte
	regionSize int
	slots      int
}

// New allocates a single backing buffer sized for slots regions of
// regionSize bytes each, via a fixed-bound indigo-web/utils arena (min
// size == max size, so it never reallocates once filled).
func New(slots, regionSize int) *Arena {
	total := slots * regionSize
	a := arena.NewArena[byte](total, total)
	if total > 0 {
		a.Append(make([]byte, total)...)
	}

	return &Arena{
		backing:    a.Finish(),
		regionSize: regionSize,
		slots:      slots,
	}
}

// At returns the slot-th region: a regionSize-length slice rooted at
// slot*regionSize in the backing buffer. iobuf.ByteBuffer sizes its
// free space off len(region), so the returned slice's length must
// already span the whole region rather than growing into it via
// append. Two calls with the same slot alias the same bytes; callers
// (the session pool) must not hand out a slot twice while it's in use.
func (a *Arena) At(slot int) []byte {
	if slot < 0 || slot >= a.slots {
		panic("region: slot out of range")
	}
	start := slot * a.regionSize
	return a.backing[start : start+a.regionSize]
}

// RegionSize returns the fixed capacity of each region.
func (a *Arena) RegionSize() int {
	return a.regionSize
}
