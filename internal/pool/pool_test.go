package pool

import "testing"

func TestAllocateReturnsDistinctSlots(t *testing.T) {
	p := New[int](3)

	s1, h1, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	s2, h2, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Fatal("expected distinct slot pointers")
	}
	if h1 == h2 {
		t.Fatal("expected distinct handles")
	}

	*s1 = 10
	*s2 = 20
	if *s1 == *s2 {
		t.Fatal("slots must not alias each other")
	}
}

func TestAllocateExhaustion(t *testing.T) {
	p := New[int](2)

	if _, _, err := p.Allocate(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.Allocate(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.Allocate(); err != ErrExhausted {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
}

func TestReleaseMakesSlotAvailableAgain(t *testing.T) {
	p := New[int](1)

	slot, handle, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	*slot = 42

	if _, _, err := p.Allocate(); err != ErrExhausted {
		t.Fatalf("got %v, want ErrExhausted before release", err)
	}

	p.Release(handle)

	reused, reusedHandle, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if reusedHandle != handle {
		t.Fatalf("got handle %d, want reused handle %d", reusedHandle, handle)
	}
	if reused != slot {
		t.Fatal("expected the same underlying slot to be handed back out")
	}
}

func TestCapacityAndFreeCount(t *testing.T) {
	p := New[int](4)
	if p.Capacity() != 4 {
		t.Fatalf("got capacity %d, want 4", p.Capacity())
	}
	if p.FreeCount() != 4 {
		t.Fatalf("got free count %d, want 4", p.FreeCount())
	}

	_, h, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if p.FreeCount() != 3 {
		t.Fatalf("got free count %d, want 3", p.FreeCount())
	}

	p.Release(h)
	if p.FreeCount() != 4 {
		t.Fatalf("got free count %d, want 4 after release", p.FreeCount())
	}
}
