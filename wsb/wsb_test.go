package wsb

import (
	"math/rand"
	"testing"

	"github.com/cs144/rely/seq"
)

func TestNewHeadZero(t *testing.T) {
	b := New[int](4)
	if b.Head() != 0 || b.Tail() != 3 {
		t.Fatalf("Head=%d Tail=%d, want 0,3", b.Head(), b.Tail())
	}
}

func TestInsertGetOccupied(t *testing.T) {
	b := New[string](4)
	b.AdvanceHead(1)
	if b.Occupied(1) {
		t.Fatal("slot occupied before insert")
	}
	if err := b.Insert(1, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !b.Occupied(1) {
		t.Fatal("slot not occupied after insert")
	}
	if got := *b.Get(1); got != "a" {
		t.Errorf("Get(1) = %q, want a", got)
	}
}

func TestInsertOutOfRange(t *testing.T) {
	b := New[int](4)
	b.AdvanceHead(1) // window is now [1,4]
	if err := b.Insert(10, 1); err != ErrOutOfRange {
		t.Errorf("got %v, want ErrOutOfRange", err)
	}
}

func TestAdvanceHeadClearsOccupancy(t *testing.T) {
	b := New[int](4)
	b.AdvanceHead(1)
	b.Insert(1, 1)
	b.Insert(2, 2)
	if err := b.AdvanceHead(2); err != nil {
		t.Fatalf("AdvanceHead: %v", err)
	}
	if b.Occupied(1) {
		t.Error("seqno 1 still occupied after head passed it")
	}
	if !b.Occupied(2) {
		t.Error("seqno 2 should still be occupied")
	}
	if b.Head() != 2 {
		t.Errorf("Head = %d, want 2", b.Head())
	}
}

func TestAdvanceHeadRegressRejected(t *testing.T) {
	b := New[int](4)
	b.AdvanceHead(3)
	if err := b.AdvanceHead(3); err != ErrRegress {
		t.Errorf("no-op advance: got %v, want ErrRegress", err)
	}
	if err := b.AdvanceHead(2); err != ErrRegress {
		t.Errorf("regress: got %v, want ErrRegress", err)
	}
}

func TestReuseOfPhysicalSlotsAfterAdvance(t *testing.T) {
	// Capacity 3: seqnos 1 and 4 map to the same physical slot. Once the
	// head has passed 1, inserting at 4 must not disturb any still-valid
	// neighboring seqno.
	b := New[int](3)
	b.AdvanceHead(1)
	b.Insert(1, 100)
	b.Insert(2, 200)
	b.Insert(3, 300)
	b.AdvanceHead(4) // window now [4,6], slot reused by seqno 4
	b.Insert(4, 400)
	if !b.Occupied(4) || *b.Get(4) != 400 {
		t.Fatal("seqno 4 not correctly inserted into reused slot")
	}
	if b.Contains(1) {
		t.Error("seqno 1 should no longer be in range")
	}
}

func TestDoubleCapacityPreservesOccupied(t *testing.T) {
	b := New[int](4)
	b.AdvanceHead(1)
	b.Insert(1, 11)
	b.Insert(3, 33)
	b.DoubleCapacity()
	if b.Capacity() != 8 {
		t.Fatalf("Capacity = %d, want 8", b.Capacity())
	}
	if !b.Occupied(1) || *b.Get(1) != 11 {
		t.Error("seqno 1 lost across DoubleCapacity")
	}
	if !b.Occupied(3) || *b.Get(3) != 33 {
		t.Error("seqno 3 lost across DoubleCapacity")
	}
	if b.Head() != 1 || b.Tail() != 8 {
		t.Errorf("Head/Tail = %d/%d, want 1/8", b.Head(), b.Tail())
	}
}

func TestRandomizedHeadAdvanceNeverLosesUnpassedSlots(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const capacity = 16
	b := New[int](capacity)
	b.AdvanceHead(1)
	for i := 0; i < 200; i++ {
		s := b.Head().Add(uint32(rng.Intn(capacity)))
		b.Insert(s, int(s))
		if rng.Intn(3) == 0 {
			adv := b.Head().Add(uint32(1 + rng.Intn(capacity/2)))
			b.AdvanceHead(adv)
		}
		for s := b.Head(); s.LessThan(b.Tail().Add(1)); s = s.Add(1) {
			if b.Occupied(s) && *b.Get(s) != int(s) {
				t.Fatalf("slot %d corrupted: got %d", s, *b.Get(s))
			}
		}
	}
}

func TestSeqNumOrderingWraparoundStaysConsistentWithBuffer(t *testing.T) {
	b := New[int](4)
	// Place the head just below the uint32 wrap boundary (a fresh head of 0
	// cannot advance there: under modular comparison 0xfffffffe precedes 0),
	// then advance it so the window straddles the wrap, to exercise
	// LessThan's wraparound handling inside Contains/AdvanceHead.
	b.head = seq.Num(0xfffffffc)
	b.AdvanceHead(seq.Num(0xfffffffe))
	if !b.Contains(seq.Num(0xfffffffe)) || !b.Contains(seq.Num(1)) {
		t.Fatal("window should wrap across the uint32 boundary")
	}
}
