package seq

import "testing"

func TestLessThan(t *testing.T) {
	cases := []struct {
		a, b Num
		want bool
	}{
		{1, 2, true},
		{2, 1, false},
		{1, 1, false},
		{0, 1, true},
		{^Num(0), 0, true}, // wraparound: max value precedes 0.
		{0, ^Num(0), false},
	}
	for _, c := range cases {
		if got := c.a.LessThan(c.b); got != c.want {
			t.Errorf("%d.LessThan(%d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestInRange(t *testing.T) {
	const head, width = 10, 4 // window covers [10,14)
	for n := Num(0); n < 20; n++ {
		want := n >= head && n < head+width
		if got := n.InRange(head, width); got != want {
			t.Errorf("%d.InRange(%d,%d) = %v, want %v", n, head, width, got, want)
		}
	}
}

func TestAddSub(t *testing.T) {
	n := Num(5)
	if got := n.Add(3); got != 8 {
		t.Errorf("Add: got %d, want 8", got)
	}
	if got := Num(8).Sub(Num(5)); got != 3 {
		t.Errorf("Sub: got %d, want 3", got)
	}
}
