package clock

import (
	"testing"
	"time"
)

func TestSim_SetNeverRewinds(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := NewSim(start)

	later := start.Add(5 * time.Minute)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Fatalf("expected %v, got %v", later, c.Now())
	}

	// Setting an earlier time must be a no-op.
	c.Set(start)
	if !c.Now().Equal(later) {
		t.Errorf("clock rewound to %v", c.Now())
	}
}

func TestSim_Advance(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := NewSim(start)
	c.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}

func TestWall_Location(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	w := NewWall(ist)
	if got := w.Now().Location(); got != ist {
		t.Errorf("expected IST location, got %v", got)
	}
}
