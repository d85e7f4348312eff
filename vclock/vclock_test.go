package vclock

import (
	"testing"
)

func TestPeriodicFiring(t *testing.T) {
	c := New()
	fired := 0
	tm := c.NewTimer(func() { fired++ })
	tm.SetPeriod(4)
	tm.Run()

	c.Advance(16)
	if fired != 4 {
		t.Errorf("fired %d times over 16 cycles at period 4, want 4", fired)
	}
	c.Advance(3)
	if fired != 4 {
		t.Errorf("fired %d times, want still 4 (next deadline not reached)", fired)
	}
	c.Advance(1)
	if fired != 5 {
		t.Errorf("fired %d times, want 5", fired)
	}
}

func TestStoppedTimerDoesNotFire(t *testing.T) {
	c := New()
	fired := 0
	tm := c.NewTimer(func() { fired++ })
	tm.SetPeriod(2)
	tm.Run()
	c.Advance(4)
	tm.Stop()
	c.Advance(100)
	if fired != 2 {
		t.Errorf("fired %d times, want 2 (stopped timers receive no ticks)", fired)
	}
}

func TestDeadlineOrdering(t *testing.T) {
	c := New()
	var order []int
	fast := c.NewTimer(func() { order = append(order, 1) })
	slow := c.NewTimer(func() { order = append(order, 2) })
	fast.SetPeriod(2)
	slow.SetPeriod(5)
	fast.Run()
	slow.Run()

	c.Advance(6)
	// fast at 2, 4, 6; slow at 5
	want := []int{1, 1, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestCallbackMayStopItself(t *testing.T) {
	c := New()
	fired := 0
	var tm *Timer
	tm = c.NewTimer(func() {
		fired++
		tm.Stop()
	})
	tm.SetPeriod(1)
	tm.Run()
	c.Advance(10)
	if fired != 1 {
		t.Errorf("fired %d times, want 1 (callback stopped the timer)", fired)
	}
}

func TestRunRestartsPhase(t *testing.T) {
	c := New()
	fired := 0
	tm := c.NewTimer(func() { fired++ })
	tm.SetPeriod(10)
	tm.Run()
	c.Advance(9)
	tm.Run() // re-arm: next deadline is a full period away again
	c.Advance(9)
	if fired != 0 {
		t.Errorf("fired %d times, want 0", fired)
	}
	c.Advance(1)
	if fired != 1 {
		t.Errorf("fired %d times, want 1", fired)
	}
}
