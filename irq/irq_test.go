package irq

import (
	"testing"
)

func TestLineEdgeDelivery(t *testing.T) {
	var calls []bool
	l := NewLine(func(level bool) { calls = append(calls, level) })
	l.Raise()
	l.Raise() // no change, no delivery
	l.Lower()
	if len(calls) != 2 || calls[0] != true || calls[1] != false {
		t.Errorf("handler calls = %v, want [true false]", calls)
	}
}

func TestCombineOr(t *testing.T) {
	out := NewLine(nil)
	lines := CombineOr(3, out)

	lines[0].Raise()
	lines[2].Raise()
	if !out.Level() {
		t.Error("OR output low with inputs raised")
	}
	lines[0].Lower()
	if !out.Level() {
		t.Error("OR output dropped while one input is still high")
	}
	lines[2].Lower()
	if out.Level() {
		t.Error("OR output high with all inputs low")
	}
}

func TestControllerPending(t *testing.T) {
	c := NewController()
	l3 := c.Line(3)
	l5 := c.Line(5)
	l3.Raise()
	l5.Raise()
	l5.Lower()
	if c.Pending() != 1<<3 {
		t.Errorf("pending = %032b, want bit 3 only", c.Pending())
	}
	if !c.Asserted(3) || c.Asserted(5) {
		t.Error("Asserted disagrees with Pending")
	}
}
