// Package irq models level-triggered interrupt lines between devices and
// an interrupt controller.
package irq

// Line is one interrupt line. Set drives the level; the sink sees every
// level change through its handler.
type Line struct {
	level   bool
	handler func(level bool)
}

// NewLine returns a line whose level changes are delivered to handler.
// A nil handler is allowed; the line then just latches its level.
func NewLine(handler func(level bool)) *Line {
	return &Line{handler: handler}
}

func (l *Line) Set(level bool) {
	if l.level == level {
		return
	}
	l.level = level
	if l.handler != nil {
		l.handler(level)
	}
}

func (l *Line) Raise() { l.Set(true) }
func (l *Line) Lower() { l.Set(false) }

// Level reports the current line level.
func (l *Line) Level() bool { return l.level }

// CombineOr returns n input lines whose OR drives out. The timer block uses
// this to fold its three sub-timer levels into the one line the interrupt
// controller sees.
func CombineOr(n int, out *Line) []*Line {
	levels := make([]bool, n)
	lines := make([]*Line, n)
	for i := range lines {
		i := i
		lines[i] = NewLine(func(level bool) {
			levels[i] = level
			any := false
			for _, l := range levels {
				any = any || l
			}
			out.Set(any)
		})
	}
	return lines
}

// Controller is a minimal stand-in for the CPU-side interrupt controller:
// it records which numbered lines are currently asserted.
type Controller struct {
	pending uint32
}

func NewController() *Controller {
	return &Controller{}
}

// Line returns the controller's input line for interrupt number n.
func (c *Controller) Line(n int) *Line {
	return NewLine(func(level bool) {
		if level {
			c.pending |= 1 << uint(n)
		} else {
			c.pending &^= 1 << uint(n)
		}
	})
}

// Pending returns the asserted-line bitmask.
func (c *Controller) Pending() uint32 { return c.pending }

// Asserted reports whether line n is currently asserted.
func (c *Controller) Asserted(n int) bool { return c.pending&(1<<uint(n)) != 0 }
