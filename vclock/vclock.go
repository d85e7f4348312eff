// Package vclock is a deterministic virtual clock for the peripheral
// models. It counts in cycles of the 16 MHz base clock, so a timer running
// with prescaler p has an exact integer period of 1<<p cycles and no
// floating-point drift. All callbacks run on the caller's goroutine, in
// deadline order, one at a time.
package vclock

// BaseFrequencyHz is the nRF51 high-frequency clock, 16 MHz.
const BaseFrequencyHz = 0x01000000

type Clock struct {
	now    uint64
	timers []*Timer
}

func New() *Clock {
	return &Clock{}
}

// Now returns the current virtual time in base-clock cycles.
func (c *Clock) Now() uint64 { return c.now }

// Timer is a periodic event source attached to a Clock. While running it
// fires its callback once per period.
type Timer struct {
	clock   *Clock
	period  uint64
	next    uint64
	running bool
	cb      func()
}

// NewTimer registers a stopped timer firing cb. The callback must not block.
func (c *Clock) NewTimer(cb func()) *Timer {
	t := &Timer{clock: c, cb: cb}
	c.timers = append(c.timers, t)
	return t
}

// SetPeriod sets the tick period in base-clock cycles. Takes effect at the
// next Run.
func (t *Timer) SetPeriod(cycles uint64) {
	if cycles == 0 {
		cycles = 1
	}
	t.period = cycles
}

// Period returns the configured period in base-clock cycles.
func (t *Timer) Period() uint64 { return t.period }

// Run starts the timer; the first tick is one full period from now.
func (t *Timer) Run() {
	t.next = t.clock.now + t.period
	t.running = true
}

// Stop halts the timer without disturbing its period.
func (t *Timer) Stop() {
	t.running = false
}

func (t *Timer) Running() bool { return t.running }

// Advance moves virtual time forward by the given number of base-clock
// cycles, firing every due timer in deadline order. Ties fire in timer
// registration order, matching the single-threaded scheduling contract:
// a callback always runs to completion before the next one starts.
func (c *Clock) Advance(cycles uint64) {
	target := c.now + cycles
	for {
		var earliest *Timer
		for _, t := range c.timers {
			if !t.running || t.next > target {
				continue
			}
			if earliest == nil || t.next < earliest.next {
				earliest = t
			}
		}
		if earliest == nil {
			break
		}
		c.now = earliest.next
		earliest.next += earliest.period
		earliest.cb()
	}
	c.now = target
}
