// Package timer models the nRF51 TIMER peripheral block: three independent
// timer/counter engines sharing one address window and one interrupt line.
// Each sub-timer is a prescaled counter with four capture/compare channels,
// a selectable bit width, and a timer/counter mode switch.
package timer

import (
	"github.com/TheNetAdmin/qemu-microbit/guestlog"
	"github.com/TheNetAdmin/qemu-microbit/irq"
	"github.com/TheNetAdmin/qemu-microbit/vclock"
)

// Register offsets within one sub-timer, per the nRF51 reference manual.
const (
	regStart    = 0x000
	regStop     = 0x004
	regCount    = 0x008
	regClear    = 0x00C
	regShutdown = 0x010
	regCapture0 = 0x040 // ..0x04C, one per channel
	regEvents0  = 0x140 // ..0x14C, compare match events
	regShorts   = 0x200
	regIntenSet = 0x304
	regIntenClr = 0x308
	regMode     = 0x504
	regBitmode  = 0x508
	regPrescale = 0x510
	regCC0      = 0x540 // ..0x54C, compare targets
)

// Mode selects what drives the counter.
type Mode uint32

const (
	ModeTimer   Mode = 0 // free-runs against the prescaled clock
	ModeCounter Mode = 1 // wraps at the software limit in COUNT
)

// Bitmode selects the counter width. The encoding is the hardware's:
// 0 is 16 bit, 1 is 8 bit, 2 is 24 bit, 3 is 32 bit.
type Bitmode uint32

const (
	Bitmode16 Bitmode = 0
	Bitmode8  Bitmode = 1
	Bitmode24 Bitmode = 2
	Bitmode32 Bitmode = 3
)

func (b Bitmode) Mask() uint32 {
	switch b {
	case Bitmode8:
		return 0xFF
	case Bitmode16:
		return 0xFFFF
	case Bitmode24:
		return 0xFFFFFF
	default:
		return 0xFFFFFFFF
	}
}

// INTENSET/INTENCLR encode the compare-channel enables at bits 16..19.
const intenCompareShift = 16

const (
	// SubTimers is how many engines share the block window.
	SubTimers = 3
	// subStride is the address stride between sub-timers.
	subStride = 0x1000
	// WindowSize is the block's full address window.
	WindowSize = SubTimers * subStride

	numChannels = 4
)

type runState int

const (
	stateIdle runState = iota
	stateRunning
	statePaused
)

// SubTimer is one timer/counter engine.
type SubTimer struct {
	id    int
	tick  *vclock.Timer
	line  *irq.Line
	state runState

	mode      Mode
	bitmode   Bitmode
	prescaler uint32

	counter uint32
	mask    uint32 // latched from bitmode at Start
	limit   uint32 // reload limit, 0 in timer mode

	count   uint32 // software limit register (COUNT)
	capture [numChannels]uint32
	events  [numChannels]uint32
	cc      [numChannels]uint32
	inten   uint32
	shorts  uint32
}

// Block is the whole TIMER peripheral: three sub-timers behind one window.
type Block struct {
	name string
	sub  [SubTimers]*SubTimer
}

// New builds the block. Level changes of any sub-timer are OR-combined
// onto line.
func New(name string, clock *vclock.Clock, line *irq.Line) *Block {
	b := &Block{name: name}
	subLines := irq.CombineOr(SubTimers, line)
	for i := 0; i < SubTimers; i++ {
		s := &SubTimer{id: i, line: subLines[i], mask: Bitmode16.Mask()}
		s.tick = clock.NewTimer(s.onTick)
		b.sub[i] = s
	}
	return b
}

func (b *Block) Name() string { return b.name }

func (b *Block) Reset() {
	for _, s := range b.sub {
		s.tick.Stop()
		line := s.line
		tick := s.tick
		id := s.id
		*s = SubTimer{id: id, tick: tick, line: line, mask: Bitmode16.Mask()}
		line.Lower()
	}
}

// Sub exposes one engine, mainly for tests and machine wiring.
func (b *Block) Sub(i int) *SubTimer { return b.sub[i] }

func (b *Block) Read(offset uint32, width uint8) uint32 {
	if offset >= WindowSize {
		guestlog.BadOffset(b.name, false, offset)
		return 0
	}
	return b.sub[offset/subStride].read(b.name, offset%subStride)
}

func (b *Block) Write(offset uint32, value uint32, width uint8) {
	if offset >= WindowSize {
		guestlog.BadOffset(b.name, true, offset)
		return
	}
	b.sub[offset/subStride].write(b.name, offset%subStride, value)
}

func (s *SubTimer) read(name string, offset uint32) uint32 {
	switch offset {
	case regStart, regStop, regClear, regShutdown:
		// Task registers read as zero.
		return 0
	case regCount:
		return s.count
	case regCapture0, regCapture0 + 4, regCapture0 + 8, regCapture0 + 12:
		return s.capture[(offset-regCapture0)>>2]
	case regEvents0, regEvents0 + 4, regEvents0 + 8, regEvents0 + 12:
		return s.events[(offset-regEvents0)>>2]
	case regShorts:
		return s.shorts
	case regIntenSet, regIntenClr:
		guestlog.Report(guestlog.Unimp, name,
			"%s: `INTEN` not implemented when reading 0x%03x", name, offset)
		return 0
	case regMode:
		return uint32(s.mode)
	case regBitmode:
		return uint32(s.bitmode)
	case regPrescale:
		return s.prescaler
	case regCC0, regCC0 + 4, regCC0 + 8, regCC0 + 12:
		return s.cc[(offset-regCC0)>>2]
	default:
		guestlog.BadOffset(name, false, offset)
		return 0
	}
}

func (s *SubTimer) write(name string, offset uint32, value uint32) {
	switch offset {
	case regStart:
		if value != 0 {
			s.start()
		}
	case regStop:
		if value != 0 {
			s.stop()
		}
	case regCount:
		// The software limit only exists in counter mode.
		if s.mode == ModeCounter {
			s.count = value
			s.reloadLimit()
		}
	case regClear:
		if value != 0 {
			s.clear()
		}
	case regShutdown:
		if value != 0 {
			s.shutdown()
		}
	case regCapture0, regCapture0 + 4, regCapture0 + 8, regCapture0 + 12:
		// A capture task snapshots the live counter; the written value
		// is irrelevant.
		s.capture[(offset-regCapture0)>>2] = s.counter
	case regEvents0, regEvents0 + 4, regEvents0 + 8, regEvents0 + 12:
		s.events[(offset-regEvents0)>>2] = value
	case regShorts:
		s.shorts = value
	case regIntenSet:
		s.inten |= (value >> intenCompareShift) & 0xF
	case regIntenClr:
		s.inten &^= (value >> intenCompareShift) & 0xF
	case regMode:
		s.mode = Mode(value & 1)
		s.reloadLimit()
	case regBitmode:
		// Latched into the wraparound mask at the next Start, not
		// against a counter already in flight.
		s.bitmode = Bitmode(value & 3)
	case regPrescale:
		s.prescaler = value & 0xF
	case regCC0, regCC0 + 4, regCC0 + 8, regCC0 + 12:
		s.cc[(offset-regCC0)>>2] = value
	default:
		guestlog.BadOffset(name, true, offset)
	}
}

// start begins or resumes ticking. A paused engine resumes with its
// in-flight counter, mask and frequency; anything else latches bitmode and
// prescaler and reloads the limit.
func (s *SubTimer) start() {
	if s.state == statePaused {
		s.state = stateRunning
		s.tick.Run()
		return
	}
	s.mask = s.bitmode.Mask()
	s.tick.SetPeriod(1 << s.prescaler)
	s.reloadLimit()
	s.state = stateRunning
	s.tick.Run()
}

// stop is a soft pause: the counter keeps its value and the next start
// does not reload.
func (s *SubTimer) stop() {
	if s.state != stateRunning {
		return
	}
	s.tick.Stop()
	s.state = statePaused
}

func (s *SubTimer) clear() {
	s.counter = 0
	s.reloadLimit()
}

// shutdown halts and fully resets the running state; the next start
// reloads even if a pause was pending.
func (s *SubTimer) shutdown() {
	s.tick.Stop()
	s.counter = 0
	s.reloadLimit()
	s.state = stateIdle
}

func (s *SubTimer) reloadLimit() {
	if s.mode == ModeCounter {
		s.limit = s.count
	} else {
		s.limit = 0
	}
}

// onTick advances the counter by one and evaluates wrap and compare
// conditions. In timer mode the enabled channels are evaluated 0 through 3
// and the last one evaluated decides the final line level; a match by an
// earlier channel can be masked by a later non-match within the same tick.
// That aliasing is the observed hardware-model behavior and is kept as is.
func (s *SubTimer) onTick() {
	s.counter = (s.counter + 1) & s.mask

	switch s.mode {
	case ModeCounter:
		if s.counter == s.limit {
			s.counter = 0
			s.line.Raise()
		} else {
			s.line.Lower()
		}
	case ModeTimer:
		for i := 0; i < numChannels; i++ {
			if s.inten&(1<<uint(i)) == 0 {
				continue
			}
			if s.cc[i] == s.counter {
				s.events[i]++
				s.line.Raise()
			} else {
				s.line.Lower()
			}
		}
	}
}

// Counter returns the live counter value of sub-timer i.
func (s *SubTimer) Counter() uint32 { return s.counter }

// Running reports whether the engine is ticking.
func (s *SubTimer) Running() bool { return s.state == stateRunning }

// SubSnapshot is the flat persisted state of one engine.
type SubSnapshot struct {
	Mode      uint32    `json:"mode"`
	Bitmode   uint32    `json:"bitmode"`
	Prescaler uint32    `json:"prescaler"`
	Period    uint64    `json:"period"`
	Running   bool      `json:"running"`
	Paused    bool      `json:"paused"`
	Counter   uint32    `json:"counter"`
	Mask      uint32    `json:"mask"`
	Limit     uint32    `json:"limit"`
	Count     uint32    `json:"count"`
	Capture   [4]uint32 `json:"capture"`
	Events    [4]uint32 `json:"events"`
	CC        [4]uint32 `json:"cc"`
	Inten     uint32    `json:"inten"`
	Shorts    uint32    `json:"shorts"`
	IntLevel  bool      `json:"int_level"`
}

// Snapshot is the block's persisted state.
type Snapshot struct {
	Sub [SubTimers]SubSnapshot `json:"sub"`
}

func (b *Block) Save() Snapshot {
	var snap Snapshot
	for i, s := range b.sub {
		snap.Sub[i] = SubSnapshot{
			Mode:      uint32(s.mode),
			Bitmode:   uint32(s.bitmode),
			Prescaler: s.prescaler,
			Period:    s.tick.Period(),
			Running:   s.state == stateRunning,
			Paused:    s.state == statePaused,
			Counter:   s.counter,
			Mask:      s.mask,
			Limit:     s.limit,
			Count:     s.count,
			Capture:   s.capture,
			Events:    s.events,
			CC:        s.cc,
			Inten:     s.inten,
			Shorts:    s.shorts,
			IntLevel:  s.line.Level(),
		}
	}
	return snap
}

// Restore rebuilds the block's state from a snapshot. It re-arms the tick
// source for engines that were running but fires no ticks and asserts no
// interrupts by itself.
func (b *Block) Restore(snap Snapshot) {
	for i, s := range b.sub {
		r := snap.Sub[i]
		s.mode = Mode(r.Mode)
		s.bitmode = Bitmode(r.Bitmode)
		s.prescaler = r.Prescaler
		s.counter = r.Counter
		s.mask = r.Mask
		s.limit = r.Limit
		s.count = r.Count
		s.capture = r.Capture
		s.events = r.Events
		s.cc = r.CC
		s.inten = r.Inten
		s.shorts = r.Shorts
		// Re-establish the saved line level; no tick ran to produce it.
		s.line.Set(r.IntLevel)
		// The live period is the one latched at the last Start, not
		// necessarily 2^prescaler if the register was rewritten since.
		s.tick.SetPeriod(r.Period)
		switch {
		case r.Running:
			s.state = stateRunning
			s.tick.Run()
		case r.Paused:
			s.state = statePaused
			s.tick.Stop()
		default:
			s.state = stateIdle
			s.tick.Stop()
		}
	}
}
