// Package gpio models the nRF51 GPIO port: 32 pins, each with a packed
// per-pin configuration register, plus aggregate OUT/DIR views. The per-pin
// array is the single source of truth; the DIR word is derived from it on
// demand so the two views cannot drift apart.
//
// Output writes have one external side effect: the masked output word is
// forwarded as a bus write to a fixed downstream address. On the micro:bit
// board that address is the LED matrix drive-word register, which is how
// row scanning reaches the display without the GPIO holding a reference to
// the display device.
package gpio

import (
	"github.com/TheNetAdmin/qemu-microbit/guestlog"
)

const (
	regOut    = 0x504
	regOutSet = 0x508
	regOutClr = 0x50C
	regIn     = 0x510
	regDir    = 0x514
	regDirSet = 0x518
	regDirClr = 0x51C
	regPinCnf = 0x700 // ..0x77C, one per pin

	// WindowSize is the port's address window.
	WindowSize = 0x1000

	numPins = 32
)

// PIN_CNF bit fields.
const (
	cnfDirBit     = 0
	cnfInputBit   = 1
	cnfPullShift  = 2
	cnfPullMask   = 0x3
	cnfDriveShift = 8
	cnfDriveMask  = 0x7
	cnfSenseShift = 16
	cnfSenseMask  = 0x3
)

type pin struct {
	dir   bool // true = output
	input bool // input buffer connected
	pull  uint8
	drive uint8
	sense uint8
}

func (p *pin) cnf() uint32 {
	var v uint32
	if p.dir {
		v |= 1 << cnfDirBit
	}
	if p.input {
		v |= 1 << cnfInputBit
	}
	v |= uint32(p.pull&cnfPullMask) << cnfPullShift
	v |= uint32(p.drive&cnfDriveMask) << cnfDriveShift
	v |= uint32(p.sense&cnfSenseMask) << cnfSenseShift
	return v
}

func (p *pin) setCnf(v uint32) {
	p.dir = v&(1<<cnfDirBit) != 0
	p.input = v&(1<<cnfInputBit) != 0
	p.pull = uint8(v>>cnfPullShift) & cnfPullMask
	p.drive = uint8(v>>cnfDriveShift) & cnfDriveMask
	p.sense = uint8(v>>cnfSenseShift) & cnfSenseMask
}

// SinkFunc routes the masked output word to whatever device the board maps
// at the downstream address. The port never talks to that device directly.
type SinkFunc func(addr uint32, value uint32)

type Port struct {
	name     string
	pins     [numPins]pin
	out      uint32
	in       uint32
	sink     SinkFunc
	sinkAddr uint32
}

// New builds the port. sink may be nil when the board routes outputs
// nowhere.
func New(name string, sink SinkFunc, sinkAddr uint32) *Port {
	return &Port{name: name, sink: sink, sinkAddr: sinkAddr}
}

func (p *Port) Name() string { return p.name }

func (p *Port) Reset() {
	p.pins = [numPins]pin{}
	p.out = 0
	p.in = 0
}

// dirWord derives the aggregate DIR view from the per-pin array.
func (p *Port) dirWord() uint32 {
	var d uint32
	for i := range p.pins {
		if p.pins[i].dir {
			d |= 1 << uint(i)
		}
	}
	return d
}

func (p *Port) setDirWord(d uint32) {
	for i := range p.pins {
		p.pins[i].dir = d&(1<<uint(i)) != 0
	}
}

func (p *Port) Read(offset uint32, width uint8) uint32 {
	switch {
	case offset == regOut || offset == regOutSet || offset == regOutClr:
		return p.out
	case offset == regIn:
		return p.in
	case offset == regDir || offset == regDirSet || offset == regDirClr:
		return p.dirWord()
	case offset >= regPinCnf && offset < regPinCnf+4*numPins:
		return p.pins[(offset-regPinCnf)>>2].cnf()
	default:
		guestlog.BadOffset(p.name, false, offset)
		return 0
	}
}

func (p *Port) Write(offset uint32, value uint32, width uint8) {
	switch {
	case offset == regOut:
		dir := p.dirWord()
		p.setOut((p.out &^ dir) | (value & dir))
	case offset == regOutSet:
		p.setOut(p.out | (value & p.dirWord()))
	case offset == regOutClr:
		p.setOut(p.out &^ (value & p.dirWord()))
	case offset == regDir:
		p.setDirWord(value)
	case offset == regDirSet:
		p.setDirWord(p.dirWord() | value)
	case offset == regDirClr:
		p.setDirWord(p.dirWord() &^ value)
	case offset >= regPinCnf && offset < regPinCnf+4*numPins:
		p.pins[(offset-regPinCnf)>>2].setCnf(value)
	case offset == regIn:
		// IN is read-only; levels come in through SetInput.
		guestlog.BadOffset(p.name, true, offset)
	default:
		guestlog.BadOffset(p.name, true, offset)
	}
}

func (p *Port) setOut(out uint32) {
	p.out = out
	if p.sink != nil {
		p.sink(p.sinkAddr, p.out&p.dirWord())
	}
}

// SetInput drives an external level onto pin n's input buffer.
func (p *Port) SetInput(n int, level bool) {
	if level {
		p.in |= 1 << uint(n)
	} else {
		p.in &^= 1 << uint(n)
	}
}

// Out returns the output latch, mainly for tests.
func (p *Port) Out() uint32 { return p.out }

// Snapshot is the port's flat persisted state. Pin configuration persists
// in its packed register form.
type Snapshot struct {
	PinCnf [numPins]uint32 `json:"pin_cnf"`
	Out    uint32          `json:"out"`
	In     uint32          `json:"in"`
}

func (p *Port) Save() Snapshot {
	var snap Snapshot
	for i := range p.pins {
		snap.PinCnf[i] = p.pins[i].cnf()
	}
	snap.Out = p.out
	snap.In = p.in
	return snap
}

// Restore rebuilds the port without forwarding anything downstream.
func (p *Port) Restore(snap Snapshot) {
	for i := range p.pins {
		p.pins[i].setCnf(snap.PinCnf[i])
	}
	p.out = snap.Out
	p.in = snap.In
}
