// Package ledmatrix reconstructs the micro:bit's 5x5 display from the
// time-multiplexed 3-row / 9-column drive pattern the firmware writes out
// through GPIO. The panel is scanned one row at a time many times a second,
// so a single drive word only describes a third of the picture; the decoder
// accumulates the per-row writes into a stable full-frame lit mask instead
// of redrawing from one row's snapshot.
package ledmatrix

import (
	"github.com/TheNetAdmin/qemu-microbit/guestlog"
)

const (
	// Rows and Cols describe the physical multiplex, Width and Height the
	// logical display.
	Rows   = 3
	Cols   = 9
	Width  = 5
	Height = 5

	// WindowSize is the device's address window; the drive word is its
	// only register.
	WindowSize = 0x1000

	regDrive = 0x000

	rowShift = 13 // drive word bits 13..15: one-hot row select
	colShift = 4  // drive word bits 4..12: active-low column enables
	colMask  = 0x1FF

	litMaskBits = uint32(1<<(Width*Height)) - 1
)

// Redraw tells the presentation sink which parts of a rendered frame are
// stale.
type Redraw uint8

const (
	RedrawNone Redraw = iota
	RedrawFront
	RedrawBack
	RedrawBoth
)

type point struct{ x, y int8 }

// noConn marks the two row-1 column drivers with no LED behind them.
var noConn = point{-1, -1}

// matrixMap gives the logical (x, y) behind each (row, column) driver pair,
// per the micro:bit's LED wiring.
var matrixMap = [Rows][Cols]point{
	{{0, 0}, {2, 0}, {4, 0}, {4, 3}, {3, 3}, {2, 3}, {1, 3}, {0, 3}, {1, 2}},
	{{4, 2}, {0, 2}, {2, 2}, {1, 0}, {3, 0}, {3, 4}, {1, 4}, noConn, noConn},
	{{2, 4}, {4, 4}, {0, 4}, {0, 1}, {1, 1}, {2, 1}, {3, 1}, {4, 1}, {3, 2}},
}

// rowClear[r] covers exactly the lit-mask bits multiplexed by row r,
// derived from matrixMap once at load.
var rowClear [Rows]uint32

func init() {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if p := matrixMap[r][c]; p != noConn {
				rowClear[r] |= 1 << uint(int(p.x)+int(p.y)*Width)
			}
		}
	}
}

type Matrix struct {
	name   string
	lit    uint32
	redraw Redraw
}

func New(name string) *Matrix {
	return &Matrix{name: name, redraw: RedrawBoth}
}

func (m *Matrix) Name() string { return m.name }

func (m *Matrix) Reset() {
	m.lit = 0
	m.redraw = RedrawBoth
}

// Read returns the lit mask. Reading the drive word also marks a redraw,
// so readback-driven polling loops force a refresh.
func (m *Matrix) Read(offset uint32, width uint8) uint32 {
	if offset != regDrive {
		guestlog.BadOffset(m.name, false, offset)
		return 0
	}
	m.redraw = RedrawBoth
	return m.lit
}

func (m *Matrix) Write(offset uint32, value uint32, width uint8) {
	if offset != regDrive {
		guestlog.BadOffset(m.name, true, offset)
		return
	}
	m.decode(value)
}

// decode applies one scan step. An invalid row select is a transient of
// normal multiplexing (rows overlap as the firmware switches) and is
// dropped without logging or state change.
func (m *Matrix) decode(drive uint32) {
	var row int
	switch (drive >> rowShift) & 0x7 {
	case 0b001:
		row = 0
	case 0b010:
		row = 1
	case 0b100:
		row = 2
	default:
		return
	}

	// Column enables are active low.
	cols := ^(drive >> colShift) & colMask

	var ledBits uint32
	for c := 0; c < Cols; c++ {
		p := matrixMap[row][c]
		if p == noConn || cols&(1<<uint(c)) == 0 {
			continue
		}
		ledBits |= 1 << uint(int(p.x)+int(p.y)*Width)
	}

	// Replace only this row's LEDs; the other two rows keep their last
	// decoded state.
	m.lit = ((m.lit &^ rowClear[row]) | ledBits) & litMaskBits
	m.redraw = RedrawBoth
}

// Map returns the logical coordinate behind the (row, col) driver pair.
// ok is false for the two unconnected row-1 drivers. Firmware-side code
// (and tests) use this to build drive words without carrying a second copy
// of the wiring table.
func Map(row, col int) (x, y int, ok bool) {
	p := matrixMap[row][col]
	if p == noConn {
		return 0, 0, false
	}
	return int(p.x), int(p.y), true
}

// Lit reports whether the LED at logical (x, y) is on.
func (m *Matrix) Lit(x, y int) bool {
	return m.lit&(1<<uint(x+y*Width)) != 0
}

// LitMask returns the raw 25-bit frame without side effects.
func (m *Matrix) LitMask() uint32 { return m.lit }

// PendingRedraw returns the stale-frame flags without clearing them.
func (m *Matrix) PendingRedraw() Redraw { return m.redraw }

// TakeRedraw returns and clears the stale-frame flags; the presentation
// sink calls this once per frame.
func (m *Matrix) TakeRedraw() Redraw {
	r := m.redraw
	m.redraw = RedrawNone
	return r
}

// Snapshot is the decoder's flat persisted state.
type Snapshot struct {
	Lit uint32 `json:"lit"`
}

func (m *Matrix) Save() Snapshot {
	return Snapshot{Lit: m.lit}
}

// Restore rebuilds the frame and leaves a full redraw pending so the
// presentation sink resynchronizes.
func (m *Matrix) Restore(snap Snapshot) {
	m.lit = snap.Lit & litMaskBits
	m.redraw = RedrawBoth
}
