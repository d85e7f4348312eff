package ledmatrix

import (
	"testing"
)

// drive builds a scan word: one-hot row select in bits 13..15, active-low
// column enables in bits 4..12.
func drive(rowSelect uint32, activeCols ...int) uint32 {
	word := rowSelect << rowShift
	cols := uint32(colMask)
	for _, c := range activeCols {
		cols &^= 1 << uint(c)
	}
	return word | cols<<colShift
}

func bit(x, y int) uint32 { return 1 << uint(x+y*Width) }

func TestMapCoversAllLEDs(t *testing.T) {
	seen := map[uint32]bool{}
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			x, y, ok := Map(r, c)
			if !ok {
				if r != 1 || c < 7 {
					t.Errorf("unexpected unconnected driver at row %d col %d", r, c)
				}
				continue
			}
			b := bit(x, y)
			if seen[b] {
				t.Errorf("row %d col %d maps to an already used LED (%d,%d)", r, c, x, y)
			}
			seen[b] = true
		}
	}
	if len(seen) != Width*Height {
		t.Errorf("map covers %d LEDs, want %d", len(seen), Width*Height)
	}
}

func TestDecodeRow1Columns(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b010, 0, 3, 6), 4)

	var want uint32
	for _, c := range []int{0, 3, 6} {
		x, y, ok := Map(1, c)
		if !ok {
			t.Fatalf("row 1 col %d unexpectedly unconnected", c)
		}
		want |= bit(x, y)
	}
	if m.LitMask() != want {
		t.Errorf("litMask = %025b, want %025b", m.LitMask(), want)
	}
}

func TestInvalidRowSelectIsIgnored(t *testing.T) {
	cases := []uint32{0b000, 0b011, 0b101, 0b110, 0b111}
	for _, sel := range cases {
		m := New("microbit.led")
		m.Write(regDrive, drive(0b001, 0, 1, 2), 4)
		before := m.LitMask()
		m.Write(regDrive, drive(sel, 3, 4), 4)
		if m.LitMask() != before {
			t.Errorf("row select %03b changed litMask %025b -> %025b",
				sel, before, m.LitMask())
		}
	}
}

func TestRowsAccumulateAcrossScans(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b001, 0), 4)
	m.Write(regDrive, drive(0b010, 1), 4)
	m.Write(regDrive, drive(0b100, 2), 4)

	x0, y0, _ := Map(0, 0)
	x1, y1, _ := Map(1, 1)
	x2, y2, _ := Map(2, 2)
	want := bit(x0, y0) | bit(x1, y1) | bit(x2, y2)
	if m.LitMask() != want {
		t.Errorf("litMask = %025b, want %025b (all three rows latched)", m.LitMask(), want)
	}
}

func TestRescanClearsOnlyOwnRow(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b001, 0, 1), 4)
	m.Write(regDrive, drive(0b010, 0), 4)
	// Rescanning row 0 with no columns must clear row 0's LEDs and leave
	// row 1's untouched.
	m.Write(regDrive, drive(0b001), 4)

	x, y, _ := Map(1, 0)
	if m.LitMask() != bit(x, y) {
		t.Errorf("litMask = %025b, want only row-1 LED (%d,%d)", m.LitMask(), x, y)
	}
}

func TestUnconnectedColumnsNeverSetBits(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b010, 7, 8), 4)
	if m.LitMask() != 0 {
		t.Errorf("litMask = %025b, want 0 (row 1 cols 7 and 8 are unconnected)", m.LitMask())
	}
}

func TestReadReturnsMaskAndMarksRedraw(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b001, 0), 4)
	if m.TakeRedraw() != RedrawBoth {
		t.Error("decode should leave a full redraw pending")
	}
	if m.PendingRedraw() != RedrawNone {
		t.Error("TakeRedraw should clear the flags")
	}
	got := m.Read(regDrive, 4)
	if got != m.LitMask() {
		t.Errorf("drive-word read = %025b, want litMask %025b", got, m.LitMask())
	}
	if m.PendingRedraw() != RedrawBoth {
		t.Error("drive-word read should mark a redraw")
	}
}

func TestRestoreLeavesRedrawPending(t *testing.T) {
	m := New("microbit.led")
	m.Write(regDrive, drive(0b001, 0, 4), 4)
	snap := m.Save()

	fresh := New("microbit.led")
	fresh.TakeRedraw()
	fresh.Restore(snap)
	if fresh.LitMask() != m.LitMask() {
		t.Errorf("restored litMask = %025b, want %025b", fresh.LitMask(), m.LitMask())
	}
	if fresh.PendingRedraw() != RedrawBoth {
		t.Error("restore should leave a full redraw pending")
	}
}
