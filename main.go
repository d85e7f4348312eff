package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/TheNetAdmin/qemu-microbit/ledmatrix"
	"github.com/TheNetAdmin/qemu-microbit/machine"
	"github.com/TheNetAdmin/qemu-microbit/vclock"
)

func init() {
	runtime.LockOSThread()
}

// micro:bit display wiring: rows on pins 13..15, columns on pins 4..12.
const (
	rowPinBase = 13
	colPinBase = 4
	displayDir = 0xFFF0 // pins 4..15 as outputs
)

const framesPerSecond = 60

var heart = parsePattern(`
.X.X.
XXXXX
XXXXX
.XXX.
..X..`)

var smallHeart = parsePattern(`
.....
..X..
.XXX.
..X..
.....`)

func parsePattern(s string) [5][5]bool {
	var p [5][5]bool
	y := 0
	for _, line := range splitLines(s) {
		if line == "" {
			continue
		}
		for x := 0; x < 5 && x < len(line); x++ {
			p[y][x] = line[x] == 'X'
		}
		y++
	}
	return p
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

// driveWord builds the firmware-side scan word for one row of a pattern:
// one-hot row select on the row pins, active-low enables on the column
// pins.
func driveWord(row int, pattern [5][5]bool) uint32 {
	word := uint32(1) << uint(rowPinBase+row)
	for col := 0; col < ledmatrix.Cols; col++ {
		x, y, ok := ledmatrix.Map(row, col)
		if !ok || !pattern[y][x] {
			// Column off: bit stays high.
			word |= 1 << uint(colPinBase+col)
		}
	}
	return word
}

// Microbit is the demo harness: the board plus its window.
type Microbit struct {
	m       *machine.Machine
	display *Display
	running bool
	paused  bool
	scanRow int
	frame   uint64
}

func (mb *Microbit) scanStep(pattern [5][5]bool) {
	mb.m.Bus.Write32(machine.GPIOBase+0x504, driveWord(mb.scanRow, pattern))
	mb.scanRow = (mb.scanRow + 1) % ledmatrix.Rows
}

func (mb *Microbit) saveState(path string) {
	data, err := mb.m.SaveJSON()
	if err != nil {
		fmt.Println("snapshot failed:", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Println("snapshot failed:", err)
		return
	}
	fmt.Println("state saved to", path)
}

func main() {
	m, err := machine.New(machine.DefaultConfig())
	if err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}

	if len(os.Args) > 1 {
		if err := m.LoadImage(os.Args[1]); err != nil {
			fmt.Println(err)
			os.Exit(-1)
		}
		fmt.Printf("loaded %s into flash (no CPU model; display demo only)\n", os.Args[1])
	}

	// Configure the display pins as outputs, the way firmware would.
	m.Bus.Write32(machine.GPIOBase+0x518, displayDir)

	mb := &Microbit{m: m, running: true}
	mb.display = InitDisplay()

	const cyclesPerFrame = vclock.BaseFrequencyHz / framesPerSecond

	for mb.running {
		mb.display.EventLoop(mb)
		if !mb.paused {
			pattern := heart
			if mb.frame/framesPerSecond%2 == 1 {
				pattern = smallHeart
			}
			// Three scan steps per frame keeps the whole matrix fresh.
			for i := 0; i < ledmatrix.Rows; i++ {
				mb.scanStep(pattern)
			}
			mb.m.Step(cyclesPerFrame)
			mb.frame++
		}
		mb.display.Render(mb.m.LED)
	}
}
