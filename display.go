package main

import (
	"github.com/TheNetAdmin/qemu-microbit/ledmatrix"
	"github.com/jupiterrider/purego-sdl3/sdl"
)

const (
	ledCell    = 60
	ledGap     = 12
	ledPadding = 24
	windowSize = ledPadding*2 + ledCell*5 + ledGap*4
)

type Display struct {
	Window   *sdl.Window
	Renderer *sdl.Renderer
}

func InitDisplay() *Display {
	d := new(Display)
	if !sdl.CreateWindowAndRenderer("micro:bit", windowSize, windowSize, 0, &d.Window, &d.Renderer) {
		panic(sdl.GetError())
	}
	return d
}

func (d *Display) EventLoop(mb *Microbit) {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventWindowCloseRequested:
			mb.running = false
		case sdl.EventKeyDown:
			switch event.Key().Scancode {
			case sdl.ScancodeSpace:
				mb.paused = !mb.paused
			case sdl.ScancodeS:
				mb.saveState("microbit-state.json")
			}
		}
	}
}

// Render redraws the window when the matrix says any part of the frame is
// stale.
func (d *Display) Render(m *ledmatrix.Matrix) {
	if m.TakeRedraw() == ledmatrix.RedrawNone {
		return
	}
	sdl.SetRenderDrawColor(d.Renderer, 20, 20, 20, sdl.AlphaOpaque)
	sdl.RenderClear(d.Renderer)
	for y := 0; y < ledmatrix.Height; y++ {
		for x := 0; x < ledmatrix.Width; x++ {
			if m.Lit(x, y) {
				sdl.SetRenderDrawColor(d.Renderer, 255, 40, 40, sdl.AlphaOpaque)
			} else {
				sdl.SetRenderDrawColor(d.Renderer, 60, 30, 30, sdl.AlphaOpaque)
			}
			rect := sdl.FRect{
				X: float32(ledPadding + x*(ledCell+ledGap)),
				Y: float32(ledPadding + y*(ledCell+ledGap)),
				W: ledCell,
				H: ledCell,
			}
			sdl.RenderFillRect(d.Renderer, &rect)
		}
	}
	sdl.RenderPresent(d.Renderer)
}
