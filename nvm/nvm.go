// Package nvm is the non-volatile-memory controller shim. Flash writes and
// erases are not modeled; the controller just looks ready so firmware
// probing it can make progress.
package nvm

import (
	"github.com/TheNetAdmin/qemu-microbit/guestlog"
)

const (
	regReady     = 0x400
	regConfig    = 0x504
	regErasePage = 0x508
	regEraseAll  = 0x50C

	// WindowSize is the device's address window.
	WindowSize = 0x1000
)

type Controller struct {
	name   string
	config uint32
}

func New(name string) *Controller {
	return &Controller{name: name}
}

func (c *Controller) Name() string { return c.name }

func (c *Controller) Reset() {
	c.config = 0
}

func (c *Controller) Read(offset uint32, width uint8) uint32 {
	switch offset {
	case regReady:
		// Never busy.
		return 1
	case regConfig:
		return c.config
	default:
		guestlog.BadOffset(c.name, false, offset)
		return 0
	}
}

func (c *Controller) Write(offset uint32, value uint32, width uint8) {
	switch offset {
	case regConfig:
		c.config = value & 0x3
	case regErasePage, regEraseAll:
		guestlog.Report(guestlog.Unimp, c.name,
			"%s: erase not implemented when writing 0x%03x", c.name, offset)
	default:
		guestlog.BadOffset(c.name, true, offset)
	}
}

// Snapshot is the controller's flat persisted state.
type Snapshot struct {
	Config uint32 `json:"config"`
}

func (c *Controller) Save() Snapshot {
	return Snapshot{Config: c.config}
}

func (c *Controller) Restore(snap Snapshot) {
	c.config = snap.Config & 0x3
}
