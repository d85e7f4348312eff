// Package bus routes 32-bit system-bus accesses to flat memory and to
// memory-mapped peripheral windows. Every access succeeds from the CPU's
// point of view: unmapped addresses read as zero, writes to them vanish,
// and both are reported through guestlog.
package bus

import (
	"encoding/binary"

	"github.com/TheNetAdmin/qemu-microbit/guestlog"
)

// Device is one memory-mapped peripheral. Offsets are relative to the
// device's window base. Width is the access size in bytes (1, 2 or 4);
// the nRF51 peripherals in this tree treat every register as 32 bits wide
// and may ignore it.
type Device interface {
	Name() string
	Read(offset uint32, width uint8) uint32
	Write(offset uint32, value uint32, width uint8)
	Reset()
}

// Region maps a device into the address space.
type Region struct {
	Name string
	Base uint32
	Size uint32
	Dev  Device
}

// Bus owns the address space: flash at FlashBase, RAM at RAMBase, and any
// number of peripheral windows.
type Bus struct {
	flash   []byte
	ram     []byte
	regions []Region
}

const (
	FlashBase uint32 = 0x00000000
	RAMBase   uint32 = 0x20000000
)

func New(flashSize, ramSize uint32) *Bus {
	return &Bus{
		flash: make([]byte, flashSize),
		ram:   make([]byte, ramSize),
	}
}

// Map adds a peripheral window. Later mappings do not shadow earlier ones;
// the board table is expected to be conflict-free.
func (b *Bus) Map(name string, base, size uint32, dev Device) {
	b.regions = append(b.regions, Region{Name: name, Base: base, Size: size, Dev: dev})
}

// DeviceAt returns the device window containing addr, if any.
func (b *Bus) DeviceAt(addr uint32) (Region, bool) {
	for _, r := range b.regions {
		if addr >= r.Base && addr-r.Base < r.Size {
			return r, true
		}
	}
	return Region{}, false
}

// Reset resets every mapped device and clears RAM. Flash contents survive,
// like the real part's.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0
	}
	for _, r := range b.regions {
		r.Dev.Reset()
	}
}

func (b *Bus) Read(addr uint32, width uint8) uint32 {
	if mem, off, ok := b.memoryAt(addr, width); ok {
		return readMem(mem, off, width)
	}
	if r, ok := b.DeviceAt(addr); ok {
		return r.Dev.Read(addr-r.Base, width)
	}
	guestlog.Report(guestlog.GuestError, "bus", "bus: reading an unmapped address 0x%08x", addr)
	return 0
}

func (b *Bus) Write(addr uint32, value uint32, width uint8) {
	if addr >= RAMBase && uint64(addr-RAMBase)+uint64(width) <= uint64(len(b.ram)) {
		writeMem(b.ram, addr-RAMBase, value, width)
		return
	}
	if uint64(addr)+uint64(width) <= uint64(len(b.flash)) {
		// Flash is not writable over the bus; images go in through
		// LoadFlash.
		guestlog.Report(guestlog.GuestError, "bus", "bus: writing flash address 0x%08x", addr)
		return
	}
	if r, ok := b.DeviceAt(addr); ok {
		r.Dev.Write(addr-r.Base, value, width)
		return
	}
	guestlog.Report(guestlog.GuestError, "bus", "bus: writing an unmapped address 0x%08x", addr)
}

func (b *Bus) Read32(addr uint32) uint32         { return b.Read(addr, 4) }
func (b *Bus) Write32(addr uint32, value uint32) { b.Write(addr, value, 4) }

func (b *Bus) memoryAt(addr uint32, width uint8) ([]byte, uint32, bool) {
	if addr >= RAMBase && uint64(addr-RAMBase)+uint64(width) <= uint64(len(b.ram)) {
		return b.ram, addr - RAMBase, true
	}
	if uint64(addr)+uint64(width) <= uint64(len(b.flash)) {
		return b.flash, addr, true
	}
	return nil, 0, false
}

func readMem(mem []byte, off uint32, width uint8) uint32 {
	switch width {
	case 1:
		return uint32(mem[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(mem[off:]))
	default:
		return binary.LittleEndian.Uint32(mem[off:])
	}
}

func writeMem(mem []byte, off uint32, value uint32, width uint8) {
	switch width {
	case 1:
		mem[off] = uint8(value)
	case 2:
		binary.LittleEndian.PutUint16(mem[off:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(mem[off:], value)
	}
}

// LoadFlash copies a flat image into flash at the given offset.
func (b *Bus) LoadFlash(offset uint32, image []byte) bool {
	if uint64(offset)+uint64(len(image)) > uint64(len(b.flash)) {
		return false
	}
	copy(b.flash[offset:], image)
	return true
}

// FlashSize and RAMSize report the configured memory sizes.
func (b *Bus) FlashSize() uint32 { return uint32(len(b.flash)) }
func (b *Bus) RAMSize() uint32   { return uint32(len(b.ram)) }

// RAM and Flash expose the raw memory for machine snapshots.
func (b *Bus) RAM() []byte   { return b.ram }
func (b *Bus) Flash() []byte { return b.flash }
