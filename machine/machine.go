// Package machine assembles the micro:bit board: flash and RAM on the
// system bus, the nRF51 peripheral set mapped into their windows, the
// virtual clock driving the timers, and the interrupt controller consuming
// the timer line.
package machine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TheNetAdmin/qemu-microbit/bus"
	"github.com/TheNetAdmin/qemu-microbit/gpio"
	"github.com/TheNetAdmin/qemu-microbit/irq"
	"github.com/TheNetAdmin/qemu-microbit/ledmatrix"
	"github.com/TheNetAdmin/qemu-microbit/nvm"
	"github.com/TheNetAdmin/qemu-microbit/rng"
	"github.com/TheNetAdmin/qemu-microbit/timer"
	"github.com/TheNetAdmin/qemu-microbit/vclock"
)

// Peripheral window bases. The LED matrix is an emulator-side pseudo
// device parked right behind the GPIO port; its drive-word register is the
// GPIO downstream sink address.
const (
	TimerBase uint32 = 0x40008000
	RNGBase   uint32 = 0x4000D000
	NVMBase   uint32 = 0x4001E000
	GPIOBase  uint32 = 0x50000000
	LEDBase   uint32 = 0x50001000

	// LEDDriveAddr is where GPIO output words land.
	LEDDriveAddr = LEDBase

	// TimerIRQ is the block's line number on the interrupt controller.
	TimerIRQ = 8
)

// Config is the board variant selection.
type Config struct {
	RAMSize   uint32
	FlashSize uint32
	RNGSeed   int64
}

func DefaultConfig() Config {
	return Config{
		RAMSize:   32 * 1024,
		FlashSize: 256 * 1024,
		RNGSeed:   1,
	}
}

func (c Config) validate() error {
	if c.RAMSize != 16*1024 && c.RAMSize != 32*1024 {
		return fmt.Errorf("machine: RAM size must be 16KB or 32KB, got %d", c.RAMSize)
	}
	if c.FlashSize != 128*1024 && c.FlashSize != 256*1024 {
		return fmt.Errorf("machine: flash size must be 128KB or 256KB, got %d", c.FlashSize)
	}
	return nil
}

type Machine struct {
	cfg   Config
	Bus   *bus.Bus
	Clock *vclock.Clock
	Intc  *irq.Controller

	Timer *timer.Block
	GPIO  *gpio.Port
	LED   *ledmatrix.Matrix
	RNG   *rng.RNG
	NVM   *nvm.Controller
}

// buildFunc constructs one device kind against the partially built machine
// and stashes the typed handle the board code needs.
type buildFunc func(m *Machine, name string) bus.Device

// deviceBuilders is the device-kind registry. It is consulted exactly once
// per board entry at build time; nothing dispatches on kind strings after
// that.
var deviceBuilders = map[string]buildFunc{
	"nrf51-timer": func(m *Machine, name string) bus.Device {
		m.Timer = timer.New(name, m.Clock, m.Intc.Line(TimerIRQ))
		return m.Timer
	},
	"nrf51-gpio": func(m *Machine, name string) bus.Device {
		m.GPIO = gpio.New(name, m.Bus.Write32, LEDDriveAddr)
		return m.GPIO
	},
	"microbit-led": func(m *Machine, name string) bus.Device {
		m.LED = ledmatrix.New(name)
		return m.LED
	},
	"nrf51-rng": func(m *Machine, name string) bus.Device {
		m.RNG = rng.New(name, m.cfg.RNGSeed)
		return m.RNG
	},
	"nrf51-nvmc": func(m *Machine, name string) bus.Device {
		m.NVM = nvm.New(name)
		return m.NVM
	},
}

type boardEntry struct {
	kind string
	name string
	base uint32
	size uint32
}

// microbitBoard is the fixed device map of the board.
var microbitBoard = []boardEntry{
	{"nrf51-timer", "nrf51.timer", TimerBase, timer.WindowSize},
	{"nrf51-rng", "nrf51.rng", RNGBase, rng.WindowSize},
	{"nrf51-nvmc", "nrf51.nvmc", NVMBase, nvm.WindowSize},
	{"nrf51-gpio", "nrf51.gpio", GPIOBase, gpio.WindowSize},
	{"microbit-led", "microbit.led", LEDBase, ledmatrix.WindowSize},
}

func New(cfg Config) (*Machine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		Clock: vclock.New(),
		Intc:  irq.NewController(),
	}
	m.Bus = bus.New(cfg.FlashSize, cfg.RAMSize)
	for _, e := range microbitBoard {
		build, ok := deviceBuilders[e.kind]
		if !ok {
			return nil, fmt.Errorf("machine: no builder for device kind %q", e.kind)
		}
		m.Bus.Map(e.name, e.base, e.size, build(m, e.name))
	}
	return m, nil
}

// LoadImage copies a flat binary into flash at offset 0.
func (m *Machine) LoadImage(path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !m.Bus.LoadFlash(0, image) {
		return fmt.Errorf("machine: image %q (%d bytes) does not fit in %d bytes of flash",
			path, len(image), m.Bus.FlashSize())
	}
	return nil
}

// Step advances virtual time by the given number of 16 MHz base-clock
// cycles, firing any due timer ticks.
func (m *Machine) Step(cycles uint64) {
	m.Clock.Advance(cycles)
}

// Reset puts the board back to its power-on state. Flash contents survive.
func (m *Machine) Reset() {
	m.Bus.Reset()
}

// Snapshot is the whole board's flat persisted state. The container
// encoding is the host's business; see MarshalJSON round-trips in the
// tests.
type Snapshot struct {
	Timer timer.Snapshot     `json:"timer"`
	GPIO  gpio.Snapshot      `json:"gpio"`
	LED   ledmatrix.Snapshot `json:"led"`
	RNG   rng.Snapshot       `json:"rng"`
	NVM   nvm.Snapshot       `json:"nvm"`
	RAM   []byte             `json:"ram"`
	Flash []byte             `json:"flash"`
}

func (m *Machine) Save() Snapshot {
	ram := make([]byte, len(m.Bus.RAM()))
	copy(ram, m.Bus.RAM())
	flash := make([]byte, len(m.Bus.Flash()))
	copy(flash, m.Bus.Flash())
	return Snapshot{
		Timer: m.Timer.Save(),
		GPIO:  m.GPIO.Save(),
		LED:   m.LED.Save(),
		RNG:   m.RNG.Save(),
		NVM:   m.NVM.Save(),
		RAM:   ram,
		Flash: flash,
	}
}

// Restore rebuilds the board from a snapshot. No ticks fire and no
// interrupts are raised beyond re-establishing saved line levels; the LED
// matrix comes back with a full redraw pending.
func (m *Machine) Restore(snap Snapshot) error {
	if uint32(len(snap.RAM)) != m.Bus.RAMSize() || uint32(len(snap.Flash)) != m.Bus.FlashSize() {
		return fmt.Errorf("machine: snapshot memory sizes %d/%d do not match board %d/%d",
			len(snap.RAM), len(snap.Flash), m.Bus.RAMSize(), m.Bus.FlashSize())
	}
	m.Timer.Restore(snap.Timer)
	m.GPIO.Restore(snap.GPIO)
	m.LED.Restore(snap.LED)
	m.RNG.Restore(snap.RNG)
	m.NVM.Restore(snap.NVM)
	copy(m.Bus.RAM(), snap.RAM)
	copy(m.Bus.Flash(), snap.Flash)
	return nil
}

// SaveJSON and RestoreJSON are the convenience container encoding used by
// the demo binary.
func (m *Machine) SaveJSON() ([]byte, error) {
	return json.Marshal(m.Save())
}

func (m *Machine) RestoreJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return m.Restore(snap)
}
