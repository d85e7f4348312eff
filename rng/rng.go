// Package rng is the random-number generator peripheral. Reading VALUE is
// deliberately side effecting: every read draws a fresh byte, so callers
// must not cache or memoize it.
package rng

import (
	"math/rand"

	"github.com/TheNetAdmin/qemu-microbit/guestlog"
)

const (
	regStart    = 0x000
	regStop     = 0x004
	regValRdy   = 0x100
	regIntenSet = 0x304
	regIntenClr = 0x308
	regValue    = 0x508

	// WindowSize is the device's address window.
	WindowSize = 0x1000
)

type RNG struct {
	name    string
	src     *rand.Rand
	seed    int64
	running bool
}

// New builds the generator. The seed keeps runs reproducible; boards that
// want real entropy can seed from the host.
func New(name string, seed int64) *RNG {
	return &RNG{name: name, src: rand.New(rand.NewSource(seed)), seed: seed}
}

func (r *RNG) Name() string { return r.name }

func (r *RNG) Reset() {
	r.src = rand.New(rand.NewSource(r.seed))
	r.running = false
}

func (r *RNG) Read(offset uint32, width uint8) uint32 {
	switch offset {
	case regStart, regStop:
		return 0
	case regValRdy:
		if r.running {
			return 1
		}
		return 0
	case regIntenSet, regIntenClr:
		guestlog.Report(guestlog.Unimp, r.name,
			"%s: `INTEN` not implemented when reading 0x%03x", r.name, offset)
		return 0
	case regValue:
		if !r.running {
			return 0
		}
		return uint32(r.src.Intn(256))
	default:
		guestlog.BadOffset(r.name, false, offset)
		return 0
	}
}

func (r *RNG) Write(offset uint32, value uint32, width uint8) {
	switch offset {
	case regStart:
		if value != 0 {
			r.running = true
		}
	case regStop:
		if value != 0 {
			r.running = false
		}
	case regValRdy:
		// Event clear; readiness tracks the running state here.
	case regIntenSet, regIntenClr:
		guestlog.Report(guestlog.Unimp, r.name,
			"%s: `INTEN` not implemented when writing 0x%03x", r.name, offset)
	default:
		guestlog.BadOffset(r.name, true, offset)
	}
}

// Snapshot is the generator's flat persisted state. The draw sequence
// restarts from the seed after restore.
type Snapshot struct {
	Seed    int64 `json:"seed"`
	Running bool  `json:"running"`
}

func (r *RNG) Save() Snapshot {
	return Snapshot{Seed: r.seed, Running: r.running}
}

func (r *RNG) Restore(snap Snapshot) {
	r.seed = snap.Seed
	r.src = rand.New(rand.NewSource(snap.Seed))
	r.running = snap.Running
}
