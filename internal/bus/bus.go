package bus

import (
	"errors"
	"fmt"

	"github.com/robocassie/dijon/internal/cart"
	"github.com/robocassie/dijon/internal/log"
)

// I/O registers with bus side effects.
const (
	RegJOYP = 0xFF00
	RegIF   = 0xFF0F
	RegDMA  = 0xFF46
	RegBoot = 0xFF50
	RegIE   = 0xFFFF
)

const (
	OAMBase = 0xFE00
	OAMSize = 0xA0

	BootSize = 0x100

	// Clocks an OAM DMA takes before the copy lands.
	DMACycles = 160 * 4

	// Sources past this address read echo/OAM/IO space on hardware.
	dmaSafeLimit = 0xDF00
)

var ErrUnsafeDMASource = errors.New("unsafe OAM DMA source")

// Bus is the sole owner of the 64KB address space. Addresses below 0x8000
// are routed to the cartridge, except for the first 256 bytes while the boot
// overlay is active. Bus accesses never fail.
type Bus struct {
	mem  [0x10000]byte
	boot [BootSize]byte
	cart cart.Cartridge

	bootActive bool
	keys       byte // pressed keys, active low

	dmaScheduled bool
	dmaActive    bool
	dmaDebt      int
	dmaSrc       uint16
}

func New(c cart.Cartridge) *Bus {
	return &Bus{cart: c, keys: 0xFF}
}

// SetBootROM maps a boot image over 0x0000-0x00FF until it's disabled by a
// write of 1 to 0xFF50.
func (b *Bus) SetBootROM(boot []byte) {
	copy(b.boot[:], boot)
	b.bootActive = true
}

// BootActive reports whether the boot overlay still shadows the cartridge.
func (b *Bus) BootActive() bool { return b.bootActive }

func (b *Bus) Cartridge() cart.Cartridge { return b.cart }

func (b *Bus) Read8(addr uint16) byte {
	switch {
	case addr < BootSize && b.bootActive:
		return b.boot[addr]
	case addr < 0x8000:
		return b.cart.Read8(addr)
	case addr == RegJOYP:
		return b.readJoypad()
	}
	return b.mem[addr]
}

func (b *Bus) Write8(addr uint16, value byte) {
	if addr < 0x8000 {
		b.cart.Write8(addr, value)
		return
	}
	b.mem[addr] = value

	switch addr {
	case RegDMA:
		b.scheduleDMA(value)
	case RegBoot:
		if value == 1 && b.bootActive {
			b.bootActive = false
			log.ModMem.Infof("boot overlay disabled")
		}
	}
}

// Read16 reads a little-endian word.
func (b *Bus) Read16(addr uint16) uint16 {
	if addr < 0x8000 && !(b.bootActive && addr < BootSize) {
		return b.cart.Read16(addr)
	}
	return uint16(b.Read8(addr)) | uint16(b.Read8(addr+1))<<8
}

// Write16 writes a little-endian word.
func (b *Bus) Write16(addr uint16, value uint16) {
	if addr < 0x8000 {
		b.cart.Write16(addr, value)
		return
	}
	b.Write8(addr, byte(value))
	b.Write8(addr+1, byte(value>>8))
}

// Key is one of the 8 joypad keys. The low nibble holds the D-pad, the high
// nibble the buttons.
type Key byte

const (
	KeyRight Key = 1 << iota
	KeyLeft
	KeyUp
	KeyDown
	KeyA
	KeyB
	KeySelect
	KeyStart
)

// Keys lists all joypad keys.
var Keys = [...]Key{KeyRight, KeyLeft, KeyUp, KeyDown, KeyA, KeyB, KeySelect, KeyStart}

func (k Key) String() string {
	switch k {
	case KeyRight:
		return "right"
	case KeyLeft:
		return "left"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyA:
		return "a"
	case KeyB:
		return "b"
	case KeySelect:
		return "select"
	case KeyStart:
		return "start"
	}
	return fmt.Sprintf("Key(0x%02X)", byte(k))
}

func (b *Bus) Press(k Key)   { b.keys &^= byte(k) }
func (b *Bus) Release(k Key) { b.keys |= byte(k) }

// PressedKeys returns the active-low pressed key mask.
func (b *Bus) PressedKeys() byte { return b.keys }

func (b *Bus) readJoypad() byte {
	switch b.mem[RegJOYP] & 0x30 {
	case 0x30:
		return 0x0F
	case 0x20:
		return b.keys & 0x0F
	default:
		return b.keys >> 4
	}
}

func (b *Bus) scheduleDMA(high byte) {
	b.dmaScheduled = true
	b.dmaDebt = DMACycles
	b.dmaSrc = uint16(high) << 8
	if b.dmaSrc > dmaSafeLimit {
		log.ModMem.WithField("src", fmt.Sprintf("0x%04X", b.dmaSrc)).Warnf("%v, results are unpredictable", ErrUnsafeDMASource)
	}
}

// StepDMA advances OAM DMA by the clocks the previous CPU step consumed.
// A DMA scheduled by a write only becomes active on the following call, and
// the copy happens in one go once its debt is paid off.
func (b *Bus) StepDMA(lastCycles int) {
	if b.dmaActive {
		b.dmaDebt -= lastCycles
		if b.dmaDebt <= 0 {
			b.copyOAM()
			b.dmaActive = false
		}
	}
	if b.dmaScheduled {
		b.dmaScheduled = false
		b.dmaActive = true
	}
}

// DMAActive reports whether a DMA is scheduled or in flight.
func (b *Bus) DMAActive() bool { return b.dmaScheduled || b.dmaActive }

func (b *Bus) copyOAM() {
	for i := uint16(0); i < OAMSize; i++ {
		b.mem[OAMBase+i] = b.Read8(b.dmaSrc + i)
	}
	log.ModMem.Debugf("OAM DMA from 0x%04X", b.dmaSrc)
}
