package emu

import (
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/robocassie/dijon/internal/bus"
	"github.com/robocassie/dijon/internal/cart"
	"github.com/robocassie/dijon/internal/cpu"
	"github.com/robocassie/dijon/internal/log"
	"github.com/robocassie/dijon/internal/ppu"
)

var ErrBootImageSize = errors.New("boot image must be exactly 256 bytes")

// FrameCycles is the number of cycles in one LCD frame: 144 lines of 114
// plus 1140 of VBlank.
const FrameCycles = 17556

// Machine wires a cartridge, bus, CPU and PPU together and drives them in
// lock step.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU
	ppu *ppu.PPU

	paused     bool
	lastCycles int
	cycles     uint64
	frames     uint64
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadCartridge replaces the whole machine with a fresh one running rom.
// boot is either empty, in which case execution starts at 0x0100 in the
// state the boot image would leave behind, or a 256-byte boot image.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(boot) != 0 && len(boot) != bus.BootSize {
		return fmt.Errorf("%w: got %d", ErrBootImageSize, len(boot))
	}

	c := cart.New(rom)
	b := bus.New(c)
	if len(boot) != 0 {
		b.SetBootROM(boot)
	}
	core := cpu.New(b)
	core.SetTracer(m.cfg.Tracer)
	p := ppu.New(b, core.RequestInterrupt)

	m.bus, m.cpu, m.ppu = b, core, p
	m.paused = m.cfg.StartPaused
	m.lastCycles, m.cycles, m.frames = 0, 0, 0

	if len(boot) == 0 {
		core.ResetPostBoot()
		m.applyPostBootIO()
	}
	log.ModEmu.WithFields(log.Fields{
		"kind": c.Kind(),
		"boot": len(boot) != 0,
	}).Infof("cartridge loaded (%d bytes)", len(rom))
	return nil
}

// applyPostBootIO sets the I/O registers the boot image leaves behind, so
// ROMs can start from 0x0100 with the LCD already on.
func (m *Machine) applyPostBootIO() {
	b := m.bus
	b.Write8(bus.RegJOYP, 0xCF)
	b.Write8(0xFF40, 0x91) // LCDC: LCD and BG on, tile data 0x8000, map 0x9800
	b.Write8(0xFF47, 0xFC) // BGP
	b.Write8(0xFF48, 0xFF) // OBP0
	b.Write8(0xFF49, 0xFF) // OBP1
	b.Write8(bus.RegIE, 0x00)
}

// Loaded reports whether a cartridge has been loaded.
func (m *Machine) Loaded() bool { return m.cpu != nil }

// Step runs one iteration of the machine: the pending OAM DMA is charged
// the previous instruction's cycles, the CPU runs one instruction unless
// it's stopped, and the PPU catches up. It reports whether a frame was
// completed.
func (m *Machine) Step() (bool, error) {
	m.bus.StepDMA(m.lastCycles)

	cycles := 0
	if !m.Stopped() {
		n, err := m.cpu.Step()
		if err != nil {
			m.lastCycles = 0
			log.ModEmu.WithField("cycles", m.cycles).Errorf("%v", err)
			return false, err
		}
		cycles = n
	}
	m.lastCycles = cycles
	m.cycles += uint64(cycles)

	if m.ppu.Run(cycles) {
		m.frames++
		return true, nil
	}
	return false, nil
}

// StepFrame steps until the PPU completes a frame. With the LCD off it
// gives up after one frame's worth of cycles, and it returns early when the
// CPU is stopped.
func (m *Machine) StepFrame() error {
	if m.cpu == nil {
		return nil
	}
	budget := FrameCycles
	for {
		before := m.cycles
		done, err := m.Step()
		if err != nil || done {
			return err
		}
		n := int(m.cycles - before)
		if n == 0 {
			return nil
		}
		if !m.ppu.Enabled() {
			budget -= n
			if budget <= 0 {
				return nil
			}
		}
	}
}

// Stopped reports whether the CPU is currently held, either by pause or by
// the boot-exit breakpoint. A stopped machine consumes no cycles, so the LCD
// is frozen too.
func (m *Machine) Stopped() bool {
	return m.paused || m.AtBootBreakpoint()
}

// AtBootBreakpoint reports whether the boot-exit breakpoint is armed and
// PC has left the boot image.
func (m *Machine) AtBootBreakpoint() bool {
	return m.cfg.BreakAtBootExit && m.cpu.PC > 0xFF
}

func (m *Machine) SetPaused(p bool) {
	if p != m.paused {
		log.ModEmu.Infof("paused: %v", p)
	}
	m.paused = p
}

func (m *Machine) Paused() bool { return m.paused }

// SetBootBreakpoint arms or clears the boot-exit breakpoint.
func (m *Machine) SetBootBreakpoint(on bool) { m.cfg.BreakAtBootExit = on }

// SetTracer replaces the instruction tracer. Pass nil to stop tracing.
func (m *Machine) SetTracer(t cpu.Tracer) {
	m.cfg.Tracer = t
	if m.cpu != nil {
		m.cpu.SetTracer(t)
	}
}

func (m *Machine) Press(k bus.Key) {
	log.ModInput.Debugf("press %v", k)
	m.bus.Press(k)
}

func (m *Machine) Release(k bus.Key) {
	log.ModInput.Debugf("release %v", k)
	m.bus.Release(k)
}

// Frame returns a copy of the last rendered frame.
func (m *Machine) Frame() ppu.Frame { return m.ppu.Frame() }

// Cycles returns the cycles executed since the cartridge was loaded.
func (m *Machine) Cycles() uint64 { return m.cycles }

// Frames returns the frames completed since the cartridge was loaded.
func (m *Machine) Frames() uint64 { return m.frames }

func (m *Machine) Registers() cpu.Registers { return m.cpu.Registers() }

// Read8 reads the bus, for inspection.
func (m *Machine) Read8(addr uint16) byte { return m.bus.Read8(addr) }

// FrameChecksum returns the CRC32 (IEEE) of the last frame in RGBA form.
func (m *Machine) FrameChecksum() uint32 {
	f := m.ppu.Frame()
	buf := make([]byte, ppu.Width*ppu.Height*4)
	f.RGBA(buf)
	return crc32.ChecksumIEEE(buf)
}
