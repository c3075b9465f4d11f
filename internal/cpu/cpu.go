package cpu

import (
	"errors"
	"fmt"
	"math/bits"
)

// Memory is the bus as seen by the CPU.
type Memory interface {
	Read8(addr uint16) byte
	Write8(addr uint16, value byte)
	Read16(addr uint16) uint16
	Write16(addr uint16, value uint16)
}

var ErrIllegalOpcode = errors.New("illegal opcode")

// IllegalOpcodeError is returned by Step when an undefined encoding is
// reached. The run loop must stop.
type IllegalOpcodeError struct {
	Opcode byte
	PC     uint16
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("illegal opcode 0x%02X at 0x%04X", e.Opcode, e.PC)
}

func (e *IllegalOpcodeError) Unwrap() error { return ErrIllegalOpcode }

// Interrupt bits in IE/IF, in priority order.
const (
	IntVBlank = iota
	IntSTAT
	IntTimer
	IntSerial
	IntJoypad
)

const (
	regIF = 0xFF0F
	regIE = 0xFFFF

	interruptCycles = 20
	cbSurcharge     = 4
)

// CPU is the SM83 execution engine.
type CPU struct {
	// 8-bit registers
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME bool
	// EI/RETI arm this; IME turns on once it counts down to 1 after the
	// following instruction.
	imeDelay int

	bus    Memory
	tracer Tracer
}

// New creates a CPU at the power-on state the boot image expects.
func New(m Memory) *CPU {
	return &CPU{bus: m, SP: 0xFFFE, PC: 0x0000}
}

// SetTracer installs t to be called before every instruction. Pass nil to
// stop tracing.
func (c *CPU) SetTracer(t Tracer) { c.tracer = t }

// ResetPostBoot sets registers to the DMG state the boot image leaves
// behind, for running without one.
func (c *CPU) ResetPostBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.imeDelay = 0
}

// Registers is a snapshot of the register file.
type Registers struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
}

func (c *CPU) Registers() Registers {
	return Registers{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME,
	}
}

// Step executes one instruction, then services at most one interrupt, and
// returns the number of clock cycles consumed. A step that takes an
// interrupt reports the service cost in place of the instruction's.
func (c *CPU) Step() (int, error) {
	if c.imeDelay > 0 {
		c.imeDelay--
	}

	pc := c.PC
	if c.tracer != nil {
		e := Disassemble(c.bus.Read8, pc)
		e.Regs = c.Registers()
		c.tracer.Trace(e)
	}

	op := c.fetch8()
	in := &primary[op]
	cycles := 0
	if op == 0xCB {
		in = &extended[c.fetch8()]
		cycles = cbSurcharge
	}
	if in.exec == nil {
		return 0, &IllegalOpcodeError{Opcode: op, PC: pc}
	}
	cycles += in.exec(c)

	if c.imeDelay == 1 {
		c.imeDelay = 0
		c.IME = true
	}
	if c.IME {
		if n := c.serviceInterrupt(); n != 0 {
			cycles = n
		}
	}
	return cycles, nil
}

// RequestInterrupt sets bit in IF.
func (c *CPU) RequestInterrupt(bit int) {
	c.write8(regIF, c.read8(regIF)|1<<bit)
}

func (c *CPU) serviceInterrupt() int {
	ifReg := c.read8(regIF)
	pending := c.read8(regIE) & ifReg & 0x1F
	if pending == 0 {
		return 0
	}
	bit := bits.TrailingZeros8(pending)
	c.write8(regIF, ifReg&^(1<<bit))
	c.IME = false
	c.SP--
	c.write8(c.SP, byte(c.PC>>8))
	c.SP--
	c.write8(c.SP, byte(c.PC))
	c.PC = 0x40 + uint16(bit)*8
	return interruptCycles
}

func (c *CPU) enableInterruptsDelayed() { c.imeDelay = 2 }

func (c *CPU) disableInterrupts() {
	c.IME = false
	c.imeDelay = 0
}

// Flags helpers
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) flag(f byte) bool { return c.F&f != 0 }

func (c *CPU) carry() byte {
	if c.flag(flagC) {
		return 1
	}
	return 0
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b, ci byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a - b
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = a < b
	return
}

func (c *CPU) sbc8(a, b, ci byte) (res byte, z, n, h, cy bool) {
	res = a - b - ci
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = uint16(a) < uint16(b)+uint16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	return res, res == 0, false, true, false
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	return res, res == 0, false, false, false
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	return res, res == 0, false, false, false
}

// alu runs one of the 8 accumulator operations (ADD ADC SUB SBC AND XOR OR
// CP, in encoding order) with v as operand.
func (c *CPU) alu(op int, v byte) {
	var (
		res         byte
		z, n, h, cy bool
	)
	switch op {
	case 0:
		res, z, n, h, cy = c.add8(c.A, v)
	case 1:
		res, z, n, h, cy = c.adc8(c.A, v, c.carry())
	case 2:
		res, z, n, h, cy = c.sub8(c.A, v)
	case 3:
		res, z, n, h, cy = c.sbc8(c.A, v, c.carry())
	case 4:
		res, z, n, h, cy = c.and8(c.A, v)
	case 5:
		res, z, n, h, cy = c.xor8(c.A, v)
	case 6:
		res, z, n, h, cy = c.or8(c.A, v)
	case 7:
		// CP only sets flags.
		_, z, n, h, cy = c.sub8(c.A, v)
		res = c.A
	}
	c.A = res
	c.setZNHC(z, n, h, cy)
}

func (c *CPU) inc8(v byte) byte {
	res := v + 1
	c.setZNHC(res == 0, false, (v&0x0F)+1 > 0x0F, c.flag(flagC))
	return res
}

func (c *CPU) dec8(v byte) byte {
	res := v - 1
	c.setZNHC(res == 0, true, v&0x0F == 0, c.flag(flagC))
	return res
}

func (c *CPU) addHL(v uint16) {
	hl := c.HL()
	r := uint32(hl) + uint32(v)
	c.setZNHC(c.flag(flagZ), false, (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF, r > 0xFFFF)
	c.SetHL(uint16(r))
}

// addSPSigned returns SP plus the signed immediate operand. Flags come from
// the full 16-bit sum, carry out of bit 15 and half-carry out of bit 11.
func (c *CPU) addSPSigned() uint16 {
	s := int(int8(c.fetch8()))
	sp := int(c.SP)
	r := sp + s
	c.setZNHC(false, false, ((sp&0x0FFF)+s)&0x1000 != 0, r&0x10000 != 0)
	return uint16(r)
}

func (c *CPU) daa() {
	var ofs byte
	cy := false
	sub := c.flag(flagN)
	if c.flag(flagH) || (!sub && c.A&0x0F > 0x09) {
		ofs |= 0x06
	}
	if c.flag(flagC) || (!sub && c.A > 0x99) {
		ofs |= 0x60
		cy = true
	}
	if sub {
		c.A -= ofs
	} else {
		c.A += ofs
	}
	c.setZNHC(c.A == 0, sub, false, cy)
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read8(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write8(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) AF() uint16     { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) SetAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) BC() uint16     { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) SetBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) DE() uint16     { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) SetDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) HL() uint16     { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) SetHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// push16 stores the high byte first, each store pre-decrementing SP.
func (c *CPU) push16(v uint16) {
	c.SP--
	c.write8(c.SP, byte(v>>8))
	c.SP--
	c.write8(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	v := c.bus.Read16(c.SP)
	c.SP += 2
	return v
}

// reg8 returns the register encoded by r in B C D E H L (HL) A order.
func (c *CPU) reg8(r int) byte {
	switch r {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.HL())
	}
	return c.A
}

func (c *CPU) setReg8(r int, v byte) {
	switch r {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.HL(), v)
	default:
		c.A = v
	}
}

// reg16 returns the pair encoded by p in BC DE HL SP order.
func (c *CPU) reg16(p int) uint16 {
	switch p {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	}
	return c.SP
}

func (c *CPU) setReg16(p int, v uint16) {
	switch p {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.SetHL(v)
	default:
		c.SP = v
	}
}

// cond evaluates NZ Z NC C.
func (c *CPU) cond(cc int) bool {
	switch cc {
	case 0:
		return !c.flag(flagZ)
	case 1:
		return c.flag(flagZ)
	case 2:
		return !c.flag(flagC)
	}
	return c.flag(flagC)
}
