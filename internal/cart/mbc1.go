package cart

import "github.com/robocassie/dijon/internal/log"

// MBC1 implements MBC1 ROM banking.
//
// The switchable window (0x4000-0x7FFF) can never select bank 0: a bank
// number that masks to 0 is remapped to 1. The secondary 2-bit register only
// extends the ROM bank number on 1MB+ ROMs.
type MBC1 struct {
	rom []byte

	romClass byte // header ROM size code
	ramClass byte // header RAM size code
	bankMask byte

	ramEnabled bool
	romBank    byte // masked, never 0
	bankHigh   byte // RAM bank or ROM bank bits 5-6
	mode       byte
}

func NewMBC1(rom []byte, romClass, ramClass byte) *MBC1 {
	bits := int(romClass) + 1
	if bits > 5 {
		bits = 5
	}
	return &MBC1{
		rom:      rom,
		romClass: romClass,
		ramClass: ramClass,
		bankMask: byte(1<<bits - 1),
		romBank:  1,
	}
}

func (m *MBC1) Kind() Kind { return KindMBC1 }

// ROMBank returns the bank currently mapped at 0x4000-0x7FFF.
func (m *MBC1) ROMBank() int {
	bank := int(m.romBank)
	if m.romClass >= 5 {
		bank |= int(m.bankHigh) << 5
	}
	return bank
}

// RAMEnabled reports the state of the RAM enable register.
func (m *MBC1) RAMEnabled() bool { return m.ramEnabled }

func (m *MBC1) Read8(addr uint16) byte {
	addr &= 0x7FFF
	if addr < 0x4000 {
		return romByte(m.rom, int(addr))
	}
	return romByte(m.rom, m.ROMBank()*0x4000+int(addr-0x4000))
}

func (m *MBC1) Write8(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.romBank = value & m.bankMask
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr < 0x6000:
		// Only 1MB+ ROMs or 32KB RAMs have a use for these 2 bits.
		if m.romClass >= 5 || m.ramClass >= 3 {
			m.bankHigh = value & 0x03
		}
	case addr < 0x8000:
		m.mode = value & 0x01
	}
}

func (m *MBC1) Read16(addr uint16) uint16 {
	lo := m.Read8(addr)
	if edge := addr & 0x3FFF; edge == 0x3FFF {
		log.ModCart.Warnf("MBC1: 16-bit read at bank edge 0x%04X, using 0xFF as high byte", addr)
		return 0xFF00 | uint16(lo)
	}
	return uint16(lo) | uint16(m.Read8(addr+1))<<8
}

// 16-bit writes never reach the bank registers.
func (m *MBC1) Write16(addr uint16, value uint16) {}
