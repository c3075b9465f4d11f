package cart

import "github.com/robocassie/dijon/internal/log"

// MBC0 is a cartridge without bank controller: 32KB of ROM mapped as is.
type MBC0 struct {
	rom []byte
}

func NewMBC0(rom []byte) *MBC0 {
	return &MBC0{rom: rom}
}

func (c *MBC0) Kind() Kind { return KindNone }

func (c *MBC0) Read8(addr uint16) byte {
	return romByte(c.rom, int(addr&0x7FFF))
}

// ROM only, writes are dropped.
func (c *MBC0) Write8(addr uint16, value byte) {}

func (c *MBC0) Read16(addr uint16) uint16 {
	lo := c.Read8(addr)
	if addr&0x7FFF == 0x7FFF {
		log.ModCart.Warnf("MBC0: 16-bit read at 0x%04X, using 0xFF as high byte", addr)
		return 0xFF00 | uint16(lo)
	}
	return uint16(lo) | uint16(c.Read8(addr+1))<<8
}

func (c *MBC0) Write16(addr uint16, value uint16) {}
