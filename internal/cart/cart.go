package cart

import (
	"errors"
	"fmt"

	"github.com/robocassie/dijon/internal/log"
)

//go:generate go tool stringer -type=Kind -trimprefix=Kind

// Kind identifies the bank controller variant of a cartridge.
type Kind byte

const (
	KindNone Kind = iota // MBC0, direct-mapped
	KindMBC1             // switchable ROM/RAM banks
	KindMBC3             // partial, banks like MBC1
)

var ErrUnsupportedCartridgeType = errors.New("unsupported cartridge type")

// Cartridge is the bus-facing side of a bank controller. Addresses are CPU
// addresses below 0x8000; every address resolves to some byte.
type Cartridge interface {
	Kind() Kind
	Read8(addr uint16) byte
	Write8(addr uint16, value byte)
	Read16(addr uint16) uint16
	Write16(addr uint16, value uint16)
}

// New picks the bank controller from the ROM header. Header codes we can't
// emulate fall back to MBC1 with a warning.
func New(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		log.ModCart.Warnf("%v, mapping ROM directly", err)
		return NewMBC0(rom)
	}

	switch h.Type {
	case 0x00:
		return NewMBC0(rom)
	case 0x01, 0x02:
		return NewMBC1(rom, h.ROMSizeCode, h.RAMSizeCode)
	case 0x03, 0x13:
		return NewMBC3(rom, h.ROMSizeCode, h.RAMSizeCode)
	}

	log.ModCart.WithFields(log.Fields{
		"code": fmt.Sprintf("0x%02X", h.Type),
		"type": h.TypeName(),
	}).Warnf("%v, falling back to MBC1", ErrUnsupportedCartridgeType)
	return NewMBC1(rom, h.ROMSizeCode, h.RAMSizeCode)
}

func romByte(rom []byte, off int) byte {
	if off < len(rom) {
		return rom[off]
	}
	return 0xFF
}
