package cart

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Cartridge header layout.
const (
	hdrLogo         = 0x0104
	hdrTitle        = 0x0134
	hdrCGB          = 0x0143
	hdrNewLicensee  = 0x0144
	hdrSGB          = 0x0146
	hdrType         = 0x0147
	hdrROMSize      = 0x0148
	hdrRAMSize      = 0x0149
	hdrDestination  = 0x014A
	hdrOldLicensee  = 0x014B
	hdrVersion      = 0x014C
	hdrChecksum     = 0x014D
	hdrGlobalSum    = 0x014E
	headerEnd       = 0x0150
	useNewLicensee  = 0x33
	romBankSize     = 0x4000
	ramSizeCodeNone = 0x00
)

var ErrHeaderTooShort = errors.New("ROM too small to contain header")

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header is the decoded cartridge header.
type Header struct {
	Title       string
	CGBFlag     byte
	SGBFlag     byte
	Licensee    string // 2 ASCII chars, or the old licensee code in hex
	Destination byte
	Version     byte

	Type        byte
	ROMSizeCode byte
	RAMSizeCode byte

	Checksum       byte
	GlobalChecksum uint16

	LogoOK     bool
	ChecksumOK bool
}

// ParseHeader decodes the cartridge header at 0x0100-0x014F.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooShort, len(rom))
	}

	h := &Header{
		// The last title byte doubles as the CGB flag on newer carts.
		Title:          strings.TrimRight(string(rom[hdrTitle:hdrCGB+1]), "\x00"),
		CGBFlag:        rom[hdrCGB],
		SGBFlag:        rom[hdrSGB],
		Destination:    rom[hdrDestination],
		Version:        rom[hdrVersion],
		Type:           rom[hdrType],
		ROMSizeCode:    rom[hdrROMSize],
		RAMSizeCode:    rom[hdrRAMSize],
		Checksum:       rom[hdrChecksum],
		GlobalChecksum: binary.BigEndian.Uint16(rom[hdrGlobalSum:]),
		LogoOK:         bytes.Equal(rom[hdrLogo:hdrLogo+len(nintendoLogo)], nintendoLogo[:]),
		ChecksumOK:     headerChecksum(rom) == rom[hdrChecksum],
	}
	if old := rom[hdrOldLicensee]; old == useNewLicensee {
		h.Licensee = string(rom[hdrNewLicensee : hdrNewLicensee+2])
	} else {
		h.Licensee = fmt.Sprintf("%02X", old)
	}
	return h, nil
}

// headerChecksum computes the byte the boot image checks 0x014D against.
func headerChecksum(rom []byte) byte {
	var sum byte
	for _, b := range rom[hdrTitle:hdrChecksum] {
		sum = sum - b - 1
	}
	return sum
}

// ROMBanks returns the number of 16KB banks the size code announces, 0 if
// the code is unknown.
func (h *Header) ROMBanks() int {
	switch {
	case h.ROMSizeCode <= 0x08:
		return 2 << h.ROMSizeCode
	case h.ROMSizeCode >= 0x52 && h.ROMSizeCode <= 0x54:
		return [...]int{72, 80, 96}[h.ROMSizeCode-0x52]
	}
	return 0
}

// ROMSize returns the ROM size in bytes the size code announces.
func (h *Header) ROMSize() int { return h.ROMBanks() * romBankSize }

var ramSizes = map[byte]int{
	ramSizeCodeNone: 0,
	0x02:            8 << 10,
	0x03:            32 << 10,
	0x04:            128 << 10,
	0x05:            64 << 10,
}

// RAMSize returns the external RAM size in bytes.
func (h *Header) RAMSize() int { return ramSizes[h.RAMSizeCode] }

var typeNames = map[byte]string{
	0x00: "ROM ONLY",
	0x01: "MBC1",
	0x02: "MBC1+RAM",
	0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2",
	0x06: "MBC2+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY",
	0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3",
	0x12: "MBC3+RAM",
	0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5",
	0x1A: "MBC5+RAM",
	0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE",
	0x1D: "MBC5+RUMBLE+RAM",
	0x1E: "MBC5+RUMBLE+RAM+BATTERY",
}

// TypeName names the cartridge type byte.
func (h *Header) TypeName() string {
	if s, ok := typeNames[h.Type]; ok {
		return s
	}
	return fmt.Sprintf("unknown (0x%02X)", h.Type)
}
