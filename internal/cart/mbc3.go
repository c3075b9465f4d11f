package cart

// MBC3 is a partial MBC3: ROM banking follows MBC1 rules, there is no RTC.
// TODO: 7-bit ROM bank register and RTC registers (0x08-0x0C via 0x4000).
type MBC3 struct {
	*MBC1
}

func NewMBC3(rom []byte, romClass, ramClass byte) *MBC3 {
	return &MBC3{MBC1: NewMBC1(rom, romClass, ramClass)}
}

func (m *MBC3) Kind() Kind { return KindMBC3 }
