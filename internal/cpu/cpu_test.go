package cpu

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/robocassie/dijon/internal/bus"
	"github.com/robocassie/dijon/internal/cart"
)

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	return New(bus.New(cart.NewMBC0(rom)))
}

func mustStep(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("Step at PC=%04X: %v", c.PC, err)
	}
	return cycles
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // NOP
	want := c.Registers()
	want.PC++

	if cycles := mustStep(t, c); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if diff := cmp.Diff(want, c.Registers()); diff != "" {
		t.Fatalf("NOP changed more than PC (-want +got):\n%s", diff)
	}
}

func TestCPU_LD_A_d8(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12})
	if cycles := mustStep(t, c); cycles != 8 {
		t.Fatalf("LD A,d8 cycles got %d want 8", cycles)
	}
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	if c.PC != 2 {
		t.Fatalf("PC after LD got %04x want 0002", c.PC)
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(prog)
	mustStep(t, c)
	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("LD (a16),A cycles got %d want 16", cycles)
	}
	if a := c.read8(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	mustStep(t, c)
	mustStep(t, c)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_ADD_AllOperands(t *testing.T) {
	c := newCPUWithROM([]byte{0x80}) // ADD A,B
	for a := 0; a < 256; a++ {
		for v := 0; v < 256; v++ {
			c.PC = 0
			c.A, c.B, c.F = byte(a), byte(v), 0xF0

			if cycles := mustStep(t, c); cycles != 4 {
				t.Fatalf("ADD cycles got %d want 4", cycles)
			}

			sum := a + v
			res := byte(sum)
			var f byte
			if res == 0 {
				f |= flagZ
			}
			if a&0x0F+v&0x0F > 0x0F {
				f |= flagH
			}
			if sum > 0xFF {
				f |= flagC
			}
			if c.A != res || c.F != f {
				t.Fatalf("ADD %02X+%02X got A=%02X F=%02X want A=%02X F=%02X", a, v, c.A, c.F, res, f)
			}
		}
	}
}

func TestCPU_SUB_AllOperands(t *testing.T) {
	c := newCPUWithROM([]byte{0x90}) // SUB B
	for a := 0; a < 256; a++ {
		for v := 0; v < 256; v++ {
			c.PC = 0
			c.A, c.B, c.F = byte(a), byte(v), 0
			mustStep(t, c)

			res := byte(a - v)
			f := flagN
			if res == 0 {
				f |= flagZ
			}
			if a&0x0F < v&0x0F {
				f |= flagH
			}
			if a < v {
				f |= flagC
			}
			if c.A != res || c.F != f {
				t.Fatalf("SUB %02X-%02X got A=%02X F=%02X want A=%02X F=%02X", a, v, c.A, c.F, res, f)
			}
		}
	}
}

func TestCPU_ADC_SBC_HalfCarry(t *testing.T) {
	c := newCPUWithROM([]byte{0x88, 0x98}) // ADC A,B; SBC A,B
	c.A, c.B, c.F = 0x0F, 0x00, flagC
	mustStep(t, c)
	if c.A != 0x10 || c.F != flagH {
		t.Fatalf("ADC got A=%02X F=%02X want A=10 F=20", c.A, c.F)
	}

	c.A, c.B, c.F = 0x10, 0x0F, flagC
	mustStep(t, c)
	if c.A != 0x00 || c.F != flagZ|flagN|flagH {
		t.Fatalf("SBC got A=%02X F=%02X want A=00 F=E0", c.A, c.F)
	}
}

func TestCPU_AND_OR_XOR_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0xA0, 0xB0, 0xA8}) // AND B; OR B; XOR B
	c.A, c.B, c.F = 0xF0, 0x0F, flagC|flagN
	mustStep(t, c)
	if c.A != 0x00 || c.F != flagZ|flagH {
		t.Fatalf("AND got A=%02X F=%02X want A=00 F=A0", c.A, c.F)
	}
	mustStep(t, c)
	if c.A != 0x0F || c.F != 0 {
		t.Fatalf("OR got A=%02X F=%02X want A=0F F=00", c.A, c.F)
	}
	mustStep(t, c)
	if c.A != 0x00 || c.F != flagZ {
		t.Fatalf("XOR got A=%02X F=%02X want A=00 F=80", c.A, c.F)
	}
}

func TestCPU_CP_KeepsA(t *testing.T) {
	c := newCPUWithROM([]byte{0xFE, 0x42}) // CP $42
	c.A = 0x42
	if cycles := mustStep(t, c); cycles != 8 {
		t.Fatalf("CP d8 cycles got %d want 8", cycles)
	}
	if c.A != 0x42 || c.F != flagZ|flagN {
		t.Fatalf("CP got A=%02X F=%02X want A=42 F=C0", c.A, c.F)
	}
}

func TestCPU_INC_DEC_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x05, 0x05}) // INC B; DEC B; DEC B
	c.B, c.F = 0x0F, flagC
	mustStep(t, c)
	if c.B != 0x10 || c.F != flagH|flagC {
		t.Fatalf("INC got B=%02X F=%02X want B=10 F=30", c.B, c.F)
	}
	mustStep(t, c)
	if c.B != 0x0F || c.F != flagN|flagH|flagC {
		t.Fatalf("DEC got B=%02X F=%02X want B=0F F=70", c.B, c.F)
	}
	c.B = 0x01
	mustStep(t, c)
	if c.B != 0x00 || c.F != flagZ|flagN|flagC {
		t.Fatalf("DEC to zero got B=%02X F=%02X want B=00 F=D0", c.B, c.F)
	}
}

func TestCPU_INC_HL_Indirect(t *testing.T) {
	c := newCPUWithROM([]byte{0x34}) // INC (HL)
	c.SetHL(0xC123)
	c.write8(0xC123, 0xFF)
	if cycles := mustStep(t, c); cycles != 12 {
		t.Fatalf("INC (HL) cycles got %d want 12", cycles)
	}
	if got := c.read8(0xC123); got != 0x00 {
		t.Fatalf("(HL) got %02X want 00", got)
	}
	if !c.flag(flagZ) || !c.flag(flagH) {
		t.Fatalf("INC (HL) flags got %02X", c.F)
	}
}

func TestCPU_DAA(t *testing.T) {
	tests := []struct {
		name   string
		a, f   byte
		wantA  byte
		wantCy bool
	}{
		{"half carry after add", 0x0F, flagH, 0x15, false},
		{"low nibble over 9", 0x0A, 0, 0x10, false},
		{"over 99", 0x9A, 0, 0x00, true},
		{"carry after add", 0x20, flagC, 0x80, true},
		{"half carry after sub", 0x0F, flagN | flagH, 0x09, false},
		{"carry after sub", 0x90, flagN | flagC, 0x30, true},
		{"sub ignores nibble size", 0x0A, flagN, 0x0A, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCPUWithROM([]byte{0x27})
			c.A, c.F = tt.a, tt.f
			mustStep(t, c)
			if c.A != tt.wantA {
				t.Fatalf("A got %02X want %02X", c.A, tt.wantA)
			}
			if c.flag(flagC) != tt.wantCy {
				t.Fatalf("C got %v want %v", c.flag(flagC), tt.wantCy)
			}
			if c.flag(flagH) {
				t.Fatal("H not cleared")
			}
			if c.flag(flagZ) != (c.A == 0) {
				t.Fatalf("Z got %v for A=%02X", c.flag(flagZ), c.A)
			}
			if c.flag(flagN) != (tt.f&flagN != 0) {
				t.Fatal("N changed")
			}
		})
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	prog := make([]byte, 0x20)
	copy(prog, []byte{0xC3, 0x10, 0x00}) // JP $0010
	prog[0x10] = 0x18                    // JR -2
	prog[0x11] = 0xFE
	c := newCPUWithROM(prog)

	if cycles := mustStep(t, c); cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP got PC=%04X cycles=%d want PC=0010 cycles=16", c.PC, cycles)
	}
	if cycles := mustStep(t, c); cycles != 12 || c.PC != 0x0010 {
		t.Fatalf("JR got PC=%04X cycles=%d want PC=0010 cycles=12", c.PC, cycles)
	}
}

func TestCPU_Conditional_Cycles(t *testing.T) {
	tests := []struct {
		name   string
		prog   []byte
		f      byte
		cycles int
		pc     uint16
	}{
		{"JR NZ taken", []byte{0x20, 0x05}, 0, 12, 0x0007},
		{"JR NZ not taken", []byte{0x20, 0x05}, flagZ, 8, 0x0002},
		{"JP Z taken", []byte{0xCA, 0x00, 0x02}, flagZ, 16, 0x0200},
		{"JP Z not taken", []byte{0xCA, 0x00, 0x02}, 0, 12, 0x0003},
		{"CALL C taken", []byte{0xDC, 0x00, 0x02}, flagC, 24, 0x0200},
		{"CALL C not taken", []byte{0xDC, 0x00, 0x02}, 0, 12, 0x0003},
		{"RET NC taken", []byte{0xD0}, 0, 20, 0x1234},
		{"RET NC not taken", []byte{0xD0}, flagC, 8, 0x0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCPUWithROM(tt.prog)
			c.SP = 0xDFF0
			c.write8(0xDFF0, 0x34)
			c.write8(0xDFF1, 0x12)
			c.F = tt.f
			if cycles := mustStep(t, c); cycles != tt.cycles {
				t.Fatalf("cycles got %d want %d", cycles, tt.cycles)
			}
			if c.PC != tt.pc {
				t.Fatalf("PC got %04X want %04X", c.PC, tt.pc)
			}
		})
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	prog := make([]byte, 0x40)
	copy(prog, []byte{0xCD, 0x30, 0x00}) // CALL $0030
	prog[0x30] = 0xC9                    // RET
	c := newCPUWithROM(prog)
	c.SP = 0xFFFE

	if cycles := mustStep(t, c); cycles != 24 {
		t.Fatalf("CALL cycles got %d want 24", cycles)
	}
	if c.SP != 0xFFFC || c.read8(0xFFFD) != 0x00 || c.read8(0xFFFC) != 0x03 {
		t.Fatalf("CALL pushed SP=%04X [%02X %02X]", c.SP, c.read8(0xFFFD), c.read8(0xFFFC))
	}
	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("RET cycles got %d want 16", cycles)
	}
	if c.PC != 0x0003 || c.SP != 0xFFFE {
		t.Fatalf("RET got PC=%04X SP=%04X want 0003 FFFE", c.PC, c.SP)
	}
}

func TestCPU_RST(t *testing.T) {
	c := newCPUWithROM([]byte{0x00, 0xEF}) // NOP; RST $28
	c.SP = 0xFFFE
	mustStep(t, c)
	if cycles := mustStep(t, c); cycles != 16 || c.PC != 0x0028 {
		t.Fatalf("RST got PC=%04X cycles=%d", c.PC, cycles)
	}
	if got := c.bus.Read16(c.SP); got != 0x0002 {
		t.Fatalf("RST return address got %04X want 0002", got)
	}
}

func TestCPU_PUSH_POP_AF_MasksFlagsLowNibble(t *testing.T) {
	c := newCPUWithROM([]byte{0xC5, 0xF1}) // PUSH BC; POP AF
	c.SP = 0xFFFE
	c.SetBC(0x12FF)
	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("PUSH cycles got %d want 16", cycles)
	}
	if cycles := mustStep(t, c); cycles != 12 {
		t.Fatalf("POP cycles got %d want 12", cycles)
	}
	if c.A != 0x12 || c.F != 0xF0 {
		t.Fatalf("POP AF got A=%02X F=%02X want 12 F0", c.A, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// LD HL,$C000; LD (HL+),A; LDH ($80),A; LDH A,($80); LD (C),A
	prog := []byte{0x21, 0x00, 0xC0, 0x22, 0xE0, 0x80, 0xF0, 0x80, 0xE2}
	c := newCPUWithROM(prog)
	c.A, c.C = 0x5A, 0x81

	if cycles := mustStep(t, c); cycles != 12 || c.HL() != 0xC000 {
		t.Fatalf("LD HL,d16 got HL=%04X cycles=%d", c.HL(), cycles)
	}
	if cycles := mustStep(t, c); cycles != 8 || c.HL() != 0xC001 || c.read8(0xC000) != 0x5A {
		t.Fatalf("LD (HL+),A got HL=%04X cycles=%d", c.HL(), cycles)
	}
	if cycles := mustStep(t, c); cycles != 12 || c.read8(0xFF80) != 0x5A {
		t.Fatalf("LDH (a8),A cycles=%d", cycles)
	}
	c.A = 0
	if cycles := mustStep(t, c); cycles != 12 || c.A != 0x5A {
		t.Fatalf("LDH A,(a8) got A=%02X cycles=%d", c.A, cycles)
	}
	if cycles := mustStep(t, c); cycles != 8 || c.read8(0xFF81) != 0x5A {
		t.Fatalf("LD (C),A cycles=%d", cycles)
	}
}

func TestCPU_LD_a16_SP(t *testing.T) {
	c := newCPUWithROM([]byte{0x08, 0x00, 0xC1}) // LD ($C100),SP
	c.SP = 0xBEEF
	if cycles := mustStep(t, c); cycles != 20 {
		t.Fatalf("cycles got %d want 20", cycles)
	}
	if got := c.bus.Read16(0xC100); got != 0xBEEF {
		t.Fatalf("stored SP got %04X want BEEF", got)
	}
}

func TestCPU_ADD_HL_FlagsAndCarry(t *testing.T) {
	c := newCPUWithROM([]byte{0x09, 0x29}) // ADD HL,BC; ADD HL,HL
	c.SetHL(0x0FFF)
	c.SetBC(0x0001)
	c.F = flagZ | flagN
	if cycles := mustStep(t, c); cycles != 8 {
		t.Fatalf("ADD HL cycles got %d want 8", cycles)
	}
	if c.HL() != 0x1000 || c.F != flagZ|flagH {
		t.Fatalf("ADD HL,BC got HL=%04X F=%02X want 1000 A0", c.HL(), c.F)
	}

	c.SetHL(0x8000)
	c.F = 0
	mustStep(t, c)
	if c.HL() != 0x0000 || c.F != flagC {
		t.Fatalf("ADD HL,HL got HL=%04X F=%02X want 0000 10", c.HL(), c.F)
	}
}

func TestCPU_16bit_INC_DEC_DoNotAffectFlags(t *testing.T) {
	c := newCPUWithROM([]byte{0x03, 0x1B}) // INC BC; DEC DE
	c.SetBC(0xFFFF)
	c.SetDE(0x0000)
	c.F = 0xA0
	mustStep(t, c)
	mustStep(t, c)
	if c.BC() != 0x0000 || c.DE() != 0xFFFF || c.F != 0xA0 {
		t.Fatalf("got BC=%04X DE=%04X F=%02X", c.BC(), c.DE(), c.F)
	}
}

func TestCPU_LD_HL_SP_plus_s8_and_ADD_SP_s8_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0xF8, 0x08, 0xE8, 0xFF}) // LD HL,SP+8; ADD SP,-1
	c.SP = 0xFFF8
	c.F = flagZ | flagN
	if cycles := mustStep(t, c); cycles != 12 {
		t.Fatalf("LD HL,SP+s8 cycles got %d want 12", cycles)
	}
	if c.HL() != 0x0000 || c.F != flagH|flagC {
		t.Fatalf("LD HL,SP+8 got HL=%04X F=%02X want 0000 30", c.HL(), c.F)
	}

	c.SP = 0x0001
	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("ADD SP,s8 cycles got %d want 16", cycles)
	}
	if c.SP != 0x0000 || c.F != 0 {
		t.Fatalf("ADD SP,-1 got SP=%04X F=%02X want 0000 00", c.SP, c.F)
	}
}

func TestCPU_UnprefixedRotates_ClearZ(t *testing.T) {
	c := newCPUWithROM([]byte{0x07, 0x17, 0x0F, 0x1F}) // RLCA; RLA; RRCA; RRA
	c.A, c.F = 0x80, flagZ
	mustStep(t, c)
	if c.A != 0x01 || c.F != flagC {
		t.Fatalf("RLCA got A=%02X F=%02X want 01 10", c.A, c.F)
	}
	c.A, c.F = 0x80, 0
	mustStep(t, c)
	if c.A != 0x00 || c.F != flagC {
		t.Fatalf("RLA got A=%02X F=%02X want 00 10", c.A, c.F)
	}
	c.A, c.F = 0x01, 0
	mustStep(t, c)
	if c.A != 0x80 || c.F != flagC {
		t.Fatalf("RRCA got A=%02X F=%02X want 80 10", c.A, c.F)
	}
	c.A, c.F = 0x01, 0
	mustStep(t, c)
	if c.A != 0x00 || c.F != flagC {
		t.Fatalf("RRA got A=%02X F=%02X want 00 10", c.A, c.F)
	}
}

func TestCPU_CCF_SCF_CPL_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x37, 0x3F, 0x2F}) // SCF; CCF; CPL
	c.F = flagZ | flagN | flagH
	mustStep(t, c)
	if c.F != flagZ|flagC {
		t.Fatalf("SCF F got %02X want 90", c.F)
	}
	mustStep(t, c)
	if c.F != flagZ {
		t.Fatalf("CCF F got %02X want 80", c.F)
	}
	c.A = 0x35
	mustStep(t, c)
	if c.A != 0xCA || c.F != flagZ|flagN|flagH {
		t.Fatalf("CPL got A=%02X F=%02X want CA E0", c.A, c.F)
	}
}

func TestCPU_CB_Prefix_CyclesAndBehavior(t *testing.T) {
	tests := []struct {
		name   string
		op     byte
		in     byte
		f      byte
		out    byte
		wantF  byte
		cycles int
	}{
		{"RLC B", 0x00, 0x85, 0, 0x0B, flagC, 12},
		{"RRC B", 0x08, 0x01, 0, 0x80, flagC, 12},
		{"RL B", 0x10, 0x80, 0, 0x00, flagZ | flagC, 12},
		{"RR B", 0x18, 0x01, flagC, 0x80, flagC, 12},
		{"SLA B", 0x20, 0xC0, 0, 0x80, flagC, 12},
		{"SRA B", 0x28, 0x81, 0, 0xC0, flagC, 12},
		{"SWAP B", 0x30, 0xF1, flagC, 0x1F, 0, 12},
		{"SWAP zero", 0x30, 0x00, 0, 0x00, flagZ, 12},
		{"SRL B", 0x38, 0x81, 0, 0x40, flagC, 12},
		{"BIT 7,B set", 0x78, 0x80, flagC, 0x80, flagH | flagC, 12},
		{"BIT 0,B clear", 0x40, 0xFE, 0, 0xFE, flagZ | flagH, 12},
		{"RES 7,B", 0xB8, 0xFF, flagZ, 0x7F, flagZ, 12},
		{"SET 0,B", 0xC0, 0x00, 0, 0x01, 0, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCPUWithROM([]byte{0xCB, tt.op})
			c.B, c.F = tt.in, tt.f
			if cycles := mustStep(t, c); cycles != tt.cycles {
				t.Fatalf("cycles got %d want %d", cycles, tt.cycles)
			}
			if c.B != tt.out || c.F != tt.wantF {
				t.Fatalf("got B=%02X F=%02X want B=%02X F=%02X", c.B, c.F, tt.out, tt.wantF)
			}
			if c.PC != 2 {
				t.Fatalf("PC got %04X want 0002", c.PC)
			}
		})
	}
}

func TestCPU_CB_HL_Indirect(t *testing.T) {
	c := newCPUWithROM([]byte{0xCB, 0x46, 0xCB, 0xFE}) // BIT 0,(HL); SET 7,(HL)
	c.SetHL(0xC000)
	c.write8(0xC000, 0x01)
	if cycles := mustStep(t, c); cycles != 20 {
		t.Fatalf("BIT 0,(HL) cycles got %d want 20", cycles)
	}
	if c.flag(flagZ) {
		t.Fatal("BIT 0,(HL) set Z for a set bit")
	}
	if cycles := mustStep(t, c); cycles != 20 {
		t.Fatalf("SET 7,(HL) cycles got %d want 20", cycles)
	}
	if got := c.read8(0xC000); got != 0x81 {
		t.Fatalf("(HL) got %02X want 81", got)
	}
}

func TestCPU_LD_r_from_HL_CyclesAndBehavior(t *testing.T) {
	c := newCPUWithROM([]byte{0x7E, 0x70, 0x41}) // LD A,(HL); LD (HL),B; LD B,C
	c.SetHL(0xC010)
	c.write8(0xC010, 0x99)
	c.B, c.C = 0x11, 0x22
	if cycles := mustStep(t, c); cycles != 8 || c.A != 0x99 {
		t.Fatalf("LD A,(HL) got A=%02X cycles=%d", c.A, cycles)
	}
	if cycles := mustStep(t, c); cycles != 8 || c.read8(0xC010) != 0x11 {
		t.Fatalf("LD (HL),B cycles=%d", cycles)
	}
	if cycles := mustStep(t, c); cycles != 4 || c.B != 0x22 {
		t.Fatalf("LD B,C got B=%02X cycles=%d", c.B, cycles)
	}
}

func TestCPU_HALT_STOP_Stubs(t *testing.T) {
	c := newCPUWithROM([]byte{0x76, 0x10})
	for _, want := range []uint16{1, 2} {
		if cycles := mustStep(t, c); cycles != 4 {
			t.Fatalf("cycles got %d want 4", cycles)
		}
		if c.PC != want {
			t.Fatalf("PC got %04X want %04X", c.PC, want)
		}
	}
}

func TestCPU_EI_DelayedEnable(t *testing.T) {
	c := newCPUWithROM([]byte{0xFB, 0x00, 0x00}) // EI; NOP; NOP
	c.SP = 0xFFFE
	c.write8(regIE, 0x01)
	c.write8(regIF, 0x01)

	mustStep(t, c)
	if c.IME || c.PC != 1 {
		t.Fatalf("after EI got IME=%v PC=%04X", c.IME, c.PC)
	}

	// The NOP after EI runs, then the interrupt is taken.
	if cycles := mustStep(t, c); cycles != interruptCycles {
		t.Fatalf("cycles got %d want %d", cycles, interruptCycles)
	}
	if c.PC != 0x0040 {
		t.Fatalf("PC got %04X want 0040", c.PC)
	}
	if got := c.bus.Read16(c.SP); got != 0x0002 {
		t.Fatalf("return address got %04X want 0002", got)
	}
	if c.IME {
		t.Fatal("IME still set inside the handler")
	}
	if got := c.read8(regIF); got != 0x00 {
		t.Fatalf("IF got %02X want 00", got)
	}
}

func TestCPU_EI_DI_NeverEnables(t *testing.T) {
	c := newCPUWithROM([]byte{0xFB, 0xF3, 0x00, 0x00, 0x00}) // EI; DI; NOP...
	c.write8(regIE, 0x1F)
	c.write8(regIF, 0x1F)
	for i := 0; i < 5; i++ {
		mustStep(t, c)
		if c.IME {
			t.Fatalf("IME set after step %d", i+1)
		}
	}
	if c.PC != 5 {
		t.Fatalf("PC got %04X want 0005", c.PC)
	}
}

func TestCPU_RETI_EnablesIME_AndCycles(t *testing.T) {
	prog := make([]byte, 0x20)
	prog[0x10] = 0x00
	prog[0x11] = 0x00
	prog[0] = 0xD9 // RETI
	c := newCPUWithROM(prog)
	c.SP = 0xDFF0
	c.bus.Write16(0xDFF0, 0x0010)

	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("RETI cycles got %d want 16", cycles)
	}
	if c.PC != 0x0010 || c.IME {
		t.Fatalf("after RETI got PC=%04X IME=%v", c.PC, c.IME)
	}
	mustStep(t, c)
	if !c.IME {
		t.Fatal("IME not set one instruction after RETI")
	}
}

func TestCPU_InterruptPriority(t *testing.T) {
	c := newCPUWithROM([]byte{0x00})
	c.SP = 0xFFFE
	c.IME = true
	c.write8(regIE, 0x1F)
	c.RequestInterrupt(IntJoypad)
	c.RequestInterrupt(IntTimer)

	if cycles := mustStep(t, c); cycles != 20 {
		t.Fatalf("cycles got %d want 20", cycles)
	}
	if c.PC != 0x0050 {
		t.Fatalf("PC got %04X want 0050 (timer)", c.PC)
	}
	if got := c.read8(regIF); got != 1<<IntJoypad {
		t.Fatalf("IF got %02X want %02X", got, 1<<IntJoypad)
	}
	// High byte pushed first, at the higher address.
	if hi, lo := c.read8(0xFFFD), c.read8(0xFFFC); hi != 0x00 || lo != 0x01 {
		t.Fatalf("stack got %02X %02X want 00 01", hi, lo)
	}
}

func TestCPU_InterruptMaskedByIE(t *testing.T) {
	c := newCPUWithROM([]byte{0x00})
	c.IME = true
	c.write8(regIE, 1<<IntSTAT)
	c.RequestInterrupt(IntVBlank)
	if cycles := mustStep(t, c); cycles != 4 || c.PC != 1 {
		t.Fatalf("got PC=%04X cycles=%d, interrupt should be masked", c.PC, cycles)
	}
}

func TestCPU_IllegalOpcode(t *testing.T) {
	for _, op := range illegalOpcodes {
		c := newCPUWithROM([]byte{0x00, op})
		mustStep(t, c)
		_, err := c.Step()
		if !errors.Is(err, ErrIllegalOpcode) {
			t.Fatalf("opcode %02X: err got %v want %v", op, err, ErrIllegalOpcode)
		}
		var ierr *IllegalOpcodeError
		if !errors.As(err, &ierr) || ierr.Opcode != op || ierr.PC != 0x0001 {
			t.Fatalf("opcode %02X: got %#v", op, err)
		}
	}
}

func TestCPU_DispatchTablesComplete(t *testing.T) {
	illegal := map[byte]bool{0xCB: true}
	for _, op := range illegalOpcodes {
		illegal[op] = true
	}
	for op := 0; op < 256; op++ {
		in := primary[op]
		if (in.exec == nil) != illegal[byte(op)] {
			t.Errorf("primary %02X (%s) defined=%v", op, in.mnemonic, in.exec != nil)
		}
		if in.length < 1 || in.length > 3 {
			t.Errorf("primary %02X length %d", op, in.length)
		}
		if extended[op].exec == nil || extended[op].length != 2 {
			t.Errorf("extended %02X not defined", op)
		}
	}
}

func TestCPU_ResetPostBoot(t *testing.T) {
	c := newCPUWithROM(nil)
	c.ResetPostBoot()
	want := Registers{A: 0x01, F: 0xB0, B: 0x00, C: 0x13, D: 0x00, E: 0xD8, H: 0x01, L: 0x4D, SP: 0xFFFE, PC: 0x0100}
	if diff := cmp.Diff(want, c.Registers()); diff != "" {
		t.Fatalf("registers mismatch (-want +got):\n%s", diff)
	}
}

func TestCPU_Tracer(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x42, 0xCB, 0x7C, 0xC3, 0x00, 0x00})
	var got []Entry
	c.SetTracer(TracerFunc(func(e Entry) { got = append(got, e) }))

	for i := 0; i < 3; i++ {
		mustStep(t, c)
	}

	want := []Entry{
		{PC: 0x0000, Bytes: []byte{0x3E, 0x42}, Mnemonic: "LD A,$42"},
		{PC: 0x0002, Bytes: []byte{0xCB, 0x7C}, Mnemonic: "BIT 7,H"},
		{PC: 0x0004, Bytes: []byte{0xC3, 0x00, 0x00}, Mnemonic: "JP $0000"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Entry{}, "Regs")); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	if got[1].Regs.A != 0x42 || got[1].Regs.PC != 0x0002 {
		t.Fatalf("trace registers got %+v", got[1].Regs)
	}
}
