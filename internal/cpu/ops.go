package cpu

import "fmt"

// instruction is one entry of a dispatch table. The mnemonic may hold one
// operand placeholder (d8 d16 a8 a16 r8 s8) that Disassemble substitutes.
// exec returns the clock cycles taken.
type instruction struct {
	mnemonic string
	length   int
	exec     func(c *CPU) int
}

// primary holds the unprefixed opcodes, extended the ones behind 0xCB. Nil
// exec marks an undefined encoding.
var primary, extended [256]instruction

var (
	r8Names    = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	r16Names   = [4]string{"BC", "DE", "HL", "SP"}
	stackNames = [4]string{"BC", "DE", "HL", "AF"}
	condNames  = [4]string{"NZ", "Z", "NC", "C"}
	aluNames   = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	rotNames   = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}
)

var illegalOpcodes = [...]byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func init() {
	initPrimary()
	initExtended()
}

func def(op byte, mnemonic string, length int, exec func(c *CPU) int) {
	primary[op] = instruction{mnemonic: mnemonic, length: length, exec: exec}
}

// cost returns regCost, or hlCost when any operand is (HL).
func cost(regCost, hlCost int, regs ...int) int {
	for _, r := range regs {
		if r == 6 {
			return hlCost
		}
	}
	return regCost
}

func initPrimary() {
	def(0x00, "NOP", 1, func(c *CPU) int { return 4 })
	// HALT and STOP don't change the power state yet.
	def(0x10, "STOP", 1, func(c *CPU) int { return 4 })
	def(0x76, "HALT", 1, func(c *CPU) int { return 4 })

	def(0x07, "RLCA", 1, func(c *CPU) int { c.A = c.rlc(c.A); c.F &^= flagZ; return 4 })
	def(0x0F, "RRCA", 1, func(c *CPU) int { c.A = c.rrc(c.A); c.F &^= flagZ; return 4 })
	def(0x17, "RLA", 1, func(c *CPU) int { c.A = c.rl(c.A); c.F &^= flagZ; return 4 })
	def(0x1F, "RRA", 1, func(c *CPU) int { c.A = c.rr(c.A); c.F &^= flagZ; return 4 })

	def(0x08, "LD (a16),SP", 3, func(c *CPU) int { c.bus.Write16(c.fetch16(), c.SP); return 20 })

	def(0x27, "DAA", 1, func(c *CPU) int { c.daa(); return 4 })
	def(0x2F, "CPL", 1, func(c *CPU) int {
		c.A = ^c.A
		c.F |= flagN | flagH
		return 4
	})
	def(0x37, "SCF", 1, func(c *CPU) int {
		c.setZNHC(c.flag(flagZ), false, false, true)
		return 4
	})
	def(0x3F, "CCF", 1, func(c *CPU) int {
		c.setZNHC(c.flag(flagZ), false, false, !c.flag(flagC))
		return 4
	})

	// 16-bit loads and arithmetic
	for p := 0; p < 4; p++ {
		hi := byte(p << 4)
		def(hi|0x01, "LD "+r16Names[p]+",d16", 3, func(c *CPU) int { c.setReg16(p, c.fetch16()); return 12 })
		def(hi|0x03, "INC "+r16Names[p], 1, func(c *CPU) int { c.setReg16(p, c.reg16(p)+1); return 8 })
		def(hi|0x0B, "DEC "+r16Names[p], 1, func(c *CPU) int { c.setReg16(p, c.reg16(p)-1); return 8 })
		def(hi|0x09, "ADD HL,"+r16Names[p], 1, func(c *CPU) int { c.addHL(c.reg16(p)); return 8 })

		def(0xC1|hi, "POP "+stackNames[p], 1, func(c *CPU) int {
			v := c.pop16()
			if p == 3 {
				c.SetAF(v)
			} else {
				c.setReg16(p, v)
			}
			return 12
		})
		def(0xC5|hi, "PUSH "+stackNames[p], 1, func(c *CPU) int {
			v := c.AF()
			if p != 3 {
				v = c.reg16(p)
			}
			c.push16(v)
			return 16
		})
	}

	// Indirect accumulator loads through BC, DE and HL with post inc/dec.
	indirect := [4]struct {
		name string
		addr func(c *CPU) uint16
	}{
		{"(BC)", func(c *CPU) uint16 { return c.BC() }},
		{"(DE)", func(c *CPU) uint16 { return c.DE() }},
		{"(HL+)", func(c *CPU) uint16 { hl := c.HL(); c.SetHL(hl + 1); return hl }},
		{"(HL-)", func(c *CPU) uint16 { hl := c.HL(); c.SetHL(hl - 1); return hl }},
	}
	for p, ind := range indirect {
		hi := byte(p << 4)
		def(hi|0x02, "LD "+ind.name+",A", 1, func(c *CPU) int { c.write8(ind.addr(c), c.A); return 8 })
		def(hi|0x0A, "LD A,"+ind.name, 1, func(c *CPU) int { c.A = c.read8(ind.addr(c)); return 8 })
	}

	for r := 0; r < 8; r++ {
		mid := byte(r << 3)
		def(mid|0x04, "INC "+r8Names[r], 1, func(c *CPU) int { c.setReg8(r, c.inc8(c.reg8(r))); return cost(4, 12, r) })
		def(mid|0x05, "DEC "+r8Names[r], 1, func(c *CPU) int { c.setReg8(r, c.dec8(c.reg8(r))); return cost(4, 12, r) })
		def(mid|0x06, "LD "+r8Names[r]+",d8", 2, func(c *CPU) int { c.setReg8(r, c.fetch8()); return cost(8, 12, r) })
	}

	def(0x18, "JR r8", 2, func(c *CPU) int { c.jr(true); return 12 })
	for cc := 0; cc < 4; cc++ {
		mid := byte(cc << 3)
		def(0x20|mid, "JR "+condNames[cc]+",r8", 2, func(c *CPU) int {
			if c.jr(c.cond(cc)) {
				return 12
			}
			return 8
		})
		def(0xC0|mid, "RET "+condNames[cc], 1, func(c *CPU) int {
			if c.cond(cc) {
				c.PC = c.pop16()
				return 20
			}
			return 8
		})
		def(0xC2|mid, "JP "+condNames[cc]+",a16", 3, func(c *CPU) int {
			addr := c.fetch16()
			if c.cond(cc) {
				c.PC = addr
				return 16
			}
			return 12
		})
		def(0xC4|mid, "CALL "+condNames[cc]+",a16", 3, func(c *CPU) int {
			addr := c.fetch16()
			if c.cond(cc) {
				c.push16(c.PC)
				c.PC = addr
				return 24
			}
			return 12
		})
	}

	// LD r,r' (0x76 would be LD (HL),(HL), it's HALT)
	for dst := 0; dst < 8; dst++ {
		for src := 0; src < 8; src++ {
			op := byte(0x40 | dst<<3 | src)
			if op == 0x76 {
				continue
			}
			def(op, "LD "+r8Names[dst]+","+r8Names[src], 1, func(c *CPU) int {
				c.setReg8(dst, c.reg8(src))
				return cost(4, 8, dst, src)
			})
		}
	}

	for k := 0; k < 8; k++ {
		for src := 0; src < 8; src++ {
			def(byte(0x80|k<<3|src), aluNames[k]+r8Names[src], 1, func(c *CPU) int {
				c.alu(k, c.reg8(src))
				return cost(4, 8, src)
			})
		}
		def(byte(0xC6|k<<3), aluNames[k]+"d8", 2, func(c *CPU) int { c.alu(k, c.fetch8()); return 8 })
		vec := uint16(k * 8)
		def(byte(0xC7|k<<3), fmt.Sprintf("RST $%02X", vec), 1, func(c *CPU) int {
			c.push16(c.PC)
			c.PC = vec
			return 16
		})
	}

	def(0xC3, "JP a16", 3, func(c *CPU) int { c.PC = c.fetch16(); return 16 })
	def(0xE9, "JP HL", 1, func(c *CPU) int { c.PC = c.HL(); return 4 })
	def(0xCD, "CALL a16", 3, func(c *CPU) int {
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 24
	})
	def(0xC9, "RET", 1, func(c *CPU) int { c.PC = c.pop16(); return 16 })
	def(0xD9, "RETI", 1, func(c *CPU) int {
		c.PC = c.pop16()
		c.enableInterruptsDelayed()
		return 16
	})
	def(0xCB, "PREFIX CB", 1, nil)

	def(0xE0, "LDH (a8),A", 2, func(c *CPU) int { c.write8(0xFF00|uint16(c.fetch8()), c.A); return 12 })
	def(0xF0, "LDH A,(a8)", 2, func(c *CPU) int { c.A = c.read8(0xFF00 | uint16(c.fetch8())); return 12 })
	def(0xE2, "LD (C),A", 1, func(c *CPU) int { c.write8(0xFF00|uint16(c.C), c.A); return 8 })
	def(0xF2, "LD A,(C)", 1, func(c *CPU) int { c.A = c.read8(0xFF00 | uint16(c.C)); return 8 })
	def(0xEA, "LD (a16),A", 3, func(c *CPU) int { c.write8(c.fetch16(), c.A); return 16 })
	def(0xFA, "LD A,(a16)", 3, func(c *CPU) int { c.A = c.read8(c.fetch16()); return 16 })

	def(0xE8, "ADD SP,s8", 2, func(c *CPU) int { c.SP = c.addSPSigned(); return 16 })
	def(0xF8, "LD HL,SP+s8", 2, func(c *CPU) int { c.SetHL(c.addSPSigned()); return 12 })
	def(0xF9, "LD SP,HL", 1, func(c *CPU) int { c.SP = c.HL(); return 8 })

	def(0xF3, "DI", 1, func(c *CPU) int { c.disableInterrupts(); return 4 })
	def(0xFB, "EI", 1, func(c *CPU) int { c.enableInterruptsDelayed(); return 4 })

	for _, op := range illegalOpcodes {
		def(op, "ILLEGAL", 1, nil)
	}
}

// jr reads the signed displacement and jumps when take is set.
func (c *CPU) jr(take bool) bool {
	off := int8(c.fetch8())
	if take {
		c.PC += uint16(int16(off))
	}
	return take
}

// Cycle costs for 0xCB opcodes exclude the 4-cycle prefix surcharge.
func initExtended() {
	for op := 0; op < 256; op++ {
		x, y, r := op>>6, op>>3&7, op&7
		in := &extended[op]
		in.length = 2
		regCost := cost(8, 16, r)

		switch x {
		case 0:
			in.mnemonic = rotNames[y] + " " + r8Names[r]
			in.exec = func(c *CPU) int { c.setReg8(r, c.rotate(y, c.reg8(r))); return regCost }
		case 1:
			in.mnemonic = fmt.Sprintf("BIT %d,%s", y, r8Names[r])
			in.exec = func(c *CPU) int {
				c.setZNHC(c.reg8(r)&(1<<y) == 0, false, true, c.flag(flagC))
				return regCost
			}
		case 2:
			in.mnemonic = fmt.Sprintf("RES %d,%s", y, r8Names[r])
			in.exec = func(c *CPU) int { c.setReg8(r, c.reg8(r)&^(1<<y)); return regCost }
		case 3:
			in.mnemonic = fmt.Sprintf("SET %d,%s", y, r8Names[r])
			in.exec = func(c *CPU) int { c.setReg8(r, c.reg8(r)|1<<y); return regCost }
		}
	}
}

// rotate runs one of RLC RRC RL RR SLA SRA SWAP SRL on v.
func (c *CPU) rotate(op int, v byte) byte {
	switch op {
	case 0:
		return c.rlc(v)
	case 1:
		return c.rrc(v)
	case 2:
		return c.rl(v)
	case 3:
		return c.rr(v)
	case 4:
		return c.shift(v<<1, v&0x80 != 0)
	case 5:
		return c.shift(v>>1|v&0x80, v&1 != 0)
	case 6:
		return c.shift(v<<4|v>>4, false)
	}
	return c.shift(v>>1, v&1 != 0)
}

func (c *CPU) shift(res byte, out bool) byte {
	c.setZNHC(res == 0, false, false, out)
	return res
}

func (c *CPU) rlc(v byte) byte { return c.shift(v<<1|v>>7, v&0x80 != 0) }
func (c *CPU) rrc(v byte) byte { return c.shift(v>>1|v<<7, v&1 != 0) }
func (c *CPU) rl(v byte) byte  { return c.shift(v<<1|c.carry(), v&0x80 != 0) }
func (c *CPU) rr(v byte) byte  { return c.shift(v>>1|c.carry()<<7, v&1 != 0) }
