package cpu

import (
	"fmt"
	"strings"
)

// Entry describes one instruction as the trace sink sees it.
type Entry struct {
	PC       uint16
	Bytes    []byte
	Mnemonic string
	Regs     Registers // zero when produced by Disassemble
}

// Tracer receives an Entry before each instruction executes.
type Tracer interface {
	Trace(Entry)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(Entry)

func (f TracerFunc) Trace(e Entry) { f(e) }

// Disassemble decodes the instruction at pc without executing it.
func Disassemble(read func(uint16) byte, pc uint16) Entry {
	op := read(pc)
	in := &primary[op]
	if op == 0xCB {
		in = &extended[read(pc+1)]
	}

	raw := make([]byte, in.length)
	for i := range raw {
		raw[i] = read(pc + uint16(i))
	}

	mnemonic := in.mnemonic
	if in.exec == nil && op != 0xCB {
		mnemonic = fmt.Sprintf("ILLEGAL $%02X", op)
	} else if op != 0xCB {
		mnemonic = formatOperand(mnemonic, raw[1:], pc+uint16(in.length))
	}
	return Entry{PC: pc, Bytes: raw, Mnemonic: mnemonic}
}

// formatOperand replaces the operand placeholder of tmpl with the actual
// operand bytes. next is the address of the following instruction.
func formatOperand(tmpl string, operand []byte, next uint16) string {
	var imm16 uint16
	if len(operand) == 2 {
		imm16 = uint16(operand[0]) | uint16(operand[1])<<8
	}
	for _, ph := range [...]string{"d16", "a16", "d8", "a8", "r8", "+s8", "s8"} {
		if !strings.Contains(tmpl, ph) {
			continue
		}
		var s string
		switch ph {
		case "d16", "a16":
			s = fmt.Sprintf("$%04X", imm16)
		case "d8":
			s = fmt.Sprintf("$%02X", operand[0])
		case "a8":
			s = fmt.Sprintf("$FF%02X", operand[0])
		case "r8":
			s = fmt.Sprintf("$%04X", next+uint16(int16(int8(operand[0]))))
		case "+s8", "s8":
			s = fmt.Sprintf("%+d", int8(operand[0]))
		}
		return strings.Replace(tmpl, ph, s, 1)
	}
	return tmpl
}
