package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robocassie/dijon/internal/cart"
	"github.com/robocassie/dijon/internal/cpu"
)

// disassemble lists args.Count instructions from the cartridge, starting at
// args.From. Banked addresses are read with bank 1 mapped.
func disassemble(w io.Writer, args Disasm) error {
	rom, err := os.ReadFile(args.RomPath)
	if err != nil {
		return err
	}
	c := cart.New(rom)
	read := func(addr uint16) byte {
		if addr >= 0x8000 {
			return 0xFF
		}
		return c.Read8(addr)
	}

	pc := uint16(args.From)
	for i := 0; i < args.Count; i++ {
		e := cpu.Disassemble(read, pc)
		var hex []string
		for _, b := range e.Bytes {
			hex = append(hex, fmt.Sprintf("%02X", b))
		}
		if _, err := fmt.Fprintf(w, "%04X: %-8s  %s\n", e.PC, strings.Join(hex, " "), e.Mnemonic); err != nil {
			return err
		}
		next := pc + uint16(len(e.Bytes))
		if next < pc {
			break
		}
		pc = next
	}
	return nil
}
