package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/robocassie/dijon/internal/cart"
)

func printROMInfo(w io.Writer, path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "title\t%q\n", h.Title)
	fmt.Fprintf(tw, "type\t%s (0x%02X), emulated as %v\n", h.TypeName(), h.Type, cart.New(rom).Kind())
	fmt.Fprintf(tw, "rom\t%d KiB, %d banks (file: %d bytes)\n", h.ROMSize()/1024, h.ROMBanks(), len(rom))
	fmt.Fprintf(tw, "ram\t%d KiB\n", h.RAMSize()/1024)
	fmt.Fprintf(tw, "licensee\t%s\n", h.Licensee)
	fmt.Fprintf(tw, "cgb flag\t0x%02X\n", h.CGBFlag)
	fmt.Fprintf(tw, "sgb flag\t0x%02X\n", h.SGBFlag)
	fmt.Fprintf(tw, "destination\t0x%02X\n", h.Destination)
	fmt.Fprintf(tw, "version\t%d\n", h.Version)
	fmt.Fprintf(tw, "logo\t%s\n", okString(h.LogoOK))
	fmt.Fprintf(tw, "header checksum\t0x%02X %s\n", h.Checksum, okString(h.ChecksumOK))
	fmt.Fprintf(tw, "global checksum\t0x%04X\n", h.GlobalChecksum)
	return tw.Flush()
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "BAD"
}
