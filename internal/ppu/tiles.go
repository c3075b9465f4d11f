package ppu

// VRAMReader reads tile maps, tile data and OAM.
type VRAMReader interface {
	Read8(addr uint16) byte
}

// tileRowAddr returns the address of row y of tile n. With unsigned
// addressing tiles 0-255 start at 0x8000, otherwise n is signed and tile 0
// sits at 0x9000.
func tileRowAddr(unsigned bool, n byte, y int) uint16 {
	if unsigned {
		return 0x8000 + uint16(n)*16 + uint16(y)*2
	}
	return uint16(0x9000 + int(int8(n))*16 + y*2)
}

// tileRow holds the two bitplanes of an 8 pixel tile row.
type tileRow struct{ lo, hi byte }

func readTileRow(mem VRAMReader, addr uint16) tileRow {
	return tileRow{lo: mem.Read8(addr), hi: mem.Read8(addr + 1)}
}

// color returns the 2-bit color index of pixel x, 0 being the leftmost.
func (r tileRow) color(x int) byte {
	bit := 7 - x
	return (r.hi>>bit&1)<<1 | r.lo>>bit&1
}
