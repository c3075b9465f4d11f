package ppu

import (
	"image"

	"github.com/robocassie/dijon/internal/log"
)

//go:generate go tool stringer -type=Mode

// Mode is the LCD mode, as reported in STAT bits 0-1.
type Mode byte

const (
	HBlank Mode = iota
	VBlank
	OAMSearch
	PixelTransfer
)

const (
	Width  = 160
	Height = 144

	oamEntries = 40
	maxSprites = 10
)

// Mode lengths, in CPU cycles.
const (
	oamSearchCycles = 20
	transferCycles  = 43
	hblankCycles    = 51
	lineCycles      = oamSearchCycles + transferCycles + hblankCycles
	vblankCycles    = 10 * lineCycles
)

// LCD registers
const (
	regLCDC = 0xFF40
	regSTAT = 0xFF41
	regSCY  = 0xFF42
	regSCX  = 0xFF43
	regLY   = 0xFF44
	regLYC  = 0xFF45
	regBGP  = 0xFF47
	regOBP0 = 0xFF48
	regOBP1 = 0xFF49
	regWY   = 0xFF4A
	regWX   = 0xFF4B

	oamBase = 0xFE00
)

// LCDC bits
const (
	lcdcObjTall  = 1 << 2
	lcdcBGMap    = 1 << 3
	lcdcTileData = 1 << 4
	lcdcOn       = 1 << 7
)

const (
	statCoincidence = 1 << 2
	vblankInterrupt = 0
)

// Palette holds the 4 output shades, lightest first, as 0xAARRGGBB.
var Palette = [4]uint32{0xFF9BBC0F, 0xFF8BAC0F, 0xFF306230, 0xFF0F380F}

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// Memory is the bus as seen by the PPU. LCD registers, VRAM and OAM are all
// read through it when needed, never cached.
type Memory interface {
	VRAMReader
	Write8(addr uint16, value byte)
}

// PPU is the mode/timing state machine and the scanline renderer.
type PPU struct {
	mem Memory
	req InterruptRequester

	fb Frame

	mode        Mode
	modeCycles  int
	vblankCycle int // cycles into the current VBlank line
	ly          byte

	sprites  [maxSprites]int // OAM indices selected for the current line
	nsprites int
}

// New resets the LCD registers and returns a PPU about to search OAM for
// line 0.
func New(mem Memory, req InterruptRequester) *PPU {
	p := &PPU{mem: mem, req: req}
	for _, r := range [...]uint16{regSCY, regSCX, regLYC, regWY, regWX} {
		mem.Write8(r, 0x00)
	}
	for _, r := range [...]uint16{regBGP, regOBP0, regOBP1} {
		mem.Write8(r, 0xE4)
	}
	p.setLY(0)
	p.setMode(OAMSearch)
	for i := range p.fb {
		p.fb[i] = Palette[0]
	}
	return p
}

func (p *PPU) Mode() Mode { return p.mode }
func (p *PPU) LY() byte   { return p.ly }

// Frame returns a copy of the framebuffer.
func (p *PPU) Frame() Frame { return p.fb }

// Enabled reports whether the LCD is switched on.
func (p *PPU) Enabled() bool { return p.mem.Read8(regLCDC)&lcdcOn != 0 }

// Run advances the PPU by the given number of CPU cycles and reports
// whether a frame was completed. A disabled LCD doesn't advance at all.
func (p *PPU) Run(cycles int) bool {
	if !p.Enabled() {
		return false
	}

	p.modeCycles += cycles
	switch p.mode {
	case HBlank:
		if p.modeCycles >= hblankCycles {
			p.setLY(p.ly + 1)
			if p.ly >= Height {
				p.setMode(VBlank)
				p.vblankCycle = p.modeCycles % hblankCycles
				p.req(vblankInterrupt)
			} else {
				p.setMode(OAMSearch)
			}
			p.modeCycles %= hblankCycles
		}
	case VBlank:
		p.vblankCycle += cycles
		if p.vblankCycle >= lineCycles {
			p.setLY(p.ly + 1)
			p.vblankCycle %= lineCycles
		}
		if p.modeCycles >= vblankCycles {
			p.setLY(0)
			p.setMode(OAMSearch)
			p.modeCycles %= vblankCycles
			return true
		}
	case OAMSearch:
		if p.modeCycles >= oamSearchCycles {
			p.searchOAM()
			p.setMode(PixelTransfer)
			p.modeCycles %= oamSearchCycles
		}
	case PixelTransfer:
		if p.modeCycles >= transferCycles {
			p.renderScanline()
			p.setMode(HBlank)
			p.modeCycles %= transferCycles
		}
	}
	return false
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	stat := p.mem.Read8(regSTAT)
	p.mem.Write8(regSTAT, stat&^0x03|byte(m))
}

// setLY mirrors the line into LY and refreshes the STAT coincidence flag.
func (p *PPU) setLY(ly byte) {
	p.ly = ly
	p.mem.Write8(regLY, ly)
	stat := p.mem.Read8(regSTAT) &^ statCoincidence
	if ly == p.mem.Read8(regLYC) {
		stat |= statCoincidence
	}
	p.mem.Write8(regSTAT, stat)
}

func (p *PPU) spriteHeight() int {
	if p.mem.Read8(regLCDC)&lcdcObjTall != 0 {
		return 16
	}
	return 8
}

// searchOAM selects the first 10 sprites, in OAM order, covering the
// current line.
func (p *PPU) searchOAM() {
	h := p.spriteHeight()
	p.nsprites = 0
	for i := 0; i < oamEntries && p.nsprites < maxSprites; i++ {
		y := int(p.mem.Read8(oamBase + uint16(i*4)))
		if row := int(p.ly) + 16 - y; row >= 0 && row < h {
			p.sprites[p.nsprites] = i
			p.nsprites++
		}
	}
	if p.nsprites != 0 {
		log.ModPPU.Debugf("line %d: %d sprites", p.ly, p.nsprites)
	}
}

func shade(palette, ci byte) uint32 {
	return Palette[palette>>(ci*2)&0x03]
}

func (p *PPU) renderScanline() {
	line := p.fb[int(p.ly)*Width : (int(p.ly)+1)*Width]
	lcdc := p.mem.Read8(regLCDC)

	mapBase := uint16(0x9800)
	if lcdc&lcdcBGMap != 0 {
		mapBase = 0x9C00
	}
	scx, scy := p.mem.Read8(regSCX), p.mem.Read8(regSCY)
	bg := backgroundLine(p.mem, mapBase, lcdc&lcdcTileData != 0, scx, scy, p.ly)
	bgp := p.mem.Read8(regBGP)
	for x, ci := range bg {
		line[x] = shade(bgp, ci)
	}

	p.renderSprites(line)
}

// renderSprites draws the selected sprites over the line, later ones over
// earlier ones. Color 0 is drawn like any other color and sprites are never
// flipped.
func (p *PPU) renderSprites(line []uint32) {
	h := p.spriteHeight()
	obp0, obp1 := p.mem.Read8(regOBP0), p.mem.Read8(regOBP1)

	for _, idx := range p.sprites[:p.nsprites] {
		base := oamBase + uint16(idx*4)
		y := p.mem.Read8(base)
		x := p.mem.Read8(base + 1)
		tile := p.mem.Read8(base + 2)
		attr := p.mem.Read8(base + 3)

		row := int(p.ly) + 16 - int(y)
		if h == 16 {
			tile &^= 1
		}
		tr := readTileRow(p.mem, tileRowAddr(true, tile, row))

		pal := obp0
		if attr&0x10 != 0 {
			pal = obp1
		}

		start := int(x) - 8
		for px := 0; px < 8; px++ {
			sx := start + px
			if sx < 0 || sx >= Width {
				continue
			}
			line[sx] = shade(pal, tr.color(px))
		}
	}
}

// Frame is a 160x144 framebuffer of 0xAARRGGBB pixels, row major.
type Frame [Width * Height]uint32

// RGBA expands the frame into dst as 8-bit R, G, B, A quadruplets. dst must
// hold at least Width*Height*4 bytes.
func (f *Frame) RGBA(dst []byte) {
	for i, c := range f {
		d := dst[i*4 : i*4+4 : i*4+4]
		d[0] = byte(c >> 16)
		d[1] = byte(c >> 8)
		d[2] = byte(c)
		d[3] = byte(c >> 24)
	}
}

// Image returns the frame as an RGBA image.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	f.RGBA(img.Pix)
	return img
}
