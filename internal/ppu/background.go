package ppu

// pixelFIFO queues background color indices on their way to the LCD.
type pixelFIFO struct {
	buf  [16]byte
	head int
	n    int
}

func (q *pixelFIFO) Len() int { return q.n }

// pushRow queues the 8 pixels of r, leftmost first. It reports false, and
// queues nothing, when there isn't room for all of them.
func (q *pixelFIFO) pushRow(r tileRow) bool {
	if q.n+8 > len(q.buf) {
		return false
	}
	for x := 0; x < 8; x++ {
		q.buf[(q.head+q.n)%len(q.buf)] = r.color(x)
		q.n++
	}
	return true
}

// pop dequeues one pixel. The queue must not be empty.
func (q *pixelFIFO) pop() byte {
	ci := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ci
}

func (q *pixelFIFO) drop(n int) {
	for ; n > 0 && q.n > 0; n-- {
		q.pop()
	}
}

// bgFetcher walks one row of a 32x32 tile map, a tile at a time.
type bgFetcher struct {
	mem      VRAMReader
	rowBase  uint16 // first map entry of the row
	col      byte   // next map column, wraps at 32
	unsigned bool
	fineY    int
}

func (f *bgFetcher) fetch(q *pixelFIFO) {
	n := f.mem.Read8(f.rowBase + uint16(f.col))
	q.pushRow(readTileRow(f.mem, tileRowAddr(f.unsigned, n, f.fineY)))
	f.col = (f.col + 1) & 31
}

// backgroundLine returns the color indices of background line ly. The
// 256x256 background wraps around in both directions.
func backgroundLine(mem VRAMReader, mapBase uint16, unsigned bool, scx, scy, ly byte) [Width]byte {
	y := ly + scy
	f := bgFetcher{
		mem:      mem,
		rowBase:  mapBase + uint16(y/8)*32,
		col:      scx / 8,
		unsigned: unsigned,
		fineY:    int(y % 8),
	}

	var q pixelFIFO
	f.fetch(&q)
	q.drop(int(scx % 8))

	var line [Width]byte
	for x := range line {
		if q.Len() == 0 {
			f.fetch(&q)
		}
		line[x] = q.pop()
	}
	return line
}
