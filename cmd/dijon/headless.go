package main

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robocassie/dijon/internal/emu"
	"github.com/robocassie/dijon/internal/log"
)

type headlessResult struct {
	rom     string
	frames  uint64
	crc     uint32
	elapsed time.Duration
}

// parseCRC accepts a CRC32 in hex, with or without a 0x prefix.
func parseCRC(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid CRC %q", s)
	}
	return uint32(v), nil
}

// runHeadless runs every ROM for the requested number of frames, at most
// args.Jobs at a time, and prints one line per ROM in argument order.
func runHeadless(w io.Writer, args Headless) error {
	var want uint32
	if args.Expect != "" {
		var err error
		if want, err = parseCRC(args.Expect); err != nil {
			return err
		}
	}
	boot, err := readBoot(args.Boot)
	if err != nil {
		return err
	}
	frames := max(args.Frames, 1)

	results := make([]*headlessResult, len(args.RomPaths))

	var g errgroup.Group
	if args.Jobs > 0 {
		g.SetLimit(args.Jobs)
	} else {
		g.SetLimit(runtime.NumCPU())
	}
	for i, path := range args.RomPaths {
		g.Go(func() error {
			res, err := runOne(path, boot, frames, args.PNG)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			if args.Expect != "" && res.crc != want {
				return fmt.Errorf("%s: checksum mismatch: got %08x, want %08x", path, res.crc, want)
			}
			return nil
		})
	}
	err = g.Wait()

	for _, res := range results {
		if res == nil {
			continue
		}
		fps := float64(res.frames) / res.elapsed.Seconds()
		fmt.Fprintf(w, "%s: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x\n",
			res.rom, res.frames, res.elapsed.Truncate(time.Millisecond), fps, res.crc)
	}
	return err
}

func runOne(path string, boot []byte, frames int, pngDir string) (*headlessResult, error) {
	rom, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := emu.New(emu.Config{})
	if err := m.LoadCartridge(rom, boot); err != nil {
		return nil, err
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	res := &headlessResult{
		rom:     path,
		frames:  m.Frames(),
		crc:     m.FrameChecksum(),
		elapsed: time.Since(start),
	}

	if pngDir != "" {
		out := filepath.Join(pngDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".png")
		if err := writePNG(m, out); err != nil {
			return nil, fmt.Errorf("write PNG: %w", err)
		}
		log.ModEmu.Infof("wrote %s", out)
	}
	return res, nil
}

func writePNG(m *emu.Machine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	frame := m.Frame()
	if err := png.Encode(f, frame.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
