package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/robocassie/dijon/internal/bus"
	"github.com/robocassie/dijon/internal/ppu"
)

const (
	lineHeight = 14
	// The help screen has to fit 12 lines in 144 pixels.
	helpLineHeight = 12
)

// statusText describes why the CPU is held, or "" when it's running.
func (a *App) statusText() string {
	switch {
	case a.m.AtBootBreakpoint():
		return fmt.Sprintf("BOOT EXIT @%04X", a.m.Registers().PC)
	case a.m.Paused():
		return "PAUSED"
	}
	return ""
}

// helpLines lists the active bindings, joypad first.
func (a *App) helpLines() []string {
	lines := []string{"Keys:"}
	for _, gb := range bus.Keys {
		if k, ok := a.cfg.Keys[gb.String()]; ok {
			lines = append(lines, fmt.Sprintf("  %-7s %s", gb, k))
		}
	}
	for _, action := range []string{ActionPause, ActionScreenshot, ActionHelp} {
		if k, ok := a.cfg.Hotkeys[action]; ok {
			lines = append(lines, fmt.Sprintf("  %-7s %s", action[:min(len(action), 7)], k))
		}
	}
	return lines
}

func (a *App) drawOverlay(screen *ebiten.Image) {
	if a.showHelp {
		vector.DrawFilledRect(screen, 0, 0, ppu.Width, ppu.Height, color.RGBA{0, 0, 0, 160}, false)
		for i, s := range a.helpLines() {
			ebitenutil.DebugPrintAt(screen, s, 4, i*helpLineHeight)
		}
	}
	if s := a.statusText(); s != "" {
		ebitenutil.DebugPrintAt(screen, s, 4, ppu.Height-lineHeight-2)
	}
}
