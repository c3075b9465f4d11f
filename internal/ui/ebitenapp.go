package ui

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/robocassie/dijon/internal/bus"
	"github.com/robocassie/dijon/internal/emu"
	"github.com/robocassie/dijon/internal/log"
	"github.com/robocassie/dijon/internal/ppu"
)

// App presents a Machine in a window and feeds it keyboard input.
type App struct {
	cfg    Config
	m      *emu.Machine
	joypad map[ebiten.Key]bus.Key
	tex    *ebiten.Image
	pix    []byte

	showHelp bool
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.Width*cfg.Scale, ppu.Height*cfg.Scale)
	return &App{
		cfg:    cfg,
		m:      m,
		joypad: cfg.Joypad(),
		pix:    make([]byte, ppu.Width*ppu.Height*4),
	}
}

// Run blocks until the window is closed or emulation fails.
func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) hotkey(action string) bool {
	k, ok := a.cfg.Hotkeys[action]
	return ok && inpututil.IsKeyJustPressed(k)
}

func (a *App) Update() error {
	// Keyboard → Game Boy keys
	for k, gb := range a.joypad {
		switch {
		case inpututil.IsKeyJustPressed(k):
			a.m.Press(gb)
		case inpututil.IsKeyJustReleased(k):
			a.m.Release(gb)
		}
	}

	if a.hotkey(ActionPause) {
		a.m.SetPaused(!a.m.Paused())
	}
	if a.hotkey(ActionHelp) {
		a.showHelp = !a.showHelp
	}
	if a.hotkey(ActionScreenshot) {
		if path, err := a.saveScreenshot(); err != nil {
			log.ModEmu.Errorf("screenshot: %v", err)
		} else {
			log.ModEmu.Infof("wrote %s", path)
		}
	}

	if err := a.m.StepFrame(); err != nil {
		return fmt.Errorf("emulation stopped: %w", err)
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(ppu.Width, ppu.Height)
	}
	f := a.m.Frame()
	f.RGBA(a.pix)
	a.tex.WritePixels(a.pix)
	screen.DrawImage(a.tex, nil)

	a.drawOverlay(screen)
}

func (a *App) Layout(outW, outH int) (int, int) { return ppu.Width, ppu.Height }

func (a *App) saveScreenshot() (string, error) {
	f := a.m.Frame()
	name := filepath.Join(a.cfg.ScreenshotDir, "screenshot_"+time.Now().Format("20060102_150405")+".png")
	out, err := os.Create(name)
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, f.Image()); err != nil {
		out.Close()
		return "", err
	}
	return name, out.Close()
}
