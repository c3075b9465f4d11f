package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/robocassie/dijon/internal/bus"
	"github.com/robocassie/dijon/internal/log"
)

// Config contains window and input settings. It's stored as TOML.
type Config struct {
	Title string `toml:"title"` // window title
	Scale int    `toml:"scale"` // integer upscaling factor

	// Keys maps Game Boy keys (right, left, up, down, a, b, select, start)
	// to keyboard keys, named as ebiten names them.
	Keys map[string]ebiten.Key `toml:"keys"`

	// Hotkeys maps emulator actions (pause, screenshot, help) to keyboard keys.
	Hotkeys map[string]ebiten.Key `toml:"hotkeys"`

	ScreenshotDir string `toml:"screenshot_dir"`
}

// Emulator actions bound in Config.Hotkeys.
const (
	ActionPause      = "pause"
	ActionScreenshot = "screenshot"
	ActionHelp       = "help"
)

var defaultKeys = map[bus.Key]ebiten.Key{
	bus.KeyRight:  ebiten.KeyArrowRight,
	bus.KeyLeft:   ebiten.KeyArrowLeft,
	bus.KeyUp:     ebiten.KeyArrowUp,
	bus.KeyDown:   ebiten.KeyArrowDown,
	bus.KeyA:      ebiten.KeyZ,
	bus.KeyB:      ebiten.KeyX,
	bus.KeySelect: ebiten.KeyShiftRight,
	bus.KeyStart:  ebiten.KeyEnter,
}

var defaultHotkeys = map[string]ebiten.Key{
	ActionPause:      ebiten.KeyP,
	ActionScreenshot: ebiten.KeyF12,
	ActionHelp:       ebiten.KeyF1,
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "dijon"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.Keys == nil {
		c.Keys = make(map[string]ebiten.Key)
	}
	for gb, k := range defaultKeys {
		if _, ok := c.Keys[gb.String()]; !ok {
			c.Keys[gb.String()] = k
		}
	}
	if c.Hotkeys == nil {
		c.Hotkeys = make(map[string]ebiten.Key)
	}
	for action, k := range defaultHotkeys {
		if _, ok := c.Hotkeys[action]; !ok {
			c.Hotkeys[action] = k
		}
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "."
	}
}

// keyByName returns the joypad key called name.
func keyByName(name string) (bus.Key, bool) {
	for _, k := range bus.Keys {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// Validate checks that every key map entry names a known Game Boy key or
// action.
func (c *Config) Validate() error {
	var errs []error
	for name := range c.Keys {
		if _, ok := keyByName(name); !ok {
			errs = append(errs, fmt.Errorf("keys: unknown joypad key %q", name))
		}
	}
	for action := range c.Hotkeys {
		if _, ok := defaultHotkeys[action]; !ok {
			errs = append(errs, fmt.Errorf("hotkeys: unknown action %q", action))
		}
	}
	// Map iteration order is random, keep messages stable.
	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errors.Join(errs...)
}

// Joypad returns the keyboard to joypad mapping.
func (c *Config) Joypad() map[ebiten.Key]bus.Key {
	m := make(map[ebiten.Key]bus.Key, len(c.Keys))
	for name, k := range c.Keys {
		if gb, ok := keyByName(name); ok {
			m[k] = gb
		}
	}
	return m
}

// LoadConfig reads a TOML configuration file. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.ModEmu.Infof("no config at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	default:
		for _, key := range md.Undecoded() {
			log.ModEmu.WithField("key", key.String()).Warnf("config %s: unknown setting", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Defaults()
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
