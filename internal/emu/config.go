package emu

import "github.com/robocassie/dijon/internal/cpu"

// Config contains settings that affect emulation behavior.
type Config struct {
	BreakAtBootExit bool       // stop the CPU once PC leaves the boot image
	StartPaused     bool       // load cartridges with the CPU paused
	Tracer          cpu.Tracer // called before every instruction; nil disables tracing
}
