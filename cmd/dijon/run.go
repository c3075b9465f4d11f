package main

import (
	"fmt"
	"os"

	"github.com/robocassie/dijon/internal/emu"
	"github.com/robocassie/dijon/internal/log"
	"github.com/robocassie/dijon/internal/trace"
	"github.com/robocassie/dijon/internal/ui"
)

func runWindow(args Run) (err error) {
	rom, err := os.ReadFile(args.RomPath)
	if err != nil {
		return err
	}
	boot, err := readBoot(args.Boot)
	if err != nil {
		return err
	}

	cfg, err := ui.LoadConfig(args.Config)
	if err != nil {
		return err
	}
	if args.Scale > 0 {
		cfg.Scale = args.Scale
	}

	emuCfg := emu.Config{
		BreakAtBootExit: args.BreakAtBootExit,
		StartPaused:     args.Paused,
	}
	if args.Trace != nil {
		tw := trace.NewWriter(args.Trace, args.TraceFormat)
		emuCfg.Tracer = tw
		defer func() {
			ferr := tw.Flush()
			if cerr := args.Trace.Close(); ferr == nil {
				ferr = cerr
			}
			if err == nil && ferr != nil {
				err = fmt.Errorf("trace: %w", ferr)
			}
		}()
	}

	m := emu.New(emuCfg)
	if err := m.LoadCartridge(rom, boot); err != nil {
		return fmt.Errorf("load %s: %w", args.RomPath, err)
	}
	log.ModEmu.Infof("running %s", args.RomPath)
	return ui.NewApp(cfg, m).Run()
}
