package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	cfg := parseArgs(os.Args[1:])

	switch cfg.mode {
	case runMode:
		checkf(runWindow(cfg.Run), "run failed")
	case headlessMode:
		checkf(runHeadless(os.Stdout, cfg.Headless), "headless run failed")
	case romInfoMode:
		checkf(printROMInfo(os.Stdout, cfg.RomInfo.RomPath), "rom-info failed")
	case disasmMode:
		checkf(disassemble(os.Stdout, cfg.Disasm), "disasm failed")
	case versionMode:
		fmt.Println("dijon", version())
	}
}

func version() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}

// readBoot reads an optional boot image.
func readBoot(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
