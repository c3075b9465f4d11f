package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/robocassie/dijon/internal/log"
	"github.com/robocassie/dijon/internal/trace"
)

type mode byte

const (
	runMode      mode = iota // Run a ROM in a window
	headlessMode             // Run ROMs without a window
	romInfoMode              // Show ROM header
	disasmMode               // Disassemble ROM code
	versionMode              // Show dijon version
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run ROM in a window."`
		Headless Headless `cmd:"" help:"Run ROMs without a window and print frame checksums."`
		RomInfo  RomInfo  `cmd:"" help:"Show ROM header infos." name:"rom-info"`
		Disasm   Disasm   `cmd:"" help:"Disassemble ROM code."`
		Version  Version  `cmd:"" help:"Show dijon version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		RomPath string `arg:"" name:"/path/to/rom" help:"ROM to run." type:"existingfile"`

		Boot            string       `name:"boot" help:"${boot_help}" type:"existingfile"`
		Config          string       `name:"config" help:"TOML configuration file." type:"path" default:"dijon.toml"`
		Trace           *outfile     `name:"trace" help:"Write CPU trace log." placeholder:"FILE|stdout|stderr"`
		TraceFormat     trace.Format `name:"trace-format" help:"Trace log format (text or json)." default:"text"`
		BreakAtBootExit bool         `name:"break-at-boot-exit" help:"Stop the CPU once the boot image hands over to the cartridge."`
		Paused          bool         `name:"paused" help:"Start with the CPU paused."`
		Scale           int          `name:"scale" help:"Window scale, overrides the configuration."`
	}

	Headless struct {
		RomPaths []string `arg:"" name:"/path/to/rom" help:"ROMs to run." type:"existingfile"`

		Boot   string `name:"boot" help:"${boot_help}" type:"existingfile"`
		Frames int    `name:"frames" help:"Frames to run each ROM for." default:"300"`
		PNG    string `name:"png" help:"Write the last frame of each ROM as PNG into DIR." type:"existingdir" placeholder:"DIR"`
		Expect string `name:"expect" help:"Expected CRC32 (hex) of the last frame of every ROM." placeholder:"CRC"`
		Jobs   int    `name:"jobs" short:"j" help:"ROMs to run concurrently (0: one per CPU)." default:"0"`
	}

	RomInfo struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	Disasm struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`

		From  hexAddr `name:"from" help:"Start address (hex)." default:"0100"`
		Count int     `name:"count" help:"Number of instructions." default:"32"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"boot_help": "DMG boot image (256 bytes). Without it the cartridge starts at 0x0100.",
	"log_help":  "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("dijon"),
		kong.Description("Game Boy (DMG) emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")

	cfg.mode = commandMode(ctx.Command())
	return cfg
}

// commandMode maps a kong command path, such as "run </path/to/rom>", to
// its mode.
func commandMode(cmd string) mode {
	switch strings.Fields(cmd)[0] {
	case "headless":
		return headlessMode
	case "rom-info":
		return romInfoMode
	case "disasm":
		return disasmMode
	case "version":
		return versionMode
	}
	return runMode
}

const logHelp = `
Log modules:
  --log takes a comma-separated list of modules whose debug logs are shown.
  Warnings and errors are always shown.

  Modules: %s

  "all" enables every module, "no" silences all logging, warnings included.
`

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if ctx.Command() != "" {
		fmt.Fprintf(ctx.Stdout, logHelp, strings.Join(log.ModuleNames(), ", "))
	}
	return nil
}

type logModMask log.ModuleMask

// Decode applies a --log value: a module list, "all" or "no".
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	var list string
	if err := ctx.Scan.PopValueInto("log", &list); err != nil {
		return err
	}

	switch list {
	case "no":
		log.Disable()
	case "all":
		log.EnableDebugModules(log.ModuleMaskAll)
	default:
		mask, err := log.ParseModules(list)
		if err != nil {
			return fmt.Errorf("%w (valid: all, no, %s)", err, strings.Join(log.ModuleNames(), ", "))
		}
		log.EnableDebugModules(mask)
	}
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

// hexAddr is a 16-bit address given in hex, with or without a $ or 0x
// prefix.
type hexAddr uint16

func (a *hexAddr) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(string(text)), "0x"), "$")
	var v uint16
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil || len(s) > 4 {
		return fmt.Errorf("invalid address %q", text)
	}
	*a = hexAddr(v)
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
