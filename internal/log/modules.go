package log

import "strings"

type ModuleMask uint64
type Module uint

const ModuleMaskAll ModuleMask = 0xFFFFFFFFFFFFFFFF

const (
	ModEmu Module = iota + 1
	ModCPU
	ModMem
	ModCart
	ModPPU
	ModInput
	ModTrace

	endMods
)

var modNames = []string{
	"<error>", "emu", "cpu", "mem", "cart", "ppu", "input", "trace",
}

var (
	modDebugMask ModuleMask
	disabled     bool
)

// ModuleByName returns the module with the given name.
func ModuleByName(name string) (Module, bool) {
	for idx, s := range modNames[1:endMods] {
		if s == name {
			return Module(idx + 1), true
		}
	}
	return 0, false
}

// ModuleNames returns the names of all loggable modules.
func ModuleNames() []string {
	return append([]string(nil), modNames[1:endMods]...)
}

// ParseModules decodes a comma-separated list of module names into a mask.
func ParseModules(list string) (ModuleMask, error) {
	var mask ModuleMask
	for _, name := range strings.Split(list, ",") {
		mod, ok := ModuleByName(strings.TrimSpace(name))
		if !ok {
			return 0, &UnknownModuleError{Name: name}
		}
		mask |= mod.Mask()
	}
	return mask, nil
}

type UnknownModuleError struct{ Name string }

func (e *UnknownModuleError) Error() string { return "unknown log module " + e.Name }

func EnableDebugModules(mask ModuleMask)  { modDebugMask |= mask }
func DisableDebugModules(mask ModuleMask) { modDebugMask &^= mask }

// Disable turns off all logging, warnings included.
func Disable() { disabled = true }

func (mod Module) String() string {
	if int(mod) < len(modNames) {
		return modNames[mod]
	}
	return modNames[0]
}

func (mod Module) Mask() ModuleMask {
	return 1 << ModuleMask(mod)
}

func (mod Module) Enabled(level Level) bool {
	if disabled {
		return false
	}
	return level <= WarnLevel || modDebugMask&mod.Mask() != 0
}

func (mod Module) WithField(key string, value any) Entry {
	return Entry{mod: mod}.WithField(key, value)
}

func (mod Module) WithFields(fields Fields) Entry {
	return Entry{mod: mod}.WithFields(fields)
}

func (mod Module) Debugf(format string, args ...any) { Entry{mod: mod}.Debugf(format, args...) }
func (mod Module) Infof(format string, args ...any)  { Entry{mod: mod}.Infof(format, args...) }
func (mod Module) Warnf(format string, args ...any)  { Entry{mod: mod}.Warnf(format, args...) }
func (mod Module) Errorf(format string, args ...any) { Entry{mod: mod}.Errorf(format, args...) }
func (mod Module) Fatalf(format string, args ...any) { Entry{mod: mod}.Fatalf(format, args...) }
