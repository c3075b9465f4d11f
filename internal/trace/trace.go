// Package trace writes per-instruction CPU traces.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/jx"

	"github.com/robocassie/dijon/internal/cpu"
	"github.com/robocassie/dijon/internal/log"
)

// Format selects how entries are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func (f *Format) UnmarshalText(text []byte) error {
	switch v := Format(strings.ToLower(string(text))); v {
	case FormatText, FormatJSON:
		*f = v
		return nil
	}
	return fmt.Errorf("unknown trace format %q (want text or json)", text)
}

// Writer is a cpu.Tracer that renders each entry to an io.Writer. Output is
// buffered; call Flush when done.
type Writer struct {
	w      *bufio.Writer
	format Format
	enc    jx.Encoder
	err    error
}

func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: bufio.NewWriter(w), format: format}
}

// Trace implements cpu.Tracer. After the first write error, further
// entries are dropped.
func (tw *Writer) Trace(e cpu.Entry) {
	if tw.err != nil {
		return
	}
	var err error
	if tw.format == FormatJSON {
		err = tw.writeJSON(e)
	} else {
		err = tw.writeText(e)
	}
	if err != nil {
		tw.err = err
		log.ModTrace.Errorf("trace output failed, tracing stopped: %v", err)
	}
}

// Flush writes any buffered output and returns the first error seen.
func (tw *Writer) Flush() error {
	if err := tw.w.Flush(); tw.err == nil {
		tw.err = err
	}
	return tw.err
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// Line renders e the way the text writer does, without the newline.
func Line(e cpu.Entry) string {
	r := e.Regs
	return fmt.Sprintf("%04X: %-8s  %-16s A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X",
		e.PC, hexBytes(e.Bytes), e.Mnemonic,
		r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L, r.SP)
}

func (tw *Writer) writeText(e cpu.Entry) error {
	if _, err := tw.w.WriteString(Line(e)); err != nil {
		return err
	}
	return tw.w.WriteByte('\n')
}

// writeJSON emits one object per line:
//
//	{"pc":256,"bytes":"3E 12","op":"LD A,$12","regs":{"a":1,...,"sp":65534,"ime":false}}
func (tw *Writer) writeJSON(e cpu.Entry) error {
	enc := &tw.enc
	enc.Reset()
	r := e.Regs
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("pc", func(enc *jx.Encoder) { enc.Int(int(e.PC)) })
		enc.Field("bytes", func(enc *jx.Encoder) { enc.Str(hexBytes(e.Bytes)) })
		enc.Field("op", func(enc *jx.Encoder) { enc.Str(e.Mnemonic) })
		enc.Field("regs", func(enc *jx.Encoder) {
			enc.Obj(func(enc *jx.Encoder) {
				for _, f := range [...]struct {
					name string
					v    int
				}{
					{"a", int(r.A)}, {"f", int(r.F)},
					{"b", int(r.B)}, {"c", int(r.C)},
					{"d", int(r.D)}, {"e", int(r.E)},
					{"h", int(r.H)}, {"l", int(r.L)},
					{"sp", int(r.SP)},
				} {
					enc.Field(f.name, func(enc *jx.Encoder) { enc.Int(f.v) })
				}
				enc.Field("ime", func(enc *jx.Encoder) { enc.Bool(r.IME) })
			})
		})
	})
	if _, err := tw.w.Write(enc.Bytes()); err != nil {
		return err
	}
	return tw.w.WriteByte('\n')
}
