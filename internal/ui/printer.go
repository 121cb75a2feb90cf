package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Printer writes styled lines to a terminal, degrading to plain text
// when the output is not a TTY or NO_COLOR is set.
type Printer struct {
	out    io.Writer
	styles Styles
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithStyles replaces the auto-detected styles.
func WithStyles(s Styles) PrinterOption {
	return func(p *Printer) { p.styles = s }
}

// NewPrinter creates a Printer for out. Color is enabled only when out
// is a terminal and NO_COLOR is unset.
func NewPrinter(out io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{out: out}
	if IsTerminal(out) && !DetectNoColor() {
		p.styles = DefaultStyles()
	} else {
		p.styles = NoColorStyles()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Headerf prints a bold header line.
func (p *Printer) Headerf(format string, args ...any) {
	p.println(p.styles.Header.Render(fmt.Sprintf(format, args...)))
}

// Successf prints a success line.
func (p *Printer) Successf(format string, args ...any) {
	p.println(p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	p.println(p.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.println(p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Dimf prints a de-emphasized line.
func (p *Printer) Dimf(format string, args ...any) {
	p.println(p.styles.Dim.Render(fmt.Sprintf(format, args...)))
}

// Printf prints an unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	p.println(fmt.Sprintf(format, args...))
}

// KV prints an aligned label/value pair.
func (p *Printer) KV(label, value string) {
	p.println(fmt.Sprintf("  %s %s", p.styles.Label.Render(fmt.Sprintf("%-14s", label+":")), value))
}

// Scoref renders a score fragment for inline use in result rows.
func (p *Printer) Scoref(score float32) string {
	return p.styles.Score.Render(fmt.Sprintf("%.3f", score))
}

func (p *Printer) println(line string) {
	_, _ = fmt.Fprintln(p.out, line)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether the NO_COLOR convention is in effect.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
