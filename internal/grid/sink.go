package grid

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/Iron-Ham/keeper/internal/errors"
)

// Sink is a destination for grid dumps.
type Sink interface {
	// Name identifies the sink in logs and events.
	Name() string
	// Render writes the grid to the destination.
	Render(ctx context.Context, g *Grid) error
}

// FileSink appends each dump to a file, creating it if needed.
type FileSink struct {
	Path string
}

// NewFileSink returns a FileSink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file:" + s.Path }

// Render implements Sink.
func (s *FileSink) Render(ctx context.Context, g *Grid) (err error) {
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewStoreError("dump", s.Path, err).WithResource(resourceName)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewStoreError("dump", s.Path, cerr).WithResource(resourceName)
		}
	}()

	if err := g.RenderTo(ctx, f); err != nil {
		if errors.Is(err, errors.ErrWaitAbandoned) {
			return err
		}
		return errors.NewStoreError("dump", s.Path, err).WithResource(resourceName)
	}
	return nil
}

// WriterSink writes plain dumps to any io.Writer, e.g. stdout.
type WriterSink struct {
	W     io.Writer
	Label string
}

// NewWriterSink returns a WriterSink named label.
func NewWriterSink(w io.Writer, label string) *WriterSink {
	return &WriterSink{W: w, Label: label}
}

// Name implements Sink.
func (s *WriterSink) Name() string { return "writer:" + s.Label }

// Render implements Sink.
func (s *WriterSink) Render(ctx context.Context, g *Grid) error {
	if err := g.RenderTo(ctx, s.W); err != nil {
		if errors.Is(err, errors.ErrWaitAbandoned) {
			return err
		}
		return errors.NewStoreError("dump", s.Label, err).WithResource(resourceName)
	}
	return nil
}

// ColorMode controls whether ConsoleSink colours cells.
type ColorMode string

// Colour modes accepted by garden.color.
const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a colour mode string.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	case "":
		return ColorAuto, nil
	default:
		return "", errors.NewValidationError("unknown color mode").WithField("garden.color").WithValue(s)
	}
}

// ConsoleSink writes dumps to a console, colouring healthy and unhealthy
// plants when the output is a terminal. The layout is identical to the
// plain rendering so colour codes are the only difference.
type ConsoleSink struct {
	out       io.Writer
	colorize  bool
	healthy   lipgloss.Style
	unhealthy lipgloss.Style
}

// NewConsoleSink returns a ConsoleSink for out. With ColorAuto colour is
// used only when out is a terminal.
func NewConsoleSink(out io.Writer, mode ColorMode) *ConsoleSink {
	colorize := false
	switch mode {
	case ColorAlways:
		colorize = true
	case ColorAuto:
		colorize = isTerminal(out)
	}

	r := lipgloss.NewRenderer(out)
	if colorize {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return &ConsoleSink{
		out:       out,
		colorize:  colorize,
		healthy:   r.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		unhealthy: r.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
	}
}

// Name implements Sink.
func (s *ConsoleSink) Name() string { return "console" }

// Colorized reports whether the sink emits colour codes.
func (s *ConsoleSink) Colorized() bool { return s.colorize }

// Render implements Sink.
func (s *ConsoleSink) Render(ctx context.Context, g *Grid) error {
	if err := g.render(ctx, s.out, s.formatCell); err != nil {
		if errors.Is(err, errors.ErrWaitAbandoned) {
			return err
		}
		return errors.NewStoreError("dump", "console", err).WithResource(resourceName)
	}
	return nil
}

func (s *ConsoleSink) formatCell(v int) string {
	text := strconv.Itoa(v)
	if !s.colorize {
		return text
	}
	if v == Healthy {
		return s.healthy.Render(text)
	}
	return s.unhealthy.Render(text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
