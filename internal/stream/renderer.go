package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"telemetry-sim/internal/model"
)

// Renderer prints one line per event:
//
//	[timestamp] KIND - sensor (subsystem) - values - STATUS
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	json   bool
	color  bool
	styles map[model.Status]lipgloss.Style
}

// NewRenderer colours statuses only when w is a terminal.
func NewRenderer(w io.Writer, jsonOutput bool) *Renderer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{
		w:     w,
		json:  jsonOutput,
		color: color,
		styles: map[model.Status]lipgloss.Style{
			model.StatusOK:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			model.StatusWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			model.StatusCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			model.StatusOffline:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		},
	}
}

func (r *Renderer) Render(ev *model.TelemetryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.json {
		return json.NewEncoder(r.w).Encode(ev)
	}
	_, err := fmt.Fprintln(r.w, r.line(ev))
	return err
}

func (r *Renderer) line(ev *model.TelemetryEvent) string {
	var (
		subsystem model.Subsystem
		unit      string
		values    string
	)
	switch {
	case ev.Temperature != nil:
		subsystem, unit = ev.Temperature.Subsystem, ev.Temperature.Unit
		values = fmt.Sprintf("%.2f", ev.Temperature.Temperature)
	case ev.Pressure != nil:
		subsystem, unit = ev.Pressure.Subsystem, ev.Pressure.Unit
		values = fmt.Sprintf("%.2f", ev.Pressure.Pressure)
	case ev.Velocity != nil:
		subsystem, unit = ev.Velocity.Subsystem, ev.Velocity.Unit
		values = fmt.Sprintf("x=%.2f y=%.2f z=%.2f", ev.Velocity.VelocityX, ev.Velocity.VelocityY, ev.Velocity.VelocityZ)
	}

	st := ev.Status()
	statusText := string(st)
	if r.color {
		statusText = r.styles[st].Render(statusText)
	}

	return fmt.Sprintf("[%s] %s - %s (%s) - %s %s - %s",
		ev.Timestamp.UTC().Format(model.TimestampLayout),
		ev.Type,
		ev.SensorID(),
		subsystem,
		values,
		unit,
		statusText,
	)
}
