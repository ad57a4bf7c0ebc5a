package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/state"
)

// Styles are the text colors used by the HUD and the menus.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Good    lipgloss.Style
	Caution lipgloss.Style
	Danger  lipgloss.Style
	Dim     lipgloss.Style
	Muted   lipgloss.Style
	Badge   lipgloss.Style
	Warning lipgloss.Style
	Select  lipgloss.Style
}

// NewStyles builds the palette for a lipgloss renderer. Each SSH session
// passes its own renderer so color support is detected per client.
func NewStyles(lr *lipgloss.Renderer) Styles {
	if lr == nil {
		lr = lipgloss.DefaultRenderer()
	}
	return Styles{
		Title:   lr.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Label:   lr.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
		Good:    lr.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Caution: lr.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Danger:  lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Dim:     lr.NewStyle().Foreground(lipgloss.Color("1")),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
		Badge:   lr.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14")).Bold(true),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Bold(true),
		Select:  lr.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("15")),
	}
}

type label struct {
	text string
	x, y float64
}

// flashOn toggles at config.FlashFrequency.
func (r *Renderer) flashOn() bool {
	return int(r.elapsed*config.FlashFrequency)%2 == 0
}

// writeText queues s at the 1-based canvas position and marks the cells so
// the canvas repaints them next frame.
func (r *Renderer) writeText(col, row int, s string) {
	w := lipgloss.Width(s)
	if row < 1 || row > r.canvas.TerminalHeight() || col < 1 || col+w-1 > r.canvas.TerminalWidth() {
		return
	}
	r.text.WriteAt(col, row, s)
	r.canvas.MarkTextDirty(col, row, w)
}

// fuelStyle: green above FuelGood, yellow above FuelCaution, else flashing red.
func (r *Renderer) fuelStyle(fuel float64) lipgloss.Style {
	switch {
	case fuel > config.FuelGood:
		return r.styles.Good
	case fuel > config.FuelCaution:
		return r.styles.Caution
	case r.flashOn():
		return r.styles.Danger
	default:
		return r.styles.Dim
	}
}

func (r *Renderer) speedStyle(speed float64) lipgloss.Style {
	switch {
	case speed < config.SpeedCaution:
		return r.styles.Good
	case speed < config.SpeedLimit:
		return r.styles.Caution
	case r.flashOn():
		return r.styles.Danger
	default:
		return r.styles.Dim
	}
}

func (r *Renderer) angleStyle(angle float64) lipgloss.Style {
	switch {
	case angle < config.AngleCaution:
		return r.styles.Good
	case angle < config.AngleLimit:
		return r.styles.Caution
	default:
		return r.styles.Danger
	}
}

// Readings are the values shown by the HUD. Altitude and speed come from the
// server and are never recomputed from the lander geometry.
type Readings struct {
	Fuel     float64
	Altitude float64
	Speed    float64
	AngleDeg float64
	VX, VY   float64
	Warnings []string
}

// Read derives the HUD readings for l.
func Read(snap state.Snapshot, l *protocol.Lander) Readings {
	angle := math.Abs(l.Rotation)
	rd := Readings{
		Fuel:     l.Fuel,
		Altitude: snap.Altitude,
		Speed:    snap.Speed,
		AngleDeg: angle * 180 / math.Pi,
		VX:       l.VX,
		VY:       l.VY,
	}
	if !l.Airborne() {
		return rd
	}
	if l.Fuel < config.FuelLowWarning {
		rd.Warnings = append(rd.Warnings, "LOW FUEL")
	}
	if snap.Speed > config.SpeedLimit && snap.Altitude < config.WarningAltitude {
		rd.Warnings = append(rd.Warnings, "TOO FAST")
	}
	if angle > config.AngleLimit && snap.Altitude < config.WarningAltitude {
		rd.Warnings = append(rd.Warnings, "BAD ANGLE")
	}
	return rd
}

// drawHUD draws the readouts. Text fields use fixed-width formatting so
// shrinking values don't leave residual characters on screen.
func (r *Renderer) drawHUD(snap state.Snapshot, primary *protocol.Lander) {
	termW := r.canvas.TerminalWidth()
	termH := r.canvas.TerminalHeight()
	s := r.styles

	// Right column: mode badge, spectators, ping
	row := 1
	if r.status.Mode != "" {
		badge := s.Badge.Render(" " + r.status.Mode + " ")
		r.writeText(termW-lipgloss.Width(badge), row, badge)
		row++
	}
	if snap.SpectatorCount != nil {
		txt := s.Muted.Render(fmt.Sprintf("%4d watching", *snap.SpectatorCount))
		r.writeText(termW-lipgloss.Width(txt), row, txt)
		row++
	}
	if r.status.Latency > 0 {
		txt := s.Muted.Render(fmt.Sprintf("PING %4dms", r.status.Latency.Milliseconds()))
		r.writeText(termW-lipgloss.Width(txt), row, txt)
	}

	if r.status.Hint != "" {
		r.writeText(2, termH, s.Muted.Render(r.status.Hint))
	}

	if primary == nil {
		return
	}
	rd := Read(snap, primary)

	lines := []string{
		s.Label.Render("FUEL  ") + r.fuelStyle(rd.Fuel).Render(fmt.Sprintf("%-6.0f", rd.Fuel)),
		s.Label.Render("ALT   ") + s.Good.Render(fmt.Sprintf("%-6.0f", rd.Altitude)),
		s.Label.Render("SPEED ") + r.speedStyle(rd.Speed).Render(fmt.Sprintf("%-5.1f", rd.Speed)) + s.Muted.Render(" (<5.0)"),
		s.Label.Render("ANGLE ") + r.angleStyle(math.Abs(primary.Rotation)).Render(fmt.Sprintf("%-5.1f°", rd.AngleDeg)) + s.Muted.Render(" (<17°)"),
		s.Label.Render("V-VEL ") + s.Muted.Render(fmt.Sprintf("%-6.1f", rd.VY)),
		s.Label.Render("H-VEL ") + s.Muted.Render(fmt.Sprintf("%-6.1f", rd.VX)),
	}
	for i, line := range lines {
		r.writeText(2, 1+i, line)
	}

	r.drawFuelBar(rd.Fuel, termH-1)

	if r.status.Paused {
		r.writeCentered(termH/2-4, s.Badge.Render(" PAUSED "))
	}
	if r.flashOn() {
		for i, w := range rd.Warnings {
			r.writeCentered(termH/2-2+i*2, s.Warning.Render(" !! "+w+" !! "))
		}
	}
}

func (r *Renderer) drawFuelBar(fuel float64, row int) {
	const width = 20
	filled := int(math.Round(clamp(fuel/config.FuelCapacity, 0, 1) * width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	r.writeText(2, row, r.styles.Label.Render("FUEL ")+r.fuelStyle(fuel).Render(bar))
}

func (r *Renderer) writeCentered(row int, s string) {
	r.writeText((r.canvas.TerminalWidth()-lipgloss.Width(s))/2+1, row, s)
}

// drawLabels draws player names above their craft.
func (r *Renderer) drawLabels(labels []label) {
	for _, l := range labels {
		col, row := r.canvas.LogicalToTerminal(l.x-r.camera.X, l.y-r.camera.Y-config.PlayerNameOffset)
		r.writeText(col-lipgloss.Width(l.text)/2, row, r.styles.Muted.Render(l.text))
	}
}

// drawZoneLabels marks each landing zone with its score multiplier.
func (r *Renderer) drawZoneLabels(t *protocol.Terrain) {
	if t == nil {
		return
	}
	for _, z := range t.LandingZones {
		if z.Multiplier <= 1 {
			continue
		}
		txt := fmt.Sprintf("x%g", z.Multiplier)
		col, row := r.canvas.LogicalToTerminal(z.Center()-r.camera.X, z.Y-r.camera.Y)
		r.writeText(col-len(txt)/2, row+1, r.styles.Good.Render(txt))
	}
}
