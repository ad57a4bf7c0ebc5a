// Package render draws the game snapshot onto the terminal canvas.
//
// The renderer owns all purely visual state (particles, the crash explosion
// and the camera). It is never reset by snapshot merges, only by Reset at a
// session boundary.
package render

import (
	"math"
	"math/rand"
	"time"

	"github.com/tomz197/lander/internal/draw"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/state"
)

// Camera is the top-left corner of the viewport in world coordinates.
type Camera struct {
	X, Y float64
}

// LanderStyle controls how one craft is drawn.
type LanderStyle struct {
	Key   string     // Identifies the craft for the one-shot crash effect
	Body  draw.Color // ColorNone picks white/green/red from the craft state
	Label string     // Drawn above the craft when non-empty
}

// Status is the mode-level information shown by the HUD.
type Status struct {
	Mode    string        // Badge such as "PLAYING" or "REPLAY 2x"
	Latency time.Duration // Zero hides the ping readout
	Paused  bool
	Hint    string // Bottom line key hints
}

// Options configures a Renderer.
type Options struct {
	Styles     Styles
	Rand       *rand.Rand
	ViewWidth  float64
	ViewHeight float64
}

// Renderer draws snapshots and keeps the visual effect state.
type Renderer struct {
	canvas *draw.Canvas
	text   *draw.ChunkWriter
	styles Styles
	rng    *rand.Rand

	viewW, viewH   float64
	worldW, worldH float64
	camera         Camera

	particles []Particle
	explosion *Explosion
	crashed   map[string]bool // One-shot crash flags per craft key

	elapsed float64 // Seconds since the renderer was created, drives pulses and flashing
	status  Status
}

// New creates a renderer drawing shapes on surface and text through text.
func New(surface *draw.Canvas, text *draw.ChunkWriter, opts Options) *Renderer {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.ViewWidth <= 0 {
		opts.ViewWidth = config.ViewWidth
	}
	if opts.ViewHeight <= 0 {
		opts.ViewHeight = config.ViewHeight
	}
	r := &Renderer{
		canvas:  surface,
		text:    text,
		styles:  opts.Styles,
		rng:     opts.Rand,
		viewW:   opts.ViewWidth,
		viewH:   opts.ViewHeight,
		crashed: make(map[string]bool),
	}
	r.worldW, r.worldH = (*protocol.Terrain)(nil).Size()
	return r
}

// SetStatus replaces the mode information shown by the HUD.
func (r *Renderer) SetStatus(s Status) {
	r.status = s
}

// Camera returns the current viewport origin.
func (r *Renderer) Camera() Camera {
	return r.camera
}

// Particles returns the number of live particles.
func (r *Renderer) Particles() int {
	return len(r.particles)
}

// Reset clears particles, the explosion and every one-shot crash flag.
// Called at the start of each session, never mid-session.
func (r *Renderer) Reset() {
	r.particles = r.particles[:0]
	r.explosion = nil
	clear(r.crashed)
	r.camera = Camera{}
	r.status = Status{}
}

// Render performs one full redraw of snap. thrusting is the local transient
// thrust flag and dt the seconds since the previous frame. The canvas and
// HUD text are queued on the ChunkWriter; the caller flushes.
func (r *Renderer) Render(snap state.Snapshot, thrusting bool, dt float64) error {
	r.elapsed += dt
	r.canvas.Clear()
	r.worldW, r.worldH = snap.Terrain.Size()

	primary := snap.Primary()
	if primary != nil {
		r.UpdateCamera(primary.X, primary.Y)
	}

	r.UpdateParticles(dt)

	r.drawTerrain(snap.Terrain, primary)
	r.drawParticles()
	r.drawExplosionFlash()

	var labels []label
	switch {
	case snap.Players != nil:
		for i, id := range state.SortedPlayerIDs(snap.Players) {
			p := snap.Players[id]
			style := LanderStyle{Key: id, Body: playerColor(p.Color, i)}
			pThrust := p.Thrusting
			if id == snap.PlayerID {
				pThrust = pThrust || thrusting
			} else {
				style.Label = p.Name
				if style.Label == "" {
					style.Label = id
				}
			}
			r.DrawLander(&p.Lander, pThrust, style)
			if style.Label != "" {
				labels = append(labels, label{text: style.Label, x: p.X, y: p.Y})
			}
		}
	case snap.Lander != nil:
		r.DrawLander(snap.Lander, thrusting, LanderStyle{})
	}

	if err := r.canvas.Render(r.text); err != nil {
		return err
	}
	if err := r.canvas.RenderBorder(r.text); err != nil {
		return err
	}
	r.drawZoneLabels(snap.Terrain)
	r.drawLabels(labels)
	r.drawHUD(snap, primary)
	return nil
}

// UpdateCamera centers the viewport on (x, y) and clamps it to the world.
func (r *Renderer) UpdateCamera(x, y float64) {
	r.camera.X = clamp(x-r.viewW/2, 0, math.Max(0, r.worldW-r.viewW))
	r.camera.Y = clamp(y-r.viewH/2, 0, math.Max(0, r.worldH-r.viewH))
}

// DrawLander draws one craft. The first frame it is seen crashed starts the
// explosion; exhaust is emitted only while thrusting with fuel and intact.
func (r *Renderer) DrawLander(l *protocol.Lander, thrusting bool, style LanderStyle) {
	if l == nil {
		return
	}

	if l.Crashed && !r.crashed[style.Key] {
		r.crashed[style.Key] = true
		r.explode(l, style.Key)
	}

	if r.explosion.hidesBody(style.Key) {
		return
	}

	burning := thrusting && l.Fuel > 0 && !l.Crashed
	if burning {
		r.emitExhaust(l)
	}

	body := style.Body
	switch {
	case l.Crashed:
		body = draw.ColorRed
	case l.Landed:
		body = draw.ColorGreen
	case body == draw.ColorNone:
		body = draw.ColorWhite
	}

	sin, cos := math.Sincos(l.Rotation)
	place := func(px, py float64) draw.Point {
		return draw.Point{
			X: l.X - r.camera.X + px*cos - py*sin,
			Y: l.Y - r.camera.Y + px*sin + py*cos,
		}
	}

	hull := r.canvas.BorrowPoints(3)
	hull[0] = place(0, -30)
	hull[1] = place(-10, 0)
	hull[2] = place(10, 0)
	r.canvas.DrawPolygon(hull, true, body)

	if burning {
		flame := r.canvas.BorrowPoints(3)
		flame[0] = place(-5, 0)
		flame[1] = place(0, 6+r.rng.Float64()*3)
		flame[2] = place(5, 0)
		r.canvas.DrawPolygon(flame, true, draw.ColorYellow)
	}
}

// drawTerrain draws the ground profile and pulsing landing zones.
func (r *Renderer) drawTerrain(t *protocol.Terrain, primary *protocol.Lander) {
	if t == nil || len(t.Points) == 0 {
		return
	}

	pts := r.canvas.BorrowPoints(len(t.Points))
	for i, p := range t.Points {
		pts[i] = draw.Point{X: p.X - r.camera.X, Y: p.Y - r.camera.Y}
	}
	r.canvas.DrawPolyline(pts, draw.ColorGray)

	pulse := 0.5 + 0.5*math.Sin(r.elapsed/config.ZonePulsePeriod)
	for _, z := range t.LandingZones {
		distance := 1000.0
		if primary != nil {
			distance = math.Abs(primary.X - z.Center())
		}
		proximity := math.Max(0, 1-distance/config.ZoneProximity)
		intensity := 0.3 + 0.4*pulse + 0.3*proximity

		col := draw.ColorGreen
		switch {
		case intensity > 0.8:
			col = draw.ColorBrightCyan
		case intensity < 0.5:
			col = draw.ColorCyan
		}
		a := draw.Point{X: z.X1 - r.camera.X, Y: z.Y - r.camera.Y}
		b := draw.Point{X: z.X2 - r.camera.X, Y: z.Y - r.camera.Y}
		r.canvas.DrawLine(a, b, col)
		a.Y, b.Y = a.Y-2, b.Y-2
		r.canvas.DrawLine(a, b, col)
	}
}

// playerPalette colors players that did not announce a color.
var playerPalette = []draw.Color{
	draw.ColorBrightCyan,
	draw.ColorMagenta,
	draw.ColorYellow,
	draw.ColorBlue,
	draw.ColorOrange,
}

func playerColor(name string, index int) draw.Color {
	if c, ok := draw.ParseColor(name); ok {
		return c
	}
	return playerPalette[index%len(playerPalette)]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
