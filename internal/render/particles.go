package render

import (
	"math"

	"github.com/tomz197/lander/internal/draw"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
)

// Particle is a short-lived visual effect. Velocity is in world units per frame.
type Particle struct {
	X, Y    float64
	VX, VY  float64
	Life    float64 // Seconds remaining
	MaxLife float64 // Initial lifetime (for fade calculation)
	Exhaust bool    // Thrust exhaust rather than crash debris
}

// Explosion is the one active crash effect.
type Explosion struct {
	X, Y     float64
	Elapsed  float64
	Duration float64
	Key      string // Craft the explosion belongs to
}

// hidesBody reports whether the exploding craft should not be drawn yet.
func (e *Explosion) hidesBody(key string) bool {
	return e != nil && e.Key == key && e.Elapsed < e.Duration/3
}

// UpdateParticles advances every particle one step, drops the expired ones
// and caps the list at config.MaxParticles by dropping the oldest.
func (r *Renderer) UpdateParticles(dt float64) {
	if r.explosion != nil {
		r.explosion.Elapsed += dt
		if r.explosion.Elapsed > r.explosion.Duration {
			r.explosion = nil
		}
	}

	kept := r.particles[:0]
	for _, p := range r.particles {
		p.X += p.VX
		p.Y += p.VY
		p.Life -= dt
		if p.Life > 0 {
			kept = append(kept, p)
		}
	}
	r.particles = kept

	if excess := len(r.particles) - config.MaxParticles; excess > 0 {
		n := copy(r.particles, r.particles[excess:])
		r.particles = r.particles[:n]
	}
}

// emitExhaust spawns thrust particles opposite the thrust vector (sin r, -cos r).
func (r *Renderer) emitExhaust(l *protocol.Lander) {
	for i := 0; i < config.ExhaustPerFrame; i++ {
		spread := (r.rng.Float64() - 0.5) * 0.3
		speed := 2 + r.rng.Float64()*2
		r.particles = append(r.particles, Particle{
			X:       l.X,
			Y:       l.Y,
			VX:      -math.Sin(l.Rotation)*speed + spread,
			VY:      math.Cos(l.Rotation) * speed,
			Life:    config.ExhaustLife,
			MaxLife: config.ExhaustLife,
			Exhaust: true,
		})
	}
}

// explode starts the crash effect: one explosion and an omnidirectional burst.
func (r *Renderer) explode(l *protocol.Lander, key string) {
	r.explosion = &Explosion{
		X:        l.X,
		Y:        l.Y,
		Duration: config.ExplosionDuration,
		Key:      key,
	}
	for i := 0; i < config.DebrisCount; i++ {
		angle := r.rng.Float64() * 2 * math.Pi
		speed := 3 + r.rng.Float64()*5
		r.particles = append(r.particles, Particle{
			X:       l.X,
			Y:       l.Y,
			VX:      math.Cos(angle) * speed,
			VY:      math.Sin(angle) * speed,
			Life:    config.DebrisMinLife + r.rng.Float64()*(config.DebrisMaxLife-config.DebrisMinLife),
			MaxLife: config.DebrisMaxLife,
		})
	}
}

func (r *Renderer) drawParticles() {
	for _, p := range r.particles {
		frac := p.Life / p.MaxLife
		if frac < 0.1 {
			continue
		}
		var col draw.Color
		switch {
		case frac > 0.66:
			col = draw.ColorYellow
		case frac > 0.33:
			col = draw.ColorOrange
		default:
			col = draw.ColorRed
		}
		if !p.Exhaust && frac > 0.8 {
			col = draw.ColorWhite
		}
		r.canvas.SetFloat(p.X-r.camera.X, p.Y-r.camera.Y, col)
	}
}

// drawExplosionFlash draws the expanding ring at the start of an explosion.
func (r *Renderer) drawExplosionFlash() {
	e := r.explosion
	if e == nil || e.Elapsed >= config.ExplosionFlash {
		return
	}
	progress := e.Elapsed / config.ExplosionFlash
	radius := 30 + progress*50

	const segments = 24
	ring := r.canvas.BorrowPoints(segments)
	for i := range ring {
		a := float64(i) / segments * 2 * math.Pi
		ring[i] = draw.Point{
			X: e.X - r.camera.X + math.Cos(a)*radius,
			Y: e.Y - r.camera.Y + math.Sin(a)*radius,
		}
	}
	r.canvas.DrawPolygon(ring, false, draw.ColorOrange)
}
