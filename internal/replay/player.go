// Package replay plays back recorded sessions frame by frame.
package replay

import (
	"time"

	"github.com/hako/durafmt"

	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Player steps through a recording at config.ReplayTickRate times the speed
// multiplier. It is driven by the client loop and never starts goroutines.
type Player struct {
	rec     *protocol.Recording
	onFrame func(protocol.ReplayFrame)
	onEnd   func()

	cur    int // number of frames applied
	speed  float64
	acc    float64 // Seconds of playback time not yet turned into frames
	paused bool
	ended  bool
}

// NewPlayer creates a player positioned at frame 0. onFrame receives every
// applied frame; onEnd runs once, right after the last frame is applied.
func NewPlayer(rec *protocol.Recording, onFrame func(protocol.ReplayFrame), onEnd func()) *Player {
	if rec == nil {
		rec = &protocol.Recording{}
	}
	return &Player{rec: rec, onFrame: onFrame, onEnd: onEnd, speed: 1}
}

// Tick accumulates dt seconds of wall time and applies the frames that are
// due. It returns the number of frames applied.
func (p *Player) Tick(dt float64) int {
	if p.paused || p.ended {
		return 0
	}
	p.acc += dt * p.speed
	step := 1.0 / config.ReplayTickRate

	n := 0
	for p.acc >= step && !p.ended {
		p.acc -= step
		if p.Advance() {
			n++
		}
	}
	return n
}

// Advance applies the next frame. It returns false when playback already ended.
func (p *Player) Advance() bool {
	if p.ended {
		return false
	}
	if p.cur >= len(p.rec.Frames) {
		p.finish()
		return false
	}

	if p.onFrame != nil {
		p.onFrame(p.rec.Frames[p.cur])
	}
	p.cur++
	if p.cur >= len(p.rec.Frames) {
		p.finish()
	}
	return true
}

func (p *Player) finish() {
	p.ended = true
	p.acc = 0
	if p.onEnd != nil {
		p.onEnd()
	}
}

// SetSpeed sets the playback multiplier, clamped to the supported range.
func (p *Player) SetSpeed(speed float64) {
	p.speed = max(config.ReplayMinSpeed, min(speed, config.ReplayMaxSpeed))
}

// Speed returns the playback multiplier.
func (p *Player) Speed() float64 {
	return p.speed
}

// Faster doubles the speed.
func (p *Player) Faster() {
	p.SetSpeed(p.speed * 2)
}

// Slower halves the speed.
func (p *Player) Slower() {
	p.SetSpeed(p.speed / 2)
}

func (p *Player) Pause()  { p.paused = true }
func (p *Player) Resume() { p.paused = false }

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	return p.paused
}

// TogglePause flips between paused and playing.
func (p *Player) TogglePause() {
	p.paused = !p.paused
}

// Reset starts a fresh playback session at frame 0. The end callback may
// fire again for the new session.
func (p *Player) Reset() {
	p.cur = 0
	p.acc = 0
	p.ended = false
	p.paused = false
}

// Index returns the number of frames applied so far.
func (p *Player) Index() int {
	return p.cur
}

// Len returns the number of frames in the recording.
func (p *Player) Len() int {
	return len(p.rec.Frames)
}

// Done reports whether playback reached the end.
func (p *Player) Done() bool {
	return p.ended
}

// Terrain returns the terrain stored with the recording, if any.
func (p *Player) Terrain() *protocol.Terrain {
	return p.rec.Metadata.Terrain
}

// Elapsed is the recorded time of the current position.
func (p *Player) Elapsed() time.Duration {
	return framesToDuration(p.cur)
}

// Total is the recorded length of the whole session.
func (p *Player) Total() time.Duration {
	return framesToDuration(len(p.rec.Frames))
}

// Progress formats the position as "12 s / 1 m 5 s".
func (p *Player) Progress() string {
	return FormatDuration(p.Elapsed()) + " / " + FormatDuration(p.Total())
}

func framesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / config.ReplayTickRate
}

// FormatDuration renders d with short units, rounded to the second.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0 s"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}
