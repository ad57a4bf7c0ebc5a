// Package config centralizes all tunable client parameters.
package config

import "time"

// View resolution - the visible viewport in world units.
// Actual rendering scales to fit terminal size.
const (
	ViewWidth  = 600
	ViewHeight = 400
)

// Max render resolution in terminal cells. Larger terminals get a centered
// render area with a border.
const (
	MaxTermWidth  = 200
	MaxTermHeight = 60
)

// Particles
const (
	MaxParticles      = 500
	ExhaustPerFrame   = 3
	ExhaustLife       = 0.3 // Seconds
	DebrisCount       = 50
	DebrisMinLife     = 1.0 // Seconds
	DebrisMaxLife     = 1.5
	ExplosionDuration = 1.5 // Seconds; the lander body is hidden for the first third
	ExplosionFlash    = 0.3 // Seconds the expanding ring is shown
)

// HUD thresholds
const (
	FuelGood         = 300.0
	FuelCaution      = 100.0
	FuelLowWarning   = 200.0
	FuelCapacity     = 1000.0
	SpeedCaution     = 3.0
	SpeedLimit       = 5.0
	AngleCaution     = 0.2 // Radians
	AngleLimit       = 0.3 // Radians, roughly 17 degrees
	WarningAltitude  = 50.0
	FlashFrequency   = 4.0   // Half-periods per second (250ms on, 250ms off)
	ZoneProximity    = 500.0 // World units over which landing zones brighten
	ZonePulsePeriod  = 0.5   // Seconds per radian of the landing-zone pulse
	PlayerNameOffset = 36.0  // World units above a craft where its name is drawn
)

// Replay playback
const (
	ReplayTickRate = 30 // Frames per second at 1x
	ReplayMinSpeed = 0.25
	ReplayMaxSpeed = 4.0
)

// Sessions
const (
	JoinTimeout = 10 * time.Second // Wait for room_created / room_joined
	InitTimeout = 10 * time.Second // Wait for the first init frame after connecting
)

// Inactivity (menus only; a running session never times out)
const (
	InactivityWarnUser       = 90  // Seconds
	InactivityDisconnectUser = 120 // Seconds
)

// Client rendering
const (
	ClientTargetFPS       = 60
	ClientTargetFrameTime = time.Second / ClientTargetFPS
)

// Screens
const (
	GameOverMinDisplay = 1500 * time.Millisecond // Keys are ignored this long after game over
	ListPageSize       = 9                       // Entries selectable with digit keys
	NoticeDuration     = 3 * time.Second
)
