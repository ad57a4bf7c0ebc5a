package state

import (
	"sort"

	"github.com/tomz197/lander/internal/protocol"
)

// PatchFromInit builds the patch applied when a session starts.
func PatchFromInit(m *protocol.Init) Patch {
	p := Patch{
		Terrain: m.Terrain,
		Lander:  m.Lander,
		Players: m.Players,
	}
	if m.PlayerID != "" {
		id := m.PlayerID
		p.PlayerID = &id
	}
	return p
}

// PatchFromTelemetry builds the patch for a telemetry frame. Terrain is never
// part of telemetry, so a previously received terrain survives.
func PatchFromTelemetry(m *protocol.Telemetry) Patch {
	altitude, speed, thrusting := m.Altitude, m.Speed, m.Thrusting
	return Patch{
		Lander:         m.Lander,
		Players:        m.Players,
		Altitude:       &altitude,
		Speed:          &speed,
		Thrusting:      &thrusting,
		SpectatorCount: m.SpectatorCount,
	}
}

// PatchFromFrame builds the patch for one replay frame.
func PatchFromFrame(f protocol.ReplayFrame) Patch {
	lander := f.Lander
	altitude, speed, thrusting := f.Altitude, f.Speed, f.Thrusting
	return Patch{
		Lander:    &lander,
		Altitude:  &altitude,
		Speed:     &speed,
		Thrusting: &thrusting,
	}
}

// SortedPlayerIDs returns the keys of players in a stable order.
func SortedPlayerIDs(players map[string]protocol.PlayerLander) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
