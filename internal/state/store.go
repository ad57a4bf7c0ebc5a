// Package state holds the client's single renderable game snapshot.
//
// The store is owned by the client loop goroutine: every mutation and read
// happens there, so it carries no locks.
package state

import "github.com/tomz197/lander/internal/protocol"

// Snapshot is the merged view of the game world consumed by the renderer.
// Exactly one of Lander and Players is non-nil once either has been received.
type Snapshot struct {
	Terrain        *protocol.Terrain
	Lander         *protocol.Lander
	Players        map[string]protocol.PlayerLander
	PlayerID       string // Key of the local craft inside Players
	Thrusting      bool
	Altitude       float64 // Server-authoritative, never recomputed locally
	Speed          float64
	SpectatorCount *int
}

// Primary returns the locally relevant craft: the single-player lander, the
// local player in multiplayer, or the first player by key when the local id is
// unknown (spectating a multiplayer match).
func (s Snapshot) Primary() *protocol.Lander {
	if s.Lander != nil {
		return s.Lander
	}
	if len(s.Players) == 0 {
		return nil
	}
	if p, ok := s.Players[s.PlayerID]; ok {
		return &p.Lander
	}
	ids := SortedPlayerIDs(s.Players)
	p := s.Players[ids[0]]
	return &p.Lander
}

// Patch is a partial update. Nil fields leave the snapshot untouched.
type Patch struct {
	Terrain        *protocol.Terrain
	Lander         *protocol.Lander
	Players        map[string]protocol.PlayerLander
	PlayerID       *string
	Thrusting      *bool
	Altitude       *float64
	Speed          *float64
	SpectatorCount *int
}

// Listener observes every change with the new and previous snapshot.
type Listener func(newState, oldState Snapshot)

type subscriber struct {
	id int
	fn Listener
}

// Store is the single source of truth for rendering.
type Store struct {
	current     Snapshot
	subscribers []subscriber
	nextID      int
}

// New returns a store holding the initial empty snapshot.
func New() *Store {
	return &Store{}
}

// State returns the current snapshot.
func (s *Store) State() Snapshot {
	return s.current
}

// SetState shallow-merges p into the snapshot and notifies subscribers.
// Supplying Players clears Lander and supplying Lander clears Players.
func (s *Store) SetState(p Patch) {
	old := s.current
	next := old

	if p.Terrain != nil {
		next.Terrain = p.Terrain
	}
	if p.Players != nil {
		next.Players = p.Players
		next.Lander = nil
	}
	if p.Lander != nil {
		next.Lander = p.Lander
		next.Players = nil
	}
	if p.PlayerID != nil {
		next.PlayerID = *p.PlayerID
	}
	if p.Thrusting != nil {
		next.Thrusting = *p.Thrusting
	}
	if p.Altitude != nil {
		next.Altitude = *p.Altitude
	}
	if p.Speed != nil {
		next.Speed = *p.Speed
	}
	if p.SpectatorCount != nil {
		count := *p.SpectatorCount
		next.SpectatorCount = &count
	}

	s.current = next
	s.notify(next, old)
}

// Reset restores the initial snapshot and notifies subscribers.
func (s *Store) Reset() {
	old := s.current
	s.current = Snapshot{}
	s.notify(s.current, old)
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: l})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(newState, oldState Snapshot) {
	// Copy so listeners may unsubscribe while being notified.
	subs := append([]subscriber(nil), s.subscribers...)
	for _, sub := range subs {
		sub.fn(newState, oldState)
	}
}
