package state

import (
	"reflect"
	"testing"

	"github.com/tomz197/lander/internal/protocol"
)

func ptr[T any](v T) *T { return &v }

func TestSetStateMergesInOrder(t *testing.T) {
	s := New()

	s.SetState(Patch{Altitude: ptr(100.0)})
	s.SetState(Patch{Speed: ptr(4.0)})
	s.SetState(Patch{Altitude: ptr(80.0), Thrusting: ptr(true)})

	got := s.State()
	if got.Altitude != 80 || got.Speed != 4 || !got.Thrusting {
		t.Fatalf("unexpected merge result: %+v", got)
	}
	if got.Terrain != nil || got.Lander != nil || got.Players != nil || got.SpectatorCount != nil {
		t.Fatalf("omitted fields should keep initial values: %+v", got)
	}
}

func TestTerrainSurvivesTelemetry(t *testing.T) {
	s := New()
	terrain := &protocol.Terrain{Points: []protocol.Point{{X: 0, Y: 700}, {X: 1200, Y: 700}}}
	s.SetState(Patch{Terrain: terrain})

	for i := 0; i < 5; i++ {
		s.SetState(PatchFromTelemetry(&protocol.Telemetry{
			Lander:   &protocol.Lander{X: float64(i)},
			Altitude: float64(100 - i),
		}))
	}

	if s.State().Terrain != terrain {
		t.Fatalf("terrain was cleared by a merge that omitted it")
	}
}

func TestLanderAndPlayersMutuallyExclusive(t *testing.T) {
	s := New()

	s.SetState(Patch{Lander: &protocol.Lander{X: 1}})
	s.SetState(PatchFromTelemetry(&protocol.Telemetry{
		Players: map[string]protocol.PlayerLander{"a": {Name: "A"}},
	}))
	if got := s.State(); got.Lander != nil || len(got.Players) != 1 {
		t.Fatalf("players should null lander: %+v", got)
	}

	s.SetState(PatchFromTelemetry(&protocol.Telemetry{Lander: &protocol.Lander{X: 2}}))
	if got := s.State(); got.Players != nil || got.Lander == nil || got.Lander.X != 2 {
		t.Fatalf("lander should null players: %+v", got)
	}
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	s := New()
	var calls []string
	var lastOld, lastNew Snapshot

	s.Subscribe(func(n, o Snapshot) {
		calls = append(calls, "first")
		lastNew, lastOld = n, o
	})
	unsubscribe := s.Subscribe(func(n, o Snapshot) { calls = append(calls, "second") })

	s.SetState(Patch{Speed: ptr(3.0)})
	if !reflect.DeepEqual(calls, []string{"first", "second"}) {
		t.Fatalf("unexpected order: %v", calls)
	}
	if lastOld.Speed != 0 || lastNew.Speed != 3 {
		t.Fatalf("listener got old=%v new=%v", lastOld.Speed, lastNew.Speed)
	}

	unsubscribe()
	unsubscribe()
	calls = nil
	s.SetState(Patch{Speed: ptr(5.0)})
	if !reflect.DeepEqual(calls, []string{"first"}) {
		t.Fatalf("unsubscribed listener still called: %v", calls)
	}
}

func TestResetRestoresInitialSnapshot(t *testing.T) {
	s := New()
	notified := 0
	s.Subscribe(func(n, o Snapshot) { notified++ })

	s.SetState(Patch{
		Terrain:        &protocol.Terrain{},
		Lander:         &protocol.Lander{},
		Thrusting:      ptr(true),
		Altitude:       ptr(5.0),
		Speed:          ptr(1.0),
		SpectatorCount: ptr(2),
	})
	s.Reset()

	if !reflect.DeepEqual(s.State(), Snapshot{}) {
		t.Fatalf("reset left state: %+v", s.State())
	}
	if notified != 2 {
		t.Fatalf("expected 2 notifications, got %d", notified)
	}
}

func TestPrimary(t *testing.T) {
	snap := Snapshot{Players: map[string]protocol.PlayerLander{
		"b": {Lander: protocol.Lander{X: 2}},
		"a": {Lander: protocol.Lander{X: 1}},
	}}
	if got := snap.Primary(); got == nil || got.X != 1 {
		t.Fatalf("expected first player by id, got %+v", got)
	}
	snap.PlayerID = "b"
	if got := snap.Primary(); got == nil || got.X != 2 {
		t.Fatalf("expected local player, got %+v", got)
	}
	if (Snapshot{}).Primary() != nil {
		t.Fatalf("empty snapshot should have no primary lander")
	}
}
