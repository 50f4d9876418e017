package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/logger"
	"github.com/wfunc/jinroserver/persistence"
)

func init() {
	logger.InitDevelopment()
}

type recordingBroadcaster struct {
	mutex sync.Mutex
	rooms []*game.Room
}

func (b *recordingBroadcaster) BroadcastRoom(room *game.Room) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.rooms = append(b.rooms, room)
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.rooms)
}

func conversationRoom(id string, deadline time.Time) *game.Room {
	return &game.Room{
		ID:     id,
		HostID: "a",
		Players: map[string]*game.Player{
			"a": {ID: "a", Name: "Alice", Role: game.RoleSpy, IsAlive: true, IsHost: true},
			"b": {ID: "b", Name: "Bob", Role: game.RoleHR, IsAlive: true},
			"c": {ID: "c", Name: "Carol", Role: game.RoleGA, IsAlive: true},
			"d": {ID: "d", Name: "Dave", Role: game.RoleDrone, IsAlive: true},
		},
		Phase:         game.PhaseDayConversation,
		DayCount:      1,
		PhaseDeadline: deadline,
		Votes:         map[string]string{},
		Actions:       map[string]string{},
	}
}

func testClock(at time.Time) *game.Engine {
	e := game.NewEngine()
	e.Now = func() time.Time { return at }
	return e
}

func TestExpire_AdvancesPastDeadline(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	store := persistence.NewMemory()
	store.CreateRoom(ctx, conversationRoom("AB12", now.Add(-time.Second)))

	caster := &recordingBroadcaster{}
	s := New(store, testClock(now), caster, time.Second)

	s.Expire(ctx, "AB12")

	room, _ := store.GetRoom(ctx, "AB12")
	if room.Phase != game.PhaseDayVote {
		t.Fatalf("expected DAY_VOTE, got %s", room.Phase)
	}
	if caster.count() != 1 {
		t.Errorf("expected 1 broadcast, got %d", caster.count())
	}
}

func TestExpire_ReschedulesFutureDeadline(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)

	store := persistence.NewMemory()
	store.CreateRoom(ctx, conversationRoom("AB12", future))

	caster := &recordingBroadcaster{}
	s := New(store, testClock(now), caster, time.Second)

	s.Expire(ctx, "AB12")

	room, _ := store.GetRoom(ctx, "AB12")
	if room.Phase != game.PhaseDayConversation {
		t.Fatalf("a future deadline must not advance the phase, got %s", room.Phase)
	}
	if caster.count() != 0 {
		t.Errorf("a no-op sweep must not broadcast, got %d", caster.count())
	}

	s.mutex.Lock()
	entry, known := s.selected["AB12"]
	s.mutex.Unlock()
	if !known || !entry.At.Equal(future) {
		t.Error("the room should stay scheduled at its stored deadline")
	}
}

func TestExpire_LostRaceIsSilent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	store := persistence.NewMemory()
	room := conversationRoom("AB12", now.Add(-time.Second))
	room.Phase = game.PhaseDayVote // the host already advanced it
	store.CreateRoom(ctx, room)

	caster := &recordingBroadcaster{}
	s := New(store, testClock(now), caster, time.Second)

	s.Expire(ctx, "AB12")

	stored, _ := store.GetRoom(ctx, "AB12")
	if stored.Phase != game.PhaseDayVote {
		t.Fatalf("sweeping an advanced room must change nothing, got %s", stored.Phase)
	}
	if caster.count() != 0 {
		t.Errorf("a lost race must not broadcast, got %d", caster.count())
	}
	s.mutex.Lock()
	_, known := s.selected["AB12"]
	s.mutex.Unlock()
	if known {
		t.Error("a non-conversation room must not be rescheduled")
	}
}

func TestExpire_MissingRoom(t *testing.T) {
	ctx := context.Background()
	caster := &recordingBroadcaster{}
	s := New(persistence.NewMemory(), game.NewEngine(), caster, time.Second)

	s.Expire(ctx, "GONE")
	if caster.count() != 0 {
		t.Errorf("a missing room must not broadcast, got %d", caster.count())
	}
}

func TestSchedule(t *testing.T) {
	s := New(persistence.NewMemory(), game.NewEngine(), &recordingBroadcaster{}, time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Schedule("BBBB", base.Add(2*time.Minute))
	s.Schedule("AAAA", base.Add(time.Minute))
	s.Schedule("CCCC", base.Add(3*time.Minute))
	if s.queue.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.queue.Len())
	}
	if s.queue[0].RoomID != "AAAA" {
		t.Errorf("expected AAAA at the head, got %s", s.queue[0].RoomID)
	}

	// Moving an existing entry re-sorts the heap.
	s.Schedule("AAAA", base.Add(10*time.Minute))
	if s.queue.Len() != 3 {
		t.Fatalf("rescheduling must not duplicate, got %d entries", s.queue.Len())
	}
	if s.queue[0].RoomID != "BBBB" {
		t.Errorf("expected BBBB at the head after reschedule, got %s", s.queue[0].RoomID)
	}

	// A zero time removes the entry.
	s.Schedule("BBBB", time.Time{})
	if s.queue.Len() != 2 {
		t.Fatalf("expected 2 entries after removal, got %d", s.queue.Len())
	}
	if _, known := s.selected["BBBB"]; known {
		t.Error("BBBB should have been removed")
	}
	s.Schedule("GONE", time.Time{}) // removing an unknown room is a no-op
}

func TestReconcile_PicksUpPersistedRooms(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	store := persistence.NewMemory()
	store.CreateRoom(ctx, conversationRoom("AAAA", now.Add(time.Minute)))

	lobby := conversationRoom("BBBB", time.Time{})
	lobby.Phase = game.PhaseLobby
	store.CreateRoom(ctx, lobby)

	s := New(store, testClock(now), &recordingBroadcaster{}, time.Second)
	s.Reconcile(ctx)

	if _, known := s.selected["AAAA"]; !known {
		t.Error("the persisted conversation should be scheduled")
	}
	if _, known := s.selected["BBBB"]; known {
		t.Error("a lobby room must not be scheduled")
	}

	// A second scan must not duplicate entries.
	s.Reconcile(ctx)
	if s.queue.Len() != 1 {
		t.Errorf("expected 1 entry after rescan, got %d", s.queue.Len())
	}
}

func TestStartStop(t *testing.T) {
	s := New(persistence.NewMemory(), game.NewEngine(), &recordingBroadcaster{}, 10*time.Millisecond)
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent
}
