package game

import "testing"

func TestTallyVotes(t *testing.T) {
	cases := []struct {
		name     string
		votes    map[string]string
		executed string
		tied     bool
	}{
		{"empty", map[string]string{}, "", false},
		{"unanimous", map[string]string{"a": "d", "b": "d", "c": "d"}, "d", false},
		{"majority", map[string]string{"a": "d", "b": "d", "c": "a"}, "d", false},
		{"two way tie", map[string]string{"a": "b", "b": "a"}, "", true},
		{"three way tie", map[string]string{"a": "b", "b": "c", "c": "a"}, "", true},
		{"single vote", map[string]string{"a": "b"}, "b", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			executed, tied := TallyVotes(c.votes)
			if tied != c.tied {
				t.Errorf("expected tied=%v, got %v", c.tied, tied)
			}
			if executed != c.executed {
				t.Errorf("expected executed %q, got %q", c.executed, executed)
			}
		})
	}
}

func TestResolveNight_LastSpyActionWins(t *testing.T) {
	room := testRoom(PhaseNightAction,
		alive("s1", RoleSpy), alive("s2", RoleSpy),
		alive("b", RoleHR), alive("c", RoleGA), alive("d", RoleDrone), alive("e", RoleDrone))
	room.Actions = map[string]string{"s1": "d", "s2": "e", "b": "s1", "c": "b"}
	room.ActionOrder = []string{"s1", "s2", "b", "c"}

	result := ResolveNight(room)
	if len(result.Deaths) != 1 || result.Deaths[0] != "e" {
		t.Fatalf("the later spy submission must be authoritative, got deaths %v", result.Deaths)
	}

	// Re-submitting moves s1 to the end of the order.
	room.Actions["s1"] = "d"
	recordActionOrder(room, "s1")
	result = ResolveNight(room)
	if len(result.Deaths) != 1 || result.Deaths[0] != "d" {
		t.Fatalf("expected d after s1 re-submitted, got %v", result.Deaths)
	}
}

func TestResolveNight_IgnoresDeadActors(t *testing.T) {
	room := testRoom(PhaseNightAction,
		dead("s1", RoleSpy), alive("s2", RoleSpy),
		alive("b", RoleHR), alive("c", RoleGA), alive("d", RoleDrone))
	// A stale action from a since-dead spy must not shadow the living one.
	room.Actions = map[string]string{"s2": "d", "s1": "b", "b": "s2", "c": "b"}
	room.ActionOrder = []string{"s2", "s1", "b", "c"}

	result := ResolveNight(room)
	if len(result.Deaths) != 1 || result.Deaths[0] != "d" {
		t.Fatalf("expected d, got %v", result.Deaths)
	}
}

func TestResolveNight_NoActions(t *testing.T) {
	room := testRoom(PhaseNightAction, alive("a", RoleSpy), alive("b", RoleDrone))
	result := ResolveNight(room)
	if len(result.Deaths) != 0 || len(result.Logs) != 0 {
		t.Fatalf("an empty night must resolve to nothing, got %+v", result)
	}
}

func TestResolveNight_IsDeterministic(t *testing.T) {
	room := testRoom(PhaseNightAction,
		alive("a", RoleSpy), alive("b", RoleHR), alive("c", RoleGA), alive("d", RoleDrone))
	room.Actions = map[string]string{"a": "d", "b": "a", "c": "d"}
	room.ActionOrder = []string{"a", "b", "c"}

	first := ResolveNight(room)
	for i := 0; i < 10; i++ {
		again := ResolveNight(room)
		if len(again.Deaths) != len(first.Deaths) || len(again.Logs) != len(first.Logs) {
			t.Fatal("resolution must be deterministic for a fixed snapshot")
		}
	}
	if len(first.Deaths) != 0 {
		t.Errorf("guarded target must survive, got deaths %v", first.Deaths)
	}
}
