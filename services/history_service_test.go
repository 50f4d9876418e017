package services

import (
	"context"
	"testing"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/persistence"
)

func finishedRoom() *game.Room {
	return &game.Room{
		ID: "AB12",
		Players: map[string]*game.Player{
			"a": {ID: "a", Name: "Alice", Role: game.RoleSpy, IsAlive: false},
			"b": {ID: "b", Name: "Bob", Role: game.RoleHR, IsAlive: true},
			"c": {ID: "c", Name: "Carol", Role: game.RoleGA, IsAlive: true},
			"d": {ID: "d", Name: "Dave", Role: game.RoleDrone, IsAlive: true},
		},
		Phase:    game.PhaseGameOver,
		DayCount: 2,
		Winner:   game.WinnerCompany,
	}
}

func TestRecordFinishedGame(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewHistoryService(db)

	if err := svc.RecordFinishedGame(ctx, finishedRoom()); err != nil {
		t.Fatalf("RecordFinishedGame failed: %v", err)
	}

	stats, err := svc.GetPlayerStats(ctx, "b")
	if err != nil {
		t.Fatalf("GetPlayerStats failed: %v", err)
	}
	if stats.TotalGames != 1 || stats.Wins != 1 {
		t.Errorf("expected the seer to have 1 win in 1 game, got %+v", stats)
	}

	stats, _ = svc.GetPlayerStats(ctx, "a")
	if stats.TotalGames != 1 || stats.Wins != 0 {
		t.Errorf("expected the spy to have 0 wins in 1 game, got %+v", stats)
	}
}

func TestRecordFinishedGame_RejectsRunningRoom(t *testing.T) {
	svc := NewHistoryService(persistence.NewMemory())
	room := finishedRoom()
	room.Phase = game.PhaseNightAction
	room.Winner = game.WinnerNone

	if err := svc.RecordFinishedGame(context.Background(), room); err == nil {
		t.Fatal("an unfinished room must not be archived")
	}
}

func TestGetPlayerStats_RequiresID(t *testing.T) {
	svc := NewHistoryService(persistence.NewMemory())
	if _, err := svc.GetPlayerStats(context.Background(), ""); err == nil {
		t.Fatal("an empty player id must be rejected")
	}
}
