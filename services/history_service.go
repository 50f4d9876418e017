// services/history_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/persistence"
)

// HistoryService archives finished games and serves player win/loss stats.
type HistoryService struct {
	db persistence.HistoryStore
}

func NewHistoryService(db persistence.HistoryStore) *HistoryService {
	return &HistoryService{db: db}
}

// RecordFinishedGame archives the outcome of a room that reached GAME_OVER.
func (s *HistoryService) RecordFinishedGame(ctx context.Context, room *game.Room) error {
	if room.Phase != game.PhaseGameOver {
		return fmt.Errorf("room %s has not finished", room.ID)
	}
	record := persistence.NewGameRecord(room, time.Now())
	return s.db.SaveGameRecord(ctx, record)
}

// GetPlayerStats 获取玩家统计.
func (s *HistoryService) GetPlayerStats(ctx context.Context, playerID string) (*persistence.PlayerStats, error) {
	if playerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	return s.db.PlayerStats(ctx, playerID)
}
