// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/jinroserver/game"
)

// 错误定义
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	// ErrTooMuchContention is returned when an optimistic commit keeps
	// losing the version race past the retry budget.
	ErrTooMuchContention = errors.New("too much contention on room document")
)

// maxCommitRetries bounds the optimistic read-compute-write cycle.
const maxCommitRetries = 5

// RoomStore 房间文档存储 - the transactional document store the engine runs
// against. UpdateRoom implements optimistic concurrency: the mutation sees a
// consistent snapshot and the write only lands if no other commit
// interleaved, otherwise the whole read-compute-write cycle is retried. A
// mutation must therefore be deterministic for a given snapshot.
type RoomStore interface {
	// CreateRoom stores a new room, failing with ErrRoomExists if the id
	// is already taken. Room codes are short and non-unique by
	// construction, so callers retry with a fresh code.
	CreateRoom(ctx context.Context, room *game.Room) error

	// GetRoom returns a snapshot of the room, or ErrRoomNotFound.
	GetRoom(ctx context.Context, id string) (*game.Room, error)

	// UpdateRoom atomically applies mutate to the room and returns the
	// committed document. When mutate returns game.ErrNoChange the
	// current snapshot is returned alongside that error and nothing is
	// written; any other mutate error aborts the commit and leaves the
	// room untouched.
	UpdateRoom(ctx context.Context, id string, mutate func(*game.Room) error) (*game.Room, error)

	// ListActiveRooms returns every room that has not reached GAME_OVER.
	// The deadline sweeper uses this to reconcile expired conversations.
	ListActiveRooms(ctx context.Context) ([]*game.Room, error)

	Close() error
}

// RecordPlayer is one participant row inside a finished-game record.
type RecordPlayer struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role game.Role `json:"role"`
	Won  bool      `json:"won"`
}

// GameRecord 对局记录 - the archived outcome of one finished game.
type GameRecord struct {
	RoomID    string         `json:"room_id"`
	Winner    game.Winner    `json:"winner"`
	DayCount  int            `json:"day_count"`
	Players   []RecordPlayer `json:"players"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerStats 玩家统计.
type PlayerStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
}

// HistoryStore archives finished games and answers per-player stats.
type HistoryStore interface {
	SaveGameRecord(ctx context.Context, record *GameRecord) error
	PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error)
}

// Database bundles the stores a full deployment needs.
type Database interface {
	RoomStore
	HistoryStore
}

// ConflictReporter is implemented by stores that can report lost version
// races, so the server can count optimistic commit retries.
type ConflictReporter interface {
	SetOnConflictRetry(func())
}

// playerWon reports whether the player ended up on the side named by winner.
func playerWon(role game.Role, winner game.Winner) bool {
	switch winner {
	case game.WinnerCompany:
		return role.Team() == game.TeamCompany
	case game.WinnerSpies:
		return role.Team() == game.TeamSpies
	case game.WinnerConsultant:
		return role == game.RoleConsultant
	default:
		return false
	}
}

// NewGameRecord builds the archive row for a finished room.
func NewGameRecord(room *game.Room, now time.Time) *GameRecord {
	record := &GameRecord{
		RoomID:    room.ID,
		Winner:    room.Winner,
		DayCount:  room.DayCount,
		CreatedAt: now,
	}
	for _, id := range room.OrderedPlayerIDs() {
		p := room.Players[id]
		record.Players = append(record.Players, RecordPlayer{
			ID:   p.ID,
			Name: p.Name,
			Role: p.Role,
			Won:  playerWon(p.Role, room.Winner),
		})
	}
	return record
}
