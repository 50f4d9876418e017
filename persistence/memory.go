// persistence/memory.go
package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/wfunc/jinroserver/game"
)

// versionedRoom pairs a room snapshot with its commit version.
type versionedRoom struct {
	room    *game.Room
	version int64
}

// Memory is an in-memory Database used by tests and standalone mode. It
// honors the same optimistic-concurrency contract as the PostgreSQL
// implementations: a commit only lands if the document version is unchanged
// since the snapshot was read, otherwise the cycle retries.
type Memory struct {
	mutex   sync.RWMutex
	rooms   map[string]versionedRoom
	records []*GameRecord

	// OnConflictRetry, when set, is invoked once per lost version race.
	OnConflictRetry func()
}

// SetOnConflictRetry implements ConflictReporter.
func (m *Memory) SetOnConflictRetry(fn func()) {
	m.OnConflictRetry = fn
}

// NewMemory creates an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]versionedRoom),
	}
}

// CreateRoom stores a new room document.
func (m *Memory) CreateRoom(ctx context.Context, room *game.Room) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	m.rooms[room.ID] = versionedRoom{room: room.Clone(), version: 1}
	return nil
}

// GetRoom returns a snapshot of the room.
func (m *Memory) GetRoom(ctx context.Context, id string) (*game.Room, error) {
	room, _, err := m.snapshot(id)
	return room, err
}

func (m *Memory) snapshot(id string) (*game.Room, int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stored, exists := m.rooms[id]
	if !exists {
		return nil, 0, ErrRoomNotFound
	}
	return stored.room.Clone(), stored.version, nil
}

// UpdateRoom applies mutate inside an optimistic read-compute-write cycle.
func (m *Memory) UpdateRoom(ctx context.Context, id string, mutate func(*game.Room) error) (*game.Room, error) {
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		room, version, err := m.snapshot(id)
		if err != nil {
			return nil, err
		}

		if err := mutate(room); err != nil {
			if errors.Is(err, game.ErrNoChange) {
				return room, err
			}
			return nil, err
		}

		m.mutex.Lock()
		stored, exists := m.rooms[id]
		if !exists {
			m.mutex.Unlock()
			return nil, ErrRoomNotFound
		}
		if stored.version != version {
			m.mutex.Unlock()
			if m.OnConflictRetry != nil {
				m.OnConflictRetry()
			}
			continue
		}
		m.rooms[id] = versionedRoom{room: room.Clone(), version: version + 1}
		m.mutex.Unlock()
		return room, nil
	}
	return nil, ErrTooMuchContention
}

// ListActiveRooms returns every room that has not finished.
func (m *Memory) ListActiveRooms(ctx context.Context) ([]*game.Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []*game.Room
	for _, stored := range m.rooms {
		if stored.room.Phase != game.PhaseGameOver {
			out = append(out, stored.room.Clone())
		}
	}
	return out, nil
}

// SaveGameRecord archives a finished game.
func (m *Memory) SaveGameRecord(ctx context.Context, record *GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, record)
	return nil
}

// PlayerStats tallies archived games for one player.
func (m *Memory) PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &PlayerStats{}
	for _, record := range m.records {
		for _, p := range record.Players {
			if p.ID != playerID {
				continue
			}
			stats.TotalGames++
			if p.Won {
				stats.Wins++
			}
		}
	}
	return stats, nil
}

// Close implements Database.
func (m *Memory) Close() error {
	return nil
}
