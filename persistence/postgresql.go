// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/jinroserver/game"
)

// PostgreSQL is the plain database/sql implementation of Database, for
// deployments that prefer hand-written SQL over GORM.
type PostgreSQL struct {
	db *sql.DB

	// OnConflictRetry, when set, is invoked once per lost version race.
	OnConflictRetry func()
}

// SetOnConflictRetry implements ConflictReporter.
func (p *PostgreSQL) SetOnConflictRetry(fn func()) {
	p.OnConflictRetry = fn
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接.
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构.
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            room_id TEXT UNIQUE NOT NULL,
            phase TEXT NOT NULL,
            version BIGINT NOT NULL,
            document JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id TEXT NOT NULL,
            winner TEXT NOT NULL,
            day_count INT NOT NULL,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_rooms_phase ON rooms (phase)`)
	return err
}

// CreateRoom stores a new room document.
func (p *PostgreSQL) CreateRoom(ctx context.Context, room *game.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return err
	}

	result, err := p.db.ExecContext(ctx, `
        INSERT INTO rooms (room_id, phase, version, document)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (room_id) DO NOTHING`,
		room.ID, string(room.Phase), doc)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRoomExists
	}
	return nil
}

// GetRoom returns a snapshot of the room document.
func (p *PostgreSQL) GetRoom(ctx context.Context, id string) (*game.Room, error) {
	room, _, err := p.load(ctx, id)
	return room, err
}

func (p *PostgreSQL) load(ctx context.Context, id string) (*game.Room, int64, error) {
	var version int64
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT version, document FROM rooms WHERE room_id = $1`, id,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrRoomNotFound
		}
		return nil, 0, err
	}

	var room game.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, 0, fmt.Errorf("decode room document %s: %w", id, err)
	}
	return &room, version, nil
}

// UpdateRoom applies mutate inside an optimistic read-compute-write cycle.
func (p *PostgreSQL) UpdateRoom(ctx context.Context, id string, mutate func(*game.Room) error) (*game.Room, error) {
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		room, version, err := p.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := mutate(room); err != nil {
			if errors.Is(err, game.ErrNoChange) {
				return room, err
			}
			return nil, err
		}

		doc, err := json.Marshal(room)
		if err != nil {
			return nil, err
		}

		result, err := p.db.ExecContext(ctx, `
            UPDATE rooms
            SET phase = $1, version = $2, document = $3, updated_at = CURRENT_TIMESTAMP
            WHERE room_id = $4 AND version = $5`,
			string(room.Phase), version+1, doc, id, version)
		if err != nil {
			return nil, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			return room, nil
		}
		if p.OnConflictRetry != nil {
			p.OnConflictRetry()
		}
	}
	return nil, ErrTooMuchContention
}

// ListActiveRooms returns every room that has not finished.
func (p *PostgreSQL) ListActiveRooms(ctx context.Context) ([]*game.Room, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT room_id, document FROM rooms WHERE phase <> $1`,
		string(game.PhaseGameOver))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*game.Room
	for rows.Next() {
		var roomID string
		var doc []byte
		if err := rows.Scan(&roomID, &doc); err != nil {
			return nil, err
		}
		var room game.Room
		if err := json.Unmarshal(doc, &room); err != nil {
			return nil, fmt.Errorf("decode room document %s: %w", roomID, err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// SaveGameRecord 保存对局记录.
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO game_records (room_id, winner, day_count, players)
        VALUES ($1, $2, $3, $4)`,
		record.RoomID, string(record.Winner), record.DayCount, players)
	return err
}

// PlayerStats 查询玩家统计.
func (p *PostgreSQL) PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	stats := &PlayerStats{}

	err := p.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE players @> $1::jsonb)
        FROM game_records
        WHERE players @> $2::jsonb`,
		fmt.Sprintf(`[{"id":%q,"won":true}]`, playerID),
		fmt.Sprintf(`[{"id":%q}]`, playerID),
	).Scan(&stats.TotalGames, &stats.Wins)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close 关闭数据库连接.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
