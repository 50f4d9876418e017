// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/jinroserver/game"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现.
type GormPostgreSQL struct {
	db *gorm.DB

	// OnConflictRetry, when set, is invoked once per lost version race.
	OnConflictRetry func()
}

// SetOnConflictRetry implements ConflictReporter.
func (p *GormPostgreSQL) SetOnConflictRetry(fn func()) {
	p.OnConflictRetry = fn
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接.
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// RoomModel stores one room document as jsonb plus the columns the store
// queries by: the phase for the active-room sweep and the version for
// optimistic concurrency.
type RoomModel struct {
	ID        uint            `gorm:"primaryKey"`
	RoomID    string          `gorm:"uniqueIndex;not null"`
	Phase     string          `gorm:"index;not null"`
	Version   int64           `gorm:"not null"`
	Document  json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GameRecordModel archives one finished game.
type GameRecordModel struct {
	ID        uint            `gorm:"primaryKey"`
	RoomID    string          `gorm:"index;not null"`
	Winner    string          `gorm:"not null"`
	DayCount  int             `gorm:"not null"`
	Players   json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

// autoMigrate 自动迁移表结构.
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&RoomModel{},
		&GameRecordModel{},
	)
}

// CreateRoom stores a new room document.
func (p *GormPostgreSQL) CreateRoom(ctx context.Context, room *game.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return err
	}

	model := RoomModel{
		RoomID:   room.ID,
		Phase:    string(room.Phase),
		Version:  1,
		Document: doc,
	}
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return err
	}
	return nil
}

// GetRoom returns a snapshot of the room document.
func (p *GormPostgreSQL) GetRoom(ctx context.Context, id string) (*game.Room, error) {
	room, _, err := p.load(ctx, id)
	return room, err
}

func (p *GormPostgreSQL) load(ctx context.Context, id string) (*game.Room, int64, error) {
	var model RoomModel
	if err := p.db.WithContext(ctx).Where("room_id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrRoomNotFound
		}
		return nil, 0, err
	}

	var room game.Room
	if err := json.Unmarshal(model.Document, &room); err != nil {
		return nil, 0, fmt.Errorf("decode room document %s: %w", id, err)
	}
	return &room, model.Version, nil
}

// UpdateRoom applies mutate inside an optimistic read-compute-write cycle.
// The conditional UPDATE on the version column is what makes two racing
// quorum commits resolve exactly once: the loser's write affects zero rows
// and its cycle re-runs against the already-resolved snapshot.
func (p *GormPostgreSQL) UpdateRoom(ctx context.Context, id string, mutate func(*game.Room) error) (*game.Room, error) {
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

		result := p.db.WithContext(ctx).
			Model(&RoomModel{}).
			Where("room_id = ? AND version = ?", id, version).
			Updates(map[string]interface{}{
				"phase":    string(room.Phase),
				"version":  version + 1,
				"document": doc,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			return room, nil
		}
		if p.OnConflictRetry != nil {
			p.OnConflictRetry()
		}
	}
	return nil, ErrTooMuchContention
}

// ListActiveRooms returns every room that has not finished.
func (p *GormPostgreSQL) ListActiveRooms(ctx context.Context) ([]*game.Room, error) {
	var models []RoomModel
	if err := p.db.WithContext(ctx).Where("phase <> ?", string(game.PhaseGameOver)).Find(&models).Error; err != nil {
		return nil, err
	}

	rooms := make([]*game.Room, 0, len(models))
	for _, model := range models {
		var room game.Room
		if err := json.Unmarshal(model.Document, &room); err != nil {
			return nil, fmt.Errorf("decode room document %s: %w", model.RoomID, err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

// SaveGameRecord 保存对局记录.
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	model := GameRecordModel{
		RoomID:   record.RoomID,
		Winner:   string(record.Winner),
		DayCount: record.DayCount,
		Players:  players,
	}
	return p.db.WithContext(ctx).Create(&model).Error
}

// PlayerStats 查询玩家统计.
func (p *GormPostgreSQL) PlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	stats := &PlayerStats{}

	err := p.db.WithContext(ctx).Raw(
		`
        SELECT
            COUNT(*) AS total_games,
            COUNT(*) FILTER (WHERE players @> ?::jsonb) AS wins
        FROM game_record_models
        WHERE players @> ?::jsonb`,
		fmt.Sprintf(`[{"id":%q,"won":true}]`, playerID),
		fmt.Sprintf(`[{"id":%q}]`, playerID),
	).Scan(stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Close 关闭数据库连接.
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
