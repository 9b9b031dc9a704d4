package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/colloquyhq/colloquy/types"
)

// sessionRecord is the GORM model for a stored session. History and
// config travel as JSON blobs; the listing columns are first class so
// summaries never deserialize full transcripts.
type sessionRecord struct {
	ID           string `gorm:"primaryKey"`
	Topic        string
	Status       string
	MessageCount int
	CreatedAt    time.Time `gorm:"index"`
	Snapshot     []byte
}

func (sessionRecord) TableName() string { return "sessions" }

// SQLiteStore persists session snapshots in a SQLite database via GORM.
// The pure-Go driver keeps the binary CGO-free.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates
// the schema. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements ConversationStore.
func (s *SQLiteStore) Save(ctx context.Context, snap *types.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	rec := sessionRecord{
		ID:           snap.ID,
		Topic:        snap.Topic,
		Status:       string(snap.Status),
		MessageCount: len(snap.History),
		CreatedAt:    snap.CreatedAt,
		Snapshot:     data,
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

// Load implements ConversationStore.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*types.SessionSnapshot, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap types.SessionSnapshot
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// ListSummaries implements ConversationStore.
func (s *SQLiteStore) ListSummaries(ctx context.Context) ([]types.SessionSummary, error) {
	var recs []sessionRecord
	err := s.db.WithContext(ctx).
		Select("id", "topic", "status", "message_count", "created_at").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, types.SessionSummary{
			ID:           rec.ID,
			Topic:        rec.Topic,
			Status:       types.SessionStatus(rec.Status),
			MessageCount: rec.MessageCount,
			CreatedAt:    rec.CreatedAt,
		})
	}
	return out, nil
}

// Delete implements ConversationStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id).Error
}

// Close implements ConversationStore.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
