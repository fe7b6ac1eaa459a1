// Package sqlite implements the history.Store interface using SQLite via GORM.
// Uses modernc.org/sqlite (pure Go, no CGO) through the glebarez/sqlite GORM driver.
// WAL mode is enabled by default for concurrent reads.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jkaninda/zunguka/internal/history"
	"github.com/jkaninda/zunguka/internal/llm"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path.
	JournalMode string // WAL mode by default.
}

// Store implements history.Store backed by SQLite.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	path   string
}

// ConversationModel maps to the "conversations" table.
type ConversationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ConversationModel) TableName() string { return "conversations" }

// MessageModel maps to the "conversation_messages" table.
type MessageModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_convmsg_seq"`
	SeqNum         int       `gorm:"not null;index:idx_convmsg_seq"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text"`
	CreatedAt      time.Time
}

func (MessageModel) TableName() string { return "conversation_messages" }

// Open creates a new SQLite-backed Store and runs migrations.
func Open(cfg Config, slogger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "wal"
	}

	// Build DSN with pragmas.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path, journalMode)

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&ConversationModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	slogger.Info("history store opened", slog.String("path", cfg.Path), slog.String("journal_mode", journalMode))
	return &Store{db: db, logger: slogger, path: cfg.Path}, nil
}

// GetOrCreateConversation returns an existing conversation or creates a new one.
func (s *Store) GetOrCreateConversation(ctx context.Context, convID uuid.UUID) (uuid.UUID, error) {
	var existing ConversationModel
	err := s.db.WithContext(ctx).Where("id = ?", convID).First(&existing).Error

	if err == nil {
		// Touch updated_at.
		s.db.WithContext(ctx).Model(&existing).Update("updated_at", time.Now().UTC())
		return existing.ID, nil
	}

	if err != gorm.ErrRecordNotFound {
		return uuid.Nil, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now().UTC()
	model := ConversationModel{ID: convID, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	return model.ID, nil
}

// AppendMessages atomically appends one or more messages to a conversation.
// Sequence numbers are monotonically assigned starting after the current max.
func (s *Store) AppendMessages(ctx context.Context, convID uuid.UUID, msgs []llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		err := tx.Model(&MessageModel{}).
			Where("conversation_id = ?", convID).
			Select("COALESCE(MAX(seq_num), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("getting max seq_num: %w", err)
		}

		models := make([]MessageModel, 0, len(msgs))
		for i, msg := range msgs {
			models = append(models, MessageModel{
				ID:             uuid.New(),
				ConversationID: convID,
				SeqNum:         maxSeq + i + 1,
				Role:           string(msg.Role),
				Content:        msg.Content,
				CreatedAt:      time.Now().UTC(),
			})
		}

		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("inserting messages: %w", err)
		}

		return nil
	})
}

// LoadHistory returns the most recent messages for a conversation,
// ordered oldest-first (ascending seq_num).
func (s *Store) LoadHistory(ctx context.Context, convID uuid.UUID, maxMessages int) ([]llm.Message, error) {
	if maxMessages <= 0 {
		maxMessages = history.DefaultMaxMessages
	}

	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("seq_num DESC").
		Limit(maxMessages).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}

	// Reverse to oldest-first order.
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}

	msgs := make([]llm.Message, len(models))
	for i, m := range models {
		msgs[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return msgs, nil
}

// DeleteConversation removes all messages and the conversation record.
func (s *Store) DeleteConversation(ctx context.Context, convID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", convID).Delete(&MessageModel{}).Error; err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		if err := tx.Where("id = ?", convID).Delete(&ConversationModel{}).Error; err != nil {
			return fmt.Errorf("deleting conversation: %w", err)
		}
		return nil
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}

// compile-time interface check
var _ history.Store = (*Store)(nil)
