// Package history persists chat sessions and their messages in a local
// SQLite database.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// DefaultTitle is assigned to sessions created without one.
const DefaultTitle = "New Chat"

// Store persists chat sessions and their messages in a local SQLite file.
// The sidebar orders sessions by UpdatedAt, which every message bumps.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ schemas.HistoryStore = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&schemas.Session{}, &schemas.StoredMessage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	log := logger.Named("History")
	log.Debug("History database ready.", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// CreateSession creates a new chat session. An empty title falls back to
// DefaultTitle.
func (s *Store) CreateSession(ctx context.Context, title string) (*schemas.Session, error) {
	if title == "" {
		title = DefaultTitle
	}
	session := schemas.Session{ID: uuid.NewString(), Title: title}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// UpdateSessionTitle renames a session.
func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	res := s.db.WithContext(ctx).
		Model(&schemas.Session{}).
		Where("id = ?", sessionID).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("failed to update session title: %w", res.Error)
	}
	return nil
}

// AddMessage appends a message to a session and bumps the session's
// recency in the same transaction.
func (s *Store) AddMessage(ctx context.Context, sessionID string, role schemas.Role, content string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg := schemas.StoredMessage{SessionID: sessionID, Role: role, Content: content, CreatedAt: now}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&schemas.Session{}).Where("id = ?", sessionID).Update("updated_at", now).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// GetSessions lists all sessions, most recently active first.
func (s *Store) GetSessions(ctx context.Context) ([]schemas.Session, error) {
	var sessions []schemas.Session
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetMessages returns a session's messages in conversation order. Message
// IDs are monotonic, so ordering by ID reproduces the conversation.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]schemas.StoredMessage, error) {
	var messages []schemas.StoredMessage
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// DeleteSession removes a session and all of its messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&schemas.StoredMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&schemas.Session{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.log.Debug("Deleted chat session.", zap.String("session_id", sessionID))
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DeriveTitle shortens a first user message into a sidebar title.
func DeriveTitle(firstMessage string) string {
	const max = 30
	runes := []rune(firstMessage)
	if len(runes) <= max {
		return firstMessage
	}
	return string(runes[:max]) + "..."
}
