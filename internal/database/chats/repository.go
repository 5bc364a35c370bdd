// Package chats stores chatbot sessions and their messages.
//
// The chatbot itself lives outside this module; sessions are kept here so
// that they survive a database replacement.
package chats

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lingoplay/core/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession stores a new session together with any messages it holds.
func (r *Repository) CreateSession(session *entities.ChatSession) error {
	return entities.Unavailable("create chat session", r.db.Create(session).Error)
}

// AddMessage appends a message to a session and bumps the session's
// updated_at.
func (r *Repository) AddMessage(sessionID uint, role entities.ChatRole, content string) (*entities.ChatMessage, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown chat role %q", role)
	}

	message := &entities.ChatMessage{SessionID: sessionID, Role: role, Content: content}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&entities.ChatSession{}).
			Where("id = ?", sessionID).
			Update("updated_at", message.CreatedAt).Error
	})
	if err != nil {
		return nil, entities.Unavailable("add chat message", err)
	}
	return message, nil
}

// GetSession returns a session with its messages in chronological order,
// or nil when it does not exist.
func (r *Repository) GetSession(sessionID uint) (*entities.ChatSession, error) {
	var session entities.ChatSession
	err := r.db.Preload("Messages", orderMessages).First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Unavailable("get chat session", err)
	}
	return &session, nil
}

// ListSessions returns a user's sessions, most recently updated first,
// without messages.
func (r *Repository) ListSessions(userID uint) ([]entities.ChatSession, error) {
	sessions := []entities.ChatSession{}
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, entities.Unavailable("list chat sessions", err)
	}
	return sessions, nil
}

// ListAllWithMessages returns every session of every user with messages.
func (r *Repository) ListAllWithMessages() ([]entities.ChatSession, error) {
	sessions := []entities.ChatSession{}
	err := r.db.Preload("Messages", orderMessages).Order("id ASC").Find(&sessions).Error
	if err != nil {
		return nil, entities.Unavailable("list all chat sessions", err)
	}
	return sessions, nil
}

// CountMessages returns the total number of messages across a user's
// sessions.
func (r *Repository) CountMessages(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.ChatMessage{}).
		Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
		Where("chat_sessions.user_id = ?", userID).
		Count(&count).Error
	return count, entities.Unavailable("count chat messages", err)
}

// DeleteSession removes a session and its messages.
func (r *Repository) DeleteSession(sessionID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&entities.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.ChatSession{}, sessionID).Error
	})
	return entities.Unavailable("delete chat session", err)
}

// Restore writes sessions and messages verbatim, keyed by primary key.
// Rows that already exist are overwritten, so restoring twice is safe.
func (r *Repository) Restore(sessions []entities.ChatSession) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, s := range sessions {
			messages := s.Messages
			s.Messages = nil
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error; err != nil {
				return err
			}
			for _, m := range messages {
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return entities.Unavailable("restore chat sessions", err)
}

func orderMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}
