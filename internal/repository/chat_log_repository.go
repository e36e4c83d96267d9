package repository

import (
	"fmt"

	"gorm.io/gorm"

	"webrecall/internal/model"
)

type ChatLogRepository struct {
	db *gorm.DB
}

func NewChatLogRepository(db *gorm.DB) *ChatLogRepository {
	return &ChatLogRepository{db: db}
}

func (r *ChatLogRepository) Create(entry *model.ChatLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create chat log failed: %w", err)
	}
	return nil
}

func (r *ChatLogRepository) ListByUserAndURL(userID uint, url string, limit int) ([]model.ChatLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var logs []model.ChatLog
	if err := r.db.Where("user_id = ? AND url = ?", userID, url).Order("created_at ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list chat logs failed: %w", err)
	}
	return logs, nil
}
