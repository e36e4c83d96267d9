package model

import "time"

// ChatLog is one question or answer exchanged over a page, persisted
// asynchronously by the chat log worker.
type ChatLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_chat_logs_user_url" json:"user_id"`
	URL       string    `gorm:"size:768;not null;index:idx_chat_logs_user_url" json:"url"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
