package model

import "time"

// AdminMessageAccessLog is an append-only audit record written whenever an
// administrator decrypts a conversation. Rows are only ever inserted;
// retention cleanup belongs to an external job.
type AdminMessageAccessLog struct {
	ID             uint      `gorm:"primaryKey"`
	AdminID        uint      `gorm:"not null;index"`
	ConversationID uint      `gorm:"not null;index"`
	Reason         string    `gorm:"type:varchar(255);not null"`
	AccessedAt     time.Time `gorm:"not null;index"`
	ClientIP       string    `gorm:"type:varchar(45)"`
	UserAgent      string    `gorm:"type:varchar(255)"`
	MessageCount   int       `gorm:"not null;default:0"`
}

func (AdminMessageAccessLog) TableName() string { return "admin_message_access_log" }
