package model

import "time"

// MessageStatus is the explicit lifecycle state of a chat message.
// A deleted message is tombstoned: the row, its metadata and its receipts
// stay, only the content becomes unreadable.
type MessageStatus string

const (
	MessageActive  MessageStatus = "active"
	MessageDeleted MessageStatus = "deleted"
)

// ChatMessage belongs to exactly one conversation. The body is stored
// encrypted together with a plaintext integrity hash; plaintext never
// reaches the database.
type ChatMessage struct {
	ID               uint          `gorm:"primaryKey"`
	ConversationID   uint          `gorm:"not null;index:idx_msg_conv_sent"`
	SenderID         uint          `gorm:"not null;index"`
	ContentEncrypted string        `gorm:"type:text;not null"`
	ContentHash      string        `gorm:"type:varchar(64);not null"`
	SentAt           time.Time     `gorm:"not null;index:idx_msg_conv_sent"`
	EditedAt         *time.Time
	IsEdited         bool          `gorm:"default:false"`
	Status           MessageStatus `gorm:"type:varchar(16);not null;default:'active';index"`
	DeletedAt        *time.Time
	DeletedBy        *uint
	ReplyToMessageID *uint `gorm:"index"` // one level, always an earlier message
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ChatMessage) TableName() string { return "chat_message" }

// IsDeleted reports whether the message has been tombstoned.
func (m *ChatMessage) IsDeleted() bool { return m.Status == MessageDeleted }

// MessageReadReceipt records that a user has seen a message. One row per
// (message, user); inserts are idempotent at the service layer.
type MessageReadReceipt struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_read_msg_user"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_read_msg_user;index"`
	ReadAt    time.Time `gorm:"not null"`
}

func (MessageReadReceipt) TableName() string { return "message_read_receipt" }

// MessageDeliveryReceipt records that a message reached a user's client.
type MessageDeliveryReceipt struct {
	ID          uint      `gorm:"primaryKey"`
	MessageID   uint      `gorm:"not null;uniqueIndex:idx_delivery_msg_user"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_delivery_msg_user;index"`
	DeliveredAt time.Time `gorm:"not null"`
}

func (MessageDeliveryReceipt) TableName() string { return "message_delivery_receipt" }
