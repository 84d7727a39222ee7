package model

import "time"

// BroadcastPriority orders administrative notices in client inboxes.
type BroadcastPriority string

const (
	BroadcastPriorityLow    BroadcastPriority = "low"
	BroadcastPriorityNormal BroadcastPriority = "normal"
	BroadcastPriorityHigh   BroadcastPriority = "high"
)

// BroadcastMessage is a single authored notice fanned out to many
// independent recipient rows. The audience is stored as an explicit
// role-tag set (see RoleSet); content is encrypted once.
type BroadcastMessage struct {
	ID               uint              `gorm:"primaryKey"`
	SenderID         uint              `gorm:"not null;index"`
	TargetAudience   string            `gorm:"type:varchar(128);not null"` // comma-joined RoleSet, or "all", empty for direct
	Title            string            `gorm:"type:varchar(128);not null"`
	ContentEncrypted string            `gorm:"type:text;not null"`
	ContentHash      string            `gorm:"type:varchar(64);not null"`
	Priority         BroadcastPriority `gorm:"type:varchar(16);not null;default:'normal'"`
	SentAt           time.Time         `gorm:"not null;index"`
	ExpiresAt        *time.Time
	RecipientCount   int `gorm:"not null;default:0"`
	ReadCount        int `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BroadcastMessage) TableName() string { return "broadcast_message" }

// Audience returns the parsed role-tag set.
func (b *BroadcastMessage) Audience() RoleSet { return ParseRoleSet(b.TargetAudience) }

// BroadcastMessageRecipient is one user's copy of a broadcast: read state
// plus a per-user soft delete that hides the notice without touching the
// broadcast itself.
type BroadcastMessageRecipient struct {
	ID                 uint `gorm:"primaryKey"`
	BroadcastMessageID uint `gorm:"not null;uniqueIndex:idx_bcast_user"`
	UserID             uint `gorm:"not null;uniqueIndex:idx_bcast_user;index"`
	IsRead             bool `gorm:"default:false"`
	ReadAt             *time.Time
	IsDeletedByUser    bool `gorm:"default:false"`
	DeletedByUserAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (BroadcastMessageRecipient) TableName() string { return "broadcast_message_recipient" }
