package model

import (
	"time"

	"gorm.io/gorm"
)

// ConversationType distinguishes direct chats from group-backed ones.
type ConversationType string

const (
	ConversationDirect       ConversationType = "direct"
	ConversationStudentGroup ConversationType = "student_group"
	ConversationCourseGroup  ConversationType = "course_group"
)

// ParticipantRole is a member's role inside a conversation.
type ParticipantRole string

const (
	ParticipantOwner  ParticipantRole = "owner"
	ParticipantAdmin  ParticipantRole = "admin"
	ParticipantMember ParticipantRole = "participant"
)

// ParticipantStatus is the explicit membership state. A left participant
// keeps its row (read cursor included) and may re-join group conversations.
type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "active"
	ParticipantLeft   ParticipantStatus = "left"
)

// Conversation is a container for messages among a bounded participant set.
// A direct conversation has exactly two active participants; group and
// course conversations are capped by MaxParticipants.
type Conversation struct {
	ID              uint             `gorm:"primaryKey"`
	Type            ConversationType `gorm:"type:varchar(32);not null;index"`
	Title           string           `gorm:"type:varchar(128)"`
	CourseID        *uint            `gorm:"index"`
	StudentGroupID  *uint            `gorm:"index"`
	LastMessageID   *uint
	LastMessageAt   *time.Time
	MaxParticipants int    `gorm:"not null;default:2"`
	EncryptionKeyID string `gorm:"type:varchar(36);not null"` // opaque key handle
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string { return "conversation" }

// ConversationParticipant is a user's membership record in a conversation:
// role, read cursor, mute/pin flags and the ephemeral typing state.
type ConversationParticipant struct {
	ID                uint              `gorm:"primaryKey"`
	ConversationID    uint              `gorm:"not null;uniqueIndex:idx_conv_user"`
	UserID            uint              `gorm:"not null;uniqueIndex:idx_conv_user;index"`
	Role              ParticipantRole   `gorm:"type:varchar(32);not null;default:'participant'"`
	Status            ParticipantStatus `gorm:"type:varchar(16);not null;default:'active';index"`
	JoinedAt          time.Time         `gorm:"not null"`
	LeftAt            *time.Time
	LastReadMessageID *uint
	LastReadAt        *time.Time
	IsMuted           bool `gorm:"default:false"`
	IsPinned          bool `gorm:"default:false"`
	IsTyping          bool `gorm:"default:false"`
	LastTypingAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ConversationParticipant) TableName() string { return "conversation_participant" }

// IsActive reports whether the participant currently belongs to the
// conversation.
func (p *ConversationParticipant) IsActive() bool {
	return p.Status == ParticipantActive
}

// TypingActive reports whether the typing flag is still live at the given
// instant. Staleness is a reader-side lease; nothing expires the flag on
// the write path.
func (p *ConversationParticipant) TypingActive(now time.Time, lease time.Duration) bool {
	if !p.IsTyping || p.LastTypingAt == nil {
		return false
	}
	return now.Sub(*p.LastTypingAt) <= lease
}
