package repository

import (
	"school-messaging/internal/model"

	"gorm.io/gorm"
)

// AuditRepository appends admin access records. Rows are never updated or
// deleted here; retention is an external concern.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an access record.
func (r *AuditRepository) Create(entry *model.AdminMessageAccessLog) error {
	return r.db.Create(entry).Error
}

// ListByConversation lists access records for a conversation, newest first.
func (r *AuditRepository) ListByConversation(conversationID uint, limit, offset int) ([]*model.AdminMessageAccessLog, error) {
	var entries []*model.AdminMessageAccessLog
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("accessed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
