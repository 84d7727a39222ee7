package repository

import (
	"errors"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"

	"gorm.io/gorm"
)

// MessageRepository manages chat messages and their receipts.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a MessageRepository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message.
func (r *MessageRepository) Create(message *model.ChatMessage) error {
	return r.db.Create(message).Error
}

// GetByID fetches a message.
func (r *MessageRepository) GetByID(id uint) (*model.ChatMessage, error) {
	var message model.ChatMessage
	if err := r.db.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message")
		}
		return nil, err
	}
	return &message, nil
}

// ListByConversation pages through a conversation's messages, newest
// first. Ordering within the conversation is sentAt with id as tiebreak.
func (r *MessageRepository) ListByConversation(conversationID uint, limit, offset int) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

// LatestMessage returns the newest message of a conversation, nil when
// the conversation is empty.
func (r *MessageRepository) LatestMessage(conversationID uint) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// UpdateContent rewrites an edited message's encrypted body and hash.
func (r *MessageRepository) UpdateContent(messageID uint, contentEncrypted, contentHash string, editedAt time.Time) error {
	return r.db.Model(&model.ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content_encrypted": contentEncrypted,
			"content_hash":      contentHash,
			"edited_at":         editedAt,
			"is_edited":         true,
		}).Error
}

// Tombstone soft-deletes a message: metadata and receipts stay, the row is
// flagged and content becomes unreadable to clients.
func (r *MessageRepository) Tombstone(messageID, deletedBy uint, at time.Time) error {
	return r.db.Model(&model.ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"status":     model.MessageDeleted,
			"deleted_at": at,
			"deleted_by": deletedBy,
		}).Error
}

// CountUnreadAfter counts messages a participant has not read: sent after
// the cursor position by someone else. Tombstoned messages render as empty
// placeholders and never count as unread.
func (r *MessageRepository) CountUnreadAfter(conversationID, userID uint, after *time.Time) (int64, error) {
	var count int64
	q := r.db.Model(&model.ChatMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND status <> ?",
			conversationID, userID, model.MessageDeleted)
	if after != nil {
		q = q.Where("sent_at > ?", *after)
	}
	err := q.Count(&count).Error
	return count, err
}

// CreateReadReceipt records a read receipt once per (message, user).
// Returns true when a new receipt was inserted.
func (r *MessageRepository) CreateReadReceipt(messageID, userID uint, at time.Time) (bool, error) {
	var existing model.MessageReadReceipt
	err := r.db.
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	receipt := &model.MessageReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    at,
	}
	if err := r.db.Create(receipt).Error; err != nil {
		return false, err
	}
	return true, nil
}

// CreateDeliveryReceipt records a delivery receipt once per (message, user).
func (r *MessageRepository) CreateDeliveryReceipt(messageID, userID uint, at time.Time) (bool, error) {
	var existing model.MessageDeliveryReceipt
	err := r.db.
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	receipt := &model.MessageDeliveryReceipt{
		MessageID:   messageID,
		UserID:      userID,
		DeliveredAt: at,
	}
	if err := r.db.Create(receipt).Error; err != nil {
		return false, err
	}
	return true, nil
}

// MessagesAfter lists messages sent after the cursor by someone other than
// the reader, oldest first, for receipt backfill on conversation-level
// mark-as-read.
func (r *MessageRepository) MessagesAfter(conversationID, userID uint, after *time.Time) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	q := r.db.
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID)
	if after != nil {
		q = q.Where("sent_at > ?", *after)
	}
	err := q.Order("sent_at ASC, id ASC").Find(&messages).Error
	return messages, err
}
