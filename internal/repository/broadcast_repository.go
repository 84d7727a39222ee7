package repository

import (
	"errors"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"

	"gorm.io/gorm"
)

// BroadcastRepository manages broadcast messages and recipient rows.
type BroadcastRepository struct {
	db *gorm.DB
}

// NewBroadcastRepository creates a BroadcastRepository.
func NewBroadcastRepository(db *gorm.DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

// CreateWithRecipients inserts the broadcast and one recipient row per
// resolved user in a single transaction.
func (r *BroadcastRepository) CreateWithRecipients(broadcast *model.BroadcastMessage, recipientIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		broadcast.RecipientCount = len(recipientIDs)
		if err := tx.Create(broadcast).Error; err != nil {
			return err
		}
		recipients := make([]*model.BroadcastMessageRecipient, 0, len(recipientIDs))
		for _, userID := range recipientIDs {
			recipients = append(recipients, &model.BroadcastMessageRecipient{
				BroadcastMessageID: broadcast.ID,
				UserID:             userID,
			})
		}
		return tx.CreateInBatches(recipients, 500).Error
	})
}

// GetByID fetches a broadcast.
func (r *BroadcastRepository) GetByID(id uint) (*model.BroadcastMessage, error) {
	var broadcast model.BroadcastMessage
	if err := r.db.First(&broadcast, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("broadcast")
		}
		return nil, err
	}
	return &broadcast, nil
}

// GetRecipient fetches one user's copy of a broadcast.
func (r *BroadcastRepository) GetRecipient(broadcastID, userID uint) (*model.BroadcastMessageRecipient, error) {
	var recipient model.BroadcastMessageRecipient
	err := r.db.
		Where("broadcast_message_id = ? AND user_id = ?", broadcastID, userID).
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("broadcast")
		}
		return nil, err
	}
	return &recipient, nil
}

// MarkRead flips the recipient's read flag and bumps the broadcast's
// aggregate counter in one transaction. Returns false when the recipient
// had already read it (no-op).
func (r *BroadcastRepository) MarkRead(broadcastID, userID uint, at time.Time) (bool, error) {
	marked := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.BroadcastMessageRecipient{}).
			Where("broadcast_message_id = ? AND user_id = ? AND is_read = ?", broadcastID, userID, false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		marked = true
		return tx.Model(&model.BroadcastMessage{}).
			Where("id = ?", broadcastID).
			UpdateColumn("read_count", gorm.Expr("read_count + 1")).Error
	})
	return marked, err
}

// SoftDeleteForUser hides the broadcast from one recipient's inbox.
func (r *BroadcastRepository) SoftDeleteForUser(broadcastID, userID uint, at time.Time) error {
	return r.db.Model(&model.BroadcastMessageRecipient{}).
		Where("broadcast_message_id = ? AND user_id = ?", broadcastID, userID).
		Updates(map[string]interface{}{
			"is_deleted_by_user":  true,
			"deleted_by_user_at":  at,
		}).Error
}

// ListForUser lists broadcasts visible to a recipient, newest first,
// skipping expired and user-deleted ones.
func (r *BroadcastRepository) ListForUser(userID uint, now time.Time, limit, offset int) ([]*model.BroadcastMessage, error) {
	var broadcasts []*model.BroadcastMessage
	err := r.db.
		Joins("JOIN broadcast_message_recipient rec ON rec.broadcast_message_id = broadcast_message.id").
		Where("rec.user_id = ? AND rec.is_deleted_by_user = ?", userID, false).
		Where("broadcast_message.expires_at IS NULL OR broadcast_message.expires_at > ?", now).
		Order("broadcast_message.sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&broadcasts).Error
	return broadcasts, err
}
