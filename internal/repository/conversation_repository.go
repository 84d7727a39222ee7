package repository

import (
	"errors"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"

	"gorm.io/gorm"
)

// ConversationRepository manages conversations and their participants.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a ConversationRepository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetByID fetches a conversation.
func (r *ConversationRepository) GetByID(id uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("conversation")
		}
		return nil, err
	}
	return &conv, nil
}

// CreateWithParticipants inserts a conversation and its initial
// participants in one transaction.
func (r *ConversationRepository) CreateWithParticipants(conv *model.Conversation, participants []*model.ConversationParticipant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			p.ConversationID = conv.ID
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindDirectBetween looks for an existing direct conversation whose two
// active participants are exactly the given pair.
func (r *ConversationRepository) FindDirectBetween(userA, userB uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Joins("JOIN conversation_participant pa ON pa.conversation_id = conversation.id AND pa.user_id = ? AND pa.status = ?", userA, model.ParticipantActive).
		Joins("JOIN conversation_participant pb ON pb.conversation_id = conversation.id AND pb.user_id = ? AND pb.status = ?", userB, model.ParticipantActive).
		Where("conversation.type = ?", model.ConversationDirect).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// FindByStudentGroup looks for the conversation backing a student group.
func (r *ConversationRepository) FindByStudentGroup(groupID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Where("type = ? AND student_group_id = ?", model.ConversationStudentGroup, groupID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetParticipant fetches a user's membership row regardless of status.
func (r *ConversationRepository) GetParticipant(conversationID, userID uint) (*model.ConversationParticipant, error) {
	var p model.ConversationParticipant
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ActiveParticipants lists the current members of a conversation.
func (r *ConversationRepository) ActiveParticipants(conversationID uint) ([]*model.ConversationParticipant, error) {
	var participants []*model.ConversationParticipant
	err := r.db.
		Where("conversation_id = ? AND status = ?", conversationID, model.ParticipantActive).
		Find(&participants).Error
	return participants, err
}

// CountActiveParticipants counts current members.
func (r *ConversationRepository) CountActiveParticipants(conversationID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND status = ?", conversationID, model.ParticipantActive).
		Count(&count).Error
	return count, err
}

// AddParticipant inserts a membership row.
func (r *ConversationRepository) AddParticipant(p *model.ConversationParticipant) error {
	return r.db.Create(p).Error
}

// Reactivate flips a left participant back to active, keeping the original
// row and read cursor.
func (r *ConversationRepository) Reactivate(participantID uint, role model.ParticipantRole) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"status":  model.ParticipantActive,
			"role":    role,
			"left_at": nil,
		}).Error
}

// MarkLeft soft-leaves a participant.
func (r *ConversationRepository) MarkLeft(participantID uint, at time.Time) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"status":    model.ParticipantLeft,
			"left_at":   at,
			"is_typing": false,
		}).Error
}

// SetLastMessage updates the conversation's last-message cache.
func (r *ConversationRepository) SetLastMessage(conversationID, messageID uint, at time.Time) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"last_message_at": at,
		}).Error
}

// SetTyping writes the typing flag and timestamp.
func (r *ConversationRepository) SetTyping(conversationID, userID uint, typing bool, at time.Time) error {
	updates := map[string]interface{}{"is_typing": typing}
	if typing {
		updates["last_typing_at"] = at
	}
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(updates).Error
}

// AdvanceReadCursor moves the participant's read cursor.
func (r *ConversationRepository) AdvanceReadCursor(participantID, messageID uint, at time.Time) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"last_read_message_id": messageID,
			"last_read_at":         at,
		}).Error
}

// SetMuted toggles per-user muting.
func (r *ConversationRepository) SetMuted(conversationID, userID uint, muted bool) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_muted", muted).Error
}

// SetPinned toggles per-user pinning.
func (r *ConversationRepository) SetPinned(conversationID, userID uint, pinned bool) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_pinned", pinned).Error
}

// ListForUser lists the user's active conversations, pinned first, newest
// activity next.
func (r *ConversationRepository) ListForUser(userID uint) ([]*model.Conversation, error) {
	var conversations []*model.Conversation
	err := r.db.
		Joins("JOIN conversation_participant p ON p.conversation_id = conversation.id").
		Where("p.user_id = ? AND p.status = ?", userID, model.ParticipantActive).
		Order("p.is_pinned DESC, conversation.last_message_at DESC").
		Find(&conversations).Error
	return conversations, err
}
