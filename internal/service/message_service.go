package service

import (
	"strings"
	"time"

	"school-messaging/config"
	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/push"
	"school-messaging/pkg/redis"

	"go.uber.org/zap"
)

// MessageStore is the persistence surface the message workflows need.
// *repository.MessageRepository satisfies it.
type MessageStore interface {
	Create(message *model.ChatMessage) error
	GetByID(id uint) (*model.ChatMessage, error)
	ListByConversation(conversationID uint, limit, offset int) ([]*model.ChatMessage, error)
	LatestMessage(conversationID uint) (*model.ChatMessage, error)
	UpdateContent(messageID uint, contentEncrypted, contentHash string, editedAt time.Time) error
	Tombstone(messageID, deletedBy uint, at time.Time) error
	CountUnreadAfter(conversationID, userID uint, after *time.Time) (int64, error)
	CreateReadReceipt(messageID, userID uint, at time.Time) (bool, error)
	CreateDeliveryReceipt(messageID, userID uint, at time.Time) (bool, error)
	MessagesAfter(conversationID, userID uint, after *time.Time) ([]*model.ChatMessage, error)
}

// DecryptedMessage is a chat message with its body decrypted for the
// reader. Tombstoned messages carry an empty body and the deleted flag.
type DecryptedMessage struct {
	ID               uint       `json:"id"`
	ConversationID   uint       `json:"conversation_id"`
	SenderID         uint       `json:"sender_id"`
	Content          string     `json:"content"`
	SentAt           time.Time  `json:"sent_at"`
	EditedAt         *time.Time `json:"edited_at,omitempty"`
	IsEdited         bool       `json:"is_edited"`
	IsDeleted        bool       `json:"is_deleted"`
	ReplyToMessageID *uint      `json:"reply_to_message_id,omitempty"`
}

const notificationPreviewLimit = 80

// MessageService runs the message pipeline: authorize, moderate, encrypt,
// persist, then notify. Notification failures never fail a send.
type MessageService struct {
	msgs       MessageStore
	convs      ConversationStore
	users      UserDirectory
	authz      *AuthorizationService
	moderation *ModerationService
	enc        *EncryptionService
	dispatcher push.Dispatcher
	cfg        config.MessagingConfig
}

// NewMessageService wires the message pipeline.
func NewMessageService(
	msgs MessageStore,
	convs ConversationStore,
	users UserDirectory,
	authz *AuthorizationService,
	moderation *ModerationService,
	enc *EncryptionService,
	dispatcher push.Dispatcher,
	cfg config.MessagingConfig,
) *MessageService {
	return &MessageService{
		msgs:       msgs,
		convs:      convs,
		users:      users,
		authz:      authz,
		moderation: moderation,
		enc:        enc,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// SendMessage stores a new message in a conversation. The pipeline is
// strict in order: authorization, then moderation, then encryption, then
// persistence; a failure at any stage stores nothing. Push dispatch runs
// after persistence and cannot fail the send.
func (s *MessageService) SendMessage(senderID, conversationID uint, content string, replyToID *uint) (*DecryptedMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("message content must not be empty")
	}

	allowed, reason, err := s.authz.CanMessageInConversation(senderID, conversationID, s.convs)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	result := s.moderation.ValidateContent(content)
	if !result.IsValid {
		logger.Info("message rejected by moderation",
			zap.Uint("sender_id", senderID),
			zap.Uint("conversation_id", conversationID),
			zap.Strings("issues", result.Issues),
		)
		return nil, apperrors.ContentRejected(result.BlockedReason)
	}

	if replyToID != nil {
		parent, err := s.msgs.GetByID(*replyToID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationID != conversationID {
			return nil, apperrors.Validation("reply target belongs to another conversation")
		}
	}

	encrypted, hash, err := s.enc.Encrypt(content, conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := &model.ChatMessage{
		ConversationID:   conversationID,
		SenderID:         senderID,
		ContentEncrypted: encrypted,
		ContentHash:      hash,
		SentAt:           now,
		Status:           model.MessageActive,
		ReplyToMessageID: replyToID,
	}
	if err := s.msgs.Create(message); err != nil {
		return nil, err
	}

	if err := s.convs.SetLastMessage(conversationID, message.ID, now); err != nil {
		logger.Warn("last-message pointer update failed",
			zap.Uint("conversation_id", conversationID),
			zap.Error(err),
		)
	}
	// Sending implies the sender stopped typing.
	if err := s.convs.SetTyping(conversationID, senderID, false, now); err != nil {
		logger.Debug("typing reset skipped", zap.Error(err))
	}

	s.notifyRecipients(message, content)

	return &DecryptedMessage{
		ID:               message.ID,
		ConversationID:   message.ConversationID,
		SenderID:         message.SenderID,
		Content:          content,
		SentAt:           message.SentAt,
		ReplyToMessageID: message.ReplyToMessageID,
	}, nil
}

// notifyRecipients bumps unread counters and pushes a preview to every
// other active participant. Everything here is best effort.
func (s *MessageService) notifyRecipients(message *model.ChatMessage, plaintext string) {
	participants, err := s.convs.ActiveParticipants(message.ConversationID)
	if err != nil {
		logger.Warn("recipient lookup for notification failed",
			zap.Uint("conversation_id", message.ConversationID),
			zap.Error(err),
		)
		return
	}

	sender, err := s.users.GetByID(message.SenderID)
	senderName := ""
	if err == nil {
		senderName = sender.FullName()
	}

	preview := plaintext
	if runes := []rune(preview); len(runes) > notificationPreviewLimit {
		preview = string(runes[:notificationPreviewLimit])
	}

	var recipients []uint
	for _, p := range participants {
		if p.UserID == message.SenderID {
			continue
		}
		recipients = append(recipients, p.UserID)
		if !p.IsMuted {
			s.dispatcher.SendNewMessageNotification(p.UserID, senderName, preview, message.ConversationID)
		}
	}
	if len(recipients) > 0 {
		if err := redis.IncrementUnreadBatch(recipients, message.ConversationID); err != nil {
			logger.Debug("unread cache increment skipped", zap.Error(err))
		}
	}
}

// EditMessage re-runs moderation and encryption over new content. Only the
// sender may edit, only within the configured window after sending, and
// never on a deleted message.
func (s *MessageService) EditMessage(userID, messageID uint, content string) (*DecryptedMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("message content must not be empty")
	}

	message, err := s.msgs.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if message.IsDeleted() {
		return nil, apperrors.NotFound("message")
	}
	if message.SenderID != userID {
		return nil, apperrors.AuthorizationDenied("only the sender may edit a message")
	}

	now := time.Now()
	if now.Sub(message.SentAt) > s.cfg.EditWindow {
		return nil, apperrors.EditWindowExpired
	}

	result := s.moderation.ValidateContent(content)
	if !result.IsValid {
		return nil, apperrors.ContentRejected(result.BlockedReason)
	}

	encrypted, hash, err := s.enc.Encrypt(content, message.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := s.msgs.UpdateContent(messageID, encrypted, hash, now); err != nil {
		return nil, err
	}

	return &DecryptedMessage{
		ID:               message.ID,
		ConversationID:   message.ConversationID,
		SenderID:         message.SenderID,
		Content:          content,
		SentAt:           message.SentAt,
		EditedAt:         &now,
		IsEdited:         true,
		ReplyToMessageID: message.ReplyToMessageID,
	}, nil
}

// DeleteMessage tombstones a message. The sender may delete their own;
// administrators may delete any. Deleting twice is a silent no-op.
func (s *MessageService) DeleteMessage(userID, messageID uint) error {
	message, err := s.msgs.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted() {
		return nil
	}

	if message.SenderID != userID {
		user, err := s.users.GetByID(userID)
		if err != nil {
			return err
		}
		if user.Role != model.RoleAdmin {
			return apperrors.AuthorizationDenied("only the sender may delete a message")
		}
	}

	return s.msgs.Tombstone(messageID, userID, time.Now())
}

// GetMessages pages through a conversation's history for a participant,
// newest first. Bodies are decrypted per message; a row that cannot be
// decrypted degrades to the fallback text instead of failing the page.
// Fetching also records delivery receipts for the reader.
func (s *MessageService) GetMessages(userID, conversationID uint, limit, offset int) ([]*DecryptedMessage, error) {
	allowed, reason, err := s.authz.CanMessageInConversation(userID, conversationID, s.convs)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.msgs.ListByConversation(conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]*DecryptedMessage, 0, len(messages))
	for _, m := range messages {
		dm := &DecryptedMessage{
			ID:               m.ID,
			ConversationID:   m.ConversationID,
			SenderID:         m.SenderID,
			SentAt:           m.SentAt,
			EditedAt:         m.EditedAt,
			IsEdited:         m.IsEdited,
			IsDeleted:        m.IsDeleted(),
			ReplyToMessageID: m.ReplyToMessageID,
		}
		if !m.IsDeleted() {
			dm.Content = s.enc.Decrypt(m.ContentEncrypted, m.ConversationID)
		}
		out = append(out, dm)

		if m.SenderID != userID {
			if _, err := s.msgs.CreateDeliveryReceipt(m.ID, userID, now); err != nil {
				logger.Debug("delivery receipt skipped",
					zap.Uint("message_id", m.ID),
					zap.Error(err),
				)
			}
		}
	}
	return out, nil
}

// MarkMessageRead records a read receipt and advances the reader's cursor
// when the message is newer than it. Re-reading an already-read message
// succeeds silently.
func (s *MessageService) MarkMessageRead(userID, messageID uint) error {
	message, err := s.msgs.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.SenderID == userID {
		return nil
	}

	p, err := s.convs.GetParticipant(message.ConversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.AuthorizationDenied(reasonNotParticipant)
	}

	now := time.Now()
	if _, err := s.msgs.CreateReadReceipt(messageID, userID, now); err != nil {
		return err
	}

	// The cursor timestamp is the marked message's send time, not the wall
	// clock: messages sent after this one must still count as unread.
	if p.LastReadAt == nil || message.SentAt.After(*p.LastReadAt) {
		if err := s.convs.AdvanceReadCursor(p.ID, messageID, message.SentAt); err != nil {
			return err
		}
	}

	if err := redis.ResetUnread(userID, message.ConversationID); err != nil {
		logger.Debug("unread cache reset skipped", zap.Error(err))
	}
	return nil
}

// VerifyMessageIntegrity decrypts a stored message and checks the
// plaintext against its stored hash.
func (s *MessageService) VerifyMessageIntegrity(messageID uint) (bool, error) {
	message, err := s.msgs.GetByID(messageID)
	if err != nil {
		return false, err
	}
	plain := s.enc.Decrypt(message.ContentEncrypted, message.ConversationID)
	if plain == DecryptionFallback {
		return false, nil
	}
	return s.enc.VerifyIntegrity(plain, message.ContentHash), nil
}
