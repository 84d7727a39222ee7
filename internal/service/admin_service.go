package service

import (
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/logger"

	"go.uber.org/zap"
)

// AuditStore appends and lists admin access records.
// *repository.AuditRepository satisfies it.
type AuditStore interface {
	Create(entry *model.AdminMessageAccessLog) error
	ListByConversation(conversationID uint, limit, offset int) ([]*model.AdminMessageAccessLog, error)
}

// AdminAccessContext carries the request metadata stamped onto audit rows.
type AdminAccessContext struct {
	Reason    string
	ClientIP  string
	UserAgent string
}

// AdminService is the administrator's window into conversations: it
// decrypts message history regardless of participation and writes an
// access record for every look. Audit writes are best effort and never
// block the read itself.
type AdminService struct {
	msgs  MessageStore
	convs ConversationStore
	users UserDirectory
	audit AuditStore
	enc   *EncryptionService
}

// NewAdminService wires the admin workflows.
func NewAdminService(
	msgs MessageStore,
	convs ConversationStore,
	users UserDirectory,
	audit AuditStore,
	enc *EncryptionService,
) *AdminService {
	return &AdminService{
		msgs:  msgs,
		convs: convs,
		users: users,
		audit: audit,
		enc:   enc,
	}
}

// GetConversationMessages decrypts a conversation's history for an
// administrator and records the access.
func (s *AdminService) GetConversationMessages(adminID, conversationID uint, limit, offset int, access AdminAccessContext) ([]*DecryptedMessage, error) {
	if err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	if access.Reason == "" {
		return nil, apperrors.Validation("an access reason is required")
	}

	if _, err := s.convs.GetByID(conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.msgs.ListByConversation(conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

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
	}

	entry := &model.AdminMessageAccessLog{
		AdminID:        adminID,
		ConversationID: conversationID,
		Reason:         access.Reason,
		AccessedAt:     time.Now(),
		ClientIP:       access.ClientIP,
		UserAgent:      access.UserAgent,
		MessageCount:   len(out),
	}
	if err := s.audit.Create(entry); err != nil {
		logger.Error("admin access audit write failed",
			zap.Uint("admin_id", adminID),
			zap.Uint("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	logger.Info("admin accessed conversation",
		zap.Uint("admin_id", adminID),
		zap.Uint("conversation_id", conversationID),
		zap.String("reason", access.Reason),
		zap.Int("messages", len(out)),
	)
	return out, nil
}

// GetAccessLog lists the audit trail of a conversation.
func (s *AdminService) GetAccessLog(adminID, conversationID uint, limit, offset int) ([]*model.AdminMessageAccessLog, error) {
	if err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.audit.ListByConversation(conversationID, limit, offset)
}

func (s *AdminService) requireAdmin(userID uint) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user.Role != model.RoleAdmin {
		return apperrors.AuthorizationDenied("administrator access required")
	}
	return nil
}
