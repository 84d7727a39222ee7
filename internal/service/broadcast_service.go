package service

import (
	"strings"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/push"

	"go.uber.org/zap"
)

// BroadcastStore is the persistence surface the broadcast workflows need.
// *repository.BroadcastRepository satisfies it.
type BroadcastStore interface {
	CreateWithRecipients(broadcast *model.BroadcastMessage, recipientIDs []uint) error
	GetByID(id uint) (*model.BroadcastMessage, error)
	GetRecipient(broadcastID, userID uint) (*model.BroadcastMessageRecipient, error)
	MarkRead(broadcastID, userID uint, at time.Time) (bool, error)
	SoftDeleteForUser(broadcastID, userID uint, at time.Time) error
	ListForUser(userID uint, now time.Time, limit, offset int) ([]*model.BroadcastMessage, error)
}

// DecryptedBroadcast is one recipient's view of a broadcast.
type DecryptedBroadcast struct {
	ID             uint                    `json:"id"`
	SenderID       uint                    `json:"sender_id"`
	Title          string                  `json:"title"`
	Content        string                  `json:"content"`
	Priority       model.BroadcastPriority `json:"priority"`
	SentAt         time.Time               `json:"sent_at"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty"`
	RecipientCount int                     `json:"recipient_count"`
	ReadCount      int                     `json:"read_count"`
	IsRead         bool                    `json:"is_read"`
}

// broadcastEncryptionScope keys all broadcast content to one derived key;
// broadcasts have no conversation of their own.
const broadcastEncryptionScope uint = 0

// BroadcastService fans administrative notices out to role audiences.
// Only administrators may send; audience resolution deduplicates users
// holding rows in several target roles.
type BroadcastService struct {
	broadcasts BroadcastStore
	users      UserDirectory
	authz      *AuthorizationService
	moderation *ModerationService
	enc        *EncryptionService
	dispatcher push.Dispatcher
}

// NewBroadcastService wires the broadcast workflows.
func NewBroadcastService(
	broadcasts BroadcastStore,
	users UserDirectory,
	authz *AuthorizationService,
	moderation *ModerationService,
	enc *EncryptionService,
	dispatcher push.Dispatcher,
) *BroadcastService {
	return &BroadcastService{
		broadcasts: broadcasts,
		users:      users,
		authz:      authz,
		moderation: moderation,
		enc:        enc,
		dispatcher: dispatcher,
	}
}

// SendBroadcast creates a notice for a role audience. Content passes
// moderation once and is encrypted once; recipient rows are created per
// resolved user. An audience resolving to nobody is rejected before
// anything is stored.
func (s *BroadcastService) SendBroadcast(senderID uint, audience model.RoleSet, title, content string, priority model.BroadcastPriority, expiresAt *time.Time) (*model.BroadcastMessage, error) {
	allowed, reason, err := s.authz.CanBroadcast(senderID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return nil, apperrors.Validation("broadcast title must not be empty")
	}
	if content == "" {
		return nil, apperrors.Validation("broadcast content must not be empty")
	}
	if len(audience) == 0 {
		return nil, apperrors.Validation("broadcast audience must not be empty")
	}
	if priority == "" {
		priority = model.BroadcastPriorityNormal
	}

	result := s.moderation.ValidateContent(content)
	if !result.IsValid {
		return nil, apperrors.ContentRejected(result.BlockedReason)
	}

	recipientIDs, err := s.resolveAudience(audience)
	if err != nil {
		return nil, err
	}
	if len(recipientIDs) == 0 {
		return nil, apperrors.Validation("broadcast audience resolves to no recipients")
	}

	encrypted, hash, err := s.enc.Encrypt(content, broadcastEncryptionScope)
	if err != nil {
		return nil, err
	}

	broadcast := &model.BroadcastMessage{
		SenderID:         senderID,
		TargetAudience:   audience.String(),
		Title:            title,
		ContentEncrypted: encrypted,
		ContentHash:      hash,
		Priority:         priority,
		SentAt:           time.Now(),
		ExpiresAt:        expiresAt,
	}
	if err := s.broadcasts.CreateWithRecipients(broadcast, recipientIDs); err != nil {
		return nil, err
	}

	logger.Info("broadcast sent",
		zap.Uint("broadcast_id", broadcast.ID),
		zap.Uint("sender_id", senderID),
		zap.String("audience", broadcast.TargetAudience),
		zap.Int("recipients", len(recipientIDs)),
	)

	s.dispatcher.SendBroadcastNotification(recipientIDs, title, broadcast.ID)
	return broadcast, nil
}

// SendDirectBroadcast targets an explicit user list instead of a role
// audience; the audience column stays empty.
func (s *BroadcastService) SendDirectBroadcast(senderID uint, recipientIDs []uint, title, content string, priority model.BroadcastPriority, expiresAt *time.Time) (*model.BroadcastMessage, error) {
	allowed, reason, err := s.authz.CanBroadcast(senderID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return nil, apperrors.Validation("broadcast title must not be empty")
	}
	if content == "" {
		return nil, apperrors.Validation("broadcast content must not be empty")
	}

	seen := make(map[uint]bool, len(recipientIDs))
	deduped := make([]uint, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	if len(deduped) == 0 {
		return nil, apperrors.Validation("broadcast recipient list must not be empty")
	}

	result := s.moderation.ValidateContent(content)
	if !result.IsValid {
		return nil, apperrors.ContentRejected(result.BlockedReason)
	}

	encrypted, hash, err := s.enc.Encrypt(content, broadcastEncryptionScope)
	if err != nil {
		return nil, err
	}

	if priority == "" {
		priority = model.BroadcastPriorityNormal
	}
	broadcast := &model.BroadcastMessage{
		SenderID:         senderID,
		Title:            title,
		ContentEncrypted: encrypted,
		ContentHash:      hash,
		Priority:         priority,
		SentAt:           time.Now(),
		ExpiresAt:        expiresAt,
	}
	if err := s.broadcasts.CreateWithRecipients(broadcast, deduped); err != nil {
		return nil, err
	}

	s.dispatcher.SendBroadcastNotification(deduped, title, broadcast.ID)
	return broadcast, nil
}

// resolveAudience expands role tags into a deduplicated user id list. The
// "all" tag short-circuits to every active account.
func (s *BroadcastService) resolveAudience(audience model.RoleSet) ([]uint, error) {
	if audience.IsAll() {
		return s.users.AllUserIDs()
	}

	seen := make(map[uint]bool)
	var out []uint
	for _, role := range audience {
		if !role.Valid() {
			return nil, apperrors.Validation("unknown audience role %q", string(role))
		}
		ids, err := s.users.UsersInRole(role)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// MarkBroadcastRead flips the caller's read state; reading twice is a
// silent no-op and the aggregate counter moves at most once per recipient.
func (s *BroadcastService) MarkBroadcastRead(userID, broadcastID uint) error {
	if _, err := s.broadcasts.GetRecipient(broadcastID, userID); err != nil {
		return err
	}
	_, err := s.broadcasts.MarkRead(broadcastID, userID, time.Now())
	return err
}

// DeleteBroadcastForUser hides the notice from the caller's inbox without
// touching the broadcast or other recipients.
func (s *BroadcastService) DeleteBroadcastForUser(userID, broadcastID uint) error {
	if _, err := s.broadcasts.GetRecipient(broadcastID, userID); err != nil {
		return err
	}
	return s.broadcasts.SoftDeleteForUser(broadcastID, userID, time.Now())
}

// GetBroadcast returns one broadcast decrypted for a recipient.
func (s *BroadcastService) GetBroadcast(userID, broadcastID uint) (*DecryptedBroadcast, error) {
	broadcast, err := s.broadcasts.GetByID(broadcastID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.broadcasts.GetRecipient(broadcastID, userID)
	if err != nil {
		return nil, err
	}
	return s.decrypt(broadcast, recipient), nil
}

// ListBroadcasts pages through the caller's visible notices, newest first.
func (s *BroadcastService) ListBroadcasts(userID uint, limit, offset int) ([]*DecryptedBroadcast, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	broadcasts, err := s.broadcasts.ListForUser(userID, time.Now(), limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]*DecryptedBroadcast, 0, len(broadcasts))
	for _, b := range broadcasts {
		recipient, err := s.broadcasts.GetRecipient(b.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, s.decrypt(b, recipient))
	}
	return out, nil
}

func (s *BroadcastService) decrypt(b *model.BroadcastMessage, recipient *model.BroadcastMessageRecipient) *DecryptedBroadcast {
	db := &DecryptedBroadcast{
		ID:             b.ID,
		SenderID:       b.SenderID,
		Title:          b.Title,
		Content:        s.enc.Decrypt(b.ContentEncrypted, broadcastEncryptionScope),
		Priority:       b.Priority,
		SentAt:         b.SentAt,
		ExpiresAt:      b.ExpiresAt,
		RecipientCount: b.RecipientCount,
		ReadCount:      b.ReadCount,
	}
	if recipient != nil {
		db.IsRead = recipient.IsRead
	}
	return db
}
