package service

import (
	"errors"
	"time"

	"school-messaging/config"
	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationStore is the persistence surface the conversation workflows
// need. *repository.ConversationRepository satisfies it.
type ConversationStore interface {
	GetByID(id uint) (*model.Conversation, error)
	CreateWithParticipants(conv *model.Conversation, participants []*model.ConversationParticipant) error
	FindDirectBetween(userA, userB uint) (*model.Conversation, error)
	FindByStudentGroup(groupID uint) (*model.Conversation, error)
	GetParticipant(conversationID, userID uint) (*model.ConversationParticipant, error)
	ActiveParticipants(conversationID uint) ([]*model.ConversationParticipant, error)
	CountActiveParticipants(conversationID uint) (int64, error)
	AddParticipant(p *model.ConversationParticipant) error
	Reactivate(participantID uint, role model.ParticipantRole) error
	MarkLeft(participantID uint, at time.Time) error
	SetLastMessage(conversationID, messageID uint, at time.Time) error
	SetTyping(conversationID, userID uint, typing bool, at time.Time) error
	AdvanceReadCursor(participantID, messageID uint, at time.Time) error
	SetMuted(conversationID, userID uint, muted bool) error
	SetPinned(conversationID, userID uint, pinned bool) error
	ListForUser(userID uint) ([]*model.Conversation, error)
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation  *model.Conversation `json:"conversation"`
	UnreadCount   int64               `json:"unread_count"`
	IsMuted       bool                `json:"is_muted"`
	IsPinned      bool                `json:"is_pinned"`
	TypingUserIDs []uint              `json:"typing_user_ids,omitempty"`
}

// ConversationService runs the conversation lifecycle: direct and
// group-backed creation, membership, typing, read cursors and per-user
// preferences. Every entry point authorizes before touching state.
type ConversationService struct {
	convs ConversationStore
	msgs  MessageStore
	users UserDirectory
	rels  RelationshipDirectory
	authz *AuthorizationService
	enc   *EncryptionService
	cfg   config.MessagingConfig
}

// NewConversationService wires the conversation workflows.
func NewConversationService(
	convs ConversationStore,
	msgs MessageStore,
	users UserDirectory,
	rels RelationshipDirectory,
	authz *AuthorizationService,
	enc *EncryptionService,
	cfg config.MessagingConfig,
) *ConversationService {
	return &ConversationService{
		convs: convs,
		msgs:  msgs,
		users: users,
		rels:  rels,
		authz: authz,
		enc:   enc,
		cfg:   cfg,
	}
}

// GetOrCreateDirect returns the direct conversation between the two users,
// creating it on first contact. Creation requires the sender to pass the
// role-pair rules against the recipient.
func (s *ConversationService) GetOrCreateDirect(senderID, recipientID uint) (*model.Conversation, error) {
	allowed, reason, err := s.authz.CanMessageUser(senderID, recipientID, time.Now())
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	existing, err := s.convs.FindDirectBetween(senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	conv := &model.Conversation{
		Type:            model.ConversationDirect,
		MaxParticipants: 2,
		EncryptionKeyID: uuid.NewString(),
	}
	participants := []*model.ConversationParticipant{
		{UserID: senderID, Role: model.ParticipantOwner, Status: model.ParticipantActive, JoinedAt: now},
		{UserID: recipientID, Role: model.ParticipantMember, Status: model.ParticipantActive, JoinedAt: now},
	}
	if err := s.convs.CreateWithParticipants(conv, participants); err != nil {
		return nil, err
	}
	if _, err := s.enc.GenerateConversationKey(conv.ID); err != nil {
		logger.Warn("conversation key generation fell back to derived key",
			zap.Uint("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	logger.Info("direct conversation created",
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("sender_id", senderID),
		zap.Uint("recipient_id", recipientID),
	)
	return conv, nil
}

// CreateMultiParty creates an ad-hoc multi-party conversation, optionally
// tied to a course. The creator must hold a messaging relationship with
// every recipient individually, and the participant set (creator included)
// is capped at the multi-party maximum.
func (s *ConversationService) CreateMultiParty(creatorID uint, title string, recipientIDs []uint, courseID *uint) (*model.Conversation, error) {
	now := time.Now()

	seen := map[uint]bool{creatorID: true}
	recipients := make([]uint, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil, apperrors.Validation("a multi-party conversation needs at least one recipient")
	}
	if s.cfg.MultiMaxParticipants > 0 && len(recipients)+1 > s.cfg.MultiMaxParticipants {
		return nil, apperrors.Validation("multi-party conversations are capped at %d participants", s.cfg.MultiMaxParticipants)
	}

	for _, id := range recipients {
		allowed, reason, err := s.authz.CanMessageUser(creatorID, id, now)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperrors.AuthorizationDenied(reason)
		}
	}

	conv := &model.Conversation{
		Type:            model.ConversationCourseGroup,
		Title:           title,
		CourseID:        courseID,
		MaxParticipants: s.cfg.MultiMaxParticipants,
		EncryptionKeyID: uuid.NewString(),
	}
	participants := make([]*model.ConversationParticipant, 0, len(recipients)+1)
	participants = append(participants, &model.ConversationParticipant{
		UserID: creatorID, Role: model.ParticipantOwner, Status: model.ParticipantActive, JoinedAt: now,
	})
	for _, id := range recipients {
		participants = append(participants, &model.ConversationParticipant{
			UserID: id, Role: model.ParticipantMember, Status: model.ParticipantActive, JoinedAt: now,
		})
	}
	if err := s.convs.CreateWithParticipants(conv, participants); err != nil {
		return nil, err
	}
	if _, err := s.enc.GenerateConversationKey(conv.ID); err != nil {
		logger.Warn("conversation key generation fell back to derived key",
			zap.Uint("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	logger.Info("multi-party conversation created",
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("creator_id", creatorID),
		zap.Int("participants", len(participants)),
	)
	return conv, nil
}

// GetOrCreateGroupConversation returns the conversation backing a student
// group, creating it on first use. On creation every current group member
// is enrolled as a participant and every currently-scheduled teacher as a
// conversation admin. On access, a caller with group rights but no
// membership row (joined the group later, or left the conversation) is
// enrolled or reactivated.
func (s *ConversationService) GetOrCreateGroupConversation(userID, groupID uint) (*model.Conversation, error) {
	now := time.Now()

	allowed, reason, err := s.authz.CanMessageGroup(userID, groupID, now)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.AuthorizationDenied(reason)
	}

	exists, err := s.rels.GroupExists(groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFound("student group")
	}

	conv, err := s.convs.FindByStudentGroup(groupID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv, err = s.createGroupConversation(groupID, now)
		if err != nil {
			return nil, err
		}
	}

	if err := s.ensureEnrolled(conv, userID, now); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) createGroupConversation(groupID uint, now time.Time) (*model.Conversation, error) {
	name, err := s.rels.GroupName(groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.rels.GroupMemberIDs(groupID)
	if err != nil {
		return nil, err
	}
	teachers, err := s.rels.GroupTeacherIDs(groupID, now)
	if err != nil {
		return nil, err
	}

	gid := groupID
	conv := &model.Conversation{
		Type:            model.ConversationStudentGroup,
		Title:           name,
		StudentGroupID:  &gid,
		MaxParticipants: s.cfg.GroupMaxParticipants,
		EncryptionKeyID: uuid.NewString(),
	}

	seen := make(map[uint]bool, len(members)+len(teachers))
	participants := make([]*model.ConversationParticipant, 0, len(members)+len(teachers))
	for _, teacherID := range teachers {
		if seen[teacherID] {
			continue
		}
		seen[teacherID] = true
		participants = append(participants, &model.ConversationParticipant{
			UserID:   teacherID,
			Role:     model.ParticipantAdmin,
			Status:   model.ParticipantActive,
			JoinedAt: now,
		})
	}
	for _, memberID := range members {
		if seen[memberID] {
			continue
		}
		seen[memberID] = true
		participants = append(participants, &model.ConversationParticipant{
			UserID:   memberID,
			Role:     model.ParticipantMember,
			Status:   model.ParticipantActive,
			JoinedAt: now,
		})
	}

	if err := s.convs.CreateWithParticipants(conv, participants); err != nil {
		return nil, err
	}
	if _, err := s.enc.GenerateConversationKey(conv.ID); err != nil {
		logger.Warn("conversation key generation fell back to derived key",
			zap.Uint("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	logger.Info("group conversation created",
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("group_id", groupID),
		zap.Int("participants", len(participants)),
	)
	return conv, nil
}

// ensureEnrolled adds or reactivates the caller's membership row. The
// caller has already passed the group authorization check; teachers come
// back as conversation admins, everyone else as a plain participant.
func (s *ConversationService) ensureEnrolled(conv *model.Conversation, userID uint, now time.Time) error {
	p, err := s.convs.GetParticipant(conv.ID, userID)
	if err != nil {
		return err
	}

	role := model.ParticipantMember
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user.Role == model.RoleTeacher || user.Role == model.RoleAdmin {
		role = model.ParticipantAdmin
	}

	if p == nil {
		count, err := s.convs.CountActiveParticipants(conv.ID)
		if err != nil {
			return err
		}
		if conv.MaxParticipants > 0 && count >= int64(conv.MaxParticipants) {
			return apperrors.Validation("conversation is full (%d participants)", conv.MaxParticipants)
		}
		return s.convs.AddParticipant(&model.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           role,
			Status:         model.ParticipantActive,
			JoinedAt:       now,
		})
	}
	if !p.IsActive() {
		return s.convs.Reactivate(p.ID, role)
	}
	return nil
}

// Leave marks the caller's membership as left. The row and its read cursor
// survive; leaving an already-left conversation is a silent no-op.
func (s *ConversationService) Leave(userID, conversationID uint) error {
	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NotFound("conversation")
	}
	if !p.IsActive() {
		return nil
	}
	return s.convs.MarkLeft(p.ID, time.Now())
}

// SetTyping records the caller's typing state. Readers treat the flag as
// live only within the configured lease, so a stale true never lingers.
func (s *ConversationService) SetTyping(userID, conversationID uint, typing bool) error {
	allowed, reason, err := s.authz.CanMessageInConversation(userID, conversationID, s.convs)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.AuthorizationDenied(reason)
	}
	return s.convs.SetTyping(conversationID, userID, typing, time.Now())
}

// SetMuted toggles the caller's mute preference.
func (s *ConversationService) SetMuted(userID, conversationID uint, muted bool) error {
	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NotFound("conversation")
	}
	return s.convs.SetMuted(conversationID, userID, muted)
}

// SetPinned toggles the caller's pin preference.
func (s *ConversationService) SetPinned(userID, conversationID uint, pinned bool) error {
	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NotFound("conversation")
	}
	return s.convs.SetPinned(conversationID, userID, pinned)
}

// MarkConversationRead advances the caller's read cursor to the newest
// message, backfills read receipts for everything past the old cursor and
// drops the cached unread counter. Calling it twice is harmless.
func (s *ConversationService) MarkConversationRead(userID, conversationID uint) error {
	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NotFound("conversation")
	}

	latest, err := s.msgs.LatestMessage(conversationID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	now := time.Now()
	unread, err := s.msgs.MessagesAfter(conversationID, userID, p.LastReadAt)
	if err != nil {
		return err
	}
	for _, m := range unread {
		if _, err := s.msgs.CreateReadReceipt(m.ID, userID, now); err != nil {
			return err
		}
	}

	if err := s.convs.AdvanceReadCursor(p.ID, latest.ID, latest.SentAt); err != nil {
		return err
	}

	if err := redis.ResetUnread(userID, conversationID); err != nil {
		logger.Debug("unread cache reset skipped", zap.Error(err))
	}
	return nil
}

// UnreadCount returns the caller's unread count for one conversation,
// serving from the cache and recounting from the read cursor on a miss.
func (s *ConversationService) UnreadCount(userID, conversationID uint) (int64, error) {
	if count, err := redis.GetUnread(userID, conversationID); err == nil {
		return count, nil
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		logger.Debug("unread cache read skipped", zap.Error(err))
	}

	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, apperrors.NotFound("conversation")
	}

	count, err := s.msgs.CountUnreadAfter(conversationID, userID, p.LastReadAt)
	if err != nil {
		return 0, err
	}
	if err := redis.SetUnread(userID, conversationID, count); err != nil {
		logger.Debug("unread cache write skipped", zap.Error(err))
	}
	return count, nil
}

// ListConversations returns the caller's conversation list with unread
// counts, preferences and live typing indicators, pinned rows first.
func (s *ConversationService) ListConversations(userID uint) ([]*ConversationSummary, error) {
	conversations, err := s.convs.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]*ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		p, err := s.convs.GetParticipant(conv.ID, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}

		unread, err := s.UnreadCount(userID, conv.ID)
		if err != nil {
			return nil, err
		}

		summary := &ConversationSummary{
			Conversation: conv,
			UnreadCount:  unread,
			IsMuted:      p.IsMuted,
			IsPinned:     p.IsPinned,
		}

		others, err := s.convs.ActiveParticipants(conv.ID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.UserID == userID {
				continue
			}
			if other.TypingActive(now, s.cfg.TypingLease) {
				summary.TypingUserIDs = append(summary.TypingUserIDs, other.UserID)
			}
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// TypingUsers lists who is currently typing in a conversation, excluding
// the asker.
func (s *ConversationService) TypingUsers(userID, conversationID uint) ([]uint, error) {
	p, err := s.convs.GetParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFound("conversation")
	}

	participants, err := s.convs.ActiveParticipants(conversationID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var typing []uint
	for _, other := range participants {
		if other.UserID == userID {
			continue
		}
		if other.TypingActive(now, s.cfg.TypingLease) {
			typing = append(typing, other.UserID)
		}
	}
	return typing, nil
}
