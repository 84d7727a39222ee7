package service

import (
	"testing"
	"time"

	"school-messaging/config"
	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/push"
)

func testMessagingConfig() config.MessagingConfig {
	return config.MessagingConfig{
		EditWindow:           15 * time.Minute,
		TypingLease:          5 * time.Second,
		GroupMaxParticipants: 50,
		MultiMaxParticipants: 10,
	}
}

// messagingFixture builds a message service over in-memory stores with one
// direct conversation between teacher (2) and student (3).
func messagingFixture(t *testing.T) (*MessageService, *fakeMsgStore, *fakeConvStore, uint) {
	t.Helper()

	users := newFakeUsers(
		&model.User{ID: adminID, Role: model.RoleAdmin, IsActive: true},
		&model.User{ID: teacherID, Role: model.RoleTeacher, FirstName: "Ayşe", LastName: "Yılmaz", IsActive: true},
		&model.User{ID: studentID, Role: model.RoleStudent, IsActive: true},
		&model.User{ID: outsiderID, Role: model.RoleStudent, IsActive: true},
	)
	rels := newFakeRels()
	authz := NewAuthorizationService(rels, users)

	convs := newFakeConvStore()
	now := time.Now()
	conv := &model.Conversation{Type: model.ConversationDirect, MaxParticipants: 2, EncryptionKeyID: "k"}
	_ = convs.CreateWithParticipants(conv, []*model.ConversationParticipant{
		{UserID: teacherID, Role: model.ParticipantOwner, Status: model.ParticipantActive, JoinedAt: now},
		{UserID: studentID, Role: model.ParticipantMember, Status: model.ParticipantActive, JoinedAt: now},
	})

	msgs := newFakeMsgStore()
	svc := NewMessageService(
		msgs, convs, users, authz,
		NewModerationService(), newTestEncryption(),
		push.NopDispatcher{}, testMessagingConfig(),
	)
	return svc, msgs, convs, conv.ID
}

func TestSendMessageStoresEncrypted(t *testing.T) {
	svc, msgs, convs, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "Please bring your homework tomorrow.", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if sent.Content != "Please bring your homework tomorrow." {
		t.Errorf("returned content mismatch: %q", sent.Content)
	}

	stored, err := msgs.GetByID(sent.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.ContentEncrypted == "Please bring your homework tomorrow." {
		t.Error("plaintext reached the store")
	}
	if stored.ContentHash == "" {
		t.Error("content hash missing")
	}

	conv, _ := convs.GetByID(convID)
	if conv.LastMessageID == nil || *conv.LastMessageID != sent.ID {
		t.Error("last-message pointer not advanced")
	}
}

func TestSendMessageRejectedByModeration(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	_, err := svc.SendMessage(teacherID, convID, "you are a fucking disgrace", nil)
	if err == nil {
		t.Fatal("profane message accepted")
	}
	if !apperrors.IsKind(err, apperrors.KindContentRejected) {
		t.Errorf("kind = %v, want content_rejected", apperrors.KindOf(err))
	}
	if len(msgs.messages) != 0 {
		t.Error("rejected message was stored")
	}
}

func TestSendMessageDeniedForNonParticipant(t *testing.T) {
	svc, _, _, convID := messagingFixture(t)

	_, err := svc.SendMessage(outsiderID, convID, "hello", nil)
	if err == nil {
		t.Fatal("non-participant allowed to send")
	}
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Errorf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
}

func TestSendMessageRejectsCrossConversationReply(t *testing.T) {
	svc, msgs, convs, convID := messagingFixture(t)

	other := &model.Conversation{Type: model.ConversationDirect, MaxParticipants: 2, EncryptionKeyID: "k2"}
	_ = convs.CreateWithParticipants(other, []*model.ConversationParticipant{
		{UserID: teacherID, Role: model.ParticipantOwner, Status: model.ParticipantActive, JoinedAt: time.Now()},
	})
	foreign := &model.ChatMessage{ConversationID: other.ID, SenderID: teacherID, SentAt: time.Now(), Status: model.MessageActive}
	_ = msgs.Create(foreign)

	_, err := svc.SendMessage(teacherID, convID, "replying", &foreign.ID)
	if err == nil {
		t.Fatal("cross-conversation reply accepted")
	}
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("kind = %v, want validation", apperrors.KindOf(err))
	}
}

func TestEditMessageWithinWindow(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "original text", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// Backdate ten minutes: still inside the window.
	stored, _ := msgs.GetByID(sent.ID)
	stored.SentAt = time.Now().Add(-10 * time.Minute)

	edited, err := svc.EditMessage(teacherID, sent.ID, "corrected text")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if edited.Content != "corrected text" {
		t.Errorf("content = %q", edited.Content)
	}
	if !edited.IsEdited {
		t.Error("IsEdited not set")
	}
}

func TestEditMessageAfterWindowExpires(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "original text", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	stored, _ := msgs.GetByID(sent.ID)
	stored.SentAt = time.Now().Add(-16 * time.Minute)

	_, err = svc.EditMessage(teacherID, sent.ID, "too late")
	if !apperrors.IsKind(err, apperrors.KindEditWindowExpired) {
		t.Fatalf("kind = %v, want edit_window_expired", apperrors.KindOf(err))
	}
}

func TestEditMessageOnlyBySender(t *testing.T) {
	svc, _, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "original text", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	_, err = svc.EditMessage(studentID, sent.ID, "hijacked")
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Fatalf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
}

func TestDeleteMessageTombstones(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "to be removed", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := svc.DeleteMessage(teacherID, sent.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	stored, _ := msgs.GetByID(sent.ID)
	if !stored.IsDeleted() {
		t.Fatal("message not tombstoned")
	}
	// Deleting again is a silent no-op.
	if err := svc.DeleteMessage(teacherID, sent.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}

	// Deleted rows render without content.
	page, err := svc.GetMessages(studentID, convID, 10, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("page size = %d", len(page))
	}
	if !page[0].IsDeleted || page[0].Content != "" {
		t.Errorf("tombstone leaked content: %+v", page[0])
	}
}

func TestGetMessagesDecryptsAndRecordsDelivery(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "readable text", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	page, err := svc.GetMessages(studentID, convID, 10, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page) != 1 || page[0].Content != "readable text" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if _, ok := msgs.delivered[receiptKey{sent.ID, studentID}]; !ok {
		t.Error("delivery receipt missing for reader")
	}
	if _, ok := msgs.delivered[receiptKey{sent.ID, teacherID}]; ok {
		t.Error("delivery receipt recorded for the sender")
	}
}

func TestGetMessagesCorruptRowDegradesToFallback(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "fine message", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	stored, _ := msgs.GetByID(sent.ID)
	stored.ContentEncrypted = "garbage-not-base64!!!"

	page, err := svc.GetMessages(studentID, convID, 10, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if page[0].Content != DecryptionFallback {
		t.Errorf("content = %q, want fallback", page[0].Content)
	}
}

func TestMarkMessageReadIsIdempotent(t *testing.T) {
	svc, msgs, convs, convID := messagingFixture(t)

	sent, err := svc.SendMessage(teacherID, convID, "read me", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := svc.MarkMessageRead(studentID, sent.ID); err != nil {
		t.Fatalf("first MarkMessageRead: %v", err)
	}
	if err := svc.MarkMessageRead(studentID, sent.ID); err != nil {
		t.Fatalf("second MarkMessageRead: %v", err)
	}
	if len(msgs.reads) != 1 {
		t.Errorf("read receipts = %d, want 1", len(msgs.reads))
	}

	p, _ := convs.GetParticipant(convID, studentID)
	if p.LastReadMessageID == nil || *p.LastReadMessageID != sent.ID {
		t.Error("read cursor not advanced")
	}

	count, err := msgs.CountUnreadAfter(convID, studentID, p.LastReadAt)
	if err != nil {
		t.Fatalf("CountUnreadAfter: %v", err)
	}
	if count != 0 {
		t.Errorf("unread after read = %d, want 0", count)
	}
}

func TestMarkMessageReadKeepsNewerMessagesUnread(t *testing.T) {
	svc, msgs, convs, convID := messagingFixture(t)

	first, err := svc.SendMessage(teacherID, convID, "first", nil)
	if err != nil {
		t.Fatalf("SendMessage first: %v", err)
	}
	second, err := svc.SendMessage(teacherID, convID, "second", nil)
	if err != nil {
		t.Fatalf("SendMessage second: %v", err)
	}
	// Spread the send times so ordering is unambiguous.
	olderSent, _ := msgs.GetByID(first.ID)
	olderSent.SentAt = time.Now().Add(-2 * time.Minute)
	newerSent, _ := msgs.GetByID(second.ID)
	newerSent.SentAt = time.Now().Add(-time.Minute)

	// Reading only the older message must not swallow the newer one.
	if err := svc.MarkMessageRead(studentID, first.ID); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}

	p, _ := convs.GetParticipant(convID, studentID)
	if p.LastReadAt == nil || !p.LastReadAt.Equal(olderSent.SentAt) {
		t.Errorf("cursor timestamp = %v, want the marked message's send time %v", p.LastReadAt, olderSent.SentAt)
	}

	count, err := msgs.CountUnreadAfter(convID, studentID, p.LastReadAt)
	if err != nil {
		t.Fatalf("CountUnreadAfter: %v", err)
	}
	if count != 1 {
		t.Errorf("unread = %d, want 1 (newer message never read)", count)
	}

	// Reading the newer one clears the backlog.
	if err := svc.MarkMessageRead(studentID, second.ID); err != nil {
		t.Fatalf("MarkMessageRead newer: %v", err)
	}
	p, _ = convs.GetParticipant(convID, studentID)
	count, err = msgs.CountUnreadAfter(convID, studentID, p.LastReadAt)
	if err != nil {
		t.Fatalf("CountUnreadAfter: %v", err)
	}
	if count != 0 {
		t.Errorf("unread = %d after reading everything, want 0", count)
	}
}

func TestMarkOlderMessageReadKeepsCursor(t *testing.T) {
	svc, msgs, convs, convID := messagingFixture(t)

	first, err := svc.SendMessage(teacherID, convID, "first", nil)
	if err != nil {
		t.Fatalf("SendMessage first: %v", err)
	}
	second, err := svc.SendMessage(teacherID, convID, "second", nil)
	if err != nil {
		t.Fatalf("SendMessage second: %v", err)
	}
	olderSent, _ := msgs.GetByID(first.ID)
	olderSent.SentAt = time.Now().Add(-2 * time.Minute)
	newerSent, _ := msgs.GetByID(second.ID)
	newerSent.SentAt = time.Now().Add(-time.Minute)

	if err := svc.MarkMessageRead(studentID, second.ID); err != nil {
		t.Fatalf("MarkMessageRead newer: %v", err)
	}
	// Reading an older message afterwards must not move the cursor back.
	if err := svc.MarkMessageRead(studentID, first.ID); err != nil {
		t.Fatalf("MarkMessageRead older: %v", err)
	}

	p, _ := convs.GetParticipant(convID, studentID)
	if p.LastReadMessageID == nil || *p.LastReadMessageID != second.ID {
		t.Error("cursor regressed to the older message")
	}
	if p.LastReadAt == nil || !p.LastReadAt.Equal(newerSent.SentAt) {
		t.Errorf("cursor timestamp = %v, want %v", p.LastReadAt, newerSent.SentAt)
	}
}

func TestDeletedMessagesDoNotCountAsUnread(t *testing.T) {
	svc, msgs, _, convID := messagingFixture(t)

	kept, err := svc.SendMessage(teacherID, convID, "still here", nil)
	if err != nil {
		t.Fatalf("SendMessage kept: %v", err)
	}
	removed, err := svc.SendMessage(teacherID, convID, "going away", nil)
	if err != nil {
		t.Fatalf("SendMessage removed: %v", err)
	}
	if err := svc.DeleteMessage(teacherID, removed.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	count, err := msgs.CountUnreadAfter(convID, studentID, nil)
	if err != nil {
		t.Fatalf("CountUnreadAfter: %v", err)
	}
	if count != 1 {
		t.Errorf("unread = %d, want 1 (tombstone counted, kept id %d)", count, kept.ID)
	}
}

func TestSendMessageClearsTyping(t *testing.T) {
	svc, _, convs, convID := messagingFixture(t)

	_ = convs.SetTyping(convID, teacherID, true, time.Now())
	if _, err := svc.SendMessage(teacherID, convID, "done typing", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	p, _ := convs.GetParticipant(convID, teacherID)
	if p.IsTyping {
		t.Error("typing flag survived a send")
	}
}
