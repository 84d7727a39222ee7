package service

import (
	"testing"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/push"
)

// conversationFixture builds the service over in-memory stores with a
// teacher actively teaching group 10, students 3 and 6 as its members.
func conversationFixture() (*ConversationService, *MessageService, *fakeConvStore, *fakeRels) {
	users := newFakeUsers(
		&model.User{ID: adminID, Role: model.RoleAdmin, IsActive: true},
		&model.User{ID: teacherID, Role: model.RoleTeacher, IsActive: true},
		&model.User{ID: studentID, Role: model.RoleStudent, IsActive: true},
		&model.User{ID: otherKidID, Role: model.RoleStudent, IsActive: true},
		&model.User{ID: outsiderID, Role: model.RoleStudent, IsActive: true},
	)
	rels := newFakeRels()
	rels.groupNames[10] = "9-A Mathematics"
	rels.members[10] = []uint{studentID, otherKidID}
	rels.groupLessons = append(rels.groupLessons, groupLessonFact{
		teacherID: teacherID, groupID: 10, from: time.Now().Add(-24 * time.Hour),
	})

	authz := NewAuthorizationService(rels, users)
	convs := newFakeConvStore()
	msgs := newFakeMsgStore()
	enc := newTestEncryption()
	cfg := testMessagingConfig()

	convSvc := NewConversationService(convs, msgs, users, rels, authz, enc, cfg)
	msgSvc := NewMessageService(msgs, convs, users, authz, NewModerationService(), enc, push.NopDispatcher{}, cfg)
	return convSvc, msgSvc, convs, rels
}

func TestGetOrCreateDirectIsIdempotent(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	// The shared group makes student-to-student messaging legal.
	first, err := svc.GetOrCreateDirect(studentID, otherKidID)
	if err != nil {
		t.Fatalf("first GetOrCreateDirect: %v", err)
	}
	second, err := svc.GetOrCreateDirect(otherKidID, studentID)
	if err != nil {
		t.Fatalf("second GetOrCreateDirect: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created a new conversation: %d vs %d", first.ID, second.ID)
	}
	if count, _ := convs.CountActiveParticipants(first.ID); count != 2 {
		t.Errorf("participants = %d, want 2", count)
	}
	if first.MaxParticipants != 2 {
		t.Errorf("MaxParticipants = %d, want 2", first.MaxParticipants)
	}
}

func TestGetOrCreateDirectDeniedWithoutRelationship(t *testing.T) {
	svc, _, _, _ := conversationFixture()

	_, err := svc.GetOrCreateDirect(studentID, outsiderID)
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Fatalf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
}

func TestCreateMultiPartyDeduplicatesRecipients(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	conv, err := svc.CreateMultiParty(
		teacherID, "Homework follow-up",
		[]uint{studentID, otherKidID, studentID, 0}, nil,
	)
	if err != nil {
		t.Fatalf("CreateMultiParty: %v", err)
	}
	if conv.Type != model.ConversationCourseGroup {
		t.Errorf("Type = %q", conv.Type)
	}
	if count, _ := convs.CountActiveParticipants(conv.ID); count != 3 {
		t.Errorf("participants = %d, want 3", count)
	}
	creator, _ := convs.GetParticipant(conv.ID, teacherID)
	if creator == nil || creator.Role != model.ParticipantOwner {
		t.Error("creator not enrolled as owner")
	}
}

func TestCreateMultiPartyDeniedRecipientBlocksCreation(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	// One reachable recipient does not excuse an unreachable one.
	_, err := svc.CreateMultiParty(studentID, "study group", []uint{otherKidID, outsiderID}, nil)
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Fatalf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
	if len(convs.convs) != 0 {
		t.Error("denied creation left a conversation behind")
	}
}

func TestCreateMultiPartyEnforcesCap(t *testing.T) {
	svc, _, _, _ := conversationFixture()
	svc.cfg.MultiMaxParticipants = 2

	_, err := svc.CreateMultiParty(teacherID, "too many", []uint{studentID, otherKidID}, nil)
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("kind = %v, want validation", apperrors.KindOf(err))
	}

	if _, err := svc.CreateMultiParty(teacherID, "just right", []uint{studentID}, nil); err != nil {
		t.Fatalf("CreateMultiParty at the cap: %v", err)
	}
}

func TestCreateMultiPartyRequiresRecipients(t *testing.T) {
	svc, _, _, _ := conversationFixture()

	// The creator alone does not make a conversation.
	_, err := svc.CreateMultiParty(teacherID, "empty", []uint{teacherID}, nil)
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("kind = %v, want validation", apperrors.KindOf(err))
	}
}

func TestGroupConversationEnrollsMembersAndTeachers(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if conv.Title != "9-A Mathematics" {
		t.Errorf("Title = %q", conv.Title)
	}

	teacher, _ := convs.GetParticipant(conv.ID, teacherID)
	if teacher == nil || teacher.Role != model.ParticipantAdmin {
		t.Error("teacher not enrolled as conversation admin")
	}
	for _, id := range []uint{studentID, otherKidID} {
		p, _ := convs.GetParticipant(conv.ID, id)
		if p == nil || !p.IsActive() {
			t.Errorf("member %d not enrolled", id)
		}
	}

	// A member asking later reuses the same conversation.
	again, err := svc.GetOrCreateGroupConversation(studentID, 10)
	if err != nil {
		t.Fatalf("member access: %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("second call created a new conversation")
	}
}

func TestGroupConversationReactivatesLeftMember(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if err := svc.Leave(studentID, conv.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	p, _ := convs.GetParticipant(conv.ID, studentID)
	if p.IsActive() {
		t.Fatal("participant still active after leaving")
	}

	if _, err := svc.GetOrCreateGroupConversation(studentID, 10); err != nil {
		t.Fatalf("re-access after leave: %v", err)
	}
	p, _ = convs.GetParticipant(conv.ID, studentID)
	if !p.IsActive() {
		t.Error("left member not reactivated")
	}
}

func TestLeftParticipantCannotSend(t *testing.T) {
	svc, msgSvc, _, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if err := svc.Leave(studentID, conv.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	_, err = msgSvc.SendMessage(studentID, conv.ID, "am I still here?", nil)
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Fatalf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
}

func TestGroupConversationDeniedForOutsider(t *testing.T) {
	svc, _, _, _ := conversationFixture()

	_, err := svc.GetOrCreateGroupConversation(outsiderID, 10)
	if !apperrors.IsKind(err, apperrors.KindAuthorizationDenied) {
		t.Fatalf("kind = %v, want authorization_denied", apperrors.KindOf(err))
	}
}

func TestMarkConversationReadBackfillsReceipts(t *testing.T) {
	svc, msgSvc, convs, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if _, err := msgSvc.SendMessage(teacherID, conv.ID, "first announcement", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	last, err := msgSvc.SendMessage(teacherID, conv.ID, "second announcement", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := svc.MarkConversationRead(studentID, conv.ID); err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	p, _ := convs.GetParticipant(conv.ID, studentID)
	if p.LastReadMessageID == nil || *p.LastReadMessageID != last.ID {
		t.Error("cursor not at the newest message")
	}

	count, err := svc.UnreadCount(studentID, conv.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 0 {
		t.Errorf("unread = %d after mark-read, want 0", count)
	}

	// Marking again changes nothing.
	if err := svc.MarkConversationRead(studentID, conv.ID); err != nil {
		t.Fatalf("second MarkConversationRead: %v", err)
	}
}

func TestUnreadCountFromCursor(t *testing.T) {
	svc, msgSvc, _, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := msgSvc.SendMessage(teacherID, conv.ID, text, nil); err != nil {
			t.Fatalf("SendMessage %q: %v", text, err)
		}
	}

	count, err := svc.UnreadCount(studentID, conv.ID)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 3 {
		t.Errorf("unread = %d, want 3", count)
	}

	// The sender's own messages never count against them.
	count, err = svc.UnreadCount(teacherID, conv.ID)
	if err != nil {
		t.Fatalf("UnreadCount sender: %v", err)
	}
	if count != 0 {
		t.Errorf("sender unread = %d, want 0", count)
	}
}

func TestTypingLeaseExpires(t *testing.T) {
	svc, _, convs, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if err := svc.SetTyping(studentID, conv.ID, true); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}

	typing, err := svc.TypingUsers(teacherID, conv.ID)
	if err != nil {
		t.Fatalf("TypingUsers: %v", err)
	}
	if len(typing) != 1 || typing[0] != studentID {
		t.Fatalf("typing = %v, want [%d]", typing, studentID)
	}

	// Age the flag past the lease; readers must ignore it.
	p, _ := convs.GetParticipant(conv.ID, studentID)
	stale := time.Now().Add(-time.Minute)
	p.LastTypingAt = &stale

	typing, err = svc.TypingUsers(teacherID, conv.ID)
	if err != nil {
		t.Fatalf("TypingUsers after lease: %v", err)
	}
	if len(typing) != 0 {
		t.Errorf("stale typing flag still visible: %v", typing)
	}
}

func TestListConversationsCarriesPreferences(t *testing.T) {
	svc, msgSvc, _, _ := conversationFixture()

	conv, err := svc.GetOrCreateGroupConversation(teacherID, 10)
	if err != nil {
		t.Fatalf("GetOrCreateGroupConversation: %v", err)
	}
	if _, err := msgSvc.SendMessage(teacherID, conv.ID, "hello class", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := svc.SetMuted(studentID, conv.ID, true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if err := svc.SetPinned(studentID, conv.ID, true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}

	summaries, err := svc.ListConversations(studentID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if !s.IsMuted || !s.IsPinned {
		t.Errorf("preferences lost: muted=%v pinned=%v", s.IsMuted, s.IsPinned)
	}
	if s.UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", s.UnreadCount)
	}
}
