package service

import (
	"sort"
	"time"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
)

// In-memory fakes standing in for the gorm repositories.

type fakeUsers struct {
	users map[uint]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uint]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(id uint) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	return u, nil
}

func (f *fakeUsers) UsersInRole(role model.Role) ([]uint, error) {
	var ids []uint
	for id, u := range f.users {
		if u.Role == role && u.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeUsers) AllUserIDs() ([]uint, error) {
	var ids []uint
	for id, u := range f.users {
		if u.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type lessonFact struct {
	teacherID uint
	studentID uint
	from      time.Time
	to        *time.Time
}

type groupLessonFact struct {
	teacherID uint
	groupID   uint
	from      time.Time
	to        *time.Time
}

func effective(from time.Time, to *time.Time, asOf time.Time) bool {
	if asOf.Before(from) {
		return false
	}
	return to == nil || !asOf.After(*to)
}

type fakeRels struct {
	lessons      []lessonFact
	groupLessons []groupLessonFact
	members      map[uint][]uint // groupID -> current student members
	groupNames   map[uint]string
	counselees   map[uint][]uint // counselorID -> studentIDs
	children     map[uint][]uint // parentID -> childIDs
}

func newFakeRels() *fakeRels {
	return &fakeRels{
		members:    make(map[uint][]uint),
		groupNames: make(map[uint]string),
		counselees: make(map[uint][]uint),
		children:   make(map[uint][]uint),
	}
}

func (f *fakeRels) HasActiveLesson(teacherID, studentID uint, asOf time.Time) (bool, error) {
	for _, l := range f.lessons {
		if l.teacherID == teacherID && l.studentID == studentID && effective(l.from, l.to, asOf) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRels) HasAnyLesson(teacherID, studentID uint) (bool, error) {
	for _, l := range f.lessons {
		if l.teacherID == teacherID && l.studentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRels) TeacherGroupIDs(teacherID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	for _, g := range f.groupLessons {
		if g.teacherID == teacherID && effective(g.from, g.to, asOf) {
			ids = append(ids, g.groupID)
		}
	}
	return ids, nil
}

func (f *fakeRels) GroupTeacherIDs(groupID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	for _, g := range f.groupLessons {
		if g.groupID == groupID && effective(g.from, g.to, asOf) {
			ids = append(ids, g.teacherID)
		}
	}
	return ids, nil
}

func (f *fakeRels) StudentGroupIDs(studentID uint) ([]uint, error) {
	var ids []uint
	for groupID, members := range f.members {
		for _, m := range members {
			if m == studentID {
				ids = append(ids, groupID)
			}
		}
	}
	return ids, nil
}

func (f *fakeRels) GroupMemberIDs(groupID uint) ([]uint, error) {
	return f.members[groupID], nil
}

func (f *fakeRels) GroupExists(groupID uint) (bool, error) {
	_, ok := f.groupNames[groupID]
	return ok, nil
}

func (f *fakeRels) GroupName(groupID uint) (string, error) {
	return f.groupNames[groupID], nil
}

func (f *fakeRels) AllGroupIDs() ([]uint, error) {
	var ids []uint
	for id := range f.groupNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRels) IsCounselorOf(counselorID, studentID uint) (bool, error) {
	for _, s := range f.counselees[counselorID] {
		if s == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRels) CounselorStudentIDs(counselorID uint) ([]uint, error) {
	return f.counselees[counselorID], nil
}

func (f *fakeRels) CounselorIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	for counselorID, students := range f.counselees {
		for _, s := range students {
			if s == studentID {
				ids = append(ids, counselorID)
			}
		}
	}
	return ids, nil
}

func (f *fakeRels) ChildIDsOf(parentID uint) ([]uint, error) {
	return f.children[parentID], nil
}

func (f *fakeRels) ParentIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	for parentID, kids := range f.children {
		for _, k := range kids {
			if k == studentID {
				ids = append(ids, parentID)
			}
		}
	}
	return ids, nil
}

func (f *fakeRels) TeacherStudentIDs(teacherID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	for _, l := range f.lessons {
		if l.teacherID == teacherID && effective(l.from, l.to, asOf) {
			ids = append(ids, l.studentID)
		}
	}
	return ids, nil
}

func (f *fakeRels) ActiveLessonTeacherIDsOf(studentID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	for _, l := range f.lessons {
		if l.studentID == studentID && effective(l.from, l.to, asOf) {
			ids = append(ids, l.teacherID)
		}
	}
	return ids, nil
}

func (f *fakeRels) LessonTeacherIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	for _, l := range f.lessons {
		if l.studentID == studentID {
			ids = append(ids, l.teacherID)
		}
	}
	return ids, nil
}

type fakeConvStore struct {
	nextConvID uint
	nextPartID uint
	convs      map[uint]*model.Conversation
	parts      []*model.ConversationParticipant
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{
		nextConvID: 1,
		nextPartID: 1,
		convs:      make(map[uint]*model.Conversation),
	}
}

func (f *fakeConvStore) GetByID(id uint) (*model.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok {
		return nil, apperrors.NotFound("conversation")
	}
	return conv, nil
}

func (f *fakeConvStore) CreateWithParticipants(conv *model.Conversation, participants []*model.ConversationParticipant) error {
	conv.ID = f.nextConvID
	f.nextConvID++
	f.convs[conv.ID] = conv
	for _, p := range participants {
		p.ID = f.nextPartID
		f.nextPartID++
		p.ConversationID = conv.ID
		f.parts = append(f.parts, p)
	}
	return nil
}

func (f *fakeConvStore) FindDirectBetween(userA, userB uint) (*model.Conversation, error) {
	for _, conv := range f.convs {
		if conv.Type != model.ConversationDirect {
			continue
		}
		pa, _ := f.GetParticipant(conv.ID, userA)
		pb, _ := f.GetParticipant(conv.ID, userB)
		if pa != nil && pa.IsActive() && pb != nil && pb.IsActive() {
			return conv, nil
		}
	}
	return nil, nil
}

func (f *fakeConvStore) FindByStudentGroup(groupID uint) (*model.Conversation, error) {
	for _, conv := range f.convs {
		if conv.Type == model.ConversationStudentGroup && conv.StudentGroupID != nil && *conv.StudentGroupID == groupID {
			return conv, nil
		}
	}
	return nil, nil
}

func (f *fakeConvStore) GetParticipant(conversationID, userID uint) (*model.ConversationParticipant, error) {
	for _, p := range f.parts {
		if p.ConversationID == conversationID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeConvStore) ActiveParticipants(conversationID uint) ([]*model.ConversationParticipant, error) {
	var out []*model.ConversationParticipant
	for _, p := range f.parts {
		if p.ConversationID == conversationID && p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeConvStore) CountActiveParticipants(conversationID uint) (int64, error) {
	active, _ := f.ActiveParticipants(conversationID)
	return int64(len(active)), nil
}

func (f *fakeConvStore) AddParticipant(p *model.ConversationParticipant) error {
	p.ID = f.nextPartID
	f.nextPartID++
	f.parts = append(f.parts, p)
	return nil
}

func (f *fakeConvStore) Reactivate(participantID uint, role model.ParticipantRole) error {
	for _, p := range f.parts {
		if p.ID == participantID {
			p.Status = model.ParticipantActive
			p.Role = role
			p.LeftAt = nil
		}
	}
	return nil
}

func (f *fakeConvStore) MarkLeft(participantID uint, at time.Time) error {
	for _, p := range f.parts {
		if p.ID == participantID {
			p.Status = model.ParticipantLeft
			p.LeftAt = &at
			p.IsTyping = false
		}
	}
	return nil
}

func (f *fakeConvStore) SetLastMessage(conversationID, messageID uint, at time.Time) error {
	if conv, ok := f.convs[conversationID]; ok {
		conv.LastMessageID = &messageID
		conv.LastMessageAt = &at
	}
	return nil
}

func (f *fakeConvStore) SetTyping(conversationID, userID uint, typing bool, at time.Time) error {
	for _, p := range f.parts {
		if p.ConversationID == conversationID && p.UserID == userID {
			p.IsTyping = typing
			if typing {
				t := at
				p.LastTypingAt = &t
			}
		}
	}
	return nil
}

func (f *fakeConvStore) AdvanceReadCursor(participantID, messageID uint, at time.Time) error {
	for _, p := range f.parts {
		if p.ID == participantID {
			p.LastReadMessageID = &messageID
			t := at
			p.LastReadAt = &t
		}
	}
	return nil
}

func (f *fakeConvStore) SetMuted(conversationID, userID uint, muted bool) error {
	for _, p := range f.parts {
		if p.ConversationID == conversationID && p.UserID == userID {
			p.IsMuted = muted
		}
	}
	return nil
}

func (f *fakeConvStore) SetPinned(conversationID, userID uint, pinned bool) error {
	for _, p := range f.parts {
		if p.ConversationID == conversationID && p.UserID == userID {
			p.IsPinned = pinned
		}
	}
	return nil
}

func (f *fakeConvStore) ListForUser(userID uint) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, p := range f.parts {
		if p.UserID == userID && p.IsActive() {
			if conv, ok := f.convs[p.ConversationID]; ok {
				out = append(out, conv)
			}
		}
	}
	return out, nil
}

type receiptKey struct {
	messageID uint
	userID    uint
}

type fakeMsgStore struct {
	nextID    uint
	messages  []*model.ChatMessage
	reads     map[receiptKey]time.Time
	delivered map[receiptKey]time.Time
}

func newFakeMsgStore() *fakeMsgStore {
	return &fakeMsgStore{
		nextID:    1,
		reads:     make(map[receiptKey]time.Time),
		delivered: make(map[receiptKey]time.Time),
	}
}

func (f *fakeMsgStore) Create(message *model.ChatMessage) error {
	message.ID = f.nextID
	f.nextID++
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeMsgStore) GetByID(id uint) (*model.ChatMessage, error) {
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.NotFound("message")
}

func (f *fakeMsgStore) ListByConversation(conversationID uint, limit, offset int) ([]*model.ChatMessage, error) {
	var out []*model.ChatMessage
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ConversationID == conversationID {
			out = append(out, f.messages[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMsgStore) LatestMessage(conversationID uint) (*model.ChatMessage, error) {
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ConversationID == conversationID {
			return f.messages[i], nil
		}
	}
	return nil, nil
}

func (f *fakeMsgStore) UpdateContent(messageID uint, contentEncrypted, contentHash string, editedAt time.Time) error {
	for _, m := range f.messages {
		if m.ID == messageID {
			m.ContentEncrypted = contentEncrypted
			m.ContentHash = contentHash
			t := editedAt
			m.EditedAt = &t
			m.IsEdited = true
		}
	}
	return nil
}

func (f *fakeMsgStore) Tombstone(messageID, deletedBy uint, at time.Time) error {
	for _, m := range f.messages {
		if m.ID == messageID {
			m.Status = model.MessageDeleted
			t := at
			m.DeletedAt = &t
			by := deletedBy
			m.DeletedBy = &by
		}
	}
	return nil
}

func (f *fakeMsgStore) CountUnreadAfter(conversationID, userID uint, after *time.Time) (int64, error) {
	var count int64
	for _, m := range f.messages {
		if m.ConversationID != conversationID || m.SenderID == userID || m.IsDeleted() {
			continue
		}
		if after != nil && !m.SentAt.After(*after) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeMsgStore) CreateReadReceipt(messageID, userID uint, at time.Time) (bool, error) {
	key := receiptKey{messageID, userID}
	if _, ok := f.reads[key]; ok {
		return false, nil
	}
	f.reads[key] = at
	return true, nil
}

func (f *fakeMsgStore) CreateDeliveryReceipt(messageID, userID uint, at time.Time) (bool, error) {
	key := receiptKey{messageID, userID}
	if _, ok := f.delivered[key]; ok {
		return false, nil
	}
	f.delivered[key] = at
	return true, nil
}

func (f *fakeMsgStore) MessagesAfter(conversationID, userID uint, after *time.Time) ([]*model.ChatMessage, error) {
	var out []*model.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID != conversationID || m.SenderID == userID {
			continue
		}
		if after != nil && !m.SentAt.After(*after) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type fakeBroadcastStore struct {
	nextID     uint
	broadcasts map[uint]*model.BroadcastMessage
	recipients []*model.BroadcastMessageRecipient
}

func newFakeBroadcastStore() *fakeBroadcastStore {
	return &fakeBroadcastStore{
		nextID:     1,
		broadcasts: make(map[uint]*model.BroadcastMessage),
	}
}

func (f *fakeBroadcastStore) CreateWithRecipients(broadcast *model.BroadcastMessage, recipientIDs []uint) error {
	broadcast.ID = f.nextID
	f.nextID++
	broadcast.RecipientCount = len(recipientIDs)
	f.broadcasts[broadcast.ID] = broadcast
	for _, userID := range recipientIDs {
		f.recipients = append(f.recipients, &model.BroadcastMessageRecipient{
			BroadcastMessageID: broadcast.ID,
			UserID:             userID,
		})
	}
	return nil
}

func (f *fakeBroadcastStore) GetByID(id uint) (*model.BroadcastMessage, error) {
	b, ok := f.broadcasts[id]
	if !ok {
		return nil, apperrors.NotFound("broadcast")
	}
	return b, nil
}

func (f *fakeBroadcastStore) GetRecipient(broadcastID, userID uint) (*model.BroadcastMessageRecipient, error) {
	for _, r := range f.recipients {
		if r.BroadcastMessageID == broadcastID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, apperrors.NotFound("broadcast")
}

func (f *fakeBroadcastStore) MarkRead(broadcastID, userID uint, at time.Time) (bool, error) {
	for _, r := range f.recipients {
		if r.BroadcastMessageID == broadcastID && r.UserID == userID {
			if r.IsRead {
				return false, nil
			}
			r.IsRead = true
			t := at
			r.ReadAt = &t
			f.broadcasts[broadcastID].ReadCount++
			return true, nil
		}
	}
	return false, apperrors.NotFound("broadcast")
}

func (f *fakeBroadcastStore) SoftDeleteForUser(broadcastID, userID uint, at time.Time) error {
	for _, r := range f.recipients {
		if r.BroadcastMessageID == broadcastID && r.UserID == userID {
			r.IsDeletedByUser = true
			t := at
			r.DeletedByUserAt = &t
		}
	}
	return nil
}

func (f *fakeBroadcastStore) ListForUser(userID uint, now time.Time, limit, offset int) ([]*model.BroadcastMessage, error) {
	var out []*model.BroadcastMessage
	for _, r := range f.recipients {
		if r.UserID != userID || r.IsDeletedByUser {
			continue
		}
		b := f.broadcasts[r.BroadcastMessageID]
		if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			continue
		}
		out = append(out, b)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAuditStore struct {
	entries []*model.AdminMessageAccessLog
}

func (f *fakeAuditStore) Create(entry *model.AdminMessageAccessLog) error {
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) ListByConversation(conversationID uint, limit, offset int) ([]*model.AdminMessageAccessLog, error) {
	var out []*model.AdminMessageAccessLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].ConversationID == conversationID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}
