package service

import (
	"time"

	"school-messaging/internal/model"
)

// RelationshipDirectory is the read-only view of the relationship facts
// (lesson assignments, group schedules, memberships, counselor assignments,
// parent links) owned by other subsystems.
type RelationshipDirectory interface {
	HasActiveLesson(teacherID, studentID uint, asOf time.Time) (bool, error)
	HasAnyLesson(teacherID, studentID uint) (bool, error)
	TeacherGroupIDs(teacherID uint, asOf time.Time) ([]uint, error)
	GroupTeacherIDs(groupID uint, asOf time.Time) ([]uint, error)
	StudentGroupIDs(studentID uint) ([]uint, error)
	GroupMemberIDs(groupID uint) ([]uint, error)
	GroupExists(groupID uint) (bool, error)
	GroupName(groupID uint) (string, error)
	AllGroupIDs() ([]uint, error)
	IsCounselorOf(counselorID, studentID uint) (bool, error)
	CounselorStudentIDs(counselorID uint) ([]uint, error)
	CounselorIDsOf(studentID uint) ([]uint, error)
	ChildIDsOf(parentID uint) ([]uint, error)
	ParentIDsOf(studentID uint) ([]uint, error)
	TeacherStudentIDs(teacherID uint, asOf time.Time) ([]uint, error)
	ActiveLessonTeacherIDsOf(studentID uint, asOf time.Time) ([]uint, error)
	LessonTeacherIDsOf(studentID uint) ([]uint, error)
}

// UserDirectory is the identity lookup the engine needs: accounts and
// role membership.
type UserDirectory interface {
	GetByID(id uint) (*model.User, error)
	UsersInRole(role model.Role) ([]uint, error)
	AllUserIDs() ([]uint, error)
}

// ParticipantDirectory answers whether a user belongs to a conversation.
type ParticipantDirectory interface {
	GetParticipant(conversationID, userID uint) (*model.ConversationParticipant, error)
}

// Denial reasons surfaced verbatim to callers.
const (
	reasonSelfMessage     = "you cannot send a message to yourself"
	reasonRolePair        = "messaging between these roles is not permitted"
	reasonNoTeacherLink   = "you may only message students you currently teach or counsel"
	reasonNoStudentLink   = "you may only message teachers who currently teach or counsel you"
	reasonNoSharedGroup   = "you may only message students who share a group with you"
	reasonNoParentLink    = "you may only message parents of students you counsel"
	reasonNoChildTeacher  = "you may only message your children's teachers and counselors"
	reasonNoCounselee     = "you may only message students and parents under your counsel"
	reasonNotParticipant  = "you are not a participant of this conversation"
	reasonLeftConvo       = "you have left this conversation"
	reasonNotGroupMember  = "you are not a member or teacher of this group"
	reasonAdminsOnly      = "only administrators may send broadcast messages"
	reasonUnknownUser     = "user account not found"
)

// rolePair keys the rule table by (sender role, recipient role).
type rolePair struct {
	sender    model.Role
	recipient model.Role
}

// pairRule decides one directed role combination. Rules are pure over the
// directory queries and take the as-of date explicitly so time-windowed
// eligibility is testable without wall-clock mocking.
type pairRule func(senderID, recipientID uint, asOf time.Time) (bool, string, error)

// AuthorizationService computes who may message whom by walking
// relationship facts. Administrators bypass every rule; every denial
// carries a human-readable reason.
type AuthorizationService struct {
	rels  RelationshipDirectory
	users UserDirectory
	rules map[rolePair]pairRule
}

// NewAuthorizationService builds the engine and its rule table.
func NewAuthorizationService(rels RelationshipDirectory, users UserDirectory) *AuthorizationService {
	s := &AuthorizationService{rels: rels, users: users}
	s.rules = map[rolePair]pairRule{
		{model.RoleTeacher, model.RoleStudent}:   s.teacherToStudent,
		{model.RoleStudent, model.RoleTeacher}:   s.studentToTeacher,
		{model.RoleTeacher, model.RoleParent}:    s.teacherToParent,
		{model.RoleStudent, model.RoleStudent}:   s.studentToStudent,
		{model.RoleParent, model.RoleTeacher}:    s.parentToTeacher,
		{model.RoleCounselor, model.RoleStudent}: s.counselorToStudent,
		{model.RoleCounselor, model.RoleParent}:  s.counselorToParent,
		{model.RoleStudent, model.RoleCounselor}: s.studentToCounselor,
		{model.RoleParent, model.RoleCounselor}:  s.parentToCounselor,
	}
	return s
}

// CanMessageUser evaluates the directed rule for the pair as of the given
// date. Eligibility is not symmetric in general: each direction runs its
// own rule.
func (s *AuthorizationService) CanMessageUser(senderID, recipientID uint, asOf time.Time) (bool, string, error) {
	if senderID == recipientID {
		return false, reasonSelfMessage, nil
	}

	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return false, reasonUnknownUser, err
	}
	if sender.Role == model.RoleAdmin {
		return true, "", nil
	}

	recipient, err := s.users.GetByID(recipientID)
	if err != nil {
		return false, reasonUnknownUser, err
	}

	rule, ok := s.rules[rolePair{sender.Role, recipient.Role}]
	if !ok {
		return false, reasonRolePair, nil
	}
	return rule(senderID, recipientID, asOf)
}

// CanMessageInConversation allows active participants and administrators.
func (s *AuthorizationService) CanMessageInConversation(userID, conversationID uint, participants ParticipantDirectory) (bool, string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return false, reasonUnknownUser, err
	}
	if user.Role == model.RoleAdmin {
		return true, "", nil
	}

	p, err := participants.GetParticipant(conversationID, userID)
	if err != nil {
		return false, "", err
	}
	if p == nil {
		return false, reasonNotParticipant, nil
	}
	if !p.IsActive() {
		return false, reasonLeftConvo, nil
	}
	return true, "", nil
}

// CanMessageGroup allows teachers with an effective group assignment,
// current student members and administrators.
func (s *AuthorizationService) CanMessageGroup(userID, groupID uint, asOf time.Time) (bool, string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return false, reasonUnknownUser, err
	}
	if user.Role == model.RoleAdmin {
		return true, "", nil
	}

	switch user.Role {
	case model.RoleTeacher:
		groups, err := s.rels.TeacherGroupIDs(userID, asOf)
		if err != nil {
			return false, "", err
		}
		if containsID(groups, groupID) {
			return true, "", nil
		}
	case model.RoleStudent:
		groups, err := s.rels.StudentGroupIDs(userID)
		if err != nil {
			return false, "", err
		}
		if containsID(groups, groupID) {
			return true, "", nil
		}
	}
	return false, reasonNotGroupMember, nil
}

// CanBroadcast restricts broadcast sending to administrators.
func (s *AuthorizationService) CanBroadcast(userID uint) (bool, string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return false, reasonUnknownUser, err
	}
	if user.Role != model.RoleAdmin {
		return false, reasonAdminsOnly, nil
	}
	return true, "", nil
}

// teacherToStudent: a currently-effective individual lesson, a shared
// group the teacher is scheduled for, or a counselor assignment.
func (s *AuthorizationService) teacherToStudent(teacherID, studentID uint, asOf time.Time) (bool, string, error) {
	has, err := s.rels.HasActiveLesson(teacherID, studentID, asOf)
	if err != nil {
		return false, "", err
	}
	if has {
		return true, "", nil
	}

	shared, err := s.sharesTaughtGroup(teacherID, studentID, asOf)
	if err != nil {
		return false, "", err
	}
	if shared {
		return true, "", nil
	}

	counsels, err := s.rels.IsCounselorOf(teacherID, studentID)
	if err != nil {
		return false, "", err
	}
	if counsels {
		return true, "", nil
	}
	return false, reasonNoTeacherLink, nil
}

// studentToTeacher mirrors teacherToStudent: the student must satisfy the
// same lesson/group/counselor test against that teacher.
func (s *AuthorizationService) studentToTeacher(studentID, teacherID uint, asOf time.Time) (bool, string, error) {
	allowed, _, err := s.teacherToStudent(teacherID, studentID, asOf)
	if err != nil {
		return false, "", err
	}
	if allowed {
		return true, "", nil
	}
	return false, reasonNoStudentLink, nil
}

// teacherToParent: only counselors of record reach parents.
func (s *AuthorizationService) teacherToParent(teacherID, parentID uint, _ time.Time) (bool, string, error) {
	children, err := s.rels.ChildIDsOf(parentID)
	if err != nil {
		return false, "", err
	}
	for _, childID := range children {
		counsels, err := s.rels.IsCounselorOf(teacherID, childID)
		if err != nil {
			return false, "", err
		}
		if counsels {
			return true, "", nil
		}
	}
	return false, reasonNoParentLink, nil
}

// studentToStudent: both must currently share at least one group.
func (s *AuthorizationService) studentToStudent(senderID, recipientID uint, _ time.Time) (bool, string, error) {
	senderGroups, err := s.rels.StudentGroupIDs(senderID)
	if err != nil {
		return false, "", err
	}
	recipientGroups, err := s.rels.StudentGroupIDs(recipientID)
	if err != nil {
		return false, "", err
	}
	for _, g := range senderGroups {
		if containsID(recipientGroups, g) {
			return true, "", nil
		}
	}
	return false, reasonNoSharedGroup, nil
}

// parentToTeacher: counselor of any linked child, any individual-lesson
// teacher of a child (historical teachers stay reachable, so no effective
// filter), or a group teacher of a group a child currently belongs to.
func (s *AuthorizationService) parentToTeacher(parentID, teacherID uint, asOf time.Time) (bool, string, error) {
	children, err := s.rels.ChildIDsOf(parentID)
	if err != nil {
		return false, "", err
	}
	for _, childID := range children {
		counsels, err := s.rels.IsCounselorOf(teacherID, childID)
		if err != nil {
			return false, "", err
		}
		if counsels {
			return true, "", nil
		}

		taught, err := s.rels.HasAnyLesson(teacherID, childID)
		if err != nil {
			return false, "", err
		}
		if taught {
			return true, "", nil
		}

		groups, err := s.rels.StudentGroupIDs(childID)
		if err != nil {
			return false, "", err
		}
		for _, groupID := range groups {
			teachers, err := s.rels.GroupTeacherIDs(groupID, asOf)
			if err != nil {
				return false, "", err
			}
			if containsID(teachers, teacherID) {
				return true, "", nil
			}
		}
	}
	return false, reasonNoChildTeacher, nil
}

// counselorToStudent: students under the counselor's assignment plus any
// student the counselor individually teaches.
func (s *AuthorizationService) counselorToStudent(counselorID, studentID uint, asOf time.Time) (bool, string, error) {
	counsels, err := s.rels.IsCounselorOf(counselorID, studentID)
	if err != nil {
		return false, "", err
	}
	if counsels {
		return true, "", nil
	}

	teaches, err := s.rels.HasActiveLesson(counselorID, studentID, asOf)
	if err != nil {
		return false, "", err
	}
	if teaches {
		return true, "", nil
	}
	return false, reasonNoCounselee, nil
}

// studentToCounselor mirrors counselorToStudent.
func (s *AuthorizationService) studentToCounselor(studentID, counselorID uint, asOf time.Time) (bool, string, error) {
	allowed, _, err := s.counselorToStudent(counselorID, studentID, asOf)
	if err != nil {
		return false, "", err
	}
	if allowed {
		return true, "", nil
	}
	return false, reasonNoStudentLink, nil
}

// parentToCounselor mirrors counselorToParent.
func (s *AuthorizationService) parentToCounselor(parentID, counselorID uint, asOf time.Time) (bool, string, error) {
	allowed, _, err := s.counselorToParent(counselorID, parentID, asOf)
	if err != nil {
		return false, "", err
	}
	if allowed {
		return true, "", nil
	}
	return false, reasonNoChildTeacher, nil
}

// counselorToParent: parents of counseled students.
func (s *AuthorizationService) counselorToParent(counselorID, parentID uint, _ time.Time) (bool, string, error) {
	children, err := s.rels.ChildIDsOf(parentID)
	if err != nil {
		return false, "", err
	}
	for _, childID := range children {
		counsels, err := s.rels.IsCounselorOf(counselorID, childID)
		if err != nil {
			return false, "", err
		}
		if counsels {
			return true, "", nil
		}
	}
	return false, reasonNoCounselee, nil
}

// sharesTaughtGroup reports whether the student is an active member of a
// group the teacher is currently scheduled for.
func (s *AuthorizationService) sharesTaughtGroup(teacherID, studentID uint, asOf time.Time) (bool, error) {
	taughtGroups, err := s.rels.TeacherGroupIDs(teacherID, asOf)
	if err != nil {
		return false, err
	}
	if len(taughtGroups) == 0 {
		return false, nil
	}
	studentGroups, err := s.rels.StudentGroupIDs(studentID)
	if err != nil {
		return false, err
	}
	for _, g := range taughtGroups {
		if containsID(studentGroups, g) {
			return true, nil
		}
	}
	return false, nil
}

// AllowedRecipients enumerates the users the asker may start a direct
// conversation with, walking the rules from the asker's role instead of
// testing every account pairwise.
func (s *AuthorizationService) AllowedRecipients(userID uint, asOf time.Time) ([]uint, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	set := make(map[uint]bool)

	switch user.Role {
	case model.RoleAdmin:
		all, err := s.users.AllUserIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range all {
			set[id] = true
		}

	case model.RoleTeacher:
		if err := s.collectTeacherRecipients(userID, asOf, set); err != nil {
			return nil, err
		}

	case model.RoleStudent:
		if err := s.collectStudentRecipients(userID, asOf, set); err != nil {
			return nil, err
		}

	case model.RoleParent:
		if err := s.collectParentRecipients(userID, asOf, set); err != nil {
			return nil, err
		}

	case model.RoleCounselor:
		if err := s.collectCounselorRecipients(userID, asOf, set); err != nil {
			return nil, err
		}
	}

	delete(set, userID)
	return setToSlice(set), nil
}

func (s *AuthorizationService) collectTeacherRecipients(teacherID uint, asOf time.Time, set map[uint]bool) error {
	students, err := s.rels.TeacherStudentIDs(teacherID, asOf)
	if err != nil {
		return err
	}
	addAll(set, students)

	groups, err := s.rels.TeacherGroupIDs(teacherID, asOf)
	if err != nil {
		return err
	}
	for _, groupID := range groups {
		members, err := s.rels.GroupMemberIDs(groupID)
		if err != nil {
			return err
		}
		addAll(set, members)
	}

	// A teacher may also be a counselor of record; counseled students
	// and their parents become reachable.
	counselees, err := s.rels.CounselorStudentIDs(teacherID)
	if err != nil {
		return err
	}
	addAll(set, counselees)
	for _, studentID := range counselees {
		parents, err := s.rels.ParentIDsOf(studentID)
		if err != nil {
			return err
		}
		addAll(set, parents)
	}
	return nil
}

func (s *AuthorizationService) collectStudentRecipients(studentID uint, asOf time.Time, set map[uint]bool) error {
	teachers, err := s.rels.ActiveLessonTeacherIDsOf(studentID, asOf)
	if err != nil {
		return err
	}
	addAll(set, teachers)

	groups, err := s.rels.StudentGroupIDs(studentID)
	if err != nil {
		return err
	}
	for _, groupID := range groups {
		groupTeachers, err := s.rels.GroupTeacherIDs(groupID, asOf)
		if err != nil {
			return err
		}
		addAll(set, groupTeachers)

		members, err := s.rels.GroupMemberIDs(groupID)
		if err != nil {
			return err
		}
		addAll(set, members)
	}

	counselors, err := s.rels.CounselorIDsOf(studentID)
	if err != nil {
		return err
	}
	addAll(set, counselors)
	return nil
}

func (s *AuthorizationService) collectParentRecipients(parentID uint, asOf time.Time, set map[uint]bool) error {
	children, err := s.rels.ChildIDsOf(parentID)
	if err != nil {
		return err
	}
	for _, childID := range children {
		counselors, err := s.rels.CounselorIDsOf(childID)
		if err != nil {
			return err
		}
		addAll(set, counselors)

		teachers, err := s.rels.LessonTeacherIDsOf(childID)
		if err != nil {
			return err
		}
		addAll(set, teachers)

		groups, err := s.rels.StudentGroupIDs(childID)
		if err != nil {
			return err
		}
		for _, groupID := range groups {
			groupTeachers, err := s.rels.GroupTeacherIDs(groupID, asOf)
			if err != nil {
				return err
			}
			addAll(set, groupTeachers)
		}
	}
	return nil
}

func (s *AuthorizationService) collectCounselorRecipients(counselorID uint, asOf time.Time, set map[uint]bool) error {
	counselees, err := s.rels.CounselorStudentIDs(counselorID)
	if err != nil {
		return err
	}
	addAll(set, counselees)
	for _, studentID := range counselees {
		parents, err := s.rels.ParentIDsOf(studentID)
		if err != nil {
			return err
		}
		addAll(set, parents)
	}

	taught, err := s.rels.TeacherStudentIDs(counselorID, asOf)
	if err != nil {
		return err
	}
	addAll(set, taught)
	return nil
}

// AllowedGroups enumerates the groups the asker may message.
func (s *AuthorizationService) AllowedGroups(userID uint, asOf time.Time) ([]uint, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	switch user.Role {
	case model.RoleAdmin:
		return s.rels.AllGroupIDs()
	case model.RoleTeacher:
		return s.rels.TeacherGroupIDs(userID, asOf)
	case model.RoleStudent:
		return s.rels.StudentGroupIDs(userID)
	}
	return nil, nil
}

func containsID(ids []uint, id uint) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func addAll(set map[uint]bool, ids []uint) {
	for _, id := range ids {
		set[id] = true
	}
}

func setToSlice(set map[uint]bool) []uint {
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
