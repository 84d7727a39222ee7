package repository

import (
	"time"

	"school-messaging/internal/model"

	"gorm.io/gorm"
)

// RelationshipRepository answers the read-only relationship-fact queries
// the authorization engine walks: lesson assignments, group schedules,
// memberships, counselor assignments and parent links. The messaging core
// never writes these tables.
type RelationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository creates a RelationshipRepository.
func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// effectiveWindow scopes a query to rows whose window covers asOf.
func effectiveWindow(q *gorm.DB, asOf time.Time) *gorm.DB {
	return q.Where("effective_from <= ?", asOf).
		Where("effective_to IS NULL OR effective_to >= ?", asOf)
}

// HasActiveLesson reports whether a currently-effective individual lesson
// links the teacher and student.
func (r *RelationshipRepository) HasActiveLesson(teacherID, studentID uint, asOf time.Time) (bool, error) {
	var count int64
	q := r.db.Model(&model.LessonAssignment{}).
		Where("teacher_id = ? AND student_id = ?", teacherID, studentID)
	err := effectiveWindow(q, asOf).Count(&count).Error
	return count > 0, err
}

// HasAnyLesson reports whether any lesson assignment, past or present,
// links the teacher and student. Soft-deleted rows stay excluded.
func (r *RelationshipRepository) HasAnyLesson(teacherID, studentID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.LessonAssignment{}).
		Where("teacher_id = ? AND student_id = ?", teacherID, studentID).
		Count(&count).Error
	return count > 0, err
}

// TeacherGroupIDs lists the groups the teacher is scheduled for as of the
// given date.
func (r *RelationshipRepository) TeacherGroupIDs(teacherID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	q := r.db.Model(&model.GroupLessonAssignment{}).
		Where("teacher_id = ?", teacherID)
	err := effectiveWindow(q, asOf).Distinct().Pluck("student_group_id", &ids).Error
	return ids, err
}

// GroupTeacherIDs lists the teachers scheduled for a group as of the given
// date.
func (r *RelationshipRepository) GroupTeacherIDs(groupID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	q := r.db.Model(&model.GroupLessonAssignment{}).
		Where("student_group_id = ?", groupID)
	err := effectiveWindow(q, asOf).Distinct().Pluck("teacher_id", &ids).Error
	return ids, err
}

// StudentGroupIDs lists the groups the student currently belongs to.
func (r *RelationshipRepository) StudentGroupIDs(studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.GroupMembership{}).
		Where("student_id = ? AND left_at IS NULL", studentID).
		Distinct().Pluck("student_group_id", &ids).Error
	return ids, err
}

// GroupMemberIDs lists the students currently in a group.
func (r *RelationshipRepository) GroupMemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.GroupMembership{}).
		Where("student_group_id = ? AND left_at IS NULL", groupID).
		Distinct().Pluck("student_id", &ids).Error
	return ids, err
}

// GroupExists reports whether the group exists and is not deleted.
func (r *RelationshipRepository) GroupExists(groupID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.StudentGroup{}).Where("id = ?", groupID).Count(&count).Error
	return count > 0, err
}

// GroupName returns the group's display name, empty when absent.
func (r *RelationshipRepository) GroupName(groupID uint) (string, error) {
	var g model.StudentGroup
	if err := r.db.First(&g, groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return g.Name, nil
}

// AllGroupIDs lists every existing group.
func (r *RelationshipRepository) AllGroupIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.StudentGroup{}).Pluck("id", &ids).Error
	return ids, err
}

// IsCounselorOf reports whether the counselor is assigned to the student.
func (r *RelationshipRepository) IsCounselorOf(counselorID, studentID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.CounselorAssignment{}).
		Where("counselor_id = ? AND student_id = ?", counselorID, studentID).
		Count(&count).Error
	return count > 0, err
}

// CounselorStudentIDs lists the students under the counselor's assignment.
func (r *RelationshipRepository) CounselorStudentIDs(counselorID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.CounselorAssignment{}).
		Where("counselor_id = ?", counselorID).
		Distinct().Pluck("student_id", &ids).Error
	return ids, err
}

// CounselorIDsOf lists the counselors assigned to the student.
func (r *RelationshipRepository) CounselorIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.CounselorAssignment{}).
		Where("student_id = ?", studentID).
		Distinct().Pluck("counselor_id", &ids).Error
	return ids, err
}

// ChildIDsOf lists the students linked to the parent.
func (r *RelationshipRepository) ChildIDsOf(parentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.ParentLink{}).
		Where("parent_id = ?", parentID).
		Distinct().Pluck("student_id", &ids).Error
	return ids, err
}

// ParentIDsOf lists the parents linked to the student.
func (r *RelationshipRepository) ParentIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.ParentLink{}).
		Where("student_id = ?", studentID).
		Distinct().Pluck("parent_id", &ids).Error
	return ids, err
}

// TeacherStudentIDs lists students the teacher individually teaches as of
// the given date.
func (r *RelationshipRepository) TeacherStudentIDs(teacherID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	q := r.db.Model(&model.LessonAssignment{}).
		Where("teacher_id = ?", teacherID)
	err := effectiveWindow(q, asOf).Distinct().Pluck("student_id", &ids).Error
	return ids, err
}

// ActiveLessonTeacherIDsOf lists the student's currently-effective
// individual-lesson teachers.
func (r *RelationshipRepository) ActiveLessonTeacherIDsOf(studentID uint, asOf time.Time) ([]uint, error) {
	var ids []uint
	q := r.db.Model(&model.LessonAssignment{}).
		Where("student_id = ?", studentID)
	err := effectiveWindow(q, asOf).Distinct().Pluck("teacher_id", &ids).Error
	return ids, err
}

// LessonTeacherIDsOf lists every teacher that ever individually taught the
// student. Historical teachers remain reachable for parents.
func (r *RelationshipRepository) LessonTeacherIDsOf(studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.LessonAssignment{}).
		Where("student_id = ?", studentID).
		Distinct().Pluck("teacher_id", &ids).Error
	return ids, err
}
