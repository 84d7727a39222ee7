package model

import (
	"time"

	"gorm.io/gorm"
)

// Relationship facts are owned by the scheduling/enrolment subsystems and
// are strictly read-only inputs to the authorization engine. They are
// modelled here so the engine can query them; the messaging core never
// writes these tables.

// StudentGroup is a named class/section of students.
type StudentGroup struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (StudentGroup) TableName() string { return "student_group" }

// LessonAssignment links a teacher to a student for individual lessons
// within an effective window. A nil EffectiveTo means open-ended.
type LessonAssignment struct {
	ID            uint      `gorm:"primaryKey"`
	TeacherID     uint      `gorm:"not null;index:idx_lesson_teacher_student"`
	StudentID     uint      `gorm:"not null;index:idx_lesson_teacher_student;index"`
	EffectiveFrom time.Time `gorm:"not null"`
	EffectiveTo   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (LessonAssignment) TableName() string { return "lesson_assignment" }

// CoversDate reports whether the assignment's effective window contains d.
func (a *LessonAssignment) CoversDate(d time.Time) bool {
	if d.Before(a.EffectiveFrom) {
		return false
	}
	return a.EffectiveTo == nil || !d.After(*a.EffectiveTo)
}

// GroupLessonAssignment schedules a teacher for a student group within an
// effective window.
type GroupLessonAssignment struct {
	ID             uint      `gorm:"primaryKey"`
	TeacherID      uint      `gorm:"not null;index"`
	StudentGroupID uint      `gorm:"not null;index"`
	EffectiveFrom  time.Time `gorm:"not null"`
	EffectiveTo    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (GroupLessonAssignment) TableName() string { return "group_lesson_assignment" }

// GroupMembership records a student's membership in a group. A non-nil
// LeftAt means the student no longer belongs.
type GroupMembership struct {
	ID             uint      `gorm:"primaryKey"`
	StudentGroupID uint      `gorm:"not null;index:idx_membership_group_student"`
	StudentID      uint      `gorm:"not null;index:idx_membership_group_student;index"`
	JoinedAt       time.Time `gorm:"not null"`
	LeftAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (GroupMembership) TableName() string { return "group_membership" }

// CounselorAssignment links a counselor to a student of record.
type CounselorAssignment struct {
	ID          uint `gorm:"primaryKey"`
	CounselorID uint `gorm:"not null;index:idx_counselor_student"`
	StudentID   uint `gorm:"not null;index:idx_counselor_student;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (CounselorAssignment) TableName() string { return "counselor_assignment" }

// ParentLink connects a parent account to a student account.
type ParentLink struct {
	ID        uint `gorm:"primaryKey"`
	ParentID  uint `gorm:"not null;index:idx_parent_student"`
	StudentID uint `gorm:"not null;index:idx_parent_student;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (ParentLink) TableName() string { return "parent_link" }
