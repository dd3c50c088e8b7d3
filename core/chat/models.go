package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
)

var (
	ErrNotEnrolled   = errors.New("not enrolled in this course")
	ErrUnknownThread = errors.New("no such thread in this course")
	ErrThreadOpen    = errors.New("thread already open")
)

type SenderType string

const (
	SenderStudent SenderType = "STUDENT"
	SenderTeacher SenderType = "TEACHER"
)

// SenderFor returns the sender type of messages written by role; admins do not chat.
func SenderFor(role session.Role) SenderType {
	switch role {
	case session.RoleStudent:
		return SenderStudent
	case session.RoleTeacher:
		return SenderTeacher
	case session.RoleNone, session.RoleAdmin:
		return ""
	}
	return ""
}

type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "PENDING"
	EnrollmentApproved EnrollmentStatus = "APPROVED"
	EnrollmentRejected EnrollmentStatus = "REJECTED"
)

type (
	// Message is immutable once created. Lists come ordered by CreatedAt, oldest first.
	Message struct {
		ID           core.ID    `json:"id"`
		EnrollmentID core.ID    `json:"enrollmentId,omitempty"`
		SenderType   SenderType `json:"senderType"`
		SenderID     core.ID    `json:"senderId"`
		Message      string     `json:"message"`
		CreatedAt    time.Time  `json:"createdAt"`
	}

	Student struct {
		ID        core.ID `json:"id"`
		Username  string  `json:"username,omitempty"`
		Email     string  `json:"email,omitempty"`
		FirstName string  `json:"firstName,omitempty"`
		LastName  string  `json:"lastName,omitempty"`
	}

	Enrollment struct {
		ID        core.ID          `json:"id"`
		CourseID  core.ID          `json:"courseId,omitempty"`
		StudentID core.ID          `json:"studentId,omitempty"`
		Status    EnrollmentStatus `json:"status"`
		Student   *Student         `json:"studentUser,omitempty"`
		Messages  []Message        `json:"messages,omitempty"` // latest messages, as a preview
		Count     struct {
			Messages int `json:"messages"`
		} `json:"_count"`
	}

	// Course is a course with its full roster, as seen by its teacher.
	Course struct {
		ID          core.ID      `json:"id"`
		Title       string       `json:"title"`
		Description string       `json:"description,omitempty"`
		Enrollments []Enrollment `json:"enrollments"`
	}

	// CourseEnrollment is a course listed for a student, with the student's enrollment if any.
	CourseEnrollment struct {
		ID          core.ID     `json:"id"`
		Title       string      `json:"title"`
		Description string      `json:"description,omitempty"`
		Enrollment  *Enrollment `json:"enrollment,omitempty"`
	}
)

func (s Student) DisplayName() string {
	if name := core.CleanString(s.FirstName + " " + s.LastName); name != "" {
		return name
	}
	if s.Username != "" {
		return s.Username
	}
	return s.Email
}

// Unread is the number of messages the viewer has not read yet.
func (e Enrollment) Unread() int { return e.Count.Messages }

type (
	// API is the part of the PracticeHub API used by chat views.
	API interface {
		CourseEnrollments(ctx context.Context) ([]CourseEnrollment, error)
		Course(ctx context.Context, id core.ID) (Course, error)
		Messages(ctx context.Context, enrollmentID core.ID) ([]Message, error)
		SendMessage(ctx context.Context, enrollmentID core.ID, text string) error
		MarkRead(ctx context.Context, enrollmentID core.ID) error
	}

	// Viewer tells who is looking at the thread.
	Viewer interface {
		Current() session.Session
	}
)
