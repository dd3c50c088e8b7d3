package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
)

// OpenStudentChat opens the signed-in student's thread of a course.
func OpenStudentChat(ctx context.Context, api API, viewer Viewer, courseID core.ID, opts Options) (*Thread, error) {
	courses, err := api.CourseEnrollments(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving enrollment")
	}

	for _, c := range courses {
		if c.ID != courseID {
			continue
		}
		if c.Enrollment == nil || c.Enrollment.ID.IsZero() {
			break
		}
		t := NewThread(api, viewer, c.Enrollment.ID, opts)
		if err := t.Open(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, ErrNotEnrolled
}

// TeacherInbox holds the threads of one course and at most one open thread.
type TeacherInbox struct {
	api      API
	viewer   Viewer
	courseID core.ID
	opts     Options

	mu     sync.Mutex
	course Course
	active *Thread
}

func NewTeacherInbox(api API, viewer Viewer, courseID core.ID, opts Options) *TeacherInbox {
	return &TeacherInbox{api: api, viewer: viewer, courseID: courseID, opts: opts}
}

// Load fetches the course roster.
func (in *TeacherInbox) Load(ctx context.Context) error {
	course, err := in.api.Course(ctx, in.courseID)
	if err != nil {
		return errors.Wrapf(err, "loading course %s", in.courseID)
	}
	in.mu.Lock()
	in.course = course
	in.mu.Unlock()
	return nil
}

func (in *TeacherInbox) Course() Course {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.course
}

// Threads lists the roster, one thread per enrollment.
func (in *TeacherInbox) Threads() []Enrollment {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Enrollment(nil), in.course.Enrollments...)
}

// Switch closes the active thread, stopping its polling, and opens enrollmentID instead.
// When the new thread fails to load, no thread is active.
func (in *TeacherInbox) Switch(ctx context.Context, enrollmentID core.ID) (*Thread, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.hasThread(enrollmentID) {
		return nil, ErrUnknownThread
	}
	if in.active != nil {
		in.active.Close()
		in.active = nil
	}

	t := NewThread(in.api, in.viewer, enrollmentID, in.opts)
	if err := t.Open(ctx); err != nil {
		return nil, err
	}
	in.active = t
	return t, nil
}

func (in *TeacherInbox) hasThread(enrollmentID core.ID) bool {
	for _, e := range in.course.Enrollments {
		if e.ID == enrollmentID {
			return true
		}
	}
	return false
}

func (in *TeacherInbox) Active() *Thread {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Close closes the active thread, if any.
func (in *TeacherInbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active != nil {
		in.active.Close()
		in.active = nil
	}
}
