package testutil

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/chat"
	"github.com/trezcool/practicehub/core/session"
)

var (
	errNotFound       = errors.New("not found")
	errUsernameExists = errors.New("username already taken")
	errEmailExists    = errors.New("email already registered")
)

type (
	userRow struct {
		session.UserProfile
		PasswordHash []byte
		Revoked      bool
	}

	courseRow struct {
		ID        core.ID
		Title     string
		TeacherID core.ID
	}

	enrollmentRow struct {
		ID        core.ID
		CourseID  core.ID
		StudentID core.ID
		Status    chat.EnrollmentStatus
	}

	messageRow struct {
		chat.Message
		Read bool // by the other party
	}

	// db is the in-memory store behind the fake API.
	db struct {
		mu          sync.RWMutex
		pkCount     int
		users       map[core.ID]*userRow
		courses     map[core.ID]*courseRow
		enrollments map[core.ID]*enrollmentRow
		messages    []*messageRow
	}
)

func newDB() *db {
	return &db{
		users:       make(map[core.ID]*userRow),
		courses:     make(map[core.ID]*courseRow),
		enrollments: make(map[core.ID]*enrollmentRow),
	}
}

func (d *db) nextID() core.ID {
	d.pkCount++
	return core.ID(strconv.Itoa(d.pkCount))
}

func (d *db) createUser(usr session.UserProfile, pwd string) (session.UserProfile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		return session.UserProfile{}, errors.Wrap(err, "hashing password")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if usr.Username != "" && u.Username == usr.Username {
			return session.UserProfile{}, errUsernameExists
		}
		if usr.Email != "" && u.Email == usr.Email {
			return session.UserProfile{}, errEmailExists
		}
	}
	usr.ID = d.nextID()
	d.users[usr.ID] = &userRow{UserProfile: usr, PasswordHash: hash}
	return usr, nil
}

func (d *db) userByUsernameOrEmail(username string) (userRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if username != "" && (u.Username == username || u.Email == username) {
			return *u, nil
		}
	}
	return userRow{}, errNotFound
}

func (d *db) userByID(id core.ID) (userRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if u, ok := d.users[id]; ok {
		return *u, nil
	}
	return userRow{}, errNotFound
}

func (d *db) revokeUser(id core.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.Revoked = true
	}
}

func (d *db) createCourse(title string, teacherID core.ID) courseRow {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := &courseRow{ID: d.nextID(), Title: title, TeacherID: teacherID}
	d.courses[c.ID] = c
	return *c
}

func (d *db) enroll(courseID, studentID core.ID, status chat.EnrollmentStatus) enrollmentRow {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := &enrollmentRow{ID: d.nextID(), CourseID: courseID, StudentID: studentID, Status: status}
	d.enrollments[e.ID] = e
	return *e
}

func (d *db) courseByID(id core.ID) (courseRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if c, ok := d.courses[id]; ok {
		return *c, nil
	}
	return courseRow{}, errNotFound
}

func (d *db) enrollmentByID(id core.ID) (enrollmentRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if e, ok := d.enrollments[id]; ok {
		return *e, nil
	}
	return enrollmentRow{}, errNotFound
}

// courseList returns every course with the student's enrollment, ordered by id.
func (d *db) courseList(studentID core.ID) []chat.CourseEnrollment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]chat.CourseEnrollment, 0, len(d.courses))
	for _, c := range d.courses {
		ce := chat.CourseEnrollment{ID: c.ID, Title: c.Title}
		for _, e := range d.enrollments {
			if e.CourseID == c.ID && e.StudentID == studentID {
				enr := chat.Enrollment{ID: e.ID, CourseID: e.CourseID, StudentID: e.StudentID, Status: e.Status}
				ce.Enrollment = &enr
				break
			}
		}
		list = append(list, ce)
	}
	sort.Slice(list, func(i, j int) bool { return lessID(list[i].ID, list[j].ID) })
	return list
}

// roster returns the course with its enrollments, unread counts being from the teacher's side.
func (d *db) roster(c courseRow) chat.Course {
	d.mu.RLock()
	defer d.mu.RUnlock()

	course := chat.Course{ID: c.ID, Title: c.Title, Enrollments: []chat.Enrollment{}}
	for _, e := range d.enrollments {
		if e.CourseID != c.ID {
			continue
		}
		enr := chat.Enrollment{ID: e.ID, CourseID: e.CourseID, StudentID: e.StudentID, Status: e.Status}
		if u, ok := d.users[e.StudentID]; ok {
			enr.Student = &chat.Student{
				ID:        u.ID,
				Username:  u.Username,
				Email:     u.Email,
				FirstName: u.FirstName,
				LastName:  u.LastName,
			}
		}
		for _, m := range d.messages {
			if m.EnrollmentID != e.ID {
				continue
			}
			enr.Messages = []chat.Message{m.Message} // keep the latest only
			if m.SenderType == chat.SenderStudent && !m.Read {
				enr.Count.Messages++
			}
		}
		course.Enrollments = append(course.Enrollments, enr)
	}
	sort.Slice(course.Enrollments, func(i, j int) bool {
		return lessID(course.Enrollments[i].ID, course.Enrollments[j].ID)
	})
	return course
}

func (d *db) messagesOf(enrollmentID core.ID) []chat.Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, m := range d.messages {
		if m.EnrollmentID == enrollmentID {
			msgs = append(msgs, m.Message)
		}
	}
	return msgs
}

func (d *db) addMessage(enrollmentID core.ID, sender chat.SenderType, senderID core.ID, text string) chat.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	msg := chat.Message{
		ID:           core.ID(uuid.NewString()),
		EnrollmentID: enrollmentID,
		SenderType:   sender,
		SenderID:     senderID,
		Message:      text,
		CreatedAt:    time.Now().UTC(),
	}
	d.messages = append(d.messages, &messageRow{Message: msg})
	return msg
}

// markRead marks the messages written by the other party as read.
func (d *db) markRead(enrollmentID core.ID, reader chat.SenderType) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int
	for _, m := range d.messages {
		if m.EnrollmentID == enrollmentID && m.SenderType != reader && !m.Read {
			m.Read = true
			n++
		}
	}
	return n
}

func lessID(a, b core.ID) bool {
	ai, aErr := strconv.Atoi(a.String())
	bi, bErr := strconv.Atoi(b.String())
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
