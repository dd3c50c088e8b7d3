package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
	"github.com/trezcool/practicehub/tests"
)

// syncBuffer is written by the views and the polling goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliEnv struct {
	fake *testutil.FakeAPI
	conf *core.Config
}

// setup returns a fake API and a config persisting credentials in a temporary directory, so
// successive runs behave like successive processes.
func setup(t *testing.T) cliEnv {
	fake := testutil.NewFakeAPI(t)
	conf := testutil.Config(fake.URL())
	conf.Store.Backend = core.StoreFile
	conf.Store.Dir = t.TempDir()
	return cliEnv{fake: fake, conf: conf}
}

func mockPasswords(t *testing.T, pwds ...string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })

	var i int
	readPasswordFunc = func(int) ([]byte, error) {
		pwd := pwds[len(pwds)-1]
		if i < len(pwds) {
			pwd = pwds[i]
		}
		i++
		return []byte(pwd), nil
	}
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	c := newContainer(e.conf)
	assert.NoError(t, c.Decorate(func(core.Logger) core.Logger { return testutil.Logger() }))

	out := new(syncBuffer)
	var runErr error
	err := c.Invoke(func(a *app, sess *session.Service, closeBackend closer) {
		defer func() { _ = closeBackend() }()
		a.out = out
		a.in = strings.NewReader(stdin)
		runErr = a.run(context.Background(), append([]string{"practicehub"}, args...))
		<-sess.InitAuth(context.Background()) // let the background check finish
	})
	if err != nil {
		t.Fatalf("building the program failed: %v", err)
	}
	return out.String(), runErr
}

func Test_commandLine_usage(t *testing.T) {
	e := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command"},
		{name: "unknown command", args: []string{"lol"}},
		{name: "login: no args", args: []string{"login"}},
		{name: "login: unknown flag", args: []string{"login", "-lol"}},
		{name: "register: no role", args: []string{"register"}},
		{name: "register: unknown role", args: []string{"register", "principal"}},
		{name: "chat: no course", args: []string{"chat"}},
		{name: "threads: no course", args: []string{"threads", "-thread", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.run(t, "", tt.args...)
			assert.Equal(t, errHelp, err)
			assert.NotEmpty(t, out)
		})
	}
}

func Test_commandLine_login(t *testing.T) {
	e := setup(t)

	mockPasswords(t, "wrong")
	_, err := e.run(t, "", "login", "-username", "stud1")
	assert.EqualError(t, err, "Invalid credentials")

	out, err := e.run(t, "", "whoami")
	assert.Equal(t, errSignedOut, err)
	assert.Contains(t, out, "You are not signed in")

	mockPasswords(t, testutil.Password)
	out, err = e.run(t, "", "login", "-username", "stud1", "-role", "student")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "Signed in as stud1 (student).")
		assert.Contains(t, out, "Welcome, stud1.")
		assert.Contains(t, out, "Distributed Systems")
		assert.Contains(t, out, "APPROVED")
		assert.Contains(t, out, "not enrolled")
	}

	// next run: the session was persisted
	out, err = e.run(t, "", "whoami")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "stud1@practicehub.test")
		assert.Contains(t, out, "verified")
	}

	out, err = e.run(t, "", "logout")
	assert.NoError(t, err)
	assert.Equal(t, "Signed out.\n", out)

	_, err = e.run(t, "", "home")
	assert.Equal(t, errSignedOut, err)
}

func Test_commandLine_register(t *testing.T) {
	e := setup(t)

	mockPasswords(t, "Engine_no7", "Engine_no8")
	_, err := e.run(t, "", "register", "student", "-username", "stud9", "-email", "stud9@practicehub.test")
	assert.EqualError(t, err, "passwords do not match")

	mockPasswords(t, "Engine_no7")
	out, err := e.run(t, "", "register", "student", "-username", "stud9", "-email", "stud9@practicehub.test")
	assert.NoError(t, err)
	assert.Contains(t, out, "Registration successful, you can now log in")

	_, err = e.run(t, "", "register", "student", "-username", "stud9", "-email", "other@practicehub.test")
	assert.EqualError(t, err, "username already taken")

	// registering does not sign in
	_, err = e.run(t, "", "whoami")
	assert.Equal(t, errSignedOut, err)

	out, err = e.run(t, "", "login", "-username", "stud9")
	assert.NoError(t, err)
	assert.Contains(t, out, "Signed in as stud9 (student).")
}

func Test_commandLine_roleGuard(t *testing.T) {
	e := setup(t)
	mockPasswords(t, testutil.Password)

	_, err := e.run(t, "", "login", "-username", "teach1")
	assert.NoError(t, err)

	// a teacher opening the student chat lands on the teacher dashboard
	out, err := e.run(t, "", "chat", "-course", e.fake.Course.ID.String())
	assert.NoError(t, err)
	assert.Contains(t, out, "Welcome, Ada Lovelace.")
	assert.Contains(t, out, "practicehub threads -course ID")
	assert.Zero(t, e.fake.Hits("GET", "/course-enrollments"))
}

func Test_commandLine_chat(t *testing.T) {
	e := setup(t)
	mockPasswords(t, testutil.Password)
	course := e.fake.Course.ID.String()
	enrID := e.fake.Enrollment.ID

	e.fake.Post(enrID, e.fake.Teacher, "welcome to the course")

	_, err := e.run(t, "", "login", "-username", "stud1")
	assert.NoError(t, err)

	out, err := e.run(t, "", "chat", "-course", course, "-message", "hello teacher")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "teacher: welcome to the course")
		assert.Contains(t, out, "me: hello teacher")
		assert.Equal(t, 1, strings.Count(out, "hello teacher"))
	}

	out, err = e.run(t, "first line\n   \nsecond line\n", "chat", "-course", course, "-follow")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "me: first line")
		assert.Contains(t, out, "me: second line")
		assert.Equal(t, 1, strings.Count(out, "first line"))
	}

	out, err = e.run(t, "", "chat", "-course", "999")
	assert.Error(t, err)
	assert.Contains(t, out, "You are not enrolled in course 999.")

	// teacher side
	mockPasswords(t, testutil.Password)
	_, err = e.run(t, "", "login", "-username", "teach1")
	assert.NoError(t, err)

	out, err = e.run(t, "", "threads", "-course", course)
	if assert.NoError(t, err) {
		assert.Contains(t, out, "Distributed Systems")
		assert.Contains(t, out, "Alan Turing")
		assert.Contains(t, out, "PENDING")
		assert.Contains(t, out, "second line")
	}

	out, err = e.run(t, "", "threads", "-course", course, "-thread", enrID.String(), "-message", "see you tomorrow")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "Alan Turing: hello teacher")
		assert.Contains(t, out, "me: welcome to the course")
		assert.Contains(t, out, "me: see you tomorrow")
	}
}

func Test_commandLine_sessionExpired(t *testing.T) {
	e := setup(t)
	mockPasswords(t, testutil.Password)

	_, err := e.run(t, "", "login", "-username", "stud1")
	assert.NoError(t, err)

	e.fake.Revoke(e.fake.Student)

	out, err := e.run(t, "", "home")
	assert.Equal(t, errSignedOut, err)
	assert.Contains(t, out, "You are not signed in")

	// the stored credential was cleared
	_, err = e.run(t, "", "whoami")
	assert.Equal(t, errSignedOut, err)
	assert.Equal(t, 1, e.fake.Hits("POST", "/auth/login"))
}

func Test_commandLine_chatRetry(t *testing.T) {
	e := setup(t)
	mockPasswords(t, testutil.Password)
	course := e.fake.Course.ID.String()
	path := "/course-chat/enrollment/" + e.fake.Enrollment.ID.String()

	_, err := e.run(t, "", "login", "-username", "stud1")
	assert.NoError(t, err)

	e.fake.Fail(http.MethodPost, path, http.StatusInternalServerError, 1)

	// the empty line resends the draft kept by the failed send
	out, err := e.run(t, "try again\n\n", "chat", "-course", course, "-follow")
	if assert.NoError(t, err) {
		assert.Contains(t, out, "Message not sent")
		assert.Contains(t, out, "Press Enter to retry.")
		assert.Contains(t, out, "me: try again")
		assert.Equal(t, 1, strings.Count(out, "me: try again"))
	}
	assert.Equal(t, 2, e.fake.Hits(http.MethodPost, path))
}
