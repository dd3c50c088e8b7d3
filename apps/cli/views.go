package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/chat"
	"github.com/trezcool/practicehub/core/guard"
	"github.com/trezcool/practicehub/core/session"
)

const timeFmt = "Jan 2 15:04"

// Public views

// root sends the user to their dashboard, or to the login view.
func (a *app) root(context.Context) error {
	if !a.sess.IsAuthenticated() {
		return guard.RedirectTo(core.PathLogin)
	}
	home := session.HomePath(a.sess.Role())
	if home == core.PathRoot {
		return guard.RedirectTo(core.PathLogin)
	}
	return guard.RedirectTo(home)
}

func (a *app) login(ctx context.Context) error {
	if a.req.username == "" {
		// reached through a redirect
		fmt.Fprintln(a.out, "You are not signed in. Sign in with: practicehub login -username USERNAME")
		return errSignedOut
	}

	pwd, err := a.promptPassword("Password: ")
	if err != nil {
		return err
	}
	res := a.sess.Login(ctx, a.req.username, pwd, a.req.role)
	if !res.Success {
		return errors.New(res.Message)
	}
	a.req.username = ""

	s := a.sess.Current()
	fmt.Fprintf(a.out, "Signed in as %s (%s).\n", s.User.DisplayName(), s.Role)
	if home := session.HomePath(s.Role); home != core.PathRoot {
		return guard.RedirectTo(home)
	}
	return nil
}

func (a *app) register(role session.Role) guard.View {
	return func(ctx context.Context) error {
		pwd, err := a.promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := a.promptPassword("Confirm password: ")
		if err != nil {
			return err
		}

		r := a.req
		var res session.Result
		switch role {
		case session.RoleTeacher:
			res = a.sess.RegisterTeacher(ctx, session.TeacherForm{
				FirstName:       r.firstName,
				LastName:        r.lastName,
				Email:           r.email,
				Phone:           r.phone,
				Password:        pwd,
				PasswordConfirm: confirm,
			})
		case session.RoleAdmin:
			res = a.sess.RegisterAdmin(ctx, session.AdminForm{
				Username:        r.username,
				Email:           r.email,
				Password:        pwd,
				PasswordConfirm: confirm,
			})
		case session.RoleStudent:
			res = a.sess.RegisterStudent(ctx, session.StudentForm{
				Username:        r.username,
				Email:           r.email,
				FirstName:       r.firstName,
				LastName:        r.lastName,
				InstitutionID:   r.institution,
				Password:        pwd,
				PasswordConfirm: confirm,
			})
		case session.RoleNone:
			return errHelp
		}

		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Fprintln(a.out, res.Message)
		return nil
	}
}

// Protected views

func (a *app) whoami(ctx context.Context) error {
	// wait for the stored session to be checked
	select {
	case <-a.sess.InitAuth(ctx):
	case <-ctx.Done():
		return ctx.Err()
	}

	s := a.sess.Current()
	if !s.IsAuthenticated() || s.User == nil {
		return guard.RedirectTo(core.PathLogin)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", s.User.DisplayName())
	fmt.Fprintf(w, "Username:\t%s\n", s.User.Username)
	fmt.Fprintf(w, "Email:\t%s\n", s.User.Email)
	fmt.Fprintf(w, "Role:\t%s\n", s.Role)
	fmt.Fprintf(w, "Session:\t%s\n", s.Status)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:\t%s\n", s.ExpiresAt.Local().Format(timeFmt))
	}
	return w.Flush()
}

func (a *app) greet() {
	s := a.sess.Current()
	name := "there"
	if s.User != nil {
		name = s.User.DisplayName()
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", name)
}

func (a *app) adminHome(context.Context) error {
	a.greet()
	return nil
}

func (a *app) teacherHome(context.Context) error {
	a.greet()
	fmt.Fprintln(a.out, "Open the threads of a course with: practicehub threads -course ID")
	return nil
}

func (a *app) studentHome(ctx context.Context) error {
	a.greet()

	courses, err := a.client.CourseEnrollments(ctx)
	if err != nil {
		a.logger.Warn("loading courses", err)
		fmt.Fprintf(a.out, "Could not load your courses: %s\n", core.Message(err, "request failed"))
		return nil
	}
	if len(courses) == 0 {
		fmt.Fprintln(a.out, "No courses yet.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOURSE\tENROLLMENT")
	for _, c := range courses {
		status := "not enrolled"
		if c.Enrollment != nil {
			status = string(c.Enrollment.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Title, status)
	}
	return w.Flush()
}

func (a *app) chatOptions(tr *transcript) chat.Options {
	return chat.Options{
		PollInterval: a.conf.Chat.PollInterval,
		Logger:       a.logger,
		OnUpdate:     tr.update,
	}
}

func (a *app) studentChat(ctx context.Context) error {
	tr := newTranscript(a.out, func(chat.Message) string { return "teacher" })

	th, err := chat.OpenStudentChat(ctx, a.client, a.sess, a.req.courseID, a.chatOptions(tr))
	if err != nil {
		if errors.Is(err, chat.ErrNotEnrolled) {
			fmt.Fprintf(a.out, "You are not enrolled in course %s.\n", a.req.courseID)
			return err
		}
		fmt.Fprintf(a.out, "Could not load the conversation: %s\nBack to your courses with: practicehub home\n", core.Message(err, "request failed"))
		return err
	}
	defer th.Close()

	return a.converse(ctx, th, tr)
}

func (a *app) teacherThreads(ctx context.Context) error {
	names := make(map[core.ID]string)
	tr := newTranscript(a.out, func(msg chat.Message) string {
		if name, ok := names[msg.SenderID]; ok {
			return name
		}
		return strings.ToLower(string(msg.SenderType))
	})

	inbox := chat.NewTeacherInbox(a.client, a.sess, a.req.courseID, a.chatOptions(tr))
	if err := inbox.Load(ctx); err != nil {
		fmt.Fprintf(a.out, "Could not load course %s: %s\n", a.req.courseID, core.Message(err, "request failed"))
		return err
	}
	defer inbox.Close()

	course := inbox.Course()
	fmt.Fprintf(a.out, "%s\n\n", course.Title)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tSTUDENT\tSTATUS\tUNREAD\tLAST MESSAGE")
	for _, e := range inbox.Threads() {
		var name, last string
		if e.Student != nil {
			name = e.Student.DisplayName()
			names[e.Student.ID] = name
		}
		if n := len(e.Messages); n > 0 {
			last = e.Messages[n-1].Message
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.ID, name, e.Status, e.Unread(), last)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if a.req.threadID.IsZero() {
		return nil
	}
	fmt.Fprintln(a.out)

	th, err := inbox.Switch(ctx, a.req.threadID)
	if err != nil {
		fmt.Fprintf(a.out, "Could not open thread %s: %s\n", a.req.threadID, core.Message(err, "request failed"))
		return err
	}
	return a.converse(ctx, th, tr)
}

// converse prints the thread, sends the -message flag and, with -follow, keeps the thread open:
// lines read from stdin are sent, messages received are printed.
func (a *app) converse(ctx context.Context, th *chat.Thread, tr *transcript) error {
	tr.attach(th)

	if a.req.message != "" {
		if err := a.send(ctx, th, a.req.message); err != nil {
			return err
		}
	}
	if !a.req.follow {
		return nil
	}

	lines := a.lines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			// an empty line retries the draft kept by a failed send
			if strings.TrimSpace(line) != "" {
				th.SetDraft(line)
			}
			if err := a.flush(ctx, th); err != nil {
				fmt.Fprintln(a.out, "Press Enter to retry.")
			}
		}
	}
}

func (a *app) send(ctx context.Context, th *chat.Thread, text string) error {
	th.SetDraft(text)
	return a.flush(ctx, th)
}

// flush sends the thread's draft.
func (a *app) flush(ctx context.Context, th *chat.Thread) error {
	if err := th.Send(ctx); err != nil {
		fmt.Fprintf(a.out, "Message not sent: %s\n", core.Message(err, "request failed"))
		return err
	}
	return nil
}

// transcript prints each message of a thread once.
type transcript struct {
	out  io.Writer
	name func(msg chat.Message) string

	mu   sync.Mutex
	th   *chat.Thread
	seen map[core.ID]bool
}

func newTranscript(out io.Writer, name func(msg chat.Message) string) *transcript {
	return &transcript{out: out, name: name, seen: make(map[core.ID]bool)}
}

func (tr *transcript) attach(th *chat.Thread) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.th = th
	tr.print(th.Messages())
}

// update receives the lists applied to the thread; lists of a thread not attached yet are skipped.
func (tr *transcript) update(msgs []chat.Message) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.th == nil {
		return
	}
	tr.print(msgs)
}

func (tr *transcript) print(msgs []chat.Message) {
	for _, msg := range msgs {
		if tr.seen[msg.ID] {
			continue
		}
		tr.seen[msg.ID] = true

		who := tr.name(msg)
		if tr.th.IsMine(msg) {
			who = "me"
		}
		fmt.Fprintf(tr.out, "[%s] %s: %s\n", msg.CreatedAt.Local().Format(timeFmt), who, msg.Message)
	}
}
