package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/guard"
	"github.com/trezcool/practicehub/core/session"
	"github.com/trezcool/practicehub/services/api"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp      = errors.New("help provided")
	errSignedOut = errors.New("not signed in")
)

// views that only exist in the terminal client
const (
	pathWhoami  = "/whoami"
	pathChat    = core.PathStudent + "/chat"
	pathThreads = core.PathTeacher + "/threads"
)

type (
	// request holds the flags of the running command, read by its views.
	request struct {
		username string
		role     session.Role

		email, firstName, lastName, phone, institution string

		courseID core.ID
		threadID core.ID
		message  string
		follow   bool
	}

	app struct {
		conf   *core.Config
		logger core.Logger
		sess   *session.Service
		client *api.Client
		router *guard.Router

		out io.Writer
		in  io.Reader
		req request
	}
)

func newApp(
	conf *core.Config,
	logger core.Logger,
	sess *session.Service,
	client *api.Client,
	router *guard.Router,
	_ *guard.Guard,
) *app {
	a := &app{
		conf:   conf,
		logger: logger,
		sess:   sess,
		client: client,
		router: router,
		out:    os.Stdout,
		in:     os.Stdin,
	}
	a.routes()
	return a
}

func (a *app) routes() {
	a.router.HandlePublic(core.PathRoot, a.root)
	a.router.HandlePublic(core.PathLogin, a.login)
	for _, role := range session.AllRoles {
		a.router.HandlePublic(core.PathRegister+"/"+role.String(), a.register(role))
	}

	a.router.Handle(core.PathAdmin, a.adminHome, session.RoleAdmin)
	a.router.Handle(core.PathTeacher, a.teacherHome, session.RoleTeacher)
	a.router.Handle(core.PathStudent, a.studentHome, session.RoleStudent)
	a.router.Handle(pathWhoami, a.whoami)
	a.router.Handle(pathChat, a.studentChat, session.RoleStudent)
	a.router.Handle(pathThreads, a.teacherThreads, session.RoleTeacher)
}

func (a *app) printUsage() {
	fmt.Fprintln(a.out, "Usage:")
	fmt.Fprintln(a.out, "  login -username USERNAME|EMAIL [-role ROLE]                 - sign in, the password is prompted next")
	fmt.Fprintln(a.out, "  register teacher|admin|student -email EMAIL [...]            - create an account")
	fmt.Fprintln(a.out, "  logout                                                      - sign out")
	fmt.Fprintln(a.out, "  whoami                                                      - show the signed-in user")
	fmt.Fprintln(a.out, "  home                                                        - open your dashboard")
	fmt.Fprintln(a.out, "  chat -course ID [-message TEXT] [-follow]                   - (student) chat with the course teacher")
	fmt.Fprintln(a.out, "  threads -course ID [-thread ID] [-message TEXT] [-follow]   - (teacher) course threads")
}

func (a *app) flagSet(name string) *flag.FlagSet {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(a.out)
	return cmd
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		a.printUsage()
		return errHelp
	}

	switch args[1] {
	case "login":
		cmd := a.flagSet("login")
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
		role := cmd.String("role", "", "admin, teacher or student (optional)")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		a.req.username, a.req.role = *uname, session.ParseRole(*role)
		return a.router.Navigate(ctx, core.PathLogin)

	case "register":
		if len(args) < 3 {
			a.printUsage()
			return errHelp
		}
		role := session.ParseRole(args[2])
		if role == session.RoleNone {
			a.printUsage()
			return errHelp
		}
		cmd := a.flagSet("register " + role.String())
		uname := cmd.String("username", "", "Username (admin, student)")
		email := cmd.String("email", "", "Email address")
		first := cmd.String("first", "", "First name")
		last := cmd.String("last", "", "Last name")
		phone := cmd.String("phone", "", "Phone number (teacher)")
		inst := cmd.String("institution", "", "Institution ID (student)")
		if err := cmd.Parse(args[3:]); err != nil {
			return errHelp
		}
		a.req.username, a.req.email = *uname, *email
		a.req.firstName, a.req.lastName = *first, *last
		a.req.phone, a.req.institution = *phone, *inst
		return a.router.Navigate(ctx, core.PathRegister+"/"+role.String())

	case "logout":
		a.sess.Logout(ctx)
		fmt.Fprintln(a.out, "Signed out.")
		return nil

	case "whoami":
		return a.router.Navigate(ctx, pathWhoami)

	case "home":
		return a.router.Navigate(ctx, core.PathRoot)

	case "chat", "threads":
		cmd := a.flagSet(args[1])
		course := cmd.String("course", "", "Course ID")
		thread := new(string)
		if args[1] == "threads" {
			thread = cmd.String("thread", "", "Enrollment ID of the thread to open")
		}
		msg := cmd.String("message", "", "Message to send")
		follow := cmd.Bool("follow", false, "Keep the conversation open: new messages are printed, lines read from stdin are sent")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *course == "" {
			cmd.Usage()
			return errHelp
		}
		a.req.courseID, a.req.threadID = core.ID(*course), core.ID(*thread)
		a.req.message, a.req.follow = *msg, *follow
		if args[1] == "chat" {
			return a.router.Navigate(ctx, pathChat)
		}
		return a.router.Navigate(ctx, pathThreads)

	default:
		a.printUsage()
		return errHelp
	}
}

func (a *app) promptPassword(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// lines reads the lines typed by the user until EOF or ctx is done.
func (a *app) lines(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
