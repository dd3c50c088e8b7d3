package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/chat"
	"github.com/trezcool/practicehub/core/session"
)

const (
	Password = "Secret_pass1"

	tokenContextKey = "userToken"
	userContextKey  = "user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	errForbidden            = echo.NewHTTPError(http.StatusForbidden, "access denied")
	errNotFoundHTTP         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// claims are the JWT claims issued by the fake API.
type claims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

type (
	// Fixtures are the records every fake API starts with.
	Fixtures struct {
		Admin, Teacher, Student, Outsider session.UserProfile

		Course     chat.Course
		Enrollment chat.Enrollment // Student in Course, approved
	}

	// FakeAPI serves the PracticeHub REST API from memory.
	FakeAPI struct {
		*Fixtures

		srv    *httptest.Server
		app    *echo.Echo
		db     *db
		secret []byte

		mu         sync.Mutex
		hits       map[string]int
		requestIDs []string
		failures   map[string]failure
	}

	failure struct {
		status int
		times  int // < 0: forever
	}
)

// NewFakeAPI starts a fake API for the duration of the test.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	api := &FakeAPI{
		app:      echo.New(),
		db:       newDB(),
		secret:   []byte("practicehub-test-secret"),
		hits:     make(map[string]int),
		failures: make(map[string]failure),
	}
	api.setup()
	api.Fixtures = api.seed(t)

	api.srv = httptest.NewServer(api.app)
	t.Cleanup(api.srv.Close)
	return api
}

// URL is the API base URL, as configured in the client.
func (api *FakeAPI) URL() string { return api.srv.URL + "/api" }

func (api *FakeAPI) setup() {
	api.app.HideBanner = true
	api.app.Logger.SetLevel(log.OFF)
	api.app.Pre(middleware.RemoveTrailingSlash())
	api.app.Use(api.record, api.inject)

	g := api.app.Group("/api")
	jwtMw := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    api.secret,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(claims),
	})
	auth := []echo.MiddlewareFunc{requireBearer, jwtMw, api.loadUser}

	g.POST("/auth/login", api.login)
	g.POST("/auth/register/:role", api.register)
	g.GET("/auth/me", api.me, auth...)

	g.GET("/course-enrollments", api.courseEnrollments, append(auth, requireRole(session.RoleStudent))...)
	g.GET("/courses/:id", api.course, append(auth, requireRole(session.RoleTeacher))...)

	chatMw := append(auth, api.loadEnrollment)
	g.GET("/course-chat/enrollment/:id", api.messages, chatMw...)
	g.POST("/course-chat/enrollment/:id", api.sendMessage, chatMw...)
	g.PATCH("/course-chat/enrollment/:id/read", api.markRead, chatMw...)
}

func (api *FakeAPI) seed(t *testing.T) *Fixtures {
	t.Helper()

	mustCreate := func(usr session.UserProfile) session.UserProfile {
		usr, err := api.db.createUser(usr, Password)
		if err != nil {
			t.Fatalf("seeding user %s failed: %v", usr.Username, err)
		}
		return usr
	}

	fx := &Fixtures{
		Admin:    mustCreate(session.UserProfile{Role: session.RoleAdmin, Username: "admin", Email: "admin@practicehub.test"}),
		Teacher:  mustCreate(session.UserProfile{Role: session.RoleTeacher, Username: "teach1", Email: "teach1@practicehub.test", FirstName: "Ada", LastName: "Lovelace"}),
		Student:  mustCreate(session.UserProfile{Role: session.RoleStudent, Username: "stud1", Email: "stud1@practicehub.test", FirstName: "Alan", LastName: "Turing"}),
		Outsider: mustCreate(session.UserProfile{Role: session.RoleStudent, Username: "stud2", Email: "stud2@practicehub.test"}),
	}
	c := api.db.createCourse("Distributed Systems", fx.Teacher.ID)
	e := api.db.enroll(c.ID, fx.Student.ID, chat.EnrollmentApproved)
	api.db.enroll(c.ID, fx.Outsider.ID, chat.EnrollmentPending)
	api.db.createCourse("Compilers", fx.Teacher.ID)

	fx.Course = api.db.roster(c)
	for _, enr := range fx.Course.Enrollments {
		if enr.ID == e.ID {
			fx.Enrollment = enr
		}
	}
	return fx
}

// Test controls

// Token signs a token for usr, valid for ttl.
func (api *FakeAPI) Token(usr session.UserProfile, ttl time.Duration) string {
	now := time.Now()
	cl := &claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Role: usr.Role.String(),
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(api.secret)
	if err != nil {
		panic(err)
	}
	return ss
}

// Revoke makes every token of the user rejected with a 401.
func (api *FakeAPI) Revoke(usr session.UserProfile) { api.db.revokeUser(usr.ID) }

// Post adds a message to a thread, as if sent from another client.
func (api *FakeAPI) Post(enrollmentID core.ID, from session.UserProfile, text string) chat.Message {
	return api.db.addMessage(enrollmentID, chat.SenderFor(from.Role), from.ID, text)
}

// Hits counts the requests received for method and path, the path being relative to URL().
func (api *FakeAPI) Hits(method, path string) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.hits[method+" /api"+path]
}

// RequestIDs lists the X-Request-ID header of every request received.
func (api *FakeAPI) RequestIDs() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]string(nil), api.requestIDs...)
}

// Fail answers the next `times` requests for method and path with status; times < 0 means forever.
func (api *FakeAPI) Fail(method, path string, status, times int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.failures[method+" /api"+path] = failure{status: status, times: times}
}

// Middlewares

func (api *FakeAPI) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		api.mu.Lock()
		api.hits[req.Method+" "+req.URL.Path]++
		api.requestIDs = append(api.requestIDs, req.Header.Get(echo.HeaderXRequestID))
		api.mu.Unlock()
		return next(ctx)
	}
}

func (api *FakeAPI) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		key := req.Method + " " + req.URL.Path

		api.mu.Lock()
		f, ok := api.failures[key]
		if ok {
			switch {
			case f.times > 1:
				f.times--
				api.failures[key] = f
			case f.times == 1:
				delete(api.failures, key)
			}
		}
		api.mu.Unlock()

		if ok {
			return echo.NewHTTPError(f.status, http.StatusText(f.status))
		}
		return next(ctx)
	}
}

// requireBearer rejects requests without credentials with a 401, like the real API.
func requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func (api *FakeAPI) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		token, ok := ctx.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return errUnauthorized
		}
		cl, ok := token.Claims.(*claims)
		if !ok {
			return errUnauthorized
		}
		usr, err := api.db.userByID(core.ID(cl.Subject))
		if err != nil || usr.Revoked {
			return errUnauthorized
		}
		ctx.Set(userContextKey, usr.UserProfile)
		return next(ctx)
	}
}

func requireRole(roles ...session.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !contextUser(ctx).Role.In(roles...) {
				return errForbidden
			}
			return next(ctx)
		}
	}
}

// loadEnrollment only lets the enrolled student and the course teacher in.
func (api *FakeAPI) loadEnrollment(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		enr, err := api.db.enrollmentByID(core.ID(ctx.Param("id")))
		if err != nil {
			return errNotFoundHTTP
		}
		course, err := api.db.courseByID(enr.CourseID)
		if err != nil {
			return errNotFoundHTTP
		}
		usr := contextUser(ctx)
		switch {
		case usr.Role == session.RoleStudent && usr.ID == enr.StudentID:
		case usr.Role == session.RoleTeacher && usr.ID == course.TeacherID:
		default:
			return errForbidden
		}
		ctx.Set("enrollment", enr)
		return next(ctx)
	}
}

func contextUser(ctx echo.Context) session.UserProfile {
	usr, _ := ctx.Get(userContextKey).(session.UserProfile)
	return usr
}

// Handlers

func (api *FakeAPI) login(ctx echo.Context) error {
	var req session.LoginRequest
	if err := decodeBody(ctx, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	usr, err := api.db.userByUsernameOrEmail(req.Username)
	if err != nil {
		return errAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(req.Password)); err != nil {
		return errAuthenticationFailed
	}
	if role := session.ParseRole(req.Role); role != session.RoleNone && role != usr.Role {
		return errAuthenticationFailed
	}
	return ctx.JSON(http.StatusOK, session.LoginResponse{
		Token: api.Token(usr.UserProfile, time.Hour),
		User:  usr.UserProfile,
	})
}

// decodeBody reads the JSON body only; echo's Bind would also map path params onto same-named fields.
func decodeBody(ctx echo.Context, v interface{}) error {
	return json.NewDecoder(ctx.Request().Body).Decode(v)
}

type fieldErr struct {
	Msg string `json:"msg"`
}

func (api *FakeAPI) register(ctx echo.Context) error {
	role := session.ParseRole(ctx.Param("role"))
	if role == session.RoleNone {
		return errNotFoundHTTP
	}
	var form struct {
		session.UserProfile
		Password string `json:"password"`
	}
	if err := decodeBody(ctx, &form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var errs []fieldErr
	if form.Email == "" {
		errs = append(errs, fieldErr{"Email is required"})
	}
	if role != session.RoleTeacher && form.Username == "" {
		errs = append(errs, fieldErr{"Username is required"})
	}
	if len(form.Password) < 8 {
		errs = append(errs, fieldErr{"Password must be at least 8 characters"})
	}
	if len(errs) > 0 {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
	}

	form.UserProfile.Role = role
	if form.Username == "" {
		form.Username = form.Email
	}
	usr, err := api.db.createUser(form.UserProfile, form.Password)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"errors": []fieldErr{{err.Error()}}})
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "registered", "user": usr})
}

func (api *FakeAPI) me(ctx echo.Context) error {
	usr := contextUser(ctx)
	if usr.Role == session.RoleAdmin {
		return ctx.JSON(http.StatusOK, echo.Map{"admin": usr})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *FakeAPI) courseEnrollments(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"courses": api.db.courseList(contextUser(ctx).ID)})
}

func (api *FakeAPI) course(ctx echo.Context) error {
	course, err := api.db.courseByID(core.ID(ctx.Param("id")))
	if err != nil {
		return errNotFoundHTTP
	}
	if course.TeacherID != contextUser(ctx).ID {
		return errForbidden
	}
	return ctx.JSON(http.StatusOK, api.db.roster(course))
}

func (api *FakeAPI) messages(ctx echo.Context) error {
	enr := ctx.Get("enrollment").(enrollmentRow)
	return ctx.JSON(http.StatusOK, echo.Map{"messages": api.db.messagesOf(enr.ID)})
}

func (api *FakeAPI) sendMessage(ctx echo.Context) error {
	enr := ctx.Get("enrollment").(enrollmentRow)
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(ctx, &body); err != nil || strings.TrimSpace(body.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	usr := contextUser(ctx)
	msg := api.db.addMessage(enr.ID, chat.SenderFor(usr.Role), usr.ID, body.Message)
	return ctx.JSON(http.StatusCreated, echo.Map{"message": msg})
}

func (api *FakeAPI) markRead(ctx echo.Context) error {
	enr := ctx.Get("enrollment").(enrollmentRow)
	n := api.db.markRead(enr.ID, chat.SenderFor(contextUser(ctx).Role))
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}
