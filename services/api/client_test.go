package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
	"github.com/trezcool/practicehub/services/api"
	"github.com/trezcool/practicehub/storage/authstore"
	inmemstore "github.com/trezcool/practicehub/storage/authstore/inmem"
	"github.com/trezcool/practicehub/tests"
)

type fixture struct {
	fake   *testutil.FakeAPI
	store  *authstore.Store
	mem    *inmemstore.Store
	nav    *testutil.Navigator
	client *api.Client
}

func setup(t *testing.T, current string) fixture {
	fake := testutil.NewFakeAPI(t)
	mem := inmemstore.New()
	store := authstore.New(mem, "auth-storage")
	nav := testutil.NewNavigator(current)
	client := api.NewClient(testutil.Config(fake.URL()), store, nav, testutil.Logger())
	return fixture{fake: fake, store: store, mem: mem, nav: nav, client: client}
}

func TestClient_Token(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted token wins over default token", func(t *testing.T) {
		fx := setup(t, core.PathStudent)
		fx.client.SetToken(fx.fake.Token(fx.fake.Teacher, time.Hour))
		assert.NoError(t, fx.store.Save(ctx, session.Persisted{
			Token: fx.fake.Token(fx.fake.Student, time.Hour),
			Role:  session.RoleStudent,
		}))

		usr, err := fx.client.Me(ctx)
		if assert.NoError(t, err) {
			assert.Equal(t, fx.fake.Student.ID, usr.ID)
		}
	})

	t.Run("default token used when nothing persisted", func(t *testing.T) {
		fx := setup(t, core.PathTeacher)
		fx.client.SetToken(fx.fake.Token(fx.fake.Teacher, time.Hour))

		usr, err := fx.client.Me(ctx)
		if assert.NoError(t, err) {
			assert.Equal(t, fx.fake.Teacher.ID, usr.ID)
			assert.Equal(t, session.RoleTeacher, usr.Role)
		}
	})

	t.Run("corrupt store means no persisted token", func(t *testing.T) {
		fx := setup(t, core.PathTeacher)
		assert.NoError(t, fx.mem.Set(ctx, "auth-storage", []byte("{not json")))
		fx.client.SetToken(fx.fake.Token(fx.fake.Teacher, time.Hour))

		usr, err := fx.client.Me(ctx)
		if assert.NoError(t, err) {
			assert.Equal(t, fx.fake.Teacher.ID, usr.ID)
		}
	})

	t.Run("admins are returned under admin", func(t *testing.T) {
		fx := setup(t, core.PathAdmin)
		fx.client.SetToken(fx.fake.Token(fx.fake.Admin, time.Hour))

		usr, err := fx.client.Me(ctx)
		if assert.NoError(t, err) {
			assert.Equal(t, fx.fake.Admin.ID, usr.ID)
			assert.Equal(t, session.RoleAdmin, usr.Role)
		}
	})
}

func TestClient_Unauthorized(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		current      string
		wantRedirect bool
	}{
		{"protected view", core.PathStudent, true},
		{"root view", core.PathRoot, true},
		{"login view", core.PathLogin, false},
		{"register view", core.PathRegister, false},
		{"role register view", core.PathRegister + "/student", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t, tt.current)
			token := fx.fake.Token(fx.fake.Student, time.Hour)
			assert.NoError(t, fx.store.Save(ctx, session.Persisted{Token: token, Role: session.RoleStudent}))
			fx.fake.Revoke(fx.fake.Student)

			var hooked int
			fx.client.OnUnauthorized(func() { hooked++ })

			_, err := fx.client.CourseEnrollments(ctx)
			assert.True(t, core.IsUnauthorized(err))

			if tt.wantRedirect {
				assert.Equal(t, []string{core.PathLogin}, fx.nav.Redirects())
				assert.Equal(t, 1, hooked)
				assert.Empty(t, fx.store.Token(ctx), "persisted credential should be cleared")
			} else {
				assert.Empty(t, fx.nav.Redirects())
				assert.Zero(t, hooked)
				assert.Equal(t, token, fx.store.Token(ctx))
			}
		})
	}
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, core.PathLogin)

	resp, err := fx.client.Login(ctx, session.LoginRequest{Username: "stud1", Password: "wrong"})
	assert.Equal(t, "Invalid credentials", core.Message(err, "Login failed"))
	assert.Empty(t, resp.Token)
	assert.Empty(t, fx.nav.Redirects(), "a rejected login must not redirect")

	resp, err = fx.client.Login(ctx, session.LoginRequest{Username: "stud1", Password: testutil.Password})
	if assert.NoError(t, err) {
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, fx.fake.Student.ID, resp.User.ID)
		assert.Equal(t, session.RoleStudent, resp.User.Role)
	}
}

func TestClient_Register(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, core.PathRegister+"/admin")

	err := fx.client.Register(ctx, session.RoleAdmin, map[string]string{"username": "", "email": "", "password": "x"})
	var apiErr *core.APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "Email is required, Username is required, Password must be at least 8 characters", apiErr.Error())
	}

	err = fx.client.Register(ctx, session.RoleNone, map[string]string{})
	assert.Error(t, err)

	err = fx.client.Register(ctx, session.RoleAdmin, session.AdminForm{
		Username: "boss",
		Email:    "boss@practicehub.test",
		Password: testutil.Password,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, fx.fake.Hits(http.MethodPost, "/auth/register/admin"))
}

func TestClient_Chat(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, core.PathStudent)
	fx.client.SetToken(fx.fake.Token(fx.fake.Student, time.Hour))
	enrID := fx.fake.Enrollment.ID

	courses, err := fx.client.CourseEnrollments(ctx)
	if assert.NoError(t, err) && assert.Len(t, courses, 2) {
		assert.Equal(t, fx.fake.Course.ID, courses[0].ID)
		if assert.NotNil(t, courses[0].Enrollment) {
			assert.Equal(t, enrID, courses[0].Enrollment.ID)
		}
		assert.Nil(t, courses[1].Enrollment)
	}

	assert.NoError(t, fx.client.SendMessage(ctx, enrID, "hello"))
	msgs, err := fx.client.Messages(ctx, enrID)
	if assert.NoError(t, err) && assert.Len(t, msgs, 1) {
		assert.Equal(t, "hello", msgs[0].Message)
		assert.Equal(t, fx.fake.Student.ID, msgs[0].SenderID)
	}
	assert.NoError(t, fx.client.MarkRead(ctx, enrID))

	// students cannot read the roster
	_, err = fx.client.Course(ctx, fx.fake.Course.ID)
	var apiErr *core.APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
		assert.Equal(t, "access denied", apiErr.Message)
	}
	assert.Empty(t, fx.nav.Redirects())
}

func TestClient_RequestID(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, core.PathTeacher)
	fx.client.SetToken(fx.fake.Token(fx.fake.Teacher, time.Hour))

	_, _ = fx.client.Course(ctx, fx.fake.Course.ID)
	_, _ = fx.client.Course(ctx, fx.fake.Course.ID)

	ids := fx.fake.RequestIDs()
	if assert.Len(t, ids, 2) {
		assert.NotEqual(t, ids[0], ids[1])
		for _, id := range ids {
			_, err := uuid.Parse(id)
			assert.NoError(t, err)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message", http.StatusBadRequest, `{"message":"Course is full"}`, "Course is full"},
		{"error", http.StatusConflict, `{"error":"already enrolled"}`, "already enrolled"},
		{"field errors", http.StatusBadRequest, `{"errors":[{"msg":"Email is invalid"},{"message":"Phone is required"}]}`, "Email is invalid, Phone is required"},
		{"plain text", http.StatusBadGateway, "Bad Gateway", "Bad Gateway"},
		{"empty body", http.StatusInternalServerError, "", "Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := api.NewClient(
				testutil.Config(srv.URL),
				authstore.New(inmemstore.New(), "auth-storage"),
				testutil.NewNavigator(core.PathStudent),
				testutil.Logger(),
			)
			err := client.MarkRead(context.Background(), "1")

			var apiErr *core.APIError
			if assert.ErrorAs(t, err, &apiErr) {
				assert.Equal(t, tt.status, apiErr.Status)
			}
			assert.Equal(t, tt.wantMsg, core.Message(err, "Failed"))
		})
	}
}
