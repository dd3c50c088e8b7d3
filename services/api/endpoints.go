package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/chat"
	"github.com/trezcool/practicehub/core/session"
)

var (
	_ session.AuthAPI = (*Client)(nil)
	_ chat.API        = (*Client)(nil)

	errNoRole = errors.New("registration requires a role")
)

// Auth

func (c *Client) Login(ctx context.Context, req session.LoginRequest) (session.LoginResponse, error) {
	var resp session.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp)
	return resp, err
}

func (c *Client) Register(ctx context.Context, role session.Role, form interface{}) error {
	if role == session.RoleNone {
		return errNoRole
	}
	return c.do(ctx, http.MethodPost, "/auth/register/"+role.String(), form, nil)
}

// Me returns the profile behind the current token. Admins are returned under `admin`.
func (c *Client) Me(ctx context.Context) (session.UserProfile, error) {
	var resp struct {
		User  *session.UserProfile `json:"user"`
		Admin *session.UserProfile `json:"admin"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return session.UserProfile{}, err
	}
	switch {
	case resp.User != nil:
		return *resp.User, nil
	case resp.Admin != nil:
		usr := *resp.Admin
		if usr.Role == session.RoleNone {
			usr.Role = session.RoleAdmin
		}
		return usr, nil
	}
	return session.UserProfile{}, errors.New("identity missing from /auth/me response")
}

// Courses & chat

func (c *Client) CourseEnrollments(ctx context.Context) ([]chat.CourseEnrollment, error) {
	var resp struct {
		Courses []chat.CourseEnrollment `json:"courses"`
	}
	err := c.do(ctx, http.MethodGet, "/course-enrollments", nil, &resp)
	return resp.Courses, err
}

func (c *Client) Course(ctx context.Context, id core.ID) (chat.Course, error) {
	var course chat.Course
	err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(id.String()), nil, &course)
	return course, err
}

func (c *Client) Messages(ctx context.Context, enrollmentID core.ID) ([]chat.Message, error) {
	var resp struct {
		Messages []chat.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, chatPath(enrollmentID), nil, &resp)
	return resp.Messages, err
}

func (c *Client) SendMessage(ctx context.Context, enrollmentID core.ID, text string) error {
	body := struct {
		Message string `json:"message"`
	}{Message: text}
	return c.do(ctx, http.MethodPost, chatPath(enrollmentID), body, nil)
}

func (c *Client) MarkRead(ctx context.Context, enrollmentID core.ID) error {
	return c.do(ctx, http.MethodPatch, chatPath(enrollmentID)+"/read", nil, nil)
}

func chatPath(enrollmentID core.ID) string {
	return "/course-chat/enrollment/" + url.PathEscape(enrollmentID.String())
}
