package core

import "strings"

// View paths
const (
	PathRoot     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathAdmin    = "/admin"
	PathTeacher  = "/teacher"
	PathStudent  = "/student"
)

// Navigator exposes the client's current view and lets background work (eg. the HTTP client)
// request a navigation.
type Navigator interface {
	Current() string
	Redirect(path string)
}

// IsAuthPath reports whether path is a login or registration view.
func IsAuthPath(path string) bool {
	return path == PathLogin || path == PathRegister || strings.HasPrefix(path, PathRegister+"/")
}
