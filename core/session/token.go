package session

import (
	"encoding/json"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// tokenExpiry peeks at the `exp` claim of a JWT without verifying it. The server stays the only
// judge of validity; this is informational.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0)
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			return time.Unix(v, 0)
		}
	}
	return time.Time{}
}
