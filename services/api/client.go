package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
	headerContentType   = "Content-Type"
	mimeJSON            = "application/json"
)

type (
	// CredentialSource is the persisted credential store.
	// Token must return "" for a missing or corrupt store, never fail.
	CredentialSource interface {
		Token(ctx context.Context) string
		Clear(ctx context.Context) error
	}

	// Client is the single chokepoint for PracticeHub API calls. It attaches the bearer token and
	// turns a 401 into a forced logout. It never retries.
	Client struct {
		baseURL string
		http    *http.Client
		creds   CredentialSource
		nav     core.Navigator
		logger  core.Logger

		mu             sync.RWMutex
		defaultToken   string
		onUnauthorized []func()
	}
)

func NewClient(conf *core.Config, creds CredentialSource, nav core.Navigator, logger core.Logger) *Client {
	return &Client{
		baseURL: conf.API.BaseURL,
		http:    &http.Client{Timeout: conf.API.RequestTimeout},
		creds:   creds,
		nav:     nav,
		logger:  logger,
	}
}

// SetToken sets the default credential, used when the persisted store holds none.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.defaultToken = token
	c.mu.Unlock()
}

// OnUnauthorized registers fn, called after the persisted credential was cleared because of a 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
	c.mu.Unlock()
}

func (c *Client) token(ctx context.Context) string {
	if token := c.creds.Token(ctx); token != "" {
		return token
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultToken
}

// do sends a JSON request and decodes a JSON response into out (when not nil).
// Non-2xx responses come back as *core.APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	req.Header.Set("Accept", mimeJSON)
	if in != nil {
		req.Header.Set(headerContentType, mimeJSON)
	}
	if token := c.token(ctx); token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized(ctx)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

// unauthorized clears the persisted credential and sends the user to the login view, unless the
// request came from the login or registration views which display the error themselves.
func (c *Client) unauthorized(ctx context.Context) {
	current := c.nav.Current()
	if core.IsAuthPath(current) {
		return
	}

	c.logger.Warn("credential rejected, signing out", map[string]interface{}{"view": current})
	if err := c.creds.Clear(ctx); err != nil {
		c.logger.Error("clearing persisted credential", errors.Wrap(err, "clearing credentials"))
	}

	c.mu.RLock()
	hooks := append([]func(){}, c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	c.nav.Redirect(core.PathLogin)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeError(status int, data []byte) *core.APIError {
	apiErr := &core.APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		// not JSON: a proxy page or plain text
		if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
			apiErr.Message = text
		}
		return apiErr
	}

	apiErr.Message = body.Message
	if apiErr.Message == "" {
		apiErr.Message = body.Error
	}
	for _, fe := range body.Errors {
		msg := fe.Msg
		if msg == "" {
			msg = fe.Message
		}
		if msg != "" {
			apiErr.Fields = append(apiErr.Fields, msg)
		}
	}
	return apiErr
}
