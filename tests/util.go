package testutil

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/trezcool/practicehub/core"
	logsvc "github.com/trezcool/practicehub/services/logger"
)

// Config returns a test configuration pointing at apiURL, with an in-memory credential store.
func Config(apiURL string) *core.Config {
	return &core.Config{
		Env:     "TEST",
		Debug:   true,
		AppName: "PracticeHub",
		Build:   "test",
		API: core.APIConfig{
			BaseURL:        apiURL,
			RequestTimeout: 5 * time.Second,
		},
		Chat: core.ChatConfig{
			PollInterval: 50 * time.Millisecond,
		},
		Store: core.StoreConfig{
			Backend: core.StoreMemory,
			Key:     "auth-storage",
		},
	}
}

// Logger discards everything.
func Logger() core.Logger {
	return logsvc.NewConsoleLogger(log.New(io.Discard, "", 0), logsvc.LevelDebug)
}

// Navigator records redirects instead of navigating.
type Navigator struct {
	mu        sync.Mutex
	current   string
	redirects []string
}

var _ core.Navigator = (*Navigator)(nil)

func NewNavigator(current string) *Navigator {
	return &Navigator{current: current}
}

func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	n.redirects = append(n.redirects, path)
}

func (n *Navigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

// Goto changes the current view without recording a redirect.
func (n *Navigator) Goto(path string) {
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
}
