package logger

import (
	"fmt"
	"strings"
	"sync"
)

type TestLogEntry struct {
	Severity string
	Message  string
}

// TestLogger is a Logger which records every entry for assertions in tests.
type TestLogger struct {
	mu       sync.Mutex
	metadata map[string]interface{}
	entries  *[]TestLogEntry
	root     *sync.Mutex
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a logger which records entries in memory.
func NewTestLogger() *TestLogger {
	entries := make([]TestLogEntry, 0)
	return &TestLogger{entries: &entries}
}

// Entries returns a copy of every entry logged so far, including entries
// logged through derived (With/WithPrefix) loggers.
func (c *TestLogger) Entries() []TestLogEntry {
	c.lock().Lock()
	defer c.lock().Unlock()
	out := make([]TestLogEntry, len(*c.entries))
	copy(out, *c.entries)
	return out
}

// Contains reports whether any entry at the given severity contains substr.
func (c *TestLogger) Contains(severity, substr string) bool {
	for _, e := range c.Entries() {
		if e.Severity == severity && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func (c *TestLogger) lock() *sync.Mutex {
	if c.root != nil {
		return c.root
	}
	return &c.mu
}

func (c *TestLogger) record(severity string, msg string, args ...interface{}) {
	c.lock().Lock()
	defer c.lock().Unlock()
	*c.entries = append(*c.entries, TestLogEntry{severity, fmt.Sprintf(msg, args...)})
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{})
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	root := c.root
	if root == nil {
		root = &c.mu
	}
	return &TestLogger{metadata: kv, entries: c.entries, root: root}
}

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c.With(nil)
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.record("TRACE", msg, args...)
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.record("DEBUG", msg, args...)
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.record("INFO", msg, args...)
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.record("WARNING", msg, args...)
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.record("ERROR", msg, args...)
}
