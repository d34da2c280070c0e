package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"gwi.com/kb-console/internal/logger"
)

type logLine struct {
	level, module, message string
	details                map[string]interface{}
}

type captureLogger struct{ lines []logLine }

func (c *captureLogger) add(level, module, message string, details map[string]interface{}) {
	c.lines = append(c.lines, logLine{level, module, message, details})
}
func (c *captureLogger) Debug(m, msg string, d map[string]interface{}) { c.add("debug", m, msg, d) }
func (c *captureLogger) Info(m, msg string, d map[string]interface{})  { c.add("info", m, msg, d) }
func (c *captureLogger) Warn(m, msg string, d map[string]interface{})  { c.add("warn", m, msg, d) }
func (c *captureLogger) Error(m, msg string, d map[string]interface{}) { c.add("error", m, msg, d) }
func (c *captureLogger) Sync() error                                  { return nil }

var _ logger.Logger = (*captureLogger)(nil)

func TestLoggedMapsSeverityToLevel(t *testing.T) {
	c := &captureLogger{}
	l := Logged{Log: c}

	l.Notify(Info("a"))
	l.Notify(Success("b"))
	l.Notify(Warning("c"))
	l.Notify(Error("d", errors.New("e")))

	levels := make([]string, 0, len(c.lines))
	for _, line := range c.lines {
		levels = append(levels, line.level)
		assert.Equal(t, "notify", line.module)
	}
	assert.Equal(t, []string{"info", "info", "warn", "error"}, levels)
	assert.Equal(t, "success", c.lines[1].details["severity"])
	assert.Equal(t, "d: e", c.lines[3].message)
}
