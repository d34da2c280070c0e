package notify

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gen2brain/beeep"

	"gwi.com/kb-console/internal/logger"
)

// Logged records every notification in the structured log.
type Logged struct {
	Log logger.Logger
}

func (l Logged) Notify(n Notification) {
	details := map[string]interface{}{
		"severity":    n.Severity.String(),
		"duration_ms": n.Duration.Milliseconds(),
	}
	switch n.Severity {
	case SeverityError:
		l.Log.Error("notify", n.Message, details)
	case SeverityWarning:
		l.Log.Warn("notify", n.Message, details)
	default:
		l.Log.Info("notify", n.Message, details)
	}
}

// Printer writes one colored line per notification; used by non-interactive commands.
type Printer struct {
	Out io.Writer
}

func (p Printer) Notify(n Notification) {
	var c *color.Color
	switch n.Severity {
	case SeveritySuccess:
		c = color.New(color.FgGreen)
	case SeverityWarning:
		c = color.New(color.FgYellow)
	case SeverityError:
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.FgCyan)
	}
	fmt.Fprintf(p.Out, "%s %s\n", c.Sprintf("[%s]", n.Severity), n.Message)
}

// notifyFunc is the desktop backend, swappable in tests.
var notifyFunc = beeep.Notify

// Desktop raises a desktop notification for warnings and errors.
type Desktop struct {
	Title string
	Log   logger.Logger
}

func (d Desktop) Notify(n Notification) {
	if n.Severity < SeverityWarning {
		return
	}
	title := d.Title
	if title == "" {
		title = "KB Console"
	}
	// Use empty string for icon - beeep handles platform defaults
	if err := notifyFunc(title, n.Message, ""); err != nil && d.Log != nil {
		d.Log.Warn("notify", "desktop notification failed", map[string]interface{}{"error": err.Error()})
	}
}
