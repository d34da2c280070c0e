// Package notify delivers transient, fire-and-forget user notifications.
package notify

import (
	"fmt"
	"strings"
	"time"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// DefaultDuration is how long a notification stays visible when none is given.
const DefaultDuration = 3 * time.Second

type Notification struct {
	Message  string
	Severity Severity
	Duration time.Duration
}

// Notifier displays a notification. Implementations must not block the caller
// for long and report their own failures instead of returning them.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to a Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to every non-nil notifier in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Defaults fills the duration of notifications created without one.
type Defaults struct {
	Next     Notifier
	Duration time.Duration
}

func (d Defaults) Notify(n Notification) {
	if n.Duration <= 0 {
		n.Duration = d.Duration
		if n.Duration <= 0 {
			n.Duration = DefaultDuration
		}
	}
	d.Next.Notify(n)
}

func Info(message string) Notification {
	return Notification{Message: message, Severity: SeverityInfo}
}

func Success(message string) Notification {
	return Notification{Message: message, Severity: SeveritySuccess}
}

func Warning(message string) Notification {
	return Notification{Message: message, Severity: SeverityWarning}
}

// Error builds an error notification; a non-nil cause is appended after a colon.
func Error(message string, cause error) Notification {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", strings.TrimRight(message, ".: "), cause)
	}
	return Notification{Message: message, Severity: SeverityError}
}
