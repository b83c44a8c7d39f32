package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Prathameshworks247/AGILITY/internal/delivery"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notifier shows a message to the developer. Implementations must not block
// for long; they run on the delivery goroutine.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch level {
	case LevelError:
		logger.Error(message)
	case LevelWarn:
		logger.Warn(message)
	default:
		logger.Info(message)
	}
}

// describeFailure turns a delivery failure into a one-line message.
func describeFailure(path string, err error) string {
	var de *delivery.DeliveryError
	if errors.As(err, &de) {
		return fmt.Sprintf("Snapshot for %s was rejected (HTTP %d): %s", path, de.StatusCode, de.Message())
	}
	var te *delivery.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("Could not reach the analysis gateway for %s: %v", path, te.Err)
	}
	return fmt.Sprintf("Snapshot for %s failed: %v", path, err)
}
