package state

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnknownAction is returned when dispatching a name with no bound reducer.
var ErrUnknownAction = errors.New("unknown action")

// ListenerError reports a panic raised by a listener during notification.
type ListenerError struct {
	// SubscriptionID identifies the registration whose listener failed.
	SubscriptionID uint64
	// Value is the recovered panic value.
	Value any
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %d panicked: %v", e.SubscriptionID, e.Value)
}

// Unwrap exposes the panic value when the listener panicked with an error.
func (e *ListenerError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrorHandler receives listener failures. It must not panic.
type ErrorHandler func(err error)

// LogErrorHandler returns an ErrorHandler that logs failures at error level.
func LogErrorHandler(logger *zap.Logger) ErrorHandler {
	return func(err error) {
		logger.Error("Listener failed during notification", zap.Error(err))
	}
}
