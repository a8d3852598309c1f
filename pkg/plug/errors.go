package plug

import (
	"errors"
	"fmt"

	"github.com/james-see/midiplug/pkg/event"
)

// ErrHandlerPanic matches faults caused by a panicking handler
var ErrHandlerPanic = errors.New("handler panicked")

// HandlerError wraps an error returned by a subscriber's handler
type HandlerError struct {
	SubscriptionID uint64
	Handler        HandlerName
	Kind           event.Kind
	Err            error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for subscription %d on %s: %v", e.Handler, e.SubscriptionID, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler
type PanicError struct {
	SubscriptionID uint64
	Handler        HandlerName
	Kind           event.Kind
	Value          any
	Stack          []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s for subscription %d on %s panicked: %v", e.Handler, e.SubscriptionID, e.Kind, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
