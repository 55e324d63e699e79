package jsview

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is reported for work submitted to a closed view.
	ErrClosed = errors.New("view is closed")

	// ErrNoContext is reported when script is evaluated before a page is loaded.
	ErrNoContext = errors.New("view has no script context")

	// ErrQueueFull is reported when the job queue is at capacity.
	ErrQueueFull = errors.New("view job queue is full")

	// ErrTimeout interrupts scripts running longer than the configured limit.
	ErrTimeout = errors.New("script evaluation timed out")
)

// ChannelInUseError occurs when a second handler is registered for a channel.
type ChannelInUseError struct {
	Channel int64
}

func (e *ChannelInUseError) Error() string {
	return fmt.Sprintf("channel %d already has a handler", e.Channel)
}

// ScriptError wraps a failure raised while running script.
type ScriptError struct {
	Script string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script '%s' failed: %v", e.Script, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
