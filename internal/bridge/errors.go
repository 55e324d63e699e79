package bridge

import (
	"errors"
	"fmt"
)

// ErrDetached is reported to completion callbacks when script is evaluated
// through an extension that is not attached to a view.
var ErrDetached = errors.New("extension is not attached to a view")

// Configuration failure reasons.
const (
	ReasonNoNamespace      = "NoNamespace"
	ReasonInvalidNamespace = "InvalidNamespace"
	ReasonNoView           = "NoView"
	ReasonAlreadyAttached  = "AlreadyAttached"
)

// ConfigurationError occurs when an extension cannot be attached.
type ConfigurationError struct {
	Reason    string
	Extension string
	Detail    string
}

func (e *ConfigurationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("extension '%s': %s: %s", e.Extension, e.Reason, e.Detail)
	}
	return fmt.Sprintf("extension '%s': %s", e.Extension, e.Reason)
}

// EncodingError occurs when a supplementary script is not valid UTF-8 text.
type EncodingError struct {
	Resource string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("supplementary script '%s' must be UTF-8 encoded", e.Resource)
}

// ContractError occurs when a manifest declaration is inconsistent.
type ContractError struct {
	Member  string
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("invalid member '%s': %s", e.Member, e.Message)
}

// TypeError occurs when a native member returns a value of the wrong type:
// a method that does not return a boolean, or a getter whose value cannot
// cross the bridge.
type TypeError struct {
	Member string
	Want   string
	Got    string
	Err    error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("member '%s' returned %s, want %s", e.Member, e.Got, e.Want)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// NoSuchPropertyError occurs when a property accessor is not declared.
type NoSuchPropertyError struct {
	Property string
	Access   string // "read" or "write"
}

func (e *NoSuchPropertyError) Error() string {
	return fmt.Sprintf("property '%s' is not %s on the native side", e.Property, accessWord(e.Access))
}

func accessWord(access string) string {
	if access == "write" {
		return "writable"
	}
	return "defined"
}

// MethodNotFoundError occurs when an inbound call names an undeclared method
// or passes an argument the method does not declare.
type MethodNotFoundError struct {
	Method   string
	Argument string
}

func (e *MethodNotFoundError) Error() string {
	if e.Argument != "" {
		return fmt.Sprintf("native method '%s' has no parameter '%s'", e.Method, e.Argument)
	}
	return fmt.Sprintf("native method '%s' not found", e.Method)
}

// MalformedArgumentsError occurs when an argument list contains an empty
// mapping, which is how the script side encodes an undefined argument.
type MalformedArgumentsError struct {
	Method string
	Index  int
}

func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("arguments of '%s' contain an undefined value at position %d", e.Method, e.Index)
}

// UnknownMessageError occurs when an inbound message is neither a method
// call nor a property set, or cannot be decoded at all.
type UnknownMessageError struct {
	Body string
	Err  error
}

func (e *UnknownMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown message %q: %v", e.Body, e.Err)
	}
	return fmt.Sprintf("unknown message %q", e.Body)
}

func (e *UnknownMessageError) Unwrap() error {
	return e.Err
}

// CallError occurs when a native method fails or panics.
type CallError struct {
	Member string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("native method '%s' failed: %v", e.Member, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ChannelNotFoundError occurs when a message is addressed to a channel with
// no attached extension.
type ChannelNotFoundError struct {
	Channel int64
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("no extension attached to channel %d", e.Channel)
}

// IsFatal reports whether err signals a mismatch between the native surface
// and its script proxy, as opposed to a bad inbound message.
func IsFatal(err error) bool {
	var (
		cfgErr  *ConfigurationError
		encErr  *EncodingError
		ctrErr  *ContractError
		typeErr *TypeError
		propErr *NoSuchPropertyError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &encErr) ||
		errors.As(err, &ctrErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &propErr)
}
