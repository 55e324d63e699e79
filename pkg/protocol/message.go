package protocol

// Wire messages exchanged between the native side and the script side.
// This package defines the shared types used across internal packages.

import (
	"encoding/json"
)

// Outbound entry points on the script-side extension object.
const (
	ReleaseArgumentsFunc = ".releaseArguments"
	InvokeCallbackFunc   = ".invokeCallback"
)

// Reserved argument names.
const (
	// PromiseParam marks a method whose script stub returns a Promise.
	// Its value is the callback id of the [resolve, reject] pair.
	PromiseParam = "_Promise"

	// CallIDParam carries the correlation id of the inbound call.
	CallIDParam = "cid"

	// SetterParam is the single argument of a property setter.
	SetterParam = "val"
)

// Argument is one {name: value} entry of a method call's argument list.
type Argument map[string]Value

// Message is an inbound message posted by the script side.
//
// A method call carries Method, Arguments and CallID; a property set carries
// Property and Value.
type Message struct {
	Method    *string    `json:"method,omitempty"`
	Arguments []Argument `json:"arguments,omitempty"`
	CallID    Value      `json:"callid"`
	Property  *string    `json:"property,omitempty"`
	Value     Value      `json:"value"`
}

// IsMethodCall reports whether the message names a method.
func (m *Message) IsMethodCall() bool {
	return m.Method != nil
}

// IsPropertySet reports whether the message assigns a property.
func (m *Message) IsPropertySet() bool {
	return m.Method == nil && m.Property != nil
}

// DecodeMessage parses a message body as posted by the view.
func DecodeMessage(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewMethodCall builds a method call message.
func NewMethodCall(method string, callID Value, args ...Argument) *Message {
	if args == nil {
		args = []Argument{}
	}
	return &Message{Method: &method, Arguments: args, CallID: callID}
}

// NewPropertySet builds a property set message.
func NewPropertySet(property string, value Value) *Message {
	return &Message{Property: &property, Value: value}
}

// Encode serializes the message into its wire form.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
