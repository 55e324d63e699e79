// Package sample provides a demonstration extension exercising every kind of
// bridge member: acknowledged methods, callbacks, promises and properties.
package sample

import (
	"fmt"
	"sync"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/internal/extension"
	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// Class is the constructor class of the sample extension.
const Class = "Sample"

// Sample is a calculator-like native object.
type Sample struct {
	mu      sync.Mutex
	ext     *bridge.Extension
	version string
	counter float64
	total   float64
}

var (
	_ bridge.Named     = (*Sample)(nil)
	_ extension.Binder = (*Sample)(nil)
)

// New builds a Sample from its descriptor. The "counter" option seeds the
// counter property.
func New(d *extension.Descriptor) (bridge.Native, error) {
	s := &Sample{version: d.Version}
	if raw, ok := d.Options["counter"]; ok {
		n, err := protocol.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("option 'counter': %w", err)
		}
		counter, ok := n.AsNumber()
		if !ok {
			return nil, fmt.Errorf("option 'counter' must be a number, got %s", n.Kind())
		}
		s.counter = counter
	}
	return s, nil
}

// Register adds the sample class to f.
func Register(f *extension.Factory) {
	f.Register(Class, New)
}

// Descriptor returns the built-in descriptor of the sample extension.
func Descriptor(version string) *extension.Descriptor {
	return &extension.Descriptor{
		Name:        "sample",
		Version:     version,
		Class:       Class,
		Namespace:   "sample",
		Description: "Demonstration extension",
	}
}

// ExtensionName implements bridge.Named.
func (s *Sample) ExtensionName() string { return Class }

// Bind implements extension.Binder.
func (s *Sample) Bind(ext *bridge.Extension) {
	s.mu.Lock()
	s.ext = ext
	s.mu.Unlock()
}

// Total returns the sum of everything added so far.
func (s *Sample) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Sample) Expose(m *bridge.Manifest) {
	m.Method("add", []string{"a", "b"}, s.add)
	m.Method("repeat", []string{"times", "callback"}, s.repeat)
	m.Method("echo", []string{"message", protocol.PromiseParam}, s.echo)
	m.Method("divide", []string{"a", "b", protocol.PromiseParam}, s.divide)
	m.Property("counter", s.getCounter, s.setCounter)
	m.Getter("version", func() any { return s.version })
	m.Getter("total", func() any { return s.Total() })
}

// add accumulates a+b into the running total.
func (s *Sample) add(args bridge.Args) (any, error) {
	a, ok := args.Number("a")
	if !ok {
		return nil, fmt.Errorf("argument 'a' is not a number")
	}
	b, ok := args.Number("b")
	if !ok {
		return nil, fmt.Errorf("argument 'b' is not a number")
	}
	s.mu.Lock()
	s.total += a + b
	s.mu.Unlock()
	return true, nil
}

// repeat invokes callback once per iteration with the iteration index, then
// releases the call's arguments.
func (s *Sample) repeat(args bridge.Args) (any, error) {
	times, _ := args.Number("times")
	id, ok := args.Callback("callback")
	if !ok {
		return nil, fmt.Errorf("argument 'callback' is not a function")
	}
	ext := s.extension()
	if ext == nil {
		return true, nil
	}
	for i := 0; i < int(times); i++ {
		ext.InvokeCallback(id, i)
	}
	ext.ReleaseArguments(args.CallID())
	return false, nil
}

func (s *Sample) echo(args bridge.Args) (any, error) {
	id, ok := args.Promise()
	if !ok {
		return nil, fmt.Errorf("missing promise")
	}
	ext := s.extension()
	if ext == nil {
		return true, nil
	}
	ext.Resolve(id, args.Get("message"))
	ext.ReleaseArguments(args.CallID())
	return false, nil
}

// divide resolves with a/b or rejects on a zero divisor.
func (s *Sample) divide(args bridge.Args) (any, error) {
	id, ok := args.Promise()
	if !ok {
		return nil, fmt.Errorf("missing promise")
	}
	ext := s.extension()
	if ext == nil {
		return true, nil
	}
	a, _ := args.Number("a")
	b, _ := args.Number("b")
	if b == 0 {
		ext.Reject(id, "division by zero")
	} else {
		ext.Resolve(id, a/b)
	}
	ext.ReleaseArguments(args.CallID())
	return false, nil
}

func (s *Sample) getCounter() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// setCounter ignores values that are not numbers.
func (s *Sample) setCounter(val protocol.Value) {
	n, ok := val.AsNumber()
	if !ok {
		return
	}
	s.mu.Lock()
	s.counter = n
	s.mu.Unlock()
}

func (s *Sample) extension() *bridge.Extension {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ext
}
