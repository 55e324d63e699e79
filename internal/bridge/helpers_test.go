package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// recordingView is an in-memory View that evaluates nothing and records
// every script it is handed.
type recordingView struct {
	mu        sync.Mutex
	handlers  map[int64]MessageHandler
	startup   []string
	scripts   []string
	live      bool
	evalErr   error
	injectErr error
}

func newRecordingView() *recordingView {
	return &recordingView{handlers: make(map[int64]MessageHandler)}
}

func (v *recordingView) RegisterHandler(id int64, h MessageHandler) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.handlers[id]; exists {
		return errors.New("channel already registered")
	}
	v.handlers[id] = h
	return nil
}

func (v *recordingView) UnregisterHandler(id int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.handlers, id)
}

func (v *recordingView) InjectStartupScript(source string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.injectErr != nil {
		return v.injectErr
	}
	v.startup = append(v.startup, source)
	return nil
}

func (v *recordingView) Evaluate(source string, done func(protocol.Value, error)) {
	v.mu.Lock()
	v.scripts = append(v.scripts, source)
	err := v.evalErr
	v.mu.Unlock()
	if done != nil {
		done(protocol.Null(), err)
	}
}

func (v *recordingView) HasScriptContext() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.live
}

func (v *recordingView) post(t *testing.T, id int64, body string) error {
	t.Helper()
	v.mu.Lock()
	h, ok := v.handlers[id]
	v.mu.Unlock()
	if !ok {
		t.Fatalf("no handler registered for channel %d", id)
	}
	return h.HandleMessage([]byte(body))
}

func (v *recordingView) evaluated() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.scripts...)
}

func (v *recordingView) handlerCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.handlers)
}

// calculator is a native test object covering every member shape.
type calculator struct {
	mu       sync.Mutex
	calls    []Args
	promises []uint32
	counter  float64
}

func (c *calculator) Expose(m *Manifest) {
	m.Method("add", []string{"a", "b"}, func(args Args) (any, error) {
		c.record(args)
		return true, nil
	})
	m.Method("later", []string{"a"}, func(args Args) (any, error) {
		c.record(args)
		return false, nil
	})
	m.Method("echo", []string{"message", protocol.PromiseParam}, func(args Args) (any, error) {
		c.record(args)
		if id, ok := args.Promise(); ok {
			c.mu.Lock()
			c.promises = append(c.promises, id)
			c.mu.Unlock()
		}
		return false, nil
	})
	m.Method("fail", nil, func(args Args) (any, error) {
		c.record(args)
		return nil, errors.New("boom")
	})
	m.Method("explode", nil, func(args Args) (any, error) {
		panic("kaboom")
	})
	m.Method("broken", nil, func(args Args) (any, error) {
		return 42, nil
	})
	m.Property("counter", func() any {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.counter
	}, func(val protocol.Value) {
		n, _ := val.AsNumber()
		c.mu.Lock()
		c.counter = n
		c.mu.Unlock()
	})
	m.Property("version", func() any { return "1.0" }, nil)
}

func (c *calculator) record(args Args) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, args)
}

func (c *calculator) recorded() []Args {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Args(nil), c.calls...)
}

// adder exposes a single method and property; its proxy is small enough to
// compare literally.
type adder struct{}

func (adder) Expose(m *Manifest) {
	m.Method("add", []string{"a", "b"}, func(Args) (any, error) { return true, nil })
	m.Property("counter", func() any { return 0 }, func(protocol.Value) {})
}

type staticNamespaces map[string]string

func (s staticNamespaces) NamespaceFor(typeName string) (string, bool) {
	ns, ok := s[typeName]
	return ns, ok
}

type staticScripts map[string]*Script

func (s staticScripts) Script(typeName string) (*Script, error) {
	return s[typeName], nil
}

func attachCalculator(t *testing.T, opts ...Option) (*Extension, *calculator, *recordingView) {
	t.Helper()
	native := &calculator{}
	ext, err := NewExtension(native, NewChannels(), opts...)
	if err != nil {
		t.Fatalf("NewExtension() failed: %v", err)
	}
	view := newRecordingView()
	if err := ext.Attach(view, "sample"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	return ext, native, view
}
