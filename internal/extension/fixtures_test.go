package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// writeExtension creates base/dir with an extension.yaml and extra files.
func writeExtension(t *testing.T, base, dir, descriptor string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(base, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, DescriptorFile), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(path, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

const greeterDescriptor = `
name: greeter
version: 1.0.0
class: Greeter
namespace: greeter
description: Says hello
options:
  greeting: hello
`

// greeter is a minimal native object for catalog tests.
type greeter struct {
	greeting string
}

func (g *greeter) Expose(m *bridge.Manifest) {
	m.Method("greet", []string{"name"}, func(bridge.Args) (any, error) { return true, nil })
	m.Property("greeting", func() any { return g.greeting }, nil)
}

func (g *greeter) ExtensionName() string { return "Greeter" }

func newGreeter(d *Descriptor) (bridge.Native, error) {
	g := &greeter{greeting: "hi"}
	if s, ok := d.Options["greeting"].(string); ok {
		g.greeting = s
	}
	return g, nil
}

// recordingView collects startup scripts; it never has a live context.
type recordingView struct {
	handlers map[int64]bridge.MessageHandler
	startup  []string
}

func newRecordingView() *recordingView {
	return &recordingView{handlers: make(map[int64]bridge.MessageHandler)}
}

func (v *recordingView) RegisterHandler(id int64, h bridge.MessageHandler) error {
	v.handlers[id] = h
	return nil
}

func (v *recordingView) UnregisterHandler(id int64) {
	delete(v.handlers, id)
}

func (v *recordingView) InjectStartupScript(source string) error {
	v.startup = append(v.startup, source)
	return nil
}

func (v *recordingView) Evaluate(_ string, done func(protocol.Value, error)) {
	if done != nil {
		done(protocol.Null(), nil)
	}
}

func (v *recordingView) HasScriptContext() bool {
	return false
}
