package extension

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/internal/config"
)

func newTestManager(t *testing.T, paths ...string) *Manager {
	t.Helper()
	factory := NewFactory()
	factory.Register("Greeter", newGreeter)
	cfg := &config.HostConfig{ExtensionPaths: paths}
	return NewManager(cfg, factory, bridge.NewChannels(), zap.NewNop())
}

func TestNewManager(t *testing.T) {
	manager := newTestManager(t)

	if manager == nil {
		t.Fatal("NewManager() returned nil")
	}

	if manager.IsLoaded() {
		t.Error("new manager should not be loaded")
	}

	if manager.Registry() == nil || manager.Factory() == nil {
		t.Error("registry and factory should be set")
	}
}

func TestManager_LoadAll(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "greeter", greeterDescriptor, map[string]string{
		"Greeter.js": "exports.wave = function() { return 'o/'; };\n",
	})
	writeExtension(t, base, "orphan", "name: orphan\nclass: Orphan\nnamespace: orphan\n", nil)

	manager := newTestManager(t, base)
	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}

	if !manager.IsLoaded() {
		t.Error("manager should be loaded")
	}

	if _, err := manager.Get("greeter"); err != nil {
		t.Errorf("Get('greeter') failed: %v", err)
	}

	// Orphan has no registered class; it is skipped and not cataloged.
	if _, err := manager.Get("orphan"); err == nil {
		t.Error("extension with unknown class should not be installed")
	}
	if manager.Registry().Count() != 1 {
		t.Errorf("expected 1 registered extension, got %d", manager.Registry().Count())
	}

	if err := manager.LoadAll(context.Background()); err == nil {
		t.Error("second LoadAll() should fail")
	}
}

func TestManager_LoadAll_NoExtensions(t *testing.T) {
	manager := newTestManager(t, t.TempDir())

	if err := manager.LoadAll(context.Background()); err != nil {
		t.Errorf("LoadAll() with no extensions should only warn, got %v", err)
	}

	if len(manager.Extensions()) != 0 {
		t.Error("expected no extensions")
	}
}

func TestManager_AttachAll(t *testing.T) {
	manager := newTestManager(t)
	script := &bridge.Script{Name: "Greeter.js", Source: []byte("exports.wave = 1;")}
	d := &Descriptor{Name: "greeter", Class: "Greeter", Namespace: "greeter"}
	if err := manager.Install(NewEntry(d, script)); err != nil {
		t.Fatalf("Install() failed: %v", err)
	}

	view := newRecordingView()
	if err := manager.AttachAll(view); err != nil {
		t.Fatalf("AttachAll() failed: %v", err)
	}

	ext, err := manager.Get("greeter")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if ext.Namespace() != "greeter" {
		t.Errorf("expected namespace 'greeter', got '%s'", ext.Namespace())
	}

	if len(view.startup) != 1 {
		t.Fatalf("expected 1 startup script, got %d", len(view.startup))
	}

	stub := view.startup[0]
	if !strings.Contains(stub, "exports.wave = 1;") {
		t.Error("stub should carry the supplementary script")
	}
	if !strings.HasSuffix(stub, `})(Extension.create(1, "greeter"));`) {
		t.Errorf("unexpected stub suffix:\n%s", stub)
	}
	if _, ok := view.handlers[1]; !ok {
		t.Error("channel 1 should be registered")
	}

	manager.DetachAll()
	if ext.Attached() {
		t.Error("DetachAll() should detach every extension")
	}
	if len(view.handlers) != 0 {
		t.Error("DetachAll() should unregister channels")
	}
}

func TestManager_AttachAll_NoNamespace(t *testing.T) {
	manager := newTestManager(t)
	if err := manager.Install(NewEntry(&Descriptor{Name: "greeter", Class: "Greeter"}, nil)); err != nil {
		t.Fatalf("Install() failed: %v", err)
	}

	err := manager.AttachAll(newRecordingView())

	var cfgErr *bridge.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Reason != bridge.ReasonNoNamespace {
		t.Errorf("expected reason '%s', got '%s'", bridge.ReasonNoNamespace, cfgErr.Reason)
	}
}

func TestManager_Install_Failures(t *testing.T) {
	manager := newTestManager(t)

	err := manager.Install(NewEntry(&Descriptor{Name: "ghost", Class: "Ghost", Namespace: "ghost"}, nil))
	var loadErr *ExtensionLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ExtensionLoadError, got %T", err)
	}
	var classErr *UnknownClassError
	if !errors.As(err, &classErr) {
		t.Errorf("expected wrapped UnknownClassError, got %v", err)
	}
	if manager.Registry().Count() != 0 {
		t.Error("failed install should be unregistered")
	}

	err = manager.Install(NewEntry(&Descriptor{Name: "Bad Name", Class: "Greeter"}, nil))
	if _, ok := err.(*DescriptorValidationError); !ok {
		t.Errorf("expected DescriptorValidationError, got %T", err)
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Get("missing")
	if _, ok := err.(*ExtensionNotFoundError); !ok {
		t.Errorf("expected ExtensionNotFoundError, got %T", err)
	}
}

func TestManager_Shutdown(t *testing.T) {
	manager := newTestManager(t)
	_ = manager.Install(NewEntry(&Descriptor{Name: "greeter", Class: "Greeter", Namespace: "greeter"}, nil))
	if err := manager.AttachAll(newRecordingView()); err != nil {
		t.Fatalf("AttachAll() failed: %v", err)
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	ext, _ := manager.Get("greeter")
	if ext.Attached() {
		t.Error("Shutdown() should detach extensions")
	}
}
