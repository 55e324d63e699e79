package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/internal/config"
)

// Manager manages the extension lifecycle: discovery, instantiation and
// attachment to a view.
type Manager struct {
	cfg      *config.HostConfig
	factory  *Factory
	loader   *Loader
	registry *Registry
	channels *bridge.Channels
	options  []bridge.Option
	logger   *zap.Logger
	base     *zap.Logger

	mu         sync.RWMutex
	loaded     bool
	extensions map[string]*bridge.Extension // name -> extension
}

// NewManager creates a new extension manager. options are applied to every
// bridge extension it creates.
func NewManager(
	cfg *config.HostConfig,
	factory *Factory,
	channels *bridge.Channels,
	logger *zap.Logger,
	options ...bridge.Option,
) *Manager {
	return &Manager{
		cfg:        cfg,
		factory:    factory,
		loader:     NewLoader(logger),
		registry:   NewRegistry(logger),
		channels:   channels,
		options:    options,
		logger:     logger.With(zap.String("component", "extension-manager")),
		base:       logger,
		extensions: make(map[string]*bridge.Extension),
	}
}

// NewEntry catalogs an extension that does not live on disk.
func NewEntry(d *Descriptor, script *bridge.Script) *Entry {
	return &Entry{Descriptor: d, Script: script, LoadedAt: time.Now()}
}

// LoadAll discovers and instantiates all extensions from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return fmt.Errorf("extensions already loaded")
	}
	m.loaded = true
	m.mu.Unlock()

	m.logger.Info("Loading extensions",
		zap.Strings("paths", m.cfg.ExtensionPaths),
	)

	// Discover extensions
	entries, err := m.loader.DiscoverEntries(m.cfg.ExtensionPaths)
	if err != nil {
		// Check if it's a NoExtensionsFoundError - log warning but don't fail
		if _, ok := err.(*NoExtensionsFoundError); ok {
			m.logger.Warn("No extensions found in configured paths",
				zap.Strings("paths", m.cfg.ExtensionPaths),
			)
			return nil
		}
		return err
	}

	// Install all extensions
	installed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Install(entry); err != nil {
			m.logger.Error("Failed to install extension",
				zap.String("name", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		installed++
	}

	m.logger.Info("Extensions loaded successfully",
		zap.Int("count", installed),
	)

	return nil
}

// Install registers entry and builds its bridge extension.
func (m *Manager) Install(entry *Entry) error {
	if err := entry.Descriptor.Validate(); err != nil {
		return err
	}
	if err := m.registry.Register(entry); err != nil {
		return err
	}

	ext, err := m.build(entry)
	if err != nil {
		m.registry.Unregister(entry.Name())
		return &ExtensionLoadError{
			ExtensionName: entry.Name(),
			Err:           err,
		}
	}

	m.mu.Lock()
	m.extensions[entry.Name()] = ext
	m.mu.Unlock()

	return nil
}

func (m *Manager) build(entry *Entry) (*bridge.Extension, error) {
	native, err := m.factory.New(entry.Descriptor)
	if err != nil {
		return nil, err
	}

	opts := []bridge.Option{
		bridge.WithLogger(m.base),
		bridge.WithNamespaceResolver(m.registry),
		bridge.WithScriptSource(m.registry),
	}
	opts = append(opts, m.options...)

	ext, err := bridge.NewExtension(native, m.channels, opts...)
	if err != nil {
		return nil, err
	}
	if binder, ok := native.(Binder); ok {
		binder.Bind(ext)
	}
	return ext, nil
}

// AttachAll attaches every installed extension to view under its default
// namespace. Extensions that fail to attach are reported together; the
// others stay attached.
func (m *Manager) AttachAll(view bridge.View) error {
	var errs []error
	for _, name := range m.names() {
		ext, err := m.Get(name)
		if err != nil {
			continue
		}
		if err := ext.Attach(view, ""); err != nil {
			m.logger.Error("Failed to attach extension",
				zap.String("name", name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("extension '%s': %w", name, err))
			continue
		}
	}
	return errors.Join(errs...)
}

// DetachAll detaches every installed extension.
func (m *Manager) DetachAll() {
	for _, ext := range m.Extensions() {
		ext.Detach()
	}
}

// Get retrieves an installed extension by name.
func (m *Manager) Get(name string) (*bridge.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.extensions[name]
	if !ok {
		return nil, &ExtensionNotFoundError{ExtensionName: name}
	}

	return ext, nil
}

// Extensions returns the installed extensions ordered by name.
func (m *Manager) Extensions() []*bridge.Extension {
	names := m.names()

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*bridge.Extension, 0, len(names))
	for _, name := range names {
		if ext, ok := m.extensions[name]; ok {
			result = append(result, ext)
		}
	}
	return result
}

func (m *Manager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.extensions))
	for name := range m.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown detaches all extensions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down extension manager")

	m.DetachAll()

	m.logger.Info("Extension manager shutdown complete")
	return nil
}

// Registry returns the extension registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Factory returns the constructor factory.
func (m *Manager) Factory() *Factory {
	return m.factory
}

// IsLoaded returns whether extensions have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
