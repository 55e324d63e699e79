package extension

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
)

// Registry manages cataloged extensions. It answers default namespace and
// supplementary script lookups for the bridge by class name.
type Registry struct {
	sync.RWMutex
	entries map[string]*Entry // name -> entry
	byClass map[string]*Entry // class -> entry
	logger  *zap.Logger
}

var (
	_ bridge.NamespaceResolver = (*Registry)(nil)
	_ bridge.ScriptSource      = (*Registry)(nil)
)

// NewRegistry creates a new extension registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		byClass: make(map[string]*Entry),
		logger:  logger.With(zap.String("component", "extension-registry")),
	}
}

// Register adds an extension to the registry.
func (r *Registry) Register(entry *Entry) error {
	r.Lock()
	defer r.Unlock()

	name := entry.Name()

	// Check for duplicates
	if _, exists := r.entries[name]; exists {
		return &ExtensionAlreadyRegisteredError{ExtensionName: name}
	}
	class := entry.Class()
	if _, exists := r.byClass[class]; exists {
		return &ExtensionAlreadyRegisteredError{ExtensionName: name, Class: class}
	}

	r.entries[name] = entry
	r.byClass[class] = entry

	r.logger.Info("Extension registered",
		zap.String("name", name),
		zap.String("class", class),
		zap.String("namespace", entry.Namespace()),
	)

	return nil
}

// Get retrieves an extension by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.RLock()
	defer r.RUnlock()

	entry, ok := r.entries[name]
	return entry, ok
}

// LookupByClass finds the extension registered for a class.
func (r *Registry) LookupByClass(class string) (*Entry, bool) {
	r.RLock()
	defer r.RUnlock()

	entry, ok := r.byClass[class]
	return entry, ok
}

// NamespaceFor implements bridge.NamespaceResolver.
func (r *Registry) NamespaceFor(typeName string) (string, bool) {
	entry, ok := r.LookupByClass(typeName)
	if !ok || entry.Namespace() == "" {
		return "", false
	}
	return entry.Namespace(), true
}

// Script implements bridge.ScriptSource.
func (r *Registry) Script(typeName string) (*bridge.Script, error) {
	entry, ok := r.LookupByClass(typeName)
	if !ok {
		return nil, nil
	}
	return entry.Script, nil
}

// List returns all registered extensions sorted by name.
func (r *Registry) List() []*Entry {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Unregister removes an extension from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return
	}

	delete(r.byClass, entry.Class())
	delete(r.entries, name)

	r.logger.Info("Extension unregistered", zap.String("name", name))
}

// Count returns the number of registered extensions.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.entries)
}
