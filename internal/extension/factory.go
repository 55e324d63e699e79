package extension

import (
	"sort"
	"sync"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
)

// Constructor builds the native object of an extension from its descriptor.
type Constructor func(d *Descriptor) (bridge.Native, error)

// Binder is implemented by native objects that call back into script. Bind
// runs once, after the bridge extension is created and before it attaches.
type Binder interface {
	Bind(ext *bridge.Extension)
}

// Factory maps class names to constructors.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// Register adds the constructor for class, replacing any earlier one.
func (f *Factory) Register(class string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[class] = ctor
}

// New constructs the native object described by d. The object's type name
// must equal the class so namespace and script lookups find it.
func (f *Factory) New(d *Descriptor) (bridge.Native, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[d.Class]
	f.mu.RUnlock()
	if !ok {
		return nil, &UnknownClassError{Class: d.Class}
	}

	native, err := ctor(d)
	if err != nil {
		return nil, err
	}
	if name := bridge.TypeName(native); name != d.Class {
		return nil, &ClassMismatchError{Class: d.Class, TypeName: name}
	}
	return native, nil
}

// Classes returns the registered class names in sorted order.
func (f *Factory) Classes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	classes := make([]string, 0, len(f.ctors))
	for class := range f.ctors {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}
