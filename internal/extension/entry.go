package extension

import (
	"time"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
)

// Entry represents a cataloged extension with its descriptor and optional
// supplementary script.
type Entry struct {
	// Descriptor is the parsed extension metadata
	Descriptor *Descriptor

	// Script is appended to the generated proxy; nil when absent
	Script *bridge.Script

	// LoadedAt is the timestamp when the entry was loaded
	LoadedAt time.Time
}

// Name returns the extension name.
func (e *Entry) Name() string {
	return e.Descriptor.Name
}

// Class returns the constructor class of the extension.
func (e *Entry) Class() string {
	return e.Descriptor.Class
}

// Namespace returns the default script namespace, which may be empty.
func (e *Entry) Namespace() string {
	return e.Descriptor.Namespace
}

// Version returns the extension version.
func (e *Entry) Version() string {
	return e.Descriptor.Version
}
