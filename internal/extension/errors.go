package extension

import (
	"fmt"
)

// DescriptorNotFoundError occurs when extension.yaml is not found in a directory.
type DescriptorNotFoundError struct {
	Path string
	Err  error
}

func (e *DescriptorNotFoundError) Error() string {
	return fmt.Sprintf("descriptor not found at '%s': %v", e.Path, e.Err)
}

func (e *DescriptorNotFoundError) Unwrap() error {
	return e.Err
}

// DescriptorParseError occurs when extension.yaml cannot be parsed as valid YAML.
type DescriptorParseError struct {
	Path string
	Err  error
}

func (e *DescriptorParseError) Error() string {
	return fmt.Sprintf("failed to parse descriptor at '%s': %v", e.Path, e.Err)
}

func (e *DescriptorParseError) Unwrap() error {
	return e.Err
}

// DescriptorValidationError occurs when extension.yaml fails validation.
type DescriptorValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *DescriptorValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("descriptor validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("descriptor validation failed at '%s': %s", e.Path, e.Message)
}

// ScriptNotFoundError occurs when the script referenced in a descriptor doesn't exist.
type ScriptNotFoundError struct {
	DescriptorPath string
	ScriptFile     string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script '%s' not found (referenced in descriptor '%s')",
		e.ScriptFile, e.DescriptorPath)
}

// ExtensionLoadError occurs when an extension cannot be loaded or instantiated.
type ExtensionLoadError struct {
	ExtensionName string
	Err           error
}

func (e *ExtensionLoadError) Error() string {
	return fmt.Sprintf("failed to load extension '%s': %v", e.ExtensionName, e.Err)
}

func (e *ExtensionLoadError) Unwrap() error {
	return e.Err
}

// ExtensionNotFoundError occurs when an extension is not found in the registry.
type ExtensionNotFoundError struct {
	ExtensionName string
}

func (e *ExtensionNotFoundError) Error() string {
	return fmt.Sprintf("extension '%s' not found", e.ExtensionName)
}

// ExtensionAlreadyRegisteredError occurs when attempting to register a
// duplicate extension name or a second extension of the same class.
type ExtensionAlreadyRegisteredError struct {
	ExtensionName string
	Class         string
}

func (e *ExtensionAlreadyRegisteredError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("extension '%s': class '%s' is already registered", e.ExtensionName, e.Class)
	}
	return fmt.Sprintf("extension '%s' is already registered", e.ExtensionName)
}

// UnknownClassError occurs when no constructor is registered for a class.
type UnknownClassError struct {
	Class string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("no constructor registered for class '%s'", e.Class)
}

// ClassMismatchError occurs when a constructor returns a native object whose
// type name differs from the class it was registered for.
type ClassMismatchError struct {
	Class    string
	TypeName string
}

func (e *ClassMismatchError) Error() string {
	return fmt.Sprintf("constructor for class '%s' returned '%s'", e.Class, e.TypeName)
}

// NoExtensionsFoundError occurs when no extensions are found in the configured paths.
type NoExtensionsFoundError struct {
	Paths []string
}

func (e *NoExtensionsFoundError) Error() string {
	return fmt.Sprintf("no extensions found in paths: %v", e.Paths)
}
