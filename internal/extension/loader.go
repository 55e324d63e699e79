package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
)

// Loader handles loading extension descriptors from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new extension loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{
		logger: logger.With(zap.String("component", "extension-loader")),
	}
}

// LoadEntry loads a single extension from a directory.
func (l *Loader) LoadEntry(dir string) (*Entry, error) {
	l.logger.Debug("Loading extension", zap.String("dir", dir))

	// Parse descriptor
	descriptor, err := ParseDescriptor(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading extension",
		zap.String("name", descriptor.Name),
		zap.String("version", descriptor.Version),
		zap.String("class", descriptor.Class),
	)

	// Read supplementary script; the default <class>.js is optional
	var script *bridge.Script
	scriptPath := descriptor.ScriptPath()
	source, err := os.ReadFile(scriptPath)
	switch {
	case err == nil:
		script = &bridge.Script{Name: filepath.Base(scriptPath), Source: source}
	case os.IsNotExist(err) && descriptor.Script == "":
	default:
		return nil, &ExtensionLoadError{
			ExtensionName: descriptor.Name,
			Err:           err,
		}
	}

	entry := &Entry{
		Descriptor: descriptor,
		Script:     script,
		LoadedAt:   time.Now(),
	}

	l.logger.Info("Extension loaded successfully",
		zap.String("name", descriptor.Name),
		zap.Bool("script", script != nil),
	)

	return entry, nil
}

// DiscoverEntries scans directories for extensions.
func (l *Loader) DiscoverEntries(paths []string) ([]*Entry, error) {
	var entries []*Entry
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning extension directory", zap.String("path", basePath))

		// Read subdirectories
		dirEntries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Extension path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as an extension
		for _, dirEntry := range dirEntries {
			if !dirEntry.IsDir() {
				continue
			}

			extDir := filepath.Join(basePath, dirEntry.Name())

			entry, err := l.LoadEntry(extDir)
			if err != nil {
				l.logger.Error("Failed to load extension",
					zap.String("dir", extDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			entries = append(entries, entry)
		}
	}

	// If we found some extensions but had errors, log warning but continue
	if len(entries) > 0 && len(errs) > 0 {
		l.logger.Warn("Some extensions failed to load",
			zap.Int("loaded", len(entries)),
			zap.Int("failed", len(errs)),
		)
	}

	// If no extensions loaded, return error
	if len(entries) == 0 {
		return nil, &NoExtensionsFoundError{Paths: paths}
	}

	return entries, nil
}
