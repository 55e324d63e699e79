package extension

import (
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
)

// DescriptorFile is the descriptor file name inside an extension directory.
const DescriptorFile = "extension.yaml"

// Descriptor represents the extension.yaml structure.
type Descriptor struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Class       string         `yaml:"class"`
	Namespace   string         `yaml:"namespace"`
	Script      string         `yaml:"script"`
	Description string         `yaml:"description"`
	Options     map[string]any `yaml:"options"`

	// Internal fields
	dir string // Directory containing descriptor
}

var (
	namePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	classPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ParseDescriptor reads and parses extension.yaml from a directory.
func ParseDescriptor(dir string) (*Descriptor, error) {
	descriptorPath := filepath.Join(dir, DescriptorFile)

	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, &DescriptorNotFoundError{
			Path: descriptorPath,
			Err:  err,
		}
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, &DescriptorParseError{
			Path: descriptorPath,
			Err:  err,
		}
	}

	d.dir = dir

	// Validate descriptor
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Validate checks descriptor fields.
func (d *Descriptor) Validate() error {
	// Check required fields
	if d.Name == "" {
		return &DescriptorValidationError{
			Path:    d.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}
	if !namePattern.MatchString(d.Name) {
		return &DescriptorValidationError{
			Path:    d.Path(),
			Field:   "name",
			Message: "name must be lower case letters, digits, '.', '_' or '-'",
		}
	}

	if d.Class == "" {
		return &DescriptorValidationError{
			Path:    d.Path(),
			Field:   "class",
			Message: "class is required",
		}
	}
	if !classPattern.MatchString(d.Class) {
		return &DescriptorValidationError{
			Path:    d.Path(),
			Field:   "class",
			Message: "class must be an identifier",
		}
	}

	// The namespace may be left to the attaching host
	if d.Namespace != "" && !bridge.ValidNamespace(d.Namespace) {
		return &DescriptorValidationError{
			Path:    d.Path(),
			Field:   "namespace",
			Message: "namespace must be a dotted script identifier",
		}
	}

	// Validate script file exists
	if d.Script != "" && d.dir != "" {
		if _, err := os.Stat(d.ScriptPath()); os.IsNotExist(err) {
			return &ScriptNotFoundError{
				DescriptorPath: d.Path(),
				ScriptFile:     d.Script,
			}
		}
	}

	return nil
}

// Path returns the descriptor file path.
func (d *Descriptor) Path() string {
	return filepath.Join(d.dir, DescriptorFile)
}

// ScriptPath returns the path of the supplementary script. Without an
// explicit script it is <class>.js next to the descriptor.
func (d *Descriptor) ScriptPath() string {
	if d.Script != "" {
		return filepath.Join(d.dir, d.Script)
	}
	return filepath.Join(d.dir, d.Class+".js")
}

// Dir returns the directory containing the descriptor.
func (d *Descriptor) Dir() string {
	return d.dir
}
