// Package registry maps block type names to their descriptors: the default
// props and slots a new block of that type starts with.
//
// Descriptors are declared in YAML. Fields may be grouped, and groups may
// nest; a group only organises the editor form, so [Descriptor.DefaultProps]
// flattens every group into one props map keyed by field name.
//
//	types:
//	  - type: section
//	    slots: [content]
//	    fields:
//	      - name: layout
//	        fields:
//	          - name: width
//	            default: full
//
// A [Registry] is safe for concurrent use and can be swapped in place, which
// is how [Registry.Watch] hot reloads a file.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pagecraft/pagecraft/pkg/models"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrUnknownType is returned by Lookup for a type with no descriptor.
var ErrUnknownType = errors.New("unknown block type")

// Lookup resolves block types. The mutation engine depends on this rather
// than on *Registry.
type Lookup interface {
	Lookup(typ string) (*Descriptor, error)
}

// Field is one editable prop, or a group of fields when Fields is set.
type Field struct {
	Name    string  `yaml:"name" json:"name" validate:"required"`
	Label   string  `yaml:"label,omitempty" json:"label,omitempty"`
	Default any     `yaml:"default,omitempty" json:"default,omitempty"`
	Fields  []Field `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
}

// IsGroup reports whether f groups other fields.
func (f Field) IsGroup() bool { return len(f.Fields) > 0 }

// Descriptor describes one block type.
type Descriptor struct {
	Type   string   `yaml:"type" json:"type" validate:"required,excludesall=/"`
	Label  string   `yaml:"label,omitempty" json:"label,omitempty"`
	Fields []Field  `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
	Slots  []string `yaml:"slots,omitempty" json:"slots,omitempty" validate:"unique,dive,required,ne=root"`
}

// DefaultProps returns a fresh props map holding every field default, with
// groups flattened at any depth. Fields without a default are omitted.
func (d *Descriptor) DefaultProps() models.Props {
	props := models.Props{}
	flatten(d.Fields, props)
	return props.Clone()
}

func flatten(fields []Field, into models.Props) {
	for _, f := range fields {
		if f.IsGroup() {
			flatten(f.Fields, into)
			continue
		}
		if f.Default != nil {
			into[f.Name] = f.Default
		}
	}
}

// DefaultSlots returns a fresh slots map with every declared slot empty.
func (d *Descriptor) DefaultSlots() models.Slots {
	slots := make(models.Slots, len(d.Slots))
	for _, name := range d.Slots {
		slots[name] = []models.ID{}
	}
	return slots
}

type file struct {
	Types []*Descriptor `yaml:"types" validate:"min=1,dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a YAML descriptor set.
func Parse(r io.Reader) ([]*Descriptor, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validate registry: %w", err)
	}
	seen := make(map[string]bool, len(f.Types))
	for _, d := range f.Types {
		if seen[d.Type] {
			return nil, fmt.Errorf("validate registry: type %q declared twice", d.Type)
		}
		seen[d.Type] = true
	}
	return f.Types, nil
}

// ParseFile is Parse on the file at path.
func ParseFile(path string) ([]*Descriptor, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	descs, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return descs, nil
}

// Registry is the in-memory descriptor table.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Descriptor
}

var _ Lookup = (*Registry)(nil)

// New returns a registry holding descs.
func New(descs ...*Descriptor) *Registry {
	r := &Registry{}
	r.Replace(descs)
	return r
}

// Default returns a registry with the built-in block types.
func Default() (*Registry, error) {
	descs, err := Parse(bytes.NewReader(defaultYAML))
	if err != nil {
		return nil, err
	}
	return New(descs...), nil
}

// Open returns a registry loaded from path, or the built-in types when path
// is empty.
func Open(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	descs, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(descs...), nil
}

func (r *Registry) Lookup(typ string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return d, nil
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}

// Replace swaps the whole descriptor set atomically.
func (r *Registry) Replace(descs []*Descriptor) {
	types := make(map[string]*Descriptor, len(descs))
	for _, d := range descs {
		types[d.Type] = d
	}
	r.mu.Lock()
	r.types = types
	r.mu.Unlock()
}
