// Package catalog loads the receipt templates users start from.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

//go:embed templates
var builtin embed.FS

// IndexFile lists the templates of a catalog directory.
const IndexFile = "index.yaml"

var ErrNotFound = errors.New("template not found")

// Template describes one catalog entry.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description" json:"description"`
	File        string `yaml:"file" json:"-"`
	Premium     bool   `yaml:"premium" json:"premium"`
}

type index struct {
	Templates []Template `yaml:"templates"`
}

// Catalog holds parsed templates. It is read-only after loading.
type Catalog struct {
	templates []Template
	docs      map[string]*receiptformat.Document
}

// Load reads IndexFile from fsys and parses every template it names.
func Load(fsys fs.FS) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, IndexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read template index: %w", err)
	}

	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse template index: %w", err)
	}

	c := &Catalog{docs: make(map[string]*receiptformat.Document, len(idx.Templates))}
	for _, t := range idx.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %q has no id", t.Name)
		}
		if _, dup := c.docs[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}

		raw, err := fs.ReadFile(fsys, path.Clean(t.File))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		doc, err := receiptformat.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		doc.TemplateID = t.ID
		if t.Name == "" {
			t.Name = doc.Name
		}

		c.templates = append(c.templates, t)
		c.docs[t.ID] = doc
	}

	sort.SliceStable(c.templates, func(i, j int) bool {
		if c.templates[i].Category != c.templates[j].Category {
			return c.templates[i].Category < c.templates[j].Category
		}
		return c.templates[i].Name < c.templates[j].Name
	})
	return c, nil
}

// Default returns the templates compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Open loads the catalog in dir, or the built-in one when dir is empty.
func Open(dir string) (*Catalog, error) {
	if dir == "" {
		return Default()
	}
	return Load(os.DirFS(dir))
}

// List returns all templates ordered by category and name.
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Get returns the metadata for id.
func (c *Catalog) Get(id string) (Template, error) {
	for _, t := range c.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Document returns a fresh copy of the template's document. Callers may
// modify it freely.
func (c *Catalog) Document(id string) (*receiptformat.Document, error) {
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	clone := doc.Clone()
	return &clone, nil
}
