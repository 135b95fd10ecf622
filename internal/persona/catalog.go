package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is an immutable, ordered set of personas.
type Catalog struct {
	order []string
	byID  map[string]Persona
}

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

// NewCatalog validates the personas and normalizes their baselines.
func NewCatalog(personas []Persona) (*Catalog, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}
	c := &Catalog{
		order: make([]string, 0, len(personas)),
		byID:  make(map[string]Persona, len(personas)),
	}
	for _, p := range personas {
		p.ID = strings.TrimSpace(p.ID)
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		if strings.TrimSpace(p.Name) == "" {
			p.Name = p.ID
		}
		p.Baseline = p.Baseline.Normalize()
		c.order = append(c.order, p.ID)
		c.byID[p.ID] = p
	}
	return c, nil
}

// BuiltinCatalog wraps Builtin.
func BuiltinCatalog() *Catalog {
	c, err := NewCatalog(Builtin())
	if err != nil {
		panic(fmt.Sprintf("builtin persona catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path. An empty path yields the builtin catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return BuiltinCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse persona catalog: %w", err)
	}
	return NewCatalog(f.Personas)
}

func (c *Catalog) Get(id string) (Persona, error) {
	p, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[strings.TrimSpace(id)]
	return ok
}

// Default returns the first persona in catalog order.
func (c *Catalog) Default() Persona {
	return c.byID[c.order[0]]
}

func (c *Catalog) List() []Persona {
	out := make([]Persona, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.order) }
