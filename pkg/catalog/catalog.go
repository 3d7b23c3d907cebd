// Package catalog holds the static list of masters and the services they offer.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Master is a service provider.
type Master struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

// Service is one priced offer. The same service name may appear several times
// with different prices for different masters.
type Service struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Masters  []string `yaml:"masters"`
	Price    int64    `yaml:"price"`
	Duration int      `yaml:"duration"`
}

// Catalog is immutable after loading.
type Catalog struct {
	Business string    `yaml:"business"`
	Currency string    `yaml:"currency"`
	Masters  []Master  `yaml:"masters"`
	Services []Service `yaml:"services"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Masters) == 0 {
		return fmt.Errorf("catalog: no masters defined")
	}
	for _, s := range c.Services {
		if s.Duration <= 0 {
			return fmt.Errorf("catalog: service %q has no duration", s.Name)
		}
		for _, m := range s.Masters {
			if _, ok := c.Master(m); !ok {
				return fmt.Errorf("catalog: service %q references unknown master %q", s.Name, m)
			}
		}
	}
	return nil
}

// Master finds a master by name, ignoring case.
func (c *Catalog) Master(name string) (Master, bool) {
	for _, m := range c.Masters {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return Master{}, false
}

// Lookup finds the offer of service by master, ignoring case.
func (c *Catalog) Lookup(service, master string) (Service, bool) {
	service = strings.TrimSpace(service)
	for _, s := range c.Services {
		if !strings.EqualFold(s.Name, service) {
			continue
		}
		if slices.ContainsFunc(s.Masters, func(m string) bool { return strings.EqualFold(m, strings.TrimSpace(master)) }) {
			return s, true
		}
	}
	return Service{}, false
}

// Duration returns the length of service by master, or fallback when the catalog does not know it.
func (c *Catalog) Duration(service, master string, fallback int) int {
	if s, ok := c.Lookup(service, master); ok {
		return s.Duration
	}
	return fallback
}

// ByMaster returns the services offered by master in catalog order.
func (c *Catalog) ByMaster(master string) []Service {
	var out []Service
	for _, s := range c.Services {
		if slices.ContainsFunc(s.Masters, func(m string) bool { return strings.EqualFold(m, master) }) {
			out = append(out, s)
		}
	}
	return out
}

// Markdown renders the catalog grouped by master.
// The same text feeds the language model prompt and the CLI.
func (c *Catalog) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Business)
	for _, m := range c.Masters {
		fmt.Fprintf(&b, "## %s (%s)\n\n", m.Name, m.Title)
		for _, s := range c.ByMaster(m.Name) {
			fmt.Fprintf(&b, "- %s: %d %s, %d min\n", s.Name, s.Price, c.Currency, s.Duration)
		}
		b.WriteString("\n")
	}
	return b.String()
}
