package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape. A bare list of rules is accepted too.
type catalogFile struct {
	Rules []Definition `yaml:"rules"`
}

// Parse decodes a YAML or JSON rule catalog
func Parse(data []byte) (*Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NewCatalog()
	}

	var defs []Definition
	if trimmed[0] == '[' || trimmed[0] == '-' {
		if err := yaml.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("decode rule list: %w", err)
		}
	} else {
		var f catalogFile
		if err := yaml.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode rule catalog: %w", err)
		}
		defs = f.Rules
	}

	return NewCatalog(defs...)
}

// Load reads a rule catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Marshal encodes a catalog as YAML
func Marshal(c *Catalog) ([]byte, error) {
	return yaml.Marshal(catalogFile{Rules: c.Definitions()})
}
