package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy gates which content kinds and file extensions get processed.
// Lookup order: kind name first, then extension, then the wildcard All
// flag; the first enabled entry wins.
type Policy struct {
	All   bool            `yaml:"all"`
	Allow map[string]bool `yaml:"allow"`
}

// DefaultPolicy enables everything.
func DefaultPolicy() Policy {
	return Policy{All: true}
}

// Allows reports whether content with the given kind token or file
// extension is enabled.
func (p Policy) Allows(kind, ext string) bool {
	if p.Allow[kind] {
		return true
	}
	if ext != "" && p.Allow[ext] {
		return true
	}
	return p.All
}

// LoadPolicy reads a policy from a YAML file, e.g.:
//
//	all: false
//	allow:
//	  photo: true
//	  pdf: true
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	return p, nil
}
