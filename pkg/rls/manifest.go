package rls

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a policy application run, typically checked in next to
// the migrations:
//
//	mode: strict
//	roles: [app_user]
//	discover: [public, billing]
//	tables:
//	  - public.invoices
//	  - billing.payments
type Manifest struct {
	Mode     string   `yaml:"mode"`
	Roles    []string `yaml:"roles"`
	Force    *bool    `yaml:"force_row_security"`
	Discover []string `yaml:"discover"`
	Tables   []string `yaml:"tables"`
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidManifest, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Join(ErrInvalidManifest, err)
	}
	if _, err := ParseMode(m.Mode); err != nil {
		return nil, errors.Join(ErrInvalidManifest, err)
	}
	for _, t := range m.Tables {
		if _, _, err := SplitTableName(t); err != nil {
			return nil, errors.Join(ErrInvalidManifest, err)
		}
	}
	if len(m.Tables) == 0 && len(m.Discover) == 0 {
		return nil, fmt.Errorf("%w: neither tables nor discover schemas listed", ErrInvalidManifest)
	}
	return &m, nil
}

// EngineOptions converts the manifest settings into engine options.
func (m *Manifest) EngineOptions() []EngineOption {
	mode, _ := ParseMode(m.Mode)
	opts := []EngineOption{WithMode(mode)}
	if len(m.Roles) > 0 {
		opts = append(opts, WithRoles(m.Roles...))
	}
	if m.Force != nil && !*m.Force {
		opts = append(opts, WithoutForce())
	}
	return opts
}
