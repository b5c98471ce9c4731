// Package provision loads, validates and applies the declarative
// provisioning configuration for remote compute instances: how the
// machine is provisioned (ansible playbook, shell script or docker
// compose), which environment variables are applied, which directories
// are synchronized, and how running services are reloaded afterwards.
package provision

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Type selects the provisioning mechanism.
type Type string

const (
	TypeAnsible Type = "ansible"
	TypeScript  Type = "script"
	TypeDocker  Type = "docker"
)

// Provisioning holds the type-specific provisioner settings.
type Provisioning struct {
	Type Type `yaml:"type"`

	// Ansible fields
	Playbook  string            `yaml:"playbook,omitempty"`
	RootDir   string            `yaml:"root_dir,omitempty"`
	HostGroup string            `yaml:"host_group,omitempty"`
	VarsFile  string            `yaml:"vars_file,omitempty"`
	ExtraVars map[string]string `yaml:"extra_vars,omitempty"`

	// Script fields
	Command string `yaml:"command,omitempty"`

	// Docker fields
	ComposeFile string `yaml:"compose_file,omitempty"`
}

// SyncPair is a one-way directory synchronization rule. Order in the
// config file is the order pairs are applied.
type SyncPair struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Reload describes how services are restarted after provisioning.
type Reload struct {
	Type    Type   `yaml:"type"`
	Command string `yaml:"command,omitempty"`

	// Docker reload
	ComposeFile string `yaml:"compose_file,omitempty"`

	// Ansible reload
	Playbook string `yaml:"playbook,omitempty"`
}

// Config is the root provisioning document.
type Config struct {
	Provisioning Provisioning      `yaml:"provisioning"`
	Environment  map[string]string `yaml:"environment,omitempty"`
	Sync         []SyncPair        `yaml:"sync,omitempty"`
	Reload       *Reload           `yaml:"reload,omitempty"`
}

// Load reads and validates a provisioning config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provisioning config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a provisioning config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing provisioning config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provisioning.Type {
	case TypeAnsible:
		if c.Provisioning.Playbook == "" {
			errs = append(errs, ValidationError{
				Field:   "provisioning.playbook",
				Message: "required for type ansible",
			})
		}
		if c.Provisioning.HostGroup == "" {
			errs = append(errs, ValidationError{
				Field:   "provisioning.host_group",
				Message: "required for type ansible",
			})
		}
	case TypeScript:
		if c.Provisioning.Command == "" {
			errs = append(errs, ValidationError{
				Field:   "provisioning.command",
				Message: "required for type script",
			})
		}
	case TypeDocker:
		if c.Provisioning.ComposeFile == "" {
			errs = append(errs, ValidationError{
				Field:   "provisioning.compose_file",
				Message: "required for type docker",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "provisioning.type",
			Message: fmt.Sprintf("must be ansible, script or docker (got %q)", c.Provisioning.Type),
		})
	}

	for i, pair := range c.Sync {
		if pair.Source == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sync[%d].source", i),
				Message: "required",
			})
		}
		if pair.Destination == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sync[%d].destination", i),
				Message: "required",
			})
		}
	}

	if c.Reload != nil {
		switch c.Reload.Type {
		case TypeAnsible:
			if c.Reload.Playbook == "" {
				errs = append(errs, ValidationError{
					Field:   "reload.playbook",
					Message: "required for type ansible",
				})
			}
		case TypeScript:
			if c.Reload.Command == "" {
				errs = append(errs, ValidationError{
					Field:   "reload.command",
					Message: "required for type script",
				})
			}
		case TypeDocker:
			if c.Reload.ComposeFile == "" {
				errs = append(errs, ValidationError{
					Field:   "reload.compose_file",
					Message: "required for type docker",
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   "reload.type",
				Message: fmt.Sprintf("must be ansible, script or docker (got %q)", c.Reload.Type),
			})
		}
	}

	for key := range c.Environment {
		if key == "" {
			errs = append(errs, ValidationError{
				Field:   "environment",
				Message: "empty variable name",
			})
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
