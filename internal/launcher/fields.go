// Package launcher implements the interactive bring-up flow: prompt for
// node settings, export them into the environment, and hand off to
// docker compose.
package launcher

import (
	"fmt"
	"strings"
)

// Field describes a single prompt in the launch questionnaire.
type Field struct {
	Key      string // environment variable name
	Prompt   string // question shown to the operator
	Default  string // used when the answer is empty (ignored if Required)
	Required bool   // empty answers are rejected and re-prompted
	Secret   bool   // input is masked
	Validate func(string) error
}

// Answers maps field keys to resolved values.
type Answers map[string]string

// nodeTypes are the accepted values for the NODE_TYPE field.
var nodeTypes = map[string]bool{
	"miner":      true,
	"validator":  true,
	"aggregator": true,
}

// validateNodeType checks a NODE_TYPE answer.
func validateNodeType(v string) error {
	if !nodeTypes[v] {
		return fmt.Errorf("must be one of: miner, validator, aggregator (got %q)", v)
	}
	return nil
}

// DefaultFields returns the launch questionnaire in prompt order.
func DefaultFields() []Field {
	return []Field{
		{
			Key:      "NODE_TYPE",
			Prompt:   "Node type (miner/validator/aggregator)",
			Required: true,
			Validate: validateNodeType,
		},
		{
			Key:      "WALLET_NAME",
			Prompt:   "Wallet name",
			Required: true,
		},
		{
			Key:      "WALLET_HOTKEY",
			Prompt:   "Wallet hotkey",
			Required: true,
		},
		{
			Key:      "WANDB_API_KEY",
			Prompt:   "W&B API key",
			Required: true,
			Secret:   true,
		},
		{
			Key:     "NETWORK",
			Prompt:  "Subtensor network",
			Default: "test",
		},
		{
			Key:     "CUDA_DEVICE",
			Prompt:  "CUDA device",
			Default: "cuda:0",
		},
		{
			Key:     "DEBUG",
			Prompt:  "Enable debug logging (true/false)",
			Default: "false",
			Validate: func(v string) error {
				if v != "true" && v != "false" {
					return fmt.Errorf("must be true or false (got %q)", v)
				}
				return nil
			},
		},
	}
}

// Resolve normalizes and validates a raw answer for a field.
// Empty input falls back to the default; required fields reject empty
// input so the form re-prompts.
func Resolve(f Field, input string) (string, error) {
	value := strings.TrimSpace(input)

	if value == "" {
		if f.Required {
			return "", fmt.Errorf("%s is required", f.Key)
		}
		value = f.Default
	}

	if f.Validate != nil {
		if err := f.Validate(value); err != nil {
			return "", err
		}
	}

	return value, nil
}

// ComposeFile returns the compose file for a node type,
// e.g. "compose.miner.yml".
func ComposeFile(nodeType string) string {
	return fmt.Sprintf("compose.%s.yml", nodeType)
}

// Environ converts answers into KEY=VALUE pairs appended to a base
// environment, in stable field order.
func (a Answers) Environ(base []string, fields []Field) []string {
	env := make([]string, 0, len(base)+len(a))
	env = append(env, base...)
	for _, f := range fields {
		if value, ok := a[f.Key]; ok {
			env = append(env, f.Key+"="+value)
		}
	}
	return env
}
