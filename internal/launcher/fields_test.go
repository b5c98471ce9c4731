package launcher

import (
	"strings"
	"testing"
)

// =============================================================================
// Field Resolution
// =============================================================================

func TestResolve(t *testing.T) {
	fields := fieldsByKey()

	tests := []struct {
		name    string
		field   Field
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "node type valid",
			field: fields["NODE_TYPE"],
			input: "miner",
			want:  "miner",
		},
		{
			name:    "node type invalid",
			field:   fields["NODE_TYPE"],
			input:   "relay",
			wantErr: true,
		},
		{
			name:    "required empty rejected",
			field:   fields["WALLET_NAME"],
			input:   "",
			wantErr: true,
		},
		{
			name:    "required whitespace rejected",
			field:   fields["WALLET_HOTKEY"],
			input:   "   ",
			wantErr: true,
		},
		{
			name:  "network default applied",
			field: fields["NETWORK"],
			input: "",
			want:  "test",
		},
		{
			name:  "network explicit value kept",
			field: fields["NETWORK"],
			input: "finney",
			want:  "finney",
		},
		{
			name:  "cuda device default applied",
			field: fields["CUDA_DEVICE"],
			input: "",
			want:  "cuda:0",
		},
		{
			name:  "debug default applied",
			field: fields["DEBUG"],
			input: "",
			want:  "false",
		},
		{
			name:    "debug invalid value",
			field:   fields["DEBUG"],
			input:   "yes",
			wantErr: true,
		},
		{
			name:  "input trimmed",
			field: fields["WALLET_NAME"],
			input: "  cold1  ",
			want:  "cold1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.field, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultFields_Order(t *testing.T) {
	want := []string{
		"NODE_TYPE", "WALLET_NAME", "WALLET_HOTKEY",
		"WANDB_API_KEY", "NETWORK", "CUDA_DEVICE", "DEBUG",
	}

	fields := DefaultFields()
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i, key := range want {
		if fields[i].Key != key {
			t.Errorf("field[%d] = %s, want %s", i, fields[i].Key, key)
		}
	}
}

func TestDefaultFields_SecretMasking(t *testing.T) {
	fields := fieldsByKey()
	if !fields["WANDB_API_KEY"].Secret {
		t.Error("WANDB_API_KEY should be masked")
	}
	if fields["WALLET_NAME"].Secret {
		t.Error("WALLET_NAME should not be masked")
	}
}

func TestComposeFile(t *testing.T) {
	tests := []struct {
		nodeType string
		want     string
	}{
		{"miner", "compose.miner.yml"},
		{"validator", "compose.validator.yml"},
		{"aggregator", "compose.aggregator.yml"},
	}

	for _, tt := range tests {
		if got := ComposeFile(tt.nodeType); got != tt.want {
			t.Errorf("ComposeFile(%q) = %q, want %q", tt.nodeType, got, tt.want)
		}
	}
}

func TestAnswers_Environ(t *testing.T) {
	fields := DefaultFields()
	answers := Answers{
		"NODE_TYPE":   "validator",
		"WALLET_NAME": "cold1",
		"NETWORK":     "test",
	}

	env := answers.Environ([]string{"PATH=/usr/bin"}, fields)

	if env[0] != "PATH=/usr/bin" {
		t.Errorf("base env not preserved: %v", env)
	}

	// Answered keys appear in field order after the base
	joined := strings.Join(env, "\n")
	for _, want := range []string{"NODE_TYPE=validator", "WALLET_NAME=cold1", "NETWORK=test"} {
		if !strings.Contains(joined, want) {
			t.Errorf("env missing %q: %v", want, env)
		}
	}
	if strings.Contains(joined, "WANDB_API_KEY") {
		t.Errorf("unanswered key leaked into env: %v", env)
	}

	nodeIdx := indexOf(env, "NODE_TYPE=validator")
	netIdx := indexOf(env, "NETWORK=test")
	if nodeIdx == -1 || netIdx == -1 || nodeIdx > netIdx {
		t.Errorf("env not in field order: %v", env)
	}
}

func fieldsByKey() map[string]Field {
	m := make(map[string]Field)
	for _, f := range DefaultFields() {
		m[f.Key] = f
	}
	return m
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
