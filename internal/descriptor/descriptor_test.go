package descriptor

import (
	"encoding/json"
	"strings"
	"testing"
)

func testSpec() *Spec {
	return &Spec{
		WalletName:       "default",
		Network:          "finney",
		Netuid:           268,
		Project:          "templar",
		Interpreter:      "python3",
		MinerScript:      "neurons/miner.py",
		ValidatorScript:  "neurons/validator.py",
		AggregatorScript: "neurons/aggregator.py",
		Miners: []Instance{
			{Hotkey: "M1", Device: "cuda:0"},
			{Hotkey: "M2", Device: "cuda:1"},
		},
		Validators: []Instance{
			{Hotkey: "V1", Device: "cuda:2"},
		},
	}
}

func TestBuildNames(t *testing.T) {
	defs, err := Build(testSpec(), "abc12345")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var names []string
	for _, d := range defs {
		names = append(names, d.Name.String())
	}
	want := []string{"TM1", "TM2", "TV1"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestBuildNamesUniqueAndContiguous(t *testing.T) {
	spec := testSpec()
	spec.Miners = make([]Instance, 7)
	for i := range spec.Miners {
		spec.Miners[i] = Instance{Hotkey: "H", Device: "cuda"}
	}

	defs, err := Build(spec, "run1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := make(map[string]struct{})
	next := 1
	for _, d := range defs {
		if d.Name.Role != RoleMiner {
			continue
		}
		name := d.Name.String()
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate process name %q", name)
		}
		seen[name] = struct{}{}
		if d.Name.Index != next {
			t.Errorf("index = %d, want %d (indices must be contiguous from 1)", d.Name.Index, next)
		}
		next++
	}
}

func TestBuildSharedRunIdentifier(t *testing.T) {
	defs, err := Build(testSpec(), "run-a")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, d := range defs {
		if got := d.Env["RUN_ID"]; got != "run-a" {
			t.Errorf("%s: env RUN_ID = %q, want %q", d.Name, got, "run-a")
		}
		args := d.ArgString()
		if !strings.Contains(args, "--project templar-run-a") {
			t.Errorf("%s: args %q missing shared project name", d.Name, args)
		}
	}

	// A second, independent load with a different identifier must not share
	// anything with the first.
	defs2, err := Build(testSpec(), "run-b")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if defs2[0].Env["RUN_ID"] == defs[0].Env["RUN_ID"] {
		t.Error("two independent loads share a run identifier")
	}
}

func TestBuildArgsPerInstance(t *testing.T) {
	defs, err := Build(testSpec(), "r1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		name   string
		hotkey string
		device string
	}{
		{"TM1", "M1", "cuda:0"},
		{"TM2", "M2", "cuda:1"},
		{"TV1", "V1", "cuda:2"},
	}

	byName := make(map[string]Definition)
	for _, d := range defs {
		byName[d.Name.String()] = d
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := byName[tt.name]
			if !ok {
				t.Fatalf("definition %s missing", tt.name)
			}
			args := d.ArgString()
			if !strings.Contains(args, "--wallet.hotkey "+tt.hotkey) {
				t.Errorf("args %q missing hotkey %q", args, tt.hotkey)
			}
			if !strings.Contains(args, "--device "+tt.device) {
				t.Errorf("args %q missing device %q", args, tt.device)
			}
			if !strings.Contains(args, "--wallet.name default") {
				t.Errorf("args %q missing wallet name", args)
			}
		})
	}
}

func TestBuildArgSpacing(t *testing.T) {
	spec := testSpec()
	spec.Debug = true
	defs, err := Build(spec, "r1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Every token boundary must be exactly one space: the historical
	// template glued one trailing flag onto its neighbour.
	for _, d := range defs {
		args := d.ArgString()
		if strings.Contains(args, "  ") {
			t.Errorf("%s: double space in %q", d.Name, args)
		}
		for _, tok := range d.Args {
			if strings.Contains(tok, " ") && !strings.HasPrefix(tok, "--") {
				continue // quoted value, fine
			}
			if strings.HasPrefix(tok, "--") && strings.Contains(tok[2:], "--") {
				t.Errorf("%s: glued flags in token %q", d.Name, tok)
			}
		}
	}
}

func TestBuildExtraArgs(t *testing.T) {
	spec := testSpec()
	spec.ExtraArgs = `--trace --store-gathers`

	defs, err := Build(spec, "r1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	args := defs[0].Args
	n := len(args)
	if n < 2 || args[n-2] != "--trace" || args[n-1] != "--store-gathers" {
		t.Errorf("extra args not appended in order: %v", args)
	}
}

func TestBuildExtraArgsBadQuote(t *testing.T) {
	spec := testSpec()
	spec.ExtraArgs = `--note "unterminated`
	if _, err := Build(spec, "r1"); err == nil {
		t.Fatal("Build succeeded with unterminated quote in extra args")
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		runID  string
	}{
		{name: "empty run id", mutate: func(s *Spec) {}, runID: ""},
		{name: "empty wallet", mutate: func(s *Spec) { s.WalletName = "" }, runID: "r"},
		{name: "empty hotkey", mutate: func(s *Spec) { s.Miners[0].Hotkey = "" }, runID: "r"},
		{name: "missing script", mutate: func(s *Spec) { s.MinerScript = "" }, runID: "r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(spec)
			if _, err := Build(spec, tt.runID); err == nil {
				t.Fatal("Build succeeded, want error")
			}
		})
	}
}

func TestEnviron(t *testing.T) {
	d := Definition{Env: map[string]string{"RUN_ID": "r1", "B": "2"}}
	base := []string{"PATH=/usr/bin", "RUN_ID=stale", "A=1"}

	got := d.Environ(base)

	want := []string{"PATH=/usr/bin", "A=1", "B=2", "RUN_ID=r1"}
	if len(got) != len(want) {
		t.Fatalf("Environ = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Environ[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMarshalEcosystem(t *testing.T) {
	defs, err := Build(testSpec(), "eco1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := MarshalEcosystem(defs)
	if err != nil {
		t.Fatalf("MarshalEcosystem: %v", err)
	}

	var doc struct {
		Apps []struct {
			Name        string            `json:"name"`
			Script      string            `json:"script"`
			Interpreter string            `json:"interpreter"`
			Env         map[string]string `json:"env"`
			Args        string            `json:"args"`
			Autorestart bool              `json:"autorestart"`
		} `json:"apps"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal ecosystem output: %v", err)
	}

	if len(doc.Apps) != len(defs) {
		t.Fatalf("apps = %d, want %d", len(doc.Apps), len(defs))
	}
	first := doc.Apps[0]
	if first.Name != "TM1" {
		t.Errorf("first app name = %q, want TM1", first.Name)
	}
	if first.Interpreter != "python3" {
		t.Errorf("interpreter = %q, want python3", first.Interpreter)
	}
	if first.Env["RUN_ID"] != "eco1" {
		t.Errorf("env RUN_ID = %q, want eco1", first.Env["RUN_ID"])
	}
	if !first.Autorestart {
		t.Error("autorestart not set")
	}
	if strings.Contains(first.Args, "  ") {
		t.Errorf("args %q contains double space", first.Args)
	}
}
