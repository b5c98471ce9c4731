package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

// fakeExecer records every command instead of spawning pm2.
type fakeExecer struct {
	calls   []fakeCall
	failOn  map[string]error // keyed by the --only process name
}

type fakeCall struct {
	dir  string
	name string
	args []string
}

func (f *fakeExecer) Run(ctx context.Context, dir string, name string, args ...string) error {
	f.calls = append(f.calls, fakeCall{dir: dir, name: name, args: args})
	if f.failOn != nil {
		target := args[len(args)-1]
		if err, ok := f.failOn[target]; ok {
			return err
		}
	}
	return nil
}

func testController(execer Execer, cb Callbacks) *Controller {
	return New(Config{
		WorkDir:   "/opt/swarm",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Execer:    execer,
		Callbacks: cb,
	})
}

func targets(calls []fakeCall) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.args[len(c.args)-1])
	}
	return out
}

func TestDirectivesExpansion(t *testing.T) {
	tests := []struct {
		name   string
		counts []RoleCount
		want   []string
	}{
		{
			name:   "five miners ascending",
			counts: []RoleCount{{descriptor.RoleMiner, 5}},
			want:   []string{"TM1", "TM2", "TM3", "TM4", "TM5"},
		},
		{
			name:   "zero aggregators",
			counts: []RoleCount{{descriptor.RoleAggregator, 0}},
			want:   nil,
		},
		{
			name: "mixed roles keep input order",
			counts: []RoleCount{
				{descriptor.RoleMiner, 2},
				{descriptor.RoleValidator, 1},
				{descriptor.RoleAggregator, 0},
			},
			want: []string{"TM1", "TM2", "TV1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := Directives(tt.counts)
			var got []string
			for _, n := range names {
				got = append(got, n.String())
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Directives = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestartGroupsIssuesDirectives(t *testing.T) {
	execer := &fakeExecer{}
	c := testController(execer, Callbacks{})

	err := c.RestartGroups(context.Background(), []RoleCount{{descriptor.RoleMiner, 3}})
	if err != nil {
		t.Fatalf("RestartGroups: %v", err)
	}

	got := targets(execer.calls)
	want := []string{"TM1", "TM2", "TM3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("targets = %v, want %v", got, want)
	}

	first := execer.calls[0]
	if first.name != "pm2" {
		t.Errorf("manager = %q, want pm2", first.name)
	}
	if first.dir != "/opt/swarm" {
		t.Errorf("dir = %q, want /opt/swarm", first.dir)
	}
	wantArgs := []string{"restart", "ecosystem.config.json", "--only", "TM1"}
	if strings.Join(first.args, " ") != strings.Join(wantArgs, " ") {
		t.Errorf("args = %v, want %v", first.args, wantArgs)
	}
}

func TestRestartGroupsZeroCountIsNoop(t *testing.T) {
	execer := &fakeExecer{}
	c := testController(execer, Callbacks{})

	err := c.RestartGroups(context.Background(), []RoleCount{{descriptor.RoleAggregator, 0}})
	if err != nil {
		t.Fatalf("RestartGroups: %v", err)
	}
	if len(execer.calls) != 0 {
		t.Errorf("issued %d directives, want 0", len(execer.calls))
	}
}

func TestRestartGroupsNegativeCount(t *testing.T) {
	execer := &fakeExecer{}
	c := testController(execer, Callbacks{})

	err := c.RestartGroups(context.Background(), []RoleCount{{descriptor.RoleMiner, -1}})
	if err == nil {
		t.Fatal("RestartGroups succeeded with negative count")
	}
	if len(execer.calls) != 0 {
		t.Errorf("issued %d directives, want 0", len(execer.calls))
	}
}

func TestRestartGroupsFailureDoesNotBlock(t *testing.T) {
	boom := errors.New("process manager exploded")
	execer := &fakeExecer{failOn: map[string]error{"TM2": boom}}
	c := testController(execer, Callbacks{})

	err := c.RestartGroups(context.Background(), []RoleCount{{descriptor.RoleMiner, 4}})
	if err == nil {
		t.Fatal("RestartGroups returned nil, want joined error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("joined error does not wrap the directive failure: %v", err)
	}

	// TM3 and TM4 must still have been issued after TM2 failed.
	got := targets(execer.calls)
	want := []string{"TM1", "TM2", "TM3", "TM4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("targets = %v, want %v", got, want)
	}
}

func TestRestartGroupsCallbacks(t *testing.T) {
	boom := errors.New("nope")
	execer := &fakeExecer{failOn: map[string]error{"TV1": boom}}

	var events []string
	cb := Callbacks{
		OnDirective: func(name descriptor.ProcessName, err error) {
			if err != nil {
				events = append(events, name.String()+":err")
				return
			}
			events = append(events, name.String()+":ok")
		},
	}
	c := testController(execer, cb)

	_ = c.RestartGroups(context.Background(), []RoleCount{
		{descriptor.RoleValidator, 2},
	})

	want := []string{"TV1:err", "TV2:ok"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}
