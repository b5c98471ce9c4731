// Package descriptor builds the declarative set of neuron process
// definitions consumed by the process manager and by the built-in
// supervision mode.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// Role identifies the kind of work a neuron process performs.
type Role int

const (
	// RoleMiner trains and submits gradients.
	RoleMiner Role = iota

	// RoleValidator scores miner submissions.
	RoleValidator

	// RoleAggregator aggregates gathered gradients.
	RoleAggregator
)

// roles in declaration order, used when a stable iteration order matters.
var allRoles = []Role{RoleMiner, RoleValidator, RoleAggregator}

// AllRoles returns every role in declaration order.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleMiner:
		return "miner"
	case RoleValidator:
		return "validator"
	case RoleAggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

// Prefix returns the short code used to construct process names.
func (r Role) Prefix() string {
	switch r {
	case RoleMiner:
		return "TM"
	case RoleValidator:
		return "TV"
	case RoleAggregator:
		return "TA"
	default:
		return "T?"
	}
}

// ParseRole converts a role name (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "miner":
		return RoleMiner, nil
	case "validator":
		return RoleValidator, nil
	case "aggregator":
		return RoleAggregator, nil
	default:
		return 0, fmt.Errorf("unknown role %q (want miner, validator or aggregator)", s)
	}
}

// ProcessName addresses a single neuron process as a typed {role, index}
// pair. Rendering is centralized here so the addressing scheme is not
// string-templated ad hoc at every call site.
type ProcessName struct {
	Role  Role
	Index int // 1-based, contiguous within a role
}

// String renders the process-manager name, e.g. TM1, TV1, TA2.
func (n ProcessName) String() string {
	return n.Role.Prefix() + strconv.Itoa(n.Index)
}

// ParseProcessName parses a rendered name back into its typed form.
func ParseProcessName(s string) (ProcessName, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return ProcessName{}, fmt.Errorf("process name %q is too short", s)
	}

	var role Role
	switch s[:2] {
	case "TM":
		role = RoleMiner
	case "TV":
		role = RoleValidator
	case "TA":
		role = RoleAggregator
	default:
		return ProcessName{}, fmt.Errorf("process name %q has unknown role prefix %q", s, s[:2])
	}

	idx, err := strconv.Atoi(s[2:])
	if err != nil {
		return ProcessName{}, fmt.Errorf("process name %q has non-numeric index: %w", s, err)
	}
	if idx < 1 {
		return ProcessName{}, fmt.Errorf("process name %q has index %d, indices start at 1", s, idx)
	}

	return ProcessName{Role: role, Index: idx}, nil
}
