// Package runid generates the shared run identifier that groups a batch of
// concurrently started neuron processes under one logical run.
package runid

import (
	"strings"

	"github.com/nats-io/nuid"
)

// DefaultLength is the number of characters kept from the generated token.
// Eight characters of base-62 is plenty to make collisions between runs
// negligible while keeping process lists readable.
const DefaultLength = 8

// New returns a fresh run identifier token.
//
// The token is computed once per configuration evaluation and threaded
// explicitly into every descriptor-construction call. It is never persisted:
// reloading the configuration produces a new token, so processes started
// under different loads report under different runs.
func New() string {
	return NewWithLength(DefaultLength)
}

// NewWithLength returns a fresh run identifier truncated to n characters.
// A NUID's leading 12 characters are a per-process prefix that stays
// constant between rotations, so truncation keeps the tail, where the
// per-call sequence lives.
func NewWithLength(n int) string {
	token := strings.ToLower(nuid.Next())
	if n <= 0 || n >= len(token) {
		return token
	}
	return token[len(token)-n:]
}
