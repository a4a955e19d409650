// Package identity provides the stable string-to-identifier hash every
// lookup into the host's live database is keyed by, plus a claim space that
// detects identifier collisions across all entity kinds.
package identity

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ID is the 32-bit stable identifier the host keys its live tables by.
type ID uint32

// ErrCollision is returned when two distinct names hash to the same ID.
var ErrCollision = errors.New("identity: id collision")

// Hash maps a name to its stable identifier. Deterministic across
// processes and rebuilds: the same name always yields the same ID.
func Hash(name string) ID {
	sum := xxhash.Sum64String(name)
	return ID(uint32(sum ^ (sum >> 32)))
}

// Space records every claimed name so that a second name hashing to an
// already-claimed ID fails loudly instead of silently overwriting. One
// Space spans all entity kinds.
type Space struct {
	names map[ID]string
}

func NewSpace() *Space {
	return &Space{names: make(map[ID]string)}
}

// Claim reserves the ID for name. Claiming the same name again returns the
// same ID and no error. A different name with the same ID returns
// ErrCollision.
func (s *Space) Claim(name string) (ID, error) {
	return s.claim(Hash(name), name)
}

func (s *Space) claim(id ID, name string) (ID, error) {
	if owner, ok := s.names[id]; ok {
		if owner != name {
			return 0, fmt.Errorf("%w: %q and %q both hash to %#08x", ErrCollision, owner, name, uint32(id))
		}
		return id, nil
	}
	s.names[id] = name
	return id, nil
}

// Owner reports which name currently holds the ID.
func (s *Space) Owner(id ID) (string, bool) {
	name, ok := s.names[id]
	return name, ok
}

// Release frees the claim held by name. Releasing an unclaimed name is a
// no-op.
func (s *Space) Release(name string) {
	id := Hash(name)
	if owner, ok := s.names[id]; ok && owner == name {
		delete(s.names, id)
	}
}

// Len reports the number of claimed identifiers.
func (s *Space) Len() int {
	return len(s.names)
}
