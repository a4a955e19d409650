package inject

import (
	"errors"

	"github.com/modforge/modforge/internal/core/host"
)

// ErrUnknownKind marks a conversion whose target tag matches no host
// subsystem. It is fatal to that single conversion, not to the batch.
var ErrUnknownKind = errors.New("inject: unknown conversion target")

// Target adapts one host conversion subsystem behind a uniform capability:
// duplicate detection and append. The four subsystems share this shape and
// differ only in their duplicate match key.
type Target struct {
	kind    host.ConversionKind
	matches func(existing, candidate host.ConversionEntry) bool
}

func (t Target) Kind() host.ConversionKind { return t.kind }

// Exists reports whether the subsystem already holds an equivalent entry
// under this target's match key. An existing equivalent is a success, not
// an error.
func (t Target) Exists(sys host.ConversionSystem, e host.ConversionEntry) bool {
	for _, existing := range sys.Entries() {
		if t.matches(existing, e) {
			return true
		}
	}
	return false
}

// Apply appends the entry to the subsystem.
func (t Target) Apply(sys host.ConversionSystem, e host.ConversionEntry) error {
	return sys.Append(e)
}

// targets maps definition tags to subsystem variants. Match keys:
// fabricator entries are keyed by output (one way to craft a thing),
// recycler and composter by input (one rule per consumed item), smelter by
// the input/output pair (the same ore may yield several metals).
var targets = map[string]Target{
	"fabricator": {
		kind:    host.ConversionFabricator,
		matches: func(a, b host.ConversionEntry) bool { return a.Output == b.Output },
	},
	"recycler": {
		kind:    host.ConversionRecycler,
		matches: func(a, b host.ConversionEntry) bool { return a.Input == b.Input },
	},
	"smelter": {
		kind:    host.ConversionSmelter,
		matches: func(a, b host.ConversionEntry) bool { return a.Input == b.Input && a.Output == b.Output },
	},
	"composter": {
		kind:    host.ConversionComposter,
		matches: func(a, b host.ConversionEntry) bool { return a.Input == b.Input },
	},
}
