// Package bundleconfig turns collected asset declarations into the webpack
// configuration wrapper and decides when that file has to be regenerated.
package bundleconfig

import (
	"maps"
	"slices"

	"github.com/conneroisu/templpack/internal/assets"
)

// DefaultGroup receives every declaration without a group.
const DefaultGroup = "default"

// Snapshot is the resolved configuration of one build cycle. A new snapshot
// is built on every cycle and the previous one is only used for comparison.
type Snapshot struct {
	// Aliases maps "@name" to an absolute directory.
	Aliases map[string]string
	// Entries maps an asset name to its webpack module specifier.
	Entries map[string]string
	// Groups maps a group name to asset names in declaration order.
	Groups map[string][]string
	// ConfigPath is the generated config file webpack is started with.
	ConfigPath string
	// Rewritten reports whether ConfigPath was written for this snapshot.
	Rewritten bool
	// Token is the provider state to hand to the next cycle.
	Token assets.Token
}

// EntryCount returns the number of entry points.
func (s *Snapshot) EntryCount() int {
	if s == nil {
		return 0
	}

	return len(s.Entries)
}

// SameConfiguration reports whether s and other would produce the same
// config file contents.
func (s *Snapshot) SameConfiguration(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}

	return maps.Equal(s.Aliases, other.Aliases) &&
		maps.Equal(s.Entries, other.Entries) &&
		maps.EqualFunc(s.Groups, other.Groups, func(a, b []string) bool {
			return slices.Equal(a, b)
		})
}
