// Package mapping builds best-effort correspondences between source and
// destination schema vocabularies: issue types, statuses, and link type
// names. Jira instances rarely share a schema, so every source name is
// resolved through a fallback chain (case-insensitive exact match, synonym
// table, default relation for link types, first available) and each result
// carries a confidence tier so callers can tell a confident mapping from a
// best-effort guess.
package mapping

import (
	"log/slog"
	"strings"
)

// Confidence is the tier at which a source name was matched.
type Confidence int

const (
	// MatchExact is a case-insensitive exact name match.
	MatchExact Confidence = iota
	// MatchSynonym matched through the fixed synonym table.
	MatchSynonym
	// MatchDefault fell back to the designated default relation
	// ("relates to"). Link types only.
	MatchDefault
	// MatchFirstAvailable is the last-resort guess: the first destination
	// entity in received order.
	MatchFirstAvailable
)

func (c Confidence) String() string {
	switch c {
	case MatchExact:
		return "exact"
	case MatchSynonym:
		return "synonym"
	case MatchDefault:
		return "default"
	case MatchFirstAvailable:
		return "first-available"
	default:
		return "unknown"
	}
}

// Target is a destination-side named entity with a stable identifier.
// Aliases holds alternative names the entity answers to (for link types, the
// inward and outward phrases).
type Target struct {
	ID      string
	Name    string
	Aliases []string
}

// Entry is the resolved destination for one source name.
type Entry struct {
	ID         string
	Name       string
	Confidence Confidence
}

// Table maps source-side display names to destination entries. A source name
// absent from the table has no mapping (only possible when the destination
// category was empty).
type Table map[string]Entry

// Category selects the synonym table and default behavior for a vocabulary.
type Category int

const (
	IssueTypes Category = iota
	Statuses
	LinkTypes
)

func (c Category) String() string {
	switch c {
	case IssueTypes:
		return "issue types"
	case Statuses:
		return "statuses"
	case LinkTypes:
		return "link types"
	default:
		return "unknown"
	}
}

// DefaultLinkRelation is the designated fallback relation for link types.
const DefaultLinkRelation = "relates to"

func (c Category) synonyms() [][]string {
	switch c {
	case IssueTypes:
		return issueTypeSynonyms
	case Statuses:
		return statusSynonyms
	case LinkTypes:
		return linkTypeSynonyms
	default:
		return nil
	}
}

// Build produces a total mapping from every source name to a destination
// entry, evaluated once per session and treated as stable afterward. With a
// non-empty destination category every source name maps to something; an
// empty destination yields an empty table and a logged error per name.
func Build(cat Category, sourceNames []string, dest []Target, logger *slog.Logger) Table {
	table := make(Table, len(sourceNames))

	if len(dest) == 0 {
		for _, name := range sourceNames {
			if logger != nil {
				logger.Error("no destination entities to map to",
					"category", cat.String(), "source", name)
			}
		}
		return table
	}

	index := buildIndex(dest)

	for _, name := range sourceNames {
		table[name] = resolve(cat, name, dest, index, logger)
	}
	return table
}

// resolve walks the fallback chain for a single source name. dest is known
// to be non-empty.
func resolve(cat Category, name string, dest []Target, index map[string]Target, logger *slog.Logger) Entry {
	lower := strings.ToLower(name)

	// Tier 1: case-insensitive exact match.
	if t, ok := index[lower]; ok {
		return Entry{ID: t.ID, Name: t.Name, Confidence: MatchExact}
	}

	// Tier 2: synonym table. Any synonym of the source name that exists in
	// the destination wins.
	if group := synonymGroup(cat.synonyms(), lower); group != nil {
		for _, syn := range group {
			if t, ok := index[syn]; ok {
				return Entry{ID: t.ID, Name: t.Name, Confidence: MatchSynonym}
			}
		}
	}

	// Tier 3: designated default relation, link types only.
	if cat == LinkTypes {
		if t, ok := index[DefaultLinkRelation]; ok {
			if logger != nil {
				logger.Warn("no direct mapping, using default relation",
					"category", cat.String(), "source", name, "dest", t.Name)
			}
			return Entry{ID: t.ID, Name: t.Name, Confidence: MatchDefault}
		}
	}

	// Tier 4: first destination entity in received order.
	first := dest[0]
	if logger != nil {
		logger.Warn("no direct mapping, using first available",
			"category", cat.String(), "source", name, "dest", first.Name)
	}
	return Entry{ID: first.ID, Name: first.Name, Confidence: MatchFirstAvailable}
}

// buildIndex maps lowercase names and aliases to their targets. The first
// target to claim a name keeps it.
func buildIndex(dest []Target) map[string]Target {
	index := make(map[string]Target, len(dest))
	add := func(name string, t Target) {
		name = strings.ToLower(name)
		if name == "" {
			return
		}
		if _, exists := index[name]; !exists {
			index[name] = t
		}
	}
	for _, t := range dest {
		add(t.Name, t)
		for _, alias := range t.Aliases {
			add(alias, t)
		}
	}
	return index
}

// synonymGroup returns the synonym group containing name, or nil.
func synonymGroup(groups [][]string, name string) []string {
	for _, group := range groups {
		for _, member := range group {
			if member == name {
				return group
			}
		}
	}
	return nil
}
