package conceptmap

import (
	"fmt"
	"strings"
)

// Table is an immutable, in-memory index over mapping rows. It answers
// lookups in both directions and is safe for concurrent use once built.
type Table struct {
	entries  []MappingEntry
	bySource map[string][]int // NAMASTE code → row positions
	byTarget map[string][]int // TM2 code → row positions
}

// NewTable indexes the given rows. Row order is preserved and determines
// the order of lookup results.
func NewTable(entries []MappingEntry) *Table {
	t := &Table{
		entries:  make([]MappingEntry, len(entries)),
		bySource: make(map[string][]int),
		byTarget: make(map[string][]int),
	}
	copy(t.entries, entries)
	for i, e := range t.entries {
		t.bySource[e.SourceCode] = append(t.bySource[e.SourceCode], i)
		t.byTarget[e.TargetCode] = append(t.byTarget[e.TargetCode], i)
	}
	return t
}

// Len returns the number of rows in the table.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns every mapping for code in the given system. The queried
// code is reported as SourceCode regardless of the storage orientation.
// An unknown code yields an empty slice, not an error.
func (t *Table) Lookup(system, code string) ([]Mapping, error) {
	sys, err := ParseSystem(system)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, system)
	}
	return t.lookup(sys, strings.TrimSpace(code)), nil
}

func (t *Table) lookup(sys System, code string) []Mapping {
	positions := t.bySource[code]
	if sys == SystemTM2 {
		positions = t.byTarget[code]
	}

	mappings := make([]Mapping, 0, len(positions))
	for _, i := range positions {
		e := t.entries[i]
		m := Mapping{
			SourceCode:   e.SourceCode,
			TargetCode:   e.TargetCode,
			Relationship: e.Relationship,
			SNOMEDCode:   e.SNOMEDCode,
			LOINCCode:    e.LOINCCode,
		}
		if sys == SystemTM2 {
			m.SourceCode, m.TargetCode = e.TargetCode, e.SourceCode
		}
		mappings = append(mappings, m)
	}
	return mappings
}
