package conceptmap

import (
	"errors"
	"strings"
)

// ErrUnsupportedSystem is returned when a query names a code system other
// than NAM or TM2.
var ErrUnsupportedSystem = errors.New("unsupported system")

// System identifies a queryable code system.
type System string

const (
	SystemNAM System = "NAM"
	SystemTM2 System = "TM2"
)

// System URIs used when rendering FHIR codings.
const (
	SystemURINAMASTE = "http://namstp.ayush.gov.in/fhir/namaste"
	SystemURITM2     = "http://id.who.int/icd/release/11/mms/tm2"
	SystemURISNOMED  = "http://snomed.info/sct"
	SystemURILOINC   = "http://loinc.org"
)

// ParseSystem normalizes a caller-supplied system name. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseSystem(s string) (System, error) {
	switch System(strings.ToUpper(strings.TrimSpace(s))) {
	case SystemNAM:
		return SystemNAM, nil
	case SystemTM2:
		return SystemTM2, nil
	}
	return "", ErrUnsupportedSystem
}

// ParseSystemURI accepts either a FHIR code system URI or a short system
// name, as FHIR clients send the former.
func ParseSystemURI(s string) (System, error) {
	switch strings.TrimSpace(s) {
	case SystemURINAMASTE:
		return SystemNAM, nil
	case SystemURITM2:
		return SystemTM2, nil
	}
	return ParseSystem(s)
}

// Other returns the system on the opposite side of the map.
func (s System) Other() System {
	if s == SystemNAM {
		return SystemTM2
	}
	return SystemNAM
}

// Label is the name recorded in translation history for the system.
func (s System) Label() string {
	if s == SystemNAM {
		return "NAMASTE"
	}
	return "ICD11_TM2"
}

// URI returns the FHIR code system URI.
func (s System) URI() string {
	if s == SystemNAM {
		return SystemURINAMASTE
	}
	return SystemURITM2
}

// MappingEntry is one row of the mapping table. SourceCode is always a
// NAMASTE code and TargetCode always a TM2 code.
type MappingEntry struct {
	SourceCode   string
	TargetCode   string
	Relationship string
	SNOMEDCode   string
	LOINCCode    string
}

// Mapping is a MappingEntry oriented to the direction of the query: the
// queried code is SourceCode and the code in the other system is TargetCode.
type Mapping struct {
	SourceCode   string `json:"source_code"`
	TargetCode   string `json:"target_code"`
	Relationship string `json:"relationship"`
	SNOMEDCode   string `json:"snomed_ct_code"`
	LOINCCode    string `json:"loinc_code"`
}

const (
	conceptMapID   = "ConceptMap"
	conceptMapName = "NAMASTE-ICD11-SNOMED-LOINC Map"
)

// ConceptMap is the result of a translation.
type ConceptMap struct {
	ResourceType string    `json:"resourceType"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Mappings     []Mapping `json:"mappings"`
}

// NewConceptMap wraps lookup results. A nil slice is rendered as an empty
// array.
func NewConceptMap(mappings []Mapping) *ConceptMap {
	if mappings == nil {
		mappings = []Mapping{}
	}
	return &ConceptMap{
		ResourceType: "ConceptMap",
		ID:           conceptMapID,
		Name:         conceptMapName,
		Mappings:     mappings,
	}
}
