package conceptmap

// ToParameters renders the concept map as the FHIR Parameters resource
// returned by ConceptMap/$translate. Each mapping becomes one "match" whose
// concept is in the system opposite to the queried one; SNOMED CT and LOINC
// cross-references are attached as "product" parts.
func (cm *ConceptMap) ToParameters(system System, code string) map[string]interface{} {
	message := "Mapping found"
	if len(cm.Mappings) == 0 {
		message = "No mapping found for code '" + code + "' in system '" + string(system) + "'"
	}

	params := []interface{}{
		map[string]interface{}{
			"name":         "result",
			"valueBoolean": len(cm.Mappings) > 0,
		},
		map[string]interface{}{
			"name":        "message",
			"valueString": message,
		},
	}

	target := system.Other()
	for _, m := range cm.Mappings {
		parts := []interface{}{
			map[string]interface{}{
				"name":      "equivalence",
				"valueCode": m.Relationship,
			},
			map[string]interface{}{
				"name": "concept",
				"valueCoding": map[string]interface{}{
					"system": target.URI(),
					"code":   m.TargetCode,
				},
			},
		}
		if m.SNOMEDCode != "" {
			parts = append(parts, productPart(SystemURISNOMED, m.SNOMEDCode))
		}
		if m.LOINCCode != "" {
			parts = append(parts, productPart(SystemURILOINC, m.LOINCCode))
		}
		params = append(params, map[string]interface{}{
			"name": "match",
			"part": parts,
		})
	}

	return map[string]interface{}{
		"resourceType": "Parameters",
		"parameter":    params,
	}
}

func productPart(systemURI, code string) map[string]interface{} {
	return map[string]interface{}{
		"name": "product",
		"part": []interface{}{
			map[string]interface{}{
				"name": "concept",
				"valueCoding": map[string]interface{}{
					"system": systemURI,
					"code":   code,
				},
			},
		},
	}
}
