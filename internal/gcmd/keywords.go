package gcmd

import (
	"encoding/json"
	"strings"

	"casei/internal/kms"
	"casei/internal/registry"
	"casei/internal/uuid"
)

// schemeContentTypes maps a KMS scheme to the content type that stores it.
var schemeContentTypes = map[string]string{
	kms.SchemeInstruments:     registry.GcmdInstrument,
	kms.SchemeProjects:        registry.GcmdProject,
	kms.SchemePlatforms:       registry.GcmdPlatform,
	kms.SchemeScienceKeywords: registry.GcmdPhenomenon,
}

// columnRenames maps KMS CSV headers to model fields where lowercasing the
// header is not enough.
var columnRenames = map[string]map[string]string{
	kms.SchemeInstruments: {
		"Category": "instrument_category",
		"Class":    "instrument_class",
		"Type":     "instrument_type",
		"Subtype":  "instrument_subtype",
	},
	kms.SchemePlatforms: {
		"Sub_Category": "subcategory",
	},
	kms.SchemeScienceKeywords: {
		"Variable_Level_1": "variable_1",
		"Variable_Level_2": "variable_2",
		"Variable_Level_3": "variable_3",
	},
}

// requiredColumns must hold a usable value for a keyword to be synced.
var requiredColumns = map[string][]string{
	kms.SchemeProjects:        {"Short_Name", "Bucket"},
	kms.SchemeInstruments:     {"Short_Name", "Class"},
	kms.SchemePlatforms:       {"Short_Name"},
	kms.SchemeScienceKeywords: {"Category"},
}

// ignoredFields are model fields KMS does not publish in its CSV lists.
var ignoredFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"description": true,
}

// ContentTypeForScheme returns the content type that stores a scheme.
func ContentTypeForScheme(scheme string) (*registry.ContentType, bool) {
	name, ok := schemeContentTypes[scheme]
	if !ok {
		return nil, false
	}
	return registry.Lookup(name)
}

func isValidValue(v string) bool {
	v = strings.ToUpper(strings.TrimSpace(v))
	return v != "" && v != "NOT APPLICABLE"
}

// isValidKeyword reports whether a KMS row has a version 4 UUID and every
// column its scheme requires.
func isValidKeyword(scheme string, row kms.Keyword) bool {
	if !uuid.IsV4(row["UUID"]) {
		return false
	}
	for _, col := range requiredColumns[scheme] {
		if !isValidValue(row[col]) {
			return false
		}
	}
	return true
}

// modelFields returns the JSON field names of a keyword model that KMS rows
// can populate.
func modelFields(ct *registry.ContentType) (map[string]bool, error) {
	raw, err := json.Marshal(ct.New())
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	fields := make(map[string]bool, len(m))
	for k := range m {
		if !ignoredFields[k] {
			fields[k] = true
		}
	}
	return fields, nil
}

// convertKeyword turns a KMS row into a change payload for the scheme's
// model. Columns the model does not store are dropped.
func convertKeyword(scheme string, row kms.Keyword, fields map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for col, v := range row {
		name := strings.ToLower(col)
		if renamed, ok := columnRenames[scheme][col]; ok {
			name = renamed
		}
		if col == "UUID" {
			name = "gcmd_uuid"
		}
		if fields[name] {
			out[name] = v
		}
	}
	return out
}

// shortName is the most specific name of a keyword, used to match aliases.
func shortName(keyword map[string]interface{}) string {
	for _, k := range []string{"short_name", "variable_3", "variable_2", "variable_1", "term"} {
		if v, _ := keyword[k].(string); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
