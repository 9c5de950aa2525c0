package usecase

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
)

// Placeholder substitution grammar is closed: only {{contact.<field>}} and
// {{global.<key>}} are recognized. Anything else passes through literally.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(contact|global)\.([a-zA-Z0-9_]+)\s*\}\}`)

// ResolveItemParams resolves every template placeholder for one recipient at
// job creation time. The result is stored verbatim on the item so later send
// attempts are deterministic and never re-touch contact data.
func ResolveItemParams(paramCount int, mappings []model.ParamMapping, contact *model.Contact, globals map[string]string) []string {
	byIndex := make(map[int]model.ParamMapping, len(mappings))
	for _, m := range mappings {
		byIndex[m.Index] = m
	}

	params := make([]string, paramCount)
	for i := 1; i <= paramCount; i++ {
		if m, ok := byIndex[i]; ok {
			params[i-1] = resolveMapping(m, contact, globals)
			continue
		}
		// no mapping: positional global value or empty
		params[i-1] = globals[indexKey(i)]
	}
	return params
}

func resolveMapping(m model.ParamMapping, contact *model.Contact, globals map[string]string) string {
	switch m.Kind {
	case model.ParamMappingContactField:
		if v := contactField(contact, m.Field); v != "" {
			return v
		}
		return m.DefaultValue
	case model.ParamMappingExpression:
		if v := evalExpression(m.Expression, contact, globals); v != "" {
			return v
		}
		return m.DefaultValue
	default: // manual
		if v := globals[indexKey(m.Index)]; v != "" {
			return v
		}
		return m.DefaultValue
	}
}

// contactField pulls a built-in field or falls back to the custom data blob.
func contactField(contact *model.Contact, field string) string {
	if contact == nil || field == "" {
		return ""
	}
	if v, ok := contact.FieldValue(field); ok {
		return v
	}
	if len(contact.CustomData) == 0 {
		return ""
	}
	var custom map[string]interface{}
	if err := json.Unmarshal(contact.CustomData, &custom); err != nil {
		return ""
	}
	if v, ok := custom[field].(string); ok {
		return v
	}
	return ""
}

// evalExpression substitutes the two recognized placeholder forms. Unresolved
// placeholders become empty strings so a fully-unresolvable expression yields
// an empty result and triggers the mapping's default.
func evalExpression(expr string, contact *model.Contact, globals map[string]string) string {
	result := placeholderPattern.ReplaceAllStringFunc(expr, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		switch groups[1] {
		case "contact":
			return contactField(contact, groups[2])
		default:
			return globals[groups[2]]
		}
	})
	return strings.TrimSpace(result)
}

// positional globals are keyed "1", "2", ...
func indexKey(i int) string {
	return strconv.Itoa(i)
}
