package processor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// DefaultRosterFields are rendered per record when a list does not name its
// own fields.
var DefaultRosterFields = []string{"name", "country", "university", "major"}

// Record is one roster entry with canonical field names. Keys the roster
// does not know about are kept in Extra under their original spelling.
type Record struct {
	Index      int               `json:"index"`
	Name       string            `json:"name,omitempty"`
	Country    string            `json:"country,omitempty"`
	University string            `json:"university,omitempty"`
	Major      string            `json:"major,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

var fieldAliases = map[string]string{
	"name":          "name",
	"fullname":      "name",
	"graduatename":  "name",
	"studentname":   "name",
	"recipientname": "name",
	"recipient":     "name",
	"country":       "country",
	"nationality":   "country",
	"nation":        "country",
	"university":    "university",
	"school":        "university",
	"institution":   "university",
	"college":       "university",
	"major":         "major",
	"program":       "major",
	"programme":     "major",
	"degree":        "major",
	"field":         "major",
	"fieldofstudy":  "major",
	"course":        "major",
	"index":         "index",
	"no":            "index",
	"number":        "index",
	"num":           "index",
	"order":         "index",
}

// CanonicalField maps any spelling of a known roster key ("Full Name",
// "full_name", "Name") to its canonical name, or "" when unknown.
func CanonicalField(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return fieldAliases[b.String()]
}

// Field returns the value of a canonical or extra field.
func (r Record) Field(name string) (string, bool) {
	switch CanonicalField(name) {
	case "name":
		return r.Name, true
	case "country":
		return r.Country, true
	case "university":
		return r.University, true
	case "major":
		return r.Major, true
	case "index":
		return strconv.Itoa(r.Index), true
	}
	v, ok := r.Extra[name]
	return v, ok
}

func (r *Record) set(key, value string) {
	value = strings.TrimSpace(value)
	switch CanonicalField(key) {
	case "name":
		r.Name = value
	case "country":
		r.Country = value
	case "university":
		r.University = value
	case "major":
		r.Major = value
	case "index":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			r.Index = n
		}
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[key] = value
	}
}

// ParseRoster accepts a decoded JSON array, a JSON array string, or the
// legacy "N. Name • Country • University • Major" line format.
func ParseRoster(v any) ([]Record, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []Record:
		return val, nil
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return recordsFromItems(items)
	case []map[string]string:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return recordsFromItems(items)
	case []string:
		return parseLegacy(strings.Join(val, "\n")), nil
	case []any:
		return recordsFromItems(val)
	case string:
		return parseRosterString(val)
	}
	return nil, fmt.Errorf("unsupported roster value of type %T", v)
}

func parseRosterString(s string) ([]Record, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse roster json: %w", err)
		}
		if obj, ok := decoded.(map[string]any); ok {
			decoded = []any{obj}
		}
		items, ok := decoded.([]any)
		if !ok {
			return nil, fmt.Errorf("roster json must be an array")
		}
		return recordsFromItems(items)
	}
	return parseLegacy(trimmed), nil
}

func recordsFromItems(items []any) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for i, item := range items {
		rec := Record{Index: i + 1}
		switch v := item.(type) {
		case map[string]any:
			// Sorted so repeated parses produce the same record.
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				rec.set(k, stringify(v[k]))
			}
		case map[string]string:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				rec.set(k, v[k])
			}
		case string:
			rec.Name = strings.TrimSpace(v)
		default:
			return nil, fmt.Errorf("roster item %d has unsupported type %T", i+1, item)
		}
		records = append(records, rec)
	}
	return records, nil
}

var legacyIndex = regexp.MustCompile(`^(\d+)\s*[.)]\s*(.*)$`)

var legacyColumns = []string{"name", "country", "university", "major"}

func parseLegacy(s string) []Record {
	var records []Record
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec := Record{Index: len(records) + 1}
		if m := legacyIndex.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				rec.Index = n
			}
			line = m[2]
		}
		for i, part := range strings.Split(line, "•") {
			if i < len(legacyColumns) {
				rec.set(legacyColumns[i], part)
			} else {
				rec.set(fmt.Sprintf("field%d", i+1), part)
			}
		}
		records = append(records, rec)
	}
	return records
}
