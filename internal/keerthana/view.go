package keerthana

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Classification selects how the collection is grouped.
type Classification string

const (
	All      Classification = "all"
	Raga     Classification = "raga"
	Tala     Classification = "tala"
	Composer Classification = "composer"
	Deity    Classification = "deity"
)

// UnknownGroup collects entries with an empty value for the active classification.
const UnknownGroup = "Unknown"

// Classifications lists the grouping fields in display order.
var Classifications = []Classification{Raga, Tala, Composer, Deity}

// ParseClassification maps a filter name to a Classification. Empty means All.
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return All, nil
	case All, Raga, Tala, Composer, Deity:
		return c, nil
	}
	return "", fmt.Errorf("unknown classification %q: %w", s, ErrInvalid)
}

// Group is one bucket of a grouped view.
type Group struct {
	Key     string  `json:"key"`
	Entries []Entry `json:"entries"`
}

// View is the derived, read-only projection rendered by clients.
// Entries is set for All, Groups otherwise.
type View struct {
	Classification Classification `json:"classification"`
	Entries        []Entry        `json:"entries"`
	Groups         []Group        `json:"groups"`
}

// MarshalJSON writes entries for an ungrouped view and groups otherwise,
// as an empty array when nothing matched.
func (v View) MarshalJSON() ([]byte, error) {
	if v.Grouped() {
		groups := v.Groups
		if groups == nil {
			groups = []Group{}
		}
		return json.Marshal(struct {
			Classification Classification `json:"classification"`
			Groups         []Group        `json:"groups"`
		}{v.Classification, groups})
	}
	entries := v.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(struct {
		Classification Classification `json:"classification"`
		Entries        []Entry        `json:"entries"`
	}{v.Classification, entries})
}

// Grouped reports whether the view is partitioned.
func (v View) Grouped() bool { return v.Classification != All }

// Count returns the number of entries in the view.
func (v View) Count() int {
	if !v.Grouped() {
		return len(v.Entries)
	}
	n := 0
	for _, g := range v.Groups {
		n += len(g.Entries)
	}
	return n
}

// Search narrows a view. Field restricts matching to one classification;
// All (or empty) searches name, raga, tala, composer and deity.
type Search struct {
	Term  string
	Field Classification
}

// DeriveView filters entries by a case-insensitive substring search and
// optionally groups them by a classification field.
func DeriveView(entries []Entry, c Classification, term string) View {
	return DeriveViewWithSearch(entries, c, Search{Term: term})
}

// DeriveViewWithSearch is DeriveView with search options.
func DeriveViewWithSearch(entries []Entry, c Classification, s Search) View {
	if c == "" {
		c = All
	}
	// A Caser is stateful, so each derivation gets its own.
	lower := cases.Lower(language.Und)
	needle := lower.String(strings.TrimSpace(s.Term))

	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if matches(lower, e, needle, s.Field) {
			filtered = append(filtered, e)
		}
	}

	if c == All {
		return View{Classification: All, Entries: filtered}
	}

	var groups []Group
	index := make(map[string]int)
	for _, e := range filtered {
		key := e.Field(c)
		if key == "" {
			key = UnknownGroup
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return View{Classification: c, Groups: groups}
}

func matches(lower cases.Caser, e Entry, needle string, field Classification) bool {
	if needle == "" {
		return true
	}
	var values []string
	if field != "" && field != All {
		values = []string{e.Field(field)}
	} else {
		values = []string{e.Name, e.Raga, e.Tala, e.Composer, e.Deity}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if strings.Contains(lower.String(v), needle) {
			return true
		}
	}
	return false
}

// Facet is a distinct classification value and how many entries carry it.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets lists distinct non-empty values of a classification field in
// first-occurrence order.
func Facets(entries []Entry, c Classification) []Facet {
	var out []Facet
	index := make(map[string]int)
	for _, e := range entries {
		v := strings.TrimSpace(e.Field(c))
		if v == "" {
			continue
		}
		if i, ok := index[v]; ok {
			out[i].Count++
			continue
		}
		index[v] = len(out)
		out = append(out, Facet{Value: v, Count: 1})
	}
	return out
}
