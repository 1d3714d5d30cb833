package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"sitepilot/internal/models"
)

// Greedy on purpose: the first opening delimiter through the last closing one.
var (
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

const fallbackDescriptionRunes = 200

// Suggestion is one proposed edit returned by SuggestEdits.
type Suggestion struct {
	Description string `json:"description"`
	Content     string `json:"content"`
	Rationale   string `json:"rationale"`
}

// parseAnalysis extracts the analysis object from an LLM reply.
func parseAnalysis(reply string) (models.Analysis, bool) {
	candidate := strings.TrimSpace(reply)
	if m := objectPattern.FindString(candidate); m != "" {
		candidate = m
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil || fields == nil {
		return models.Analysis{}, false
	}

	return models.Analysis{
		ProjectName:      stringField(fields["projectName"]),
		Description:      stringField(fields["description"]),
		TargetAudience:   stringField(fields["targetAudience"]),
		KeyMessages:      listField(fields["keyMessages"]),
		BrandTone:        stringField(fields["brandTone"]),
		ColorPreferences: listField(fields["colorPreferences"]),
		ContentStructure: stringField(fields["contentStructure"]),
		Raw:              fields,
	}, true
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		return strings.Join(listField(t), ", ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func listField(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// fallbackAnalysis is returned when the reply cannot be parsed.
func fallbackAnalysis(source string) models.Analysis {
	return models.Analysis{
		ProjectName:      "Project from file",
		Description:      truncateRunes(source, fallbackDescriptionRunes) + "...",
		TargetAudience:   "General audience",
		KeyMessages:      []string{},
		BrandTone:        "Professional",
		ColorPreferences: []string{},
		ContentStructure: "Standard",
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// parseSuggestions extracts the suggestion array from an LLM reply.
func parseSuggestions(reply string) ([]Suggestion, bool) {
	m := arrayPattern.FindString(reply)
	if m == "" {
		return []Suggestion{}, false
	}
	var out []Suggestion
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return []Suggestion{}, false
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out, true
}

// pageTitles lists the page titles in a pages payload, accepting either a bare
// array or an object with a "pages" array.
func pageTitles(raw json.RawMessage) []string {
	type page struct {
		Title string `json:"title"`
		Name  string `json:"name"`
		Slug  string `json:"slug"`
	}
	var pages []page
	if err := json.Unmarshal(raw, &pages); err != nil {
		var wrapped struct {
			Pages []page `json:"pages"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		pages = wrapped.Pages
	}
	titles := make([]string, 0, len(pages))
	for _, p := range pages {
		switch {
		case p.Title != "":
			titles = append(titles, p.Title)
		case p.Name != "":
			titles = append(titles, p.Name)
		case p.Slug != "":
			titles = append(titles, p.Slug)
		}
	}
	return titles
}

var templateKey = regexp.MustCompile(`\{(\w+)\}`)

// fillTemplate replaces {key} with the item's value. Keys that are missing or
// hold an empty, zero or false value are left as written.
func fillTemplate(template string, item map[string]any) string {
	return templateKey.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := item[key]
		if !ok || !truthy(v) {
			return match
		}
		if s, ok := v.(string); ok {
			return s
		}
		return stringField(v)
	})
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
