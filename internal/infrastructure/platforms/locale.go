package platforms

import (
	"sort"

	"golang.org/x/text/language"
)

// LocalePicker selects the best value out of a locale-keyed translation map
// given the deployment's preferred locales. Matching uses BCP 47 semantics,
// so "en" satisfies "en-US" and regional variants collapse sensibly.
type LocalePicker struct {
	preferred []language.Tag
}

// NewLocalePicker creates a picker for the given preferred locales in
// priority order. Invalid tags are skipped; an empty list defaults to English.
func NewLocalePicker(preferred ...string) *LocalePicker {
	tags := make([]language.Tag, 0, len(preferred))
	for _, p := range preferred {
		tag, err := language.Parse(p)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		tags = []language.Tag{language.English}
	}
	return &LocalePicker{preferred: tags}
}

// Pick returns the translation best matching the preferred locales. When no
// translation matches it falls back to English, then to the first key in
// sorted order, then to the fallback value. The full map is expected to be
// preserved in entity metadata by the caller.
func (p *LocalePicker) Pick(translations map[string]string, fallback string) string {
	if len(translations) == 0 {
		return fallback
	}

	keys := make([]string, 0, len(translations))
	for k := range translations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	valid := make([]string, 0, len(keys))
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		valid = append(valid, k)
	}

	if len(tags) > 0 {
		matcher := language.NewMatcher(tags)
		if _, idx, conf := matcher.Match(p.preferred...); conf > language.No {
			return translations[valid[idx]]
		}
	}

	if v, ok := translations["en"]; ok && v != "" {
		return v
	}
	for _, k := range keys {
		if translations[k] != "" {
			return translations[k]
		}
	}
	return fallback
}
