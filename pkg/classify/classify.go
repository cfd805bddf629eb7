// Package classify maps free-text listing titles and descriptions to a
// canonical iPhone model label and a normalized storage capacity. Labels are
// an ordered table, most specific first, so "15 Pro Max" is recognized before
// "15 Pro" and both before the bare "15". General labels carry an explicit
// exclusion pattern standing in for the usual negative lookahead, which RE2
// does not support.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

type label struct {
	name     string
	patterns []*regexp.Regexp
	exclude  *regexp.Regexp
}

var whitespace = regexp.MustCompile(`\s+`)

// Table order is newest/most-specific to oldest/most-general. Both Latin and
// Cyrillic spellings are recognized ("iphone 15 pro", "айфон 15 про").
var labels = buildTable()

func entry(name string, exclude string, patterns ...string) label {
	l := label{name: name}
	for _, p := range patterns {
		l.patterns = append(l.patterns, regexp.MustCompile(p))
	}
	if exclude != "" {
		l.exclude = regexp.MustCompile(exclude)
	}
	return l
}

func buildTable() []label {
	var t []label
	// Numbered generations share the same variant structure.
	for _, gen := range []string{"17", "16", "15", "14", "13", "12", "11"} {
		t = append(t,
			entry("iPhone "+gen+" Pro Max", "",
				`(?:iphone|айфон)\s*`+gen+`\s*(?:pro|про)\s*(?:max|макс)`,
				gen+`\s*(?:pro|про)\s*(?:max|макс)`),
			entry("iPhone "+gen+" Pro",
				gen+`\s*(?:pro|про)\s*(?:max|макс)`,
				`(?:iphone|айфон)\s*`+gen+`\s*(?:pro|про)`,
				gen+`\s*(?:pro|про)`),
		)
		switch gen {
		case "16", "15", "14":
			t = append(t, entry("iPhone "+gen+" Plus", "",
				`(?:iphone|айфон)\s*`+gen+`\s*(?:plus|плюс)`,
				gen+`\s*(?:plus|плюс)`))
		case "13", "12":
			t = append(t, entry("iPhone "+gen+" mini", "",
				`(?:iphone|айфон)\s*`+gen+`\s*(?:mini|мини)`,
				gen+`\s*(?:mini|мини)`))
		}
		if gen == "16" {
			t = append(t, entry("iPhone 16e", "",
				`(?:iphone|айфон)\s*16\s*(?:e|е)(?:\s|$|[^a-zа-я0-9])`,
				`(?:iphone|айфон)\s*16(?:e|е)\b`))
		}
		bare := gen + `\s*(?:pro|plus|max|mini|e\b|про|плюс|макс|мини|е(?:\s|$))`
		if gen == "17" {
			// Air sits in the 17 lineup where Plus used to; it must win over
			// the bare generation label.
			t = append(t, entry("iPhone Air", "",
				`(?:iphone|айфон)\s*(?:air|эйр)`,
				`\bair\b`,
				`(?:^|\s)эйр(?:\s|$)`))
			bare += `|\bair\b|(?:^|\s)эйр(?:\s|$)`
		}
		t = append(t, entry("iPhone "+gen, bare,
			`(?:iphone|айфон)\s*`+gen,
			`\b`+gen+`\b`))
	}
	t = append(t,
		entry("iPhone SE (2-го поколения)", "",
			`(?:iphone|айфон)?\s*(?:se|се)\s*(?:2|3|второго|2го|2-го|третьего|3го|3-го)`,
			`(?:se|се)\s*(?:2|3)\s*(?:поколения|gen|generation)?`),
		entry("iPhone SE",
			`(?:se|се)\s*(?:2|3|второго|2го|2-го|третьего|3го|3-го)`,
			`(?:iphone|айфон)\s*(?:se|се)`,
			`\bse\b`,
			`(?:^|\s)се(?:\s|$)`),
		entry("iPhone XS Max", "",
			`(?:iphone|айфон)?\s*(?:xs|кс)\s*(?:max|макс)`),
		entry("iPhone XS",
			`(?:xs|кс)\s*(?:max|макс)`,
			`(?:iphone|айфон)\s*xs`,
			`\bxs\b`,
			`(?:^|\s)кс(?:\s|$)`),
		entry("iPhone XR", "",
			`(?:iphone|айфон)\s*xr`,
			`\bxr\b`,
			`(?:^|\s)кср(?:\s|$)`),
		entry("iPhone X",
			`\bx(?:s|r)|(?:^|\s)кс(?:\s|$)`,
			`(?:iphone|айфон)\s*x`,
			`\bx\b`,
			`(?:^|\s)икс(?:\s|$)`),
	)
	return t
}

// Model returns the canonical model label for the text, or "" when the text
// is uncategorizable. First pattern of the first table entry wins; there is
// no scoring.
func Model(text string) string {
	if text == "" {
		return ""
	}
	normalized := normalize(text)

	for _, l := range labels {
		if l.exclude != nil && l.exclude.MatchString(normalized) {
			continue
		}
		for _, p := range l.patterns {
			if p.MatchString(normalized) {
				return l.name
			}
		}
	}
	return ""
}

// Labels returns the canonical model names in table order. The admin API
// exposes this so the command surface can offer a model picker.
func Labels() []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.name
	}
	return out
}

type capacityPattern struct {
	re   *regexp.Regexp
	unit string
}

var capacityPatterns = []capacityPattern{
	{regexp.MustCompile(`(\d+)\s*(?:tb|тб)`), "ТБ"},
	{regexp.MustCompile(`(\d+)\s*(?:gb|гб)`), "ГБ"},
	{regexp.MustCompile(`(\d+)\s*(?:mb|мб)`), "МБ"},
	{regexp.MustCompile(`(\d+)[\s\-/]*(?:gb|гб)`), "ГБ"},
}

// Capacity extracts the storage size from the text, normalized to
// "<n> <unit>", or "" when absent. Values outside the plausible 8..2048
// range are rejected.
func Capacity(text string) string {
	if text == "" {
		return ""
	}
	normalized := normalize(text)

	for _, cp := range capacityPatterns {
		m := cp.re.FindStringSubmatch(normalized)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v >= 8 && v <= 2048 {
			return strconv.Itoa(v) + " " + cp.unit
		}
	}
	return ""
}

func normalize(text string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}
