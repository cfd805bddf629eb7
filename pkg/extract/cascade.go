package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContainerRule selects candidate listing containers on a search page.
// Rules are tried in order; the first one yielding at least one match wins
// for the whole page, so one page is never parsed with mixed strategies.
type ContainerRule struct {
	Name     string
	Selector string
}

// FieldRule extracts one sub-field from a container. An empty Selector means
// the container itself; an empty Attr means the trimmed text content.
type FieldRule struct {
	Selector string
	Attr     string
}

// IDRule extracts the external listing id, either from a container attribute
// or from the listing URL.
type IDRule struct {
	Attr    string
	FromURL *regexp.Regexp
}

// Containers returns the matches of the first container rule that hits,
// together with the rule name for logging.
func Containers(doc *goquery.Document, rules []ContainerRule) (*goquery.Selection, string) {
	for _, r := range rules {
		sel := doc.Find(r.Selector)
		if sel.Length() > 0 {
			return sel, r.Name
		}
	}
	return nil, ""
}

// Field returns the first non-empty value produced by the rule list.
func Field(container *goquery.Selection, rules []FieldRule) string {
	for _, r := range rules {
		target := container
		if r.Selector != "" {
			target = container.Find(r.Selector).First()
			if target.Length() == 0 {
				continue
			}
		}

		var v string
		if r.Attr != "" {
			v, _ = target.Attr(r.Attr)
		} else {
			v = target.Text()
		}
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

// ExternalID resolves the listing id from the container or its URL.
func ExternalID(container *goquery.Selection, url string, rules []IDRule) string {
	for _, r := range rules {
		if r.Attr != "" {
			if v, ok := container.Attr(r.Attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if r.FromURL != nil && url != "" {
			if m := r.FromURL.FindStringSubmatch(url); len(m) > 1 {
				return m[1]
			}
		}
	}
	return ""
}
