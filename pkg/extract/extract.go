// Package extract turns fetched search-result pages into raw listing
// candidates. Marketplace-specific selector cascades are plain data
// (see pkg/sources); this package is the shared first-match-wins runner.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"dealhound/pkg/models"
)

// Ruleset is the full extraction cascade for one marketplace.
type Ruleset struct {
	Containers  []ContainerRule
	ID          []IDRule
	Link        []FieldRule
	Title       []FieldRule
	Description []FieldRule
	Price       []FieldRule
	Region      []FieldRule
	// NextPage locates the same-page pagination link. Empty for marketplaces
	// paginated by a page-index query parameter.
	NextPage []FieldRule
	// TitleClean strips marketplace noise words from titles before
	// classification ("Обмен", "Торг", stray currency glyphs).
	TitleClean *regexp.Regexp
}

// PriceSpec is the ordered price-text parsing cascade plus the plausibility
// range in the source currency.
type PriceSpec struct {
	Patterns []*regexp.Regexp
	Min      int
	Max      int
}

// ParsePrice tries each pattern in order and accepts the first match whose
// numeric value falls inside the plausibility range.
func ParsePrice(text string, spec PriceSpec) (int, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", "").Replace(text)

	for _, p := range spec.Patterns {
		m := p.FindStringSubmatch(cleaned)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.Atoi(strings.ReplaceAll(m[1], " ", ""))
		if err != nil {
			continue
		}
		if v >= spec.Min && v <= spec.Max {
			return v, true
		}
	}
	return 0, false
}

// Listings extracts every usable candidate from one page. A container that
// cannot produce an external id, link, title and plausible price is dropped;
// a single bad container never aborts the page.
func Listings(doc *goquery.Document, rules Ruleset, price PriceSpec, baseURL string, log zerolog.Logger) []models.RawListing {
	containers, ruleName := Containers(doc, rules.Containers)
	if containers == nil {
		log.Debug().Msg("no containers matched any strategy")
		return nil
	}
	log.Debug().Str("strategy", ruleName).Int("containers", containers.Length()).Msg("containers selected")

	out := make([]models.RawListing, 0, containers.Length())
	containers.Each(func(_ int, c *goquery.Selection) {
		raw, ok := one(c, rules, price, baseURL, log)
		if ok {
			out = append(out, raw)
		}
	})
	return out
}

func one(c *goquery.Selection, rules Ruleset, price PriceSpec, baseURL string, log zerolog.Logger) (models.RawListing, bool) {
	href := Field(c, rules.Link)
	if href == "" {
		log.Debug().Msg("container dropped: no link")
		return models.RawListing{}, false
	}
	href = AbsoluteURL(baseURL, href)

	id := ExternalID(c, href, rules.ID)
	if id == "" {
		log.Debug().Str("url", href).Msg("container dropped: no external id")
		return models.RawListing{}, false
	}

	title := Field(c, rules.Title)
	if title == "" {
		log.Debug().Str("id", id).Msg("container dropped: no title")
		return models.RawListing{}, false
	}
	if rules.TitleClean != nil {
		title = strings.TrimSpace(rules.TitleClean.ReplaceAllString(title, ""))
	}

	priceText := Field(c, rules.Price)
	if priceText == "" {
		// Last resort: scan the whole container text.
		priceText = c.Text()
	}
	p, ok := ParsePrice(priceText, price)
	if !ok {
		log.Debug().Str("id", id).Str("text", truncate(priceText, 50)).Msg("container dropped: no plausible price")
		return models.RawListing{}, false
	}

	region := Field(c, rules.Region)
	if i := strings.Index(region, ","); i >= 0 {
		region = strings.TrimSpace(region[:i])
	}

	return models.RawListing{
		ExternalID:  id,
		Title:       title,
		Description: Field(c, rules.Description),
		Price:       p,
		URL:         href,
		Region:      region,
	}, true
}

// NextPageURL discovers the pagination link for marketplaces that expose a
// same-page "next" anchor instead of a page-index parameter.
func NextPageURL(doc *goquery.Document, rules Ruleset, baseURL string) (string, bool) {
	if len(rules.NextPage) == 0 {
		return "", false
	}
	href := Field(doc.Selection, rules.NextPage)
	if href == "" {
		return "", false
	}
	return AbsoluteURL(baseURL, href), true
}

// AbsoluteURL prefixes relative hrefs with the marketplace base URL.
func AbsoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
