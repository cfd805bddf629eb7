// Package avito configures scraping of avito.ru, the Russian classifieds
// marketplace. Prices are in RUB, pagination is a p= query parameter.
package avito

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"dealhound/pkg/extract"
)

const (
	Source  = "avito"
	baseURL = "https://www.avito.ru"
	// Category path for Apple phones; the trailing token is avito's encoded
	// brand filter.
	searchPath = "/%s/telefony/mobilnye_telefony/apple-ASgBAgICAkS0wA3OqzmwwQ2I_Dc"
)

var cities = map[string]string{
	"Москва":           "moskva",
	"Санкт-Петербург":  "sankt-peterburg",
	"Новосибирск":      "novosibirsk",
	"Екатеринбург":     "ekaterinburg",
	"Казань":           "kazan",
	"Нижний Новгород":  "nizhniy_novgorod",
	"Челябинск":        "chelyabinsk",
	"Самара":           "samara",
	"Омск":             "omsk",
	"Ростов-на-Дону":   "rostov-na-donu",
	"Уфа":              "ufa",
	"Красноярск":       "krasnoyarsk",
	"Воронеж":          "voronezh",
	"Пермь":            "perm",
	"Волгоград":        "volgograd",
}

var idFromURL = regexp.MustCompile(`/(\d+)(?:\?|$)`)

// Avito's markup churns with frontend releases, so every field carries a
// cascade from the current class names down to older data-marker attributes.
var rules = extract.Ruleset{
	Containers: []extract.ContainerRule{
		{Name: "iva-item-root", Selector: `div[class*='iva-item-root'], div[class*='items-item'], div[class*='js-catalog-item']`},
		{Name: "data-marker", Selector: `div[data-marker='item']`},
		{Name: "data-marker-loose", Selector: `div[data-marker*='item']`},
		{Name: "legacy-classes", Selector: `div[class*='iva-item'], div[class*='item-']`},
		{Name: "article", Selector: `article[data-marker='item']`},
	},
	ID: []extract.IDRule{
		{Attr: "data-item-id"},
		{FromURL: idFromURL},
	},
	Link: []extract.FieldRule{
		{Selector: `a[data-marker='item-title']`, Attr: "href"},
		{Selector: `a[href]`, Attr: "href"},
	},
	Title: []extract.FieldRule{
		{Selector: `div[class*='iva-item-titleWrapper'], div[class*='iva-item-title']`},
		{Selector: `h3[data-marker='item-title']`},
		{Selector: `a[data-marker='item-title']`},
		{Selector: `h3[class*='title']`},
		{Selector: `a[class*='title']`},
	},
	Description: []extract.FieldRule{
		{Selector: `div[data-marker='item-description']`},
		{Selector: `div[class*='description'], div[class*='item-text']`},
	},
	Price: []extract.FieldRule{
		{Selector: `span[class*='styles-module-size_l'], span[class*='price-text']`},
		{Selector: `span[data-marker='item-price']`},
		{Selector: `meta[itemprop='price']`, Attr: "content"},
		{Selector: `span[class*='price']`},
		{Selector: `div[class*='price']`},
		{Selector: `p[class*='price']`},
		{Selector: `span[itemprop='price']`},
	},
}

var prices = extract.PriceSpec{
	Patterns: []*regexp.Regexp{
		regexp.MustCompile(`(\d+)₽`),
		regexp.MustCompile(`(\d+)`),
	},
	Min: 1_000,
	Max: 10_000_000,
}

type Avito struct{}

func New() *Avito { return &Avito{} }

func (a *Avito) Name() string              { return Source }
func (a *Avito) Currency() string          { return "RUB" }
func (a *Avito) BaseURL() string           { return baseURL }
func (a *Avito) Cities() map[string]string { return cities }
func (a *Avito) Rules() extract.Ruleset    { return rules }
func (a *Avito) Prices() extract.PriceSpec { return prices }
func (a *Avito) WaitSelector() string      { return `div[data-marker='item']` }

// SearchURL returns page 1 sorted by date (s=104).
func (a *Avito) SearchURL(citySlug string) string {
	return fmt.Sprintf("%s%s?s=104&p=1", baseURL, fmt.Sprintf(searchPath, citySlug))
}

// NextPage rewrites the page-index parameter; avito has no reliable "next"
// anchor in its static markup.
func (a *Avito) NextPage(_ *goquery.Document, currentURL string, next int) (string, bool) {
	u, err := url.Parse(currentURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set("p", strconv.Itoa(next))
	u.RawQuery = q.Encode()
	return u.String(), true
}
