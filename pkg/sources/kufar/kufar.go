// Package kufar configures scraping of kufar.by, the Belarusian classifieds
// marketplace. Prices are in BYN, pagination follows "next" anchors because
// kufar uses cursor tokens instead of page numbers.
package kufar

import (
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"dealhound/pkg/extract"
)

const (
	Source     = "kufar"
	baseURL    = "https://www.kufar.by"
	searchPath = "/l/r~%s/mobilnye-telefony/mt~apple"
)

var cities = map[string]string{
	"Минск":   "minsk",
	"Витебск": "vitebsk",
}

var idFromURL = regexp.MustCompile(`/(?:item/)?(\d+)(?:\?|$)`)

// Strips trade/bargain noise words and stray currency glyphs that kufar
// sellers pack into titles before the model name.
var titleClean = regexp.MustCompile(`\s*(?:Обмен|Продажа|Торг|€|\$|₽|,|\.)`)

var rules = extract.Ruleset{
	Containers: []extract.ContainerRule{
		{Name: "section", Selector: `section`},
		{Name: "article", Selector: `article`},
		{Name: "classes", Selector: `div[class*='item'], div[class*='ad'], div[class*='listing']`},
	},
	ID: []extract.IDRule{
		{FromURL: idFromURL},
	},
	Link: []extract.FieldRule{
		{Selector: `a[class*='styles_wrapper__']`, Attr: "href"},
		{Selector: `a[href*='/item/']`, Attr: "href"},
		{Selector: `a[href]`, Attr: "href"},
	},
	Title: []extract.FieldRule{
		{Selector: `h3`},
		{Selector: `a h3`},
		{Selector: `h2`},
		{Selector: `div[class*='title'], div[class*='name']`},
	},
	Price: []extract.FieldRule{
		{Selector: `p[class*='styles_price__']`},
		{Selector: `span[class*='price'], span[class*='cost']`},
		{Selector: `div[class*='price'], div[class*='cost']`},
		{Selector: `p[class*='price']`},
	},
	Region: []extract.FieldRule{
		{Selector: `p[class*='styles_region__']`},
		{Selector: `span[class*='region'], span[class*='location'], span[class*='city']`},
	},
	NextPage: []extract.FieldRule{
		{Selector: `a[class*='styles_link__'][class*='styles_arrow__']`, Attr: "href"},
	},
	TitleClean: titleClean,
}

var prices = extract.PriceSpec{
	Patterns: []*regexp.Regexp{
		regexp.MustCompile(`(\d+)р`),
		regexp.MustCompile(`(\d+)`),
	},
	Min: 100,
	Max: 10_000_000,
}

type Kufar struct{}

func New() *Kufar { return &Kufar{} }

func (k *Kufar) Name() string              { return Source }
func (k *Kufar) Currency() string          { return "BYN" }
func (k *Kufar) BaseURL() string           { return baseURL }
func (k *Kufar) Cities() map[string]string { return cities }
func (k *Kufar) Rules() extract.Ruleset    { return rules }
func (k *Kufar) Prices() extract.PriceSpec { return prices }
func (k *Kufar) WaitSelector() string      { return `section` }

// SearchURL returns the first page sorted by listing date.
func (k *Kufar) SearchURL(citySlug string) string {
	return fmt.Sprintf("%s%s?sort=lst.d", baseURL, fmt.Sprintf(searchPath, citySlug))
}

// NextPage follows the pagination arrow on the current page.
func (k *Kufar) NextPage(doc *goquery.Document, _ string, _ int) (string, bool) {
	if doc == nil {
		return "", false
	}
	return extract.NextPageURL(doc, rules, baseURL)
}
