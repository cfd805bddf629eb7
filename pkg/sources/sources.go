// Package sources defines the marketplace contract. A marketplace is pure
// configuration: where to search, how pages chain together and which
// selector cascades pull listings out of the markup. Fetching and parsing
// live elsewhere, so a new marketplace is mostly data.
package sources

import (
	"github.com/PuerkitoBio/goquery"

	"dealhound/pkg/extract"
)

type Marketplace interface {
	// Name is the stable source key used in storage and config ("avito").
	Name() string
	// Currency is the ISO code prices are quoted in on this marketplace.
	Currency() string
	// Cities maps display names to URL slugs for this marketplace.
	Cities() map[string]string
	// SearchURL builds the first search page for a city slug.
	SearchURL(citySlug string) string
	// NextPage resolves the URL of page number next, either by rewriting the
	// current URL or by following a pagination anchor in the document.
	NextPage(doc *goquery.Document, currentURL string, next int) (string, bool)
	Rules() extract.Ruleset
	Prices() extract.PriceSpec
	// WaitSelector is the element the headless renderer waits for before
	// snapshotting the DOM.
	WaitSelector() string
	BaseURL() string
}
