package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Renderer loads a page in headless Chrome and returns the rendered DOM.
// Used as a fallback when a marketplace serves a JS shell to plain HTTP
// clients and the static extractor finds no listing containers.
type Renderer struct {
	timeout time.Duration
	log     zerolog.Logger
}

func NewRenderer(timeout time.Duration, log zerolog.Logger) *Renderer {
	return &Renderer{
		timeout: timeout,
		log:     log.With().Str("component", "renderer").Logger(),
	}
}

// Render navigates to url, waits for waitSelector to appear and parses the
// resulting DOM into a document.
func (r *Renderer) Render(ctx context.Context, url, waitSelector string) (*goquery.Document, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgents[0]),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	renderCtx, cancelRender := context.WithTimeout(browserCtx, r.timeout)
	defer cancelRender()

	r.log.Debug().Str("url", url).Msg("rendering page")

	var html string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.Evaluate(`document.documentElement.outerHTML`, &html),
	)
	if err != nil {
		return nil, &Error{URL: url, Attempts: 1, Err: err}
	}

	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
