// Package orchestrator runs the scrape-classify-evaluate-notify pipeline.
// Each marketplace gets its own polling loop; within a loop subscribers are
// processed sequentially so request pacing stays predictable.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dealhound/pkg/baseline"
	"dealhound/pkg/classify"
	"dealhound/pkg/counters"
	"dealhound/pkg/deal"
	"dealhound/pkg/extract"
	"dealhound/pkg/logger"
	"dealhound/pkg/models"
	"dealhound/pkg/notify"
	"dealhound/pkg/rates"
	"dealhound/pkg/sources"
	"dealhound/pkg/store"
)

// Pager fetches one search page. Satisfied by fetcher.Fetcher.
type Pager interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Renderer is the headless-browser fallback for JS-shell pages. May be nil.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (*goquery.Document, error)
}

type Options struct {
	PollInterval    time.Duration
	PagesPerRun     int
	RequestDelay    time.Duration
	Thresholds      deal.Thresholds
	RenderFallback  bool
	RefreshCronSpec string
}

type Orchestrator struct {
	store     store.Store
	baseline  *baseline.Calculator
	pager     Pager
	renderer  Renderer
	markets   []sources.Marketplace
	notifiers map[string]notify.Notifier
	rates     *rates.Provider
	counters  *counters.Counters
	opts      Options
	log       zerolog.Logger
}

func New(
	s store.Store,
	calc *baseline.Calculator,
	pager Pager,
	renderer Renderer,
	markets []sources.Marketplace,
	notifiers map[string]notify.Notifier,
	conv *rates.Provider,
	cnt *counters.Counters,
	opts Options,
	log zerolog.Logger,
) *Orchestrator {
	if opts.PagesPerRun <= 0 {
		opts.PagesPerRun = 10
	}
	return &Orchestrator{
		store:     s,
		baseline:  calc,
		pager:     pager,
		renderer:  renderer,
		markets:   markets,
		notifiers: notifiers,
		rates:     conv,
		counters:  cnt,
		opts:      opts,
		log:       log,
	}
}

// Run blocks until ctx is cancelled. It starts one polling loop per
// marketplace plus the scheduled nightly baseline recalculation.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.rates != nil {
		// Best effort; the default rate covers an outage.
		_ = o.rates.Refresh(ctx)
	}

	c := cron.New()
	if o.opts.RefreshCronSpec != "" {
		_, err := c.AddFunc(o.opts.RefreshCronSpec, func() {
			o.nightlyRefresh(ctx)
		})
		if err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	var wg sync.WaitGroup
	for _, m := range o.markets {
		wg.Add(1)
		go func(m sources.Marketplace) {
			defer wg.Done()
			o.sourceLoop(ctx, m)
		}(m)
	}
	wg.Wait()
	return ctx.Err()
}

// RefreshBaselines recomputes every segment median for one source. Exposed
// for the admin API alongside the nightly schedule.
func (o *Orchestrator) RefreshBaselines(ctx context.Context, source string) error {
	return o.baseline.RefreshAll(ctx, source)
}

// Sources lists the configured marketplace names.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.markets))
	for _, m := range o.markets {
		names = append(names, m.Name())
	}
	return names
}

func (o *Orchestrator) nightlyRefresh(ctx context.Context) {
	if o.rates != nil {
		_ = o.rates.Refresh(ctx)
	}
	for _, m := range o.markets {
		if err := o.baseline.RefreshAll(ctx, m.Name()); err != nil {
			o.log.Error().Err(err).Str("source", m.Name()).Msg("scheduled baseline refresh failed")
		}
	}
}

func (o *Orchestrator) sourceLoop(ctx context.Context, m sources.Marketplace) {
	log := o.log.With().Str("source", m.Name()).Logger()
	log.Info().Dur("interval", o.opts.PollInterval).Msg("source loop started")

	for {
		o.RunCycle(ctx, m)

		select {
		case <-ctx.Done():
			log.Info().Msg("source loop stopped")
			return
		case <-time.After(o.opts.PollInterval):
		}
	}
}

type cycleStats struct {
	pages     int
	found     int
	fresh     int
	processed int
	sent      int
	errors    int
}

// RunCycle executes one full pass for a marketplace: every active subscriber,
// up to the page cap each.
func (o *Orchestrator) RunCycle(ctx context.Context, m sources.Marketplace) {
	cycleID := uuid.NewString()
	log := o.log.With().Str("source", m.Name()).Str("cycle", cycleID).Logger()
	started := time.Now()

	subs, err := o.store.ActiveSubscribers(ctx, m.Name())
	if err != nil {
		log.Error().Err(err).Msg("cannot load subscribers, skipping cycle")
		return
	}
	if len(subs) == 0 {
		log.Debug().Msg("no active subscribers")
		return
	}

	var stats cycleStats
	for i, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			pause(ctx, o.opts.RequestDelay)
		}
		o.runSubscriber(ctx, m, sub, &stats, log)
	}

	log.Info().
		Int("subscribers", len(subs)).
		Int("pages", stats.pages).
		Int("found", stats.found).
		Int("new", stats.fresh).
		Int("processed", stats.processed).
		Int("sent", stats.sent).
		Int("errors", stats.errors).
		Dur("duration", time.Since(started)).
		Msg("cycle complete")

	if o.counters != nil {
		o.counters.Add(ctx, m.Name(), "cycles", 1)
		o.counters.Add(ctx, m.Name(), "pages", int64(stats.pages))
		o.counters.Add(ctx, m.Name(), "found", int64(stats.found))
		o.counters.Add(ctx, m.Name(), "new", int64(stats.fresh))
		o.counters.Add(ctx, m.Name(), "processed", int64(stats.processed))
		o.counters.Add(ctx, m.Name(), "sent", int64(stats.sent))
		o.counters.Add(ctx, m.Name(), "errors", int64(stats.errors))
	}
}

func (o *Orchestrator) runSubscriber(ctx context.Context, m sources.Marketplace, sub models.Subscriber, stats *cycleStats, log zerolog.Logger) {
	slug, ok := m.Cities()[sub.City]
	if !ok {
		log.Warn().Int64("user", sub.UserID).Str("city", sub.City).Msg("city not supported by marketplace")
		return
	}

	log.Debug().
		Int64("user", sub.UserID).
		Str("city", sub.City).
		Str("model", sub.Model).
		Int("max_price", sub.MaxPrice).
		Msg("scanning for subscriber")

	url := m.SearchURL(slug)
	for page := 1; page <= o.opts.PagesPerRun; page++ {
		if ctx.Err() != nil {
			return
		}
		if page > 1 {
			pause(ctx, o.opts.RequestDelay)
		}

		doc, err := o.pager.Fetch(ctx, url)
		if err != nil {
			stats.errors++
			log.Error().Err(err).Int("page", page).Msg("page fetch failed")
			return
		}
		stats.pages++

		extractLog := logger.Sampled(log)
		raws := extract.Listings(doc, m.Rules(), m.Prices(), m.BaseURL(), extractLog)
		if len(raws) == 0 && page == 1 && o.opts.RenderFallback && o.renderer != nil {
			rendered, rerr := o.renderer.Render(ctx, url, m.WaitSelector())
			if rerr != nil {
				log.Warn().Err(rerr).Msg("render fallback failed")
			} else {
				doc = rendered
				raws = extract.Listings(doc, m.Rules(), m.Prices(), m.BaseURL(), extractLog)
			}
		}

		stats.found += len(raws)
		if len(raws) == 0 {
			log.Debug().Int("page", page).Msg("empty page, stopping pagination")
			return
		}

		for _, raw := range raws {
			o.processListing(ctx, m, sub, raw, stats, log)
		}

		next, more := m.NextPage(doc, url, page+1)
		if !more {
			return
		}
		url = next
	}
}

// processListing runs one candidate through classification, the subscriber
// filters, persistence and deal evaluation.
func (o *Orchestrator) processListing(ctx context.Context, m sources.Marketplace, sub models.Subscriber, raw models.RawListing, stats *cycleStats, log zerolog.Logger) {
	text := raw.Title
	if raw.Description != "" {
		text += " " + raw.Description
	}

	model := classify.Model(text)
	if model == "" {
		log.Debug().Str("title", raw.Title).Msg("unclassifiable title, dropped")
		return
	}
	// Prefix match so a subscriber watching "iPhone 13" also sees the Pro
	// and mini variants.
	if sub.Model != "" && !strings.HasPrefix(strings.ToLower(model), strings.ToLower(sub.Model)) {
		return
	}
	if sub.MaxPrice > 0 && raw.Price > sub.MaxPrice {
		return
	}

	notified, err := o.store.IsNotified(ctx, m.Name(), raw.ExternalID)
	if err != nil {
		stats.errors++
		log.Error().Err(err).Str("id", raw.ExternalID).Msg("notified lookup failed")
		return
	}
	if notified {
		return
	}

	city := sub.City
	if raw.Region != "" {
		city = raw.Region
	}

	seen, err := o.store.Exists(ctx, m.Name(), raw.ExternalID)
	if err != nil {
		stats.errors++
		log.Error().Err(err).Str("id", raw.ExternalID).Msg("existence lookup failed")
		return
	}
	if !seen {
		stats.fresh++
	}

	stats.processed++
	listing, err := o.store.UpsertListing(ctx, models.ListingInput{
		Source:     m.Name(),
		ExternalID: raw.ExternalID,
		Price:      raw.Price,
		Model:      model,
		City:       city,
		Capacity:   classify.Capacity(text),
		URL:        raw.URL,
	})
	if err != nil {
		stats.errors++
		log.Error().Err(err).Str("id", raw.ExternalID).Msg("upsert failed")
		return
	}

	key := models.SegmentKey{City: city, Model: model, Source: m.Name()}
	median, ok, err := o.baseline.RefreshKey(ctx, key)
	if err != nil {
		stats.errors++
		log.Error().Err(err).Str("model", model).Str("city", city).Msg("baseline refresh failed")
		return
	}
	if !ok {
		return
	}

	res := deal.Evaluate(raw.Price, median, m.Name(), o.opts.Thresholds)
	if !res.Good {
		log.Debug().
			Str("model", model).
			Int("price", raw.Price).
			Float64("median", median).
			Float64("percent", res.SavingsPercent).
			Msg("listing below deal thresholds")
		return
	}

	shown := *listing
	shown.MedianPrice = median
	shown.Savings = res.SavingsAmount

	delivered := false
	if n := o.notifiers[m.Name()]; n != nil {
		msg := notify.DealMessage(shown, m.Currency(), o.rates)
		if err := n.Send(ctx, sub.UserID, msg); err != nil {
			stats.errors++
			log.Error().Err(err).Int64("user", sub.UserID).Str("id", raw.ExternalID).Msg("delivery failed")
		} else {
			delivered = true
		}
	}

	// Flagged regardless of delivery outcome so a flapping bot API cannot
	// cause duplicate alerts for the same listing.
	if err := o.store.MarkNotified(ctx, m.Name(), raw.ExternalID); err != nil {
		stats.errors++
		log.Error().Err(err).Str("id", raw.ExternalID).Msg("mark notified failed")
		return
	}
	if !delivered {
		return
	}
	stats.sent++

	log.Info().
		Str("model", model).
		Int("price", raw.Price).
		Float64("median", median).
		Float64("savings", res.SavingsAmount).
		Float64("percent", res.SavingsPercent).
		Str("url", raw.URL).
		Msg("deal sent")
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
