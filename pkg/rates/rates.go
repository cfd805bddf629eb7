// Package rates converts between BYN and RUB for cross-currency display in
// notifications. Rates come from a free exchange-rate API with a hardcoded
// last-known-good fallback, so a rate outage never blocks a deal alert.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	apiURL = "https://api.exchangerate-api.com/v4/latest/BYN"

	// Rough market rate used until the first successful refresh.
	defaultBYNToRUB = 30.0
)

type Provider struct {
	mu       sync.RWMutex
	bynToRUB float64
	asOf     string

	client *http.Client
	url    string
	log    zerolog.Logger
}

func NewProvider(log zerolog.Logger) *Provider {
	return &Provider{
		bynToRUB: defaultBYNToRUB,
		client:   &http.Client{Timeout: 5 * time.Second},
		url:      apiURL,
		log:      log.With().Str("component", "rates").Logger(),
	}
}

type ratesResponse struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Refresh pulls the current BYN base rates. On any failure the previous rate
// stays in effect.
func (p *Provider) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn().Err(err).Msg("rate refresh failed, keeping previous rate")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("rate api returned status %d", resp.StatusCode)
		p.log.Warn().Err(err).Msg("rate refresh failed, keeping previous rate")
		return err
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.log.Warn().Err(err).Msg("rate refresh failed, keeping previous rate")
		return err
	}

	rub, ok := body.Rates["RUB"]
	if !ok || rub <= 0 {
		err := fmt.Errorf("rate api response missing RUB rate")
		p.log.Warn().Err(err).Msg("rate refresh failed, keeping previous rate")
		return err
	}

	p.mu.Lock()
	p.bynToRUB = rub
	p.asOf = body.Date
	p.mu.Unlock()

	p.log.Info().Float64("byn_to_rub", rub).Str("as_of", body.Date).Msg("exchange rates updated")
	return nil
}

func (p *Provider) BYNToRUB(amount float64) float64 {
	p.mu.RLock()
	rate := p.bynToRUB
	p.mu.RUnlock()
	return round2(amount * rate)
}

func (p *Provider) RUBToBYN(amount float64) float64 {
	p.mu.RLock()
	rate := p.bynToRUB
	p.mu.RUnlock()
	return round2(amount / rate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
