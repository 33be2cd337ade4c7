package enrich

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"carwow/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ToJPY converts a GBP amount at rate, rounding to the nearest yen. Absent stays absent.
func ToJPY(gbp *int, rate float64) *int {
	if gbp == nil {
		return nil
	}
	return domain.IntPtr(int(math.Round(float64(*gbp) * rate)))
}

// MirrorPrices fills every JPY field whose GBP source is present
func MirrorPrices(p *domain.Pricing, rate float64) {
	p.MinJPY = ToJPY(p.MinGBP, rate)
	p.MaxJPY = ToJPY(p.MaxGBP, rate)
	p.UsedJPY = ToJPY(p.UsedGBP, rate)
	p.EnginePriceJPY = ToJPY(p.EnginePriceGBP, rate)
	p.ExchangeRate = rate
}

// RateSource supplies the GBP to JPY rate
type RateSource interface {
	Rate(ctx context.Context) float64
}

// FixedRate is a configured constant rate
type FixedRate float64

func (r FixedRate) Rate(context.Context) float64 {
	return float64(r)
}

// RateCache keeps a fetched rate between runs
type RateCache interface {
	GetRate(ctx context.Context) (float64, bool, error)
	SetRate(ctx context.Context, rate float64, ttl time.Duration) error
}

type liveRate struct {
	client   *resty.Client
	url      string
	fallback float64
	ttl      time.Duration
	cache    RateCache

	mu   sync.Mutex
	rate float64
}

// NewLiveRate reads the rate from an exchange rate API once per run, keeping it in cache
// for ttl. Any failure yields the fallback rate.
func NewLiveRate(url string, fallback float64, ttl time.Duration, cache RateCache) RateSource {
	return &liveRate{
		client:   resty.New().SetTimeout(10 * time.Second),
		url:      url,
		fallback: fallback,
		ttl:      ttl,
		cache:    cache,
	}
}

type rateResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (l *liveRate) Rate(ctx context.Context) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate == 0 {
		l.rate = l.resolve(ctx)
	}
	return l.rate
}

func (l *liveRate) resolve(ctx context.Context) float64 {
	if l.cache != nil {
		rate, ok, err := l.cache.GetRate(ctx)
		if err != nil {
			log.Warnf("⚠️ Failed to read cached exchange rate: %v", err)
		} else if ok {
			log.Debugf("Using cached exchange rate: 1 GBP = %.2f JPY", rate)
			return rate
		}
	}

	rate, err := l.fetch(ctx)
	if err != nil {
		log.Warnf("⚠️ Using fallback exchange rate 1 GBP = %.2f JPY: %v", l.fallback, err)
		return l.fallback
	}
	log.Infof("💱 Fetched exchange rate: 1 GBP = %.2f JPY", rate)

	if l.cache != nil {
		if err := l.cache.SetRate(ctx, rate, l.ttl); err != nil {
			log.Warnf("⚠️ Failed to cache exchange rate: %v", err)
		}
	}
	return rate
}

func (l *liveRate) fetch(ctx context.Context) (float64, error) {
	var body rateResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(l.url)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("exchange rate API returned %s", resp.Status())
	}
	rate, ok := body.Rates["JPY"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchange rate API response has no JPY rate")
	}
	return rate, nil
}
