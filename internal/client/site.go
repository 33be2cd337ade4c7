package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"carwow/catalog/internal/config"
	"carwow/catalog/internal/domain"
	"carwow/catalog/internal/proxy"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"resty.dev/v3"
)

type SiteClient interface {
	BaseURL() string
	Fetch(ctx context.Context, rawURL string) (*domain.RawPage, error)
	FetchVehicle(ctx context.Context, slug string) (*domain.RawPage, error)
	FetchSubPage(ctx context.Context, slug, suffix string) (*domain.RawPage, error)
}

type siteClient struct {
	baseURL       string
	timeout       time.Duration
	httpClient    *resty.Client
	throttle      *Throttle
	proxySupplier proxy.ProxySupplier

	// Circuit breaker for sustained 429/403 responses
	circuitBreakerMutex sync.RWMutex
	blockedUntil        time.Time
	circuitBreakerDelay time.Duration
}

func NewSiteClient(cfg config.SiteConfig, throttle *Throttle, proxySupplier proxy.ProxySupplier) SiteClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-GB,en;q=0.5")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	return &siteClient{
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		timeout:             timeout,
		httpClient:          client,
		throttle:            throttle,
		proxySupplier:       proxySupplier,
		circuitBreakerDelay: 5 * time.Minute,
	}
}

func (c *siteClient) BaseURL() string {
	return c.baseURL
}

func (c *siteClient) FetchVehicle(ctx context.Context, slug string) (*domain.RawPage, error) {
	page, err := c.Fetch(ctx, c.baseURL+"/"+slug)
	if err != nil {
		return nil, err
	}

	if !samePath(page.FinalURL, slug) {
		return nil, fmt.Errorf("%w: %s redirected to %s", domain.ErrNoData, slug, page.FinalURL)
	}

	return page, nil
}

// FetchSubPage fetches /{slug}/{suffix}. A redirect away from the sub-page (the site sends
// missing sub-pages back to the maker page) is reported as ErrSubPageUnavailable.
func (c *siteClient) FetchSubPage(ctx context.Context, slug, suffix string) (*domain.RawPage, error) {
	page, err := c.Fetch(ctx, c.baseURL+"/"+slug+"/"+suffix)
	if err != nil {
		return nil, err
	}

	if !samePath(page.FinalURL, slug+"/"+suffix) {
		return nil, &domain.FetchError{URL: page.URL, Status: page.Status, Err: domain.ErrSubPageUnavailable}
	}

	return page, nil
}

func (c *siteClient) Fetch(ctx context.Context, rawURL string) (*domain.RawPage, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, &domain.FetchError{
			URL: rawURL,
			Err: fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining.Round(time.Second)),
		}
	}

	if err := c.throttle.Wait(ctx); err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("request cancelled: %w", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(reqCtx).
		Get(rawURL)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		}
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("failed to fetch URL: %w", err)}
	}

	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() == http.StatusForbidden {
		resp, err = c.retryWithNewProxy(reqCtx, rawURL, resp)
		if err != nil {
			return nil, err
		}
	}

	if !resp.IsSuccess() {
		return nil, &domain.FetchError{
			URL:    rawURL,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("HTTP error: %s", resp.Status()),
		}
	}

	contentType := resp.Header().Get("Content-Type")
	page := &domain.RawPage{
		URL:         rawURL,
		FinalURL:    finalURL(resp, rawURL),
		Status:      resp.StatusCode(),
		ContentType: contentType,
		Elapsed:     elapsed,
		Body:        decodeBody(resp.Bytes(), contentType),
	}

	log.Debugf("Fetched %s (%d) in %v", rawURL, page.Status, elapsed.Round(time.Millisecond))
	return page, nil
}

func (c *siteClient) retryWithNewProxy(ctx context.Context, rawURL string, resp *resty.Response) (*resty.Response, error) {
	log.Warnf("🚫 Rate limited (%d) for URL: %s", resp.StatusCode(), rawURL)

	if c.proxySupplier != nil {
		if newProxy := c.proxySupplier.Get(); newProxy != "" {
			log.Infof("🔄 Switching to new proxy: %s", newProxy)
			c.httpClient.SetProxy(newProxy)

			retryResp, retryErr := c.httpClient.R().
				SetContext(ctx).
				Get(rawURL)
			if retryErr == nil && retryResp.IsSuccess() {
				log.Infof("✅ Retry successful with new proxy")
				return retryResp, nil
			}
		}
	}

	c.triggerCircuitBreaker()
	return nil, &domain.FetchError{
		URL:    rawURL,
		Status: resp.StatusCode(),
		Err:    errors.New("rate limited - circuit breaker activated"),
	}
}

func (c *siteClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.blockedUntil)
	wasTriggered := !c.blockedUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		if !c.blockedUntil.IsZero() && now.After(c.blockedUntil) {
			c.blockedUntil = time.Time{}
			log.Infof("✅ Circuit breaker automatically re-enabled - requests are now allowed")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *siteClient) triggerCircuitBreaker() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.blockedUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Circuit breaker activated! All requests disabled until %v",
		c.blockedUntil.Format("15:04:05"))
}

func (c *siteClient) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.blockedUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func finalURL(resp *resty.Response, fallback string) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return fallback
}

// samePath reports whether rawURL's path is /{want} ignoring trailing slashes and case
func samePath(rawURL, want string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.Trim(u.Path, "/"), strings.Trim(want, "/"))
}

// decodeBody converts the body to UTF-8 using the declared or sniffed charset
func decodeBody(body []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
