package translate

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"carwow/catalog/internal/config"
	"carwow/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// statusQuotaExceeded is DeepL's answer once the account's character quota is used up
const statusQuotaExceeded = 456

// Client translates text between languages
type Client interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// QuotaStore keeps the number of characters sent to the provider in a month
type QuotaStore interface {
	Used(ctx context.Context, month string) (int, error)
	Add(ctx context.Context, month string, chars int) (int, error)
}

type deepLClient struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	endpoint   string
	authKey    string
	maxChars   int
	quotaLimit int // characters per month the client allows itself, 0 for no limit
	quota      QuotaStore
	now        func() time.Time
}

type deepLResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// NewDeepLClient returns a translator backed by the DeepL REST API. Calls are rate limited,
// texts over the per-call limit are rejected locally and the monthly character quota is
// tracked in quota.
func NewDeepLClient(cfg config.TranslateConfig, quota QuotaStore) Client {
	rps := cfg.MaxRequestsPerSecond
	if rps < 1 {
		rps = 1
	}
	if quota == nil {
		quota = NewMemoryQuota()
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &deepLClient{
		rl:         ratelimit.New(rps),
		httpClient: client,
		endpoint:   cfg.Endpoint,
		authKey:    cfg.AuthKey,
		maxChars:   cfg.MaxChars,
		quotaLimit: int(float64(cfg.QuotaLimit) * cfg.QuotaThreshold),
		quota:      quota,
		now:        time.Now,
	}
}

func (c *deepLClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	chars := utf8.RuneCountInString(text)
	if c.maxChars > 0 && chars > c.maxChars {
		return "", &domain.TranslationError{Text: text, Err: fmt.Errorf("%w: %d > %d characters", domain.ErrTextTooLong, chars, c.maxChars)}
	}

	month := c.now().UTC().Format("2006-01")
	if c.quotaLimit > 0 {
		used, err := c.quota.Used(ctx, month)
		if err != nil {
			log.Warnf("⚠️ Failed to read translation quota usage: %v", err)
		} else if used+chars > c.quotaLimit {
			log.Warnf("🚫 Translation quota nearly exhausted (%d/%d characters)", used, c.quotaLimit)
			return "", &domain.TranslationError{Text: text, Err: domain.ErrQuotaExceeded}
		}
	}

	c.rl.Take()

	form := map[string]string{
		"auth_key":    c.authKey,
		"text":        text,
		"target_lang": targetLang,
	}
	if sourceLang != "" {
		form["source_lang"] = sourceLang
	}

	var body deepLResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		Post(c.endpoint)
	if err != nil {
		return "", &domain.TranslationError{Text: text, Err: fmt.Errorf("failed to call translation provider: %w", err)}
	}

	switch status := resp.StatusCode(); {
	case status == statusQuotaExceeded:
		return "", &domain.TranslationError{Text: text, Err: domain.ErrQuotaExceeded}
	case status == http.StatusRequestEntityTooLarge:
		return "", &domain.TranslationError{Text: text, Err: domain.ErrTextTooLong}
	case resp.IsError():
		return "", &domain.TranslationError{Text: text, Err: fmt.Errorf("provider returned %s", resp.Status())}
	}

	if len(body.Translations) == 0 || body.Translations[0].Text == "" {
		return "", &domain.TranslationError{Text: text, Err: domain.ErrNotFound}
	}

	if _, err := c.quota.Add(ctx, month, chars); err != nil {
		log.Warnf("⚠️ Failed to record translation quota usage: %v", err)
	}

	return body.Translations[0].Text, nil
}

type memoryQuota struct {
	mu   sync.Mutex
	used map[string]int
}

// NewMemoryQuota tracks quota usage for the lifetime of the process only
func NewMemoryQuota() QuotaStore {
	return &memoryQuota{used: make(map[string]int)}
}

func (q *memoryQuota) Used(_ context.Context, month string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used[month], nil
}

func (q *memoryQuota) Add(_ context.Context, month string, chars int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[month] += chars
	return q.used[month], nil
}
