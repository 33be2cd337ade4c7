package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"carwow/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Translator is the translation provider
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// MemoTranslator calls the provider at most once per distinct source string for its lifetime.
// Concurrent requests for the same string share one provider call. Once the provider reports
// an exhausted quota no further calls are made.
type MemoTranslator struct {
	provider   Translator
	sourceLang string
	targetLang string

	mu    sync.Mutex
	memo  map[string]memoEntry
	group singleflight.Group

	calls     atomic.Int64
	exhausted atomic.Bool
}

type memoEntry struct {
	text string
	err  error
}

func NewMemoTranslator(provider Translator, sourceLang, targetLang string) *MemoTranslator {
	return &MemoTranslator{
		provider:   provider,
		sourceLang: sourceLang,
		targetLang: targetLang,
		memo:       make(map[string]memoEntry),
	}
}

// Translate returns the memoized translation of text. Errors are *domain.TranslationError.
func (m *MemoTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.TranslationError{Text: text, Err: domain.ErrNotFound}
	}

	m.mu.Lock()
	entry, ok := m.memo[text]
	m.mu.Unlock()
	if ok {
		return entry.text, entry.err
	}

	if m.exhausted.Load() {
		return "", &domain.TranslationError{Text: text, Err: domain.ErrQuotaExceeded}
	}

	v, err, _ := m.group.Do(text, func() (any, error) {
		// a concurrent caller may have finished between the lookup and Do
		m.mu.Lock()
		entry, ok := m.memo[text]
		m.mu.Unlock()
		if ok {
			return entry.text, entry.err
		}

		m.calls.Add(1)
		translated, err := m.provider.Translate(ctx, text, m.sourceLang, m.targetLang)
		if err == nil && strings.TrimSpace(translated) == "" {
			err = domain.ErrNotFound
		}
		if err != nil {
			err = asTranslationError(text, err)
			if errors.Is(err, domain.ErrQuotaExceeded) && m.exhausted.CompareAndSwap(false, true) {
				log.Warnf("🚫 Translation quota exhausted, remaining fields stay untranslated")
			}
			if memoizable(err) {
				m.store(text, memoEntry{err: err})
			}
			return "", err
		}

		m.store(text, memoEntry{text: translated})
		return translated, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Calls is the number of provider calls made so far
func (m *MemoTranslator) Calls() int {
	return int(m.calls.Load())
}

func (m *MemoTranslator) store(text string, entry memoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memo[text] = entry
}

// memoizable reports failures that would repeat for the same text
func memoizable(err error) bool {
	return errors.Is(err, domain.ErrTextTooLong) || errors.Is(err, domain.ErrNotFound)
}

func asTranslationError(text string, err error) error {
	var translationErr *domain.TranslationError
	if errors.As(err, &translationErr) {
		return err
	}
	return &domain.TranslationError{Text: text, Err: err}
}
