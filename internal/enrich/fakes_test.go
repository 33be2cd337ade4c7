package enrich

import (
	"context"
	"sync"
	"time"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	out   map[string]string
	fail  map[string]error
	delay time.Duration
}

func newFakeProvider(out map[string]string) *fakeProvider {
	return &fakeProvider{calls: map[string]int{}, out: out, fail: map[string]error{}}
}

func (f *fakeProvider) Translate(_ context.Context, text, _, _ string) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[text]++
	if err, ok := f.fail[text]; ok {
		return "", err
	}
	if ja, ok := f.out[text]; ok {
		return ja, nil
	}
	return "訳:" + text, nil
}

func (f *fakeProvider) count(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

type memoryRateCache struct {
	rate float64
	ok   bool
	sets int
}

func (c *memoryRateCache) GetRate(context.Context) (float64, bool, error) {
	return c.rate, c.ok, nil
}

func (c *memoryRateCache) SetRate(_ context.Context, rate float64, _ time.Duration) error {
	c.rate, c.ok = rate, true
	c.sets++
	return nil
}
