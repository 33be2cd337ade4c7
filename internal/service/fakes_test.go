package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"carwow/catalog/internal/classifier"
	"carwow/catalog/internal/client"
	"carwow/catalog/internal/config"
	"carwow/catalog/internal/domain"
	"carwow/catalog/internal/enrich"
	"carwow/catalog/internal/extractor"
	"carwow/catalog/internal/queue"
)

type memorySink struct {
	name string
	err  error

	mu       sync.Mutex
	records  []domain.VehicleRecord
	inactive []string
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Upsert(_ context.Context, records []domain.VehicleRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) MarkInactive(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactive = append(s.inactive, slug)
	return nil
}

type fakeDiscovery struct {
	makers    []string
	urls      []string
	bodyTypes map[string][]string
}

func (d *fakeDiscovery) Makers(context.Context) []string { return d.makers }

func (d *fakeDiscovery) Stream(ctx context.Context, _ []string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, u := range d.urls {
			select {
			case <-ctx.Done():
				return
			case out <- u:
			}
		}
	}()
	return out
}

func (d *fakeDiscovery) BodyTypes(context.Context) map[string][]string { return d.bodyTypes }

type fakeQueue struct {
	mu      sync.Mutex
	pending []queue.PendingTask
	failed  []*queue.FailedVehicleTask
	acked   []string
}

func (q *fakeQueue) AddTask(context.Context, queue.Task) (string, error) { return "", nil }

func (q *fakeQueue) AddFailed(_ context.Context, task *queue.FailedVehicleTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, task)
	return nil
}

func (q *fakeQueue) DrainFailed(context.Context, string, int) ([]queue.PendingTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out, nil
}

func (q *fakeQueue) AckTask(_ context.Context, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msgID)
	return nil
}

func (q *fakeQueue) EnsureStreamsExist(context.Context) error { return nil }

type memoryState struct {
	mu     sync.Mutex
	synced map[string]time.Time
}

func (m *memoryState) LastSynced(_ context.Context, slug string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.synced[slug]
	return at, ok, nil
}

func (m *memoryState) MarkSynced(_ context.Context, slug string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.synced == nil {
		m.synced = make(map[string]time.Time)
	}
	m.synced[slug] = at
	return nil
}

// harness wires a service against an httptest site
type harness struct {
	srv       *httptest.Server
	site      client.SiteClient
	discovery *fakeDiscovery
	sink      *memorySink
	queue     *fakeQueue
	state     *memoryState
	opts      Options
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &harness{
		srv: srv,
		site: client.NewSiteClient(config.SiteConfig{
			BaseURL:    srv.URL,
			Timeout:    5,
			MaxRetries: 0,
			UserAgent:  "catalog-test",
		}, client.NewThrottle(0, 0), nil),
		discovery: &fakeDiscovery{makers: []string{"bmw"}},
		sink:      &memorySink{name: "memory"},
		queue:     &fakeQueue{},
		state:     &memoryState{},
		opts: Options{
			Workers:       1,
			FetchSubPages: true,
			Media:         extractor.MediaExtractor{Max: 40, MinGallery: 3},
		},
	}
}

func (h *harness) service(t *testing.T, sinks ...Sink) *Service {
	t.Helper()
	dict, err := enrich.LoadDictionaries()
	if err != nil {
		t.Fatalf("LoadDictionaries: %v", err)
	}
	if len(sinks) == 0 {
		sinks = []Sink{h.sink}
	}

	vocab := classifier.NewVocabulary("", nil, []string{"specifications", "colours"})
	return NewService(
		h.site,
		h.discovery,
		classifier.New(vocab),
		enrich.NewEnricher(enrich.FixedRate(185), dict, nil),
		sinks,
		h.queue,
		h.state,
		h.opts,
	)
}

func (h *harness) url(path string) string {
	return h.srv.URL + path
}

func html(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}
}
