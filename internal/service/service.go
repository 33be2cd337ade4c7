package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"carwow/catalog/internal/assembler"
	"carwow/catalog/internal/classifier"
	"carwow/catalog/internal/client"
	"carwow/catalog/internal/domain"
	"carwow/catalog/internal/enrich"
	"carwow/catalog/internal/extractor"
	"carwow/catalog/internal/queue"
	"carwow/catalog/internal/state"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// replayBatch is the most failed vehicles taken from the retry stream per run
const replayBatch = 100

var errLimitReached = errors.New("record limit reached")

// Sink stores vehicle records
type Sink interface {
	Name() string
	Upsert(ctx context.Context, records []domain.VehicleRecord) error
	MarkInactive(ctx context.Context, slug string) error
}

// Options are the run parameters of the pipeline
type Options struct {
	Makers          []string
	Models          []string // maker/model slugs, processed instead of discovery
	Limit           int      // records, 0 for no limit
	Workers         int
	FreshFor        time.Duration
	RetryFailed     bool
	FetchSubPages   bool
	DetectBodyTypes bool
	Media           extractor.MediaExtractor
	TracerProvider  trace.TracerProvider // defaults to the global provider
}

type Service struct {
	site         client.SiteClient
	discovery    client.Discovery
	classifier   *classifier.Classifier
	enricher     *enrich.Enricher
	sinks        []Sink
	queue        queue.Queue // nil without Redis
	stateManager state.StateManager
	opts         Options

	tracer trace.Tracer
	now    func() time.Time
	budget *recordBudget
}

func NewService(
	site client.SiteClient,
	discovery client.Discovery,
	classifier *classifier.Classifier,
	enricher *enrich.Enricher,
	sinks []Sink,
	queue queue.Queue,
	stateManager state.StateManager,
	opts Options,
) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if stateManager == nil {
		stateManager = state.NewNoopStateManager()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Service{
		site:         site,
		discovery:    discovery,
		classifier:   classifier,
		enricher:     enricher,
		sinks:        sinks,
		queue:        queue,
		stateManager: stateManager,
		opts:         opts,
		tracer:       opts.TracerProvider.Tracer("carwow/catalog/service"),
		now:          time.Now,
		budget:       newRecordBudget(opts.Limit),
	}
}

// job is one candidate URL. Replayed jobs carry their stream message and retry count.
type job struct {
	url     string
	attempt int
	msgID   string
}

// Run processes every candidate URL and returns the run summary. The error is non-nil only
// when every attempted URL failed.
func (s *Service) Run(ctx context.Context) (*domain.RunSummary, error) {
	ctx, span := s.tracer.Start(ctx, "sync.run")
	defer span.End()

	summary := domain.NewRunSummary()
	started := s.now()

	discoveryCtx, stopDiscovery := context.WithCancel(ctx)
	defer stopDiscovery()

	jobs := s.candidates(discoveryCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for j := range jobs {
		if s.budget.exhausted() {
			log.Infof("✅ Record limit %d reached, stopping discovery", s.opts.Limit)
			stopDiscovery()
			break
		}
		g.Go(func() error {
			s.process(gctx, j, summary)
			return nil
		})
	}
	_ = g.Wait()

	log.Infof("📊 Run finished in %v: %s", s.now().Sub(started).Round(time.Second), summary)
	span.SetAttributes(
		attribute.Int("sync.attempted", summary.Attempted),
		attribute.Int("sync.failed", summary.Failed),
		attribute.Int("sync.records", summary.RecordCount()),
	)

	if summary.AllFailed() {
		err := fmt.Errorf("all %d attempted vehicles failed", summary.Attempted)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}
	return summary, nil
}

// candidates yields replayed failures first, then explicit models or discovered model pages.
// Each slug is yielded once and the maker/model filters are applied before classification.
func (s *Service) candidates(ctx context.Context) <-chan job {
	var replays []queue.PendingTask
	if s.queue != nil && s.opts.RetryFailed {
		var err error
		replays, err = s.queue.DrainFailed(ctx, "sync-"+s.now().Format("20060102T150405"), replayBatch)
		if err != nil {
			log.Errorf("❌ Failed to read retry stream, continuing without replays: %v", err)
		} else if len(replays) > 0 {
			log.Infof("🔄 Replaying %d vehicles that failed on earlier runs", len(replays))
		}
	}

	out := make(chan job)
	go func() {
		defer close(out)

		seen := make(map[string]bool)
		send := func(j job) bool {
			slug := slugOf(j.url)
			if !s.wanted(slug) {
				// replays stay pending for a run that selects them
				log.Debugf("Pruned %s", j.url)
				return true
			}
			if slug != "" && seen[slug] {
				s.ackReplay(context.WithoutCancel(ctx), j)
				return true
			}
			seen[slug] = true
			select {
			case <-ctx.Done():
				return false
			case out <- j:
				return true
			}
		}

		for _, p := range replays {
			if !send(job{url: p.Task.URL, attempt: p.Task.RetryCount + 1, msgID: p.ID}) {
				return
			}
		}

		if len(s.opts.Models) > 0 {
			for _, model := range s.opts.Models {
				if !send(job{url: s.site.BaseURL() + "/" + strings.Trim(model, "/")}) {
					return
				}
			}
			return
		}

		makers := s.opts.Makers
		if len(makers) == 0 {
			makers = s.discovery.Makers(ctx)
		}
		for u := range s.discovery.Stream(ctx, makers) {
			if !send(job{url: u}) {
				return
			}
		}
	}()

	return out
}

// wanted applies the maker and model filters to a maker/model slug
func (s *Service) wanted(slug string) bool {
	maker, _, _ := strings.Cut(slug, "/")
	if len(s.opts.Models) > 0 && !slices.Contains(s.opts.Models, slug) {
		return false
	}
	if len(s.opts.Makers) > 0 && !slices.Contains(s.opts.Makers, maker) {
		return false
	}
	return true
}

// process runs one URL through the pipeline and records the outcome in summary
func (s *Service) process(ctx context.Context, j job, summary *domain.RunSummary) {
	defer s.ackReplay(context.WithoutCancel(ctx), j)

	verdict := s.classifier.Classify(j.url)
	if !verdict.Verdict.InScope {
		log.Debugf("🚫 Rejected %s: %s", j.url, verdict.Verdict.Reason)
		summary.AddSkip()
		return
	}
	slug := verdict.Slug

	if s.budget.exhausted() {
		summary.AddSkip()
		return
	}

	if s.opts.FreshFor > 0 {
		fresh, err := state.IsFresh(ctx, s.stateManager, slug, s.opts.FreshFor, s.now())
		if err != nil {
			log.Warnf("⚠️ Failed to read sync state of %s: %v", slug, err)
		} else if fresh {
			log.Debugf("Skipping %s, synced within %v", slug, s.opts.FreshFor)
			summary.AddSkip()
			return
		}
	}

	summary.AddAttempt()
	records, err := s.ProcessVehicle(ctx, slug, summary)
	switch {
	case errors.Is(err, errLimitReached):
		summary.AddSkip()
	case errors.Is(err, domain.ErrNoData):
		log.Warnf("🚫 %s has no vehicle data, marking inactive", slug)
		s.markInactive(ctx, slug, summary)
		summary.AddInactive()
		summary.AddSkip()
	case err != nil:
		log.Errorf("❌ Failed to process %s: %v", slug, err)
		summary.AddFailure(err)
		s.queueFailure(ctx, j, slug, err)
	default:
		log.Infof("✅ %s: %d records", slug, len(records))
		summary.AddSuccess(len(records))
	}
}

// ProcessVehicle fetches, extracts, assembles, enriches and stores one vehicle line.
// Recoverable errors (translation, a single failed sink) are added to summary.
func (s *Service) ProcessVehicle(ctx context.Context, slug string, summary *domain.RunSummary) ([]domain.VehicleRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sync.vehicle", trace.WithAttributes(attribute.String("vehicle.slug", slug)))
	defer span.End()

	records, err := s.buildRecords(ctx, slug, summary)
	if err == nil {
		n := s.budget.take(len(records))
		if n == 0 {
			return nil, errLimitReached
		}
		records = records[:n]
		err = s.write(ctx, records, summary)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.stateManager.MarkSynced(ctx, slug, s.now()); err != nil {
		log.Warnf("⚠️ Failed to save sync state of %s: %v", slug, err)
	}
	span.SetAttributes(attribute.Int("vehicle.records", len(records)))
	return records, nil
}

func (s *Service) buildRecords(ctx context.Context, slug string, summary *domain.RunSummary) ([]domain.VehicleRecord, error) {
	raw, err := s.site.FetchVehicle(ctx, slug)
	if err != nil {
		return nil, err
	}

	mainPage, err := extractor.NewPage(raw)
	if err != nil {
		return nil, err
	}
	if verdict := classifier.ClassifyPage(mainPage.Doc); !verdict.InScope {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoData, verdict.Reason)
	}

	var specs, colours *extractor.Page
	if s.opts.FetchSubPages {
		specs = s.subPage(ctx, slug, "specifications")
		colours = s.subPage(ctx, slug, "colours")
	}

	shared := extractor.ExtractShared(mainPage, slug)
	if res, ok := extractor.ExtractPrice(specs, mainPage); ok {
		shared.Price = res.Value
		log.Debugf("%s price from %s", slug, res.Provenance)
	}
	if res, ok := extractor.ExtractSpec(specs, mainPage); ok {
		shared.Spec = res.Value
		log.Debugf("%s spec from %s", slug, res.Provenance)
	}
	if res, ok := s.opts.Media.Extract(mainPage); ok {
		shared.Media = res.Value
	}
	shared.Colors = extractor.ExtractColours(colours)

	var variants []domain.Variant
	if res, ok := extractor.ExtractVariants(mainPage); ok {
		variants = res.Value
		log.Debugf("%s: %d variants from %s", slug, len(variants), res.Provenance)
	}

	if s.opts.DetectBodyTypes {
		shared.Spec.BodyType = domain.UnionSorted(shared.Spec.BodyType, s.discovery.BodyTypes(ctx)[slug])
	}

	records, err := assembler.Assemble(slug, variants, shared, s.now())
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "sync.enrich")
	defer span.End()
	for i := range records {
		rec, err := s.enricher.Enrich(ctx, records[i])
		if err != nil {
			log.Warnf("⚠️ Translation incomplete for %s: %v", rec.ID, err)
			summary.AddError(err)
		}
		records[i] = rec
	}
	return records, nil
}

// subPage returns nil when the sub-page cannot be used, so extraction falls back to the main page
func (s *Service) subPage(ctx context.Context, slug, suffix string) *extractor.Page {
	raw, err := s.site.FetchSubPage(ctx, slug, suffix)
	if err != nil {
		if errors.Is(err, domain.ErrSubPageUnavailable) {
			log.Debugf("%s has no %s page", slug, suffix)
		} else {
			log.Warnf("⚠️ Falling back to the main page of %s: %v", slug, err)
		}
		return nil
	}
	page, err := extractor.NewPage(raw)
	if err != nil {
		log.Warnf("⚠️ Unreadable %s page of %s: %v", suffix, slug, err)
		return nil
	}
	return page
}

// write upserts into every sink concurrently. The vehicle fails only when every sink failed.
func (s *Service) write(ctx context.Context, records []domain.VehicleRecord, summary *domain.RunSummary) error {
	if len(s.sinks) == 0 {
		return nil
	}

	errs := make([]error, len(s.sinks))
	var g errgroup.Group
	for i, sink := range s.sinks {
		g.Go(func() error {
			if err := sink.Upsert(ctx, records); err != nil {
				errs[i] = wrapSink(sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(s.sinks) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		if err != nil {
			log.Warnf("⚠️ %v", err)
			summary.AddError(err)
		}
	}
	return nil
}

func (s *Service) markInactive(ctx context.Context, slug string, summary *domain.RunSummary) {
	var g errgroup.Group
	for _, sink := range s.sinks {
		g.Go(func() error {
			if err := sink.MarkInactive(ctx, slug); err != nil {
				err = wrapSink(sink.Name(), err)
				log.Warnf("⚠️ Failed to mark %s inactive: %v", slug, err)
				summary.AddError(err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) queueFailure(ctx context.Context, j job, slug string, err error) {
	if s.queue == nil {
		return
	}
	task := &queue.FailedVehicleTask{
		Slug:       slug,
		URL:        j.url,
		ErrorKind:  string(domain.KindOf(err)),
		Error:      err.Error(),
		RetryCount: j.attempt,
		FailedAt:   s.now().UTC(),
	}
	if qerr := s.queue.AddFailed(context.WithoutCancel(ctx), task); qerr != nil {
		log.Errorf("❌ Failed to queue %s for retry: %v", slug, qerr)
	}
}

func (s *Service) ackReplay(ctx context.Context, j job) {
	if j.msgID == "" || s.queue == nil {
		return
	}
	if err := s.queue.AckTask(ctx, j.msgID); err != nil {
		log.Warnf("⚠️ Failed to ack retry message %s: %v", j.msgID, err)
	}
}

func wrapSink(name string, err error) error {
	var sinkErr *domain.SinkError
	if errors.As(err, &sinkErr) {
		return err
	}
	return &domain.SinkError{Sink: name, Err: err}
}

// slugOf returns the maker/model prefix of a URL path, or "" when it has fewer segments
func slugOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(strings.ToLower(u.Path), "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[0] + "/" + segments[1]
}

// recordBudget hands out the remaining record allowance of a limited run
type recordBudget struct {
	mu        sync.Mutex
	limit     int
	remaining int
}

func newRecordBudget(limit int) *recordBudget {
	return &recordBudget{limit: limit, remaining: limit}
}

// take reserves up to n records and returns how many were granted
func (b *recordBudget) take(n int) int {
	if b.limit <= 0 {
		return n
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n = min(n, b.remaining)
	b.remaining -= n
	return n
}

func (b *recordBudget) exhausted() bool {
	if b.limit <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining == 0
}
