// Package harvest runs resumable, round-based harvests across every enabled
// paper source.
//
// Each round fetches one page per source concurrently, merges the pages in
// a fixed source order, drops irrelevant papers and near-duplicates, writes
// the survivors to the record store through a bounded worker pool and then
// persists the checkpoint. A crash therefore loses at most one round.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/literature-harvester/internal/dedup"
	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/observability"
	"github.com/helixir/literature-harvester/internal/papersources"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxRounds    = 1000
	DefaultStoreWorkers = 4
	DefaultPageSize     = 100
)

// ErrAlreadyRunning is returned when Run is called on a busy coordinator.
var ErrAlreadyRunning = errors.New("harvest already running")

// Fetcher fans page requests out across sources.
type Fetcher interface {
	EnabledSources() []papersources.PaperSource
	FetchAll(ctx context.Context, reqs []papersources.FetchRequest) []papersources.FetchResult
}

// RecordStore is the part of the record store the coordinator writes to.
type RecordStore interface {
	FindExisting(ctx context.Context, id domain.PaperIdentity) (*domain.Paper, error)
	Create(ctx context.Context, p *domain.Paper) (*domain.Paper, error)
}

// TitleLister is implemented by stores that can list every stored title.
// The coordinator uses it to seed its duplicate index on start.
type TitleLister interface {
	ListTitles(ctx context.Context) ([]string, error)
}

// RelevanceFilter marks and accepts papers with performance evidence.
type RelevanceFilter interface {
	Apply(p *domain.Paper) bool
}

// LinkValidator resolves redirects of a paper's external URL.
type LinkValidator interface {
	Resolve(ctx context.Context, rawURL string) (finalURL string, ok bool, err error)
}

// EventPublisher publishes paper-imported events.
type EventPublisher interface {
	PublishPaperImported(ctx context.Context, event domain.PaperImportedEvent) error
}

// Config holds the operator run parameters.
type Config struct {
	Query        string
	PageSizes    map[domain.SourceType]int
	RoundDelay   time.Duration
	MaxRounds    int
	StoreWorkers int
	Dedup        dedup.Config
}

func (c *Config) applyDefaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.StoreWorkers <= 0 {
		c.StoreWorkers = DefaultStoreWorkers
	}
	if c.RoundDelay < 0 {
		c.RoundDelay = 0
	}
}

func (c *Config) pageSize(source domain.SourceType) int {
	if n := c.PageSizes[source]; n > 0 {
		return n
	}
	return DefaultPageSize
}

// Coordinator drives harvest runs. One Coordinator runs one harvest at a
// time; its duplicate index lives for a single Run.
type Coordinator struct {
	cfg         Config
	sources     Fetcher
	store       RecordStore
	filter      RelevanceFilter
	checkpoints CheckpointStore

	links     LinkValidator
	publisher EventPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	state   State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLinkValidator resolves external URLs before storing papers.
func WithLinkValidator(v LinkValidator) Option {
	return func(c *Coordinator) { c.links = v }
}

// WithEventPublisher publishes an event for every imported paper.
func WithEventPublisher(p EventPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithMetrics records harvest metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the coordinator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.With().Str("component", "harvest_coordinator").Logger()
	}
}

// NewCoordinator validates cfg and builds a coordinator.
func NewCoordinator(
	cfg Config,
	sources Fetcher,
	store RecordStore,
	filter RelevanceFilter,
	checkpoints CheckpointStore,
	opts ...Option,
) (*Coordinator, error) {
	if cfg.Query == "" {
		return nil, domain.NewConfigurationError("harvest.query", "query is required")
	}
	if sources == nil {
		return nil, domain.NewConfigurationError("sources", "source registry is required")
	}
	if store == nil {
		return nil, domain.NewConfigurationError("store", "record store is required")
	}
	if filter == nil {
		return nil, domain.NewConfigurationError("relevance", "relevance filter is required")
	}
	if checkpoints == nil {
		return nil, domain.NewConfigurationError("harvest.checkpoint_path", "checkpoint store is required")
	}
	cfg.applyDefaults()

	c := &Coordinator{
		cfg:         cfg,
		sources:     sources,
		store:       store,
		filter:      filter,
		checkpoints: checkpoints,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.metrics.SetHarvestState(int(s))
}

// run holds the mutable state of one Run.
type run struct {
	id         string
	logger     zerolog.Logger
	checkpoint *Checkpoint
	index      *dedup.Index
	summary    *Summary
}

// Run harvests until every source is exhausted, the round cap is reached,
// ctx is cancelled or the checkpoint cannot be written. The returned
// summary is never nil.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:         uuid.NewString(),
		Query:         c.cfg.Query,
		State:         StateIdle,
		SourceOffsets: map[string]int{},
		StartedAt:     c.now().UTC(),
	}
	if !c.running.CompareAndSwap(false, true) {
		summary.State = StateFailed
		summary.Error = ErrAlreadyRunning.Error()
		summary.FinishedAt = c.now().UTC()
		return summary, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	r := &run{
		id:      summary.RunID,
		logger:  observability.WithRunContext(c.logger, summary.RunID, c.cfg.Query),
		summary: summary,
	}

	state, err := c.execute(ctx, r)
	c.finish(r, state, err)
	return summary, err
}

func (c *Coordinator) execute(ctx context.Context, r *run) (State, error) {
	sources := c.sources.EnabledSources()
	if len(sources) == 0 {
		return StateFailed, domain.NewConfigurationError("sources", "no paper source is enabled")
	}

	cp, err := c.checkpoints.Load(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("load checkpoint: %w", err)
	}
	r.checkpoint = cp
	r.summary.SourceOffsets = cp.Offsets()
	r.summary.TotalCollected = cp.TotalCollected
	r.summary.TotalImported = cp.TotalImported

	r.index = dedup.NewIndex(c.cfg.Dedup)
	r.index.Seed(cp.ProcessedFingerprints...)
	c.seedFromStore(ctx, r)

	r.logger.Info().
		Int("sources", len(sources)).
		Int("seeded_fingerprints", r.index.Len()).
		Int("max_rounds", c.cfg.MaxRounds).
		Msg("harvest started")

	for round := 1; ; round++ {
		c.setState(StateRunningRound)
		more := c.runRound(ctx, r, round, sources)
		r.summary.Rounds = round
		r.summary.SourceOffsets = cp.Offsets()
		r.summary.TotalCollected = cp.TotalCollected
		r.summary.TotalImported = cp.TotalImported

		c.setState(StateCheckpointing)
		cp.ProcessedFingerprints = r.index.Fingerprints()
		cp.LastRun = c.now().UTC()
		if err := c.checkpoints.Save(ctx, cp); err != nil {
			c.metrics.RecordCheckpointWrite(true)
			return StateFailed, domain.NewCheckpointPersistError(c.checkpoints.Location(), err)
		}
		c.metrics.RecordCheckpointWrite(false)
		c.metrics.RecordRound()

		if err := ctx.Err(); err != nil {
			return StateCancelled, err
		}
		if !more {
			return StateCompleted, nil
		}
		if round >= c.cfg.MaxRounds {
			r.logger.Warn().Int("rounds", round).Msg("round cap reached with sources still reporting more results")
			return StateStopped, nil
		}
		if err := sleep(ctx, c.cfg.RoundDelay); err != nil {
			return StateCancelled, err
		}
	}
}

// seedFromStore adds every stored title to the duplicate index when the
// store can list them. Failures only cost dedup precision.
func (c *Coordinator) seedFromStore(ctx context.Context, r *run) {
	lister, ok := c.store.(TitleLister)
	if !ok {
		return
	}
	titles, err := lister.ListTitles(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to seed duplicate index from record store")
		return
	}
	r.index.SeedTitles(titles...)
}

// runRound executes one fetch-filter-store pass and advances offsets. It
// reports whether any source has more results.
func (c *Coordinator) runRound(ctx context.Context, r *run, round int, sources []papersources.PaperSource) bool {
	cp := r.checkpoint
	reqs := make([]papersources.FetchRequest, len(sources))
	for i, src := range sources {
		reqs[i] = papersources.FetchRequest{
			Source:   src,
			Query:    c.cfg.Query,
			Offset:   cp.Offset(src.SourceType()),
			PageSize: c.cfg.pageSize(src.SourceType()),
		}
	}

	results := c.sources.FetchAll(ctx, reqs)

	var survivors []*domain.Paper
	var fetched, duplicates, irrelevant int
	more := false
	for i, res := range results {
		c.metrics.RecordSourceFetch(string(res.Source), len(res.Page.Papers), res.Page.Duration.Seconds(), res.Err != nil)
		if res.Err != nil {
			r.summary.SourceErrors++
			continue
		}

		fetched += len(res.Page.Papers)
		for _, p := range res.Page.Papers {
			if !c.filter.Apply(p) {
				irrelevant++
				continue
			}
			if r.index.IsDuplicate(p.Title) {
				duplicates++
				continue
			}
			survivors = append(survivors, p)
		}

		if res.Page.HasMore {
			step := res.Page.PageSize
			if step <= 0 {
				step = reqs[i].PageSize
			}
			cp.Advance(res.Source, step)
			more = true
		}
	}

	stats := c.storeSurvivors(ctx, r, survivors)

	cp.TotalCollected += len(survivors)
	cp.TotalImported += stats.imported

	r.summary.Fetched += fetched
	r.summary.Collected += len(survivors)
	r.summary.Duplicates += duplicates
	r.summary.Irrelevant += irrelevant
	r.summary.Imported += stats.imported
	r.summary.Existing += stats.existing
	r.summary.Failed += stats.failed
	c.metrics.RecordFiltered(len(survivors), duplicates, irrelevant)

	r.logger.Info().
		Int("round", round).
		Int("fetched", fetched).
		Int("collected", len(survivors)).
		Int("duplicates", duplicates).
		Int("irrelevant", irrelevant).
		Int("imported", stats.imported).
		Int("existing", stats.existing).
		Int("failed", stats.failed).
		Bool("more", more).
		Msg("round finished")

	return more
}

type storeStats struct {
	imported int
	existing int
	failed   int
}

// storeSurvivors writes papers through a bounded worker pool. Writes run to
// completion even if ctx is cancelled so that every fingerprint recorded
// in the checkpoint has been attempted.
func (c *Coordinator) storeSurvivors(ctx context.Context, r *run, papers []*domain.Paper) storeStats {
	ctx = context.WithoutCancel(ctx)

	var imported, existing, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.StoreWorkers)

	for _, p := range papers {
		g.Go(func() error {
			switch created, err := c.storeOne(gctx, r, p); {
			case err != nil:
				failed.Add(1)
				c.metrics.RecordStoreWriteError()
				r.logger.Error().Err(err).
					Str("title", p.Title).
					Str("source", string(p.Source)).
					Msg("failed to store paper")
			case created:
				imported.Add(1)
				c.metrics.RecordPaperImported()
			default:
				existing.Add(1)
				c.metrics.RecordPaperExisting()
			}
			return nil
		})
	}
	_ = g.Wait()

	return storeStats{
		imported: int(imported.Load()),
		existing: int(existing.Load()),
		failed:   int(failed.Load()),
	}
}

// storeOne creates p unless the store already holds it. created is false
// when the paper was found.
func (c *Coordinator) storeOne(ctx context.Context, r *run, p *domain.Paper) (created bool, err error) {
	c.resolveLink(ctx, r, p)

	found, err := c.store.FindExisting(ctx, p.Identity())
	if err != nil {
		return false, domain.NewRecordStoreWriteError(p.Title, err)
	}
	if found != nil {
		return false, nil
	}

	stored, err := c.store.Create(ctx, p)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewRecordStoreWriteError(p.Title, err)
	}

	c.publish(ctx, r, stored)
	return true, nil
}

func (c *Coordinator) resolveLink(ctx context.Context, r *run, p *domain.Paper) {
	if c.links == nil || p.ExternalURL == "" {
		return
	}
	final, ok, err := c.links.Resolve(ctx, p.ExternalURL)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", p.ExternalURL).Msg("link resolution failed")
		return
	}
	if ok && final != "" {
		p.ExternalURL = final
	}
}

func (c *Coordinator) publish(ctx context.Context, r *run, p *domain.Paper) {
	if c.publisher == nil || p == nil {
		return
	}
	event := domain.NewPaperImportedEvent(r.id, p, c.now().UTC())
	err := c.publisher.PublishPaperImported(ctx, event)
	c.metrics.RecordEventPublished(err != nil)
	if err != nil {
		logger := observability.WithPaperContext(r.logger, p.ID.String(), p.Title)
		logger.Warn().Err(err).Msg("failed to publish paper imported event")
	}
}

func (c *Coordinator) finish(r *run, state State, err error) {
	r.summary.State = state
	r.summary.FinishedAt = c.now().UTC()
	if err != nil {
		r.summary.Error = err.Error()
	}
	c.setState(state)
	c.metrics.RecordHarvestFinished(state.String())

	event := r.logger.Info()
	switch state {
	case StateFailed:
		event = r.logger.Error().Err(err)
	case StateCancelled, StateStopped:
		event = r.logger.Warn()
	}
	event.Object("summary", r.summary).Msg("harvest finished")
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
