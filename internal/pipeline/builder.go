// Package pipeline orchestrates a map build: resolve the spec, short-circuit
// on a cached artifact, otherwise fetch, filter, style and render.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/cache"
	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/fetch"
	"github.com/agentic-research/mapmaker/internal/geo"
	"github.com/agentic-research/mapmaker/internal/ledger"
	"github.com/agentic-research/mapmaker/internal/logging"
	"github.com/agentic-research/mapmaker/internal/render"
	"github.com/agentic-research/mapmaker/internal/style"
)

// Fetcher makes a build's shape data available locally.
type Fetcher interface {
	Ensure(ctx context.Context, cfg *config.Resolved) error
}

// Selector returns the features a build draws. With fresh set, previously
// selected features are not reused.
type Selector interface {
	Select(ctx context.Context, cfg *config.Resolved, fresh bool) (*geojson.FeatureCollection, error)
}

// Request is one build invocation. At least one of SpecFile and Override
// must be set.
type Request struct {
	SpecFile string
	Override map[string]any
	// Force skips the cache check and overwrites any existing artifact.
	Force bool
}

// Result is a successful build. A cache hit carries the bytes read back
// from disk.
type Result struct {
	SVG         []byte
	Fingerprint string
	OutputPath  string
	CacheHit    bool
	Features    int
	Config      *config.Resolved
}

// Builder runs builds. It is safe for concurrent use; concurrent builds of
// the same fingerprint share one execution.
type Builder struct {
	workdir   string
	resolver  *config.Resolver
	store     *cache.Store
	fetcher   Fetcher
	selector  Selector
	converter geo.Converter
	renderer  *render.Renderer
	ledger    *ledger.Ledger
	observer  Observer
	log       *zap.Logger
	fetchOpts []fetch.Option

	group singleflight.Group
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger shared by every stage.
func WithLogger(l *zap.Logger) Option { return func(b *Builder) { b.log = l } }

// WithObserver registers a stage observer.
func WithObserver(o Observer) Option { return func(b *Builder) { b.observer = o } }

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option { return func(b *Builder) { b.fetcher = f } }

// WithFetchOptions configures the default HTTP fetcher.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(b *Builder) { b.fetchOpts = append(b.fetchOpts, opts...) }
}

// WithSelector replaces the geometry filter.
func WithSelector(s Selector) Option { return func(b *Builder) { b.selector = s } }

// WithConverter sets the converter behind the default geometry filter.
// Defaults to ogr2ogr on PATH.
func WithConverter(c geo.Converter) Option { return func(b *Builder) { b.converter = c } }

// WithLedger records every successful build.
func WithLedger(l *ledger.Ledger) Option { return func(b *Builder) { b.ledger = l } }

// WithResolver replaces the spec resolver.
func WithResolver(r *config.Resolver) Option { return func(b *Builder) { b.resolver = r } }

// New returns a Builder whose data, output and spec paths are relative to
// workdir.
func New(workdir string, opts ...Option) *Builder {
	b := &Builder{workdir: workdir}
	for _, o := range opts {
		o(b)
	}
	b.log = logging.OrNop(b.log)
	if b.resolver == nil {
		b.resolver = config.NewResolver(workdir)
	}
	b.store = cache.New(workdir)
	if b.fetcher == nil {
		opts := append([]fetch.Option{fetch.WithLogger(b.log)}, b.fetchOpts...)
		b.fetcher = fetch.New(b.store.FS(), opts...)
	}
	if b.selector == nil {
		conv := b.converter
		if conv == nil {
			conv = &geo.OGR2OGR{}
		}
		b.selector = geo.NewFilter(conv, b.log)
	}
	b.renderer = render.NewRenderer(b.store, b.log)
	return b
}

// Renderer exposes the renderer, for writing previews next to the SVG.
func (b *Builder) Renderer() *render.Renderer { return b.renderer }

// Build runs one build to completion. Errors carry their stage's kind
// (ConfigError, DownloadError, ...) unchanged.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	st := &build{b: b, req: req, start: time.Now(), log: b.log.With(zap.String("spec", req.SpecFile))}

	st.enter(StageResolvingConfig)
	cfg, err := b.resolver.Resolve(req.SpecFile, req.Override)
	if err != nil {
		return nil, st.fail(err)
	}
	st.cfg = cfg
	st.log = st.log.With(zap.String("fingerprint", cfg.Derived.Fingerprint))
	st.log.Debug("Resolved config", zap.String("output", cfg.Derived.OutputSVG))

	key := cfg.Derived.Fingerprint
	if req.Force {
		key = "force:" + key
	}
	v, err, shared := b.group.Do(key, func() (any, error) {
		return st.run(ctx)
	})
	if err != nil {
		if shared {
			st.log.Debug("Shared build failed", zap.Error(err))
		}
		return nil, err
	}
	res := *v.(*Result)
	if shared {
		st.log.Debug("Joined concurrent build")
	}
	return &res, nil
}

// Handlers are the callback form of a build outcome.
type Handlers struct {
	OnSuccess func(*Result)
	OnError   func(error)
}

// Run builds and dispatches the outcome to h. A failure with no OnError
// registered is returned instead.
func (b *Builder) Run(ctx context.Context, req Request, h Handlers) error {
	res, err := b.Build(ctx, req)
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
			return nil
		}
		return err
	}
	if h.OnSuccess != nil {
		h.OnSuccess(res)
	}
	return nil
}

// build holds the state of one invocation.
type build struct {
	b     *Builder
	req   Request
	cfg   *config.Resolved
	start time.Time
	log   *zap.Logger

	features *geojson.FeatureCollection
	css      string
}

func (st *build) enter(s Stage) {
	st.log.Debug("Stage", zap.Stringer("stage", s))
	st.notify(Event{Stage: s})
}

func (st *build) notify(ev Event) {
	if st.b.observer == nil {
		return
	}
	ev.SpecFile = st.req.SpecFile
	if st.cfg != nil {
		ev.Fingerprint = st.cfg.Derived.Fingerprint
	}
	st.b.observer(ev)
}

func (st *build) fail(err error) error {
	st.log.Error("Build failed", zap.Error(err))
	st.notify(Event{Stage: StageFailed, Err: err})
	return err
}

func (st *build) run(ctx context.Context) (*Result, error) {
	cfg := st.cfg
	out := cfg.Derived.OutputSVG

	if !st.req.Force {
		st.enter(StageCheckingCache)
		data, ok, err := st.b.store.Lookup(out)
		if err != nil {
			st.log.Warn("Unreadable cached output, rebuilding", zap.String("path", out), zap.Error(err))
		} else if ok {
			st.log.Info("Output already generated", zap.String("path", out))
			st.enter(StageDone)
			return st.finish(data, true), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, st.fail(err)
	}
	st.enter(StageFetchingData)
	if err := st.b.fetcher.Ensure(ctx, cfg); err != nil {
		return nil, st.fail(err)
	}

	st.enter(StageFilteringGeometry)
	fc, err := st.b.selector.Select(ctx, cfg, st.req.Force)
	if err != nil {
		return nil, st.fail(err)
	}
	st.features = fc

	st.enter(StageBuildingStyle)
	params := cfg.Spec.Parameters
	st.css = style.Build(cfg.Spec.Style, params.Countries, styleKey(params))

	st.enter(StageRendering)
	svg, err := st.b.renderer.Render(fc, st.css, params.Projection, render.Classes(params.Classes))
	if err != nil {
		return nil, st.fail(err)
	}
	if err := st.b.renderer.Persist(out, svg); err != nil {
		return nil, st.fail(err)
	}

	st.enter(StageDone)
	return st.finish(svg, false), nil
}

func (st *build) finish(svg []byte, hit bool) *Result {
	res := &Result{
		SVG:         svg,
		Fingerprint: st.cfg.Derived.Fingerprint,
		OutputPath:  st.cfg.Derived.OutputSVG,
		CacheHit:    hit,
		Config:      st.cfg,
	}
	if st.features != nil {
		res.Features = len(st.features.Features)
	}
	elapsed := time.Since(st.start)
	st.log.Info("Build complete", zap.Bool("cache_hit", hit), zap.Int("features", res.Features),
		zap.Duration("elapsed", elapsed))

	if st.b.ledger != nil {
		// Ledger failures are logged, not returned.
		_, err := st.b.ledger.Record(context.Background(), ledger.Entry{
			Fingerprint: res.Fingerprint,
			Spec:        st.req.SpecFile,
			Output:      res.OutputPath,
			Features:    res.Features,
			CacheHit:    hit,
			Forced:      st.req.Force,
			Duration:    elapsed,
		})
		if err != nil {
			st.log.Warn("Could not record build", zap.Error(err))
		}
	}
	return res
}

// styleKey is the property per-country rules are scoped to: the filter key
// when filtering on countries, ADM0_A3 otherwise.
func styleKey(p api.Parameters) string {
	if p.Filter != nil && p.Filter.Key != "" && strings.EqualFold(p.Filter.Type, api.FilterCountries) {
		return p.Filter.Key
	}
	return style.DefaultKey
}
