// Package planner turns batches of classified records into deterministic
// identifier plans, reusing the prior plan for everything that did not
// change.
package planner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dbsmedya/entityplan/internal/ident"
	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// Store loads the prior snapshot and commits the next one.
type Store interface {
	Load(ctx context.Context) (*plan.Snapshot, error)
	Commit(ctx context.Context, next *plan.Snapshot, changes plan.Changeset) error
}

// RunOptions tune a single planning run.
type RunOptions struct {
	// Invalidate lists record keys, slot ids or "kind:<Name>" targets whose
	// records are re-derived even when unchanged.
	Invalidate []string
	// DryRun computes the plan without committing it.
	DryRun bool
}

// Planner computes identifier plans against a fixed schema.
type Planner struct {
	schema   *schema.Description
	resolver *schema.Resolver
	deriver  *ident.Deriver
	store    Store
	workers  int
	log      *logger.Logger
	tel      *telemetry
}

type settings struct {
	workers int
	log     *logger.Logger
	deriver *ident.Deriver
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// Option configures a Planner.
type Option func(*settings)

// WithWorkers bounds the phase-1 worker pool. Values below one select
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithDeriver sets the identifier deriver (namespace and prefix).
func WithDeriver(d *ident.Deriver) Option {
	return func(s *settings) { s.deriver = d }
}

// WithTracerProvider sets the tracer provider. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tp = tp }
}

// WithMeterProvider sets the meter provider. The global provider is used
// otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) { s.mp = mp }
}

// New creates a Planner. st may be nil when only Compute is used.
func New(desc *schema.Description, st Store, opts ...Option) (*Planner, error) {
	if desc == nil {
		return nil, errors.New("planner: schema description is required")
	}

	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.deriver == nil {
		s.deriver = ident.NewDefault()
	}

	tel, err := newTelemetry(s.tp, s.mp)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	return &Planner{
		schema:   desc,
		resolver: schema.NewResolver(desc),
		deriver:  s.deriver,
		store:    st,
		workers:  s.workers,
		log:      s.log,
		tel:      tel,
	}, nil
}

// Schema returns the schema the planner resolves against.
func (p *Planner) Schema() *schema.Description {
	return p.schema
}

// Run loads the prior snapshot, plans the batch against it and commits the
// result. Nothing is committed on a fatal error, in a dry run, or when the
// changeset is empty.
func (p *Planner) Run(ctx context.Context, batch []*record.Record, opts RunOptions) (res *Result, err error) {
	if p.store == nil {
		return nil, errors.New("planner: no store configured")
	}

	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithRun(runID)

	ctx, span := p.tel.start(ctx, "planner.run",
		attribute.String("entityplan.run_id", runID),
		attribute.Int("entityplan.batch_size", len(batch)),
		attribute.Bool("entityplan.dry_run", opts.DryRun),
	)
	defer func() { end(span, err) }()

	log.Infow("Starting planning run",
		"records", len(batch),
		"invalidate", len(opts.Invalidate),
		"dry_run", opts.DryRun)

	prev, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prior plan: %w", err)
	}

	res, err = p.Compute(ctx, prev, batch, opts)
	if err != nil {
		log.Errorw("Planning run failed", "error", err)
		return nil, err
	}

	for _, f := range res.Report.Failures {
		log.WithRecord(f.Key).Warnw("Record excluded from plan",
			"index", f.Index,
			"kind", f.Kind,
			"error", f.Err)
	}
	for _, w := range res.Report.Warnings {
		log.Warnw("Planning warning", "warning", w)
	}

	if !opts.DryRun && !res.Changes.IsEmpty() {
		if err = p.commit(ctx, res); err != nil {
			log.Errorw("Commit failed, prior plan left untouched", "error", err)
			return nil, err
		}
		res.Committed = true
	}

	res.Stats.Duration = time.Since(start)
	span.SetAttributes(runAttributes(res)...)
	p.tel.recordRun(ctx, res, res.Stats.Duration)

	log.Infow("Planning run completed",
		"version", res.Snapshot.Version,
		"changes", res.Changes.Summary(),
		"slots_derived", res.Stats.SlotsDerived,
		"slots_reused", res.Stats.SlotsReused,
		"failed", len(res.Report.Failures),
		"committed", res.Committed,
		"duration", res.Stats.Duration)

	return res, nil
}

func (p *Planner) commit(ctx context.Context, res *Result) (err error) {
	ctx, span := p.tel.start(ctx, "planner.commit",
		attribute.Int64("entityplan.version", res.Snapshot.Version),
		attribute.Int("entityplan.changes", res.Changes.Size()),
	)
	defer func() { end(span, err) }()

	if err = p.store.Commit(ctx, res.Snapshot, res.Changes); err != nil {
		return fmt.Errorf("commit plan version %d: %w", res.Snapshot.Version, err)
	}
	return nil
}

// candidate is a batch record on its way through the planner.
type candidate struct {
	index int
	rec   *record.Record
	fp    record.Fingerprint
	key   string
	err   error

	class plan.Classification
	row   *plan.Row
}

// Compute plans a batch against prev without any I/O. prev is not
// modified; nil is treated as an empty snapshot.
func (p *Planner) Compute(ctx context.Context, prev *plan.Snapshot, batch []*record.Record, opts RunOptions) (*Result, error) {
	if prev == nil {
		prev = plan.NewSnapshot()
	}
	res := &Result{Prior: prev}

	// Phase 1a: fingerprints.
	candidates := p.fingerprint(ctx, batch)

	accepted := make([]*candidate, 0, len(candidates))
	byKey := make(map[string]*candidate, len(candidates))
	byFingerprint := make(map[record.Fingerprint]*candidate, len(candidates))
	for _, c := range candidates {
		if c.err == nil {
			if first, dup := byKey[c.key]; dup {
				c.err = &DuplicateRecordError{Key: c.key, DuplicateOf: first.key}
			} else if first, dup := byFingerprint[c.fp]; dup {
				c.err = &DuplicateRecordError{Key: c.key, DuplicateOf: first.key, SameContent: true}
			}
		}
		if c.err != nil {
			res.Report.Failures = append(res.Report.Failures, failureOf(c))
			continue
		}
		byKey[c.key] = c
		byFingerprint[c.fp] = c
		accepted = append(accepted, c)
	}

	for _, c := range accepted {
		if p.schema.HasKind(c.rec.Kind) {
			continue
		}
		if row, ok := prev.Records[c.key]; ok && row.Kind == c.rec.Kind {
			return nil, &SchemaMismatchError{Key: c.key, Role: schema.RolePrimary, Name: c.rec.Kind}
		}
		return nil, &schema.UnknownKindError{Kind: c.rec.Kind, Key: c.rec.Key}
	}

	if len(batch) > 0 && len(accepted) == 0 {
		return nil, &AllRecordsFailedError{Failures: res.Report.Failures}
	}

	forced, warnings := resolveInvalidation(prev, opts.Invalidate)
	res.Report.Warnings = append(res.Report.Warnings, warnings...)

	observations := make([]plan.Observation, len(accepted))
	for i, c := range accepted {
		observations[i] = plan.Observation{Key: c.key, Kind: c.rec.Kind, Fingerprint: c.fp}
	}
	res.Delta = plan.Diff(prev, observations, forced)
	for _, c := range accepted {
		c.class = res.Delta.Of(c.key)
	}

	if err := p.checkUnchanged(prev, accepted); err != nil {
		return nil, err
	}

	// Phase 1b: primary and facet slots.
	present := schema.NewKindSet()
	for _, c := range accepted {
		present.Add(c.rec.Kind)
	}
	needed, err := p.deriveRecordSlots(accepted, prev, present, &res.Stats)
	if err != nil {
		return nil, err
	}

	// Phase 2: relationships, after every record slot exists.
	relationships := p.planRelationships(ctx, prev, accepted, needed, &res.Stats)

	next := plan.NewSnapshot()
	entries := make([]plan.Entry, len(accepted))
	for i, c := range accepted {
		next.Records[c.key] = c.row
		entries[i] = plan.Entry{Key: c.key, Classification: c.class}
	}
	next.Relationships = relationships

	res.Changes = plan.ComputeChangeset(prev, next)
	next.Version = prev.Version
	if !res.Changes.IsEmpty() {
		next.Version++
	}
	res.Snapshot = next

	res.Plan = plan.Build(next, entries)
	if err := res.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("planner produced an inconsistent plan: %w", err)
	}

	res.Stats.Records = res.Delta.Counts()
	return res, nil
}

// fingerprint hashes the batch on the worker pool. Results keep batch
// order.
func (p *Planner) fingerprint(ctx context.Context, batch []*record.Record) []*candidate {
	_, span := p.tel.start(ctx, "planner.fingerprint", attribute.Int("entityplan.batch_size", len(batch)))
	defer span.End()

	candidates := make([]*candidate, len(batch))
	wp := pool.New().WithMaxGoroutines(p.workers)
	for i, rec := range batch {
		wp.Go(func() {
			c := &candidate{index: i, rec: rec}
			c.fp, c.err = record.Compute(rec)
			if c.err == nil {
				c.key = record.LogicalKey(rec, c.fp)
			}
			candidates[i] = c
		})
	}
	wp.Wait()

	return candidates
}

// checkUnchanged verifies that rows about to be copied verbatim only
// reference schema elements that still exist.
func (p *Planner) checkUnchanged(prev *plan.Snapshot, accepted []*candidate) error {
	unchanged := make(map[record.Fingerprint]string)
	for _, c := range accepted {
		if c.class != plan.Unchanged {
			continue
		}
		row := prev.Records[c.key]
		unchanged[row.Fingerprint] = c.key

		kind, _ := p.schema.Kind(row.Kind)
		for _, slot := range row.Slots {
			if !p.schema.Has(slot.Role, slot.Kind) {
				return &SchemaMismatchError{Key: c.key, Role: slot.Role, Name: slot.Kind}
			}
			if slot.Role == schema.RoleFacet && !declares(kind.Facets, slot.Kind) {
				return &SchemaMismatchError{Key: c.key, Role: slot.Role, Name: slot.Kind}
			}
		}
	}

	for _, relKey := range prev.RelationshipKeys() {
		slot := prev.Relationships[relKey]
		if p.schema.HasRelationship(slot.Kind) || len(slot.Fingerprints) != 2 {
			continue
		}
		src, srcOK := unchanged[slot.Fingerprints[0]]
		_, tgtOK := unchanged[slot.Fingerprints[1]]
		if srcOK && tgtOK {
			return &SchemaMismatchError{Key: src, Role: schema.RoleRelationship, Name: slot.Kind}
		}
	}
	return nil
}

func declares(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// deriveRecordSlots fills in the row of every accepted candidate: unchanged
// rows are copied from prev, all others are resolved and derived. It returns
// the relationships any record requires.
func (p *Planner) deriveRecordSlots(accepted []*candidate, prev *plan.Snapshot, present schema.KindSet, stats *Stats) (map[string]struct{}, error) {
	specs := make([][]schema.SlotSpec, len(accepted))
	errs := make([]error, len(accepted))

	wp := pool.New().WithMaxGoroutines(p.workers)
	for i, c := range accepted {
		wp.Go(func() {
			resolved, err := p.resolver.Resolve(c.rec, c.rec.Kind, present)
			if err != nil {
				errs[i] = err
				return
			}
			specs[i] = resolved
			if c.class == plan.Unchanged {
				c.row = prev.Records[c.key].Clone()
				return
			}
			c.row = p.deriveRow(c, resolved)
		})
	}
	wp.Wait()

	needed := make(map[string]struct{})
	for i, c := range accepted {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if c.class == plan.Unchanged {
			stats.SlotsReused += len(c.row.Slots)
		} else {
			stats.SlotsDerived += len(c.row.Slots)
		}
		for _, s := range specs[i] {
			if s.Role == schema.RoleRelationship {
				needed[s.Name] = struct{}{}
			}
		}
	}
	return needed, nil
}

func (p *Planner) deriveRow(c *candidate, specs []schema.SlotSpec) *plan.Row {
	row := &plan.Row{
		Key:         c.key,
		Kind:        c.rec.Kind,
		Fingerprint: c.fp,
	}
	for _, s := range specs {
		if s.Role == schema.RoleRelationship {
			continue
		}
		row.Slots = append(row.Slots, plan.Slot{
			ID:           p.deriver.DeriveID(c.fp, s.Role, s.Name),
			Role:         s.Role,
			Kind:         s.Name,
			Type:         s.Type,
			Fingerprints: []record.Fingerprint{c.fp},
		})
	}
	return row
}

func failureOf(c *candidate) RecordFailure {
	f := RecordFailure{Index: c.index, Err: c.err}
	if c.rec != nil {
		f.Key = c.rec.Key
		f.Kind = c.rec.Kind
	}
	if f.Key == "" {
		f.Key = c.key
	}
	return f
}
