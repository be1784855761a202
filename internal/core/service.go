package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"fungiatlas/internal/content"
	"fungiatlas/pkg/domain"
)

const (
	opReload     = "reload"
	opIdentify   = "identify"
	opImageLinks = "species_images"
	opImport     = "import"
	opImageStore = "species_image_upload"
)

// ErrReadOnlySource is returned by Import when the content source cannot
// store documents.
var ErrReadOnlySource = errors.New("content source is read-only")

// ErrNoImageStore is returned by UploadSpeciesImage when the image resolver
// cannot store images.
var ErrNoImageStore = errors.New("no writable image store configured")

// ContentWriter is implemented by content sources that accept new documents.
type ContentWriter interface {
	Save(ctx context.Context, doc content.Document) error
}

// ImageResolver turns the images of a species into links a caller can fetch.
// declared holds the keys recorded in the content document.
type ImageResolver interface {
	SpeciesImageURLs(ctx context.Context, speciesID string, declared []string) ([]string, error)
}

// ImageUploader is implemented by image resolvers that also store images.
type ImageUploader interface {
	PutSpeciesImage(ctx context.Context, speciesID, name string, r io.Reader, contentType string) (string, error)
}

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	rules   *RulesEngine
	images  ImageResolver
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		rules:   NewDefaultRulesEngine(),
	}
}

// WithClock overrides the clock used for timestamps and durations.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder records reload outcomes.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRules replaces the content rules run on every reload. A nil engine
// disables them.
func WithRules(engine *RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		o.rules = engine
	}
}

// WithImageResolver sets how species image keys become links.
func WithImageResolver(resolver ImageResolver) ServiceOption {
	return func(o *serviceOptions) {
		o.images = resolver
	}
}

// Service loads atlas content from a source, publishes it to an Engine, and
// answers queries with logging, metrics, tracing, and auditing around them.
type Service struct {
	source  content.Source
	engine  *Engine
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	rules   *RulesEngine
	images  ImageResolver

	reloadMu sync.Mutex
}

// NewService constructs a service over source. No content is loaded until
// Reload is called.
func NewService(source content.Source, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Service{
		source:  source,
		engine:  NewEngine(nil),
		clock:   o.clock,
		logger:  o.logger,
		audit:   o.audit,
		metrics: o.metrics,
		tracer:  o.tracer,
		rules:   o.rules,
		images:  o.images,
	}
}

// Engine returns the engine the service publishes to.
func (s *Service) Engine() *Engine { return s.engine }

// Dataset returns the currently served dataset or nil.
func (s *Service) Dataset() *Dataset { return s.engine.Dataset() }

// Source returns the content source.
func (s *Service) Source() content.Source { return s.source }

// Reload fetches the content, builds a new dataset off to the side, and
// publishes it. On failure the previously served dataset stays in place.
// Concurrent reloads are serialized.
func (s *Service) Reload(ctx context.Context) (ds *Dataset, err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ctx, span := s.tracer.Start(ctx, opReload)
	start := s.clock.Now()
	defer func() {
		elapsed := s.clock.Now().Sub(start)
		span.End(err)
		s.metrics.Observe(ctx, opReload, err == nil, elapsed)
		s.recordAudit(ctx, opReload, ds, elapsed, err)
	}()

	name := s.source.Name()
	doc, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error("content fetch failed", "source", name, "error", err)
		return nil, fmt.Errorf("fetch content from %s: %w", name, err)
	}
	ds, err = LoadDataset(ctx, doc, WithLoadRules(s.rules), WithLoadClock(s.clock.Now))
	if err != nil {
		s.logger.Error("content rejected", "source", name, "error", err)
		return nil, fmt.Errorf("load content from %s: %w", name, err)
	}

	s.publish(name, ds)
	return ds, nil
}

// Import checks doc by building a dataset from it, writes the normalized
// document to the content source, and publishes the dataset. Rejected
// documents are never written.
func (s *Service) Import(ctx context.Context, doc content.Document) (ds *Dataset, err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ctx, span := s.tracer.Start(ctx, opImport)
	start := s.clock.Now()
	defer func() {
		elapsed := s.clock.Now().Sub(start)
		span.End(err)
		s.metrics.Observe(ctx, opImport, err == nil, elapsed)
		s.recordAudit(ctx, opImport, ds, elapsed, err)
	}()

	name := s.source.Name()
	writer, ok := s.source.(ContentWriter)
	if !ok {
		return nil, fmt.Errorf("import into %s: %w", name, ErrReadOnlySource)
	}
	ds, err = LoadDataset(ctx, doc, WithLoadRules(s.rules), WithLoadClock(s.clock.Now))
	if err != nil {
		s.logger.Error("import rejected", "source", name, "error", err)
		return nil, fmt.Errorf("import into %s: %w", name, err)
	}
	doc = content.Normalize(doc)
	if err = writer.Save(ctx, doc); err != nil {
		s.logger.Error("content save failed", "source", name, "error", err)
		return nil, fmt.Errorf("save content to %s: %w", name, err)
	}
	s.publish(name, ds)
	return ds, nil
}

func (s *Service) publish(name string, ds *Dataset) {
	prev := s.engine.Publish(ds)
	if observer, ok := s.metrics.(datasetObserver); ok {
		observer.ObserveDataset(ds)
	}
	report := ds.Report()
	keyvals := []any{
		"source", name,
		"dataset_id", ds.ID(),
		"version", ds.Version(),
		"species", ds.Len(),
		"edges", ds.Graph().Len(),
		"warnings", report.Count(SeverityWarn),
	}
	if prev != nil {
		keyvals = append(keyvals, "previous_dataset_id", prev.ID())
	}
	s.logger.Info("dataset published", keyvals...)
	for _, v := range report.Violations {
		switch v.Severity {
		case SeverityWarn:
			s.logger.Warn("content rule", "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		default:
			s.logger.Debug("content rule", "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		}
	}
}

// Identify ranks candidates for obs against the served dataset.
func (s *Service) Identify(ctx context.Context, obs Observation, candidateIDs ...string) (res Identification, err error) {
	ctx, span := s.tracer.Start(ctx, opIdentify)
	start := s.clock.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, opIdentify, err == nil, s.clock.Now().Sub(start))
	}()

	res, err = s.engine.Identify(obs, candidateIDs...)
	if err != nil {
		s.logger.Debug("identify rejected", "error", err)
		return Identification{}, err
	}
	top, _ := res.Top()
	s.logger.Debug("identify",
		"dataset_id", res.DatasetID,
		"candidates", len(res.Matches),
		"no_candidates", res.NoCandidates,
		"top", top.SpeciesID,
	)
	return res, nil
}

// SpeciesImages returns links for the images of a species, looked up by id,
// scientific name, or synonym. Without an ImageResolver the declared keys are
// returned as they are.
func (s *Service) SpeciesImages(ctx context.Context, species string) (links []string, err error) {
	ctx, span := s.tracer.Start(ctx, opImageLinks)
	start := s.clock.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, opImageLinks, err == nil, s.clock.Now().Sub(start))
	}()

	rec, err := s.resolveSpecies(species)
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return rec.Images, nil
	}
	links, err = s.images.SpeciesImageURLs(ctx, rec.ID, rec.Images)
	if err != nil {
		return nil, fmt.Errorf("species %s images: %w", rec.ID, err)
	}
	return links, nil
}

// UploadSpeciesImage stores an image under the canonical id of a species,
// looked up by id, scientific name, or synonym, and returns its key.
func (s *Service) UploadSpeciesImage(ctx context.Context, species, name string, r io.Reader, contentType string) (key string, err error) {
	ctx, span := s.tracer.Start(ctx, opImageStore)
	start := s.clock.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, opImageStore, err == nil, s.clock.Now().Sub(start))
	}()

	uploader, ok := s.images.(ImageUploader)
	if !ok {
		return "", ErrNoImageStore
	}
	rec, err := s.resolveSpecies(species)
	if err != nil {
		return "", err
	}
	key, err = uploader.PutSpeciesImage(ctx, rec.ID, name, r, contentType)
	if err != nil {
		return "", fmt.Errorf("store image for %s: %w", rec.ID, err)
	}
	s.logger.Info("species image stored", "species_id", rec.ID, "key", key)
	return key, nil
}

func (s *Service) resolveSpecies(species string) (SpeciesRecord, error) {
	ds := s.engine.Dataset()
	if ds == nil {
		return SpeciesRecord{}, ErrNoDataset
	}
	id, ok := ds.Resolve(species)
	if !ok {
		return SpeciesRecord{}, domain.UnknownSpeciesReferenceError{SpeciesID: species}
	}
	rec, _ := ds.FindSpecies(id)
	return rec, nil
}

func (s *Service) recordAudit(ctx context.Context, op string, ds *Dataset, duration time.Duration, err error) {
	entry := AuditEntry{
		Operation: op,
		Source:    s.source.Name(),
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if ds != nil {
		entry.DatasetID = ds.ID()
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
