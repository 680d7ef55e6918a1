// Package service provides the main application service that integrates all components.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/heap-snapshot/internal/buffer"
	"github.com/heap-snapshot/internal/excludes"
	"github.com/heap-snapshot/internal/model"
	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/repository"
	"github.com/heap-snapshot/internal/storage"
	"github.com/heap-snapshot/pkg/config"
	"github.com/heap-snapshot/pkg/compression"
	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/filter"
	pkgmodel "github.com/heap-snapshot/pkg/model"
	"github.com/heap-snapshot/pkg/parallel"
	"github.com/heap-snapshot/pkg/telemetry"
	"github.com/heap-snapshot/pkg/utils"
)

// Service is the main application service.
type Service struct {
	config   *config.Config
	logger   utils.Logger
	db       *repository.Repositories
	storage  storage.Storage
	filter   *filter.ClassFilter
	excludes *excludes.File
	pool     parallel.PoolConfig
	fs       afero.Fs
}

// Option configures a Service.
type Option func(*Service)

// WithStorage replaces the storage built from configuration.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

// WithRepositories replaces the database opened from configuration.
func WithRepositories(repos *repository.Repositories) Option {
	return func(s *Service) { s.db = repos }
}

// WithClassFilter replaces the default class filter.
func WithClassFilter(f *filter.ClassFilter) Option {
	return func(s *Service) { s.filter = f }
}

// WithPoolConfig sets the worker pool used for parallel loads and
// histograms.
func WithPoolConfig(cfg parallel.PoolConfig) Option {
	return func(s *Service) { s.pool = cfg }
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is required")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{
		config: cfg,
		logger: logger,
		filter: filter.NewClassFilter(),
		pool:   parallel.DefaultPoolConfig(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.filter.AddBusinessPrefixes(cfg.Snapshot.BusinessPrefixes)
	if cfg.Snapshot.ExcludesFile != "" {
		s.excludes = excludes.NewOsFile(cfg.Snapshot.ExcludesFile, logger)
	}
	return s, nil
}

// Initialize opens whatever the options did not supply: storage always,
// the database when it is enabled.
func (s *Service) Initialize(ctx context.Context) error {
	if s.storage == nil {
		if err := s.initStorage(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}
	if s.db == nil && s.config.Database.Enabled {
		if err := s.initDatabase(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	return nil
}

// initDatabase initializes the database connection and repositories.
func (s *Service) initDatabase() error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	gormDB, err := repository.NewGormDB(&s.config.Database)
	if err != nil {
		return err
	}

	s.db = repository.NewRepositories(gormDB)
	s.logger.Info("Database connection established")
	return nil
}

// initStorage initializes the dump storage.
func (s *Service) initStorage() error {
	s.logger.Debug("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	return nil
}

// loaderOptions builds a fresh loader configuration. Every dump gets its
// own payload cache.
func (s *Service) loaderOptions() (*hprof.Options, error) {
	cache, err := model.NewValueCache(model.CachePolicy(s.config.Snapshot.Cache.Policy), s.config.Snapshot.Cache.Size)
	if err != nil {
		return nil, err
	}
	return &hprof.Options{
		CallStack:     s.config.Snapshot.CallStack,
		CalculateRefs: s.config.Snapshot.CalculateRefs,
		UnresolvedOK:  s.config.Snapshot.UnresolvedOK,
		Cache:         cache,
		Logger:        s.logger,
	}, nil
}

// Open fetches the dump stored under key and loads it into a resolved
// snapshot. The caller closes the returned dump.
func (s *Service) Open(ctx context.Context, key string) (dump *hprof.Dump, err error) {
	if s.storage == nil {
		return nil, apperrors.New(apperrors.CodeMisuse, "service is not initialized")
	}

	ctx, span := telemetry.StartSpan(ctx, "heapsnap.open", telemetry.AttrDumpKey.String(key))
	defer func() { telemetry.EndSpan(span, err) }()

	timer := utils.NewTimer("open "+key, utils.WithLogger(s.logger))

	var path string
	err = timer.TimeFuncWithError("fetch", func() error {
		var ferr error
		path, ferr = s.storage.Fetch(ctx, key)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	err = timer.TimeFuncWithError("decompress", func() error {
		var derr error
		path, derr = s.decompressed(ctx, key, path)
		return derr
	})
	if err != nil {
		return nil, err
	}

	opts, err := s.loaderOptions()
	if err != nil {
		return nil, err
	}
	err = timer.TimeFuncWithError("load", func() error {
		var lerr error
		dump, lerr = hprof.NewLoader(opts).Load(ctx, path, buffer.Kind(s.config.Snapshot.Buffer))
		return lerr
	})
	if err != nil {
		return nil, err
	}
	timer.PrintSummary()

	span.SetAttributes(
		telemetry.AttrIDSize.Int(dump.Header.IDSize),
		telemetry.AttrObjects.Int(len(dump.Snapshot.Things())),
		telemetry.AttrRoots.Int(len(dump.Snapshot.Roots())),
	)
	s.logger.Info("Loaded %s: %s, %d objects, %d roots",
		key, dump.Header.Format, len(dump.Snapshot.Things()), len(dump.Snapshot.Roots()))
	return dump, nil
}

// decompressed returns path itself for a plain dump. A gzip or zstd dump
// is expanded into the data directory once and the copy is reused while
// it is newer than the source.
func (s *Service) decompressed(ctx context.Context, key, path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to open dump", err)
	}
	header := make([]byte, 4)
	n, _ := f.Read(header)
	f.Close()

	t := compression.DetectType(header[:n])
	if t == compression.TypeNone {
		return path, nil
	}

	if err := s.config.EnsureDataDir(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to create data directory", err)
	}
	dst := s.config.DumpPath(compression.TrimExtension(key))
	if dst == path {
		dst += ".hprof"
	}

	src, err := s.fs.Stat(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to stat dump", err)
	}
	if out, err := s.fs.Stat(dst); err == nil && !out.ModTime().Before(src.ModTime()) {
		s.logger.Debug("Reusing decompressed %s", dst)
		return dst, nil
	}

	s.logger.Info("Decompressing %s dump %s to %s", t, key, dst)
	written, err := compression.DecompressFile(ctx, s.fs, path, dst)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Decompressed %d bytes", written)
	return dst, nil
}

// Pair is a dump loaded together with the baseline it was compared to.
type Pair struct {
	Baseline *hprof.Dump
	Current  *hprof.Dump
}

// Close closes both dumps.
func (p *Pair) Close() error {
	var firstErr error
	for _, d := range []*hprof.Dump{p.Baseline, p.Current} {
		if d == nil {
			continue
		}
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenPair loads baselineKey and key concurrently, then flags the objects
// of key that baselineKey lacks as new.
func (s *Service) OpenPair(ctx context.Context, baselineKey, key string) (pair *Pair, err error) {
	ctx, span := telemetry.StartSpan(ctx, "heapsnap.open_pair",
		telemetry.AttrDumpKey.String(key),
		telemetry.AttrBaseline.String(baselineKey),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	results := parallel.Map(ctx, s.pool.WithWorkers(2), []string{baselineKey, key}, s.Open)

	pair = &Pair{Baseline: results[0].Value, Current: results[1].Value}
	if err := parallel.FirstError(results); err != nil {
		pair.Close()
		return nil, err
	}

	pair.Current.Snapshot.MarkNewRelativeTo(pair.Baseline.Snapshot)
	return pair, nil
}

// classTotals accumulates one histogram row.
type classTotals struct {
	instances int
	bytes     int64
	fresh     int
}

// unknownClassName labels objects whose class never resolved.
const unknownClassName = "<unknown class>"

// Summarize computes the class histogram and root counts of dump. key and
// baselineKey are recorded as given; new instance counts are filled only
// when the snapshot was marked against a baseline. A canceled ctx yields
// its error rather than a partial histogram.
func (s *Service) Summarize(ctx context.Context, key string, dump *hprof.Dump, baselineKey string) (*pkgmodel.SnapshotSummary, error) {
	snap := dump.Snapshot

	var instances []model.JavaHeapObject
	for _, t := range snap.Things() {
		if t.Kind() != model.KindClass {
			instances = append(instances, t)
		}
	}

	totals, err := parallel.Aggregate(ctx, s.pool, instances,
		func(o model.JavaHeapObject) (string, classTotals) {
			name := unknownClassName
			if c := o.Clazz(); c != nil {
				name = c.Name()
			}
			v := classTotals{instances: 1, bytes: o.Size()}
			if o.IsNew() {
				v.fresh = 1
			}
			return name, v
		},
		func(a, b classTotals) classTotals {
			return classTotals{
				instances: a.instances + b.instances,
				bytes:     a.bytes + b.bytes,
				fresh:     a.fresh + b.fresh,
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", key, err)
	}

	summary := &pkgmodel.SnapshotSummary{
		Key:         key,
		Format:      dump.Header.Format,
		IDSize:      dump.Header.IDSize,
		DumpedAt:    dump.Header.Timestamp,
		Classes:     len(snap.Classes()),
		Objects:     len(instances),
		Roots:       len(snap.Roots()),
		RootsByType: make(map[string]int),
	}
	if snap.HasNewSet() {
		summary.Baseline = baselineKey
	}

	for name, t := range totals {
		summary.TotalBytes += t.bytes
		summary.NewObjects += t.fresh
		summary.Histogram = append(summary.Histogram, pkgmodel.ClassHistogramEntry{
			ClassName:    name,
			Category:     s.filter.Classify(name).String(),
			Instances:    t.instances,
			Bytes:        t.bytes,
			NewInstances: t.fresh,
		})
	}
	summary.SortHistogram()

	for _, r := range snap.Roots() {
		summary.RootsByType[r.TypeName()]++
	}
	return summary, nil
}

// Persist stores summary in the database.
func (s *Service) Persist(ctx context.Context, summary *pkgmodel.SnapshotSummary) (int64, error) {
	if s.db == nil {
		return 0, apperrors.New(apperrors.CodeConfigError, "database is not enabled")
	}
	id, err := s.db.Summary.SaveSummary(ctx, summary)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Saved summary %d for %s", id, summary.Key)
	return id, nil
}

// Summaries returns the saved summaries of key, newest first.
func (s *Service) Summaries(ctx context.Context, key string, limit int) ([]*pkgmodel.SnapshotSummary, error) {
	if s.db == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "database is not enabled")
	}
	return s.db.Summary.ListSummaries(ctx, key, limit)
}

// LatestSummary returns the newest saved summary of key with its histogram.
func (s *Service) LatestSummary(ctx context.Context, key string) (*pkgmodel.SnapshotSummary, error) {
	if s.db == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "database is not enabled")
	}
	return s.db.Summary.GetLatestSummary(ctx, key)
}

// DeleteSummaries removes every saved summary of key.
func (s *Service) DeleteSummaries(ctx context.Context, key string) (int64, error) {
	if s.db == nil {
		return 0, apperrors.New(apperrors.CodeConfigError, "database is not enabled")
	}
	n, err := s.db.Summary.DeleteSummaries(ctx, key)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Deleted %d summaries for %s", n, key)
	return n, nil
}

// FindObject looks up the heap object named by id, given in hex with a 0x
// prefix or in decimal.
func (s *Service) FindObject(dump *hprof.Dump, id string) (model.JavaHeapObject, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(id), 0, 64)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("invalid object id %q", id), err)
	}
	obj := dump.Snapshot.FindThing(model.ID(v))
	if obj == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "no object with id %s", model.ID(v).Hex())
	}
	return obj, nil
}

// Reachable returns everything reachable from the object named by id,
// skipping the fields listed in the configured excludes file.
func (s *Service) Reachable(ctx context.Context, dump *hprof.Dump, id string) (*model.ReachableObjects, error) {
	obj, err := s.FindObject(dump, id)
	if err != nil {
		return nil, err
	}

	_, span := telemetry.StartSpan(ctx, "heapsnap.reachable")
	defer span.End()

	var ex model.ReachableExcludes
	if s.excludes != nil {
		ex = s.excludes
	}
	return model.NewReachableObjects(obj, ex), nil
}

// Chains returns the reference chains from roots to the object named by id.
func (s *Service) Chains(ctx context.Context, dump *hprof.Dump, id string, includeWeak bool) ([]*model.ReferenceChain, error) {
	if dump.Snapshot.State() != model.StateReferencesChased {
		return nil, apperrors.New(apperrors.CodeMisuse, "reference chains need a snapshot loaded with calculate_refs")
	}
	obj, err := s.FindObject(dump, id)
	if err != nil {
		return nil, err
	}

	_, span := telemetry.StartSpan(ctx, "heapsnap.chains")
	defer span.End()

	return dump.Snapshot.RootsetReferencesTo(obj, includeWeak), nil
}

// ClassFilter returns the filter used to categorize histogram rows.
func (s *Service) ClassFilter() *filter.ClassFilter {
	return s.filter
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
