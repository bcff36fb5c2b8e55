package sampledb

import (
	"context"
	"os"

	"github.com/wgdzlh/sampledb/log"
	"github.com/wgdzlh/sampledb/utils"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Driver is one ingestion session: it resolves its input files, validates
// their classes and accumulates one Sample per row/feature. A driver is
// used once and is not safe for concurrent use.
type Driver interface {
	// GetFiles lists the source files of the driver entries.
	GetFiles() ([]Input, error)
	// Load validates the classes of one file and appends its samples.
	Load(ctx context.Context, file Input) error
	// LoadClasses extracts and validates the distinct classes of one file.
	LoadClasses(ctx context.Context, file Input) ([]string, error)
	// Records returns the samples accumulated so far.
	Records() []Sample
	// Mappings returns the normalized field mappings.
	Mappings() *Mappings
	LoadDataSets(ctx context.Context) error
	Store(ctx context.Context, table string) error
	Close() error
}

type options struct {
	store       Store
	user        *int64
	system      *int64
	toolbox     *GdalToolbox
	tmpDir      string
	contentType string
}

type Option func(*options)

func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithUser stamps every sample with the owner id.
func WithUser(id int64) Option {
	return func(o *options) { o.user = &id }
}

// WithSystem sets the classification system classes are validated against.
func WithSystem(id int64) Option {
	return func(o *options) { o.system = &id }
}

// WithToolbox shares a GDAL toolbox (and its reference cache) between drivers.
func WithToolbox(g *GdalToolbox) Option {
	return func(o *options) { o.toolbox = g }
}

// WithTmpDir sets where archives are extracted, the system temp dir by default.
func WithTmpDir(dir string) Option {
	return func(o *options) { o.tmpDir = dir }
}

// WithContentType declares the media type of the entries.
func WithContentType(ct string) Option {
	return func(o *options) { o.contentType = ct }
}

// baseDriver holds the state shared by the driver variants.
type baseDriver struct {
	options
	mappings *Mappings
	entries  Input
	resolver *ClassResolver
	records  []Sample
	loaded   bool
	tmpDirs  []string
	logTag   string
}

func newBaseDriver(entries Input, raw RawMappings, logTag string, opts []Option) (b baseDriver, err error) {
	m, err := ValidateMappings(raw)
	if err != nil {
		return
	}
	b = baseDriver{
		mappings: m,
		entries:  entries,
		logTag:   logTag,
	}
	for _, opt := range opts {
		opt(&b.options)
	}
	if b.toolbox == nil {
		b.toolbox = NewGdalToolbox()
	}
	b.resolver = NewClassResolver(b.store, b.system)
	return
}

func (b *baseDriver) Mappings() *Mappings {
	return b.mappings
}

func (b *baseDriver) Records() []Sample {
	return b.records
}

// scratchDir creates a temp directory owned by the driver, removed on Close.
func (b *baseDriver) scratchDir() (dir string, err error) {
	if dir, err = utils.GetUniqSubDir(b.tmpDir); err != nil {
		err = &IOError{Path: b.tmpDir, Err: err}
		return
	}
	b.tmpDirs = append(b.tmpDirs, dir)
	return
}

func (b *baseDriver) Close() (err error) {
	for _, dir := range b.tmpDirs {
		err = multierr.Append(err, os.RemoveAll(dir))
	}
	b.tmpDirs = nil
	return
}

func (b *baseDriver) Store(ctx context.Context, table string) (err error) {
	if b.store == nil {
		return &ConfigError{Err: ErrNoStore}
	}
	if len(b.records) == 0 {
		log.Info(b.logTag+"nothing to store", zap.String("table", table))
		return
	}
	if err = b.store.InsertSamples(ctx, table, b.records); err != nil {
		log.Error(b.logTag+"store samples failed", zap.String("table", table), zap.Error(err))
		return
	}
	log.Info(b.logTag+"samples stored", zap.String("table", table), zap.Int("cnt", len(b.records)))
	return
}

// loadDataSets walks the files of d and loads each one.
func loadDataSets(ctx context.Context, b *baseDriver, d Driver) (err error) {
	if b.loaded {
		return ErrDriverUsed
	}
	b.loaded = true
	files, err := d.GetFiles()
	if err != nil {
		return
	}
	for _, f := range files {
		if err = ctx.Err(); err != nil {
			return
		}
		if err = d.Load(ctx, f); err != nil {
			log.Error(b.logTag+"load failed", zap.Stringer("file", f), zap.Error(err))
			return
		}
		log.Info(b.logTag+"loaded in memory", zap.Stringer("file", f), zap.Int("total", len(b.records)))
	}
	return
}

// Import loads every data set of d, stores the samples into table and closes
// the driver, on every path.
func Import(ctx context.Context, d Driver, table string) (n int, err error) {
	defer func() {
		err = multierr.Append(err, d.Close())
	}()
	if err = d.LoadDataSets(ctx); err != nil {
		return
	}
	if err = d.Store(ctx, table); err != nil {
		return
	}
	n = len(d.Records())
	return
}

func (b *baseDriver) stamp(s *Sample) {
	if b.user != nil {
		id := *b.user
		s.UserID = &id
	}
}
