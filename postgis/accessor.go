package postgis

import (
	"context"
	"fmt"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/log"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	DEFAULT_CLASSES_TABLE = "classes"

	sqlSelectClasses = `SELECT id, name, coalesce(description, ''), coalesce(code, ''), class_system_id FROM %s WHERE class_system_id = $1 ORDER BY id`
	sqlInsertClass   = `INSERT INTO %s (name, description, code, class_system_id) VALUES ($1, $2, $3, $4) RETURNING id`
	sqlInsertSample  = `INSERT INTO %s (start_date, end_date, collection_date, location, class_id, user_id) VALUES ($1::date, $2::date, $3::date, ST_GeomFromEWKT($4), $5, $6)`
)

// Accessor is the PostGIS sample store of one import. It keeps the
// name to id map of the classification system it last loaded, used to
// translate sample class names on insert. It is not safe for concurrent use.
type Accessor struct {
	db       DB
	classes  pgx.Identifier
	system   *int64
	loaded   int64
	classIDs map[string]int64
	logTag   string
}

var _ sampledb.Store = (*Accessor)(nil)

type Option func(*Accessor)

// WithClassesTable overrides the table holding the registered classes.
func WithClassesTable(id pgx.Identifier) Option {
	return func(a *Accessor) { a.classes = id }
}

// WithDefaultSystem sets the classification system used when an import
// names none.
func WithDefaultSystem(id int64) Option {
	return func(a *Accessor) { a.system = &id }
}

func NewAccessor(db DB, opts ...Option) *Accessor {
	a := &Accessor{
		db:      db,
		classes: pgx.Identifier{DEFAULT_CLASSES_TABLE},
		logTag:  "PostgisAccessor:",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Accessor) DefaultSystem() (int64, bool) {
	if a.system == nil {
		return 0, false
	}
	return *a.system, true
}

// LoadClasses lists the classes of a classification system and remembers
// their ids by name.
func (a *Accessor) LoadClasses(ctx context.Context, systemID int64) (classes []sampledb.Class, err error) {
	rows, err := a.db.Query(ctx, fmt.Sprintf(sqlSelectClasses, a.classes.Sanitize()), systemID)
	if err != nil {
		log.Error(a.logTag+"query classes failed", zap.Int64("system", systemID), zap.Error(err))
		return
	}
	classes, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (c sampledb.Class, e error) {
		e = row.Scan(&c.ID, &c.Name, &c.Description, &c.Code, &c.SystemID)
		return
	})
	if err != nil {
		log.Error(a.logTag+"scan classes failed", zap.Int64("system", systemID), zap.Error(err))
		return
	}
	a.loaded = systemID
	a.classIDs = make(map[string]int64, len(classes))
	for _, c := range classes {
		a.classIDs[c.Name] = c.ID
	}
	log.Debug(a.logTag+"classes loaded", zap.Int64("system", systemID), zap.Int("cnt", len(classes)))
	return
}

// InsertClasses registers classes in one transaction. The name to id map is
// dropped so the next import reloads it.
func (a *Accessor) InsertClasses(ctx context.Context, classes []sampledb.Class) (err error) {
	if len(classes) == 0 {
		return
	}
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(sqlInsertClass, a.classes.Sanitize())
	batch := &pgx.Batch{}
	for i := range classes {
		c := &classes[i]
		batch.Queue(query, c.Name, c.Description, c.Code, c.SystemID).QueryRow(func(row pgx.Row) error {
			return row.Scan(&c.ID)
		})
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error(a.logTag+"insert classes failed", zap.Int("cnt", len(classes)), zap.Error(err))
		return fmt.Errorf("insert classes: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit classes: %w", err)
	}
	a.classIDs = nil
	log.Info(a.logTag+"classes stored", zap.Int("cnt", len(classes)))
	return
}

// InsertSamples stores samples into table in one transaction, translating
// class names to ids with the classes last loaded.
func (a *Accessor) InsertSamples(ctx context.Context, table string, samples []sampledb.Sample) (err error) {
	if len(samples) == 0 {
		return
	}
	id, err := ParseIdentifier(table)
	if err != nil {
		return
	}
	if a.classIDs == nil {
		system, ok := a.DefaultSystem()
		if !ok {
			return &sampledb.ConfigError{Msg: "no classes loaded", Err: sampledb.ErrNoSystem}
		}
		if _, err = a.LoadClasses(ctx, system); err != nil {
			return
		}
	}
	query := fmt.Sprintf(sqlInsertSample, id.Sanitize())
	batch := &pgx.Batch{}
	var missing []string
	for _, s := range samples {
		classID, ok := a.classIDs[s.ClassID]
		if !ok {
			missing = append(missing, s.ClassID)
			continue
		}
		batch.Queue(query, s.StartDate, s.EndDate, s.CollectionDate, s.Location, classID, s.UserID)
	}
	if len(missing) > 0 {
		return &sampledb.ValidationError{SystemID: a.loaded, Unregistered: distinct(missing)}
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error(a.logTag+"insert samples failed", zap.String("table", table), zap.Error(err))
		return fmt.Errorf("insert samples into %s: %w", table, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	log.Info(a.logTag+"samples stored", zap.String("table", table), zap.Int("cnt", len(samples)))
	return
}

func distinct(values []string) (ret []string) {
	seen := map[string]struct{}{}
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			ret = append(ret, v)
		}
	}
	return
}
