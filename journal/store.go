package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/arloliu/go-cat/logger"
)

// Config holds the store configuration.
type Config struct {
	// Path is the SQLite database file. ":memory:" keeps the journal in memory.
	Path string
}

// Entry is the database row of one record. Params and Result are CBOR encoded.
type Entry struct {
	ID       uint      `gorm:"primaryKey"`
	Time     time.Time `gorm:"index;not null"`
	Device   string    `gorm:"size:64;index;not null"`
	Command  string    `gorm:"size:64;index;not null"`
	Params   []byte
	Result   []byte
	Error    string
	Duration int64
}

// TableName implements gorm's tabler.
func (Entry) TableName() string {
	return "device_log"
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Device  string
	Command string
	Since   time.Time
	Until   time.Time
	// Failed selects failed commands only.
	Failed bool
	// Limit caps the number of records returned; 0 means no limit.
	Limit int
}

// Store keeps records in an SQLite table.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open opens or creates the store database and migrates its schema.
// l defaults to the package logger.
func Open(cfg Config, l logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal: empty database path")
	}

	if l == nil {
		l = logger.GetLogger()
	}
	l = l.With("component", "journal", "path", cfg.Path)

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormWriter{l}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// every connection to ":memory:" is a separate database
	if cfg.Path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := configureSQLite(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("journal: configure %s: %w", cfg.Path, err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("journal: migrate %s: %w", cfg.Path, err)
	}

	l.Debug("journal opened")

	return &Store{db: db, logger: l}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

// Write appends one record. It implements Sink.
func (s *Store) Write(ctx context.Context, rec Record) error {
	entry, err := toEntry(rec)
	if err != nil {
		return err
	}

	return s.wrap(s.db.WithContext(ctx).Create(entry).Error)
}

// WriteBatch appends records in one transaction.
func (s *Store) WriteBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	entries := make([]*Entry, 0, len(recs))
	for _, rec := range recs {
		entry, err := toEntry(rec)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	const batchSize = 500

	return s.wrap(s.db.WithContext(ctx).CreateInBatches(entries, batchSize).Error)
}

// Query returns the records matching f, oldest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Record, error) {
	var entries []Entry

	q := s.scope(s.db.WithContext(ctx), f).Order("time ASC, id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	if err := q.Find(&entries).Error; err != nil {
		return nil, s.wrap(err)
	}

	out := make([]Record, 0, len(entries))
	for i := range entries {
		rec, err := entries[i].record()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// Count returns the number of records matching f. f.Limit is ignored.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	err := s.scope(s.db.WithContext(ctx).Model(&Entry{}), f).Count(&n).Error

	return n, s.wrap(err)
}

// Prune deletes records older than before and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("time < ?", before).Delete(&Entry{})
	if res.Error != nil {
		return 0, s.wrap(res.Error)
	}

	if res.RowsAffected > 0 {
		s.logger.Debug("journal pruned", "count", res.RowsAffected, "before", before)
	}

	return res.RowsAffected, nil
}

// Health pings the database.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return s.wrap(sqlDB.Ping())
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (s *Store) scope(q *gorm.DB, f Filter) *gorm.DB {
	if f.Device != "" {
		q = q.Where("device = ?", f.Device)
	}
	if f.Command != "" {
		q = q.Where("command = ?", f.Command)
	}
	if !f.Since.IsZero() {
		q = q.Where("time >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("time < ?", f.Until)
	}
	if f.Failed {
		q = q.Where("error <> ''")
	}

	return q
}

func (s *Store) wrap(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("journal: %w", err)
}

func toEntry(rec Record) (*Entry, error) {
	params, err := marshalValue(rec.Params)
	if err != nil {
		return nil, fmt.Errorf("journal: encode params of %s: %w", rec.Command, err)
	}

	result, err := marshalValue(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("journal: encode result of %s: %w", rec.Command, err)
	}

	return &Entry{
		Time:     rec.Time,
		Device:   rec.Device,
		Command:  rec.Command,
		Params:   params,
		Result:   result,
		Error:    rec.Error,
		Duration: int64(rec.Duration),
	}, nil
}

func (e *Entry) record() (Record, error) {
	rec := Record{
		Time:     e.Time,
		Device:   e.Device,
		Command:  e.Command,
		Error:    e.Error,
		Duration: time.Duration(e.Duration),
	}

	if err := unmarshalValue(e.Params, &rec.Params); err != nil {
		return rec, fmt.Errorf("journal: decode params of entry %d: %w", e.ID, err)
	}

	if err := unmarshalValue(e.Result, &rec.Result); err != nil {
		return rec, fmt.Errorf("journal: decode result of entry %d: %w", e.ID, err)
	}

	return rec, nil
}

// gormWriter routes gorm's warnings through the package logger.
type gormWriter struct {
	l logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.l.Warn(fmt.Sprintf(format, args...))
}
