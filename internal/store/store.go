// Package store persists users, sessions and messages in a relational
// database through GORM. Referential integrity and cascading deletes are
// declared in the schema and enforced by the database.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/pkg/logger"
)

// Config holds database connection settings.
type Config struct {
	// URL is a postgres:// DSN or a SQLite file path.
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// Store owns the connection pool and hands out repositories.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	Users    *UserRepository
	Sessions *SessionRepository
	Messages *MessageRepository
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Users    *UserRepository
	Sessions *SessionRepository
	Messages *MessageRepository
}

// Open connects to the database described by cfg.
func Open(cfg Config, log *logger.Logger) (*Store, error) {
	dialector, embedded := dialectorFor(cfg.URL)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log, cfg.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configureConnectionPool(db, cfg, embedded); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	return New(db), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	s.bind()
	return s
}

// SetClock replaces the timestamp source used for new rows.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
	s.bind()
}

func (s *Store) bind() {
	repos := newRepositories(s.db, s.now)
	s.Users = repos.Users
	s.Sessions = repos.Sessions
	s.Messages = repos.Messages
}

func newRepositories(db *gorm.DB, now func() time.Time) *Repositories {
	return &Repositories{
		Users:    &UserRepository{db: db},
		Sessions: &SessionRepository{db: db, now: now},
		Messages: &MessageRepository{db: db, now: now},
	}
}

// Migrate creates or updates the users, sessions and messages tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.User{}, &model.Session{}, &model.Message{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Transaction runs fn inside one database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, including on panic.
func (s *Store) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx, s.now))
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(url string) (gorm.Dialector, bool) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url), false
	}
	return sqlite.Open(sqliteDSN(url)), true
}

// sqliteDSN turns foreign key enforcement on; SQLite leaves it off by default.
func sqliteDSN(path string) string {
	if strings.Contains(path, "foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func configureConnectionPool(db *gorm.DB, cfg Config, embedded bool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// SQLite serializes writers; one connection avoids "database is locked".
	if embedded {
		sqlDB.SetMaxOpenConns(1)
		return nil
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

func newGormLogger(log *logger.Logger, slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = time.Second
	}
	return gormlogger.New(
		log.Named("gorm").StdLog(zapcore.WarnLevel),
		gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}
