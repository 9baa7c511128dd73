package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the connection to the database being migrated. Besides the
// application tables it owns the bookkeeping tables: the current
// revision marker and the migration lease lock.
type Store struct {
	open   gorm.Dialector
	db     *gorm.DB
	logger logger.Interface
}

func New(dbType, dbConn string, debug bool) (*Store, error) {
	var open gorm.Dialector
	switch dbType {
	case "postgres":
		open = postgres.Open(dbConn)
	case "mysql":
		open = mysql.Open(dbConn)
	case "sqlite":
		open = sqlite.Open(dbConn)
	default:
		return nil, fmt.Errorf("storage: unknown db type: %s", dbType)
	}
	l := logger.Default.LogMode(logger.Silent)
	if debug {
		l = logger.Default.LogMode(logger.Warn)
	}
	return &Store{
		open:   open,
		logger: l,
	}, nil
}

// Resolve fills in the db type and connection string from the
// DATABASE_URL environment variable when the explicit flags are unset.
// The URL scheme selects the dialect.
func Resolve(dbType, dbConn string) (string, string, error) {
	if dbType != "" && dbConn != "" {
		return dbType, dbConn, nil
	}
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return "", "", errors.New("storage: db type and connection not set and DATABASE_URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("storage: invalid DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", raw, nil
	case "mysql":
		// gorm's mysql driver wants a DSN without the scheme.
		return "mysql", strings.TrimPrefix(raw, u.Scheme+"://"), nil
	case "sqlite", "file":
		return "sqlite", strings.TrimPrefix(strings.TrimPrefix(raw, u.Scheme+"://"), u.Scheme+":"), nil
	default:
		return "", "", fmt.Errorf("storage: unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

func (s *Store) Start(ctx context.Context) error {
	return s.start(ctx, 30*time.Second)
}

func (s *Store) start(ctx context.Context, timeout time.Duration) error {
	// Launch the database connection in a goroutine so we can timeout if it
	// takes too long. The channel is buffered and never closed: a late
	// open result after the timeout must not panic the sender.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	errC := make(chan error, 1)
	go func() {
		db, err := gorm.Open(s.open, &gorm.Config{
			Logger: s.logger,
		})
		if err != nil {
			errC <- fmt.Errorf("storage: failed to open database: %w", err)
			return
		}
		s.db = db
		errC <- nil
	}()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("storage: timed out opening database: %w", ctx.Err())
		}
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return err
		}
	}
	return nil
}

// Init creates the bookkeeping tables if they don't exist yet. The
// application tables are never touched here, only by revision scripts.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&schemaRevision{}, &migrationLock{}); err != nil {
		return fmt.Errorf("storage: failed to create bookkeeping tables: %w", err)
	}
	return nil
}

// DB exposes the underlying gorm handle for schema introspection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ApplyStep runs the statements of one revision step inside a single
// transaction.
func (s *Store) ApplyStep(ctx context.Context, stmts []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("storage: statement %q failed: %w", truncate(stmt), err)
			}
		}
		return nil
	})
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
