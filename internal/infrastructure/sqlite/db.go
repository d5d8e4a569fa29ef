// Package sqlite implements the contact store on SQLite.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB owns the SQLite connection and hands out repositories built on it.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and migrates it to the latest schema.
// The parent directory is created with 0700 permissions. When an existing
// database has migrations pending, a consistent copy is written to
// path+".bak" before they run.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	dsn := "file:" + path + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	var backupPath string
	if existed {
		backupPath = path + ".bak"
	}
	if err := runMigrations(conn, backupPath); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Info(log.CatDB, "Opened database", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// runMigrations applies the embedded migrations. If backupPath is set and
// migrations are pending, the database is backed up there first.
// The migrate instance is not closed: closing its database driver would close conn.
func runMigrations(conn *sql.DB, backupPath string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	defer func() { _ = src.Close() }()

	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if backupPath != "" {
		pending, err := migrationsPending(m, src)
		if err != nil {
			return err
		}
		if pending {
			if err := backupDatabase(conn, backupPath); err != nil {
				return fmt.Errorf("backing up database: %w", err)
			}
			log.Info(log.CatDB, "Backed up database before migrating", "backup", backupPath)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		log.Debug(log.CatDB, "Migrations applied", "version", version, "dirty", dirty)
	}
	return nil
}

// migrationsPending reports whether the database is behind the newest embedded migration.
func migrationsPending(m *migrate.Migrate, src source.Driver) (bool, error) {
	current, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return true, nil
	}

	latest, err := src.First()
	if err != nil {
		return false, fmt.Errorf("reading migrations: %w", err)
	}
	for {
		next, err := src.Next(latest)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("reading migrations: %w", err)
		}
		latest = next
	}
	return current < latest, nil
}

// backupDatabase writes a transactionally consistent copy of the database,
// including commits still held in the WAL, to dst.
func backupDatabase(conn *sql.DB, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	_, err := conn.Exec(`VACUUM INTO ?`, dst)
	return err
}

// ContactStore returns the contact store backed by this database.
func (db *DB) ContactStore() domain.ContactStore {
	return newContactStore(db.conn)
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
