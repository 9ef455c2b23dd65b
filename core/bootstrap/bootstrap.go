// Package bootstrap brings up the shared infrastructure in a fixed order:
// logger, schema migrations, then the database pool.
package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/earlybot/core/config"
	coredatabase "github.com/m3rciful/earlybot/core/database"
	"github.com/m3rciful/earlybot/core/logger"
)

// Options configure Run. The function fields default to the core
// implementations and exist for tests.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
}

// Result is the infrastructure handed to service providers.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, migrates when Migrations is set, and opens
// the pool. Migrations use their own connection so the single sqlite
// connection is never shared with the migrator.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if opts.Migrations != nil {
		if err := opts.Migrate(opts.Database, opts.Migrations); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations: %w", err)
		}
	}
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	return &Result{DB: db}, nil
}
