package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects PostgreSQL via lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded SQLite engine (modernc.org/sqlite).
	DriverSQLite = "sqlite"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Normalize validates the driver and fills defaults.
func (c *Config) Normalize() error {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	switch d {
	case "", "postgresql", DriverPostgres:
		d = DriverPostgres
	case "sqlite3", DriverSQLite:
		d = DriverSQLite
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", c.Driver)
	}
	c.Driver = d

	if d == DriverSQLite {
		if strings.TrimSpace(c.URL) == "" && strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("database.url or database.name is required for sqlite")
		}
		c.MaxConnections = 1
		return nil
	}

	if strings.TrimSpace(c.URL) == "" && strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("DATABASE_URL or database.host is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	return nil
}

// DSN returns the connection string passed to sql.Open.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.sqliteDSN()
	}
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the URL understood by golang-migrate database drivers.
func (c Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.sqliteDSN()
	}
	if u := strings.TrimSpace(c.URL); u != "" {
		if strings.HasPrefix(u, "postgresql://") {
			return "postgres://" + strings.TrimPrefix(u, "postgresql://")
		}
		return u
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Target describes the database for logs without credentials.
func (c Config) Target() string {
	if c.Driver == DriverSQLite {
		path, _, _ := strings.Cut(c.sqlitePath(), "?")
		return path
	}
	if u, err := url.Parse(strings.TrimSpace(c.URL)); err == nil && u.Host != "" {
		return u.Host + u.Path
	}
	return c.Host + ":" + c.Port + "/" + c.Name
}

func (c Config) sqlitePath() string {
	p := strings.TrimSpace(c.URL)
	if p == "" {
		p = strings.TrimSpace(c.Name)
	}
	p = strings.TrimPrefix(p, "sqlite://")
	return strings.TrimPrefix(p, "file:")
}

// sqliteDSN adds the pragmas the store relies on: a busy timeout for
// concurrent migrators and a sortable, parseable time format.
func (c Config) sqliteDSN() string {
	p := c.sqlitePath()
	var params []string
	if !strings.Contains(p, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(p, "_time_format") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return p
	}
	sep := "?"
	if strings.Contains(p, "?") {
		sep = "&"
	}
	return p + sep + strings.Join(params, "&")
}
