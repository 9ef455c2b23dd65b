package database

import (
	"strings"
	"testing"
)

func TestNormalizeDriver(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		driver  string
		maxConn int
		wantErr bool
	}{
		{name: "postgres default", cfg: Config{URL: "postgres://u:p@db/x"}, driver: DriverPostgres, maxConn: 10},
		{name: "postgresql alias", cfg: Config{Driver: "PostgreSQL", Host: "db"}, driver: DriverPostgres, maxConn: 10},
		{name: "sqlite3 alias", cfg: Config{Driver: "sqlite3", Name: "bot.db", MaxConnections: 8}, driver: DriverSQLite, maxConn: 1},
		{name: "sqlite without path", cfg: Config{Driver: "sqlite"}, wantErr: true},
		{name: "postgres without host", cfg: Config{Driver: "postgres"}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "mysql", URL: "x"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := cfg.Normalize()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if cfg.Driver != tc.driver || cfg.MaxConnections != tc.maxConn {
				t.Fatalf("got driver=%q max=%d", cfg.Driver, cfg.MaxConnections)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "bot", Password: "p@ss", Name: "early"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	want := "user=bot password=p@ss host=db port=5432 dbname=early sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	wantURL := "postgres://bot:p%40ss@db:5432/early?sslmode=disable"
	if got := cfg.MigrateURL(); got != wantURL {
		t.Fatalf("MigrateURL = %q, want %q", got, wantURL)
	}
	if got := cfg.Target(); got != "db:5432/early" {
		t.Fatalf("Target = %q", got)
	}
}

func TestPostgresURLScheme(t *testing.T) {
	cfg := Config{URL: "postgresql://u:secret@db:5432/early?sslmode=require"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if got := cfg.DSN(); got != cfg.URL {
		t.Fatalf("DSN = %q", got)
	}
	if got := cfg.MigrateURL(); got != "postgres://u:secret@db:5432/early?sslmode=require" {
		t.Fatalf("MigrateURL = %q", got)
	}
	if got := cfg.Target(); strings.Contains(got, "secret") || got != "db:5432/early" {
		t.Fatalf("Target = %q", got)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cfg := Config{Driver: "sqlite", URL: "sqlite:///var/lib/bot.db"}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	want := "/var/lib/bot.db?_pragma=busy_timeout(5000)&_time_format=sqlite"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := cfg.MigrateURL(); got != "sqlite://"+want {
		t.Fatalf("MigrateURL = %q", got)
	}
	if got := cfg.Target(); got != "/var/lib/bot.db" {
		t.Fatalf("Target = %q", got)
	}

	custom := Config{Driver: "sqlite", Name: "bot.db?_pragma=busy_timeout(100)"}
	if err := custom.Normalize(); err != nil {
		t.Fatal(err)
	}
	if got := custom.DSN(); got != "bot.db?_pragma=busy_timeout(100)&_time_format=sqlite" {
		t.Fatalf("DSN = %q", got)
	}
}
