package database

import (
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"
)

func TestUpFilesAndBetween(t *testing.T) {
	src := fstest.MapFS{
		"sqlite/0001_init.up.sql":       {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"sqlite/0001_init.down.sql":     {Data: []byte("DROP TABLE a;")},
		"sqlite/0002_index.up.sql":      {Data: []byte("CREATE INDEX a_id ON a (id);")},
		"postgres/0001_init.up.sql":     {Data: []byte("CREATE TABLE a (id BIGINT);")},
		"sqlite/notes/0003_skip.up.sql": {Data: []byte("")},
	}
	files := upFiles(src, "sqlite")
	want := []string{"0001_init.up.sql", "0002_index.up.sql"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("upFiles = %v", files)
	}
	if got := between(files, 1, 2); !reflect.DeepEqual(got, want[1:]) {
		t.Fatalf("between(1,2) = %v", got)
	}
	if got := between(files, 2, 2); got != nil {
		t.Fatalf("between(2,2) = %v", got)
	}
	if got := upFiles(src, "mysql"); got != nil {
		t.Fatalf("missing dir = %v", got)
	}
}

func TestRunMigrationsSQLite(t *testing.T) {
	src := fstest.MapFS{
		"sqlite/0001_init.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE items;")},
	}
	cfg := Config{Driver: DriverSQLite, URL: filepath.Join(t.TempDir(), "m.db")}
	for i := 0; i < 2; i++ {
		if err := RunMigrations(cfg, src); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec("INSERT INTO items (id) VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	if err := RunMigrations(cfg, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}
