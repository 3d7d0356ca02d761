package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/20260301_090000_widgets.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);"),
		},
		"sql/20260301_090000_widgets.down.sql": &fstest.MapFile{
			Data: []byte("DROP TABLE widgets;"),
		},
		"sql/20260302_100000_gadgets.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY);"),
		},
		"sql/README.md": &fstest.MapFile{Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, testMigrations(), "sql")
	ctx := context.Background()

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	delete(fsys, "sql/20260302_100000_gadgets.up.sql")
	m := NewMigrator(db, fsys, "sql")

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := m.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets still exists after MigrateDown()")
	}

	_, pending, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}

	// Nothing left to roll back.
	if err := m.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := NewMigrator(db, testMigrations(), "sql")

	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// gadgets has no down file.
	if err := m.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() expected error for missing down SQL, got nil")
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20260301_090000_ok.up.sql":     &fstest.MapFile{Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"20260301_100000_broken.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE broken (;")},
	}
	m := NewMigrator(db, fsys, "")

	if err := m.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for broken SQL, got nil")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("earlier migration was not kept")
	}

	applied, _, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)

	if err := NewMigrator(db, nil, "").Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with nil FS error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_090000_devices.up.sql", "20260301_090000", true, true},
		{"20260301_090000_devices.down.sql", "20260301_090000", false, true},
		{"20260301_090000_multi_word_name.up.sql", "20260301_090000", true, true},
		{"20260301.up.sql", "", false, false},
		{"20260301_090000_devices.sql", "", false, false},
		{"notes.txt", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_090000_devices.up.sql", "devices"},
		{"20260301_090000_multi_word_name.down.sql", "multi_word_name"},
		{"short.up.sql", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
