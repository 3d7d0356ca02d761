package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/infrastructure/database"
	"github.com/nerrad567/lumenhub-core/migrations"
)

// setupTestDB opens an in-memory database with the production schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := database.NewMigrator(db, migrations.FS, ".").Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func testDevice(id string) *Device {
	return &Device{
		ID:         id,
		Name:       "Desk Lamp",
		Address:    "192.168.1.50",
		Status:     StatusDisconnected,
		Brightness: DefaultBrightness,
		Color:      DefaultColor,
	}
}

// ─── Create / Get ───────────────────────────────────────────────

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	d := testDevice("lamp-1")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}

	got, err := repo.GetByID(ctx, "lamp-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Desk Lamp" || got.Address != "192.168.1.50" {
		t.Errorf("GetByID() = %+v, want name/address preserved", got)
	}
	if got.Status != StatusDisconnected {
		t.Errorf("Status = %q, want %q", got.Status, StatusDisconnected)
	}
	if got.Servo1Angle != nil || got.LastHeartbeat != nil {
		t.Error("optional fields should be nil")
	}
	if got.Color != DefaultColor || got.Brightness != DefaultBrightness {
		t.Errorf("LED = %d %+v, want defaults", got.Brightness, got.Color)
	}
	if !got.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, d.CreatedAt)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dup")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testDevice("dup")); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

// ─── Update / Delete ────────────────────────────────────────────

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	d := testDevice("lamp-2")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hb := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	d.Status = StatusConnected
	d.Servo1Angle = IntPtr(90)
	d.Servo2Angle = IntPtr(0)
	d.Brightness = 10
	d.Color = Color{R: 1, G: 2, B: 3}
	d.LastHeartbeat = &hb

	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "lamp-2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusConnected {
		t.Errorf("Status = %q, want connected", got.Status)
	}
	if got.Servo1Angle == nil || *got.Servo1Angle != 90 {
		t.Errorf("Servo1Angle = %v, want 90", got.Servo1Angle)
	}
	if got.Servo2Angle == nil || *got.Servo2Angle != 0 {
		t.Errorf("Servo2Angle = %v, want 0", got.Servo2Angle)
	}
	if got.Color != (Color{R: 1, G: 2, B: 3}) || got.Brightness != 10 {
		t.Errorf("LED = %d %+v, want 10 {1 2 3}", got.Brightness, got.Color)
	}
	if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(hb) {
		t.Errorf("LastHeartbeat = %v, want %v", got.LastHeartbeat, hb)
	}
}

func TestSQLiteRepository_UpdateMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	if err := repo.Update(context.Background(), testDevice("ghost")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("gone")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "gone"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		d := testDevice(id)
		d.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("List() returned %d devices, want 3", len(devices))
	}
	for i, want := range []string{"c", "a", "b"} {
		if devices[i].ID != want {
			t.Errorf("devices[%d].ID = %q, want %q", i, devices[i].ID, want)
		}
	}
}

func TestSQLiteRepository_SchemaRejectsOutOfRange(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	d := testDevice("bad")
	d.Servo1Angle = IntPtr(181)
	if err := repo.Create(context.Background(), d); err == nil {
		t.Error("Create() with angle 181 succeeded, want CHECK constraint error")
	}
}
