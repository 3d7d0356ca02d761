package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository persists device records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List returns every device ordered by creation time.
	List(ctx context.Context) ([]Device, error)

	// Create returns ErrDeviceExists if the ID is taken.
	Create(ctx context.Context, device *Device) error

	// Update overwrites every mutable column.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
		SELECT id, name, address, status, auto_registered,
			servo1_angle, servo2_angle, brightness, color_r, color_g, color_b,
			last_heartbeat, created_at, updated_at
		FROM devices`

// GetByID retrieves a device by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices, oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device. Zero timestamps are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, address, status, auto_registered,
			servo1_angle, servo2_angle, brightness, color_r, color_g, color_b,
			last_heartbeat, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.Name,
		device.Address,
		string(device.Status),
		boolToInt(device.AutoRegistered),
		nullableInt(device.Servo1Angle),
		nullableInt(device.Servo2Angle),
		device.Brightness,
		device.Color.R,
		device.Color.G,
		device.Color.B,
		nullableTime(device.LastHeartbeat),
		formatTime(device.CreatedAt),
		formatTime(device.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, address = ?, status = ?,
			servo1_angle = ?, servo2_angle = ?,
			brightness = ?, color_r = ?, color_g = ?, color_b = ?,
			last_heartbeat = ?, updated_at = ?
		WHERE id = ?`,
		device.Name,
		device.Address,
		string(device.Status),
		nullableInt(device.Servo1Angle),
		nullableInt(device.Servo2Angle),
		device.Brightness,
		device.Color.R,
		device.Color.G,
		device.Color.B,
		nullableTime(device.LastHeartbeat),
		formatTime(device.UpdatedAt),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return checkAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var status string
	var autoRegistered int
	var servo1, servo2 sql.NullInt64
	var lastHeartbeat sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Address,
		&status,
		&autoRegistered,
		&servo1,
		&servo2,
		&d.Brightness,
		&d.Color.R,
		&d.Color.G,
		&d.Color.B,
		&lastHeartbeat,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	d.AutoRegistered = autoRegistered != 0
	if servo1.Valid {
		d.Servo1Angle = IntPtr(int(servo1.Int64))
	}
	if servo2.Valid {
		d.Servo2Angle = IntPtr(int(servo2.Int64))
	}
	if lastHeartbeat.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastHeartbeat.String); err == nil {
			d.LastHeartbeat = &t
		}
	}

	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableInt maps a nil pointer to SQL NULL.
func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// nullableTime maps a nil pointer to SQL NULL, otherwise RFC3339Nano.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
