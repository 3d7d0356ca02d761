package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger is the logging interface used across the hub's components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the device directory: a Repository fronted by an in-memory
// cache. Every mutation holds the registry lock across the
// read-modify-write and the repository call, so concurrent updates to the
// same record are applied one after another (last write wins).
//
// Returned records are deep copies. All methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	mu     sync.RWMutex
	cache  map[string]*Device
	now    func() time.Time
	logger Logger
}

// NewRegistry creates a directory over repo. Call RefreshCache before use
// if repo may already hold records.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		now:    func() time.Time { return time.Now().UTC() },
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock replaces the time source used for heartbeat timestamps.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// RefreshCache reloads every record from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Get returns the device or ErrDeviceNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.DeepCopy(), nil
}

// List returns every device, oldest first.
func (r *Registry) List(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if !devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].CreatedAt.Before(devices[j].CreatedAt)
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Create validates and stores a new device. An empty ID is replaced with
// a generated UUID; zero LED fields get the defaults and an empty status
// becomes disconnected. On success d carries the stored values.
func (r *Registry) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Address == "" {
		d.Address = UnknownAddress
	}
	if d.Status == "" {
		d.Status = StatusDisconnected
	}
	if d.Brightness == 0 && d.Color == (Color{}) {
		d.Brightness = DefaultBrightness
		d.Color = DefaultColor
	}

	if err := ValidateDevice(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}
	r.cache[d.ID] = d.DeepCopy()

	r.logger.Info("device created", "device_id", d.ID, "name", d.Name, "address", d.Address)
	return nil
}

// Rename changes a device's display name.
func (r *Registry) Rename(ctx context.Context, id, name string) (*Device, error) {
	return r.Update(ctx, id, &name, nil)
}

// SetAddress changes a device's fallback address.
func (r *Registry) SetAddress(ctx context.Context, id, address string) (*Device, error) {
	return r.Update(ctx, id, nil, &address)
}

// Update changes the name and/or address of a device. Nil leaves a field
// unchanged. Both values are validated before anything is stored, so a
// rejected update changes nothing.
func (r *Registry) Update(ctx context.Context, id string, name, address *string) (*Device, error) {
	if name != nil {
		if err := ValidateName(*name); err != nil {
			return nil, err
		}
	}
	if address != nil {
		if err := ValidateAddress(*address); err != nil {
			return nil, err
		}
	}
	return r.mutate(ctx, id, func(d *Device) {
		if name != nil {
			d.Name = strings.TrimSpace(*name)
		}
		if address != nil {
			d.Address = *address
		}
	})
}

// Delete removes a device. Sessions referring to it are left alone.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	delete(r.cache, id)

	r.logger.Info("device deleted", "device_id", id)
	return nil
}

// AutoRegister returns the record for id, creating it on first contact.
//
// A new record gets AutoName(id) and the given address. For an existing
// record the address is revised when it differs, unless the new value is
// empty or UnknownAddress. created reports whether a record was inserted.
func (r *Registry) AutoRegister(ctx context.Context, id, address string) (d *Device, created bool, err error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}
	if address == "" || ValidateAddress(address) != nil {
		address = UnknownAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(ctx, id)
	switch {
	case err == nil:
		if address == UnknownAddress || existing.Address == address {
			return existing.DeepCopy(), false, nil
		}
		updated := existing.DeepCopy()
		updated.Address = address
		if err := r.store(ctx, updated); err != nil {
			return nil, false, err
		}
		r.logger.Info("device address revised", "device_id", id, "address", address)
		return updated.DeepCopy(), false, nil
	case !errors.Is(err, ErrDeviceNotFound):
		return nil, false, err
	}

	d = &Device{
		ID:             id,
		Name:           AutoName(id),
		Address:        address,
		Status:         StatusDisconnected,
		AutoRegistered: true,
		Brightness:     DefaultBrightness,
		Color:          DefaultColor,
	}
	if err := r.repo.Create(ctx, d); err != nil {
		return nil, false, err
	}
	r.cache[id] = d.DeepCopy()

	r.logger.Info("device auto-registered", "device_id", id, "name", d.Name, "address", address)
	return d, true, nil
}

// SetStatus records a connectivity transition. Connected also refreshes
// LastHeartbeat.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return invalid(ErrInvalidState, "unknown status %q", status)
	}
	_, err := r.mutate(ctx, id, func(d *Device) {
		d.Status = status
		if status == StatusConnected {
			now := r.now()
			d.LastHeartbeat = &now
		}
	})
	return err
}

// SetCachedAngles records delivered servo positions. Nil leaves the
// corresponding angle unchanged. LastHeartbeat is refreshed.
func (r *Registry) SetCachedAngles(ctx context.Context, id string, servo1, servo2 *int) error {
	for _, a := range []*int{servo1, servo2} {
		if a != nil {
			if err := ValidateAngle(*a); err != nil {
				return err
			}
		}
	}
	_, err := r.mutate(ctx, id, func(d *Device) {
		if servo1 != nil {
			d.Servo1Angle = copyInt(servo1)
		}
		if servo2 != nil {
			d.Servo2Angle = copyInt(servo2)
		}
		now := r.now()
		d.LastHeartbeat = &now
	})
	return err
}

// SetCachedLed records a delivered LED state. Nil leaves the
// corresponding field unchanged. LastHeartbeat is refreshed.
func (r *Registry) SetCachedLed(ctx context.Context, id string, brightness *int, color *Color) error {
	if brightness != nil {
		if err := ValidateChannel("brightness", *brightness); err != nil {
			return err
		}
	}
	if color != nil {
		if err := ValidateColor(*color); err != nil {
			return err
		}
	}
	_, err := r.mutate(ctx, id, func(d *Device) {
		if brightness != nil {
			d.Brightness = *brightness
		}
		if color != nil {
			d.Color = *color
		}
		now := r.now()
		d.LastHeartbeat = &now
	})
	return err
}

// Touch refreshes LastHeartbeat without changing any other field.
func (r *Registry) Touch(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, id, func(d *Device) {
		now := r.now()
		d.LastHeartbeat = &now
	})
	return err
}

// Stats summarises the directory for health and metrics endpoints.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	Auto     int            `json:"auto_registered"`
}

// GetStats returns current directory statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:    len(r.cache),
		ByStatus: make(map[Status]int),
	}
	for _, d := range r.cache {
		stats.ByStatus[d.Status]++
		if d.AutoRegistered {
			stats.Auto++
		}
	}
	return stats
}

// mutate applies fn to a copy of the record and stores it.
func (r *Registry) mutate(ctx context.Context, id string, fn func(*Device)) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := existing.DeepCopy()
	fn(updated)
	if err := r.store(ctx, updated); err != nil {
		return nil, err
	}
	return updated.DeepCopy(), nil
}

// load returns the cached record, reading through to the repository on a
// miss. Caller holds r.mu for writing.
func (r *Registry) load(ctx context.Context, id string) (*Device, error) {
	if d, ok := r.cache[id]; ok {
		return d, nil
	}
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache[id] = d
	return d, nil
}

// store persists d and replaces the cache entry. Caller holds r.mu for writing.
func (r *Registry) store(ctx context.Context, d *Device) error {
	if err := r.repo.Update(ctx, d); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			delete(r.cache, d.ID)
		}
		return err
	}
	r.cache[d.ID] = d.DeepCopy()
	return nil
}
