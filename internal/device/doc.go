// Package device is the hub's device directory.
//
// A Device record holds a smart light's identity, display name, fallback
// network address, connectivity status and the last LED and servo state
// that was successfully commanded. Records are created through the API or
// by auto-registration on first contact over the device channel.
//
// Registry fronts a Repository (SQLiteRepository in production) with an
// in-memory cache guarded by a single RWMutex:
//
//	repo := device.NewSQLiteRepository(db.DB)
//	dir := device.NewRegistry(repo)
//	dir.SetLogger(log)
//	if err := dir.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	d, created, err := dir.AutoRegister(ctx, "esp32_kitchen", "192.168.1.40")
//	err = dir.SetCachedAngles(ctx, d.ID, device.IntPtr(90), nil)
//
// The directory knows nothing about live connections. Status is written
// by the protocol handler and the status check; it is a last-known value,
// not proof of reachability.
package device
