package compute

import "time"

type wgpuDeviceConfig struct {
	forceFallbackAdapter bool
}

// WgpuDeviceOption is a functional option for configuring a GPU device.
// Use the With* functions to create options that are applied directly to the device instance.
type WgpuDeviceOption func(*wgpuDeviceConfig, *wgpuDevice)

// WithForceFallbackAdapter forces the software fallback adapter, useful for
// CI machines with no GPU.
//
// Parameters:
//   - enabled: if true, requests the fallback adapter
//
// Returns:
//   - WgpuDeviceOption: option function to apply
func WithForceFallbackAdapter(enabled bool) WgpuDeviceOption {
	return func(cfg *wgpuDeviceConfig, _ *wgpuDevice) {
		cfg.forceFallbackAdapter = enabled
	}
}

// WithWgpuSyncTimeout sets the per-attempt wait timeout and retry budget for
// blocking submissions and readbacks.
//
// Parameters:
//   - timeout: per-attempt wait duration (<= 0 keeps the default)
//   - retries: attempts before surfacing a SyncTimeoutError (<= 0 keeps the default)
//
// Returns:
//   - WgpuDeviceOption: option function to apply
func WithWgpuSyncTimeout(timeout time.Duration, retries int) WgpuDeviceOption {
	return func(_ *wgpuDeviceConfig, d *wgpuDevice) {
		if timeout > 0 {
			d.syncTimeout = timeout
		}
		if retries > 0 {
			d.syncRetries = retries
		}
	}
}
