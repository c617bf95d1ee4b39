package compute

import (
	"runtime"
	"time"
)

var (
	defaultHostWorkers    = runtime.NumCPU()
	defaultHostQueueDepth = 256
)

type hostDeviceConfig struct {
	workers    int
	queueDepth int
}

// HostDeviceOption is a functional option for configuring a host device.
// Use the With* functions to create options that are applied directly to the device instance.
type HostDeviceOption func(*hostDeviceConfig, *hostDevice)

// WithHostWorkers sets the dispatch pool size. Values <= 0 fall back to the
// number of CPUs.
//
// Parameters:
//   - n: worker count
//
// Returns:
//   - HostDeviceOption: option function to apply
func WithHostWorkers(n int) HostDeviceOption {
	return func(cfg *hostDeviceConfig, _ *hostDevice) {
		if n <= 0 {
			n = defaultHostWorkers
		}
		cfg.workers = n
	}
}

// WithHostQueueDepth sets the dispatch pool queue depth. Values <= 0 fall
// back to the default depth.
//
// Parameters:
//   - n: queue depth
//
// Returns:
//   - HostDeviceOption: option function to apply
func WithHostQueueDepth(n int) HostDeviceOption {
	return func(cfg *hostDeviceConfig, _ *hostDevice) {
		if n <= 0 {
			n = defaultHostQueueDepth
		}
		cfg.queueDepth = n
	}
}

// WithHostSyncTimeout sets the per-attempt wait timeout and retry budget for
// blocking dispatches.
//
// Parameters:
//   - timeout: per-attempt wait duration (<= 0 keeps the default)
//   - retries: attempts before surfacing a SyncTimeoutError (<= 0 keeps the default)
//
// Returns:
//   - HostDeviceOption: option function to apply
func WithHostSyncTimeout(timeout time.Duration, retries int) HostDeviceOption {
	return func(_ *hostDeviceConfig, d *hostDevice) {
		if timeout > 0 {
			d.syncTimeout = timeout
		}
		if retries > 0 {
			d.syncRetries = retries
		}
	}
}
