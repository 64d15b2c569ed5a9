package backend

import (
	"github.com/gogpu/gpucontext"
)

// Backend name constants.
const (
	// BackendWGPU is the name of the wgpu HAL device.
	BackendWGPU = "wgpu"
	// BackendSoftware is the name of the CPU device.
	BackendSoftware = "software"
)

// Factory creates a new Device. It returns nil when the device cannot be
// created on this host.
type Factory func() Device

// devices holds registered backends.
// Priority order for selection (first available wins).
var devices = gpucontext.NewRegistry[Device](
	gpucontext.WithPriority(BackendWGPU, BackendSoftware),
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	devices.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	devices.Unregister(name)
}

// Available returns a list of registered backend names.
func Available() []string {
	return devices.Available()
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return devices.Has(name)
}

// Get returns a new device by name.
// Returns nil if the backend is not registered or cannot be created.
func Get(name string) Device {
	return devices.Get(name)
}

// Default returns a device from the best available backend.
// Priority order: wgpu > software. Backends whose factory returns nil
// are skipped. Returns nil if no backend can be created.
func Default() Device {
	for _, name := range []string{BackendWGPU, BackendSoftware} {
		if !devices.Has(name) {
			continue
		}
		if d := devices.Get(name); d != nil {
			return d
		}
	}
	for _, name := range devices.Available() {
		if d := devices.Get(name); d != nil {
			return d
		}
	}
	return nil
}

// Open returns the named device, or the default one when name is empty.
func Open(name string) (Device, error) {
	var d Device
	if name == "" {
		d = Default()
	} else {
		d = Get(name)
	}
	if d == nil {
		return nil, ErrBackendNotAvailable
	}
	return d, nil
}
