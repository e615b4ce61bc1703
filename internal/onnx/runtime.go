// Package onnx provides ONNX Runtime integration for model inference.
package onnx

import (
	"runtime"
	"sync"
)

// Device represents the execution device.
type Device string

const (
	DeviceCPU      Device = "cpu"
	DeviceCUDA     Device = "cuda"
	DeviceTensorRT Device = "tensorrt"
	DeviceStub     Device = "stub" // ONNX Runtime not available
	DeviceMock     Device = "mock" // deterministic mock backend
)

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	Device         Device
	CUDADeviceID   int
	IntraOpThreads int
	InterOpThreads int
	LibraryPath    string
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	threads := runtime.NumCPU()
	if threads > 8 {
		threads = 8
	}

	return RuntimeConfig{
		Device:         DeviceCPU,
		CUDADeviceID:   0,
		IntraOpThreads: threads,
		InterOpThreads: 1,
	}
}

// Runtime manages the ONNX Runtime environment and loaded sessions.
type Runtime struct {
	mu           sync.Mutex
	device       Device // requested device
	actualDevice Device // device in use after any fallback
	sessions     map[string]*Session
	impl         runtimeImpl
}

// runtimeImpl is the platform-specific runtime implementation.
type runtimeImpl interface {
	createSession(name, modelPath string, device Device, opts SessionOptions) (*Session, error)
	close() error
}

// runtimeResult holds the outcome of runtime initialization.
type runtimeResult struct {
	impl         runtimeImpl
	actualDevice Device
}

// NewRuntime initializes the ONNX Runtime environment.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	result, err := newRuntimeImpl(cfg)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		device:       cfg.Device,
		actualDevice: result.actualDevice,
		sessions:     make(map[string]*Session),
		impl:         result.impl,
	}, nil
}

// LoadSession loads an ONNX model and returns a session. Loading the
// same name twice returns the existing session.
func (r *Runtime) LoadSession(name, modelPath string, opts ...SessionOption) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[name]; ok {
		return session, nil
	}

	sessionOpts := defaultSessionOptions()
	for _, opt := range opts {
		opt(&sessionOpts)
	}

	session, err := r.impl.createSession(name, modelPath, r.device, sessionOpts)
	if err != nil {
		return nil, err
	}

	r.sessions[name] = session
	return session, nil
}

// GetSession returns a loaded session by name.
func (r *Runtime) GetSession(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[name]
	return session, ok
}

// UnloadSession closes and removes a session.
func (r *Runtime) UnloadSession(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[name]
	if !ok {
		return nil
	}

	if err := session.Close(); err != nil {
		return err
	}

	delete(r.sessions, name)
	return nil
}

// Close closes the runtime and all sessions.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for name, session := range r.sessions {
		if err := session.Close(); err != nil {
			lastErr = err
		}
		delete(r.sessions, name)
	}

	if r.impl != nil {
		if err := r.impl.close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Device returns the requested device.
func (r *Runtime) Device() Device {
	return r.device
}

// ActualDevice returns the device in use, which differs from the
// requested device when a fallback occurred.
func (r *Runtime) ActualDevice() Device {
	return r.actualDevice
}

// DeviceFallback reports whether the actual device differs from the
// requested one.
func (r *Runtime) DeviceFallback() bool {
	return r.device != r.actualDevice
}

// IsGPU reports whether GPU acceleration is actually in use.
func (r *Runtime) IsGPU() bool {
	return r.actualDevice == DeviceCUDA || r.actualDevice == DeviceTensorRT
}

// IsAvailable reports whether ONNX Runtime is available on this platform.
func IsAvailable() bool {
	return isRuntimeAvailable()
}
