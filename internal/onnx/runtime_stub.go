//go:build !cgo

// Stub runtime for builds without cgo. The package compiles everywhere;
// real inference requires the cgo build with the ONNX Runtime library.

package onnx

import (
	"log"
	"os"
)

func newRuntimeImpl(cfg RuntimeConfig) (runtimeResult, error) {
	if os.Getenv("SIFT_MOCK_ML") == "true" {
		log.Printf("[INFO] mock inference enabled (SIFT_MOCK_ML=true)")
		return runtimeResult{
			impl:         &mockRuntime{},
			actualDevice: DeviceMock,
		}, nil
	}

	if cfg.Device == DeviceCUDA || cfg.Device == DeviceTensorRT {
		log.Printf("[WARN] device %q requested but this build has no ONNX Runtime support, "+
			"inference will fail until a cgo build with the runtime library is used", cfg.Device)
	} else {
		log.Printf("[WARN] this build has no ONNX Runtime support, " +
			"inference will fail until a cgo build with the runtime library is used")
	}

	return runtimeResult{
		impl:         &stubRuntime{},
		actualDevice: DeviceStub,
	}, nil
}

func isRuntimeAvailable() bool {
	return false
}
