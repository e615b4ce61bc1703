//go:build cgo

package onnx

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// cgoRuntime drives the real ONNX Runtime through its C bindings.
type cgoRuntime struct {
	cfg RuntimeConfig
}

var _ runtimeImpl = (*cgoRuntime)(nil)

func newRuntimeImpl(cfg RuntimeConfig) (runtimeResult, error) {
	if os.Getenv("SIFT_MOCK_ML") == "true" {
		log.Printf("[INFO] mock inference enabled (SIFT_MOCK_ML=true)")
		return runtimeResult{
			impl:         &mockRuntime{},
			actualDevice: DeviceMock,
		}, nil
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = findLibraryPath()
	}

	if libPath == "" {
		log.Printf("[WARN] ONNX Runtime shared library not found, falling back to stub")
		return runtimeResult{
			impl:         &stubRuntime{},
			actualDevice: DeviceStub,
		}, nil
	}

	log.Printf("[INFO] initializing ONNX Runtime with library: %s", libPath)

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return runtimeResult{}, errors.ModelLoadError("failed to initialize ONNX Runtime", err)
	}

	return runtimeResult{
		impl:         &cgoRuntime{cfg: cfg},
		actualDevice: cfg.Device,
	}, nil
}

func (c *cgoRuntime) createSession(name, modelPath string, device Device, opts SessionOptions) (*Session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.ModelLoadError("failed to create session options", err)
	}
	defer options.Destroy()

	intraOp := opts.IntraOpThreads
	if intraOp == 0 {
		intraOp = c.cfg.IntraOpThreads
	}
	interOp := opts.InterOpThreads
	if interOp == 0 {
		interOp = c.cfg.InterOpThreads
	}
	if intraOp > 0 {
		if err := options.SetIntraOpNumThreads(intraOp); err != nil {
			log.Printf("[WARN] failed to set intra-op threads for %s: %v", name, err)
		}
	}
	if interOp > 0 {
		if err := options.SetInterOpNumThreads(interOp); err != nil {
			log.Printf("[WARN] failed to set inter-op threads for %s: %v", name, err)
		}
	}

	switch device {
	case DeviceCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			cudaOptions.Update(map[string]string{"device_id": fmt.Sprintf("%d", c.cfg.CUDADeviceID)})
			options.AppendExecutionProviderCUDA(cudaOptions)
			cudaOptions.Destroy()
		} else {
			log.Printf("[WARN] failed to create CUDA options for %s: %v", name, err)
		}
	case DeviceTensorRT:
		trtOptions, err := ort.NewTensorRTProviderOptions()
		if err == nil {
			options.AppendExecutionProviderTensorRT(trtOptions)
			trtOptions.Destroy()
		} else {
			log.Printf("[WARN] failed to create TensorRT options for %s: %v", name, err)
		}
		// CUDA fallback behind TensorRT
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			cudaOptions.Update(map[string]string{"device_id": fmt.Sprintf("%d", c.cfg.CUDADeviceID)})
			options.AppendExecutionProviderCUDA(cudaOptions)
			cudaOptions.Destroy()
		}
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.ModelLoadError("model file not found: "+modelPath, err)
	}

	inputNames := opts.InputNames
	outputNames := opts.OutputNames
	if len(inputNames) == 0 {
		inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			log.Printf("[WARN] failed to probe model info for %s: %v, using defaults", name, err)
		}
		for _, info := range inputInfo {
			inputNames = append(inputNames, info.Name)
		}
		for _, info := range outputInfo {
			outputNames = append(outputNames, info.Name)
		}
	}
	if len(inputNames) == 0 {
		inputNames = []string{"input_ids", "attention_mask"}
	}
	if len(outputNames) == 0 {
		outputNames = []string{"logits"}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, errors.ModelLoadError("failed to create ONNX session", err)
	}

	return &Session{
		name:        name,
		path:        modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
		impl: &cgoSession{
			session:     session,
			inputNames:  inputNames,
			outputNames: outputNames,
		},
	}, nil
}

func (c *cgoRuntime) close() error {
	return ort.DestroyEnvironment()
}

func isRuntimeAvailable() bool {
	return true
}

// cgoSession wraps the underlying ORT session.
type cgoSession struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

func toBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*size)
}

func (s *cgoSession) run(inputs map[string]*Tensor) (map[string]*Tensor, error) {
	inputValues := make([]ort.Value, len(s.inputNames))

	var toDestroy []ort.Value
	defer func() {
		for _, v := range toDestroy {
			v.Destroy()
		}
	}()

	for i, name := range s.inputNames {
		inp, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing input: %s", name)
		}

		shape := ort.Shape(inp.Shape())

		var ortVal ort.Value

		switch inp.DataType() {
		case TensorTypeFloat32:
			data := inp.Float32Data()
			if data == nil {
				return nil, fmt.Errorf("input %s has invalid float32 data", name)
			}
			dtype := ort.GetTensorElementDataType[float32]()
			t, err := ort.NewCustomDataTensor(shape, toBytes(data), ort.TensorElementDataType(dtype))
			if err != nil {
				return nil, err
			}
			ortVal = t

		case TensorTypeInt64:
			data := inp.Int64Data()
			if data == nil {
				return nil, fmt.Errorf("input %s has invalid int64 data", name)
			}
			dtype := ort.GetTensorElementDataType[int64]()
			t, err := ort.NewCustomDataTensor(shape, toBytes(data), ort.TensorElementDataType(dtype))
			if err != nil {
				return nil, err
			}
			ortVal = t

		case TensorTypeInt32:
			data := inp.Int32Data()
			if data == nil {
				return nil, fmt.Errorf("input %s has invalid int32 data", name)
			}
			dtype := ort.GetTensorElementDataType[int32]()
			t, err := ort.NewCustomDataTensor(shape, toBytes(data), ort.TensorElementDataType(dtype))
			if err != nil {
				return nil, err
			}
			ortVal = t

		default:
			return nil, fmt.Errorf("unsupported tensor type %v for input %s", inp.DataType(), name)
		}

		inputValues[i] = ortVal
		toDestroy = append(toDestroy, ortVal)
	}

	outputValues := make([]ort.Value, len(s.outputNames))

	if err := s.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	for _, v := range outputValues {
		if v != nil {
			defer v.Destroy()
		}
	}

	result := make(map[string]*Tensor)

	for i, ortOut := range outputValues {
		if ortOut == nil {
			continue
		}
		name := s.outputNames[i]

		var outTensor *Tensor

		switch t := ortOut.(type) {
		case *ort.Tensor[float32]:
			data := t.GetData()
			c := make([]float32, len(data))
			copy(c, data)
			outTensor = NewTensorFloat32(c, []int64(t.GetShape()))

		case *ort.Tensor[int64]:
			data := t.GetData()
			c := make([]int64, len(data))
			copy(c, data)
			outTensor = NewTensorInt64(c, []int64(t.GetShape()))

		case *ort.Tensor[int32]:
			data := t.GetData()
			c := make([]int32, len(data))
			copy(c, data)
			outTensor = NewTensorInt32(c, []int64(t.GetShape()))

		case *ort.Tensor[float64]:
			data := t.GetData()
			data32 := make([]float32, len(data))
			for k, v := range data {
				data32[k] = float32(v)
			}
			outTensor = NewTensorFloat32(data32, []int64(t.GetShape()))

		default:
			log.Printf("[WARN] unsupported output tensor type %T for %s", ortOut, name)
			continue
		}

		result[name] = outTensor
	}

	return result, nil
}

func (s *cgoSession) close() error {
	return s.session.Destroy()
}

func findLibraryPath() string {
	if env := os.Getenv("SIFT_ONNX_LIB"); env != "" {
		return env
	}

	libName := "libonnxruntime.so"
	switch runtime.GOOS {
	case "windows":
		libName = "onnxruntime.dll"
	case "darwin":
		libName = "libonnxruntime.dylib"
	}

	candidates := []string{
		libName,
		filepath.Join("/usr/local/lib", libName),
		filepath.Join("/usr/lib", libName),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
