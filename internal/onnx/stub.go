package onnx

import (
	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// stubRuntime refuses to create sessions. It serves as the fallback in
// both cgo and non-cgo builds when the runtime library is missing.
type stubRuntime struct{}

var _ runtimeImpl = (*stubRuntime)(nil)
var _ runtimeImpl = (*mockRuntime)(nil)
var _ sessionImpl = (*mockSession)(nil)

func (s *stubRuntime) createSession(name, modelPath string, device Device, opts SessionOptions) (*Session, error) {
	return nil, errors.ModelLoadError(
		"ONNX Runtime not available: install the onnxruntime shared library or set SIFT_ONNX_LIB", nil)
}

func (s *stubRuntime) close() error {
	return nil
}

// mockNumLabels matches the review classification head width.
const mockNumLabels = 4

// mockRuntime produces deterministic logits without a model. Enabled
// with SIFT_MOCK_ML=true for development and smoke tests.
type mockRuntime struct{}

func (m *mockRuntime) createSession(name, modelPath string, device Device, opts SessionOptions) (*Session, error) {
	inputNames := opts.InputNames
	if len(inputNames) == 0 {
		inputNames = []string{"input_ids", "attention_mask"}
	}
	outputNames := opts.OutputNames
	if len(outputNames) == 0 {
		outputNames = []string{"logits"}
	}

	return &Session{
		name:        name,
		path:        modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
		impl:        &mockSession{numLabels: mockNumLabels},
	}, nil
}

func (m *mockRuntime) close() error {
	return nil
}

type mockSession struct {
	numLabels int64
}

// run fabricates a [batch, numLabels] logits tensor. The favored class
// is a function of the input ids so the same text always maps to the
// same label.
func (s *mockSession) run(inputs map[string]*Tensor) (map[string]*Tensor, error) {
	var batch, seqLen int64 = 1, 0
	var ids []int64

	if t, ok := inputs["input_ids"]; ok {
		shape := t.Shape()
		if len(shape) == 2 {
			batch, seqLen = shape[0], shape[1]
		}
		ids = t.Int64Data()
	}

	logits := make([]float32, batch*s.numLabels)
	for b := int64(0); b < batch; b++ {
		var sum int64
		if seqLen > 0 && int64(len(ids)) >= (b+1)*seqLen {
			for _, id := range ids[b*seqLen : (b+1)*seqLen] {
				sum += id
			}
		}
		favored := sum % s.numLabels

		for c := int64(0); c < s.numLabels; c++ {
			v := float32(c) * 0.1
			if c == favored {
				v = 4.0
			}
			logits[b*s.numLabels+c] = v
		}
	}

	out := NewTensorFloat32(logits, []int64{batch, s.numLabels})
	return map[string]*Tensor{"logits": out}, nil
}

func (s *mockSession) close() error {
	return nil
}
