package onnx

import (
	"sync"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// Session wraps a loaded ONNX model. All calls go through the
// platform-specific sessionImpl; Session owns locking and lifecycle.
type Session struct {
	mu          sync.Mutex
	name        string
	path        string
	inputNames  []string
	outputNames []string
	impl        sessionImpl
	closed      bool
}

// sessionImpl is the backend-specific session implementation.
type sessionImpl interface {
	run(inputs map[string]*Tensor) (map[string]*Tensor, error)
	close() error
}

// SessionOptions holds per-session configuration.
type SessionOptions struct {
	IntraOpThreads int
	InterOpThreads int
	// InputNames and OutputNames override model probing when set.
	InputNames  []string
	OutputNames []string
}

// SessionOption modifies session options.
type SessionOption func(*SessionOptions)

func defaultSessionOptions() SessionOptions {
	return SessionOptions{}
}

// WithThreads sets the intra-op and inter-op thread counts.
func WithThreads(intraOp, interOp int) SessionOption {
	return func(o *SessionOptions) {
		o.IntraOpThreads = intraOp
		o.InterOpThreads = interOp
	}
}

// WithIONames overrides the probed input and output tensor names.
func WithIONames(inputs, outputs []string) SessionOption {
	return func(o *SessionOptions) {
		o.InputNames = inputs
		o.OutputNames = outputs
	}
}

// Run executes the session with the given named inputs.
func (s *Session) Run(inputs map[string]*Tensor) (map[string]*Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New(errors.CodeInference, "session is closed")
	}

	outputs, err := s.impl.run(inputs)
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.InferenceError("inference failed", err)
	}

	return outputs, nil
}

// RunLogits runs the classification head. Both input slices must be
// flattened row-major with the given [batch, seq] shape. Models that
// declare a token_type_ids input get a zero tensor for it.
func (s *Session) RunLogits(inputIDs, attentionMask []int64, shape []int64) (*Tensor, error) {
	inputs := map[string]*Tensor{
		"input_ids":      NewTensorInt64(inputIDs, shape),
		"attention_mask": NewTensorInt64(attentionMask, shape),
	}

	if s.WantsInput("token_type_ids") {
		inputs["token_type_ids"] = Zeros(shape, TensorTypeInt64)
	}

	outputs, err := s.Run(inputs)
	if err != nil {
		return nil, err
	}

	if t, ok := outputs["logits"]; ok {
		return t, nil
	}

	// Some exports name the head differently. Fall back to the first
	// declared output that came back.
	for _, name := range s.outputNames {
		if t, ok := outputs[name]; ok {
			return t, nil
		}
	}

	return nil, errors.New(errors.CodeInference, "model returned no logits output")
}

// WantsInput reports whether the model declares an input with this name.
func (s *Session) WantsInput(name string) bool {
	for _, n := range s.inputNames {
		if n == name {
			return true
		}
	}
	return false
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// Path returns the model path.
func (s *Session) Path() string {
	return s.path
}

// InputNames returns the model's declared input tensor names.
func (s *Session) InputNames() []string {
	return s.inputNames
}

// OutputNames returns the model's declared output tensor names.
func (s *Session) OutputNames() []string {
	return s.outputNames
}

// Close releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.impl != nil {
		return s.impl.close()
	}
	return nil
}
