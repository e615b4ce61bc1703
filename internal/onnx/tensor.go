package onnx

import (
	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// TensorType represents ONNX tensor element types.
type TensorType int

const (
	TensorTypeFloat32 TensorType = iota
	TensorTypeInt64
	TensorTypeInt32
)

// Tensor is a multi-dimensional array exchanged with the ONNX session.
type Tensor struct {
	shape    []int64
	dataType TensorType
	data     any // []float32, []int64 or []int32
}

// NewTensorFloat32 creates a new float32 tensor.
func NewTensorFloat32(data []float32, shape []int64) *Tensor {
	return &Tensor{
		shape:    shape,
		dataType: TensorTypeFloat32,
		data:     data,
	}
}

// NewTensorInt64 creates a new int64 tensor.
func NewTensorInt64(data []int64, shape []int64) *Tensor {
	return &Tensor{
		shape:    shape,
		dataType: TensorTypeInt64,
		data:     data,
	}
}

// NewTensorInt32 creates a new int32 tensor.
func NewTensorInt32(data []int32, shape []int64) *Tensor {
	return &Tensor{
		shape:    shape,
		dataType: TensorTypeInt32,
		data:     data,
	}
}

// Zeros creates a zero-filled tensor of the given shape and type.
func Zeros(shape []int64, dtype TensorType) *Tensor {
	n := int64(1)
	for _, dim := range shape {
		n *= dim
	}

	switch dtype {
	case TensorTypeFloat32:
		return NewTensorFloat32(make([]float32, n), shape)
	case TensorTypeInt64:
		return NewTensorInt64(make([]int64, n), shape)
	case TensorTypeInt32:
		return NewTensorInt32(make([]int32, n), shape)
	default:
		return &Tensor{shape: shape, dataType: dtype}
	}
}

// Shape returns the tensor shape.
func (t *Tensor) Shape() []int64 {
	return t.shape
}

// DataType returns the tensor element type.
func (t *Tensor) DataType() TensorType {
	return t.dataType
}

// Float32Data returns the data as a float32 slice, or nil on type mismatch.
func (t *Tensor) Float32Data() []float32 {
	if data, ok := t.data.([]float32); ok {
		return data
	}
	return nil
}

// Int64Data returns the data as an int64 slice, or nil on type mismatch.
func (t *Tensor) Int64Data() []int64 {
	if data, ok := t.data.([]int64); ok {
		return data
	}
	return nil
}

// Int32Data returns the data as an int32 slice, or nil on type mismatch.
func (t *Tensor) Int32Data() []int32 {
	if data, ok := t.data.([]int32); ok {
		return data
	}
	return nil
}

// NumElements returns the total element count.
func (t *Tensor) NumElements() int64 {
	if len(t.shape) == 0 {
		return 0
	}

	n := int64(1)
	for _, dim := range t.shape {
		n *= dim
	}
	return n
}

// Reshape returns a view of the tensor with a different shape. The
// element count must match.
func (t *Tensor) Reshape(newShape []int64) (*Tensor, error) {
	newN := int64(1)
	for _, dim := range newShape {
		newN *= dim
	}

	if t.NumElements() != newN {
		return nil, errors.ValidationError("reshape element count mismatch")
	}

	return &Tensor{
		shape:    newShape,
		dataType: t.dataType,
		data:     t.data,
	}, nil
}

// Row returns row i of a 2-dimensional float32 tensor.
func (t *Tensor) Row(i int) ([]float32, error) {
	if len(t.shape) != 2 {
		return nil, errors.ValidationError("row access requires a 2-dimensional tensor")
	}

	data := t.Float32Data()
	if data == nil {
		return nil, errors.ValidationError("row access requires a float32 tensor")
	}

	cols := int(t.shape[1])
	start := i * cols
	if i < 0 || start+cols > len(data) {
		return nil, errors.ValidationError("row index out of range")
	}

	return data[start : start+cols], nil
}
