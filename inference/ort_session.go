// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ghosttype/ghosttype/ctc"
	"github.com/ghosttype/ghosttype/modelio"
)

// ortSession wraps an onnxruntime_go session, exposing just enough
// surface to satisfy modelio.MetadataSource and Engine's input
// marshalling. Session creation, metadata reads and Run live here;
// engine.go still calls the binding directly for environment setup,
// session options, provider listing and input tensors.
type ortSession struct {
	modelPath string
	session   *ort.DynamicAdvancedSession
	inputs    []ort.InputOutputInfo
	outputs   []ort.InputOutputInfo
}

func newOrtSession(modelPath string, options *ort.SessionOptions) (*ortSession, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model input/output signature: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i, in := range inputs {
		inputNames[i] = in.Name
	}
	outputNames := make([]string, len(outputs))
	for i, out := range outputs {
		outputNames[i] = out.Name
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("creating onnxruntime session: %w", err)
	}

	return &ortSession{modelPath: modelPath, session: session, inputs: inputs, outputs: outputs}, nil
}

func (s *ortSession) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}

// CustomMetadata implements modelio.MetadataSource.
func (s *ortSession) CustomMetadata() (map[string]string, error) {
	meta, err := s.session.GetModelMetadata()
	if err != nil {
		return nil, fmt.Errorf("reading model metadata: %w", err)
	}
	defer meta.Destroy()

	keys, err := meta.GetCustomMetadataMapKeys()
	if err != nil {
		return nil, fmt.Errorf("reading custom metadata keys: %w", err)
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := meta.LookupCustomMetadataMap(k)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Inputs implements modelio.MetadataSource.
func (s *ortSession) Inputs() ([]modelio.InputSignature, error) {
	out := make([]modelio.InputSignature, len(s.inputs))
	for i, in := range s.inputs {
		out[i] = modelio.InputSignature{Name: in.Name, DType: dtypeName(in.DataType)}
	}
	return out, nil
}

// run executes the session with named inputs, taken in the model's
// declared input order, and returns outputs converted to the
// ONNX-independent shape ctc.Decode works from. Output tensors are
// left nil for the runtime to dynamically allocate.
func (s *ortSession) run(namedInputs map[string]ort.Value) (ctc.RawOutputs, error) {
	inputValues := make([]ort.Value, len(s.inputs))
	for i, in := range s.inputs {
		v, ok := namedInputs[in.Name]
		if !ok {
			return ctc.RawOutputs{}, fmt.Errorf("missing value for input %q", in.Name)
		}
		inputValues[i] = v
	}

	outputValues := make([]ort.Value, len(s.outputs))
	if err := s.session.Run(inputValues, outputValues); err != nil {
		return ctc.RawOutputs{}, fmt.Errorf("running session: %w", err)
	}

	var raw ctc.RawOutputs
	for _, v := range outputValues {
		switch t := v.(type) {
		case *ort.Tensor[float32]:
			raw.FloatOutputs = append(raw.FloatOutputs, ctc.FloatOutput{Shape: t.GetShape(), Data: t.GetData()})
			defer t.Destroy()
		case *ort.Tensor[int64]:
			raw.IntOutputs = append(raw.IntOutputs, ctc.IntOutput{Shape: t.GetShape(), Data: t.GetData()})
			defer t.Destroy()
		case *ort.Tensor[int32]:
			data := make([]int64, len(t.GetData()))
			for i, x := range t.GetData() {
				data[i] = int64(x)
			}
			raw.IntOutputs = append(raw.IntOutputs, ctc.IntOutput{Shape: t.GetShape(), Data: data})
			defer t.Destroy()
		}
	}
	return raw, nil
}

func dtypeName(t ort.TensorElementDataType) string {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return "float32"
	case ort.TensorElementDataTypeDouble:
		return "float64"
	case ort.TensorElementDataTypeInt32:
		return "int32"
	case ort.TensorElementDataTypeInt64:
		return "int64"
	case ort.TensorElementDataTypeString:
		return "string"
	default:
		return "unknown"
	}
}
