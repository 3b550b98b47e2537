// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package modelio reads the ONNX model's custom metadata map and turns
// it into an immutable, process-wide Model Profile: input-signature
// mode, CMVN/LFR parameters, language/text-norm ids, and vocabulary,
// per spec §3 and §4.4.
package modelio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ghosttype/ghosttype/ghosterrors"
)

// Mode is the model's input-signature variant.
type Mode int

const (
	// WaveformDirect models accept raw waveform samples directly.
	WaveformDirect Mode = iota
	// CtcWithFeatures models accept the §4.3 feature matrix.
	CtcWithFeatures
)

// InputSignature describes one model input tensor.
type InputSignature struct {
	Name  string
	DType string // "float32", "float16", "int32", "int64", "string", ...
}

// MetadataSource is implemented by the inference session wrapper so
// modelio can introspect a real ONNX session without this package
// importing the onnxruntime binding directly — it makes profile
// construction unit-testable against a fake session.
type MetadataSource interface {
	CustomMetadata() (map[string]string, error)
	Inputs() ([]InputSignature, error)
}

// Profile is the immutable, process-wide Model Profile (spec §3).
type Profile struct {
	Mode Mode

	ExpectedSampleRate int
	FeatureDim         int
	NMels              int
	LfrWindow          int
	LfrShift           int
	CmvnNegMean        []float32
	CmvnInvStddev      []float32

	LanguageID int
	TextNormID int

	InputNames []string
	Inputs     []InputSignature

	// WaveformDirect-only: names of the waveform and sample-count
	// inputs, if present.
	WaveformInputName   string
	WaveformDType       string
	SampleCountInputName string
	SampleCountDType    string

	Vocabulary         []string
	HasVocabulary      bool
	CtcBlankID         int
	DropLeadingFrames  int
	SpecialTokens      map[string]bool
}

var specialTokens = map[string]bool{
	"<blank>": true, "<pad>": true, "<s>": true, "</s>": true,
	"<eos>": true, "<bos>": true,
}

// Build constructs a Profile from a model's custom metadata and input
// signatures, per the strategy in spec §4.4. modelPath is used only to
// resolve sibling vocabulary files.
func Build(src MetadataSource, modelPath string) (*Profile, error) {
	meta, err := src.CustomMetadata()
	if err != nil {
		return nil, ghosterrors.NewProfileInvalid("reading model metadata: %v", err)
	}
	inputs, err := src.Inputs()
	if err != nil {
		return nil, ghosterrors.NewProfileInvalid("reading model input signatures: %v", err)
	}

	names := make(map[string]InputSignature, len(inputs))
	inputNames := make([]string, len(inputs))
	for i, in := range inputs {
		names[in.Name] = in
		inputNames[i] = in.Name
	}

	p := &Profile{
		InputNames:        inputNames,
		Inputs:            inputs,
		CtcBlankID:        0,
		SpecialTokens:     specialTokens,
	}

	if _, x := names["x"]; x {
		if _, xl := names["x_length"]; xl {
			if _, lang := names["language"]; lang {
				if _, tn := names["text_norm"]; tn {
					if err := buildCTCProfile(p, meta, names["x"]); err != nil {
						return nil, err
					}
					p.Mode = CtcWithFeatures
					p.DropLeadingFrames = 4
					p.LanguageID = resolveLanguageID(meta)
					p.TextNormID = resolveTextNormID(meta)
					if err := loadVocabulary(p, meta, modelPath); err != nil {
						return nil, err
					}
					return p, nil
				}
			}
		}
	}

	p.Mode = WaveformDirect
	p.DropLeadingFrames = 0
	for _, in := range inputs {
		if p.WaveformInputName == "" && isFloatDType(in.DType) {
			p.WaveformInputName = in.Name
			p.WaveformDType = in.DType
			continue
		}
		if p.SampleCountInputName == "" && isIntDType(in.DType) {
			p.SampleCountInputName = in.Name
			p.SampleCountDType = in.DType
		}
	}
	if err := loadVocabulary(p, meta, modelPath); err != nil {
		return nil, err
	}
	return p, nil
}

func isFloatDType(d string) bool {
	return d == "float32" || d == "float16" || d == "float64"
}

func isIntDType(d string) bool {
	return d == "int32" || d == "int64"
}

func buildCTCProfile(p *Profile, meta map[string]string, xInput InputSignature) error {
	p.LfrWindow = intMetaOrDefault(meta, "lfr_window_size", 7)
	p.LfrShift = intMetaOrDefault(meta, "lfr_window_shift", 6)

	negMean, err := floatListMeta(meta, "neg_mean")
	if err != nil {
		return ghosterrors.NewProfileInvalid("parsing neg_mean: %v", err)
	}
	invStd, err := floatListMeta(meta, "inv_stddev")
	if err != nil {
		return ghosterrors.NewProfileInvalid("parsing inv_stddev: %v", err)
	}
	p.CmvnNegMean = negMean
	p.CmvnInvStddev = invStd
	p.FeatureDim = len(negMean)

	if p.FeatureDim == 0 || p.FeatureDim%p.LfrWindow != 0 {
		return ghosterrors.NewProfileInvalid("feature_dim %d not divisible by lfr_m %d", p.FeatureDim, p.LfrWindow)
	}
	p.NMels = p.FeatureDim / p.LfrWindow
	return nil
}

func intMetaOrDefault(meta map[string]string, key string, def int) int {
	if v, ok := meta[key]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func floatListMeta(meta map[string]string, key string) ([]float32, error) {
	raw, ok := meta[key]
	if !ok {
		return nil, fmt.Errorf("missing metadata key %q", key)
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing float in %q: %w", key, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// resolveLanguageID looks up the "lang_auto" metadata key. There is no
// language-selection input anywhere upstream of model load, so "auto"
// is the only key this ever needs to resolve.
func resolveLanguageID(meta map[string]string) int {
	if v, ok := meta["lang_auto"]; ok {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return id
		}
	}
	return 0
}

func resolveTextNormID(meta map[string]string) int {
	if v, ok := meta["with_itn"]; ok {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return id
		}
	}
	if v, ok := meta["without_itn"]; ok {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return id
		}
	}
	return 0
}

// decodeTokenListValue parses a metadata value that is either a JSON
// array of strings or a newline-separated token list.
func decodeTokenListValue(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var tokens []string
		if err := json.Unmarshal([]byte(trimmed), &tokens); err != nil {
			return nil, err
		}
		return tokens, nil
	}
	return strings.Split(trimmed, "\n"), nil
}
