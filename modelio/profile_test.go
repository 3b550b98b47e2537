// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package modelio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	meta   map[string]string
	inputs []InputSignature
}

func (f *fakeSource) CustomMetadata() (map[string]string, error) { return f.meta, nil }
func (f *fakeSource) Inputs() ([]InputSignature, error)          { return f.inputs, nil }

func TestBuildCTCProfile(t *testing.T) {
	src := &fakeSource{
		meta: map[string]string{
			"neg_mean":    "-1.0,-2.0,-3.0,-4.0,-5.0,-6.0,-7.0,-8.0,-9.0,-10.0,-11.0,-12.0,-13.0,-14.0",
			"inv_stddev":  "1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0,1.0",
			"lang_auto":   "0",
			"lang_en":     "1",
			"with_itn":    "2",
			"token_list":  `["<blank>","a","b","▁c"]`,
		},
		inputs: []InputSignature{
			{Name: "x", DType: "float32"},
			{Name: "x_length", DType: "int32"},
			{Name: "language", DType: "int32"},
			{Name: "text_norm", DType: "int32"},
		},
	}

	p, err := Build(src, "/models/sensevoice-small.onnx")
	require.NoError(t, err)

	assert.Equal(t, CtcWithFeatures, p.Mode)
	assert.Equal(t, 14, p.FeatureDim)
	assert.Equal(t, 7, p.LfrWindow)
	assert.Equal(t, 2, p.NMels)
	assert.Equal(t, 0, p.LanguageID)
	assert.Equal(t, 2, p.TextNormID)
	assert.Equal(t, 4, p.DropLeadingFrames)
	assert.True(t, p.HasVocabulary)
	assert.Equal(t, []string{"<blank>", "a", "b", "▁c"}, p.Vocabulary)
}

func TestBuildCTCProfileRejectsIndivisibleFeatureDim(t *testing.T) {
	src := &fakeSource{
		meta: map[string]string{
			"neg_mean":   "-1.0,-2.0,-3.0",
			"inv_stddev": "1.0,1.0,1.0",
			"lfr_window_size": "2",
		},
		inputs: []InputSignature{
			{Name: "x", DType: "float32"},
			{Name: "x_length", DType: "int32"},
			{Name: "language", DType: "int32"},
			{Name: "text_norm", DType: "int32"},
		},
	}
	_, err := Build(src, "/models/m.onnx")
	assert.Error(t, err)
}

func TestBuildWaveformDirectProfile(t *testing.T) {
	src := &fakeSource{
		meta: map[string]string{},
		inputs: []InputSignature{
			{Name: "waveform", DType: "float32"},
			{Name: "length", DType: "int64"},
		},
	}
	p, err := Build(src, "/models/m.onnx")
	require.NoError(t, err)

	assert.Equal(t, WaveformDirect, p.Mode)
	assert.Equal(t, 0, p.DropLeadingFrames)
	assert.Equal(t, "waveform", p.WaveformInputName)
	assert.Equal(t, "length", p.SampleCountInputName)
}

func TestLoadVocabularyFromSiblingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.tokens.txt")
	require.NoError(t, os.WriteFile(path, []byte("<blank> 0\nhello 2\n"), 0o644))

	src := &fakeSource{meta: map[string]string{}, inputs: []InputSignature{{Name: "waveform", DType: "float32"}}}
	p, err := Build(src, filepath.Join(dir, "m.onnx"))
	require.NoError(t, err)

	require.True(t, p.HasVocabulary)
	assert.Equal(t, []string{"<blank>", "", "hello"}, p.Vocabulary)
}

func TestVocabularyAbsentWhenNoSourceResolves(t *testing.T) {
	src := &fakeSource{meta: map[string]string{}, inputs: []InputSignature{{Name: "waveform", DType: "float32"}}}
	p, err := Build(src, filepath.Join(t.TempDir(), "m.onnx"))
	require.NoError(t, err)
	assert.False(t, p.HasVocabulary)
	assert.Nil(t, p.Vocabulary)
}
