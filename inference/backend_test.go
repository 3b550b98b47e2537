// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectProvidersOrdersByPriority(t *testing.T) {
	got := selectProviders([]string{providerCPU, providerDirectML, providerCUDA}, nil)
	assert.Equal(t, []string{providerCUDA, providerDirectML, providerCPU}, got)
}

func TestSelectProvidersFallsBackToCPUWhenNoneMatch(t *testing.T) {
	got := selectProviders(nil, nil)
	assert.Equal(t, []string{providerCPU}, got)
}

func TestSelectProvidersExcludesDirectMLForQuantizedModels(t *testing.T) {
	meta := map[string]string{"onnx.infer": "onnxruntime.quant"}
	got := selectProviders([]string{providerDirectML, providerCPU}, meta)
	assert.Equal(t, []string{providerCPU}, got)
}

func TestCandidateDMLDeviceIDsPrefersExplicitConfig(t *testing.T) {
	id := 3
	got := candidateDMLDeviceIDs(&id)
	assert.Equal(t, []int{3}, got)
}

func TestCandidateDMLDeviceIDsReadsEnvironment(t *testing.T) {
	t.Setenv("GHOSTTYPE_DML_DEVICE_ID", "2")
	got := candidateDMLDeviceIDs(nil)
	assert.Equal(t, []int{2}, got)
}

func TestCandidateDMLDeviceIDsDefaultsToHeuristic(t *testing.T) {
	got := candidateDMLDeviceIDs(nil)
	assert.Equal(t, []int{1, 0}, got)
}
