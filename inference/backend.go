// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

import (
	"os"
	"strconv"
	"strings"
)

const (
	providerCUDA     = "CUDAExecutionProvider"
	providerCoreML   = "CoreMLExecutionProvider"
	providerDirectML = "DmlExecutionProvider"
	providerCPU      = "CPUExecutionProvider"
)

var defaultProviderPriority = []string{providerCUDA, providerCoreML, providerDirectML, providerCPU}

// selectProviders ranks the providers the runtime reports available
// against defaultProviderPriority, then drops DirectML when the
// model's own metadata marks it as ORT-quantized — DML with a
// quantized MatMul has been observed to hard-crash the process.
func selectProviders(available []string, meta map[string]string) []string {
	availableSet := make(map[string]bool, len(available))
	for _, p := range available {
		availableSet[p] = true
	}

	var wants []string
	for _, p := range defaultProviderPriority {
		if availableSet[p] {
			wants = append(wants, p)
		}
	}
	if len(wants) == 0 {
		if len(available) > 0 {
			wants = append(wants, available...)
		} else {
			wants = []string{providerCPU}
		}
	}

	if strings.TrimSpace(meta["onnx.infer"]) == "onnxruntime.quant" {
		filtered := wants[:0]
		for _, p := range wants {
			if p != providerDirectML {
				filtered = append(filtered, p)
			}
		}
		wants = filtered
	}
	if len(wants) == 0 {
		wants = []string{providerCPU}
	}
	return wants
}

// candidateDMLDeviceIDs orders DirectML device ids to try: explicit
// config, then GHOSTTYPE_DML_DEVICE_ID/ORT_DML_DEVICE_ID, then the
// laptop heuristic (0 = iGPU, 1 = dGPU, so try the dGPU first).
func candidateDMLDeviceIDs(configured *int) []int {
	if configured != nil {
		return []int{*configured}
	}
	for _, envVar := range []string{"GHOSTTYPE_DML_DEVICE_ID", "ORT_DML_DEVICE_ID"} {
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		if id, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return []int{id}
		}
		return []int{0}
	}
	return []int{1, 0}
}
