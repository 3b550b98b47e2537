// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

// S16ToNormalizedFloat32 scales s16 samples to [-1, 1) float32, the
// convention WaveformDirect models expect on their raw-waveform input.
// This is the opposite convention from feature.S16ToUnscaledFloat32,
// which the CTC front-end uses unscaled — see spec §9 open questions.
func S16ToNormalizedFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
