// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

const (
	// FrameDurationSeconds is the hard-coded Opus frame length this
	// muxer/decoder pair assumes throughout (spec §9 design note: a
	// packet sequence that isn't uniformly 20ms yields incorrect
	// granules under this design).
	FrameDurationSeconds = 0.02

	// TargetSampleRate is the rate the decoder resamples to for the
	// feature/inference pipeline.
	TargetSampleRate = 16000

	// OpusPreSkip is the fixed pre-skip value this muxer writes into
	// every OpusHead page.
	OpusPreSkip = 312
)

// SupportedOpusRates lists the Opus-native sample rates the muxer
// accepts; MuxOpusPackets rejects any other rate.
var SupportedOpusRates = [5]int{8000, 12000, 16000, 24000, 48000}

// IsSupportedOpusRate reports whether r is one of SupportedOpusRates.
func IsSupportedOpusRate(r int) bool {
	for _, v := range SupportedOpusRates {
		if v == r {
			return true
		}
	}
	return false
}

// PcmAudio is linear PCM, mono, 16-bit signed little-endian samples at
// a fixed sample rate — the Audio Decoder's output type (spec §4.2).
type PcmAudio struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// ConvertToMono downmixes interleaved multi-channel s16 samples to
// mono by averaging channels.
func ConvertToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}
